// internal/api/bookings/handlers.go
package bookings

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/api/apiutil"
	"github.com/codr1/courtbook/internal/booking"
	"github.com/codr1/courtbook/internal/clock"
	"github.com/codr1/courtbook/internal/courts"
	"github.com/codr1/courtbook/internal/ledger"
	"github.com/codr1/courtbook/internal/request"
)

const (
	bookingQueryTimeout = 5 * time.Second
	idempotencyHeader   = "Idempotency-Key"
)

var (
	bookings    *booking.Service
	payments    *ledger.Service
	throttle    *apiutil.Throttle
	handlerOnce sync.Once
)

// InitHandlers must be called during server startup before handling requests.
// A nil throttle disables submission rate limiting.
func InitHandlers(svc *booking.Service, ledgerSvc *ledger.Service, th *apiutil.Throttle) {
	if svc == nil || ledgerSvc == nil {
		return
	}
	handlerOnce.Do(func() {
		bookings = svc
		payments = ledgerSvc
		throttle = th
	})
}

func ready(w http.ResponseWriter, r *http.Request) bool {
	if bookings == nil || payments == nil {
		log.Ctx(r.Context()).Error().Msg("Booking handlers not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return false
	}
	return true
}

type createRequest struct {
	CourtID  courts.CourtID      `json:"court_id" validate:"required,gt=0"`
	Date     clock.Date          `json:"date" validate:"required"`
	Hour     *int                `json:"hour" validate:"required,gte=0,lte=47"`
	Players  int                 `json:"players" validate:"gte=0,lte=30"`
	Referee  bool                `json:"referee"`
	Customer apiutil.ContactBody `json:"customer"`
}

// POST /api/v1/bookings
func HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}

	var req createRequest
	if err := apiutil.DecodeAndValidate(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	done, ok := throttle.Admit(w, r, "booking", req.Customer.Phone)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	created, err := bookings.Create(ctx, booking.CreateInput{
		CourtID:   req.CourtID,
		Date:      req.Date,
		Hour:      *req.Hour,
		Players:   req.Players,
		Referee:   req.Referee,
		Customer:  req.Customer.Contact(),
		CreatedBy: request.Actor(r.Context()),
	})
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	done()

	w.Header().Set("Location", "/api/v1/bookings/"+strconv.FormatInt(created.ID, 10))
	apiutil.Respond(w, r, http.StatusCreated, created)
}

type listResponse struct {
	Bookings []booking.Booking `json:"bookings"`
}

// GET /api/v1/bookings?date=&from=&to=&site=&court_id=
func HandleList(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}

	dates, err := request.Dates(r, "date")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	from, _, err := request.Date(r, "from")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	to, _, err := request.Date(r, "to")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	courtIDs, err := request.CourtIDs(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	list, err := bookings.List(ctx, booking.Filter{
		Dates:    dates,
		From:     from,
		To:       to,
		Site:     request.Site(r),
		CourtIDs: courtIDs,
	})
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, listResponse{Bookings: list})
}

// GET /api/v1/bookings/{id}
func HandleGet(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	id, err := request.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	b, err := bookings.Get(ctx, id)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, b)
}

type editRequest struct {
	CourtID  *courts.CourtID      `json:"court_id" validate:"omitempty,gt=0"`
	Date     *clock.Date          `json:"date"`
	Hour     *int                 `json:"hour" validate:"omitempty,gte=0,lte=47"`
	Players  *int                 `json:"players" validate:"omitempty,gte=0,lte=30"`
	Referee  *bool                `json:"referee"`
	Price    *int64               `json:"price" validate:"omitempty,gte=0"`
	Customer *apiutil.ContactBody `json:"customer"`
}

// PUT /api/v1/bookings/{id}
func HandleUpdate(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	id, err := request.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	var req editRequest
	if err := apiutil.DecodeAndValidate(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	in := booking.EditInput{
		CourtID: req.CourtID,
		Date:    req.Date,
		Hour:    req.Hour,
		Players: req.Players,
		Referee: req.Referee,
		Price:   req.Price,
	}
	if req.Customer != nil {
		c := req.Customer.Contact()
		in.Customer = &c
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	updated, err := bookings.Edit(ctx, id, in)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, updated)
}

// DELETE /api/v1/bookings/{id}
func HandleDelete(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	id, err := request.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	if err := bookings.Cancel(ctx, id); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type proofRequest struct {
	ProofRef string `json:"proof_ref" validate:"required,max=512"`
}

// POST /api/v1/bookings/{id}/proof
func HandleProof(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	id, err := request.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	var req proofRequest
	if err := apiutil.DecodeAndValidate(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	b, err := bookings.AttachProof(ctx, id, req.ProofRef)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, b)
}

// POST /api/v1/bookings/{id}/deposit/confirm
func HandleConfirmDeposit(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	id, err := request.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	confirmation, err := bookings.ConfirmDeposit(ctx, id, request.Actor(r.Context()))
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, confirmation)
}

type checkedRequest struct {
	Checked *bool `json:"checked" validate:"required"`
}

// PUT /api/v1/bookings/{id}/checked
func HandleChecked(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	id, err := request.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	var req checkedRequest
	if err := apiutil.DecodeAndValidate(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	b, err := bookings.SetChecked(ctx, id, *req.Checked, request.Actor(r.Context()))
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, b)
}

// GET /api/v1/bookings/{id}/balance
func HandleBalance(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	id, err := request.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	summary, err := payments.Summary(ctx, id)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, summary)
}

type paymentsResponse struct {
	Payments []ledger.Payment `json:"payments"`
}

// GET /api/v1/bookings/{id}/payments
func HandleListPayments(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	id, err := request.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	list, err := payments.List(ctx, id)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, paymentsResponse{Payments: list})
}

type paymentRequest struct {
	Sinpe          int64  `json:"sinpe" validate:"gte=0"`
	Cash           int64  `json:"cash" validate:"gte=0"`
	Note           string `json:"note" validate:"max=500"`
	ReceiptRef     string `json:"receipt_ref" validate:"max=512"`
	IdempotencyKey string `json:"idempotency_key" validate:"max=128"`
}

// POST /api/v1/bookings/{id}/payments
//
// The idempotency key comes from the body or the Idempotency-Key header.
// Replays answer 200 with the stored payment.
func HandleRecordPayment(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	id, err := request.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	var req paymentRequest
	if err := apiutil.DecodeAndValidate(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = strings.TrimSpace(r.Header.Get(idempotencyHeader))
	}

	ctx, cancel := context.WithTimeout(r.Context(), bookingQueryTimeout)
	defer cancel()

	payment, created, err := payments.Record(ctx, ledger.RecordInput{
		BookingID:      id,
		Sinpe:          req.Sinpe,
		Cash:           req.Cash,
		Note:           req.Note,
		ReceiptRef:     req.ReceiptRef,
		CreatedBy:      request.Actor(r.Context()),
		IdempotencyKey: key,
	})
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	apiutil.Respond(w, r, status, payment)
}
