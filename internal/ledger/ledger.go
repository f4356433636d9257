// Package ledger records append-only payments against bookings and derives
// balances from them.
package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/apperr"
	"github.com/codr1/courtbook/internal/clock"
	"github.com/codr1/courtbook/internal/db"
	"github.com/codr1/courtbook/internal/pricing"
)

const (
	StatusUnpaid   = "unpaid"
	StatusPartial  = "partial"
	StatusComplete = "complete"
)

type Payment struct {
	ID             int64     `json:"id"`
	BookingID      int64     `json:"booking_id"`
	Sinpe          int64     `json:"sinpe"`
	Cash           int64     `json:"cash"`
	Reason         string    `json:"reason"`
	Note           string    `json:"note,omitempty"`
	ReceiptRef     string    `json:"receipt_ref,omitempty"`
	Complete       bool      `json:"complete"`
	CreatedBy      string    `json:"created_by,omitempty"`
	IdempotencyKey string    `json:"idempotency_key"`
	CreatedAt      time.Time `json:"created_at"`
}

func (p Payment) Amount() int64 {
	return p.Sinpe + p.Cash
}

func FromRow(row db.Payment) Payment {
	return Payment{
		ID:             row.ID,
		BookingID:      row.BookingID,
		Sinpe:          row.Sinpe,
		Cash:           row.Cash,
		Reason:         row.Reason,
		Note:           row.Note,
		ReceiptRef:     row.ReceiptRef,
		Complete:       row.Complete,
		CreatedBy:      row.CreatedBy,
		IdempotencyKey: row.IdempotencyKey,
		CreatedAt:      row.CreatedAt,
	}
}

type Summary struct {
	BookingID   int64  `json:"booking_id"`
	Price       int64  `json:"price"`
	Paid        int64  `json:"paid"`
	Sinpe       int64  `json:"sinpe"`
	Cash        int64  `json:"cash"`
	Outstanding int64  `json:"outstanding"`
	FullyPaid   bool   `json:"fully_paid"`
	Status      string `json:"status"`
	Payments    int64  `json:"payments"`
}

// StatusFor classifies a booking by comparing what was paid to its price.
func StatusFor(price, paid int64) string {
	switch {
	case paid >= price:
		return StatusComplete
	case paid <= 0:
		return StatusUnpaid
	default:
		return StatusPartial
	}
}

func Outstanding(price, paid int64) int64 {
	if paid >= price {
		return 0
	}
	return price - paid
}

type RecordInput struct {
	BookingID      int64
	Sinpe          int64
	Cash           int64
	Note           string
	ReceiptRef     string
	CreatedBy      string
	IdempotencyKey string
}

type Service struct {
	db    *db.DB
	clock clock.Clock
}

func NewService(database *db.DB, clk clock.Clock) *Service {
	return &Service{db: database, clock: clk}
}

// Record appends a payment. A repeated idempotency key returns the payment
// stored under it and created=false. The completeness flag is computed from
// the running total inside the write transaction and never revisited.
func (s *Service) Record(ctx context.Context, in RecordInput) (Payment, bool, error) {
	if in.Sinpe < 0 {
		return Payment{}, false, apperr.Field("sinpe", "must be 0 or greater")
	}
	if in.Cash < 0 {
		return Payment{}, false, apperr.Field("cash", "must be 0 or greater")
	}
	if in.Sinpe+in.Cash == 0 {
		return Payment{}, false, apperr.Invalid("payment amount must be greater than 0")
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" {
		key = uuid.NewString()
	}

	logger := log.Ctx(ctx).With().Str("component", "payment_ledger").Int64("booking_id", in.BookingID).Logger()

	var (
		row     db.Payment
		created bool
	)
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		existing, err := tx.Queries.GetPaymentByIdempotencyKey(ctx, key)
		switch {
		case err == nil:
			if existing.BookingID != in.BookingID {
				return apperr.Field("idempotency_key", "was already used for another booking")
			}
			row = existing
			return nil
		case !db.IsNotFound(err):
			return apperr.Upstream("load payment by idempotency key", err)
		}

		booking, err := tx.Queries.GetBooking(ctx, in.BookingID)
		if err != nil {
			if db.IsNotFound(err) {
				return apperr.NotFound("booking", in.BookingID)
			}
			return apperr.Upstream("load booking", err)
		}

		row, err = insertPayment(ctx, tx.Queries, booking, db.CreatePaymentParams{
			BookingID:      booking.ID,
			Sinpe:          in.Sinpe,
			Cash:           in.Cash,
			Reason:         db.PaymentReasonManual,
			Note:           strings.TrimSpace(in.Note),
			ReceiptRef:     strings.TrimSpace(in.ReceiptRef),
			CreatedBy:      in.CreatedBy,
			IdempotencyKey: key,
			CreatedAt:      s.clock.Now().UTC(),
		})
		if err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		if apperr.Kind(err) == nil {
			err = apperr.Upstream("record payment", err)
		}
		logger.Error().Str("event", "operation_failed").Err(err).Msg("Failed to record payment")
		return Payment{}, false, err
	}

	if created {
		logger.Info().
			Int64("payment_id", row.ID).
			Int64("amount", row.Sinpe+row.Cash).
			Bool("complete", row.Complete).
			Msg("Payment recorded")
	}
	return FromRow(row), created, nil
}

// EnsureDeposit records the deposit payment for booking unless one already
// exists. It runs on the caller's transaction.
func EnsureDeposit(ctx context.Context, q *db.Queries, booking db.Booking, actor string, at time.Time) (db.Payment, bool, error) {
	existing, err := q.GetDepositPayment(ctx, booking.ID)
	if err == nil {
		return existing, false, nil
	}
	if !db.IsNotFound(err) {
		return db.Payment{}, false, apperr.Upstream("load deposit payment", err)
	}

	amount := pricing.Deposit(booking.Price)
	if amount == 0 {
		return db.Payment{}, false, nil
	}
	row, err := insertPayment(ctx, q, booking, db.CreatePaymentParams{
		BookingID:      booking.ID,
		Sinpe:          amount,
		Reason:         db.PaymentReasonDeposit,
		Note:           "Deposit confirmed",
		CreatedBy:      actor,
		IdempotencyKey: fmt.Sprintf("deposit-%d", booking.ID),
		CreatedAt:      at.UTC(),
	})
	if err != nil {
		return db.Payment{}, false, err
	}
	return row, true, nil
}

func insertPayment(ctx context.Context, q *db.Queries, booking db.Booking, params db.CreatePaymentParams) (db.Payment, error) {
	totals, err := q.SumPayments(ctx, booking.ID)
	if err != nil {
		return db.Payment{}, apperr.Upstream("sum payments", err)
	}
	params.Complete = totals.Paid()+params.Sinpe+params.Cash >= booking.Price

	row, err := q.CreatePayment(ctx, params)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return db.Payment{}, apperr.Conflict("payment %s was recorded concurrently", params.IdempotencyKey)
		}
		return db.Payment{}, apperr.Upstream("insert payment", err)
	}
	return row, nil
}

func (s *Service) List(ctx context.Context, bookingID int64) ([]Payment, error) {
	if _, err := s.loadBooking(ctx, bookingID); err != nil {
		return nil, err
	}
	rows, err := s.db.Queries.ListPaymentsByBooking(ctx, bookingID)
	if err != nil {
		return nil, apperr.Upstream("list payments", err)
	}
	payments := make([]Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, FromRow(row))
	}
	return payments, nil
}

func (s *Service) Summary(ctx context.Context, bookingID int64) (Summary, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return Summary{}, err
	}
	totals, err := s.db.Queries.SumPayments(ctx, bookingID)
	if err != nil {
		return Summary{}, apperr.Upstream("sum payments", err)
	}
	paid := totals.Paid()
	return Summary{
		BookingID:   bookingID,
		Price:       booking.Price,
		Paid:        paid,
		Sinpe:       totals.Sinpe,
		Cash:        totals.Cash,
		Outstanding: Outstanding(booking.Price, paid),
		FullyPaid:   paid >= booking.Price,
		Status:      StatusFor(booking.Price, paid),
		Payments:    totals.Count,
	}, nil
}

// OutstandingBalance is max(0, price - sum of payments).
func (s *Service) OutstandingBalance(ctx context.Context, bookingID int64) (int64, error) {
	summary, err := s.Summary(ctx, bookingID)
	if err != nil {
		return 0, err
	}
	return summary.Outstanding, nil
}

func (s *Service) IsFullyPaid(ctx context.Context, bookingID int64) (bool, error) {
	summary, err := s.Summary(ctx, bookingID)
	if err != nil {
		return false, err
	}
	return summary.FullyPaid, nil
}

func (s *Service) loadBooking(ctx context.Context, bookingID int64) (db.Booking, error) {
	booking, err := s.db.Queries.GetBooking(ctx, bookingID)
	if err != nil {
		if db.IsNotFound(err) {
			return db.Booking{}, apperr.NotFound("booking", bookingID)
		}
		return db.Booking{}, apperr.Upstream("load booking", err)
	}
	return booking, nil
}
