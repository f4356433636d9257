// internal/api/challenges/handlers.go
package challenges

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/api/apiutil"
	"github.com/codr1/courtbook/internal/challenge"
	"github.com/codr1/courtbook/internal/clock"
	"github.com/codr1/courtbook/internal/courts"
	"github.com/codr1/courtbook/internal/request"
)

const challengeQueryTimeout = 5 * time.Second

var (
	listings    *challenge.Service
	throttle    *apiutil.Throttle
	handlerOnce sync.Once
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(svc *challenge.Service, th *apiutil.Throttle) {
	if svc == nil {
		return
	}
	handlerOnce.Do(func() {
		listings = svc
		throttle = th
	})
}

func ready(w http.ResponseWriter, r *http.Request) bool {
	if listings == nil {
		log.Ctx(r.Context()).Error().Msg("Challenge service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return false
	}
	return true
}

type createRequest struct {
	Site          courts.SiteID       `json:"site" validate:"required"`
	Players       int                 `json:"players" validate:"gte=0,lte=30"`
	Referee       bool                `json:"referee"`
	Team1         apiutil.ContactBody `json:"team1"`
	RequestedDate *clock.Date         `json:"requested_date"`
	RequestedHour *int                `json:"requested_hour" validate:"omitempty,gte=0,lte=23"`
}

// POST /api/v1/challenges
func HandleCreate(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}

	var req createRequest
	if err := apiutil.DecodeAndValidate(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	done, ok := throttle.Admit(w, r, "challenge", req.Team1.Phone)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), challengeQueryTimeout)
	defer cancel()

	listing, err := listings.Create(ctx, challenge.CreateInput{
		Site:          courts.SiteID(strings.TrimSpace(string(req.Site))),
		Players:       req.Players,
		Referee:       req.Referee,
		Team1:         req.Team1.Contact(),
		RequestedDate: req.RequestedDate,
		RequestedHour: req.RequestedHour,
		CreatedBy:     request.Actor(r.Context()),
	})
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	done()

	w.Header().Set("Location", "/api/v1/challenges/"+strconv.FormatInt(listing.ID, 10))
	apiutil.Respond(w, r, http.StatusCreated, listing)
}

type listResponse struct {
	Challenges []challenge.Listing `json:"challenges"`
}

// GET /api/v1/challenges?site=&status=
func HandleList(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), challengeQueryTimeout)
	defer cancel()

	list, err := listings.List(ctx, challenge.Filter{
		Site:   request.Site(r),
		Status: strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status"))),
	})
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, listResponse{Challenges: list})
}

// GET /api/v1/challenges/{id}
func HandleGet(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	id, err := request.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), challengeQueryTimeout)
	defer cancel()

	listing, err := listings.Get(ctx, id)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, listing)
}

// DELETE /api/v1/challenges/{id}
func HandleDelete(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	id, err := request.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), challengeQueryTimeout)
	defer cancel()

	if err := listings.Delete(ctx, id); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type matchRequest struct {
	CourtID courts.CourtID      `json:"court_id" validate:"gte=0"`
	Date    clock.Date          `json:"date" validate:"required"`
	Hour    *int                `json:"hour" validate:"required,gte=0,lte=47"`
	Players *int                `json:"players" validate:"omitempty,gte=0,lte=30"`
	Referee *bool               `json:"referee"`
	Team2   apiutil.ContactBody `json:"team2"`
}

// POST /api/v1/challenges/{id}/match
func HandleMatch(w http.ResponseWriter, r *http.Request) {
	if !ready(w, r) {
		return
	}
	id, err := request.PathID(r, "id")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	var req matchRequest
	if err := apiutil.DecodeAndValidate(r, &req); err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), challengeQueryTimeout)
	defer cancel()

	result, err := listings.Match(ctx, id, challenge.MatchInput{
		CourtID:   req.CourtID,
		Date:      req.Date,
		Hour:      *req.Hour,
		Players:   req.Players,
		Referee:   req.Referee,
		Team2:     req.Team2.Contact(),
		CreatedBy: request.Actor(r.Context()),
	})
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, result)
}
