// internal/api/courts/handlers.go
package courts

import (
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/api/apiutil"
	"github.com/codr1/courtbook/internal/apperr"
	"github.com/codr1/courtbook/internal/booking"
	"github.com/codr1/courtbook/internal/clock"
	courtreg "github.com/codr1/courtbook/internal/courts"
	"github.com/codr1/courtbook/internal/request"
)

var (
	registry    *courtreg.Registry
	bookings    *booking.Service
	handlerOnce sync.Once
)

// InitHandlers must be called during server startup before handling requests.
func InitHandlers(reg *courtreg.Registry, svc *booking.Service) {
	if reg == nil || svc == nil {
		return
	}
	handlerOnce.Do(func() {
		registry = reg
		bookings = svc
	})
}

type courtsResponse struct {
	Sites        []courtreg.Site        `json:"sites"`
	Courts       []courtreg.Court       `json:"courts"`
	LinkedGroups []courtreg.LinkedGroup `json:"linked_groups"`
}

// GET /api/v1/courts
func HandleListCourts(w http.ResponseWriter, r *http.Request) {
	if registry == nil {
		log.Ctx(r.Context()).Error().Msg("Court registry not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	resp := courtsResponse{
		Sites:        registry.Sites(),
		Courts:       registry.Courts(),
		LinkedGroups: []courtreg.LinkedGroup{},
	}
	seen := make(map[string]bool)
	for _, court := range resp.Courts {
		if court.GroupID == "" || seen[court.GroupID] {
			continue
		}
		if group, ok := registry.Group(court.GroupID); ok {
			resp.LinkedGroups = append(resp.LinkedGroups, group)
			seen[court.GroupID] = true
		}
	}
	apiutil.Respond(w, r, http.StatusOK, resp)
}

type availabilityResponse struct {
	Site   courtreg.SiteID             `json:"site"`
	Date   clock.Date                  `json:"date"`
	Courts []booking.CourtAvailability `json:"courts"`
}

// GET /api/v1/availability?site=&date=[&court_id=]
func HandleAvailability(w http.ResponseWriter, r *http.Request) {
	if bookings == nil {
		log.Ctx(r.Context()).Error().Msg("Booking service not initialized")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	site := request.Site(r)
	if site == "" {
		apiutil.WriteError(w, r, apperr.Field("site", "is required"))
		return
	}
	date, ok, err := request.Date(r, "date")
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	if !ok {
		apiutil.WriteError(w, r, apperr.Field("date", "is required"))
		return
	}
	courtIDs, err := request.CourtIDs(r)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}

	free, err := bookings.Availability(r.Context(), site, date, courtIDs)
	if err != nil {
		apiutil.WriteError(w, r, err)
		return
	}
	apiutil.Respond(w, r, http.StatusOK, availabilityResponse{Site: site, Date: date, Courts: free})
}
