package booking

import (
	"context"
	"slices"

	"github.com/codr1/courtbook/internal/apperr"
	"github.com/codr1/courtbook/internal/availability"
	"github.com/codr1/courtbook/internal/clock"
	"github.com/codr1/courtbook/internal/courts"
)

// CourtAvailability lists the hours a court can still be booked directly.
type CourtAvailability struct {
	CourtID   courts.CourtID      `json:"court_id"`
	CourtName string              `json:"court_name"`
	Free      []availability.Slot `json:"free"`
}

// Availability returns, for every requested court at site (all of them when
// courtIDs is empty), the operating hours on date that no booking occupies.
func (s *Service) Availability(ctx context.Context, site courts.SiteID, date clock.Date, courtIDs []courts.CourtID) ([]CourtAvailability, error) {
	if _, err := s.registry.Site(site); err != nil {
		return nil, err
	}
	slots, err := s.engine.Hours(site, date)
	if err != nil {
		return nil, err
	}

	var selected []courts.Court
	for _, court := range s.registry.CourtsAtSite(site) {
		if len(courtIDs) == 0 || slices.Contains(courtIDs, court.ID) {
			selected = append(selected, court)
		}
	}
	for _, id := range courtIDs {
		if !slices.ContainsFunc(selected, func(c courts.Court) bool { return c.ID == id }) {
			return nil, apperr.Field("court_id", "is not a court at site "+string(site))
		}
	}

	out := make([]CourtAvailability, 0, len(selected))
	for _, court := range selected {
		free, err := s.resolver.FreeHours(ctx, s.db.Queries, court.ID, date, slots, false)
		if err != nil {
			return nil, apperr.Upstream("load occupied hours", err)
		}
		out = append(out, CourtAvailability{CourtID: court.ID, CourtName: court.Name, Free: free})
	}
	return out, nil
}
