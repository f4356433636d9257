// Package conflict decides whether a court's slot is already held by any
// member of its linked group.
package conflict

import (
	"context"

	"github.com/codr1/courtbook/internal/apperr"
	"github.com/codr1/courtbook/internal/availability"
	"github.com/codr1/courtbook/internal/clock"
	"github.com/codr1/courtbook/internal/courts"
	"github.com/codr1/courtbook/internal/db"
)

// Request describes a candidate slot. ExcludeBookingID skips the booking
// being edited; IncludeChallenges adds hours held by matched listings.
type Request struct {
	CourtID           courts.CourtID
	Date              clock.Date
	Hour              int
	ExcludeBookingID  int64
	IncludeChallenges bool
}

type Resolver struct {
	registry *courts.Registry
}

func NewResolver(registry *courts.Registry) *Resolver {
	return &Resolver{registry: registry}
}

// Occupied returns the set of internal hours already held on date across the
// court's effective court set.
func (r *Resolver) Occupied(ctx context.Context, q *db.Queries, courtID courts.CourtID, date clock.Date, excludeBookingID int64, includeChallenges bool) (map[int]bool, error) {
	if _, err := r.registry.Court(courtID); err != nil {
		return nil, err
	}
	ids := toInt64(r.registry.EffectiveCourts(courtID))

	hours, err := q.ListBookingHours(ctx, date.String(), ids, excludeBookingID)
	if err != nil {
		return nil, apperr.Upstream("list booking hours", err)
	}
	occupied := make(map[int]bool, len(hours))
	for _, h := range hours {
		occupied[h] = true
	}

	if includeChallenges {
		closed, err := q.ListClosedListingHours(ctx, date.String(), ids)
		if err != nil {
			return nil, apperr.Upstream("list closed listing hours", err)
		}
		for _, h := range closed {
			occupied[h] = true
		}
	}
	return occupied, nil
}

// Check returns nil when the candidate hour is free and ErrSlotConflict when
// any effective court already holds it.
func (r *Resolver) Check(ctx context.Context, q *db.Queries, req Request) error {
	occupied, err := r.Occupied(ctx, q, req.CourtID, req.Date, req.ExcludeBookingID, req.IncludeChallenges)
	if err != nil {
		return err
	}
	if occupied[req.Hour] {
		return apperr.Conflict("court %d is taken at hour %d on %s", req.CourtID, req.Hour%24, req.Date)
	}
	return nil
}

// FreeHours filters slots down to those with no conflict on courtID.
func (r *Resolver) FreeHours(ctx context.Context, q *db.Queries, courtID courts.CourtID, date clock.Date, slots []availability.Slot, includeChallenges bool) ([]availability.Slot, error) {
	occupied, err := r.Occupied(ctx, q, courtID, date, 0, includeChallenges)
	if err != nil {
		return nil, err
	}
	free := make([]availability.Slot, 0, len(slots))
	for _, slot := range slots {
		if !occupied[slot.Hour] {
			free = append(free, slot)
		}
	}
	return free, nil
}

// Claims lists the slot_claims rows a booking of courtID at hour must hold.
func (r *Resolver) Claims(bookingID int64, courtID courts.CourtID, date clock.Date, hour int) []db.SlotClaim {
	members := r.registry.EffectiveCourts(courtID)
	claims := make([]db.SlotClaim, 0, len(members))
	for _, id := range members {
		claims = append(claims, db.SlotClaim{
			BookingID: bookingID,
			CourtID:   int64(id),
			SlotDate:  date.String(),
			SlotHour:  hour,
		})
	}
	return claims
}

// Claim inserts the booking's claims inside the caller's transaction. A unique
// violation means another writer won the slot first.
func (r *Resolver) Claim(ctx context.Context, q *db.Queries, bookingID int64, courtID courts.CourtID, date clock.Date, hour int) error {
	for _, claim := range r.Claims(bookingID, courtID, date, hour) {
		if err := q.InsertSlotClaim(ctx, claim); err != nil {
			if db.IsUniqueViolation(err) {
				return apperr.Conflict("court %d is taken at hour %d on %s", claim.CourtID, hour%24, date)
			}
			return apperr.Upstream("insert slot claim", err)
		}
	}
	return nil
}

func toInt64(ids []courts.CourtID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}
