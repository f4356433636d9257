// Package pricing computes booking, deposit and challenge team-share amounts
// in integer minor currency units.
package pricing

import (
	"github.com/codr1/courtbook/internal/apperr"
	"github.com/codr1/courtbook/internal/courts"
)

type Calculator struct {
	registry         *courts.Registry
	refereeSurcharge int64
}

func NewCalculator(registry *courts.Registry, refereeSurcharge int64) *Calculator {
	return &Calculator{registry: registry, refereeSurcharge: refereeSurcharge}
}

// Quote is the breakdown behind a booking price.
type Quote struct {
	Base            int64 `json:"base"`
	Surcharge       int64 `json:"surcharge"`
	Total           int64 `json:"total"`
	RefereeIncluded bool  `json:"referee_included"`
	PlayerCount     int   `json:"player_count"`
	TeamShare       int64 `json:"team_share"`
	DepositRequired bool  `json:"deposit_required"`
	DepositAmount   int64 `json:"deposit_amount,omitempty"`
}

func (c *Calculator) Quote(courtID courts.CourtID, players int, referee bool) (Quote, error) {
	court, err := c.registry.Court(courtID)
	if err != nil {
		return Quote{}, err
	}
	site, err := c.registry.Site(court.Site)
	if err != nil {
		return Quote{}, err
	}
	base, err := basePrice(court, players)
	if err != nil {
		return Quote{}, err
	}

	q := Quote{Base: base, PlayerCount: players}
	if court.Capacity.Kind == courts.CapacityFixed {
		q.PlayerCount = court.Capacity.Players
	}
	if referee && site.RefereeSupported {
		q.Surcharge = c.refereeSurcharge
		q.RefereeIncluded = true
	}
	q.Total = q.Base + q.Surcharge
	q.TeamShare = CeilHalf(q.Base) + CeilHalf(q.Surcharge)
	if site.DepositRequired {
		q.DepositRequired = true
		q.DepositAmount = Deposit(q.Total)
	}
	return q, nil
}

// BookingPrice is the full direct-booking price: base plus the referee
// surcharge when requested at a site that supports referees.
func (c *Calculator) BookingPrice(courtID courts.CourtID, players int, referee bool) (int64, error) {
	q, err := c.Quote(courtID, players, referee)
	if err != nil {
		return 0, err
	}
	return q.Total, nil
}

// TeamShare is the per-team price shown on a challenge listing.
func (c *Calculator) TeamShare(courtID courts.CourtID, players int, referee bool) (int64, error) {
	q, err := c.Quote(courtID, players, referee)
	if err != nil {
		return 0, err
	}
	return q.TeamShare, nil
}

func basePrice(court courts.Court, players int) (int64, error) {
	switch court.Capacity.Kind {
	case courts.CapacityFixed:
		return court.Price, nil
	case courts.CapacityTiered:
		price, ok := court.Capacity.Tiers[players]
		if !ok {
			return 0, apperr.Field("players", "is not a supported tier for this court")
		}
		return price, nil
	default:
		return 0, apperr.Invalid("court %d has no pricing model", court.ID)
	}
}

// Deposit is the advance required to hold a booking.
func Deposit(price int64) int64 {
	return CeilHalf(price)
}

func CeilHalf(v int64) int64 {
	if v <= 0 {
		return 0
	}
	return (v + 1) / 2
}
