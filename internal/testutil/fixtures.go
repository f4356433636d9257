package testutil

import (
	"testing"
	"time"

	"github.com/codr1/courtbook/internal/clock"
	"github.com/codr1/courtbook/internal/courts"
)

const (
	SiteNorte courts.SiteID = "norte"
	SiteSur   courts.SiteID = "sur"

	// Norte: the large tiered court shares its pool with the two small courts
	// it is built from.
	CourtGrande courts.CourtID = 1
	Court5A     courts.CourtID = 2
	Court5B     courts.CourtID = 3
	CourtRapida courts.CourtID = 4
	// Sur wraps past midnight and requires a deposit.
	CourtSur courts.CourtID = 5

	RefereeSurcharge int64 = 5000
)

// Location is the fixed civil timezone used by fixtures.
var Location = time.FixedZone("CST", -6*60*60)

// Registry returns two sites, a tiered court linked with two fixed courts,
// an ungrouped fixed court, and a wrapping deposit site.
func Registry(t *testing.T) *courts.Registry {
	t.Helper()

	reg, err := courts.NewRegistry(
		[]courts.Site{
			{ID: SiteNorte, Name: "Sede Norte", OpensAt: 7, ClosesAt: 23, RefereeSupported: true, ChallengeCourt: CourtGrande},
			{ID: SiteSur, Name: "Sede Sur", OpensAt: 16, ClosesAt: 6, DepositRequired: true, ChallengeCourt: CourtSur},
		},
		[]courts.Court{
			{ID: CourtGrande, Site: SiteNorte, Name: "Cancha Grande", Capacity: courts.Capacity{Kind: courts.CapacityTiered, Tiers: map[int]int64{7: 40000, 8: 45000, 9: 50000}}},
			{ID: Court5A, Site: SiteNorte, Name: "Cancha 5A", Capacity: courts.Capacity{Kind: courts.CapacityFixed, Players: 5}, Price: 25000},
			{ID: Court5B, Site: SiteNorte, Name: "Cancha 5B", Capacity: courts.Capacity{Kind: courts.CapacityFixed, Players: 5}, Price: 25000},
			{ID: CourtRapida, Site: SiteNorte, Name: "Cancha Rapida", Capacity: courts.Capacity{Kind: courts.CapacityFixed, Players: 6}, Price: 30000},
			{ID: CourtSur, Site: SiteSur, Name: "Cancha Sur", Capacity: courts.Capacity{Kind: courts.CapacityFixed, Players: 6}, Price: 50000},
		},
		[]courts.LinkedGroup{{ID: "norte-grande", Courts: []courts.CourtID{CourtGrande, Court5A, Court5B}}},
	)
	if err != nil {
		t.Fatalf("build registry: %v", err)
	}
	return reg
}

// Now is the reference instant used by FixedClock: 2024-06-03 10:00 local.
func Now() time.Time {
	return time.Date(2024, time.June, 3, 10, 0, 0, 0, Location)
}

func FixedClock() clock.Clock {
	return clock.Fixed(Now())
}

// Tomorrow is the operating day after Now.
func Tomorrow() clock.Date {
	return clock.DateOf(Now().AddDate(0, 0, 1))
}

// MutableClock is a test clock that can be moved forward.
type MutableClock struct {
	T time.Time
}

func (c *MutableClock) Now() time.Time {
	return c.T
}

func (c *MutableClock) Advance(d time.Duration) {
	c.T = c.T.Add(d)
}
