package pricing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codr1/courtbook/internal/apperr"
	"github.com/codr1/courtbook/internal/courts"
)

func newCalculator(t *testing.T) *Calculator {
	t.Helper()
	reg, err := courts.NewRegistry(
		[]courts.Site{
			{ID: "norte", OpensAt: 7, ClosesAt: 23, RefereeSupported: true},
			{ID: "sur", OpensAt: 16, ClosesAt: 6, DepositRequired: true},
		},
		[]courts.Court{
			{ID: 1, Site: "norte", Capacity: courts.Capacity{Kind: courts.CapacityTiered, Tiers: map[int]int64{7: 40000, 8: 45000, 9: 50000}}},
			{ID: 2, Site: "norte", Capacity: courts.Capacity{Kind: courts.CapacityFixed, Players: 5}, Price: 25001},
			{ID: 4, Site: "sur", Capacity: courts.Capacity{Kind: courts.CapacityFixed, Players: 6}, Price: 30000},
		},
		nil,
	)
	require.NoError(t, err)
	return NewCalculator(reg, 5000)
}

func TestBookingPrice(t *testing.T) {
	calc := newCalculator(t)

	tests := []struct {
		name    string
		court   courts.CourtID
		players int
		referee bool
		want    int64
	}{
		{"tier 7", 1, 7, false, 40000},
		{"tier 8", 1, 8, false, 45000},
		{"tier 8 with referee", 1, 8, true, 50000},
		{"tier 9", 1, 9, false, 50000},
		{"fixed ignores players", 2, 0, false, 25001},
		{"referee not supported at site", 4, 0, true, 30000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.BookingPrice(tt.court, tt.players, tt.referee)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBookingPriceRejectsUnsupportedTier(t *testing.T) {
	calc := newCalculator(t)

	_, err := calc.BookingPrice(1, 6, false)
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	_, err = calc.BookingPrice(99, 8, false)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestTeamShareHalvesSurcharge(t *testing.T) {
	calc := newCalculator(t)

	share, err := calc.TeamShare(1, 8, true)
	require.NoError(t, err)
	assert.Equal(t, int64(22500+2500), share)

	// Odd amounts round up per component.
	share, err = calc.TeamShare(2, 0, true)
	require.NoError(t, err)
	assert.Equal(t, int64(12501+2500), share)
}

func TestQuoteDeposit(t *testing.T) {
	calc := newCalculator(t)

	q, err := calc.Quote(4, 0, false)
	require.NoError(t, err)
	assert.True(t, q.DepositRequired)
	assert.Equal(t, int64(15000), q.DepositAmount)
	assert.Equal(t, 6, q.PlayerCount)

	q, err = calc.Quote(1, 8, true)
	require.NoError(t, err)
	assert.False(t, q.DepositRequired)
	assert.True(t, q.RefereeIncluded)
}

func TestCeilHalf(t *testing.T) {
	assert.Equal(t, int64(0), CeilHalf(0))
	assert.Equal(t, int64(1), CeilHalf(1))
	assert.Equal(t, int64(25000), Deposit(50000))
	assert.Equal(t, int64(25001), Deposit(50001))
}
