package challenge

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/codr1/courtbook/internal/apperr"
	"github.com/codr1/courtbook/internal/booking"
	"github.com/codr1/courtbook/internal/clock"
	"github.com/codr1/courtbook/internal/contact"
	"github.com/codr1/courtbook/internal/courts"
	"github.com/codr1/courtbook/internal/db"
	"github.com/codr1/courtbook/internal/notify"
	"github.com/codr1/courtbook/internal/pricing"
	"github.com/codr1/courtbook/internal/testutil"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Payload
}

func (r *recordingNotifier) Dispatch(_ context.Context, event notify.Event, payload notify.Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if event == notify.EventChallengeMatched {
		r.sent = append(r.sent, payload)
	}
}

type fixture struct {
	svc      *Service
	bookings *booking.Service
	db       *db.DB
	notifier *recordingNotifier
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	database := testutil.NewTestDB(t)
	reg := testutil.Registry(t)
	clk := testutil.FixedClock()
	calc := pricing.NewCalculator(reg, testutil.RefereeSurcharge)
	notifier := &recordingNotifier{}
	bookings := booking.NewService(booking.Deps{
		DB:       database,
		Registry: reg,
		Pricing:  calc,
		Notifier: notifier,
		Clock:    clk,
	}, booking.Options{
		Location:      testutil.Location,
		DepositWindow: 2 * time.Hour,
		PhoneRegion:   "CR",
		BaseURL:       "http://courtbook.test",
	})
	return fixture{
		svc:      NewService(database, reg, calc, bookings, notifier, clk),
		bookings: bookings,
		db:       database,
		notifier: notifier,
	}
}

var (
	teamA = contact.Contact{Name: "Los Tigres", Phone: "8888 1234", Email: "tigres@example.com"}
	teamB = contact.Contact{Name: "Real Norte", Phone: "+1 650 253 0000"}
)

func openListing(t *testing.T, f fixture, players int, referee bool) Listing {
	t.Helper()
	l, err := f.svc.Create(context.Background(), CreateInput{
		Site:    testutil.SiteNorte,
		Players: players,
		Referee: referee,
		Team1:   teamA,
	})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	return l
}

func TestCreateQuotesTeamShare(t *testing.T) {
	f := newFixture(t)

	l := openListing(t, f, 8, true)
	// ceil(45000/2) + ceil(5000/2)
	if l.TeamShare != 25000 || l.Status != db.ListingStatusOpen || !l.Referee {
		t.Fatalf("listing: %+v", l)
	}
	if l.Team1.Phone != "+50688881234" || l.Team2 != nil || l.BookingID != nil {
		t.Fatalf("listing contacts: %+v", l)
	}

	ctx := context.Background()
	past := clock.DateOf(testutil.Now().AddDate(0, 0, -2))
	badHour := 24
	tests := []struct {
		name string
		in   CreateInput
		kind error
	}{
		{"unknown site", CreateInput{Site: "este", Players: 8, Team1: teamA}, apperr.ErrNotFound},
		{"missing team", CreateInput{Site: testutil.SiteNorte, Players: 8}, apperr.ErrInvalidInput},
		{"unsupported tier", CreateInput{Site: testutil.SiteNorte, Players: 10, Team1: teamA}, apperr.ErrInvalidInput},
		{"past date", CreateInput{Site: testutil.SiteNorte, Players: 8, Team1: teamA, RequestedDate: &past}, apperr.ErrInvalidDate},
		{"bad hour", CreateInput{Site: testutil.SiteNorte, Players: 8, Team1: teamA, RequestedHour: &badHour}, apperr.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Create(ctx, tt.in); !errors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
		})
	}
}

func TestMatchCreatesBookingAndClosesListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := testutil.Tomorrow()

	l := openListing(t, f, 8, true)
	result, err := f.svc.Match(ctx, l.ID, MatchInput{Date: date, Hour: 18, Team2: teamB})
	if err != nil {
		t.Fatalf("match: %v", err)
	}

	b := result.Booking
	if b.CourtID != testutil.CourtGrande || b.Price != 50000 || b.Source != db.BookingSourceChallenge {
		t.Fatalf("booking: %+v", b)
	}
	if b.Customer.Name != teamA.Name {
		t.Fatalf("team 1 must be the named customer: %+v", b.Customer)
	}

	got := result.Listing
	if got.Status != db.ListingStatusClosed || got.BookingID == nil || *got.BookingID != b.ID {
		t.Fatalf("listing: %+v", got)
	}
	if got.Team2 == nil || got.Team2.Phone != "+16502530000" || got.Hour == nil || *got.Hour != 18 || got.MatchedAt == nil {
		t.Fatalf("listing match fields: %+v", got)
	}

	if len(f.notifier.sent) != 2 {
		t.Fatalf("expected one notification per team, got %d", len(f.notifier.sent))
	}
	if f.notifier.sent[0].CustomerName != teamA.Name || f.notifier.sent[1].CustomerName != teamB.Name {
		t.Fatalf("recipients: %+v", f.notifier.sent)
	}
	if f.notifier.sent[1].OpponentName != teamA.Name || f.notifier.sent[0].TeamShare != 25000 {
		t.Fatalf("payload details: %+v", f.notifier.sent)
	}

	if _, err := f.svc.Match(ctx, l.ID, MatchInput{Date: date, Hour: 19, Team2: teamB}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected second match rejected, got %v", err)
	}
	if err := f.svc.Delete(ctx, l.ID); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected delete of matched listing rejected, got %v", err)
	}
}

func TestMatchRejectsOccupiedSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := testutil.Tomorrow()

	if _, err := f.bookings.Create(ctx, booking.CreateInput{CourtID: testutil.Court5B, Date: date, Hour: 18, Customer: teamB}); err != nil {
		t.Fatalf("direct booking: %v", err)
	}

	l := openListing(t, f, 7, false)
	_, err := f.svc.Match(ctx, l.ID, MatchInput{Date: date, Hour: 18, Team2: teamB})
	if !errors.Is(err, apperr.ErrSlotConflict) {
		t.Fatalf("expected slot conflict, got %v", err)
	}
	still, err := f.svc.Get(ctx, l.ID)
	if err != nil || still.Status != db.ListingStatusOpen {
		t.Fatalf("listing must stay open: %+v %v", still, err)
	}
	if len(f.notifier.sent) != 0 {
		t.Fatalf("failed match must not notify")
	}
}

func TestMovedChallengeBookingCarriesItsListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := testutil.Tomorrow()

	first := openListing(t, f, 8, false)
	result, err := f.svc.Match(ctx, first.ID, MatchInput{Date: date, Hour: 18, Team2: teamB})
	if err != nil {
		t.Fatalf("match: %v", err)
	}

	hour := 20
	if _, err := f.bookings.Edit(ctx, result.Booking.ID, booking.EditInput{Hour: &hour}); err != nil {
		t.Fatalf("move booking: %v", err)
	}
	moved, err := f.svc.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if moved.Hour == nil || *moved.Hour != 20 || moved.Date == nil || *moved.Date != date {
		t.Fatalf("listing slot after move: %+v", moved)
	}

	second := openListing(t, f, 8, false)
	for _, court := range []courts.CourtID{testutil.CourtGrande, testutil.Court5A} {
		_, err := f.svc.Match(ctx, second.ID, MatchInput{CourtID: court, Date: date, Hour: 20, Team2: teamB})
		if !errors.Is(err, apperr.ErrSlotConflict) {
			t.Fatalf("court %d: expected conflict at the moved hour, got %v", court, err)
		}
	}
	if _, err := f.svc.Match(ctx, second.ID, MatchInput{Date: date, Hour: 18, Team2: teamB}); err != nil {
		t.Fatalf("match released hour: %v", err)
	}

	sur := testutil.CourtSur
	if _, err := f.bookings.Edit(ctx, result.Booking.ID, booking.EditInput{CourtID: &sur}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected cross-site move refused, got %v", err)
	}
}

func TestCancelledChallengeBookingReopensListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := testutil.Tomorrow()

	l := openListing(t, f, 8, false)
	result, err := f.svc.Match(ctx, l.ID, MatchInput{Date: date, Hour: 18, Team2: teamB})
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if err := f.bookings.Cancel(ctx, result.Booking.ID); err != nil {
		t.Fatalf("cancel booking: %v", err)
	}

	got, err := f.svc.Get(ctx, l.ID)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if got.Status != db.ListingStatusOpen || got.BookingID != nil || got.Team2 != nil {
		t.Fatalf("listing after cancel: %+v", got)
	}
	if got.CourtID != nil || got.Date != nil || got.Hour != nil || got.MatchedAt != nil {
		t.Fatalf("listing slot after cancel: %+v", got)
	}

	rematch, err := f.svc.Match(ctx, l.ID, MatchInput{Date: date, Hour: 18, Team2: teamB})
	if err != nil {
		t.Fatalf("rematch: %v", err)
	}
	if err := f.bookings.Cancel(ctx, rematch.Booking.ID); err != nil {
		t.Fatalf("cancel rematch: %v", err)
	}
	if err := f.svc.Delete(ctx, l.ID); err != nil {
		t.Fatalf("delete reopened listing: %v", err)
	}
}

func TestMatchRollsBackBookingWhenListingUpdateFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	date := testutil.Tomorrow()

	l := openListing(t, f, 8, false)
	if _, err := f.db.ExecContext(ctx, `
		CREATE TRIGGER listings_readonly BEFORE UPDATE ON challenge_listings
		BEGIN SELECT RAISE(ABORT, 'listing store unavailable'); END`); err != nil {
		t.Fatalf("install trigger: %v", err)
	}

	_, err := f.svc.Match(ctx, l.ID, MatchInput{Date: date, Hour: 18, Team2: teamB})
	if !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("expected upstream failure, got %v", err)
	}

	bookings, err := f.bookings.List(ctx, booking.Filter{Dates: []clock.Date{date}})
	if err != nil {
		t.Fatalf("list bookings: %v", err)
	}
	if len(bookings) != 0 {
		t.Fatalf("booking from failed match must not be visible: %+v", bookings)
	}
	if len(f.notifier.sent) != 0 {
		t.Fatalf("failed match must not notify")
	}
}

func TestDeleteAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := openListing(t, f, 7, false)
	b := openListing(t, f, 9, false)
	if _, err := f.svc.Match(ctx, b.ID, MatchInput{Date: testutil.Tomorrow(), Hour: 21, Team2: teamB}); err != nil {
		t.Fatalf("match: %v", err)
	}

	open, err := f.svc.List(ctx, Filter{Site: testutil.SiteNorte, Status: db.ListingStatusOpen})
	if err != nil || len(open) != 1 || open[0].ID != a.ID {
		t.Fatalf("open listings: %+v %v", open, err)
	}
	if _, err := f.svc.List(ctx, Filter{Status: "pending"}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid status filter, got %v", err)
	}

	if err := f.svc.Delete(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected deleted listing, got %v", err)
	}
	if err := f.svc.Delete(ctx, a.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
