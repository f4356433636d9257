package booking

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/codr1/courtbook/internal/apperr"
	"github.com/codr1/courtbook/internal/availability"
	"github.com/codr1/courtbook/internal/clock"
	"github.com/codr1/courtbook/internal/contact"
	"github.com/codr1/courtbook/internal/courts"
	"github.com/codr1/courtbook/internal/db"
	"github.com/codr1/courtbook/internal/ledger"
	"github.com/codr1/courtbook/internal/notify"
	"github.com/codr1/courtbook/internal/pricing"
	"github.com/codr1/courtbook/internal/testutil"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	sent   []notify.Payload
}

func (r *recordingNotifier) Dispatch(_ context.Context, event notify.Event, payload notify.Payload) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.sent = append(r.sent, payload)
}

type fixture struct {
	svc      *Service
	db       *db.DB
	notifier *recordingNotifier
	clock    *testutil.MutableClock
}

func newFixture(t *testing.T, autoCancel bool) fixture {
	t.Helper()
	database := testutil.NewTestDB(t)
	reg := testutil.Registry(t)
	clk := &testutil.MutableClock{T: testutil.Now()}
	notifier := &recordingNotifier{}
	svc := NewService(Deps{
		DB:       database,
		Registry: reg,
		Pricing:  pricing.NewCalculator(reg, testutil.RefereeSurcharge),
		Notifier: notifier,
		Clock:    clk,
	}, Options{
		Location:          testutil.Location,
		DepositWindow:     2 * time.Hour,
		AutoCancelExpired: autoCancel,
		PhoneRegion:       "CR",
		BaseURL:           "http://courtbook.test",
	})
	return fixture{svc: svc, db: database, notifier: notifier, clock: clk}
}

func customer() contact.Contact {
	return contact.Contact{Name: " Ana Mora ", Phone: "8888 1234", Email: "Ana@Example.com"}
}

func createAt(t *testing.T, svc *Service, court courts.CourtID, date clock.Date, hour, players int) Booking {
	t.Helper()
	b, err := svc.Create(context.Background(), CreateInput{
		CourtID:  court,
		Date:     date,
		Hour:     hour,
		Players:  players,
		Customer: customer(),
	})
	if err != nil {
		t.Fatalf("create booking on court %d at %d: %v", court, hour, err)
	}
	return b
}

func TestCreateBlocksWholeLinkedGroup(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	date := testutil.Tomorrow()

	b := createAt(t, f.svc, testutil.Court5A, date, 18, 0)
	if b.Status != db.BookingStatusNoDepositRequired {
		t.Fatalf("status = %s", b.Status)
	}
	if b.Customer.Name != "Ana Mora" || b.Customer.Phone != "+50688881234" || b.Customer.Email != "ana@example.com" {
		t.Fatalf("contact not normalized: %+v", b.Customer)
	}

	for _, court := range []courts.CourtID{testutil.CourtGrande, testutil.Court5A, testutil.Court5B} {
		_, err := f.svc.Create(ctx, CreateInput{CourtID: court, Date: date, Hour: 18, Players: 8, Customer: customer()})
		if !errors.Is(err, apperr.ErrSlotConflict) {
			t.Fatalf("court %d: expected slot conflict, got %v", court, err)
		}
	}

	// Ungrouped courts keep their own pool.
	createAt(t, f.svc, testutil.CourtRapida, date, 18, 0)

	claims, err := f.db.Queries.ListSlotClaims(ctx, b.ID)
	if err != nil {
		t.Fatalf("list claims: %v", err)
	}
	if len(claims) != 3 {
		t.Fatalf("expected a claim per group member, got %+v", claims)
	}
}

func TestCreateNotifiesWithPrice(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, CreateInput{
		CourtID:  testutil.CourtGrande,
		Date:     testutil.Tomorrow(),
		Hour:     20,
		Players:  8,
		Referee:  true,
		Customer: customer(),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if b.Price != 50000 || !b.Referee || b.PlayerCount != 8 {
		t.Fatalf("unexpected pricing: %+v", b)
	}

	if len(f.notifier.events) != 1 || f.notifier.events[0] != notify.EventBookingCreated {
		t.Fatalf("notifications: %v", f.notifier.events)
	}
	p := f.notifier.sent[0]
	if p.BookingID != b.ID || p.Price != 50000 || !p.RefereeIncluded || p.CourtName != "Cancha Grande" {
		t.Fatalf("payload: %+v", p)
	}
	if p.BookingURL != "http://courtbook.test/api/v1/bookings/"+strconv.FormatInt(b.ID, 10) {
		t.Fatalf("booking url: %s", p.BookingURL)
	}
	if !p.SlotEnd.Equal(p.SlotStart.Add(time.Hour)) {
		t.Fatalf("slot end: %v %v", p.SlotStart, p.SlotEnd)
	}
}

func TestCreateRejectsBadRequests(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	yesterday := clock.DateOf(testutil.Now().AddDate(0, 0, -1))

	tests := []struct {
		name string
		in   CreateInput
		kind error
	}{
		{"past date", CreateInput{CourtID: testutil.Court5A, Date: yesterday, Hour: 18, Customer: customer()}, apperr.ErrInvalidDate},
		{"closing hour", CreateInput{CourtID: testutil.Court5A, Date: testutil.Tomorrow(), Hour: 23, Customer: customer()}, apperr.ErrInvalidDate},
		{"elapsed hour today", CreateInput{CourtID: testutil.Court5A, Date: clock.DateOf(testutil.Now()), Hour: 10, Customer: customer()}, apperr.ErrInvalidDate},
		{"unsupported tier", CreateInput{CourtID: testutil.CourtGrande, Date: testutil.Tomorrow(), Hour: 18, Players: 6, Customer: customer()}, apperr.ErrInvalidInput},
		{"missing phone", CreateInput{CourtID: testutil.Court5A, Date: testutil.Tomorrow(), Hour: 18, Customer: contact.Contact{Name: "Ana"}}, apperr.ErrInvalidInput},
		{"unknown court", CreateInput{CourtID: 99, Date: testutil.Tomorrow(), Hour: 18, Customer: customer()}, apperr.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Create(ctx, tt.in); !errors.Is(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
		})
	}
	if len(f.notifier.events) != 0 {
		t.Fatalf("failed creates must not notify")
	}
}

func TestCreateWrapHourAtDepositSite(t *testing.T) {
	f := newFixture(t, false)
	date := testutil.Tomorrow()

	b := createAt(t, f.svc, testutil.CourtSur, date, 2, 0)
	if b.Hour != 26 || b.DisplayHour != 2 || !b.NextDay {
		t.Fatalf("slot: hour=%d display=%d next=%v", b.Hour, b.DisplayHour, b.NextDay)
	}
	wantStart := time.Date(date.Year, date.Month, date.Day+1, 2, 0, 0, 0, testutil.Location)
	if !b.SlotStart.Equal(wantStart) {
		t.Fatalf("slot start = %v, want %v", b.SlotStart, wantStart)
	}
	if b.Status != db.BookingStatusPendingProof || b.DepositAmount != 25000 {
		t.Fatalf("deposit state: %+v", b)
	}
	if b.DepositDeadline == nil || !b.DepositDeadline.Equal(testutil.Now().Add(2*time.Hour)) {
		t.Fatalf("deadline: %v", b.DepositDeadline)
	}

	// The same wrap hour given as internal value collides.
	_, err := f.svc.Create(context.Background(), CreateInput{CourtID: testutil.CourtSur, Date: date, Hour: 26, Customer: customer()})
	if !errors.Is(err, apperr.ErrSlotConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestInsertClaimsGuardAgainstStalePreCheck(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	date := testutil.Tomorrow()

	draft := func(court courts.CourtID) Draft {
		c, err := testutil.Registry(t).Court(court)
		if err != nil {
			t.Fatalf("court: %v", err)
		}
		return Draft{
			Court:    c,
			Date:     date,
			Slot:     availability.SlotForHour(19),
			Customer: contact.Contact{Name: "Ana", Phone: "+50688881234"},
			Quote:    pricing.Quote{Total: 25000, PlayerCount: 5},
			Source:   db.BookingSourceDirect,
		}
	}

	err := f.db.RunInTx(ctx, func(tx *db.DB) error {
		_, err := f.svc.Insert(ctx, tx.Queries, draft(testutil.Court5A))
		return err
	})
	if err != nil {
		t.Fatalf("first insert: %v", err)
	}

	// Both writers passed the pre-check; only the storage guard stops this one.
	err = f.db.RunInTx(ctx, func(tx *db.DB) error {
		_, err := f.svc.Insert(ctx, tx.Queries, draft(testutil.Court5B))
		return err
	})
	if !errors.Is(err, apperr.ErrSlotConflict) {
		t.Fatalf("expected slot conflict, got %v", err)
	}

	bookings, err := f.svc.List(ctx, Filter{Dates: []clock.Date{date}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(bookings) != 1 {
		t.Fatalf("rolled back insert must not be visible: %d bookings", len(bookings))
	}
}

func TestCreateFailsFastWhilePoolLocked(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	date := testutil.Tomorrow()

	unlock, err := f.svc.Lock(ctx, SlotRef{CourtID: testutil.CourtGrande, Date: date})
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	_, err = f.svc.Create(ctx, CreateInput{CourtID: testutil.Court5B, Date: date, Hour: 18, Customer: customer()})
	if !errors.Is(err, apperr.ErrSlotConflict) {
		t.Fatalf("expected busy pool, got %v", err)
	}
	unlock()

	createAt(t, f.svc, testutil.Court5B, date, 18, 0)
}

func TestEditMovesSlotAndReleasesOld(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	date := testutil.Tomorrow()

	b := createAt(t, f.svc, testutil.Court5A, date, 18, 0)
	createAt(t, f.svc, testutil.CourtRapida, date, 20, 0)

	hour := 19
	moved, err := f.svc.Edit(ctx, b.ID, EditInput{Hour: &hour})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if moved.Hour != 19 || moved.SlotStart.Hour() != 19 {
		t.Fatalf("moved: %+v", moved)
	}

	createAt(t, f.svc, testutil.CourtGrande, date, 18, 7)
	if _, err := f.svc.Create(ctx, CreateInput{CourtID: testutil.CourtGrande, Date: date, Hour: 19, Players: 7, Customer: customer()}); !errors.Is(err, apperr.ErrSlotConflict) {
		t.Fatalf("expected new slot held, got %v", err)
	}

	// Switching to another member of the same group at the same hour only
	// collides with itself, which is excluded.
	court := testutil.Court5B
	if _, err := f.svc.Edit(ctx, b.ID, EditInput{CourtID: &court}); err != nil {
		t.Fatalf("edit within own slot: %v", err)
	}

	target := testutil.CourtRapida
	hour = 20
	if _, err := f.svc.Edit(ctx, b.ID, EditInput{CourtID: &target, Hour: &hour}); !errors.Is(err, apperr.ErrSlotConflict) {
		t.Fatalf("expected conflict moving onto occupied slot, got %v", err)
	}
}

func TestEditReprices(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	b := createAt(t, f.svc, testutil.CourtGrande, testutil.Tomorrow(), 18, 7)
	if b.Price != 40000 {
		t.Fatalf("price = %d", b.Price)
	}

	players := 9
	edited, err := f.svc.Edit(ctx, b.ID, EditInput{Players: &players})
	if err != nil {
		t.Fatalf("edit players: %v", err)
	}
	if edited.Price != 50000 {
		t.Fatalf("repriced = %d", edited.Price)
	}

	referee := true
	price := int64(30000)
	edited, err = f.svc.Edit(ctx, b.ID, EditInput{Referee: &referee, Price: &price})
	if err != nil {
		t.Fatalf("edit price: %v", err)
	}
	if edited.Price != 30000 || !edited.Referee {
		t.Fatalf("explicit price must win: %+v", edited)
	}

	updated := contact.Contact{Name: "Luis", Phone: "+1 650 253 0000"}
	edited, err = f.svc.Edit(ctx, b.ID, EditInput{Customer: &updated})
	if err != nil {
		t.Fatalf("edit contact: %v", err)
	}
	if edited.Customer.Phone != "+16502530000" || edited.Price != 30000 {
		t.Fatalf("contact edit: %+v", edited)
	}

	bad := 6
	if _, err := f.svc.Edit(ctx, b.ID, EditInput{Players: &bad}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid tier, got %v", err)
	}
	if _, err := f.svc.Edit(ctx, b.ID+100, EditInput{Players: &players}); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	date := testutil.Tomorrow()

	b := createAt(t, f.svc, testutil.Court5A, date, 18, 0)
	if err := f.svc.Cancel(ctx, b.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.svc.Get(ctx, b.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected deleted booking, got %v", err)
	}
	createAt(t, f.svc, testutil.CourtGrande, date, 18, 8)

	paid := createAt(t, f.svc, testutil.CourtRapida, date, 19, 0)
	payments := ledger.NewService(f.db, f.clock)
	if _, _, err := payments.Record(ctx, ledger.RecordInput{BookingID: paid.ID, Cash: 10000}); err != nil {
		t.Fatalf("record payment: %v", err)
	}
	if err := f.svc.Cancel(ctx, paid.ID); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected cancel refused with payments, got %v", err)
	}
	if err := f.svc.Cancel(ctx, 999); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConfirmDepositIsIdempotent(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	b := createAt(t, f.svc, testutil.CourtSur, testutil.Tomorrow(), 20, 0)
	first, err := f.svc.ConfirmDeposit(ctx, b.ID, "caja")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if !first.Created || first.Deposit.Sinpe != 25000 || first.Booking.Status != db.BookingStatusConfirmed || first.Booking.ConfirmedBy != "caja" {
		t.Fatalf("first confirmation: %+v", first)
	}

	second, err := f.svc.ConfirmDeposit(ctx, b.ID, "otro")
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if second.Created || second.Deposit.ID != first.Deposit.ID || second.Booking.ConfirmedBy != "caja" {
		t.Fatalf("second confirmation: %+v", second)
	}

	rows, err := f.db.Queries.ListPaymentsByBooking(ctx, b.ID)
	if err != nil || len(rows) != 1 {
		t.Fatalf("payments: %v %v", rows, err)
	}

	norte := createAt(t, f.svc, testutil.CourtRapida, testutil.Tomorrow(), 18, 0)
	if _, err := f.svc.ConfirmDeposit(ctx, norte.ID, "caja"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input at site without deposits, got %v", err)
	}
}

func TestDepositExpiryAndSweep(t *testing.T) {
	for _, autoCancel := range []bool{false, true} {
		f := newFixture(t, autoCancel)
		ctx := context.Background()
		date := testutil.Tomorrow()

		expired := createAt(t, f.svc, testutil.CourtSur, date, 18, 0)
		withProof := createAt(t, f.svc, testutil.CourtSur, date, 19, 0)
		withPayment := createAt(t, f.svc, testutil.CourtSur, date, 20, 0)

		if _, err := f.svc.AttachProof(ctx, withProof.ID, "receipts/123.jpg"); err != nil {
			t.Fatalf("attach proof: %v", err)
		}
		if _, _, err := ledger.NewService(f.db, f.clock).Record(ctx, ledger.RecordInput{BookingID: withPayment.ID, Sinpe: 1000}); err != nil {
			t.Fatalf("record: %v", err)
		}

		f.clock.Advance(2*time.Hour + time.Minute)

		got, err := f.svc.Get(ctx, expired.ID)
		if err != nil || !got.DepositExpired {
			t.Fatalf("expected expired deposit: %+v %v", got, err)
		}
		got, err = f.svc.Get(ctx, withProof.ID)
		if err != nil || got.DepositExpired {
			t.Fatalf("proof must stop expiry: %+v %v", got, err)
		}

		result, err := f.svc.SweepExpiredDeposits(ctx)
		if err != nil {
			t.Fatalf("sweep: %v", err)
		}
		if len(result.Expired) != 2 {
			t.Fatalf("auto=%v expired: %v", autoCancel, result.Expired)
		}
		if autoCancel {
			if len(result.Cancelled) != 1 || result.Cancelled[0] != expired.ID {
				t.Fatalf("cancelled: %v", result.Cancelled)
			}
			if _, err := f.svc.Get(ctx, expired.ID); !errors.Is(err, apperr.ErrNotFound) {
				t.Fatalf("expected sweep to cancel booking, got %v", err)
			}
		} else if len(result.Cancelled) != 0 {
			t.Fatalf("report-only sweep cancelled %v", result.Cancelled)
		}
	}
}

func TestEditAcrossSitesResetsDepositStatus(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()
	date := testutil.Tomorrow()

	b := createAt(t, f.svc, testutil.CourtSur, date, 20, 0)
	if b.Status != db.BookingStatusPendingProof {
		t.Fatalf("status at sur = %q", b.Status)
	}

	norte := testutil.CourtRapida
	moved, err := f.svc.Edit(ctx, b.ID, EditInput{CourtID: &norte})
	if err != nil {
		t.Fatalf("move to norte: %v", err)
	}
	if moved.SiteID != testutil.SiteNorte || moved.Status != db.BookingStatusNoDepositRequired {
		t.Fatalf("moved to norte: %+v", moved)
	}
	if moved.DepositAmount != 0 || moved.DepositDeadline != nil || moved.Price != 30000 {
		t.Fatalf("deposit fields at norte: %+v", moved)
	}

	f.clock.Advance(3 * time.Hour)
	result, err := f.svc.SweepExpiredDeposits(ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(result.Expired) != 0 || len(result.Cancelled) != 0 {
		t.Fatalf("sweep touched a norte booking: %+v", result)
	}

	sur := testutil.CourtSur
	back, err := f.svc.Edit(ctx, b.ID, EditInput{CourtID: &sur})
	if err != nil {
		t.Fatalf("move back to sur: %v", err)
	}
	if back.Status != db.BookingStatusPendingProof || back.DepositExpired || back.DepositAmount != 25000 {
		t.Fatalf("moved back to sur: %+v", back)
	}
	if want := f.clock.Now().Add(2 * time.Hour); back.DepositDeadline == nil || !back.DepositDeadline.Equal(want) {
		t.Fatalf("deadline = %v, want %v", back.DepositDeadline, want)
	}

	confirmed, err := f.svc.ConfirmDeposit(ctx, b.ID, "caja")
	if err != nil {
		t.Fatalf("confirm after move: %v", err)
	}
	if confirmed.Booking.Status != db.BookingStatusConfirmed {
		t.Fatalf("confirmed: %+v", confirmed.Booking)
	}

	other := createAt(t, f.svc, testutil.CourtSur, date, 21, 0)
	if _, err := f.svc.ConfirmDeposit(ctx, other.ID, "caja"); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	hour := 21
	moved, err = f.svc.Edit(ctx, other.ID, EditInput{CourtID: &norte, Hour: &hour})
	if err != nil {
		t.Fatalf("move confirmed booking: %v", err)
	}
	if moved.Status != db.BookingStatusNoDepositRequired || moved.ConfirmedBy != "" || moved.ConfirmedAt != nil {
		t.Fatalf("confirmation must not follow the booking to norte: %+v", moved)
	}
}

func TestSetCheckedAndList(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	date := testutil.Tomorrow()

	a := createAt(t, f.svc, testutil.CourtRapida, date, 18, 0)
	createAt(t, f.svc, testutil.CourtSur, date, 18, 0)

	checked, err := f.svc.SetChecked(ctx, a.ID, true, "admin")
	if err != nil {
		t.Fatalf("set checked: %v", err)
	}
	if !checked.Checked || checked.CheckedBy != "admin" || checked.CheckedAt == nil {
		t.Fatalf("checked: %+v", checked)
	}
	unchecked, err := f.svc.SetChecked(ctx, a.ID, false, "admin")
	if err != nil || unchecked.Checked || unchecked.CheckedAt != nil {
		t.Fatalf("unchecked: %+v %v", unchecked, err)
	}

	norte, err := f.svc.List(ctx, Filter{Site: testutil.SiteNorte, Dates: []clock.Date{date}})
	if err != nil || len(norte) != 1 || norte[0].ID != a.ID {
		t.Fatalf("site filter: %+v %v", norte, err)
	}
	byCourt, err := f.svc.List(ctx, Filter{CourtIDs: []courts.CourtID{testutil.CourtSur}})
	if err != nil || len(byCourt) != 1 || byCourt[0].CourtID != testutil.CourtSur {
		t.Fatalf("court filter: %+v %v", byCourt, err)
	}

	if _, err := f.svc.AttachProof(ctx, a.ID, "  "); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected proof ref required, got %v", err)
	}
}
