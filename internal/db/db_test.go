package db_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/codr1/courtbook/internal/db"
	"github.com/codr1/courtbook/internal/testutil"
)

func seedBooking(t *testing.T, database *db.DB, courtID int64, date string, hour int) db.Booking {
	t.Helper()
	now := time.Date(2024, time.June, 3, 10, 0, 0, 0, time.UTC)
	booking, err := database.Queries.CreateBooking(context.Background(), db.CreateBookingParams{
		CourtID:       courtID,
		SiteID:        "norte",
		SlotDate:      date,
		SlotHour:      hour,
		SlotStart:     now,
		CustomerName:  "Ana",
		CustomerPhone: "+50688881234",
		Price:         25000,
		Status:        db.BookingStatusNoDepositRequired,
		Source:        db.BookingSourceDirect,
		CreatedAt:     now,
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return booking
}

func TestSlotClaimsRejectDuplicates(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()

	first := seedBooking(t, database, 2, "2024-06-04", 18)
	second := seedBooking(t, database, 3, "2024-06-04", 18)

	if err := database.Queries.InsertSlotClaim(ctx, db.SlotClaim{BookingID: first.ID, CourtID: 1, SlotDate: "2024-06-04", SlotHour: 18}); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	err := database.Queries.InsertSlotClaim(ctx, db.SlotClaim{BookingID: second.ID, CourtID: 1, SlotDate: "2024-06-04", SlotHour: 18})
	if !db.IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}

	// Same court on another hour is fine.
	if err := database.Queries.InsertSlotClaim(ctx, db.SlotClaim{BookingID: second.ID, CourtID: 1, SlotDate: "2024-06-04", SlotHour: 19}); err != nil {
		t.Fatalf("other hour claim: %v", err)
	}
}

func TestDeleteBookingCascadesClaims(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()

	booking := seedBooking(t, database, 2, "2024-06-04", 18)
	if err := database.Queries.InsertSlotClaim(ctx, db.SlotClaim{BookingID: booking.ID, CourtID: 2, SlotDate: "2024-06-04", SlotHour: 18}); err != nil {
		t.Fatalf("claim: %v", err)
	}

	deleted, err := database.Queries.DeleteBooking(ctx, booking.ID)
	if err != nil || deleted != 1 {
		t.Fatalf("delete booking: %d %v", deleted, err)
	}
	claims, err := database.Queries.ListSlotClaims(ctx, booking.ID)
	if err != nil {
		t.Fatalf("list claims: %v", err)
	}
	if len(claims) != 0 {
		t.Fatalf("expected claims to cascade, got %d", len(claims))
	}
}

func TestRunInTxRollsBack(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()

	booking := seedBooking(t, database, 2, "2024-06-04", 18)
	err := database.RunInTx(ctx, func(tx *db.DB) error {
		if err := tx.Queries.InsertSlotClaim(ctx, db.SlotClaim{BookingID: booking.ID, CourtID: 2, SlotDate: "2024-06-04", SlotHour: 18}); err != nil {
			return err
		}
		return tx.Queries.InsertSlotClaim(ctx, db.SlotClaim{BookingID: booking.ID, CourtID: 2, SlotDate: "2024-06-04", SlotHour: 18})
	})
	if !db.IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}

	claims, err := database.Queries.ListSlotClaims(ctx, booking.ID)
	if err != nil {
		t.Fatalf("list claims: %v", err)
	}
	if len(claims) != 0 {
		t.Fatalf("expected rollback to discard claims, got %d", len(claims))
	}
}

func TestListBookingsFilters(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()

	seedBooking(t, database, 2, "2024-06-04", 18)
	seedBooking(t, database, 3, "2024-06-04", 17)
	seedBooking(t, database, 2, "2024-06-05", 9)

	all, err := database.Queries.ListBookings(ctx, db.BookingFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 bookings, got %d", len(all))
	}
	if all[0].SlotHour != 17 || all[2].SlotDate != "2024-06-05" {
		t.Fatalf("unexpected order: %+v", all)
	}

	filtered, err := database.Queries.ListBookings(ctx, db.BookingFilter{Dates: []string{"2024-06-04"}, CourtIDs: []int64{2}})
	if err != nil {
		t.Fatalf("list filtered: %v", err)
	}
	if len(filtered) != 1 || filtered[0].SlotHour != 18 {
		t.Fatalf("unexpected filtered result: %+v", filtered)
	}

	hours, err := database.Queries.ListBookingHours(ctx, "2024-06-04", []int64{1, 2, 3}, 0)
	if err != nil {
		t.Fatalf("hours: %v", err)
	}
	if len(hours) != 2 || hours[0] != 17 || hours[1] != 18 {
		t.Fatalf("hours: %v", hours)
	}
}

func TestPaymentsConstraints(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	booking := seedBooking(t, database, 2, "2024-06-04", 18)
	now := time.Now().UTC()

	deposit := db.CreatePaymentParams{
		BookingID:      booking.ID,
		Sinpe:          12500,
		Reason:         db.PaymentReasonDeposit,
		IdempotencyKey: "deposit-1",
		CreatedAt:      now,
	}
	if _, err := database.Queries.CreatePayment(ctx, deposit); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	deposit.IdempotencyKey = "deposit-2"
	if _, err := database.Queries.CreatePayment(ctx, deposit); !db.IsUniqueViolation(err) {
		t.Fatalf("expected second deposit to violate unique index, got %v", err)
	}

	_, err := database.Queries.CreatePayment(ctx, db.CreatePaymentParams{
		BookingID:      booking.ID,
		Reason:         db.PaymentReasonManual,
		IdempotencyKey: "zero",
		CreatedAt:      now,
	})
	if err == nil {
		t.Fatalf("expected zero payment to fail check constraint")
	}

	if _, err := database.ExecContext(ctx, "UPDATE payments SET cash = 1"); err == nil {
		t.Fatalf("expected payments to be append-only")
	}

	totals, err := database.Queries.SumPayments(ctx, booking.ID)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if totals.Count != 1 || totals.Paid() != 12500 {
		t.Fatalf("totals: %+v", totals)
	}
}

func TestCloseListingOnlyOnce(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	listing, err := database.Queries.CreateListing(ctx, db.CreateListingParams{
		SiteID:      "norte",
		PlayerCount: 8,
		TeamShare:   22500,
		Team1Name:   "Los Tigres",
		Team1Phone:  "+50688881234",
		CreatedAt:   now,
	})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	if listing.Status != db.ListingStatusOpen || listing.BookingID.Valid {
		t.Fatalf("unexpected listing: %+v", listing)
	}

	booking := seedBooking(t, database, 1, "2024-06-04", 20)
	params := db.CloseListingParams{
		ID:          listing.ID,
		BookingID:   booking.ID,
		CourtID:     1,
		SlotDate:    "2024-06-04",
		SlotHour:    20,
		PlayerCount: 8,
		Team2Name:   "Las Aguilas",
		Team2Phone:  "+50677771234",
		Team2Email:  sql.NullString{},
		MatchedAt:   now,
	}
	updated, err := database.Queries.CloseListing(ctx, params)
	if err != nil || updated != 1 {
		t.Fatalf("close listing: %d %v", updated, err)
	}
	updated, err = database.Queries.CloseListing(ctx, params)
	if err != nil || updated != 0 {
		t.Fatalf("second close should be a no-op: %d %v", updated, err)
	}

	hours, err := database.Queries.ListClosedListingHours(ctx, "2024-06-04", []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("closed hours: %v", err)
	}
	if len(hours) != 1 || hours[0] != 20 {
		t.Fatalf("closed hours: %v", hours)
	}

	deleted, err := database.Queries.DeleteOpenListing(ctx, listing.ID)
	if err != nil || deleted != 0 {
		t.Fatalf("closed listing must not be deleted: %d %v", deleted, err)
	}
}

func TestClosingReportsImmutable(t *testing.T) {
	database := testutil.NewTestDB(t)
	ctx := context.Background()

	report, err := database.Queries.CreateClosingReport(ctx, db.CreateClosingReportParams{
		Dates:         "2024-06-04",
		TotalExpected: 50000,
		TotalPaid:     20000,
		Shortfall:     30000,
		Snapshot:      "{}",
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("create report: %v", err)
	}
	if _, err := database.ExecContext(ctx, "UPDATE closing_reports SET total_paid = 0 WHERE id = ?", report.ID); err == nil {
		t.Fatalf("expected closing reports to be immutable")
	}

	got, err := database.Queries.GetClosingReport(ctx, report.ID)
	if err != nil {
		t.Fatalf("get report: %v", err)
	}
	if got.TotalPaid != 20000 {
		t.Fatalf("total paid changed: %d", got.TotalPaid)
	}

	if _, err := database.Queries.GetClosingReport(ctx, report.ID+1); !db.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
