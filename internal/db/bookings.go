package db

import (
	"context"
	"database/sql"
	"strings"
	"time"
)

const bookingColumns = `id, court_id, site_id, slot_date, slot_hour, slot_start, customer_name,
	customer_phone, customer_email, player_count, referee, price, status, proof_ref,
	confirmed_by, confirmed_at, checked, checked_by, checked_at, source, created_by,
	deposit_from, created_at, updated_at`

type CreateBookingParams struct {
	CourtID       int64     `db:"court_id"`
	SiteID        string    `db:"site_id"`
	SlotDate      string    `db:"slot_date"`
	SlotHour      int       `db:"slot_hour"`
	SlotStart     time.Time `db:"slot_start"`
	CustomerName  string    `db:"customer_name"`
	CustomerPhone string    `db:"customer_phone"`
	CustomerEmail string    `db:"customer_email"`
	PlayerCount   int       `db:"player_count"`
	Referee       bool      `db:"referee"`
	Price         int64     `db:"price"`
	Status        string    `db:"status"`
	Source        string    `db:"source"`
	CreatedBy     string    `db:"created_by"`
	CreatedAt     time.Time `db:"created_at"`
}

func (q *Queries) CreateBooking(ctx context.Context, arg CreateBookingParams) (Booking, error) {
	id, err := q.insert(ctx, `
		INSERT INTO bookings (
			court_id, site_id, slot_date, slot_hour, slot_start, customer_name, customer_phone,
			customer_email, player_count, referee, price, status, source, created_by,
			deposit_from, created_at, updated_at
		) VALUES (
			:court_id, :site_id, :slot_date, :slot_hour, :slot_start, :customer_name, :customer_phone,
			:customer_email, :player_count, :referee, :price, :status, :source, :created_by,
			:created_at, :created_at, :created_at
		)`, arg)
	if err != nil {
		return Booking{}, err
	}
	return q.GetBooking(ctx, id)
}

func (q *Queries) GetBooking(ctx context.Context, id int64) (Booking, error) {
	var b Booking
	err := q.get(ctx, &b, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id)
	return b, err
}

type UpdateBookingParams struct {
	ID            int64        `db:"id"`
	CourtID       int64        `db:"court_id"`
	SiteID        string       `db:"site_id"`
	SlotDate      string       `db:"slot_date"`
	SlotHour      int          `db:"slot_hour"`
	SlotStart     time.Time    `db:"slot_start"`
	CustomerName  string       `db:"customer_name"`
	CustomerPhone string       `db:"customer_phone"`
	CustomerEmail string       `db:"customer_email"`
	PlayerCount   int          `db:"player_count"`
	Referee       bool         `db:"referee"`
	Price         int64        `db:"price"`
	Status        string       `db:"status"`
	ConfirmedBy   string       `db:"confirmed_by"`
	ConfirmedAt   sql.NullTime `db:"confirmed_at"`
	DepositFrom   time.Time    `db:"deposit_from"`
	UpdatedAt     time.Time    `db:"updated_at"`
}

func (q *Queries) UpdateBooking(ctx context.Context, arg UpdateBookingParams) (int64, error) {
	return rowsAffected(q.namedExec(ctx, `
		UPDATE bookings SET
			court_id = :court_id,
			site_id = :site_id,
			slot_date = :slot_date,
			slot_hour = :slot_hour,
			slot_start = :slot_start,
			customer_name = :customer_name,
			customer_phone = :customer_phone,
			customer_email = :customer_email,
			player_count = :player_count,
			referee = :referee,
			price = :price,
			status = :status,
			confirmed_by = :confirmed_by,
			confirmed_at = :confirmed_at,
			deposit_from = :deposit_from,
			updated_at = :updated_at
		WHERE id = :id`, arg))
}

func (q *Queries) UpdateBookingProof(ctx context.Context, id int64, proofRef string, updatedAt time.Time) (int64, error) {
	return rowsAffected(q.exec(ctx,
		`UPDATE bookings SET proof_ref = ?, updated_at = ? WHERE id = ?`,
		proofRef, updatedAt, id,
	))
}

func (q *Queries) ConfirmBooking(ctx context.Context, id int64, confirmedBy string, confirmedAt time.Time) (int64, error) {
	return rowsAffected(q.exec(ctx,
		`UPDATE bookings
		SET status = 'confirmed', confirmed_by = ?, confirmed_at = ?, updated_at = ?
		WHERE id = ?`,
		confirmedBy, confirmedAt, confirmedAt, id,
	))
}

func (q *Queries) SetBookingChecked(ctx context.Context, id int64, checked bool, checkedBy string, checkedAt time.Time) (int64, error) {
	var at sql.NullTime
	if checked {
		at = sql.NullTime{Time: checkedAt, Valid: true}
	} else {
		checkedBy = ""
	}
	return rowsAffected(q.exec(ctx,
		`UPDATE bookings SET checked = ?, checked_by = ?, checked_at = ?, updated_at = ? WHERE id = ?`,
		checked, checkedBy, at, checkedAt, id,
	))
}

func (q *Queries) DeleteBooking(ctx context.Context, id int64) (int64, error) {
	return rowsAffected(q.exec(ctx, `DELETE FROM bookings WHERE id = ?`, id))
}

// BookingFilter narrows ListBookings. Empty fields do not filter.
type BookingFilter struct {
	Dates    []string
	DateFrom string
	DateTo   string
	SiteID   string
	CourtIDs []int64
}

func (q *Queries) ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Dates) > 0 {
		where = append(where, "slot_date IN (?)")
		args = append(args, filter.Dates)
	}
	if filter.DateFrom != "" {
		where = append(where, "slot_date >= ?")
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		where = append(where, "slot_date <= ?")
		args = append(args, filter.DateTo)
	}
	if filter.SiteID != "" {
		where = append(where, "site_id = ?")
		args = append(args, filter.SiteID)
	}
	if len(filter.CourtIDs) > 0 {
		where = append(where, "court_id IN (?)")
		args = append(args, filter.CourtIDs)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY slot_date, slot_hour, court_id, id"

	bookings := []Booking{}
	if err := q.selectIn(ctx, &bookings, query, args...); err != nil {
		return nil, err
	}
	return bookings, nil
}

// ListBookingHours returns the hours held on date by bookings on any of
// courtIDs, skipping excludeID.
func (q *Queries) ListBookingHours(ctx context.Context, date string, courtIDs []int64, excludeID int64) ([]int, error) {
	hours := []int{}
	err := q.selectIn(ctx, &hours, `
		SELECT DISTINCT slot_hour FROM bookings
		WHERE slot_date = ? AND court_id IN (?) AND id != ?
		ORDER BY slot_hour`,
		date, courtIDs, excludeID,
	)
	return hours, err
}

// ListAwaitingProof returns pending-proof bookings that have no proof yet.
func (q *Queries) ListAwaitingProof(ctx context.Context) ([]Booking, error) {
	bookings := []Booking{}
	err := q.selectAll(ctx, &bookings, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = 'pending_proof' AND proof_ref = ''
		ORDER BY id`,
	)
	return bookings, err
}

func (q *Queries) InsertSlotClaim(ctx context.Context, claim SlotClaim) error {
	_, err := q.namedExec(ctx, `
		INSERT INTO slot_claims (booking_id, court_id, slot_date, slot_hour)
		VALUES (:booking_id, :court_id, :slot_date, :slot_hour)`, claim)
	return err
}

func (q *Queries) DeleteSlotClaims(ctx context.Context, bookingID int64) error {
	_, err := q.exec(ctx, `DELETE FROM slot_claims WHERE booking_id = ?`, bookingID)
	return err
}

func (q *Queries) ListSlotClaims(ctx context.Context, bookingID int64) ([]SlotClaim, error) {
	claims := []SlotClaim{}
	err := q.selectAll(ctx, &claims,
		`SELECT booking_id, court_id, slot_date, slot_hour FROM slot_claims WHERE booking_id = ? ORDER BY court_id`,
		bookingID,
	)
	return claims, err
}
