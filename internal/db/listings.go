package db

import (
	"context"
	"database/sql"
	"time"
)

const listingColumns = `id, site_id, status, requested_date, requested_hour, court_id, slot_date,
	slot_hour, player_count, referee, team_share, team1_name, team1_phone, team1_email,
	team2_name, team2_phone, team2_email, booking_id, created_by, created_at, matched_at`

type CreateListingParams struct {
	SiteID        string        `db:"site_id"`
	RequestedDate string        `db:"requested_date"`
	RequestedHour sql.NullInt64 `db:"requested_hour"`
	PlayerCount   int           `db:"player_count"`
	Referee       bool          `db:"referee"`
	TeamShare     int64         `db:"team_share"`
	Team1Name     string        `db:"team1_name"`
	Team1Phone    string        `db:"team1_phone"`
	Team1Email    string        `db:"team1_email"`
	CreatedBy     string        `db:"created_by"`
	CreatedAt     time.Time     `db:"created_at"`
}

func (q *Queries) CreateListing(ctx context.Context, arg CreateListingParams) (ChallengeListing, error) {
	id, err := q.insert(ctx, `
		INSERT INTO challenge_listings (
			site_id, status, requested_date, requested_hour, player_count, referee, team_share,
			team1_name, team1_phone, team1_email, created_by, created_at
		) VALUES (
			:site_id, 'open', :requested_date, :requested_hour, :player_count, :referee, :team_share,
			:team1_name, :team1_phone, :team1_email, :created_by, :created_at
		)`, arg)
	if err != nil {
		return ChallengeListing{}, err
	}
	return q.GetListing(ctx, id)
}

func (q *Queries) GetListing(ctx context.Context, id int64) (ChallengeListing, error) {
	var l ChallengeListing
	err := q.get(ctx, &l, `SELECT `+listingColumns+` FROM challenge_listings WHERE id = ?`, id)
	return l, err
}

type ListingFilter struct {
	SiteID string
	Status string
}

func (q *Queries) ListListings(ctx context.Context, filter ListingFilter) ([]ChallengeListing, error) {
	listings := []ChallengeListing{}
	err := q.selectAll(ctx, &listings, `
		SELECT `+listingColumns+` FROM challenge_listings
		WHERE (? = '' OR site_id = ?) AND (? = '' OR status = ?)
		ORDER BY created_at DESC, id DESC`,
		filter.SiteID, filter.SiteID, filter.Status, filter.Status,
	)
	return listings, err
}

// ListClosedListingHours returns hours held on date by matched listings on
// any of courtIDs.
func (q *Queries) ListClosedListingHours(ctx context.Context, date string, courtIDs []int64) ([]int, error) {
	hours := []int{}
	err := q.selectIn(ctx, &hours, `
		SELECT DISTINCT slot_hour FROM challenge_listings
		WHERE status = 'closed' AND booking_id IS NOT NULL
			AND slot_date = ? AND court_id IN (?)
		ORDER BY slot_hour`,
		date, courtIDs,
	)
	return hours, err
}

type CloseListingParams struct {
	ID          int64          `db:"id"`
	BookingID   int64          `db:"booking_id"`
	CourtID     int64          `db:"court_id"`
	SlotDate    string         `db:"slot_date"`
	SlotHour    int            `db:"slot_hour"`
	PlayerCount int            `db:"player_count"`
	Referee     bool           `db:"referee"`
	Team2Name   string         `db:"team2_name"`
	Team2Phone  string         `db:"team2_phone"`
	Team2Email  sql.NullString `db:"team2_email"`
	MatchedAt   time.Time      `db:"matched_at"`
}

// CloseListing moves an open listing to closed. It affects zero rows when the
// listing is already matched.
func (q *Queries) CloseListing(ctx context.Context, arg CloseListingParams) (int64, error) {
	return rowsAffected(q.namedExec(ctx, `
		UPDATE challenge_listings SET
			status = 'closed',
			booking_id = :booking_id,
			court_id = :court_id,
			slot_date = :slot_date,
			slot_hour = :slot_hour,
			player_count = :player_count,
			referee = :referee,
			team2_name = :team2_name,
			team2_phone = :team2_phone,
			team2_email = :team2_email,
			matched_at = :matched_at
		WHERE id = :id AND status = 'open' AND booking_id IS NULL`, arg))
}

type SyncListingSlotParams struct {
	BookingID   int64  `db:"booking_id"`
	CourtID     int64  `db:"court_id"`
	SlotDate    string `db:"slot_date"`
	SlotHour    int    `db:"slot_hour"`
	PlayerCount int    `db:"player_count"`
	Referee     bool   `db:"referee"`
}

// SyncListingSlot copies a matched booking's slot back onto its listing.
func (q *Queries) SyncListingSlot(ctx context.Context, arg SyncListingSlotParams) (int64, error) {
	return rowsAffected(q.namedExec(ctx, `
		UPDATE challenge_listings SET
			court_id = :court_id,
			slot_date = :slot_date,
			slot_hour = :slot_hour,
			player_count = :player_count,
			referee = :referee
		WHERE booking_id = :booking_id AND status = 'closed'`, arg))
}

// ReopenListing returns the listing matched into bookingID to open, clearing
// the opponent and the slot it was given.
func (q *Queries) ReopenListing(ctx context.Context, bookingID int64) (int64, error) {
	return rowsAffected(q.exec(ctx, `
		UPDATE challenge_listings SET
			status = 'open',
			booking_id = NULL,
			court_id = NULL,
			slot_date = NULL,
			slot_hour = NULL,
			team2_name = NULL,
			team2_phone = NULL,
			team2_email = NULL,
			matched_at = NULL
		WHERE booking_id = ?`, bookingID,
	))
}

func (q *Queries) DeleteOpenListing(ctx context.Context, id int64) (int64, error) {
	return rowsAffected(q.exec(ctx,
		`DELETE FROM challenge_listings WHERE id = ? AND status = 'open'`, id,
	))
}
