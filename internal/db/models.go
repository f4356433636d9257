package db

import (
	"database/sql"
	"time"
)

const (
	BookingStatusPendingProof      = "pending_proof"
	BookingStatusNoDepositRequired = "no_deposit_required"
	BookingStatusConfirmed         = "confirmed"

	BookingSourceDirect    = "direct"
	BookingSourceChallenge = "challenge"

	ListingStatusOpen   = "open"
	ListingStatusClosed = "closed"

	PaymentReasonManual  = "manual"
	PaymentReasonDeposit = "deposit"
)

type Booking struct {
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
	ProofRef      string       `db:"proof_ref"`
	ConfirmedBy   string       `db:"confirmed_by"`
	ConfirmedAt   sql.NullTime `db:"confirmed_at"`
	Checked       bool         `db:"checked"`
	CheckedBy     string       `db:"checked_by"`
	CheckedAt     sql.NullTime `db:"checked_at"`
	Source        string       `db:"source"`
	CreatedBy     string       `db:"created_by"`
	DepositFrom   time.Time    `db:"deposit_from"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
}

type SlotClaim struct {
	BookingID int64  `db:"booking_id"`
	CourtID   int64  `db:"court_id"`
	SlotDate  string `db:"slot_date"`
	SlotHour  int    `db:"slot_hour"`
}

type ChallengeListing struct {
	ID            int64          `db:"id"`
	SiteID        string         `db:"site_id"`
	Status        string         `db:"status"`
	RequestedDate string         `db:"requested_date"`
	RequestedHour sql.NullInt64  `db:"requested_hour"`
	CourtID       sql.NullInt64  `db:"court_id"`
	SlotDate      sql.NullString `db:"slot_date"`
	SlotHour      sql.NullInt64  `db:"slot_hour"`
	PlayerCount   int            `db:"player_count"`
	Referee       bool           `db:"referee"`
	TeamShare     int64          `db:"team_share"`
	Team1Name     string         `db:"team1_name"`
	Team1Phone    string         `db:"team1_phone"`
	Team1Email    string         `db:"team1_email"`
	Team2Name     sql.NullString `db:"team2_name"`
	Team2Phone    sql.NullString `db:"team2_phone"`
	Team2Email    sql.NullString `db:"team2_email"`
	BookingID     sql.NullInt64  `db:"booking_id"`
	CreatedBy     string         `db:"created_by"`
	CreatedAt     time.Time      `db:"created_at"`
	MatchedAt     sql.NullTime   `db:"matched_at"`
}

type Payment struct {
	ID             int64     `db:"id"`
	BookingID      int64     `db:"booking_id"`
	Sinpe          int64     `db:"sinpe"`
	Cash           int64     `db:"cash"`
	Reason         string    `db:"reason"`
	Note           string    `db:"note"`
	ReceiptRef     string    `db:"receipt_ref"`
	Complete       bool      `db:"complete"`
	CreatedBy      string    `db:"created_by"`
	IdempotencyKey string    `db:"idempotency_key"`
	CreatedAt      time.Time `db:"created_at"`
}

type Document struct {
	Key         string    `db:"doc_key"`
	Name        string    `db:"name"`
	ContentType string    `db:"content_type"`
	Data        []byte    `db:"data"`
	CreatedAt   time.Time `db:"created_at"`
}

type ClosingReport struct {
	ID            int64     `db:"id"`
	Dates         string    `db:"dates"`
	Note          string    `db:"note"`
	CreatedBy     string    `db:"created_by"`
	BookingCount  int       `db:"booking_count"`
	TotalExpected int64     `db:"total_expected"`
	TotalPaid     int64     `db:"total_paid"`
	TotalSinpe    int64     `db:"total_sinpe"`
	TotalCash     int64     `db:"total_cash"`
	Shortfall     int64     `db:"shortfall"`
	ProblemCount  int       `db:"problem_count"`
	DocumentKey   string    `db:"document_key"`
	DocumentURL   string    `db:"document_url"`
	Snapshot      string    `db:"snapshot"`
	CreatedAt     time.Time `db:"created_at"`
}
