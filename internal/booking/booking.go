// Package booking owns the booking lifecycle: create, edit, cancel, proof
// upload, deposit confirmation and the checked flag.
package booking

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/codr1/courtbook/internal/availability"
	"github.com/codr1/courtbook/internal/clock"
	"github.com/codr1/courtbook/internal/contact"
	"github.com/codr1/courtbook/internal/courts"
	"github.com/codr1/courtbook/internal/db"
	"github.com/codr1/courtbook/internal/notify"
	"github.com/codr1/courtbook/internal/pricing"
)

type Booking struct {
	ID              int64           `json:"id"`
	CourtID         courts.CourtID  `json:"court_id"`
	CourtName       string          `json:"court_name"`
	SiteID          courts.SiteID   `json:"site_id"`
	Date            clock.Date      `json:"date"`
	Hour            int             `json:"hour"`
	DisplayHour     int             `json:"display_hour"`
	NextDay         bool            `json:"next_day"`
	SlotStart       time.Time       `json:"slot_start"`
	SlotEnd         time.Time       `json:"slot_end"`
	Customer        contact.Contact `json:"customer"`
	PlayerCount     int             `json:"player_count"`
	Referee         bool            `json:"referee"`
	Price           int64           `json:"price"`
	Status          string          `json:"status"`
	ProofRef        string          `json:"proof_ref,omitempty"`
	DepositAmount   int64           `json:"deposit_amount,omitempty"`
	DepositDeadline *time.Time      `json:"deposit_deadline,omitempty"`
	DepositExpired  bool            `json:"deposit_expired"`
	ConfirmedBy     string          `json:"confirmed_by,omitempty"`
	ConfirmedAt     *time.Time      `json:"confirmed_at,omitempty"`
	Checked         bool            `json:"checked"`
	CheckedBy       string          `json:"checked_by,omitempty"`
	CheckedAt       *time.Time      `json:"checked_at,omitempty"`
	Source          string          `json:"source"`
	CreatedBy       string          `json:"created_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// DepositExpired reports whether a pending booking missed its proof window.
// Expiry is derived on read and never stored.
func DepositExpired(b db.Booking, now time.Time, window time.Duration) bool {
	return b.Status == db.BookingStatusPendingProof &&
		b.ProofRef == "" &&
		now.After(b.DepositFrom.Add(window))
}

// InitialStatus is the status a new booking enters at site.
func InitialStatus(site courts.Site) string {
	if site.DepositRequired {
		return db.BookingStatusPendingProof
	}
	return db.BookingStatusNoDepositRequired
}

func nullTime(t sql.NullTime, loc *time.Location) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.In(loc)
	return &v
}

func (s *Service) view(row db.Booking) Booking {
	loc := s.opts.Location
	date, _ := clock.ParseDate(row.SlotDate)
	slot := availability.SlotForHour(row.SlotHour)

	b := Booking{
		ID:          row.ID,
		CourtID:     courts.CourtID(row.CourtID),
		SiteID:      courts.SiteID(row.SiteID),
		Date:        date,
		Hour:        slot.Hour,
		DisplayHour: slot.DisplayHour,
		NextDay:     slot.NextDay,
		SlotStart:   row.SlotStart.In(loc),
		SlotEnd:     row.SlotStart.Add(time.Hour).In(loc),
		Customer: contact.Contact{
			Name:  row.CustomerName,
			Phone: row.CustomerPhone,
			Email: row.CustomerEmail,
		},
		PlayerCount: row.PlayerCount,
		Referee:     row.Referee,
		Price:       row.Price,
		Status:      row.Status,
		ProofRef:    row.ProofRef,
		ConfirmedBy: row.ConfirmedBy,
		ConfirmedAt: nullTime(row.ConfirmedAt, loc),
		Checked:     row.Checked,
		CheckedBy:   row.CheckedBy,
		CheckedAt:   nullTime(row.CheckedAt, loc),
		Source:      row.Source,
		CreatedBy:   row.CreatedBy,
		CreatedAt:   row.CreatedAt.In(loc),
		UpdatedAt:   row.UpdatedAt.In(loc),
	}
	if court, err := s.registry.Court(b.CourtID); err == nil {
		b.CourtName = court.Name
	}
	if row.Status == db.BookingStatusPendingProof {
		deadline := row.DepositFrom.Add(s.opts.DepositWindow).In(loc)
		b.DepositAmount = pricing.Deposit(row.Price)
		b.DepositDeadline = &deadline
		b.DepositExpired = DepositExpired(row, s.clock.Now(), s.opts.DepositWindow)
	}
	return b
}

// URL is the API location of a booking.
func (s *Service) URL(id int64) string {
	return fmt.Sprintf("%s/api/v1/bookings/%d", s.opts.BaseURL, id)
}

// Payload builds the notification payload for b.
func (s *Service) Payload(b Booking) notify.Payload {
	p := notify.Payload{
		BookingID:       b.ID,
		SlotStart:       b.SlotStart,
		SlotEnd:         b.SlotEnd,
		CourtID:         int64(b.CourtID),
		CourtName:       b.CourtName,
		SiteID:          string(b.SiteID),
		CustomerName:    b.Customer.Name,
		Phone:           b.Customer.Phone,
		Email:           b.Customer.Email,
		Price:           b.Price,
		RefereeIncluded: b.Referee,
		PlayerCount:     b.PlayerCount,
		BookingURL:      s.URL(b.ID),
	}
	if b.DepositDeadline != nil {
		p.DepositAmount = b.DepositAmount
		p.DepositDeadline = b.DepositDeadline
	}
	return p
}
