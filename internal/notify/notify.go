// Package notify delivers booking notifications to external sinks. Delivery
// is best-effort: failures are logged and never reach the caller.
package notify

import (
	"context"
	"errors"
	"time"
)

type Event string

const (
	EventBookingCreated   Event = "booking.created"
	EventChallengeMatched Event = "challenge.matched"
)

type Payload struct {
	BookingID       int64     `json:"bookingId"`
	SlotStart       time.Time `json:"slotStart"`
	SlotEnd         time.Time `json:"slotEnd"`
	CourtID         int64     `json:"courtId"`
	CourtName       string    `json:"courtName"`
	SiteID          string    `json:"siteId"`
	CustomerName    string    `json:"customerName"`
	Phone           string    `json:"phone"`
	Email           string    `json:"email"`
	Price           int64     `json:"price"`
	RefereeIncluded bool      `json:"refereeIncluded"`
	PlayerCount     int       `json:"playerCount"`
	BookingURL      string    `json:"bookingUrl"`

	DepositAmount   int64      `json:"depositAmount,omitempty"`
	DepositDeadline *time.Time `json:"depositDeadline,omitempty"`
	ListingID       int64      `json:"listingId,omitempty"`
	OpponentName    string     `json:"opponentName,omitempty"`
	TeamShare       int64      `json:"teamShare,omitempty"`
}

type Sink interface {
	Name() string
	Deliver(ctx context.Context, event Event, payload Payload) error
}

// MultiSink fans a delivery out to every sink and joins their errors.
type MultiSink []Sink

func (m MultiSink) Name() string {
	return "multi"
}

func (m MultiSink) Deliver(ctx context.Context, event Event, payload Payload) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Deliver(ctx, event, payload); err != nil {
			errs = append(errs, &SinkError{Sink: sink.Name(), Err: err})
		}
	}
	return errors.Join(errs...)
}

type SinkError struct {
	Sink string
	Err  error
}

func (e *SinkError) Error() string {
	return e.Sink + ": " + e.Err.Error()
}

func (e *SinkError) Unwrap() error {
	return e.Err
}
