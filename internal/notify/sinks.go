package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/codr1/courtbook/internal/email"
)

// LogSink writes each notification as a structured log line.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger.With().Str("component", "notify_log_sink").Logger()}
}

func (s *LogSink) Name() string {
	return "log"
}

func (s *LogSink) Deliver(_ context.Context, event Event, p Payload) error {
	s.logger.Info().
		Str("notification", string(event)).
		Int64("booking_id", p.BookingID).
		Int64("court_id", p.CourtID).
		Str("site_id", p.SiteID).
		Time("slot_start", p.SlotStart).
		Str("customer", p.CustomerName).
		Int64("price", p.Price).
		Msg("Notification")
	return nil
}

// EmailSink mails the payload's customer through an EmailSender.
type EmailSink struct {
	sender    email.EmailSender
	siteNames map[string]string
	loc       *time.Location
}

func NewEmailSink(sender email.EmailSender, siteNames map[string]string, loc *time.Location) *EmailSink {
	if loc == nil {
		loc = time.UTC
	}
	return &EmailSink{sender: sender, siteNames: siteNames, loc: loc}
}

func (s *EmailSink) Name() string {
	return "email"
}

func (s *EmailSink) Deliver(ctx context.Context, event Event, p Payload) error {
	if p.Email == "" {
		return nil
	}
	msg, err := s.Build(event, p)
	if err != nil {
		return err
	}
	return email.SendMessage(ctx, s.sender, p.Email, msg)
}

// Build renders the message for event without sending it.
func (s *EmailSink) Build(event Event, p Payload) (email.Message, error) {
	date, timeRange := email.FormatDateTimeRange(p.SlotStart.In(s.loc), p.SlotEnd.In(s.loc))
	siteName := s.siteNames[p.SiteID]
	if siteName == "" {
		siteName = p.SiteID
	}

	switch event {
	case EventBookingCreated:
		details := email.BookingDetails{
			SiteName:        siteName,
			CourtName:       p.CourtName,
			Date:            date,
			TimeRange:       timeRange,
			CustomerName:    p.CustomerName,
			PlayerCount:     p.PlayerCount,
			RefereeIncluded: p.RefereeIncluded,
			Price:           p.Price,
			DepositAmount:   p.DepositAmount,
			BookingURL:      p.BookingURL,
		}
		if p.DepositDeadline != nil {
			details.DepositDeadline = p.DepositDeadline.In(s.loc).Format("Jan 2, 3:04 PM MST")
		}
		return email.BuildBookingConfirmation(details), nil
	case EventChallengeMatched:
		return email.BuildChallengeMatched(email.ChallengeMatchedDetails{
			SiteName:     siteName,
			CourtName:    p.CourtName,
			Date:         date,
			TimeRange:    timeRange,
			TeamName:     p.CustomerName,
			OpponentName: p.OpponentName,
			Price:        p.Price,
			TeamShare:    p.TeamShare,
			BookingURL:   p.BookingURL,
		}), nil
	default:
		return email.Message{}, fmt.Errorf("no email template for %s", event)
	}
}

// Publisher is the subset of *amqp.Channel used by AMQPSink.
type Publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes notifications to a topic exchange, routed by event name.
type AMQPSink struct {
	ch       Publisher
	exchange string
	closers  []func() error
}

func NewAMQPSink(ch Publisher, exchange string) *AMQPSink {
	return &AMQPSink{ch: ch, exchange: exchange}
}

// DialAMQP connects, opens a channel and declares a durable topic exchange.
func DialAMQP(url, exchange string) (*AMQPSink, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	sink := NewAMQPSink(ch, exchange)
	sink.closers = []func() error{ch.Close, conn.Close}
	return sink, nil
}

func (s *AMQPSink) Name() string {
	return "amqp"
}

func (s *AMQPSink) Deliver(ctx context.Context, event Event, p Payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	return s.ch.PublishWithContext(ctx, s.exchange, string(event), false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         string(event),
		Body:         body,
	})
}

func (s *AMQPSink) Close() error {
	var firstErr error
	for _, closeFn := range s.closers {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
