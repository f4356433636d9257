package booking

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/apperr"
	"github.com/codr1/courtbook/internal/availability"
	"github.com/codr1/courtbook/internal/clock"
	"github.com/codr1/courtbook/internal/conflict"
	"github.com/codr1/courtbook/internal/contact"
	"github.com/codr1/courtbook/internal/courts"
	"github.com/codr1/courtbook/internal/db"
	"github.com/codr1/courtbook/internal/notify"
	"github.com/codr1/courtbook/internal/pricing"
	"github.com/codr1/courtbook/internal/slotlock"
)

const EventOperationFailed = "operation_failed"

// Notifier queues best-effort notifications. *notify.Dispatcher satisfies it.
type Notifier interface {
	Dispatch(ctx context.Context, event notify.Event, payload notify.Payload)
}

type noopNotifier struct{}

func (noopNotifier) Dispatch(context.Context, notify.Event, notify.Payload) {}

type Options struct {
	Location          *time.Location
	DepositWindow     time.Duration
	AutoCancelExpired bool
	PhoneRegion       string
	BaseURL           string
}

type Deps struct {
	DB       *db.DB
	Registry *courts.Registry
	Pricing  *pricing.Calculator
	Locker   slotlock.Locker
	Notifier Notifier
	Clock    clock.Clock
}

type Service struct {
	db       *db.DB
	registry *courts.Registry
	engine   *availability.Engine
	resolver *conflict.Resolver
	pricing  *pricing.Calculator
	locker   slotlock.Locker
	notifier Notifier
	clock    clock.Clock
	opts     Options
}

func NewService(deps Deps, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if deps.Clock == nil {
		deps.Clock = clock.New(opts.Location)
	}
	if deps.Locker == nil {
		deps.Locker = slotlock.NewMemory()
	}
	if deps.Notifier == nil {
		deps.Notifier = noopNotifier{}
	}
	return &Service{
		db:       deps.DB,
		registry: deps.Registry,
		engine:   availability.NewEngine(deps.Registry, deps.Clock),
		resolver: conflict.NewResolver(deps.Registry),
		pricing:  deps.Pricing,
		locker:   deps.Locker,
		notifier: deps.Notifier,
		clock:    deps.Clock,
		opts:     opts,
	}
}

func (s *Service) Engine() *availability.Engine {
	return s.engine
}

func (s *Service) Resolver() *conflict.Resolver {
	return s.resolver
}

func (s *Service) Options() Options {
	return s.opts
}

type CreateInput struct {
	CourtID   courts.CourtID
	Date      clock.Date
	Hour      int
	Players   int
	Referee   bool
	Customer  contact.Contact
	CreatedBy string
}

// EditInput carries the fields to change. Nil fields are left as they are.
type EditInput struct {
	CourtID  *courts.CourtID
	Date     *clock.Date
	Hour     *int
	Players  *int
	Referee  *bool
	Price    *int64
	Customer *contact.Contact
}

// Draft is an admitted booking ready to be written.
type Draft struct {
	Court     courts.Court
	Date      clock.Date
	Slot      availability.Slot
	Customer  contact.Contact
	Quote     pricing.Quote
	Source    string
	CreatedBy string
}

// SlotRef names the slot pool of a court on an operating day.
type SlotRef struct {
	CourtID courts.CourtID
	Date    clock.Date
}

func (s *Service) Create(ctx context.Context, in CreateInput) (Booking, error) {
	logger := s.logger(ctx)

	b, err := s.create(ctx, in)
	if err != nil {
		return Booking{}, Fail(logger, "create booking", err)
	}

	logger.Info().
		Int64("booking_id", b.ID).
		Int64("court_id", int64(b.CourtID)).
		Str("date", b.Date.String()).
		Int("hour", b.Hour).
		Int64("price", b.Price).
		Msg("Booking created")

	s.notifier.Dispatch(ctx, notify.EventBookingCreated, s.Payload(b))
	return b, nil
}

func (s *Service) create(ctx context.Context, in CreateInput) (Booking, error) {
	customer, err := contact.Normalize(in.Customer, s.opts.PhoneRegion)
	if err != nil {
		return Booking{}, err
	}
	quote, err := s.pricing.Quote(in.CourtID, in.Players, in.Referee)
	if err != nil {
		return Booking{}, err
	}

	req := conflict.Request{CourtID: in.CourtID, Date: in.Date, Hour: in.Hour}
	court, slot, err := s.Admit(ctx, s.db.Queries, req)
	if err != nil {
		return Booking{}, err
	}

	unlock, err := s.Lock(ctx, SlotRef{CourtID: court.ID, Date: in.Date})
	if err != nil {
		return Booking{}, err
	}
	defer unlock()

	var row db.Booking
	err = s.db.RunInTx(ctx, func(tx *db.DB) error {
		req.Hour = slot.Hour
		if err := s.resolver.Check(ctx, tx.Queries, req); err != nil {
			return err
		}
		row, err = s.Insert(ctx, tx.Queries, Draft{
			Court:     court,
			Date:      in.Date,
			Slot:      slot,
			Customer:  customer,
			Quote:     quote,
			Source:    db.BookingSourceDirect,
			CreatedBy: in.CreatedBy,
		})
		return err
	})
	if err != nil {
		return Booking{}, err
	}
	return s.view(row), nil
}

// Admit checks that the requested hour is bookable at the court's site on
// date and free across the court's linked group. req.Hour may be a display
// hour; the returned slot carries the internal one.
func (s *Service) Admit(ctx context.Context, q *db.Queries, req conflict.Request) (courts.Court, availability.Slot, error) {
	court, err := s.registry.Court(req.CourtID)
	if err != nil {
		return courts.Court{}, availability.Slot{}, err
	}
	slot, err := s.engine.Validate(court.Site, req.Date, req.Hour)
	if err != nil {
		return courts.Court{}, availability.Slot{}, err
	}
	req.Hour = slot.Hour
	if err := s.resolver.Check(ctx, q, req); err != nil {
		return courts.Court{}, availability.Slot{}, err
	}
	return court, slot, nil
}

// Lock takes the writer lock on every referenced slot pool.
func (s *Service) Lock(ctx context.Context, refs ...SlotRef) (slotlock.Unlock, error) {
	keys := make([]string, 0, len(refs))
	for _, ref := range refs {
		key, err := s.registry.SlotKey(ref.CourtID, ref.Date)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	unlock, err := slotlock.TryLockAll(ctx, s.locker, keys...)
	if err != nil {
		if apperr.Kind(err) != nil {
			return nil, err
		}
		return nil, apperr.Upstream("acquire slot lock", err)
	}
	return unlock, nil
}

// Insert writes the booking row and its slot claims on q, which must be a
// transaction. A claim collision surfaces as ErrSlotConflict.
func (s *Service) Insert(ctx context.Context, q *db.Queries, d Draft) (db.Booking, error) {
	site, err := s.registry.Site(d.Court.Site)
	if err != nil {
		return db.Booking{}, err
	}
	row, err := q.CreateBooking(ctx, db.CreateBookingParams{
		CourtID:       int64(d.Court.ID),
		SiteID:        string(d.Court.Site),
		SlotDate:      d.Date.String(),
		SlotHour:      d.Slot.Hour,
		SlotStart:     d.Slot.Start(d.Date, s.opts.Location).UTC(),
		CustomerName:  d.Customer.Name,
		CustomerPhone: d.Customer.Phone,
		CustomerEmail: d.Customer.Email,
		PlayerCount:   d.Quote.PlayerCount,
		Referee:       d.Quote.RefereeIncluded,
		Price:         d.Quote.Total,
		Status:        InitialStatus(site),
		Source:        d.Source,
		CreatedBy:     d.CreatedBy,
		CreatedAt:     s.clock.Now().UTC(),
	})
	if err != nil {
		return db.Booking{}, apperr.Upstream("insert booking", err)
	}
	if err := s.resolver.Claim(ctx, q, row.ID, d.Court.ID, d.Date, d.Slot.Hour); err != nil {
		return db.Booking{}, err
	}
	return row, nil
}

func (s *Service) View(row db.Booking) Booking {
	return s.view(row)
}

// Edit applies in to booking id. Moving the booking re-runs availability and
// conflict checks against the new slot, excluding the booking itself.
func (s *Service) Edit(ctx context.Context, id int64, in EditInput) (Booking, error) {
	logger := s.logger(ctx).With().Int64("booking_id", id).Logger()

	b, err := s.edit(ctx, id, in)
	if err != nil {
		return Booking{}, Fail(logger, "edit booking", err)
	}
	logger.Info().Msg("Booking updated")
	return b, nil
}

func (s *Service) edit(ctx context.Context, id int64, in EditInput) (Booking, error) {
	current, err := s.load(ctx, s.db.Queries, id)
	if err != nil {
		return Booking{}, err
	}
	currentCourt := courts.CourtID(current.CourtID)
	currentDate, err := clock.ParseDate(current.SlotDate)
	if err != nil {
		return Booking{}, apperr.Upstream("parse stored slot date", err)
	}

	courtID := currentCourt
	if in.CourtID != nil {
		courtID = *in.CourtID
	}
	date := currentDate
	if in.Date != nil {
		date = *in.Date
	}
	players := current.PlayerCount
	if in.Players != nil {
		players = *in.Players
	}
	referee := current.Referee
	if in.Referee != nil {
		referee = *in.Referee
	}

	customer := contact.Contact{Name: current.CustomerName, Phone: current.CustomerPhone, Email: current.CustomerEmail}
	if in.Customer != nil {
		customer, err = contact.Normalize(*in.Customer, s.opts.PhoneRegion)
		if err != nil {
			return Booking{}, err
		}
	}

	court, err := s.registry.Court(courtID)
	if err != nil {
		return Booking{}, err
	}

	courtChanged := courtID != currentCourt
	hourChanged := in.Hour != nil && *in.Hour != current.SlotHour && *in.Hour != current.SlotHour%24
	moving := courtChanged || date != currentDate || hourChanged

	slot := availability.SlotForHour(current.SlotHour)
	if moving {
		hour := current.SlotHour
		if in.Hour != nil {
			hour = *in.Hour
		}
		slot, err = s.engine.Validate(court.Site, date, hour)
		if err != nil {
			return Booking{}, err
		}
		moving = courtChanged || date != currentDate || slot.Hour != current.SlotHour
	}

	price := current.Price
	repriced := courtChanged || players != current.PlayerCount || referee != current.Referee
	if repriced {
		quote, err := s.pricing.Quote(courtID, players, referee)
		if err != nil {
			return Booking{}, err
		}
		price = quote.Total
		players = quote.PlayerCount
		referee = quote.RefereeIncluded
	}
	if in.Price != nil {
		if *in.Price < 0 {
			return Booking{}, apperr.Field("price", "must be 0 or greater")
		}
		price = *in.Price
	}

	params := db.UpdateBookingParams{
		ID:            id,
		CourtID:       int64(courtID),
		SiteID:        string(court.Site),
		SlotDate:      date.String(),
		SlotHour:      slot.Hour,
		SlotStart:     slot.Start(date, s.opts.Location).UTC(),
		CustomerName:  customer.Name,
		CustomerPhone: customer.Phone,
		CustomerEmail: customer.Email,
		PlayerCount:   players,
		Referee:       referee,
		Price:         price,
		Status:        current.Status,
		ConfirmedBy:   current.ConfirmedBy,
		ConfirmedAt:   current.ConfirmedAt,
		DepositFrom:   current.DepositFrom,
		UpdatedAt:     s.clock.Now().UTC(),
	}
	if !moving {
		params.SlotStart = current.SlotStart
	}
	if string(court.Site) != current.SiteID {
		if current.Source == db.BookingSourceChallenge {
			return Booking{}, apperr.Field("court_id", "challenge bookings cannot move to another site")
		}
		site, err := s.registry.Site(court.Site)
		if err != nil {
			return Booking{}, err
		}
		params.Status = InitialStatus(site)
		params.ConfirmedBy = ""
		params.ConfirmedAt = sql.NullTime{}
		params.DepositFrom = params.UpdatedAt
	}

	if moving {
		req := conflict.Request{CourtID: courtID, Date: date, Hour: slot.Hour, ExcludeBookingID: id}
		if err := s.resolver.Check(ctx, s.db.Queries, req); err != nil {
			return Booking{}, err
		}
		unlock, err := s.Lock(ctx, SlotRef{CourtID: currentCourt, Date: currentDate}, SlotRef{CourtID: courtID, Date: date})
		if err != nil {
			return Booking{}, err
		}
		defer unlock()
	}

	var row db.Booking
	err = s.db.RunInTx(ctx, func(tx *db.DB) error {
		if moving {
			req := conflict.Request{CourtID: courtID, Date: date, Hour: slot.Hour, ExcludeBookingID: id}
			if err := s.resolver.Check(ctx, tx.Queries, req); err != nil {
				return err
			}
			if err := tx.Queries.DeleteSlotClaims(ctx, id); err != nil {
				return apperr.Upstream("release slot claims", err)
			}
		}
		rows, err := tx.Queries.UpdateBooking(ctx, params)
		if err != nil {
			return apperr.Upstream("update booking", err)
		}
		if rows == 0 {
			return apperr.NotFound("booking", id)
		}
		if moving {
			if err := s.resolver.Claim(ctx, tx.Queries, id, courtID, date, slot.Hour); err != nil {
				return err
			}
		}
		if current.Source == db.BookingSourceChallenge {
			if _, err := tx.Queries.SyncListingSlot(ctx, db.SyncListingSlotParams{
				BookingID:   id,
				CourtID:     int64(courtID),
				SlotDate:    date.String(),
				SlotHour:    slot.Hour,
				PlayerCount: players,
				Referee:     referee,
			}); err != nil {
				return apperr.Upstream("update matched listing", err)
			}
		}
		row, err = s.load(ctx, tx.Queries, id)
		return err
	})
	if err != nil {
		return Booking{}, err
	}
	return s.view(row), nil
}

// Cancel deletes the booking and releases its slot. Bookings with recorded
// payments cannot be cancelled. A challenge listing matched into the booking
// goes back to open.
func (s *Service) Cancel(ctx context.Context, id int64) error {
	logger := s.logger(ctx).With().Int64("booking_id", id).Logger()

	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		return s.cancel(ctx, tx.Queries, id)
	})
	if err != nil {
		return Fail(logger, "cancel booking", err)
	}
	logger.Info().Msg("Booking cancelled")
	return nil
}

func (s *Service) cancel(ctx context.Context, q *db.Queries, id int64) error {
	if _, err := s.load(ctx, q, id); err != nil {
		return err
	}
	totals, err := q.SumPayments(ctx, id)
	if err != nil {
		return apperr.Upstream("sum payments", err)
	}
	if totals.Count > 0 {
		return apperr.Invalid("booking %d has %d recorded payments and cannot be cancelled", id, totals.Count)
	}
	if _, err := q.ReopenListing(ctx, id); err != nil {
		return apperr.Upstream("reopen matched listing", err)
	}
	rows, err := q.DeleteBooking(ctx, id)
	if err != nil {
		return apperr.Upstream("delete booking", err)
	}
	if rows == 0 {
		return apperr.NotFound("booking", id)
	}
	return nil
}

func (s *Service) AttachProof(ctx context.Context, id int64, ref string) (Booking, error) {
	logger := s.logger(ctx).With().Int64("booking_id", id).Logger()

	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Booking{}, Fail(logger, "attach proof", apperr.Field("proof_ref", "is required"))
	}
	rows, err := s.db.Queries.UpdateBookingProof(ctx, id, ref, s.clock.Now().UTC())
	if err != nil {
		return Booking{}, Fail(logger, "attach proof", apperr.Upstream("update proof", err))
	}
	if rows == 0 {
		return Booking{}, Fail(logger, "attach proof", apperr.NotFound("booking", id))
	}
	logger.Info().Msg("Payment proof attached")
	return s.Get(ctx, id)
}

func (s *Service) SetChecked(ctx context.Context, id int64, checked bool, actor string) (Booking, error) {
	logger := s.logger(ctx).With().Int64("booking_id", id).Logger()

	rows, err := s.db.Queries.SetBookingChecked(ctx, id, checked, actor, s.clock.Now().UTC())
	if err != nil {
		return Booking{}, Fail(logger, "set checked", apperr.Upstream("update checked", err))
	}
	if rows == 0 {
		return Booking{}, Fail(logger, "set checked", apperr.NotFound("booking", id))
	}
	logger.Info().Bool("checked", checked).Str("actor", actor).Msg("Booking checked flag updated")
	return s.Get(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (Booking, error) {
	row, err := s.load(ctx, s.db.Queries, id)
	if err != nil {
		return Booking{}, err
	}
	return s.view(row), nil
}

// Filter narrows List. Zero fields do not filter.
type Filter struct {
	Dates    []clock.Date
	From     clock.Date
	To       clock.Date
	Site     courts.SiteID
	CourtIDs []courts.CourtID
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Booking, error) {
	f := db.BookingFilter{SiteID: string(filter.Site)}
	for _, d := range filter.Dates {
		f.Dates = append(f.Dates, d.String())
	}
	if !filter.From.IsZero() {
		f.DateFrom = filter.From.String()
	}
	if !filter.To.IsZero() {
		f.DateTo = filter.To.String()
	}
	for _, id := range filter.CourtIDs {
		f.CourtIDs = append(f.CourtIDs, int64(id))
	}

	rows, err := s.db.Queries.ListBookings(ctx, f)
	if err != nil {
		return nil, apperr.Upstream("list bookings", err)
	}
	out := make([]Booking, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.view(row))
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, q *db.Queries, id int64) (db.Booking, error) {
	row, err := q.GetBooking(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return db.Booking{}, apperr.NotFound("booking", id)
		}
		return db.Booking{}, apperr.Upstream("load booking", err)
	}
	return row, nil
}

func (s *Service) logger(ctx context.Context) zerolog.Logger {
	return log.Ctx(ctx).With().Str("component", "booking_service").Logger()
}

// Fail classifies err and logs it. Caller mistakes are logged at info,
// everything else is an operation failure.
func Fail(logger zerolog.Logger, op string, err error) error {
	if apperr.Kind(err) == nil {
		err = apperr.Upstream(op, err)
	}
	if apperr.Kind(err) == apperr.ErrUpstream {
		logger.Error().Str("event", EventOperationFailed).Str("operation", op).Err(err).Msg("Operation failed")
	} else {
		logger.Info().Str("operation", op).Err(err).Msg("Operation rejected")
	}
	return err
}
