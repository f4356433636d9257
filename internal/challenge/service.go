// Package challenge runs open-challenge listings: a team posts a listing, an
// opponent takes it, and the match produces a booking.
package challenge

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/apperr"
	"github.com/codr1/courtbook/internal/booking"
	"github.com/codr1/courtbook/internal/clock"
	"github.com/codr1/courtbook/internal/conflict"
	"github.com/codr1/courtbook/internal/contact"
	"github.com/codr1/courtbook/internal/courts"
	"github.com/codr1/courtbook/internal/db"
	"github.com/codr1/courtbook/internal/notify"
	"github.com/codr1/courtbook/internal/pricing"
)

type Listing struct {
	ID            int64            `json:"id"`
	SiteID        courts.SiteID    `json:"site_id"`
	Status        string           `json:"status"`
	RequestedDate *clock.Date      `json:"requested_date,omitempty"`
	RequestedHour *int             `json:"requested_hour,omitempty"`
	PlayerCount   int              `json:"player_count"`
	Referee       bool             `json:"referee"`
	TeamShare     int64            `json:"team_share"`
	Team1         contact.Contact  `json:"team1"`
	Team2         *contact.Contact `json:"team2,omitempty"`
	CourtID       *courts.CourtID  `json:"court_id,omitempty"`
	Date          *clock.Date      `json:"date,omitempty"`
	Hour          *int             `json:"hour,omitempty"`
	BookingID     *int64           `json:"booking_id,omitempty"`
	CreatedBy     string           `json:"created_by,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	MatchedAt     *time.Time       `json:"matched_at,omitempty"`
}

type CreateInput struct {
	Site          courts.SiteID
	Players       int
	Referee       bool
	Team1         contact.Contact
	RequestedDate *clock.Date
	RequestedHour *int
	CreatedBy     string
}

// MatchInput places a listing on a slot. A zero CourtID means the site's
// challenge court; nil Players and Referee keep the listing's values.
type MatchInput struct {
	CourtID   courts.CourtID
	Date      clock.Date
	Hour      int
	Players   *int
	Referee   *bool
	Team2     contact.Contact
	CreatedBy string
}

type MatchResult struct {
	Listing Listing         `json:"listing"`
	Booking booking.Booking `json:"booking"`
}

type Filter struct {
	Site   courts.SiteID
	Status string
}

type Service struct {
	db       *db.DB
	registry *courts.Registry
	pricing  *pricing.Calculator
	bookings *booking.Service
	notifier booking.Notifier
	clock    clock.Clock
}

type discard struct{}

func (discard) Dispatch(context.Context, notify.Event, notify.Payload) {}

func NewService(database *db.DB, registry *courts.Registry, calc *pricing.Calculator, bookings *booking.Service, notifier booking.Notifier, clk clock.Clock) *Service {
	if notifier == nil {
		notifier = discard{}
	}
	return &Service{
		db:       database,
		registry: registry,
		pricing:  calc,
		bookings: bookings,
		notifier: notifier,
		clock:    clk,
	}
}

// Create opens a listing. The per-team share is quoted on the site's
// challenge court and is informational only.
func (s *Service) Create(ctx context.Context, in CreateInput) (Listing, error) {
	logger := s.logger(ctx)

	l, err := s.create(ctx, in)
	if err != nil {
		return Listing{}, booking.Fail(logger, "create challenge", err)
	}
	logger.Info().Int64("listing_id", l.ID).Str("site", string(l.SiteID)).Int64("team_share", l.TeamShare).Msg("Challenge listed")
	return l, nil
}

func (s *Service) create(ctx context.Context, in CreateInput) (Listing, error) {
	site, err := s.registry.Site(in.Site)
	if err != nil {
		return Listing{}, err
	}
	if site.ChallengeCourt == 0 {
		return Listing{}, apperr.Invalid("site %s does not host challenges", site.ID)
	}
	team1, err := contact.NormalizeField(in.Team1, s.bookings.Options().PhoneRegion, "team1.")
	if err != nil {
		return Listing{}, err
	}
	quote, err := s.pricing.Quote(site.ChallengeCourt, in.Players, in.Referee)
	if err != nil {
		return Listing{}, err
	}

	params := db.CreateListingParams{
		SiteID:      string(site.ID),
		PlayerCount: quote.PlayerCount,
		Referee:     quote.RefereeIncluded,
		TeamShare:   quote.TeamShare,
		Team1Name:   team1.Name,
		Team1Phone:  team1.Phone,
		Team1Email:  team1.Email,
		CreatedBy:   in.CreatedBy,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if in.RequestedDate != nil {
		if in.RequestedDate.Before(clock.Today(s.clock)) {
			return Listing{}, apperr.InvalidDate("requested date %s is in the past", in.RequestedDate)
		}
		params.RequestedDate = in.RequestedDate.String()
	}
	if in.RequestedHour != nil {
		if *in.RequestedHour < 0 || *in.RequestedHour > 23 {
			return Listing{}, apperr.Field("requested_hour", "must be between 0 and 23")
		}
		params.RequestedHour = sql.NullInt64{Int64: int64(*in.RequestedHour), Valid: true}
	}

	row, err := s.db.Queries.CreateListing(ctx, params)
	if err != nil {
		return Listing{}, apperr.Upstream("insert listing", err)
	}
	return s.view(row), nil
}

// Match books the slot for team 1, closes the listing with team 2's details
// and notifies both teams. The booking and the listing change commit
// together or not at all.
func (s *Service) Match(ctx context.Context, id int64, in MatchInput) (MatchResult, error) {
	logger := s.logger(ctx).With().Int64("listing_id", id).Logger()

	result, err := s.match(ctx, id, in)
	if err != nil {
		return MatchResult{}, booking.Fail(logger, "match challenge", err)
	}

	logger.Info().
		Int64("booking_id", result.Booking.ID).
		Int64("court_id", int64(result.Booking.CourtID)).
		Str("date", result.Booking.Date.String()).
		Int("hour", result.Booking.Hour).
		Msg("Challenge matched")

	for _, payload := range s.payloads(result) {
		s.notifier.Dispatch(ctx, notify.EventChallengeMatched, payload)
	}
	return result, nil
}

func (s *Service) match(ctx context.Context, id int64, in MatchInput) (MatchResult, error) {
	current, err := s.load(ctx, s.db.Queries, id)
	if err != nil {
		return MatchResult{}, err
	}
	if current.Status != db.ListingStatusOpen {
		return MatchResult{}, apperr.Invalid("challenge %d is already matched", id)
	}

	team2, err := contact.NormalizeField(in.Team2, s.bookings.Options().PhoneRegion, "team2.")
	if err != nil {
		return MatchResult{}, err
	}
	team1 := contact.Contact{Name: current.Team1Name, Phone: current.Team1Phone, Email: current.Team1Email}

	site, err := s.registry.Site(courts.SiteID(current.SiteID))
	if err != nil {
		return MatchResult{}, err
	}
	courtID := in.CourtID
	if courtID == 0 {
		courtID = site.ChallengeCourt
	}
	court, err := s.registry.Court(courtID)
	if err != nil {
		return MatchResult{}, err
	}
	if court.Site != site.ID {
		return MatchResult{}, apperr.Field("court_id", "must be a court at the listing's site")
	}

	players := current.PlayerCount
	if in.Players != nil {
		players = *in.Players
	}
	referee := current.Referee
	if in.Referee != nil {
		referee = *in.Referee
	}
	quote, err := s.pricing.Quote(courtID, players, referee)
	if err != nil {
		return MatchResult{}, err
	}

	req := conflict.Request{CourtID: courtID, Date: in.Date, Hour: in.Hour, IncludeChallenges: true}
	_, slot, err := s.bookings.Admit(ctx, s.db.Queries, req)
	if err != nil {
		return MatchResult{}, err
	}
	req.Hour = slot.Hour

	unlock, err := s.bookings.Lock(ctx, booking.SlotRef{CourtID: courtID, Date: in.Date})
	if err != nil {
		return MatchResult{}, err
	}
	defer unlock()

	var (
		bookingRow db.Booking
		listingRow db.ChallengeListing
	)
	err = s.db.RunInTx(ctx, func(tx *db.DB) error {
		if err := s.bookings.Resolver().Check(ctx, tx.Queries, req); err != nil {
			return err
		}
		var err error
		bookingRow, err = s.bookings.Insert(ctx, tx.Queries, booking.Draft{
			Court:     court,
			Date:      in.Date,
			Slot:      slot,
			Customer:  team1,
			Quote:     quote,
			Source:    db.BookingSourceChallenge,
			CreatedBy: in.CreatedBy,
		})
		if err != nil {
			return err
		}

		team2Email := sql.NullString{String: team2.Email, Valid: team2.Email != ""}
		rows, err := tx.Queries.CloseListing(ctx, db.CloseListingParams{
			ID:          id,
			BookingID:   bookingRow.ID,
			CourtID:     int64(courtID),
			SlotDate:    in.Date.String(),
			SlotHour:    slot.Hour,
			PlayerCount: quote.PlayerCount,
			Referee:     quote.RefereeIncluded,
			Team2Name:   team2.Name,
			Team2Phone:  team2.Phone,
			Team2Email:  team2Email,
			MatchedAt:   s.clock.Now().UTC(),
		})
		if err != nil {
			return apperr.Upstream("close listing", err)
		}
		if rows == 0 {
			return apperr.Invalid("challenge %d was matched or deleted concurrently", id)
		}
		listingRow, err = s.load(ctx, tx.Queries, id)
		return err
	})
	if err != nil {
		return MatchResult{}, err
	}

	return MatchResult{Listing: s.view(listingRow), Booking: s.bookings.View(bookingRow)}, nil
}

func (s *Service) payloads(result MatchResult) []notify.Payload {
	l := result.Listing
	first := s.bookings.Payload(result.Booking)
	first.ListingID = l.ID
	first.TeamShare = l.TeamShare
	first.DepositAmount = 0
	first.DepositDeadline = nil
	if l.Team2 != nil {
		first.OpponentName = l.Team2.Name
	}

	second := first
	second.OpponentName = l.Team1.Name
	if l.Team2 != nil {
		second.CustomerName = l.Team2.Name
		second.Phone = l.Team2.Phone
		second.Email = l.Team2.Email
	}
	return []notify.Payload{first, second}
}

// Delete removes an open listing. Matched listings are permanent.
func (s *Service) Delete(ctx context.Context, id int64) error {
	logger := s.logger(ctx).With().Int64("listing_id", id).Logger()

	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		current, err := s.load(ctx, tx.Queries, id)
		if err != nil {
			return err
		}
		if current.Status != db.ListingStatusOpen {
			return apperr.Invalid("challenge %d is matched and cannot be deleted", id)
		}
		rows, err := tx.Queries.DeleteOpenListing(ctx, id)
		if err != nil {
			return apperr.Upstream("delete listing", err)
		}
		if rows == 0 {
			return apperr.NotFound("challenge", id)
		}
		return nil
	})
	if err != nil {
		return booking.Fail(logger, "delete challenge", err)
	}
	logger.Info().Msg("Challenge deleted")
	return nil
}

func (s *Service) Get(ctx context.Context, id int64) (Listing, error) {
	row, err := s.load(ctx, s.db.Queries, id)
	if err != nil {
		return Listing{}, err
	}
	return s.view(row), nil
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Listing, error) {
	switch filter.Status {
	case "", db.ListingStatusOpen, db.ListingStatusClosed:
	default:
		return nil, apperr.Field("status", "must be open or closed")
	}
	rows, err := s.db.Queries.ListListings(ctx, db.ListingFilter{SiteID: string(filter.Site), Status: filter.Status})
	if err != nil {
		return nil, apperr.Upstream("list listings", err)
	}
	out := make([]Listing, 0, len(rows))
	for _, row := range rows {
		out = append(out, s.view(row))
	}
	return out, nil
}

func (s *Service) load(ctx context.Context, q *db.Queries, id int64) (db.ChallengeListing, error) {
	row, err := q.GetListing(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return db.ChallengeListing{}, apperr.NotFound("challenge", id)
		}
		return db.ChallengeListing{}, apperr.Upstream("load listing", err)
	}
	return row, nil
}

func (s *Service) view(row db.ChallengeListing) Listing {
	loc := s.bookings.Options().Location
	l := Listing{
		ID:          row.ID,
		SiteID:      courts.SiteID(row.SiteID),
		Status:      row.Status,
		PlayerCount: row.PlayerCount,
		Referee:     row.Referee,
		TeamShare:   row.TeamShare,
		Team1:       contact.Contact{Name: row.Team1Name, Phone: row.Team1Phone, Email: row.Team1Email},
		CreatedBy:   row.CreatedBy,
		CreatedAt:   row.CreatedAt.In(loc),
	}
	if d, err := clock.ParseDate(row.RequestedDate); err == nil && row.RequestedDate != "" {
		l.RequestedDate = &d
	}
	if row.RequestedHour.Valid {
		h := int(row.RequestedHour.Int64)
		l.RequestedHour = &h
	}
	if row.Team2Name.Valid {
		l.Team2 = &contact.Contact{Name: row.Team2Name.String, Phone: row.Team2Phone.String, Email: row.Team2Email.String}
	}
	if row.CourtID.Valid {
		c := courts.CourtID(row.CourtID.Int64)
		l.CourtID = &c
	}
	if row.SlotDate.Valid {
		if d, err := clock.ParseDate(row.SlotDate.String); err == nil {
			l.Date = &d
		}
	}
	if row.SlotHour.Valid {
		h := int(row.SlotHour.Int64)
		l.Hour = &h
	}
	if row.BookingID.Valid {
		b := row.BookingID.Int64
		l.BookingID = &b
	}
	if row.MatchedAt.Valid {
		t := row.MatchedAt.Time.In(loc)
		l.MatchedAt = &t
	}
	return l
}

func (s *Service) logger(ctx context.Context) zerolog.Logger {
	return log.Ctx(ctx).With().Str("component", "challenge_service").Logger()
}
