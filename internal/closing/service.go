package closing

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/apperr"
	"github.com/codr1/courtbook/internal/booking"
	"github.com/codr1/courtbook/internal/clock"
	"github.com/codr1/courtbook/internal/courts"
	"github.com/codr1/courtbook/internal/db"
	"github.com/codr1/courtbook/internal/documents"
)

const (
	contentTypePDF   = "application/pdf"
	defaultListLimit = 50
	maxClosingDates  = 62
)

// Closing is a stored, immutable closing record.
type Closing struct {
	ID          int64        `json:"id"`
	Dates       []clock.Date `json:"dates"`
	Note        string       `json:"note,omitempty"`
	CreatedBy   string       `json:"created_by,omitempty"`
	Totals      Totals       `json:"totals"`
	DocumentKey string       `json:"document_key"`
	DocumentURL string       `json:"document_url"`
	CreatedAt   time.Time    `json:"created_at"`
	Report      *Report      `json:"report,omitempty"`
}

type GenerateInput struct {
	Dates     []clock.Date
	Note      string
	CreatedBy string
}

type Service struct {
	db       *db.DB
	registry *courts.Registry
	sink     documents.Sink
	clock    clock.Clock
	loc      *time.Location
}

func NewService(database *db.DB, registry *courts.Registry, sink documents.Sink, clk clock.Clock, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{db: database, registry: registry, sink: sink, clock: clk, loc: loc}
}

// Generate reconciles every booking on the given dates, renders the closing
// document, stores it and persists the totals. Stored totals are never
// recomputed afterwards.
func (s *Service) Generate(ctx context.Context, in GenerateInput) (Closing, error) {
	logger := log.Ctx(ctx).With().Str("component", "closing_service").Logger()

	c, err := s.generate(ctx, in)
	if err != nil {
		return Closing{}, booking.Fail(logger, "generate closing", err)
	}
	logger.Info().
		Int64("closing_id", c.ID).
		Int("bookings", c.Totals.Bookings).
		Int64("expected", c.Totals.Expected).
		Int64("paid", c.Totals.Paid).
		Int64("shortfall", c.Totals.Shortfall).
		Int("problems", c.Totals.Problems).
		Msg("Closing generated")
	return c, nil
}

func (s *Service) generate(ctx context.Context, in GenerateInput) (Closing, error) {
	dates := NormalizeDates(in.Dates)
	if len(dates) == 0 {
		return Closing{}, apperr.Field("dates", "must contain at least one date")
	}
	if len(dates) > maxClosingDates {
		return Closing{}, apperr.Field("dates", fmt.Sprintf("must contain at most %d dates", maxClosingDates))
	}

	keys := make([]string, len(dates))
	for i, d := range dates {
		keys[i] = d.String()
	}

	var (
		bookings []db.Booking
		payments []db.Payment
	)
	// One transaction so bookings and payments come from the same snapshot.
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		var err error
		bookings, err = tx.Queries.ListBookings(ctx, db.BookingFilter{Dates: keys})
		if err != nil {
			return apperr.Upstream("list bookings", err)
		}
		ids := make([]int64, len(bookings))
		for i, b := range bookings {
			ids[i] = b.ID
		}
		payments, err = tx.Queries.ListPaymentsByBookings(ctx, ids)
		if err != nil {
			return apperr.Upstream("list payments", err)
		}
		return nil
	})
	if err != nil {
		return Closing{}, err
	}

	report := BuildReport(dates, bookings, payments, s.registry)
	createdAt := s.clock.Now()
	note := strings.TrimSpace(in.Note)

	pdf, err := RenderPDF(report, Header{Note: note, CreatedBy: in.CreatedBy, CreatedAt: createdAt.In(s.loc)})
	if err != nil {
		return Closing{}, err
	}
	snapshot, err := json.Marshal(report)
	if err != nil {
		return Closing{}, fmt.Errorf("encode closing snapshot: %w", err)
	}
	name := fmt.Sprintf("cierre-%s-%s.pdf", keys[0], keys[len(keys)-1])
	ref, err := s.sink.Put(ctx, pdf, contentTypePDF, name)
	if err != nil {
		return Closing{}, apperr.Upstream("store closing document", err)
	}


	row, err := s.db.Queries.CreateClosingReport(ctx, db.CreateClosingReportParams{
		Dates:         strings.Join(keys, ","),
		Note:          note,
		CreatedBy:     in.CreatedBy,
		BookingCount:  report.Totals.Bookings,
		TotalExpected: report.Totals.Expected,
		TotalPaid:     report.Totals.Paid,
		TotalSinpe:    report.Totals.Sinpe,
		TotalCash:     report.Totals.Cash,
		Shortfall:     report.Totals.Shortfall,
		ProblemCount:  report.Totals.Problems,
		DocumentKey:   ref.Key,
		DocumentURL:   ref.URL,
		Snapshot:      string(snapshot),
		CreatedAt:     createdAt.UTC(),
	})
	if err != nil {
		if derr := s.sink.Delete(ctx, ref.Key); derr != nil {
			log.Ctx(ctx).Warn().Err(derr).Str("document_key", ref.Key).Msg("Failed to remove orphaned closing document")
		}
		return Closing{}, apperr.Upstream("insert closing", err)
	}
	return s.view(row, true)
}

// Get returns a stored closing with its frozen report.
func (s *Service) Get(ctx context.Context, id int64) (Closing, error) {
	row, err := s.db.Queries.GetClosingReport(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return Closing{}, apperr.NotFound("closing", id)
		}
		return Closing{}, apperr.Upstream("load closing", err)
	}
	return s.view(row, true)
}

// List returns the most recent closings without their reports.
func (s *Service) List(ctx context.Context, limit int) ([]Closing, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	rows, err := s.db.Queries.ListClosingReports(ctx, limit)
	if err != nil {
		return nil, apperr.Upstream("list closings", err)
	}
	out := make([]Closing, 0, len(rows))
	for _, row := range rows {
		c, err := s.view(row, false)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *Service) view(row db.ClosingReport, withReport bool) (Closing, error) {
	c := Closing{
		ID:        row.ID,
		Note:      row.Note,
		CreatedBy: row.CreatedBy,
		Totals: Totals{
			Bookings:  row.BookingCount,
			Expected:  row.TotalExpected,
			Paid:      row.TotalPaid,
			Sinpe:     row.TotalSinpe,
			Cash:      row.TotalCash,
			Shortfall: row.Shortfall,
			Problems:  row.ProblemCount,
		},
		DocumentKey: row.DocumentKey,
		DocumentURL: row.DocumentURL,
		CreatedAt:   row.CreatedAt.In(s.loc),
	}
	for _, raw := range strings.Split(row.Dates, ",") {
		d, err := clock.ParseDate(raw)
		if err != nil {
			return Closing{}, apperr.Upstream("parse closing dates", err)
		}
		c.Dates = append(c.Dates, d)
	}
	if withReport {
		var report Report
		if err := json.Unmarshal([]byte(row.Snapshot), &report); err != nil {
			return Closing{}, apperr.Upstream("decode closing snapshot", err)
		}
		c.Report = &report
	}
	return c, nil
}
