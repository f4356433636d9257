package db

import (
	"context"
	"time"
)

const closingColumns = `id, dates, note, created_by, booking_count, total_expected, total_paid,
	total_sinpe, total_cash, shortfall, problem_count, document_key, document_url, snapshot,
	created_at`

type CreateClosingReportParams struct {
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

func (q *Queries) CreateClosingReport(ctx context.Context, arg CreateClosingReportParams) (ClosingReport, error) {
	id, err := q.insert(ctx, `
		INSERT INTO closing_reports (
			dates, note, created_by, booking_count, total_expected, total_paid, total_sinpe,
			total_cash, shortfall, problem_count, document_key, document_url, snapshot, created_at
		) VALUES (
			:dates, :note, :created_by, :booking_count, :total_expected, :total_paid, :total_sinpe,
			:total_cash, :shortfall, :problem_count, :document_key, :document_url, :snapshot, :created_at
		)`, arg)
	if err != nil {
		return ClosingReport{}, err
	}
	return q.GetClosingReport(ctx, id)
}

func (q *Queries) GetClosingReport(ctx context.Context, id int64) (ClosingReport, error) {
	var r ClosingReport
	err := q.get(ctx, &r, `SELECT `+closingColumns+` FROM closing_reports WHERE id = ?`, id)
	return r, err
}

func (q *Queries) ListClosingReports(ctx context.Context, limit int) ([]ClosingReport, error) {
	reports := []ClosingReport{}
	err := q.selectAll(ctx, &reports,
		`SELECT `+closingColumns+` FROM closing_reports ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	return reports, err
}
