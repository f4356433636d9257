package db

import (
	"context"
	"time"
)

const paymentColumns = `id, booking_id, sinpe, cash, reason, note, receipt_ref, complete,
	created_by, idempotency_key, created_at`

type CreatePaymentParams struct {
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

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	id, err := q.insert(ctx, `
		INSERT INTO payments (
			booking_id, sinpe, cash, reason, note, receipt_ref, complete, created_by,
			idempotency_key, created_at
		) VALUES (
			:booking_id, :sinpe, :cash, :reason, :note, :receipt_ref, :complete, :created_by,
			:idempotency_key, :created_at
		)`, arg)
	if err != nil {
		return Payment{}, err
	}
	return q.GetPayment(ctx, id)
}

func (q *Queries) GetPayment(ctx context.Context, id int64) (Payment, error) {
	var p Payment
	err := q.get(ctx, &p, `SELECT `+paymentColumns+` FROM payments WHERE id = ?`, id)
	return p, err
}

func (q *Queries) GetPaymentByIdempotencyKey(ctx context.Context, key string) (Payment, error) {
	var p Payment
	err := q.get(ctx, &p, `SELECT `+paymentColumns+` FROM payments WHERE idempotency_key = ?`, key)
	return p, err
}

func (q *Queries) GetDepositPayment(ctx context.Context, bookingID int64) (Payment, error) {
	var p Payment
	err := q.get(ctx, &p,
		`SELECT `+paymentColumns+` FROM payments WHERE booking_id = ? AND reason = 'deposit'`,
		bookingID,
	)
	return p, err
}

func (q *Queries) ListPaymentsByBooking(ctx context.Context, bookingID int64) ([]Payment, error) {
	payments := []Payment{}
	err := q.selectAll(ctx, &payments,
		`SELECT `+paymentColumns+` FROM payments WHERE booking_id = ? ORDER BY id`,
		bookingID,
	)
	return payments, err
}

func (q *Queries) ListPaymentsByBookings(ctx context.Context, bookingIDs []int64) ([]Payment, error) {
	payments := []Payment{}
	if len(bookingIDs) == 0 {
		return payments, nil
	}
	err := q.selectIn(ctx, &payments,
		`SELECT `+paymentColumns+` FROM payments WHERE booking_id IN (?) ORDER BY booking_id, id`,
		bookingIDs,
	)
	return payments, err
}

type PaymentTotals struct {
	Count int64 `db:"count"`
	Sinpe int64 `db:"sinpe"`
	Cash  int64 `db:"cash"`
}

func (t PaymentTotals) Paid() int64 {
	return t.Sinpe + t.Cash
}

func (q *Queries) SumPayments(ctx context.Context, bookingID int64) (PaymentTotals, error) {
	var totals PaymentTotals
	err := q.get(ctx, &totals, `
		SELECT COUNT(*) AS count,
			COALESCE(SUM(sinpe), 0) AS sinpe,
			COALESCE(SUM(cash), 0) AS cash
		FROM payments WHERE booking_id = ?`,
		bookingID,
	)
	return totals, err
}
