package booking

import (
	"context"

	"github.com/codr1/courtbook/internal/apperr"
	"github.com/codr1/courtbook/internal/courts"
	"github.com/codr1/courtbook/internal/db"
	"github.com/codr1/courtbook/internal/ledger"
)

type DepositConfirmation struct {
	Booking Booking        `json:"booking"`
	Deposit ledger.Payment `json:"deposit"`
	Created bool           `json:"created"`
}

// ConfirmDeposit marks the booking confirmed and makes sure exactly one
// deposit payment exists for it. Repeating the call is harmless.
func (s *Service) ConfirmDeposit(ctx context.Context, id int64, actor string) (DepositConfirmation, error) {
	logger := s.logger(ctx).With().Int64("booking_id", id).Logger()

	var (
		row     db.Booking
		deposit db.Payment
		created bool
	)
	err := s.db.RunInTx(ctx, func(tx *db.DB) error {
		current, err := s.load(ctx, tx.Queries, id)
		if err != nil {
			return err
		}
		site, err := s.registry.Site(courts.SiteID(current.SiteID))
		if err != nil {
			return err
		}
		if !site.DepositRequired {
			return apperr.Invalid("site %s does not take deposits", site.ID)
		}

		now := s.clock.Now().UTC()
		if current.Status != db.BookingStatusConfirmed {
			if _, err := tx.Queries.ConfirmBooking(ctx, id, actor, now); err != nil {
				return apperr.Upstream("confirm booking", err)
			}
		}
		deposit, created, err = ledger.EnsureDeposit(ctx, tx.Queries, current, actor, now)
		if err != nil {
			return err
		}
		row, err = s.load(ctx, tx.Queries, id)
		return err
	})
	if err != nil {
		return DepositConfirmation{}, Fail(logger, "confirm deposit", err)
	}

	logger.Info().
		Str("actor", actor).
		Int64("deposit", deposit.Sinpe).
		Bool("deposit_created", created).
		Msg("Deposit confirmed")
	return DepositConfirmation{Booking: s.view(row), Deposit: ledger.FromRow(deposit), Created: created}, nil
}

type SweepResult struct {
	Expired   []int64 `json:"expired"`
	Cancelled []int64 `json:"cancelled"`
}

// SweepExpiredDeposits finds pending bookings whose proof window passed.
// With AutoCancelExpired set, those without payments are cancelled; the rest
// are only reported.
func (s *Service) SweepExpiredDeposits(ctx context.Context) (SweepResult, error) {
	logger := s.logger(ctx).With().Str("job", "deposit_sweep").Logger()

	pending, err := s.db.Queries.ListAwaitingProof(ctx)
	if err != nil {
		return SweepResult{}, Fail(logger, "sweep deposits", apperr.Upstream("list pending bookings", err))
	}

	now := s.clock.Now()
	result := SweepResult{Expired: []int64{}, Cancelled: []int64{}}
	for _, b := range pending {
		if !DepositExpired(b, now, s.opts.DepositWindow) {
			continue
		}
		result.Expired = append(result.Expired, b.ID)
		if !s.opts.AutoCancelExpired {
			continue
		}

		err := s.db.RunInTx(ctx, func(tx *db.DB) error {
			return s.cancel(ctx, tx.Queries, b.ID)
		})
		switch {
		case err == nil:
			result.Cancelled = append(result.Cancelled, b.ID)
		case apperr.Kind(err) == apperr.ErrInvalidInput, apperr.Kind(err) == apperr.ErrNotFound:
			logger.Debug().Int64("booking_id", b.ID).Err(err).Msg("Expired booking kept")
		default:
			return result, Fail(logger, "sweep deposits", err)
		}
	}

	if len(result.Expired) > 0 {
		logger.Info().
			Int("expired", len(result.Expired)).
			Int("cancelled", len(result.Cancelled)).
			Msg("Deposit sweep finished")
	}
	return result, nil
}
