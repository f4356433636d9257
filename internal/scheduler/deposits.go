package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/booking"
)

const (
	depositSweepJob     = "deposit_sweep"
	depositSweepTimeout = time.Minute
)

// DepositSweeper is the part of the booking service the sweep job drives.
type DepositSweeper interface {
	SweepExpiredDeposits(ctx context.Context) (booking.SweepResult, error)
}

// RegisterDepositSweep schedules the periodic pass over bookings whose
// deposit proof window has elapsed.
func RegisterDepositSweep(svc *Service, sweeper DepositSweeper, cronExpr string) (gocron.Job, error) {
	if sweeper == nil {
		return nil, fmt.Errorf("deposit sweep requires a booking service")
	}

	job, err := svc.AddJob(depositSweepJob, cronExpr, depositSweepTimeout, func(ctx context.Context) {
		logger := log.Ctx(ctx).With().Str("component", "deposit_sweep_job").Logger()

		result, err := sweeper.SweepExpiredDeposits(logger.WithContext(ctx))
		if err != nil {
			// Already logged as operation_failed by the booking service.
			logger.Warn().Err(err).Msg("Deposit sweep aborted")
			return
		}
		logger.Debug().
			Int("expired", len(result.Expired)).
			Int("cancelled", len(result.Cancelled)).
			Msg("Deposit sweep ran")
	})
	if err != nil {
		return nil, fmt.Errorf("add deposit sweep job: %w", err)
	}
	return job, nil
}
