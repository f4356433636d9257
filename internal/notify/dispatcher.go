package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/apperr"
	"github.com/codr1/courtbook/internal/email"
)

const (
	EventNotificationFailed = "notification_failed"

	defaultDeliveryTimeout = 10 * time.Second
)

// Dispatcher delivers notifications on a bounded worker pool. When every
// worker is busy the notification is dropped and logged, never queued behind
// the caller.
type Dispatcher struct {
	sink    Sink
	pool    *ants.Pool
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewDispatcher(sink Sink, workers int) (*Dispatcher, error) {
	if workers <= 0 {
		workers = 1
	}
	pool, err := ants.NewPool(workers, ants.WithNonblocking(true))
	if err != nil {
		return nil, fmt.Errorf("create notification pool: %w", err)
	}
	return &Dispatcher{sink: sink, pool: pool, timeout: defaultDeliveryTimeout}, nil
}

// Dispatch queues a delivery and returns immediately. The request context's
// logger is kept but its cancellation is not.
func (d *Dispatcher) Dispatch(ctx context.Context, event Event, payload Payload) {
	if d == nil || d.sink == nil {
		return
	}
	logger := log.Ctx(ctx).With().
		Str("component", "notify_dispatcher").
		Str("notification", string(event)).
		Int64("booking_id", payload.BookingID).
		Logger()

	d.wg.Add(1)
	err := d.pool.Submit(func() {
		defer d.wg.Done()

		sendCtx, cancel := email.NewSendContext(ctx, d.timeout)
		defer cancel()

		if err := d.sink.Deliver(sendCtx, event, payload); err != nil {
			logFailure(&logger, d.sink.Name(), apperr.Upstream("deliver notification", err))
			return
		}
		logger.Debug().Str("sink", d.sink.Name()).Msg("Notification delivered")
	})
	if err != nil {
		d.wg.Done()
		if errors.Is(err, ants.ErrPoolOverload) {
			err = fmt.Errorf("notification pool full: %w", err)
		} else {
			err = fmt.Errorf("submit notification: %w", err)
		}
		logFailure(&logger, d.sink.Name(), err)
	}
}

// Close waits for queued deliveries or ctx expiry, then releases the pool.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d == nil {
		return nil
	}
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	defer d.pool.Release()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func logFailure(logger *zerolog.Logger, sink string, err error) {
	logger.Warn().
		Str("event", EventNotificationFailed).
		Str("sink", sink).
		Err(err).
		Msg("Notification delivery failed; operation already committed")
}
