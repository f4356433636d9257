// cmd/server/app.go
package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/booking"
	"github.com/codr1/courtbook/internal/challenge"
	"github.com/codr1/courtbook/internal/clock"
	"github.com/codr1/courtbook/internal/closing"
	"github.com/codr1/courtbook/internal/config"
	"github.com/codr1/courtbook/internal/courts"
	"github.com/codr1/courtbook/internal/db"
	"github.com/codr1/courtbook/internal/documents"
	"github.com/codr1/courtbook/internal/email"
	"github.com/codr1/courtbook/internal/ledger"
	"github.com/codr1/courtbook/internal/notify"
	"github.com/codr1/courtbook/internal/pricing"
	"github.com/codr1/courtbook/internal/ratelimit"
	"github.com/codr1/courtbook/internal/scheduler"
	"github.com/codr1/courtbook/internal/slotlock"
)

const dispatcherDrainTimeout = 10 * time.Second

// app holds the wired services and everything that needs closing on exit.
type app struct {
	db         *db.DB
	registry   *courts.Registry
	bookings   *booking.Service
	challenges *challenge.Service
	ledger     *ledger.Service
	closings   *closing.Service
	documents  *documents.Store
	limiter    *ratelimit.Limiter
	dispatcher *notify.Dispatcher
	scheduler  *scheduler.Service

	closers   []func() error
	closeOnce sync.Once
}

func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	clk := clock.New(loc)

	a.db, err = db.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.closers = append(a.closers, a.db.Close)

	a.registry, err = courts.FromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("build court registry: %w", err)
	}
	calc := pricing.NewCalculator(a.registry, cfg.Pricing.RefereeSurcharge)

	locker, err := a.newLocker(ctx, cfg)
	if err != nil {
		return nil, err
	}

	sink, err := a.newSink(ctx, cfg, loc)
	if err != nil {
		return nil, err
	}
	a.dispatcher, err = notify.NewDispatcher(sink, cfg.Notifications.Workers)
	if err != nil {
		return nil, err
	}

	a.bookings = booking.NewService(booking.Deps{
		DB:       a.db,
		Registry: a.registry,
		Pricing:  calc,
		Locker:   locker,
		Notifier: a.dispatcher,
		Clock:    clk,
	}, booking.Options{
		Location:          loc,
		DepositWindow:     cfg.Deposit.Window,
		AutoCancelExpired: cfg.Deposit.AutoCancelExpired,
		PhoneRegion:       cfg.App.DefaultPhoneRegion,
		BaseURL:           cfg.App.BaseURL,
	})
	a.challenges = challenge.NewService(a.db, a.registry, calc, a.bookings, a.dispatcher, clk)
	a.ledger = ledger.NewService(a.db, clk)
	a.documents = documents.NewStore(a.db.Queries, cfg.App.BaseURL)
	a.closings = closing.NewService(a.db, a.registry, a.documents, clk, loc)

	a.limiter = ratelimit.New(&ratelimit.Config{
		Cooldown:     cfg.RateLimit.BookingCooldown,
		MaxIPPerHour: cfg.RateLimit.BookingMaxIPPerHour,
		Clock:        clk,
	})

	if err := scheduler.Init(loc); err != nil {
		return nil, fmt.Errorf("init scheduler: %w", err)
	}
	a.scheduler, err = scheduler.ServiceInstance()
	if err != nil {
		return nil, err
	}
	if _, err := scheduler.RegisterDepositSweep(a.scheduler, a.bookings, cfg.Scheduler.DepositSweepCron); err != nil {
		return nil, fmt.Errorf("register deposit sweep: %w", err)
	}

	log.Info().
		Int("sites", len(a.registry.Sites())).
		Int("courts", len(a.registry.Courts())).
		Str("timezone", loc.String()).
		Str("locks", cfg.Locks.Driver).
		Strs("notifications", cfg.Notifications.Drivers).
		Msg("Application initialized")
	return a, nil
}

func (a *app) newLocker(ctx context.Context, cfg *config.Config) (slotlock.Locker, error) {
	if cfg.Locks.Driver != "redis" {
		return slotlock.NewMemory(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Locks.RedisAddr,
		Password: cfg.Locks.RedisPassword,
		DB:       cfg.Locks.RedisDB,
	})
	a.closers = append(a.closers, client.Close)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Locks.RedisAddr, err)
	}
	return slotlock.NewRedis(client, cfg.Locks.TTL), nil
}

func (a *app) newSink(ctx context.Context, cfg *config.Config, loc *time.Location) (notify.Sink, error) {
	var sinks notify.MultiSink
	for _, driver := range cfg.Notifications.Drivers {
		switch strings.TrimSpace(driver) {
		case "log":
			sinks = append(sinks, notify.NewLogSink(log.Logger))
		case "email":
			ses, err := email.NewSESClient(ctx,
				cfg.Notifications.SESAccessKey,
				cfg.Notifications.SESSecretKey,
				cfg.Notifications.SESRegion,
				cfg.Notifications.SESSender,
			)
			if err != nil {
				return nil, fmt.Errorf("init ses client: %w", err)
			}
			siteNames := make(map[string]string, len(cfg.Sites))
			for _, site := range cfg.Sites {
				siteNames[site.ID] = site.Name
			}
			sinks = append(sinks, notify.NewEmailSink(ses, siteNames, loc))
		case "amqp":
			amqpSink, err := notify.DialAMQP(cfg.Notifications.AMQPURL, cfg.Notifications.AMQPExchange)
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, amqpSink.Close)
			sinks = append(sinks, amqpSink)
		default:
			return nil, fmt.Errorf("unsupported notification driver: %s", driver)
		}
	}
	if len(sinks) == 1 {
		return sinks[0], nil
	}
	return sinks, nil
}

// Close drains pending notifications, stops background work and releases
// connections in reverse order of acquisition.
func (a *app) Close() {
	a.closeOnce.Do(func() {
		if a.scheduler != nil {
			if err := a.scheduler.Stop(); err != nil {
				log.Error().Err(err).Msg("Failed to stop scheduler")
			}
		}
		if a.dispatcher != nil {
			ctx, cancel := context.WithTimeout(context.Background(), dispatcherDrainTimeout)
			if err := a.dispatcher.Close(ctx); err != nil {
				log.Error().Err(err).Msg("Failed to drain notifications")
			}
			cancel()
		}
		if a.limiter != nil {
			a.limiter.Close()
		}
		for i := len(a.closers) - 1; i >= 0; i-- {
			if err := a.closers[i](); err != nil {
				log.Error().Err(err).Msg("Failed to close resource")
			}
		}
	})
}
