// cmd/server/server.go
package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/codr1/courtbook/internal/api"
	"github.com/codr1/courtbook/internal/api/apiutil"
	"github.com/codr1/courtbook/internal/api/bookings"
	"github.com/codr1/courtbook/internal/api/challenges"
	"github.com/codr1/courtbook/internal/api/closings"
	"github.com/codr1/courtbook/internal/api/courts"
	"github.com/codr1/courtbook/internal/config"
)

func newServer(cfg *config.Config, a *app) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithActor,
		api.WithRecovery,
		api.WithRequestID,
	)

	throttle := &apiutil.Throttle{
		Limiter:     a.limiter,
		TrustProxy:  cfg.RateLimit.TrustProxy,
		PhoneRegion: cfg.App.DefaultPhoneRegion,
	}
	courts.InitHandlers(a.registry, a.bookings)
	bookings.InitHandlers(a.bookings, a.ledger, throttle)
	challenges.InitHandlers(a.challenges, throttle)
	closings.InitHandlers(a.closings, a.documents)

	// Register routes
	registerRoutes(router)

	return &http.Server{
		Addr:         ":" + strconv.Itoa(cfg.App.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 45 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Court routes
	mux.HandleFunc("GET /api/v1/courts", courts.HandleListCourts)
	mux.HandleFunc("GET /api/v1/availability", courts.HandleAvailability)

	// Booking routes
	mux.HandleFunc("POST /api/v1/bookings", bookings.HandleCreate)
	mux.HandleFunc("GET /api/v1/bookings", bookings.HandleList)
	mux.HandleFunc("GET /api/v1/bookings/{id}", bookings.HandleGet)
	mux.HandleFunc("PUT /api/v1/bookings/{id}", bookings.HandleUpdate)
	mux.HandleFunc("DELETE /api/v1/bookings/{id}", bookings.HandleDelete)
	mux.HandleFunc("POST /api/v1/bookings/{id}/proof", bookings.HandleProof)
	mux.HandleFunc("POST /api/v1/bookings/{id}/deposit/confirm", bookings.HandleConfirmDeposit)
	mux.HandleFunc("PUT /api/v1/bookings/{id}/checked", bookings.HandleChecked)
	mux.HandleFunc("GET /api/v1/bookings/{id}/balance", bookings.HandleBalance)

	// Payment routes
	mux.HandleFunc("GET /api/v1/bookings/{id}/payments", bookings.HandleListPayments)
	mux.HandleFunc("POST /api/v1/bookings/{id}/payments", bookings.HandleRecordPayment)

	// Challenge routes
	mux.HandleFunc("POST /api/v1/challenges", challenges.HandleCreate)
	mux.HandleFunc("GET /api/v1/challenges", challenges.HandleList)
	mux.HandleFunc("GET /api/v1/challenges/{id}", challenges.HandleGet)
	mux.HandleFunc("DELETE /api/v1/challenges/{id}", challenges.HandleDelete)
	mux.HandleFunc("POST /api/v1/challenges/{id}/match", challenges.HandleMatch)

	// Closing routes
	mux.HandleFunc("POST /api/v1/closings", closings.HandleGenerate)
	mux.HandleFunc("GET /api/v1/closings", closings.HandleList)
	mux.HandleFunc("GET /api/v1/closings/{id}", closings.HandleGet)
	mux.HandleFunc("GET /api/v1/documents/{key}", closings.HandleDocument)
}
