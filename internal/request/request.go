// Package request holds request-scoped values and query parsing shared by
// the HTTP handlers.
package request

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/codr1/courtbook/internal/apperr"
	"github.com/codr1/courtbook/internal/clock"
	"github.com/codr1/courtbook/internal/courts"
)

type contextKey string

const (
	actorKey     contextKey = "actor"
	requestIDKey contextKey = "request_id"

	// ActorHeader names the operator acting on a request. Authentication is
	// handled in front of this service.
	ActorHeader = "X-Actor"
)

func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// Actor returns the operator recorded for the request, or "" when anonymous.
func Actor(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey).(string)
	return actor
}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ParseID parses a positive int64 identifier.
func ParseID(value string) (int64, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// PathID reads a positive id from a ServeMux path wildcard.
func PathID(r *http.Request, name string) (int64, error) {
	id, ok := ParseID(r.PathValue(name))
	if !ok {
		return 0, apperr.Field(name, "must be a positive integer")
	}
	return id, nil
}

// Site reads the optional site query parameter.
func Site(r *http.Request) courts.SiteID {
	return courts.SiteID(strings.TrimSpace(r.URL.Query().Get("site")))
}

// CourtIDs reads repeated or comma separated court_id parameters.
func CourtIDs(r *http.Request) ([]courts.CourtID, error) {
	var ids []courts.CourtID
	for _, raw := range splitValues(r.URL.Query()["court_id"]) {
		id, ok := ParseID(raw)
		if !ok {
			return nil, apperr.Field("court_id", "must be a positive integer")
		}
		ids = append(ids, courts.CourtID(id))
	}
	return ids, nil
}

// Dates reads repeated or comma separated date parameters (YYYY-MM-DD).
func Dates(r *http.Request, key string) ([]clock.Date, error) {
	var dates []clock.Date
	for _, raw := range splitValues(r.URL.Query()[key]) {
		d, err := clock.ParseDate(raw)
		if err != nil {
			log.Ctx(r.Context()).
				Debug().
				Err(err).
				Str(key, raw).
				Msg("Rejected date parameter")
			return nil, apperr.Field(key, "must be a date formatted YYYY-MM-DD")
		}
		dates = append(dates, d)
	}
	return dates, nil
}

// Date reads a single optional date parameter.
func Date(r *http.Request, key string) (clock.Date, bool, error) {
	dates, err := Dates(r, key)
	if err != nil {
		return clock.Date{}, false, err
	}
	switch len(dates) {
	case 0:
		return clock.Date{}, false, nil
	case 1:
		return dates[0], true, nil
	default:
		return clock.Date{}, false, apperr.Field(key, "must be a single date")
	}
}

// Int reads an optional non-negative integer parameter.
func Int(r *http.Request, key string) (int, bool, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, false, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false, apperr.Field(key, "must be 0 or greater")
	}
	return v, true, nil
}

func splitValues(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
