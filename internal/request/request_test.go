package request

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codr1/courtbook/internal/apperr"
	"github.com/codr1/courtbook/internal/courts"
)

func TestParseID(t *testing.T) {
	tests := map[string]bool{
		"1":    true,
		" 42 ": true,
		"0":    false,
		"-3":   false,
		"abc":  false,
		"":     false,
	}
	for raw, ok := range tests {
		if _, got := ParseID(raw); got != ok {
			t.Errorf("ParseID(%q) ok = %v, want %v", raw, got, ok)
		}
	}
}

func TestPathID(t *testing.T) {
	mux := http.NewServeMux()
	var (
		gotID  int64
		gotErr error
	)
	mux.HandleFunc("GET /bookings/{id}", func(w http.ResponseWriter, r *http.Request) {
		gotID, gotErr = PathID(r, "id")
	})

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bookings/17", nil))
	if gotErr != nil || gotID != 17 {
		t.Fatalf("PathID = %d, %v", gotID, gotErr)
	}

	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bookings/x", nil))
	if !errors.Is(gotErr, apperr.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", gotErr)
	}
}

func TestDatesAndCourtIDs(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?date=2024-06-05,2024-06-04&date=2024-06-07&court_id=1,3&site=norte", nil)

	dates, err := Dates(r, "date")
	if err != nil {
		t.Fatalf("dates: %v", err)
	}
	if len(dates) != 3 || dates[0].String() != "2024-06-05" || dates[2].String() != "2024-06-07" {
		t.Fatalf("dates = %v", dates)
	}

	ids, err := CourtIDs(r)
	if err != nil || len(ids) != 2 || ids[1] != courts.CourtID(3) {
		t.Fatalf("court ids = %v, %v", ids, err)
	}
	if Site(r) != "norte" {
		t.Fatalf("site = %q", Site(r))
	}

	if _, _, err := Date(r, "date"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected multiple dates to be rejected, got %v", err)
	}

	bad := httptest.NewRequest(http.MethodGet, "/?date=04/06/2024&court_id=0", nil)
	if _, err := Dates(bad, "date"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected bad date to be rejected, got %v", err)
	}
	if _, err := CourtIDs(bad); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("expected bad court id to be rejected, got %v", err)
	}
}

func TestInt(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/?limit=10&bad=-1", nil)
	if v, ok, err := Int(r, "limit"); err != nil || !ok || v != 10 {
		t.Fatalf("Int(limit) = %d, %v, %v", v, ok, err)
	}
	if _, ok, err := Int(r, "missing"); err != nil || ok {
		t.Fatalf("Int(missing) = %v, %v", ok, err)
	}
	if _, _, err := Int(r, "bad"); err == nil {
		t.Fatal("expected negative value to be rejected")
	}
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	if Actor(ctx) != "" || RequestID(ctx) != "" {
		t.Fatal("empty context should have no actor or request id")
	}
	ctx = WithRequestID(WithActor(ctx, "caja-1"), "req-1")
	if Actor(ctx) != "caja-1" || RequestID(ctx) != "req-1" {
		t.Fatalf("actor = %q, request id = %q", Actor(ctx), RequestID(ctx))
	}
}
