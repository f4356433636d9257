package courts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/codr1/courtbook/internal/booking"
	"github.com/codr1/courtbook/internal/contact"
	"github.com/codr1/courtbook/internal/pricing"
	"github.com/codr1/courtbook/internal/testutil"
)

func setupHandlers(t *testing.T) *booking.Service {
	t.Helper()
	reg := testutil.Registry(t)
	svc := booking.NewService(booking.Deps{
		DB:       testutil.NewTestDB(t),
		Registry: reg,
		Pricing:  pricing.NewCalculator(reg, testutil.RefereeSurcharge),
		Clock:    testutil.FixedClock(),
	}, booking.Options{Location: testutil.Location, PhoneRegion: "CR"})

	registry = reg
	bookings = svc
	t.Cleanup(func() {
		registry = nil
		bookings = nil
	})
	return svc
}

func TestHandleListCourts(t *testing.T) {
	setupHandlers(t)

	rec := httptest.NewRecorder()
	HandleListCourts(rec, httptest.NewRequest(http.MethodGet, "/api/v1/courts", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp courtsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Sites) != 2 || len(resp.Courts) != 5 {
		t.Fatalf("sites = %d, courts = %d", len(resp.Sites), len(resp.Courts))
	}
	if len(resp.LinkedGroups) != 1 || len(resp.LinkedGroups[0].Courts) != 3 {
		t.Fatalf("linked groups = %+v", resp.LinkedGroups)
	}
}

func TestHandleAvailability(t *testing.T) {
	svc := setupHandlers(t)
	date := testutil.Tomorrow()

	_, err := svc.Create(context.Background(), booking.CreateInput{
		CourtID:  testutil.Court5A,
		Date:     date,
		Hour:     20,
		Customer: contact.Contact{Name: "Ana", Phone: "88881234"},
	})
	if err != nil {
		t.Fatalf("create booking: %v", err)
	}

	rec := httptest.NewRecorder()
	HandleAvailability(rec, httptest.NewRequest(http.MethodGet, "/api/v1/availability?site=norte&date="+date.String()+"&court_id=1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var resp availabilityResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Courts) != 1 {
		t.Fatalf("courts = %+v", resp.Courts)
	}
	for _, slot := range resp.Courts[0].Free {
		if slot.Hour == 20 {
			t.Fatal("hour 20 is held through the linked group")
		}
	}
	if len(resp.Courts[0].Free) != 15 {
		t.Fatalf("free hours = %d, want 15", len(resp.Courts[0].Free))
	}
}

func TestHandleAvailabilityErrors(t *testing.T) {
	setupHandlers(t)

	tests := []struct {
		url    string
		status int
	}{
		{"/api/v1/availability?date=2024-06-04", http.StatusBadRequest},
		{"/api/v1/availability?site=norte", http.StatusBadRequest},
		{"/api/v1/availability?site=norte&date=06-04-2024", http.StatusBadRequest},
		{"/api/v1/availability?site=norte&date=2024-06-01", http.StatusUnprocessableEntity},
		{"/api/v1/availability?site=oeste&date=2024-06-04", http.StatusNotFound},
		{"/api/v1/availability?site=sur&date=2024-06-04&court_id=1", http.StatusBadRequest},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		HandleAvailability(rec, httptest.NewRequest(http.MethodGet, tt.url, nil))
		if rec.Code != tt.status {
			t.Fatalf("%s: status = %d, want %d (%s)", tt.url, rec.Code, tt.status, rec.Body.String())
		}
	}
}
