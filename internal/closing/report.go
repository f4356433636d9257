// Package closing reconciles expected and collected amounts over a set of
// operating days and freezes the result.
package closing

import (
	"sort"

	"github.com/codr1/courtbook/internal/availability"
	"github.com/codr1/courtbook/internal/clock"
	"github.com/codr1/courtbook/internal/courts"
	"github.com/codr1/courtbook/internal/db"
	"github.com/codr1/courtbook/internal/ledger"
)

const (
	ProblemUnpaid    = "unpaid"
	ProblemPartial   = "partial"
	ProblemUnchecked = "unchecked"
)

type Line struct {
	BookingID   int64          `json:"booking_id"`
	CourtID     courts.CourtID `json:"court_id"`
	CourtName   string         `json:"court_name"`
	SiteID      courts.SiteID  `json:"site_id"`
	Date        clock.Date     `json:"date"`
	Hour        int            `json:"hour"`
	DisplayHour int            `json:"display_hour"`
	Customer    string         `json:"customer"`
	Phone       string         `json:"phone"`
	Price       int64          `json:"price"`
	Paid        int64          `json:"paid"`
	Sinpe       int64          `json:"sinpe"`
	Cash        int64          `json:"cash"`
	Outstanding int64          `json:"outstanding"`
	Status      string         `json:"status"`
	Checked     bool           `json:"checked"`
	Problems    []string       `json:"problems,omitempty"`
}

type Totals struct {
	Bookings  int   `json:"bookings"`
	Expected  int64 `json:"expected"`
	Paid      int64 `json:"paid"`
	Sinpe     int64 `json:"sinpe"`
	Cash      int64 `json:"cash"`
	Shortfall int64 `json:"shortfall"`
	Problems  int   `json:"problems"`
}

func (t *Totals) add(l Line) {
	t.Bookings++
	t.Expected += l.Price
	t.Paid += l.Paid
	t.Sinpe += l.Sinpe
	t.Cash += l.Cash
	t.Shortfall = t.Expected - t.Paid
	if len(l.Problems) > 0 {
		t.Problems++
	}
}

type CourtGroup struct {
	CourtID   courts.CourtID `json:"court_id"`
	CourtName string         `json:"court_name"`
	Totals    Totals         `json:"totals"`
	Lines     []Line         `json:"lines"`
}

type DateGroup struct {
	Date   clock.Date   `json:"date"`
	Totals Totals       `json:"totals"`
	Courts []CourtGroup `json:"courts"`
}

// Report is the structured closing: every booking grouped by date then
// court, plus the problem bookings grouped the same way.
type Report struct {
	Dates    []clock.Date `json:"dates"`
	Totals   Totals       `json:"totals"`
	Days     []DateGroup  `json:"days"`
	Problems []DateGroup  `json:"problems"`
}

// NormalizeDates sorts dates ascending and drops duplicates.
func NormalizeDates(dates []clock.Date) []clock.Date {
	out := make([]clock.Date, 0, len(dates))
	seen := make(map[clock.Date]bool, len(dates))
	for _, d := range dates {
		if d.IsZero() || seen[d] {
			continue
		}
		seen[d] = true
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// BuildReport reconciles bookings against their payments. Bookings whose
// date is not in dates are ignored, as are payments for unknown bookings.
func BuildReport(dates []clock.Date, bookings []db.Booking, payments []db.Payment, registry *courts.Registry) Report {
	dates = NormalizeDates(dates)
	inRange := make(map[string]bool, len(dates))
	for _, d := range dates {
		inRange[d.String()] = true
	}

	type paidTotals struct{ sinpe, cash int64 }
	paid := make(map[int64]paidTotals)
	for _, p := range payments {
		t := paid[p.BookingID]
		t.sinpe += p.Sinpe
		t.cash += p.Cash
		paid[p.BookingID] = t
	}

	var lines []Line
	for _, b := range bookings {
		if !inRange[b.SlotDate] {
			continue
		}
		date, err := clock.ParseDate(b.SlotDate)
		if err != nil {
			continue
		}
		t := paid[b.ID]
		slot := availability.SlotForHour(b.SlotHour)
		line := Line{
			BookingID:   b.ID,
			CourtID:     courts.CourtID(b.CourtID),
			SiteID:      courts.SiteID(b.SiteID),
			Date:        date,
			Hour:        slot.Hour,
			DisplayHour: slot.DisplayHour,
			Customer:    b.CustomerName,
			Phone:       b.CustomerPhone,
			Price:       b.Price,
			Paid:        t.sinpe + t.cash,
			Sinpe:       t.sinpe,
			Cash:        t.cash,
			Checked:     b.Checked,
		}
		line.Outstanding = ledger.Outstanding(line.Price, line.Paid)
		line.Status = ledger.StatusFor(line.Price, line.Paid)
		if registry != nil {
			if court, err := registry.Court(line.CourtID); err == nil {
				line.CourtName = court.Name
			}
		}
		switch line.Status {
		case ledger.StatusUnpaid:
			line.Problems = append(line.Problems, ProblemUnpaid)
		case ledger.StatusPartial:
			line.Problems = append(line.Problems, ProblemPartial)
		}
		if !line.Checked {
			line.Problems = append(line.Problems, ProblemUnchecked)
		}
		lines = append(lines, line)
	}

	sort.Slice(lines, func(i, j int) bool {
		a, b := lines[i], lines[j]
		if a.Date != b.Date {
			return a.Date.Before(b.Date)
		}
		if a.CourtID != b.CourtID {
			return a.CourtID < b.CourtID
		}
		if a.Hour != b.Hour {
			return a.Hour < b.Hour
		}
		return a.BookingID < b.BookingID
	})

	report := Report{Dates: dates, Days: []DateGroup{}, Problems: []DateGroup{}}
	var problems []Line
	for _, l := range lines {
		report.Totals.add(l)
		if len(l.Problems) > 0 {
			problems = append(problems, l)
		}
	}
	report.Days = group(lines)
	report.Problems = group(problems)
	return report
}

// group folds lines, already sorted by date then court, into date groups.
func group(lines []Line) []DateGroup {
	out := []DateGroup{}
	for _, l := range lines {
		if len(out) == 0 || out[len(out)-1].Date != l.Date {
			out = append(out, DateGroup{Date: l.Date})
		}
		day := &out[len(out)-1]
		if len(day.Courts) == 0 || day.Courts[len(day.Courts)-1].CourtID != l.CourtID {
			day.Courts = append(day.Courts, CourtGroup{CourtID: l.CourtID, CourtName: l.CourtName})
		}
		court := &day.Courts[len(day.Courts)-1]
		court.Lines = append(court.Lines, l)
		court.Totals.add(l)
		day.Totals.add(l)
	}
	return out
}
