// Package availability enumerates the bookable hours of a site's operating day.
package availability

import (
	"time"

	"github.com/codr1/courtbook/internal/apperr"
	"github.com/codr1/courtbook/internal/clock"
	"github.com/codr1/courtbook/internal/courts"
)

// Slot is one bookable hour of an operating day. Hour is the internal value
// and exceeds 23 for hours that fall after midnight on a wrapping schedule.
type Slot struct {
	Hour        int  `json:"hour"`
	DisplayHour int  `json:"display_hour"`
	NextDay     bool `json:"next_day"`
}

func SlotForHour(hour int) Slot {
	return Slot{Hour: hour, DisplayHour: hour % 24, NextDay: hour >= 24}
}

// Start is the wall-clock start of the slot on the operating day date.
func (s Slot) Start(date clock.Date, loc *time.Location) time.Time {
	return time.Date(date.Year, date.Month, date.Day, s.Hour, 0, 0, 0, loc)
}

func (s Slot) End(date clock.Date, loc *time.Location) time.Time {
	return s.Start(date, loc).Add(time.Hour)
}

type Engine struct {
	registry *courts.Registry
	clock    clock.Clock
}

func NewEngine(registry *courts.Registry, clk clock.Clock) *Engine {
	return &Engine{registry: registry, clock: clk}
}

// Hours lists the bookable slots for site on date in ascending internal
// order. On the current day, hours at or before the current hour are dropped
// unless they belong to the post-midnight tail of the window.
func (e *Engine) Hours(site courts.SiteID, date clock.Date) ([]Slot, error) {
	schedule, err := e.registry.Schedule(site)
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	today := clock.DateOf(now)
	if date.Before(today) {
		return nil, apperr.InvalidDate("date %s is in the past", date)
	}
	isToday := date == today
	currentHour := now.Hour()

	open, closes := schedule.Window()
	slots := make([]Slot, 0, closes-open)
	for h := open; h < closes; h++ {
		slot := SlotForHour(h)
		if isToday && !slot.NextDay && slot.DisplayHour <= currentHour {
			continue
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// Validate resolves hour against the site's bookable slots on date. Hour may
// be given as a display hour (0-23) or as an internal hour (24 and up).
func (e *Engine) Validate(site courts.SiteID, date clock.Date, hour int) (Slot, error) {
	if hour < 0 {
		return Slot{}, apperr.InvalidDate("hour %d is out of range", hour)
	}
	slots, err := e.Hours(site, date)
	if err != nil {
		return Slot{}, err
	}
	if slot, ok := Find(slots, hour); ok {
		return slot, nil
	}
	return Slot{}, apperr.InvalidDate("hour %d is not bookable at site %s on %s", hour, site, date)
}

// Find locates hour in slots by internal hour, or by display hour when hour
// is below 24.
func Find(slots []Slot, hour int) (Slot, bool) {
	for _, slot := range slots {
		if slot.Hour == hour || (hour < 24 && slot.DisplayHour == hour) {
			return slot, true
		}
	}
	return Slot{}, false
}
