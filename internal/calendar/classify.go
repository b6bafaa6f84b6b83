// Package calendar implements the day-level calendar logic behind the
// dashboard grid: day classification, task bucketing, and the visible
// ranges for the month and five-week render modes.
package calendar

import (
	"time"

	"github.com/hbkim/iljeong/internal/holiday"
)

// DayClass describes how a single grid day renders. Red takes priority
// over Blue: a Saturday that is also a holiday is Red. Today and Selected
// are independent of the color flags.
type DayClass struct {
	IsToday    bool `json:"is_today"`
	IsSelected bool `json:"is_selected"`
	IsSunday   bool `json:"is_sunday"`
	// IsRed is set for Sundays and holidays.
	IsRed bool `json:"is_red"`
	// IsBlue is set for Saturdays that are not holidays.
	IsBlue bool `json:"is_blue"`
}

// Classify computes the rendering class of date against the selected day
// and a holiday set from holiday.ForYear. All three comparisons use the
// calendar-day components of the inputs, so callers must pass times in
// the configured display zone.
func Classify(date, selected, now time.Time, holidays map[string]struct{}) DayClass {
	isHoliday := holiday.Contains(holidays, date)
	wd := date.Weekday()

	return DayClass{
		IsToday:    SameDay(date, now),
		IsSelected: SameDay(date, selected),
		IsSunday:   wd == time.Sunday,
		IsRed:      wd == time.Sunday || isHoliday,
		IsBlue:     wd == time.Saturday && !isHoliday,
	}
}

// SameDay reports whether a and b fall on the same calendar day. The
// comparison is on year/month/day components, not 24-hour windows.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last representable instant of t's calendar day.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
