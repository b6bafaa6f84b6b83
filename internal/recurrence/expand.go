package recurrence

import (
	"time"

	"github.com/google/uuid"
)

// MaxInstances caps the number of instances one expansion may produce.
// Expansion past the cap truncates rather than erroring; callers surface
// the Truncated flag to the user.
const MaxInstances = 365

// Spec describes one recurring-schedule request.
type Spec struct {
	Title       string
	Description string
	OwnerID     int64
	Start       time.Time // first instance's start (and end) time
	Rule        Rule
	// EndDate bounds the expansion for repeating rules; instances are
	// generated for any step date on or before the end of this calendar
	// day. Ignored when Rule is None.
	EndDate time.Time
}

// Instance is one concrete task-creation payload produced by Expand.
type Instance struct {
	Title          string
	Description    string
	OwnerID        int64
	StartTime      time.Time
	EndTime        time.Time
	RecurrenceID   *string // nil when Rule is None
	RecurrenceRule Rule
}

// Expand produces the ordered instances for spec.
//
// Rule None yields exactly one instance with a nil recurrence id. The
// repeating rules step by one day, one week, or one calendar month from
// spec.Start, inclusive of any instant at or before the end of
// spec.EndDate, up to MaxInstances; truncated reports whether the cap
// cut the expansion short. All instances of one call share a freshly
// generated group id and the rule value.
//
// Monthly stepping from a day-of-month that a shorter month lacks clamps
// to that month's last day (Jan 31 → Feb 28/29 → Mar 31).
func Expand(spec Spec) (instances []Instance, truncated bool) {
	if spec.Rule == None {
		return []Instance{{
			Title:          spec.Title,
			Description:    spec.Description,
			OwnerID:        spec.OwnerID,
			StartTime:      spec.Start,
			EndTime:        spec.Start,
			RecurrenceRule: None,
		}}, false
	}

	groupID := uuid.NewString()
	limit := endOfDay(spec.EndDate, spec.Start.Location())

	for i := 0; ; i++ {
		at := step(spec.Start, spec.Rule, i)
		if at.After(limit) {
			return instances, false
		}
		if len(instances) == MaxInstances {
			return instances, true
		}
		instances = append(instances, Instance{
			Title:          spec.Title,
			Description:    spec.Description,
			OwnerID:        spec.OwnerID,
			StartTime:      at,
			EndTime:        at,
			RecurrenceID:   &groupID,
			RecurrenceRule: spec.Rule,
		})
	}
}

// step returns the n-th instance time for rule, counted from start.
// Each step is computed from the original start rather than the previous
// instance so monthly clamping never drifts (Jan 31 → Feb 28 → Mar 31,
// not Mar 28).
func step(start time.Time, rule Rule, n int) time.Time {
	switch rule {
	case Daily:
		return start.AddDate(0, 0, n)
	case Weekly:
		return start.AddDate(0, 0, 7*n)
	case Monthly:
		return addMonthsClamped(start, n)
	}
	return start
}

// addMonthsClamped advances t by n calendar months, clamping the day of
// month to the target month's last valid day.
func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	target := first.AddDate(0, n, 0)
	ty, tm, _ := target.Date()
	if last := daysInMonth(ty, tm); d > last {
		d = last
	}
	return time.Date(ty, tm, d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func endOfDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
