package calendar

import (
	"sort"
	"time"

	"github.com/hbkim/iljeong/internal/model"
)

// Bucketize groups tasks by the calendar day of their start time in loc.
// Keys are YYYY-MM-DD strings; each bucket is ordered ascending by start
// time. Tasks whose start time lies outside [rangeStart, rangeEnd] are
// excluded. Bucket membership is decided solely by the Y/M/D components
// in loc — a task at 23:59 and one at 00:01 the next day land in
// different buckets even though both are inside the range.
func Bucketize(tasks []model.Task, rangeStart, rangeEnd time.Time, loc *time.Location) map[string][]model.Task {
	buckets := make(map[string][]model.Task)
	for _, t := range tasks {
		start := t.StartTime.In(loc)
		if start.Before(rangeStart) || start.After(rangeEnd) {
			continue
		}
		key := start.Format("2006-01-02")
		buckets[key] = append(buckets[key], t)
	}
	for key := range buckets {
		b := buckets[key]
		sort.SliceStable(b, func(i, j int) bool {
			return b[i].StartTime.Before(b[j].StartTime)
		})
	}
	return buckets
}

// MonthRange returns the inclusive bounds of the calendar month
// containing anchor, in anchor's location: the first instant of day 1
// through the last instant of the final day.
func MonthRange(anchor time.Time) (time.Time, time.Time) {
	y, m, _ := anchor.Date()
	start := time.Date(y, m, 1, 0, 0, 0, 0, anchor.Location())
	end := start.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return start, end
}

// FiveWeekRange returns the bounds of the 35-day grid the five-week
// dashboard mode renders: five full weeks starting on the Sunday of the
// week containing the first of anchor's month.
func FiveWeekRange(anchor time.Time) (time.Time, time.Time) {
	y, m, _ := anchor.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, anchor.Location())
	start := first.AddDate(0, 0, -int(first.Weekday()))
	end := start.AddDate(0, 0, 35).Add(-time.Nanosecond)
	return start, end
}

// GridMode selects which visible range a dashboard render uses.
type GridMode string

const (
	GridMonth    GridMode = "month"
	GridFiveWeek GridMode = "five-week"
)

// RangeFor returns the visible range for the given render mode,
// defaulting to the month grid for unknown modes.
func RangeFor(mode GridMode, anchor time.Time) (time.Time, time.Time) {
	if mode == GridFiveWeek {
		return FiveWeekRange(anchor)
	}
	return MonthRange(anchor)
}
