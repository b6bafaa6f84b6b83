// Package holiday provides the Korean public holiday table used for
// calendar day classification.
package holiday

import (
	"fmt"
	"time"
)

// fixedHolidays are the solar-calendar national holidays that fall on the
// same date every year: New Year's Day, Independence Movement Day,
// Children's Day, Memorial Day, Liberation Day, National Foundation Day,
// Hangeul Day, and Christmas.
var fixedHolidays = []string{
	"01-01",
	"03-01",
	"05-05",
	"06-06",
	"08-15",
	"10-03",
	"10-09",
	"12-25",
}

// movable holds the curated lunar-calendar and substitute holidays for
// the years this table has been maintained for: Seollal, Buddha's
// Birthday, Chuseok, and the government-designated substitute days.
var movable = map[int][]string{
	2025: {
		"2025-01-28", "2025-01-29", "2025-01-30", // Seollal
		"2025-03-03", // substitute for Independence Movement Day
		"2025-05-05", // Buddha's Birthday (coincides with Children's Day)
		"2025-05-06", // substitute for Children's Day
		"2025-10-05", "2025-10-06", "2025-10-07", "2025-10-08", // Chuseok
	},
	2026: {
		"2026-02-16", "2026-02-17", "2026-02-18", // Seollal
		"2026-03-02", // substitute for Independence Movement Day
		"2026-05-24", // Buddha's Birthday
		"2026-05-25", // substitute for Buddha's Birthday
		"2026-09-24", "2026-09-25", "2026-09-26", // Chuseok
	},
	2027: {
		"2027-02-06", "2027-02-07", "2027-02-08", // Seollal
		"2027-02-09", // substitute for Seollal
		"2027-05-13", // Buddha's Birthday
		"2027-08-16", // substitute for Liberation Day
		"2027-09-14", "2027-09-15", "2027-09-16", // Chuseok
		"2027-10-04", // substitute for National Foundation Day
	},
}

// ForYear returns the set of holiday dates (YYYY-MM-DD) for the given
// year: the eight fixed national holidays, plus curated lunar-calendar
// and substitute holidays for years present in the maintained table.
//
// Known limitation: for years outside the maintained table the movable
// holidays are silently absent — there is no algorithmic lunar-calendar
// computation. The table has to be extended by hand each year.
func ForYear(year int) map[string]struct{} {
	set := make(map[string]struct{}, len(fixedHolidays)+12)
	for _, md := range fixedHolidays {
		set[fmt.Sprintf("%04d-%s", year, md)] = struct{}{}
	}
	for _, d := range movable[year] {
		set[d] = struct{}{}
	}
	return set
}

// Contains reports whether the given date (in its own location) is a
// holiday.
func Contains(set map[string]struct{}, date time.Time) bool {
	_, ok := set[date.Format("2006-01-02")]
	return ok
}
