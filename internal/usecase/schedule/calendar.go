package schedule

import "time"

// The schedule is anchored on Mondays: each plan week is represented by the
// Monday on/after which its purchases happen.

// Midnight normalizes a timestamp to midnight UTC, the granularity every
// date comparison in the planner uses.
func Midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NextMonday returns t's day if it is a Monday, otherwise the first Monday
// after it.
func NextMonday(t time.Time) time.Time {
	day := Midnight(t)
	offset := (int(time.Monday) - int(day.Weekday()) + 7) % 7
	return day.AddDate(0, 0, offset)
}

// WeekAnchors maps a start date and duration to the ordered Monday anchor
// dates of the plan, one per week, 7 days apart.
func WeekAnchors(startDate time.Time, durationWeeks int) []time.Time {
	if durationWeeks < 1 {
		return nil
	}
	anchors := make([]time.Time, durationWeeks)
	anchor := NextMonday(startDate)
	for i := range anchors {
		anchors[i] = anchor
		anchor = anchor.AddDate(0, 0, 7)
	}
	return anchors
}

// IsFutureWeek reports whether the 1-based weekIndex's anchor date is after
// today. A future week has no price yet, so the engine must not compute
// real amounts for it. Out-of-range indexes past the schedule are treated
// as future; indexes below 1 are not.
func IsFutureWeek(weekIndex int, anchors []time.Time, today time.Time) bool {
	if weekIndex < 1 {
		return false
	}
	if weekIndex > len(anchors) {
		return true
	}
	return anchors[weekIndex-1].After(Midnight(today))
}

// WeekIndexAt returns the 1-based index of the schedule week containing
// today: the latest anchor on/before today. It returns 0 when today
// precedes the first anchor and len(anchors) once the schedule is over.
func WeekIndexAt(anchors []time.Time, today time.Time) int {
	day := Midnight(today)
	for i := len(anchors) - 1; i >= 0; i-- {
		if !anchors[i].After(day) {
			return i + 1
		}
	}
	return 0
}
