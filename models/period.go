package models

import "time"

// Period selects a reporting window relative to a reference time.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	switch p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly:
		return true
	}
	return false
}

// Days is the number of calendar days the period covers for capacity math.
func (p Period) Days() int {
	switch p {
	case PeriodWeekly:
		return 7
	case PeriodMonthly:
		return 30
	default:
		return 1
	}
}

// Window returns [from, to) for the period ending at now. The daily window
// starts at local midnight of now's day.
func (p Period) Window(now time.Time) (time.Time, time.Time) {
	switch p {
	case PeriodWeekly:
		return now.AddDate(0, 0, -7), now
	case PeriodMonthly:
		return now.AddDate(0, 0, -30), now
	default:
		return StartOfDay(now), now
	}
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayWindow returns [midnight, next midnight) for t's calendar day.
func DayWindow(t time.Time) (time.Time, time.Time) {
	start := StartOfDay(t)
	return start, start.AddDate(0, 0, 1)
}
