package model

import "time"

// DateLayout is the canonical calendar-date format used for cache keys,
// query parameters and the price_history table.
const DateLayout = "2006-01-02"

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateKey formats t as a canonical date string.
func DateKey(t time.Time) string { return Day(t).Format(DateLayout) }

// ParseDate parses a canonical date string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

// DaysBetween returns every calendar date from start to end inclusive.
// Returns nil when end precedes start.
func DaysBetween(start, end time.Time) []time.Time {
	start, end = Day(start), Day(end)
	if end.Before(start) {
		return nil
	}
	days := make([]time.Time, 0, int(end.Sub(start).Hours()/24)+1)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}
