package util

import (
	"strconv"
	"time"
)

// DayLayout is the wire format for trading days.
const DayLayout = "2006-01-02"

// ParseDay tries the day layout, RFC3339, and unix seconds. The result
// is truncated to UTC midnight. Returns (t, true) if any worked.
func ParseDay(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DayLayout, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return Day(t), true
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return Day(time.Unix(ts, 0)), true
	}
	return time.Time{}, false
}

// Day truncates t to UTC midnight.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayString formats t as a trading day.
func DayString(t time.Time) string {
	return t.Format(DayLayout)
}

// DaysBetween counts calendar days from start to end inclusive.
func DaysBetween(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	return int(Day(end).Sub(Day(start))/(24*time.Hour)) + 1
}
