package models

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-day format used for expense and trip dates.
const DateLayout = "2006-01-02"

// ParseDate parses a calendar day. Longer timestamps such as
// "2025-01-15T12:00:00Z" are truncated to their first ten characters.
func ParseDate(s string) (time.Time, error) {
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate formats t as a calendar day. The zero time formats as "".
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

// Day truncates t to its calendar day in t's own offset, the day a
// timestamp such as "2025-01-15T23:30:00-05:00" names, and returns it at
// midnight UTC.
func Day(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
