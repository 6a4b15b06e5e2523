package utils

import (
	"fmt"
	"strings"
	"time"
)

const (
	layoutDate     = "2006-01-02"
	layoutDateTime = "2006-01-02 15:04:05"
)

// ParseDate parses YYYY-MM-DD in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	return time.ParseInLocation(layoutDate, strings.TrimSpace(s), orLocal(loc))
}

// ParseTimestamp accepts RFC3339, "YYYY-MM-DD HH:MM:SS" or "YYYY-MM-DD".
func ParseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(layoutDateTime, s, orLocal(loc)); err == nil {
		return t, nil
	}
	if t, err := ParseDate(s, loc); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("format waktu tidak dikenali: %q", s)
}

// DayWindow returns [startOfDay, startOfDay+1 day) for t's calendar date in loc.
func DayWindow(t time.Time, loc *time.Location) (time.Time, time.Time) {
	t = t.In(orLocal(loc))
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return start, start.AddDate(0, 0, 1)
}

// FormatDate formats time to YYYY-MM-DD in loc.
func FormatDate(t time.Time, loc *time.Location) string {
	return t.In(orLocal(loc)).Format(layoutDate)
}

func orLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}
