// Package dates holds day-granularity helpers. Appointment and visit dates
// carry no time of day; they are represented as midnight UTC.
package dates

import (
	"fmt"
	"time"
)

const Layout = "2006-01-02"

// Day truncates t to midnight UTC of its calendar day in t's location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func Parse(s string) (time.Time, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return t, nil
}

func Format(t time.Time) string {
	return t.Format(Layout)
}

// Before reports whether day a falls strictly before day b.
func Before(a, b time.Time) bool {
	return Day(a).Before(Day(b))
}

// Age returns whole years elapsed between birth and now.
func Age(birth, now time.Time) int {
	if birth.IsZero() {
		return 0
	}
	years := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
