// Package dates holds the single date representation used for user records:
// dd.MM.yyyy on the wire and in the model, SQL DATE in the store.
package dates

import (
	"fmt"
	"strings"
	"time"
)

// Layout is dd.MM.yyyy.
const Layout = "02.01.2006"

const isoLayout = "2006-01-02"

func Format(t time.Time) string {
	return t.Format(Layout)
}

// ParseStored parses a value already in Layout.
func ParseStored(s string) (time.Time, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// ParseCalendar parses client input: an ISO calendar date (yyyy-MM-dd) or an
// RFC 3339 timestamp, of which only the date part is kept.
func ParseCalendar(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(isoLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid calendar date %q", s)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// Reformat converts client input into Layout.
func Reformat(s string) (string, error) {
	t, err := ParseCalendar(s)
	if err != nil {
		return "", err
	}
	return Format(t), nil
}
