package domain

import (
	"math"
	"strings"
	"time"
)

// DateLayout is the canonical wire and storage format for date-only values.
const DateLayout = "2006-01-02"

// feedingDateLayouts are tried in order when a feeding date arrives as free text.
var feedingDateLayouts = []string{
	DateLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"01/02/2006",
}

// DateOf drops the time-of-day part of t, keeping the calendar day as seen in
// t's own location. The result is midnight UTC so that day arithmetic is exact.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the calendar day n days after d.
func AddDays(d time.Time, n int) time.Time {
	return DateOf(d).AddDate(0, 0, n)
}

// DaysBetween returns the signed number of calendar days from -> to.
func DaysBetween(from, to time.Time) int {
	return int(math.Round(DateOf(to).Sub(DateOf(from)).Hours() / 24))
}

// ParseDate parses a strict YYYY-MM-DD value.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, NewValidationError("date", "must be YYYY-MM-DD")
	}
	return t, nil
}

// ParseFeedingDate accepts any of the known feeding date layouts and
// normalises the result to a date-only value. ok is false when nothing matched.
func ParseFeedingDate(raw string) (date time.Time, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range feedingDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return DateOf(t), true
		}
	}
	return time.Time{}, false
}

// FormatDate renders a date pointer, or "" when unset.
func FormatDate(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.Format(DateLayout)
}
