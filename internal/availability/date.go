package availability

import (
	"fmt"
	"time"
)

// DateLayout is the calendar-date wire format accepted by this package.
const DateLayout = "2006-01-02"

// ParseDate converts a "YYYY-MM-DD" string into a neutral instant: noon UTC
// on that calendar day. Anchoring away from midnight means the civil date, and
// therefore the weekday, cannot shift when the value is re-read under a
// different UTC offset. Out-of-range dates (e.g. 2025-02-30) are rejected,
// never clamped.
func ParseDate(value string) (time.Time, error) {
	parsed, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, newError(KindInvalidDate, fmt.Sprintf("invalid date %q: expected YYYY-MM-DD", value), err)
	}
	return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 12, 0, 0, 0, time.UTC), nil
}

// Weekday returns the weekday index of the instant, 0=Sunday through
// 6=Saturday. Combined with the noon anchor from ParseDate the result matches
// the human calendar for the written date regardless of the process timezone.
func Weekday(t time.Time) int {
	return int(t.In(time.UTC).Weekday())
}

// AddDays advances the instant by whole calendar days, preserving the noon
// anchor. Used for date-range iteration.
func AddDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

// FormatDate renders the instant back to its "YYYY-MM-DD" identifier.
func FormatDate(t time.Time) string {
	return t.In(time.UTC).Format(DateLayout)
}
