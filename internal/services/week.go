package services

import (
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// StartOfWeek returns midnight UTC of the Monday of t's week.
func StartOfWeek(t time.Time) time.Time {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7 // Monday = 0
	return time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
}

// WeekKey formats the Monday of t's week as YYYY-MM-DD.
func WeekKey(t time.Time) string {
	return StartOfWeek(t).Format(dateLayout)
}

// ParseWeek parses a YYYY-MM-DD date and returns the Monday of its week.
func ParseWeek(s string) (time.Time, error) {
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: week must be YYYY-MM-DD", ErrInvalidInput)
	}
	return StartOfWeek(d), nil
}
