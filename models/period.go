package models

import (
	"errors"
	"fmt"
	"time"
)

const periodLayout = "2006-01"

var ErrInvalidPeriod = errors.New("invalid period, expected YYYY-MM")

var swedishMonths = [...]string{
	"januari", "februari", "mars", "april", "maj", "juni",
	"juli", "augusti", "september", "oktober", "november", "december",
}

// PeriodFromDate returns the YYYY-MM bucket of t.
func PeriodFromDate(t time.Time) string {
	return t.Format(periodLayout)
}

// ParsePeriod returns the first day of the period p.
func ParsePeriod(p string) (time.Time, error) {
	if len(p) != len(periodLayout) {
		return time.Time{}, ErrInvalidPeriod
	}
	t, err := time.Parse(periodLayout, p)
	if err != nil {
		return time.Time{}, ErrInvalidPeriod
	}
	return t, nil
}

// PeriodLabel renders a period in Swedish, "2024-03" => "mars 2024".
// Invalid input is returned unchanged.
func PeriodLabel(p string) string {
	t, err := ParsePeriod(p)
	if err != nil {
		return p
	}
	return fmt.Sprintf("%s %d", swedishMonths[t.Month()-1], t.Year())
}

// PeriodRange returns [first day, first day of next month).
func PeriodRange(p string) (time.Time, time.Time, error) {
	start, err := ParsePeriod(p)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.AddDate(0, 1, 0), nil
}
