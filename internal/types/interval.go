package types

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Date is a calendar date with no time-of-day component.
// All arithmetic is done on calendar days, never on instants,
// so results are stable regardless of the host timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate constructs a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Year: year, Month: month, Day: day}
}

// ParseDate parses a date in ISO 8601 form (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

// String formats the date as 2006-01-02.
func (d Date) String() string {
	return d.midnightUTC().Format("2006-01-02")
}

// midnightUTC pins the date to midnight UTC so day differences are exact.
func (d Date) midnightUTC() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// ordinal returns the day number since the Unix epoch.
func (d Date) ordinal() int {
	return int(d.midnightUTC().Unix() / 86400)
}

// Before reports whether d is earlier than other.
func (d Date) Before(other Date) bool { return d.ordinal() < other.ordinal() }

// After reports whether d is later than other.
func (d Date) After(other Date) bool { return d.ordinal() > other.ordinal() }

// Equal reports whether d and other are the same calendar day.
func (d Date) Equal(other Date) bool { return d.ordinal() == other.ordinal() }

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == Date{} }

// MarshalJSON encodes the date as an ISO 8601 string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON decodes an ISO 8601 date string.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" || s == "" {
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Interval validation errors.
var (
	ErrIntervalEmpty     = errors.New("interval requires a date or a date range")
	ErrIntervalAmbiguous = errors.New("interval must be a single date or a range, not both")
	ErrIntervalInverted  = errors.New("interval range start must not be after end")
	ErrIntervalPartial   = errors.New("interval range requires both start and end")
)

// Interval is a span of calendar days: either a single date or an
// inclusive [start, end] range. Exactly one of the two forms is set.
type Interval struct {
	On    *Date `json:"on,omitempty"`
	Start *Date `json:"start,omitempty"`
	End   *Date `json:"end,omitempty"`
}

// SingleDay returns an interval covering one calendar day.
func SingleDay(d Date) Interval {
	return Interval{On: &d}
}

// DateRange returns an inclusive [start, end] interval.
func DateRange(start, end Date) Interval {
	return Interval{Start: &start, End: &end}
}

// Validate enforces the single-date XOR range invariant and range ordering.
func (iv Interval) Validate() error {
	hasSingle := iv.On != nil
	hasStart := iv.Start != nil
	hasEnd := iv.End != nil

	switch {
	case hasSingle && (hasStart || hasEnd):
		return ErrIntervalAmbiguous
	case hasSingle:
		return nil
	case !hasStart && !hasEnd:
		return ErrIntervalEmpty
	case hasStart != hasEnd:
		return ErrIntervalPartial
	case iv.Start.After(*iv.End):
		return ErrIntervalInverted
	}
	return nil
}

// IsRange reports whether the interval is a multi-capable [start, end] range.
func (iv Interval) IsRange() bool {
	return iv.On == nil && iv.Start != nil && iv.End != nil
}

// Bounds returns the first and last day covered. A single date is a
// range of length one.
func (iv Interval) Bounds() (Date, Date) {
	if iv.On != nil {
		return *iv.On, *iv.On
	}
	return *iv.Start, *iv.End
}

// Days returns the inclusive day count: floor(end-start)+1, 1 for a single date.
func (iv Interval) Days() int {
	start, end := iv.Bounds()
	return end.ordinal() - start.ordinal() + 1
}

// Overlaps reports whether two intervals share at least one day.
// Boundary equality counts as overlap.
func (iv Interval) Overlaps(other Interval) bool {
	aStart, aEnd := iv.Bounds()
	bStart, bEnd := other.Bounds()
	return !aStart.After(bEnd) && !bStart.After(aEnd)
}

// ContainsDay reports whether the interval covers the given day.
func (iv Interval) ContainsDay(day Date) bool {
	start, end := iv.Bounds()
	return !day.Before(start) && !day.After(end)
}

// Intersect returns the overlap window of two intervals. ok is false
// when they do not overlap.
func (iv Interval) Intersect(other Interval) (Interval, bool) {
	if !iv.Overlaps(other) {
		return Interval{}, false
	}
	aStart, aEnd := iv.Bounds()
	bStart, bEnd := other.Bounds()
	start, end := aStart, aEnd
	if bStart.After(start) {
		start = bStart
	}
	if bEnd.Before(end) {
		end = bEnd
	}
	return DateRange(start, end), true
}
