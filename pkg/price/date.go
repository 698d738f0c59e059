package price

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage format of a Date.
const DateLayout = "2006-01-02"

// DefaultTimezone is the reference timezone that defines a business day.
const DefaultTimezone = "Asia/Tokyo"

// Date is a calendar day with no time component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate normalises the given components (e.g. day 0 becomes the last day of the previous month).
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t, time.UTC), nil
}

// DateOf returns the calendar day of t as observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// Yesterday returns the day before now's calendar day in loc.
func Yesterday(now time.Time, loc *time.Location) Date {
	return DateOf(now, loc).AddDays(-1)
}

// AddDays moves the date by n calendar days.
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

// DatesBetween returns every day from from to to inclusive, ascending.
func DatesBetween(from, to Date) ([]Date, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("range end %s is before start %s", to, from)
	}
	var out []Date
	for d := from; !to.Before(d); d = d.AddDays(1) {
		out = append(out, d)
	}
	return out, nil
}

// Bounds returns 00:00:00 and 23:59:59 of the day in loc.
func (d Date) Bounds(loc *time.Location) (time.Time, time.Time) {
	start := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
	end := time.Date(d.Year, d.Month, d.Day, 23, 59, 59, 0, loc)
	return start, end
}

// Before reports whether d is an earlier day than other.
func (d Date) Before(other Date) bool {
	return d.String() < other.String()
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText encodes the date as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a YYYY-MM-DD date.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// LoadLocation resolves the reference timezone. An empty name selects DefaultTimezone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}
