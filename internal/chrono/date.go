// Package chrono provides the calendar-date type used to key collection runs.
package chrono

import (
	"fmt"
	"time"
)

// Date is a calendar date with no time-of-day component.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses "YYYY/MM/DD", the CLI date format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006/01/02", s)
	if err != nil {
		return Date{}, fmt.Errorf("chrono: invalid date %q, want YYYY/MM/DD: %w", s, err)
	}
	return FromTime(t), nil
}

// FromTime truncates a time.Time to its date in the time's location.
func FromTime(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Yesterday returns the day before today, the default collection target.
func Yesterday() Date {
	return FromTime(time.Now().AddDate(0, 0, -1))
}

// ISO formats the date as yyyy-mm-dd.
func (d Date) ISO() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// US formats the date as mm/dd/yyyy, the format the scoreboard query expects.
func (d Date) US() string {
	return fmt.Sprintf("%02d/%02d/%04d", d.Month, d.Day, d.Year)
}

func (d Date) String() string { return d.ISO() }

// YMD returns zero-padded year, month and day strings for path layout.
func (d Date) YMD() (year, month, day string) {
	return fmt.Sprintf("%04d", d.Year), fmt.Sprintf("%02d", d.Month), fmt.Sprintf("%02d", d.Day)
}

// Time returns midnight UTC of the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// Next returns the following day.
func (d Date) Next() Date {
	return FromTime(d.Time().AddDate(0, 0, 1))
}

// Before reports whether d precedes o.
func (d Date) Before(o Date) bool {
	return d.Time().Before(o.Time())
}

// Range returns every date from a through b inclusive. Returns nil if b
// precedes a.
func Range(a, b Date) []Date {
	var out []Date
	for d := a; !b.Before(d); d = d.Next() {
		out = append(out, d)
	}
	return out
}
