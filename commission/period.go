package commission

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Day-granular point in time (UTC)
// =============================================================================

// Date is a calendar day in UTC. Transaction dates, assignment ranges
// and calculation periods are all day-granular.
type Date struct {
	Time time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func Today() Date {
	now := time.Now().UTC()
	return NewDate(now.Year(), now.Month(), now.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return Date{Time: t.UTC()}, nil
}

func (d Date) normalize() time.Time {
	return time.Date(d.Time.Year(), d.Time.Month(), d.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Comparison
func (d Date) Before(other Date) bool        { return d.normalize().Before(other.normalize()) }
func (d Date) Equal(other Date) bool         { return d.normalize().Equal(other.normalize()) }
func (d Date) After(other Date) bool         { return d.normalize().After(other.normalize()) }
func (d Date) BeforeOrEqual(other Date) bool { return d.Before(other) || d.Equal(other) }
func (d Date) AfterOrEqual(other Date) bool  { return d.After(other) || d.Equal(other) }
func (d Date) IsZero() bool                  { return d.Time.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date   { return Date{Time: d.Time.AddDate(0, 0, n)} }
func (d Date) AddMonths(n int) Date { return Date{Time: d.Time.AddDate(0, n, 0)} }

// Calendar accessors
func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }

func (d Date) String() string { return d.normalize().Format("2006-01-02") }

// =============================================================================
// PERIOD - Calculation window, inclusive on both ends
// =============================================================================

// Period is the [Start, End] window a calculation covers. Commission is
// always computed for a period, never at a point in time.
type Period struct {
	Start Date
	End   Date
}

// Contains reports whether d falls inside the period.
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Valid reports whether the period is well-formed.
func (p Period) Valid() bool {
	return !p.Start.IsZero() && !p.End.IsZero() && !p.End.Before(p.Start)
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// MonthPeriod returns the calendar-month period containing the given month.
func MonthPeriod(year int, month time.Month) Period {
	start := NewDate(year, month, 1)
	end := start.AddMonths(1).AddDays(-1)
	return Period{Start: start, End: end}
}

// QuarterPeriod returns the calendar quarter (1-4) of a year.
func QuarterPeriod(year, quarter int) Period {
	start := NewDate(year, time.Month((quarter-1)*3+1), 1)
	end := start.AddMonths(3).AddDays(-1)
	return Period{Start: start, End: end}
}

// ParseQuarter parses a YYYY-Qn string ("2026-Q1") into its quarter
// period.
func ParseQuarter(s string) (Period, error) {
	var year, quarter int
	n, err := fmt.Sscanf(s, "%d-Q%d", &year, &quarter)
	if err != nil || n != 2 || quarter < 1 || quarter > 4 {
		return Period{}, fmt.Errorf("invalid quarter %q (use YYYY-Qn)", s)
	}
	return QuarterPeriod(year, quarter), nil
}
