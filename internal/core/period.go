package core

import (
	"errors"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

// Date is a calendar date stored as UTC midnight.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// YearMonth returns the calendar month containing d.
func (d Date) YearMonth() YearMonth {
	return YearMonth{Year: d.Year(), Month: d.Month()}
}

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// String formats as "2024-01".
func (ym YearMonth) String() string {
	return fmt.Sprintf("%04d-%02d", ym.Year, int(ym.Month))
}

// Next returns the following month.
func (ym YearMonth) Next() YearMonth {
	return ym.Add(1)
}

// Add moves ym by n months (n may be negative).
func (ym YearMonth) Add(n int) YearMonth {
	idx := ym.Year*12 + int(ym.Month) - 1 + n
	return YearMonth{Year: idx / 12, Month: time.Month(idx%12 + 1)}
}

// Before reports whether ym is earlier than other.
func (ym YearMonth) Before(other YearMonth) bool {
	if ym.Year != other.Year {
		return ym.Year < other.Year
	}
	return ym.Month < other.Month
}

// FirstDay returns the first date of the month.
func (ym YearMonth) FirstDay() Date {
	return NewDate(ym.Year, ym.Month, 1)
}

// LastDay returns the last date of the month.
func (ym YearMonth) LastDay() Date {
	return NewDate(ym.Year, ym.Month+1, 0)
}

// Range returns the whole month as a DateRange.
func (ym YearMonth) Range() DateRange {
	return DateRange{Start: ym.FirstDay(), End: ym.LastDay()}
}

// DateRange is an inclusive [Start, End] calendar window.
type DateRange struct {
	Start Date
	End   Date
}

var ErrInvalidRange = errors.New("invalid date range")

func (r DateRange) Validate() error {
	if r.Start.IsZero() || r.End.IsZero() {
		return fmt.Errorf("%w: start and end are required", ErrInvalidRange)
	}
	if r.End.Before(r.Start.Time) {
		return fmt.Errorf("%w: end %s is before start %s", ErrInvalidRange, r.End, r.Start)
	}
	return nil
}

// Contains reports whether d falls within the range, both ends included.
func (r DateRange) Contains(d Date) bool {
	return !d.Before(r.Start.Time) && !d.After(r.End.Time)
}

// Months lists every calendar month touched by the range, in order.
func (r DateRange) Months() []YearMonth {
	if r.Validate() != nil {
		return nil
	}
	first, last := r.Start.YearMonth(), r.End.YearMonth()
	var out []YearMonth
	for ym := first; !last.Before(ym); ym = ym.Next() {
		out = append(out, ym)
	}
	return out
}

// ShiftYears moves both ends by n years keeping month and day.
// Feb 29 becomes Feb 28 in non-leap target years.
func (r DateRange) ShiftYears(n int) DateRange {
	return DateRange{Start: shiftYears(r.Start, n), End: shiftYears(r.End, n)}
}

func (r DateRange) String() string {
	return r.Start.String() + ".." + r.End.String()
}

func shiftYears(d Date, n int) Date {
	y, m, day := d.Date()
	y += n
	if last := NewDate(y, m+1, 0).Day(); day > last {
		day = last
	}
	return NewDate(y, m, day)
}

// TrailingMonths returns the n months ending with anchor, oldest first.
func TrailingMonths(anchor YearMonth, n int) []YearMonth {
	if n <= 0 {
		return nil
	}
	out := make([]YearMonth, 0, n)
	for i := n - 1; i >= 0; i-- {
		out = append(out, anchor.Add(-i))
	}
	return out
}

// Period names a preset reporting window.
type Period string

const (
	ThisMonth Period = "thisMonth"
	LastMonth Period = "lastMonth"
	ThisYear  Period = "thisYear"
	LastYear  Period = "lastYear"
	Custom    Period = "custom"
)

var ErrUnknownPeriod = errors.New("unknown period")

// PresetRange resolves a preset relative to now. Custom has no preset range.
func PresetRange(p Period, now time.Time) (DateRange, error) {
	today := DateOf(now)
	switch p {
	case ThisMonth:
		return today.YearMonth().Range(), nil
	case LastMonth:
		return today.YearMonth().Add(-1).Range(), nil
	case ThisYear:
		return yearRange(today.Year()), nil
	case LastYear:
		return yearRange(today.Year() - 1), nil
	case Custom:
		return DateRange{}, fmt.Errorf("%w: custom period needs explicit start and end", ErrInvalidRange)
	default:
		return DateRange{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, p)
	}
}

func yearRange(year int) DateRange {
	return DateRange{Start: NewDate(year, time.January, 1), End: NewDate(year, time.December, 31)}
}

// ResolveRange turns a period name or an explicit start and end into a range.
// Explicit dates win over the preset. An empty period with no dates means
// ThisMonth.
func ResolveRange(period, start, end string, now time.Time) (DateRange, error) {
	if start != "" || end != "" {
		s, err := ParseDate(start)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: start: %w", ErrInvalidRange, err)
		}
		e, err := ParseDate(end)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: end: %w", ErrInvalidRange, err)
		}
		r := DateRange{Start: s, End: e}
		return r, r.Validate()
	}
	if period == "" {
		period = string(ThisMonth)
	}
	return PresetRange(Period(period), now)
}
