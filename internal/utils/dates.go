package utils

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidDate is returned when a date string cannot be read as a calendar date.
var ErrInvalidDate = errors.New("invalid date")

// DateLayout is the ISO calendar date format used for paths, keys and storage.
const DateLayout = "2006-01-02"

// compactLayout is the YYYYMMDD form used inside extract file names.
const compactLayout = "20060102"

// looseDateLayouts are tried in order by NormalizeDate. Day-first layouts are
// deliberately absent: "03/04/2024" is ambiguous.
var looseDateLayouts = []string{
	"2006-1-2",
	"2006/1/2",
	"2006.1.2",
	compactLayout,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Date is a calendar date without a time of day or zone.
type Date struct {
	t time.Time // always midnight UTC
}

// NewDate builds a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar date of t as seen in t's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a strict YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("%w %q: expected YYYY-MM-DD", ErrInvalidDate, s)
	}
	return DateOf(t), nil
}

// NormalizeDate accepts loosely formatted dates (2024/3/5, 20240305,
// 2024-03-05T10:00:00Z, ...) and returns the calendar date they name.
func NormalizeDate(s string) (Date, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Date{}, fmt.Errorf("%w: empty date", ErrInvalidDate)
	}
	for _, layout := range looseDateLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return DateOf(t), nil
		}
	}
	return Date{}, fmt.Errorf("%w %q", ErrInvalidDate, s)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d.t.IsZero()
}

// String returns the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.t.Format(DateLayout)
}

// Compact returns the date as YYYYMMDD.
func (d Date) Compact() string {
	return d.t.Format(compactLayout)
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{t: d.t.AddDate(0, 0, n)}
}

// Before reports whether d is strictly before other.
func (d Date) Before(other Date) bool {
	return d.t.Before(other.t)
}

// Window returns the inclusive day window [00:00:00, 23:59:59] of d in loc.
func (d Date) Window(loc *time.Location) DayWindow {
	if loc == nil {
		loc = time.UTC
	}
	start := time.Date(d.t.Year(), d.t.Month(), d.t.Day(), 0, 0, 0, 0, loc)
	return DayWindow{
		Start: start,
		End:   time.Date(d.t.Year(), d.t.Month(), d.t.Day(), 23, 59, 59, 0, loc),
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Date) UnmarshalText(b []byte) error {
	parsed, err := ParseDate(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DayWindow is an inclusive interval at whole-second resolution.
type DayWindow struct {
	Start time.Time
	End   time.Time
}

// StartUnix returns the window start as Unix seconds.
func (w DayWindow) StartUnix() int64 { return w.Start.Unix() }

// EndUnix returns the window end as Unix seconds.
func (w DayWindow) EndUnix() int64 { return w.End.Unix() }

// Contains reports whether t falls within the window. Timestamps are
// compared at the second resolution they are stored with.
func (w DayWindow) Contains(t time.Time) bool {
	u := t.Unix()
	return u >= w.StartUnix() && u <= w.EndUnix()
}
