// Package date provides a calendar date with day granularity.
package date

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// StoreFormat is the layout used for dates persisted in the database.
const StoreFormat = "2006/01/02"

// ISOFormat is the layout used for display.
const ISOFormat = "2006-01-02"

// yearWindowAhead bounds how far into the future a two-digit year may land.
const yearWindowAhead = 20

// Date is a calendar day. The zero value means "no date".
type Date struct {
	y int
	m time.Month
	d int
}

// New returns a normalized Date, so New(2009, 2, 30) is 2009-03-02.
func New(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{t.Year(), t.Month(), t.Day()}
}

// FromTime truncates t to its calendar day.
func FromTime(t time.Time) Date { return New(t.Date()) }

// Today returns the current local date.
func Today() Date { return FromTime(time.Now()) }

func (d Date) time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time { return d.time() }

func (d Date) Year() int             { return d.y }
func (d Date) Month() time.Month     { return d.m }
func (d Date) Day() int              { return d.d }
func (d Date) Weekday() time.Weekday { return d.time().Weekday() }

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool { return d == Date{} }

// Add returns d shifted by the given number of days.
func (d Date) Add(days int) Date { return New(d.y, d.m, d.d+days) }

func (d Date) Before(x Date) bool { return d.Compare(x) < 0 }
func (d Date) After(x Date) bool  { return d.Compare(x) > 0 }

// Compare returns -1, 0 or +1 ordering d against x.
func (d Date) Compare(x Date) int {
	switch {
	case d.y != x.y:
		return cmp(d.y, x.y)
	case d.m != x.m:
		return cmp(int(d.m), int(x.m))
	default:
		return cmp(d.d, x.d)
	}
}

func cmp(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.time().Format(ISOFormat)
}

// Store formats the date as YYYY/MM/DD.
func (d Date) Store() string { return d.time().Format(StoreFormat) }

// ParseStore parses a YYYY/MM/DD database value.
func ParseStore(s string) (Date, error) {
	t, err := time.Parse(StoreFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid stored date %q: %w", s, err)
	}
	return FromTime(t), nil
}

// IsLeap reports whether year is a leap year.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return New(year, month+1, 0).d
}

// Parse reads a year-month-day date separated by '-', '/' or '.'.
// One or two digit years are expanded relative to today's year, see ExpandYear.
func Parse(s string, today Date) (Date, error) {
	s = strings.TrimSpace(s)
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '-' || r == '/' || r == '.' })
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("invalid date %q: want year-month-day", s)
	}

	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
		}
		nums[i] = n
	}
	year, month, day := nums[0], nums[1], nums[2]
	if len(parts[0]) <= 2 {
		year = ExpandYear(year, today.Year())
	}
	if month < 1 || month > 12 {
		return Date{}, fmt.Errorf("invalid date %q: month %d out of range", s, month)
	}
	if day < 1 || day > DaysIn(year, time.Month(month)) {
		return Date{}, fmt.Errorf("invalid date %q: day %d out of range", s, day)
	}
	return New(year, time.Month(month), day), nil
}

// MustParse is like Parse with an ISO input but panics on error.
func MustParse(s string) Date {
	t, err := time.Parse(ISOFormat, s)
	if err != nil {
		panic(err.Error())
	}
	return FromTime(t)
}

// ExpandYear maps a two-digit year onto the century that keeps it within
// yearWindowAhead years after current and no more than 100-yearWindowAhead
// years before it.
func ExpandYear(yy, current int) int {
	y := current - current%100 + yy%100
	switch {
	case y > current+yearWindowAhead:
		y -= 100
	case y <= current+yearWindowAhead-100:
		y += 100
	}
	return y
}
