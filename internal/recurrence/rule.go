// Package recurrence computes the calendar dates produced by a repeat rule.
package recurrence

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Unit is the period a rule repeats on.
type Unit int

const (
	Daily Unit = iota
	Weekly
	Monthly
	Yearly
)

var unitNames = [...]string{"daily", "weekly", "monthly", "yearly"}

func (u Unit) String() string {
	if u < Daily || u > Yearly {
		return fmt.Sprintf("Unit(%d)", int(u))
	}
	return unitNames[u]
}

// ParseUnit reads a unit name as printed by String.
func ParseUnit(s string) (Unit, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range unitNames {
		if name == s {
			return Unit(i), nil
		}
	}
	return 0, fmt.Errorf("unknown repeat unit %q", s)
}

// WeekMask selects weekdays, index 0 is Monday and 6 is Sunday.
type WeekMask [7]bool

// MaskOf returns a mask with the given weekdays set.
func MaskOf(days ...time.Weekday) WeekMask {
	var m WeekMask
	for _, d := range days {
		m[maskIndex(d)] = true
	}
	return m
}

func maskIndex(d time.Weekday) int { return (int(d) + 6) % 7 }

// Has reports whether the weekday is selected.
func (m WeekMask) Has(d time.Weekday) bool { return m[maskIndex(d)] }

// IsEmpty reports whether no weekday is selected.
func (m WeekMask) IsEmpty() bool { return m == WeekMask{} }

// String renders the mask as seven comma separated 0/1 flags.
func (m WeekMask) String() string {
	flags := make([]string, len(m))
	for i, on := range m {
		flags[i] = "0"
		if on {
			flags[i] = "1"
		}
	}
	return strings.Join(flags, ",")
}

// ParseMask reads the format produced by String.
func ParseMask(s string) (WeekMask, error) {
	var m WeekMask
	parts := strings.Split(s, ",")
	if len(parts) != len(m) {
		return m, fmt.Errorf("week mask %q: want %d flags, got %d", s, len(m), len(parts))
	}
	for i, p := range parts {
		switch strings.TrimSpace(p) {
		case "0":
		case "1":
			m[i] = true
		default:
			return WeekMask{}, fmt.Errorf("week mask %q: flag %d is %q", s, i, p)
		}
	}
	return m, nil
}

// Rule describes how often something repeats. On is only meaningful for
// Weekly rules; an empty mask there means the weekday of the start date.
type Rule struct {
	Unit  Unit
	Every int
	On    WeekMask
}

func DailyEvery(n int) Rule   { return Rule{Unit: Daily, Every: n} }
func MonthlyEvery(n int) Rule { return Rule{Unit: Monthly, Every: n} }
func YearlyEvery(n int) Rule  { return Rule{Unit: Yearly, Every: n} }

// WeeklyOn repeats every n weeks on the given weekdays.
func WeeklyOn(n int, days ...time.Weekday) Rule {
	return Rule{Unit: Weekly, Every: n, On: MaskOf(days...)}
}

var errNoInterval = errors.New("repeat interval must be at least 1")

// Validate rejects rules that cannot produce a well-defined series.
func (r Rule) Validate() error {
	if r.Unit < Daily || r.Unit > Yearly {
		return fmt.Errorf("invalid repeat unit %d", int(r.Unit))
	}
	if r.Every < 1 {
		return errNoInterval
	}
	if r.Unit != Weekly && !r.On.IsEmpty() {
		return fmt.Errorf("weekday mask set on a %s rule", r.Unit)
	}
	return nil
}

func (r Rule) String() string {
	s := fmt.Sprintf("every %d %s", r.Every, r.Unit)
	if r.Unit == Weekly && !r.On.IsEmpty() {
		s += " on " + r.On.String()
	}
	return s
}
