package recurrence

import (
	"iter"
	"time"

	"github.com/cleared-dev/pocketbank/internal/date"
)

// Series returns the infinite ascending sequence of dates produced by r when
// anchored at start. The rule is assumed valid.
func (r Rule) Series(start date.Date) iter.Seq[date.Date] {
	every := max(r.Every, 1)
	switch r.Unit {
	case Weekly:
		return weekly(start, every, r.On)
	case Monthly:
		return monthly(start, every)
	case Yearly:
		return yearly(start, every)
	default:
		return daily(start, every)
	}
}

func daily(start date.Date, every int) iter.Seq[date.Date] {
	return func(yield func(date.Date) bool) {
		for d := start; ; d = d.Add(every) {
			if !yield(d) {
				return
			}
		}
	}
}

// weekly walks whole weeks (Monday first) starting with the week holding start.
func weekly(start date.Date, every int, mask WeekMask) iter.Seq[date.Date] {
	if mask.IsEmpty() {
		mask = MaskOf(start.Weekday())
	}
	monday := start.Add(-maskIndex(start.Weekday()))
	return func(yield func(date.Date) bool) {
		for week := monday; ; week = week.Add(7 * every) {
			for i, on := range mask {
				if !on {
					continue
				}
				d := week.Add(i)
				if d.Before(start) {
					continue
				}
				if !yield(d) {
					return
				}
			}
		}
	}
}

// monthly always clamps from the original day, so the 31st comes back after
// a short month.
func monthly(start date.Date, every int) iter.Seq[date.Date] {
	return func(yield func(date.Date) bool) {
		for k := 0; ; k++ {
			months := int(start.Month()) - 1 + k*every
			y := start.Year() + months/12
			m := time.Month(months%12 + 1)
			day := min(start.Day(), date.DaysIn(y, m))
			if !yield(date.New(y, m, day)) {
				return
			}
		}
	}
}

// yearly skips non-leap years for a February 29 start.
func yearly(start date.Date, every int) iter.Seq[date.Date] {
	leapDay := start.Month() == time.February && start.Day() == 29
	return func(yield func(date.Date) bool) {
		for y := start.Year(); ; y += every {
			if leapDay && !date.IsLeap(y) {
				continue
			}
			if !yield(date.New(y, start.Month(), start.Day())) {
				return
			}
		}
	}
}

// Due returns the series dates not yet materialized: those on or after
// max(start, last+1) and on or before min(end, today). Zero last or end
// dates mean "never transacted" and "no end".
func (r Rule) Due(start, last, end, today date.Date) []date.Date {
	from := start
	if !last.IsZero() && last.Add(1).After(from) {
		from = last.Add(1)
	}
	until := today
	if !end.IsZero() && (until.IsZero() || end.Before(until)) {
		until = end
	}
	if until.IsZero() || until.Before(from) {
		return nil
	}

	var out []date.Date
	for d := range r.Series(start) {
		if d.After(until) {
			break
		}
		if d.Before(from) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Next returns the first series date strictly after last, or the first
// date of the series when last is zero. The end date is not considered.
func (r Rule) Next(start, last date.Date) date.Date {
	for d := range r.Series(start) {
		if last.IsZero() || d.After(last) {
			return d
		}
	}
	return date.Date{}
}
