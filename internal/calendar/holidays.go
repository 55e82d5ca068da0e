package calendar

import (
	"sort"
	"time"
)

// Holiday is a named public holiday on a specific observed date.
type Holiday struct {
	Name string
	Date time.Time
}

// HolidaysInYear returns all tracked holidays whose observed date falls in
// the given calendar year, sorted by date.
//
// Observed-day shifting can move a holiday across a year boundary: New
// Year's Day on a Saturday is observed December 31 of the prior year. The
// function therefore computes candidates for year-1, year, and year+1 and
// filters by observed year.
func HolidaysInYear(year int) []Holiday {
	var out []Holiday
	for y := year - 1; y <= year+1; y++ {
		for _, h := range holidaysAnchoredIn(y) {
			if h.Date.Year() == year {
				out = append(out, h)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// IsHoliday reports whether date is an observed holiday, and which one.
func IsHoliday(date time.Time) (Holiday, bool) {
	d := midnight(date)
	for _, h := range HolidaysInYear(d.Year()) {
		if h.Date.Equal(d) {
			return h, true
		}
	}
	return Holiday{}, false
}

// holidaysAnchoredIn returns the holidays anchored to (defined by) a given
// year, with observed dates that may spill into adjacent years.
func holidaysAnchoredIn(year int) []Holiday {
	easter := EasterSunday(year)

	return []Holiday{
		{"New Year's Day", observed(date(year, time.January, 1))},
		{"Martin Luther King Jr. Day", nthWeekday(year, time.January, time.Monday, 3)},
		{"Presidents' Day", nthWeekday(year, time.February, time.Monday, 3)},
		{"Good Friday", easter.AddDate(0, 0, -2)},
		{"Easter Sunday", easter},
		{"Memorial Day", lastWeekday(year, time.May, time.Monday)},
		{"Juneteenth", observed(date(year, time.June, 19))},
		{"Independence Day", observed(date(year, time.July, 4))},
		{"Labor Day", nthWeekday(year, time.September, time.Monday, 1)},
		{"Columbus Day", nthWeekday(year, time.October, time.Monday, 2)},
		{"Veterans Day", observed(date(year, time.November, 11))},
		{"Thanksgiving", nthWeekday(year, time.November, time.Thursday, 4)},
		{"Christmas Day", observed(date(year, time.December, 25))},
	}
}

// observed applies the federal observed-day rule to a fixed-date holiday:
// Saturday shifts to the preceding Friday, Sunday to the following Monday.
func observed(d time.Time) time.Time {
	switch d.Weekday() {
	case time.Saturday:
		return d.AddDate(0, 0, -1)
	case time.Sunday:
		return d.AddDate(0, 0, 1)
	default:
		return d
	}
}

// nthWeekday returns the nth occurrence (1-based) of a weekday in a month.
func nthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	first := date(year, month, 1)
	offset := (int(weekday) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+(n-1)*7)
}

// lastWeekday returns the last occurrence of a weekday in a month.
func lastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	last := date(year, month+1, 1).AddDate(0, 0, -1)
	offset := (int(last.Weekday()) - int(weekday) + 7) % 7
	return last.AddDate(0, 0, -offset)
}

// EasterSunday computes Easter for a year by the Gregorian computus
// (Anonymous Gregorian algorithm). Valid for all Gregorian years.
func EasterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1
	return date(year, time.Month(month), day)
}

// DayOfYear returns the 1-based ordinal day within its year (Feb 29 counts,
// so Dec 31 is 366 in leap years).
func DayOfYear(d time.Time) int {
	return d.YearDay()
}

// IsWeekend reports whether the date is a Saturday or Sunday.
func IsWeekend(d time.Time) bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
