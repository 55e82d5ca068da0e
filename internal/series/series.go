package series

import (
	"fmt"
	"sort"
	"time"

	"github.com/roach88/ceasefire/internal/canonical"
)

// DateLayout is the wire format for calendar dates everywhere in the
// pipeline: CSV input, CUE config, SQLite storage, report output.
const DateLayout = "2006-01-02"

// Observation is a single day's shooting count.
type Observation struct {
	Date  time.Time
	Count int
}

// Series is a dense daily count vector. Counts[i] is the count for the day
// Start + i days. There are no gaps: days with no recorded incidents hold
// an explicit zero.
type Series struct {
	Start  time.Time
	Counts []int
}

// Midnight normalizes a time to UTC midnight, discarding any time-of-day
// and timezone component.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a calendar date in DateLayout form.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return t, nil
}

// FromObservations builds a dense Series from observations. Observations
// sharing a date are summed (incident-level input collapses this way), and
// days between the earliest and latest observed date with no observation
// become explicit zeros.
//
// Returns an error for empty input or negative counts.
func FromObservations(obs []Observation) (*Series, error) {
	if len(obs) == 0 {
		return nil, fmt.Errorf("cannot build series from zero observations")
	}

	byDay := make(map[time.Time]int, len(obs))
	for _, o := range obs {
		if o.Count < 0 {
			return nil, fmt.Errorf("negative count %d on %s", o.Count, o.Date.Format(DateLayout))
		}
		byDay[Midnight(o.Date)] += o.Count
	}

	days := make([]time.Time, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	start := days[0]
	end := days[len(days)-1]
	n := daysBetween(start, end) + 1

	s := &Series{
		Start:  start,
		Counts: make([]int, n),
	}
	for d, count := range byDay {
		s.Counts[daysBetween(start, d)] = count
	}
	return s, nil
}

// daysBetween returns the whole number of days from a to b.
// Both must be UTC midnights; AddDate arithmetic avoids DST surprises.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// Len returns the number of days in the series.
func (s *Series) Len() int {
	return len(s.Counts)
}

// End returns the date of the last day in the series.
func (s *Series) End() time.Time {
	return s.Date(len(s.Counts) - 1)
}

// Date returns the calendar date for day index i.
func (s *Series) Date(i int) time.Time {
	return s.Start.AddDate(0, 0, i)
}

// Index returns the day index for a date, and whether the date falls
// inside the series span.
func (s *Series) Index(date time.Time) (int, bool) {
	d := Midnight(date)
	if d.Before(s.Start) {
		return 0, false
	}
	i := daysBetween(s.Start, d)
	if i >= len(s.Counts) {
		return 0, false
	}
	return i, true
}

// Slice returns the sub-series covering [from, to] inclusive.
// Both endpoints must fall inside the series span.
func (s *Series) Slice(from, to time.Time) (*Series, error) {
	i, ok := s.Index(from)
	if !ok {
		return nil, fmt.Errorf("date %s outside series span %s..%s",
			from.Format(DateLayout), s.Start.Format(DateLayout), s.End().Format(DateLayout))
	}
	j, ok := s.Index(to)
	if !ok {
		return nil, fmt.Errorf("date %s outside series span %s..%s",
			to.Format(DateLayout), s.Start.Format(DateLayout), s.End().Format(DateLayout))
	}
	if j < i {
		return nil, fmt.Errorf("slice end %s before start %s", to.Format(DateLayout), from.Format(DateLayout))
	}
	return &Series{Start: Midnight(from), Counts: s.Counts[i : j+1]}, nil
}

// Observations expands the dense series back into per-day observations.
func (s *Series) Observations() []Observation {
	obs := make([]Observation, len(s.Counts))
	for i, c := range s.Counts {
		obs[i] = Observation{Date: s.Date(i), Count: c}
	}
	return obs
}

// Total returns the sum of all daily counts.
func (s *Series) Total() int {
	total := 0
	for _, c := range s.Counts {
		total += c
	}
	return total
}

// Mean returns the average daily count.
func (s *Series) Mean() float64 {
	if len(s.Counts) == 0 {
		return 0
	}
	return float64(s.Total()) / float64(len(s.Counts))
}

// Fingerprint computes the content-addressed identity of the series.
// Stored on every fit run so reports can detect that the observations
// changed after the fit.
func (s *Series) Fingerprint() (string, error) {
	obj := map[string]any{
		"start":  s.Start.Format(DateLayout),
		"counts": s.Counts,
	}
	fp, err := canonical.Fingerprint(canonical.DomainSeries, obj)
	if err != nil {
		return "", fmt.Errorf("series fingerprint: %w", err)
	}
	return fp, nil
}
