package design

import (
	"fmt"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/roach88/ceasefire/internal/calendar"
	"github.com/roach88/ceasefire/internal/config"
	"github.com/roach88/ceasefire/internal/series"
)

// Matrix is the assembled design matrix with stable column names.
type Matrix struct {
	X     *mat.Dense
	Names []string

	// WindowCols holds the column indices of the ceasefire indicator(s).
	WindowCols []int
}

// Cols returns the number of columns (model parameters excluding
// dispersion).
func (m *Matrix) Cols() int {
	_, c := m.X.Dims()
	return c
}

// Rows returns the number of study days.
func (m *Matrix) Rows() int {
	r, _ := m.X.Dims()
	return r
}

// Column returns the index of a named column, or -1.
func (m *Matrix) Column(name string) int {
	for i, n := range m.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// weekdayOrder fixes the indicator order; Monday is the reference level.
var weekdayOrder = []time.Weekday{
	time.Tuesday, time.Wednesday, time.Thursday,
	time.Friday, time.Saturday, time.Sunday,
}

var weekdayShort = map[time.Weekday]string{
	time.Tuesday: "tue", time.Wednesday: "wed", time.Thursday: "thu",
	time.Friday: "fri", time.Saturday: "sat", time.Sunday: "sun",
}

// Build assembles the design matrix for a study series under a config.
// The series must already be clipped to the study span.
//
// Windows partially outside the series span contribute indicator days only
// where they overlap it; each such clip produces a warning. A window with
// no overlap at all is an error for per-window models (its coefficient
// would be unidentifiable) and a warning for the pooled model.
func Build(s *series.Series, cfg *config.Analysis) (*Matrix, []string, error) {
	if s.Len() == 0 {
		return nil, nil, fmt.Errorf("cannot build design matrix for empty series")
	}

	var warnings []string

	names := []string{"intercept"}

	// Trend spline over the day index.
	var trend [][]float64
	if cfg.Model.TrendDF > 0 {
		x := make([]float64, s.Len())
		for i := range x {
			x[i] = float64(i)
		}
		var err error
		trend, err = NaturalSplineBasis(x, cfg.Model.TrendDF)
		if err != nil {
			return nil, nil, fmt.Errorf("trend basis: %w", err)
		}
		for k := 1; k <= cfg.Model.TrendDF; k++ {
			names = append(names, fmt.Sprintf("trend_%d", k))
		}
	}

	for k := 1; k <= cfg.Model.Harmonics; k++ {
		names = append(names, fmt.Sprintf("seasonal_sin%d", k), fmt.Sprintf("seasonal_cos%d", k))
	}

	if cfg.Model.Weekday {
		for _, wd := range weekdayOrder {
			names = append(names, "weekday_"+weekdayShort[wd])
		}
	}

	if cfg.Model.Holiday {
		names = append(names, "holiday")
	}

	// Window indicator columns, pooled or per-label.
	windowStart := len(names)
	windowCols := make([]int, 0, len(cfg.Windows))
	if cfg.Model.PerWindow {
		for i := range cfg.Windows {
			windowCols = append(windowCols, windowStart+i)
			names = append(names, "ceasefire_"+cfg.Windows[i].Label)
		}
	} else {
		windowCols = append(windowCols, windowStart)
		names = append(names, "ceasefire")
	}

	for _, w := range cfg.Windows {
		overlap := windowOverlapDays(s, w)
		if overlap == 0 {
			if cfg.Model.PerWindow {
				return nil, nil, fmt.Errorf("window %q has no days inside the series span; its coefficient is unidentifiable", w.Label)
			}
			warnings = append(warnings, fmt.Sprintf("window %q lies entirely outside the series span", w.Label))
		} else if overlap < w.Days() {
			warnings = append(warnings, fmt.Sprintf("window %q clipped to %d of %d days by the series span", w.Label, overlap, w.Days()))
		}
	}

	X := mat.NewDense(s.Len(), len(names), nil)
	for i := 0; i < s.Len(); i++ {
		d := s.Date(i)
		col := 0

		X.Set(i, col, 1)
		col++

		if trend != nil {
			for _, v := range trend[i] {
				X.Set(i, col, v)
				col++
			}
		}

		for _, v := range FourierTerms(i, cfg.Model.Harmonics) {
			X.Set(i, col, v)
			col++
		}

		if cfg.Model.Weekday {
			for _, wd := range weekdayOrder {
				if d.Weekday() == wd {
					X.Set(i, col, 1)
				}
				col++
			}
		}

		if cfg.Model.Holiday {
			if _, ok := calendar.IsHoliday(d); ok {
				X.Set(i, col, 1)
			}
			col++
		}

		if cfg.Model.PerWindow {
			for j, w := range cfg.Windows {
				if w.Contains(d) {
					X.Set(i, windowStart+j, 1)
				}
			}
		} else {
			for _, w := range cfg.Windows {
				if w.Contains(d) {
					X.Set(i, windowStart, 1)
					break
				}
			}
		}
	}

	return &Matrix{X: X, Names: names, WindowCols: windowCols}, warnings, nil
}

// windowOverlapDays counts the window days that fall inside the series.
func windowOverlapDays(s *series.Series, w config.Window) int {
	n := 0
	for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
		if _, ok := s.Index(d); ok {
			n++
		}
	}
	return n
}

// Reference returns a single covariate row with seasonal, weekday, holiday
// and window columns zeroed and the trend columns taken from day index i.
// Used for marginal trend curves: exp(reference · beta) is the expected
// count on a Monday, non-holiday, outside any window at that point of the
// trend.
func (m *Matrix) Reference(i int) []float64 {
	row := make([]float64, m.Cols())
	row[0] = 1
	for j, name := range m.Names {
		if len(name) >= 6 && name[:6] == "trend_" {
			row[j] = m.X.At(i, j)
		}
	}
	return row
}
