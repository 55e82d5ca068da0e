package testutil

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/roach88/ceasefire/internal/calendar"
	"github.com/roach88/ceasefire/internal/config"
	"github.com/roach88/ceasefire/internal/design"
	"github.com/roach88/ceasefire/internal/series"
)

// SeriesSpec describes a synthetic daily shooting series with known
// structure. The generator builds the log rate from the same components the
// model estimates, so scenario assertions can check that a fit recovers
// effects it should recover.
//
// All multiplicative fields default to "no effect" when zero.
type SeriesSpec struct {
	// Start is the first day of the series.
	Start time.Time

	// Days is the series length.
	Days int

	// Baseline is the expected count on a reference day (a non-holiday
	// Monday at mid-span with no window active).
	Baseline float64

	// Weekday holds multiplicative day-of-week effects. Missing days get 1.
	Weekday map[time.Weekday]float64

	// SeasonalAmplitude is the log-scale amplitude of a single annual
	// sine cycle. Zero disables seasonality.
	SeasonalAmplitude float64

	// TrendTotal is the total log-scale drift from the first day to the
	// last. Zero means a flat trend.
	TrendTotal float64

	// HolidayEffect multiplies the rate on public holidays. Zero or one
	// means no holiday effect.
	HolidayEffect float64

	// Windows apply multiplicative effects on their days. An Effect of
	// 0.7 means a 30% rate reduction while the window is active.
	Windows []WindowEffect

	// Dispersion is the negative-binomial size parameter r for the draw
	// noise. Zero or negative draws plain Poisson counts.
	Dispersion float64

	// Seed drives the count noise.
	Seed uint64
}

// WindowEffect is one intervention period with its true multiplicative
// effect on the daily rate.
type WindowEffect struct {
	Window config.Window
	Effect float64
}

// GenerateSeries draws a synthetic series from the spec.
// The same spec always produces the same counts.
func GenerateSeries(spec SeriesSpec) (*series.Series, error) {
	if spec.Days < 1 {
		return nil, fmt.Errorf("generate series: days must be positive, got %d", spec.Days)
	}
	if spec.Baseline <= 0 {
		return nil, fmt.Errorf("generate series: baseline must be positive, got %g", spec.Baseline)
	}

	start := series.Midnight(spec.Start)
	src := rand.NewPCG(spec.Seed, 0x5ee15)

	obs := make([]series.Observation, spec.Days)
	for i := 0; i < spec.Days; i++ {
		date := start.AddDate(0, 0, i)
		mu := math.Exp(logRate(spec, date, i))
		obs[i] = series.Observation{Date: date, Count: drawCount(mu, spec.Dispersion, src)}
	}

	return series.FromObservations(obs)
}

// TrueRate returns the noiseless expected count for one day of the spec.
// Useful for asserting on generator behavior itself.
func TrueRate(spec SeriesSpec, date time.Time) float64 {
	start := series.Midnight(spec.Start)
	i := int(series.Midnight(date).Sub(start).Hours() / 24)
	return math.Exp(logRate(spec, series.Midnight(date), i))
}

func logRate(spec SeriesSpec, date time.Time, i int) float64 {
	eta := math.Log(spec.Baseline)

	if spec.Days > 1 {
		// Centered so the baseline holds at mid-span.
		eta += spec.TrendTotal * (float64(i)/float64(spec.Days-1) - 0.5)
	}
	if spec.SeasonalAmplitude != 0 {
		eta += spec.SeasonalAmplitude * math.Sin(2*math.Pi*float64(i)/design.AnnualPeriod)
	}
	if mult, ok := spec.Weekday[date.Weekday()]; ok && mult > 0 {
		eta += math.Log(mult)
	}
	if spec.HolidayEffect > 0 && spec.HolidayEffect != 1 {
		if _, ok := calendar.IsHoliday(date); ok {
			eta += math.Log(spec.HolidayEffect)
		}
	}
	for _, w := range spec.Windows {
		if w.Effect > 0 && w.Window.Contains(date) {
			eta += math.Log(w.Effect)
		}
	}
	return eta
}

// drawCount samples one daily count: Poisson(mu), or the gamma-Poisson
// mixture matching the negative binomial when a dispersion is given.
func drawCount(mu, r float64, src rand.Source) int {
	lambda := mu
	if r > 0 {
		gamma := distuv.Gamma{Alpha: r, Beta: r / mu, Src: src}
		lambda = gamma.Rand()
	}
	if lambda <= 0 {
		return 0
	}
	pois := distuv.Poisson{Lambda: lambda, Src: src}
	return int(pois.Rand())
}
