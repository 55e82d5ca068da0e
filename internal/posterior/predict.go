package posterior

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/roach88/ceasefire/internal/config"
	"github.com/roach88/ceasefire/internal/design"
	"github.com/roach88/ceasefire/internal/series"
)

// TrendPoint is one day of a posterior curve: the posterior mean of the
// expected count plus an equal-tailed interval.
type TrendPoint struct {
	Date  time.Time `json:"date"`
	Mean  float64   `json:"mean"`
	Lower float64   `json:"lower"`
	Upper float64   `json:"upper"`
}

// PredictivePoint is one day of the posterior predictive distribution over
// observable counts, alongside the observed count.
type PredictivePoint struct {
	Date     time.Time `json:"date"`
	Observed int       `json:"observed"`
	Median   float64   `json:"median"`
	Lower    float64   `json:"lower"`
	Upper    float64   `json:"upper"`
}

// MarginalTrend computes the posterior of the expected daily count along
// the study span with seasonal, weekday, holiday and window terms held at
// their reference levels (Monday, non-holiday, outside any window). Only
// the intercept and the trend spline vary, so the curve isolates the
// long-run drift in the underlying rate.
func MarginalTrend(d *Draws, m *design.Matrix, s *series.Series, level float64) ([]TrendPoint, error) {
	return curve(d, s, level, func(i int) []float64 { return m.Reference(i) })
}

// SeasonalCurve computes the posterior expected count across one year of
// day indexes with everything but the intercept and seasonal harmonics at
// reference. Day index 0 is the series start.
func SeasonalCurve(d *Draws, m *design.Matrix, s *series.Series, harmonics int, level float64) ([]TrendPoint, error) {
	if harmonics == 0 {
		return nil, fmt.Errorf("model has no seasonal term")
	}
	period := float64(design.AnnualPeriod)
	days := int(period)
	points := make([]TrendPoint, 0, days)
	for i := 0; i < days; i++ {
		row := make([]float64, m.Cols())
		row[0] = 1
		terms := design.FourierTerms(i, harmonics)
		for k, v := range terms {
			col := m.Column(seasonalName(k))
			if col < 0 {
				return nil, fmt.Errorf("design matrix missing seasonal column %q", seasonalName(k))
			}
			row[col] = v
		}
		pt, err := curvePoint(d, row, level)
		if err != nil {
			return nil, err
		}
		pt.Date = s.Date(i)
		points = append(points, pt)
	}
	return points, nil
}

// seasonalName maps a FourierTerms offset to its column name:
// offsets 0,1 are sin1,cos1; 2,3 are sin2,cos2; and so on.
func seasonalName(offset int) string {
	k := offset/2 + 1
	if offset%2 == 0 {
		return fmt.Sprintf("seasonal_sin%d", k)
	}
	return fmt.Sprintf("seasonal_cos%d", k)
}

// curve evaluates the posterior expected count for each day's covariate
// row produced by rowFn.
func curve(d *Draws, s *series.Series, level float64, rowFn func(int) []float64) ([]TrendPoint, error) {
	points := make([]TrendPoint, s.Len())
	for i := 0; i < s.Len(); i++ {
		pt, err := curvePoint(d, rowFn(i), level)
		if err != nil {
			return nil, err
		}
		pt.Date = s.Date(i)
		points[i] = pt
	}
	return points, nil
}

// curvePoint computes the posterior of exp(row . beta) across all pooled
// draws.
func curvePoint(d *Draws, row []float64, level float64) (TrendPoint, error) {
	nCoef := numCoefficients(d)
	if len(row) != nCoef {
		return TrendPoint{}, fmt.Errorf("covariate row has %d entries, model has %d coefficients", len(row), nCoef)
	}

	mus := make([]float64, 0, d.NumDraws())
	for _, chain := range d.Chains {
		rows, _ := chain.Dims()
		for i := 0; i < rows; i++ {
			eta := 0.0
			for j := 0; j < nCoef; j++ {
				eta += row[j] * chain.At(i, j)
			}
			mus = append(mus, math.Exp(eta))
		}
	}

	sum := Summarize(mus, level)
	return TrendPoint{Mean: sum.Mean, Lower: sum.Lower, Upper: sum.Upper}, nil
}

// numCoefficients is the count of regression coefficients in the draws,
// excluding the trailing log_dispersion parameter if present.
func numCoefficients(d *Draws) int {
	if len(d.Names) > 0 && d.Names[len(d.Names)-1] == "log_dispersion" {
		return len(d.Names) - 1
	}
	return len(d.Names)
}

// Predictive simulates the posterior predictive distribution of the
// observable daily count for every study day and summarizes it. For the
// negative binomial each simulated count comes from the gamma-Poisson
// mixture; Poisson draws come straight from distuv.Poisson.
//
// The simulation uses its own deterministic stream (seeded by seed), so
// reports are reproducible.
func Predictive(d *Draws, m *design.Matrix, s *series.Series, likelihood string, level float64, seed uint64) ([]PredictivePoint, error) {
	nCoef := numCoefficients(d)
	if nCoef != m.Cols() {
		return nil, fmt.Errorf("draws have %d coefficients, design matrix has %d columns", nCoef, m.Cols())
	}
	negbin := likelihood == config.LikelihoodNegBin
	if negbin && nCoef == len(d.Names) {
		return nil, fmt.Errorf("negative binomial predictive needs a log_dispersion parameter in the draws")
	}

	src := rand.NewPCG(seed, 0x9e3779b97f4a7c15)
	pooled := d.PooledMatrix()
	nDraws, _ := pooled.Dims()

	alpha := (1 - level) / 2
	points := make([]PredictivePoint, s.Len())
	sims := make([]float64, nDraws)

	for i := 0; i < s.Len(); i++ {
		for t := 0; t < nDraws; t++ {
			eta := 0.0
			for j := 0; j < nCoef; j++ {
				eta += m.X.At(i, j) * pooled.At(t, j)
			}
			mu := math.Exp(eta)

			if negbin {
				r := math.Exp(pooled.At(t, nCoef))
				// Gamma-Poisson mixture: lambda ~ Gamma(r, r/mu),
				// count ~ Poisson(lambda).
				gamma := distuv.Gamma{Alpha: r, Beta: r / mu, Src: src}
				lambda := gamma.Rand()
				sims[t] = distuv.Poisson{Lambda: lambda, Src: src}.Rand()
			} else {
				sims[t] = distuv.Poisson{Lambda: mu, Src: src}.Rand()
			}
		}

		sorted := make([]float64, len(sims))
		copy(sorted, sims)
		sort.Float64s(sorted)

		points[i] = PredictivePoint{
			Date:     s.Date(i),
			Observed: s.Counts[i],
			Median:   stat.Quantile(0.5, stat.Empirical, sorted, nil),
			Lower:    stat.Quantile(alpha, stat.Empirical, sorted, nil),
			Upper:    stat.Quantile(1-alpha, stat.Empirical, sorted, nil),
		}
	}
	return points, nil
}

// Coverage reports the share of observed counts falling inside their
// posterior predictive interval. A well calibrated model at level 0.95
// should cover roughly 95% of days.
func Coverage(points []PredictivePoint) float64 {
	if len(points) == 0 {
		return 0
	}
	covered := 0
	for _, p := range points {
		obs := float64(p.Observed)
		if obs >= p.Lower && obs <= p.Upper {
			covered++
		}
	}
	return float64(covered) / float64(len(points))
}
