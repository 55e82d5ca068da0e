package posterior

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/roach88/ceasefire/internal/config"
)

func TestMarginalTrend_ConstantRate(t *testing.T) {
	s, m := windowFixture()

	chain := constantChain(30, []float64{math.Log(4), math.Log(0.5)})
	d, err := New([]string{"intercept", "ceasefire"}, []*mat.Dense{chain})
	require.NoError(t, err)

	points, err := MarginalTrend(d, m, s, DefaultLevel)
	require.NoError(t, err)
	require.Len(t, points, s.Len())

	// The reference row zeroes the window indicator, so the trend curve sits
	// at the baseline rate everywhere, window days included.
	for i, pt := range points {
		assert.InDelta(t, 4.0, pt.Mean, 1e-9, "day %d", i)
		assert.InDelta(t, 4.0, pt.Lower, 1e-9, "day %d", i)
		assert.Equal(t, s.Date(i), pt.Date)
	}
}

func TestSeasonalCurve_RequiresHarmonics(t *testing.T) {
	s, m := windowFixture()
	chain := constantChain(10, []float64{0, 0})
	d, err := New([]string{"intercept", "ceasefire"}, []*mat.Dense{chain})
	require.NoError(t, err)

	_, err = SeasonalCurve(d, m, s, 0, DefaultLevel)
	assert.Error(t, err)

	// The fixture has no seasonal columns either.
	_, err = SeasonalCurve(d, m, s, 1, DefaultLevel)
	assert.Error(t, err)
}

func TestSeasonalName(t *testing.T) {
	assert.Equal(t, "seasonal_sin1", seasonalName(0))
	assert.Equal(t, "seasonal_cos1", seasonalName(1))
	assert.Equal(t, "seasonal_sin2", seasonalName(2))
	assert.Equal(t, "seasonal_cos2", seasonalName(3))
}

func TestNumCoefficients(t *testing.T) {
	d, err := New([]string{"intercept", "ceasefire"}, []*mat.Dense{constantChain(5, []float64{0, 0})})
	require.NoError(t, err)
	assert.Equal(t, 2, numCoefficients(d))

	d, err = New([]string{"intercept", "log_dispersion"}, []*mat.Dense{constantChain(5, []float64{0, 0})})
	require.NoError(t, err)
	assert.Equal(t, 1, numCoefficients(d))
}

func TestPredictive_PoissonShape(t *testing.T) {
	s, m := windowFixture()
	for i := range s.Counts {
		s.Counts[i] = 4
	}

	chain := constantChain(400, []float64{math.Log(4), 0})
	d, err := New([]string{"intercept", "ceasefire"}, []*mat.Dense{chain})
	require.NoError(t, err)

	points, err := Predictive(d, m, s, config.LikelihoodPoisson, DefaultLevel, 1)
	require.NoError(t, err)
	require.Len(t, points, s.Len())

	for i, pt := range points {
		assert.Equal(t, 4, pt.Observed, "day %d", i)
		assert.LessOrEqual(t, pt.Lower, pt.Median, "day %d", i)
		assert.LessOrEqual(t, pt.Median, pt.Upper, "day %d", i)
		assert.GreaterOrEqual(t, pt.Lower, 0.0, "counts cannot go negative")
		assert.Equal(t, s.Date(i), pt.Date)
	}

	// A Poisson(4) interval at 95% comfortably covers the observed 4s.
	assert.InDelta(t, 1.0, Coverage(points), 0.11)
}

func TestPredictive_Deterministic(t *testing.T) {
	s, m := windowFixture()
	chain := constantChain(200, []float64{math.Log(4), 0, 0.5})
	d, err := New([]string{"intercept", "ceasefire", "log_dispersion"}, []*mat.Dense{chain})
	require.NoError(t, err)

	first, err := Predictive(d, m, s, config.LikelihoodNegBin, DefaultLevel, 42)
	require.NoError(t, err)
	second, err := Predictive(d, m, s, config.LikelihoodNegBin, DefaultLevel, 42)
	require.NoError(t, err)
	assert.Equal(t, first, second, "same seed must reproduce the simulation")

	other, err := Predictive(d, m, s, config.LikelihoodNegBin, DefaultLevel, 43)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestPredictive_Errors(t *testing.T) {
	s, m := windowFixture()

	// Negative binomial without a dispersion parameter in the draws.
	chain := constantChain(10, []float64{0, 0})
	d, err := New([]string{"intercept", "ceasefire"}, []*mat.Dense{chain})
	require.NoError(t, err)
	_, err = Predictive(d, m, s, config.LikelihoodNegBin, DefaultLevel, 1)
	assert.Error(t, err)

	// Coefficient count not matching the design matrix.
	wide := constantChain(10, []float64{0, 0, 0, 0})
	d, err = New([]string{"a", "b", "c", "d"}, []*mat.Dense{wide})
	require.NoError(t, err)
	_, err = Predictive(d, m, s, config.LikelihoodPoisson, DefaultLevel, 1)
	assert.Error(t, err)
}

func TestCoverage(t *testing.T) {
	points := []PredictivePoint{
		{Observed: 3, Lower: 1, Upper: 5},
		{Observed: 0, Lower: 1, Upper: 5},
		{Observed: 5, Lower: 1, Upper: 5}, // interval endpoints count
		{Observed: 9, Lower: 1, Upper: 5},
	}
	assert.Equal(t, 0.5, Coverage(points))
	assert.Equal(t, 0.0, Coverage(nil))
}
