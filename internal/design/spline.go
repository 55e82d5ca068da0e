package design

import (
	"fmt"
	"math"
	"sort"
)

// NaturalSplineBasis evaluates a natural cubic spline basis over x with the
// given degrees of freedom. The basis is the truncated-power construction
// with knots at evenly spaced quantiles of x (boundary knots at min/max),
// constrained to be linear beyond the boundary knots.
//
// Returns one row per x value and df columns. df must be >= 2: the first
// basis function is the linear term, the remaining df-1 come from the
// natural-spline constraint over df+1 knots.
func NaturalSplineBasis(x []float64, df int) ([][]float64, error) {
	if df < 2 {
		return nil, fmt.Errorf("natural spline basis requires df >= 2, got %d", df)
	}
	if len(x) < df+1 {
		return nil, fmt.Errorf("natural spline basis with df %d needs at least %d points, got %d", df, df+1, len(x))
	}

	knots := quantileKnots(x, df+1)
	// Degenerate input (all x equal) collapses the knot sequence.
	for i := 1; i < len(knots); i++ {
		if knots[i] <= knots[i-1] {
			return nil, fmt.Errorf("degenerate knot sequence: knots %g and %g coincide", knots[i-1], knots[i])
		}
	}

	// Rescale to [0,1] so cubed terms stay well conditioned for long series.
	lo, hi := knots[0], knots[len(knots)-1]
	scale := hi - lo
	scaled := make([]float64, len(knots))
	for i, k := range knots {
		scaled[i] = (k - lo) / scale
	}

	basis := make([][]float64, len(x))
	for i, xi := range x {
		basis[i] = naturalSplineRow((xi-lo)/scale, scaled)
	}
	return basis, nil
}

// naturalSplineRow evaluates the natural cubic spline basis functions at a
// single (rescaled) point given K rescaled knots. Output length is K-1:
// the linear term followed by K-2 natural basis functions.
func naturalSplineRow(x float64, knots []float64) []float64 {
	K := len(knots)
	row := make([]float64, K-1)
	row[0] = x

	dLast := truncatedCubicRatio(x, knots[K-2], knots[K-1])
	for k := 0; k < K-2; k++ {
		row[k+1] = truncatedCubicRatio(x, knots[k], knots[K-1]) - dLast
	}
	return row
}

// truncatedCubicRatio is d_k(x) from the natural spline construction:
// ((x-k1)_+^3 - (x-kK)_+^3) / (kK - k1).
func truncatedCubicRatio(x, k1, kK float64) float64 {
	return (cubePlus(x-k1) - cubePlus(x-kK)) / (kK - k1)
}

func cubePlus(v float64) float64 {
	if v <= 0 {
		return 0
	}
	return v * v * v
}

// quantileKnots returns n knots at evenly spaced quantiles of x, with the
// first and last at the min and max. Assumes x is in increasing order or
// at least spans its range monotonically in index, which holds for the day
// index; a sorted copy is taken for safety.
func quantileKnots(x []float64, n int) []float64 {
	sorted := make([]float64, len(x))
	copy(sorted, x)
	sort.Float64s(sorted)

	knots := make([]float64, n)
	for i := 0; i < n; i++ {
		p := float64(i) / float64(n-1)
		knots[i] = empiricalQuantile(sorted, p)
	}
	return knots
}

// empiricalQuantile linearly interpolates the p-quantile of sorted data.
func empiricalQuantile(sorted []float64, p float64) float64 {
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := p * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	frac := pos - float64(lo)
	if lo+1 >= len(sorted) {
		return sorted[len(sorted)-1]
	}
	return sorted[lo]*(1-frac) + sorted[lo+1]*frac
}

