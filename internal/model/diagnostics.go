package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// RHatWarnThreshold is the split-R-hat level above which a fit summary
// carries a convergence warning.
const RHatWarnThreshold = 1.05

// Diagnostics summarizes chain convergence per parameter.
type Diagnostics struct {
	// RHat[j] is the split-R-hat of parameter j across all chains.
	RHat []float64

	// ESS[j] is the pooled effective sample size of parameter j.
	ESS []float64
}

// MaxRHat returns the worst split-R-hat across parameters.
func (d Diagnostics) MaxRHat() float64 {
	worst := 0.0
	for _, r := range d.RHat {
		if r > worst {
			worst = r
		}
	}
	return worst
}

// MinESS returns the smallest effective sample size across parameters.
func (d Diagnostics) MinESS() float64 {
	if len(d.ESS) == 0 {
		return 0
	}
	least := math.Inf(1)
	for _, e := range d.ESS {
		if e < least {
			least = e
		}
	}
	return least
}

// Converged reports whether every parameter passes the R-hat threshold.
func (d Diagnostics) Converged() bool {
	return d.MaxRHat() <= RHatWarnThreshold
}

// Diagnose computes split-R-hat and effective sample size for every
// parameter of a fit result.
//
// Split-R-hat halves each chain before comparing between- and within-
// sequence variance, so a single chain that drifts between two regimes is
// caught even when whole-chain means agree. ESS uses Geyer's initial
// positive sequence on chain-averaged autocorrelations.
func Diagnose(res *Result) Diagnostics {
	if len(res.Chains) == 0 {
		return Diagnostics{}
	}
	nParams := len(res.ParamNames)

	d := Diagnostics{
		RHat: make([]float64, nParams),
		ESS:  make([]float64, nParams),
	}

	for j := 0; j < nParams; j++ {
		sequences := splitChains(res, j)
		d.RHat[j] = splitRHat(sequences)
		d.ESS[j] = effectiveSampleSize(chainColumns(res, j))
	}
	return d
}

// splitChains extracts parameter j from every chain and halves each chain,
// discarding the middle draw of odd-length chains.
func splitChains(res *Result, j int) [][]float64 {
	var sequences [][]float64
	for _, chain := range res.Chains {
		col := column(chain, j)
		half := len(col) / 2
		if half == 0 {
			sequences = append(sequences, col)
			continue
		}
		sequences = append(sequences, col[:half], col[len(col)-half:])
	}
	return sequences
}

// chainColumns extracts parameter j from every chain without splitting.
func chainColumns(res *Result, j int) [][]float64 {
	cols := make([][]float64, len(res.Chains))
	for c, chain := range res.Chains {
		cols[c] = column(chain, j)
	}
	return cols
}

// splitRHat is the Gelman-Rubin potential scale reduction factor over the
// split sequences: sqrt(((n-1)/n * W + B/n) / W).
func splitRHat(sequences [][]float64) float64 {
	m := len(sequences)
	if m < 2 {
		return 1
	}
	n := len(sequences[0])
	if n < 2 {
		return math.NaN()
	}

	means := make([]float64, m)
	vars := make([]float64, m)
	for i, seq := range sequences {
		means[i] = stat.Mean(seq, nil)
		vars[i] = stat.Variance(seq, nil)
	}

	w := stat.Mean(vars, nil)
	b := float64(n) * stat.Variance(means, nil)

	if w == 0 {
		// All sequences constant: either perfect agreement or a stuck
		// sampler; R-hat cannot distinguish, report 1 when means agree.
		if b == 0 {
			return 1
		}
		return math.Inf(1)
	}

	varPlus := (float64(n-1)/float64(n))*w + b/float64(n)
	return math.Sqrt(varPlus / w)
}

// effectiveSampleSize estimates the pooled ESS of one parameter across
// chains: m*n / (1 + 2 * sum of autocorrelations), with the sum truncated
// by Geyer's initial positive sequence (stop when a consecutive lag pair
// sums negative).
func effectiveSampleSize(chains [][]float64) float64 {
	m := len(chains)
	if m == 0 {
		return 0
	}
	n := len(chains[0])
	if n < 4 {
		return float64(m * n)
	}

	maxLag := n - 2
	if maxLag > 200 {
		maxLag = 200
	}

	// Chain-averaged autocorrelation at each lag.
	rho := make([]float64, maxLag+1)
	for lag := 0; lag <= maxLag; lag++ {
		sum := 0.0
		for _, chain := range chains {
			sum += autocorrelation(chain, lag)
		}
		rho[lag] = sum / float64(m)
	}

	tau := 1.0
	for lag := 1; lag+1 <= maxLag; lag += 2 {
		pair := rho[lag] + rho[lag+1]
		if pair < 0 {
			break
		}
		tau += 2 * pair
	}

	ess := float64(m*n) / tau
	if ess > float64(m*n) {
		ess = float64(m * n)
	}
	return ess
}

// autocorrelation computes the lag-k sample autocorrelation of one chain.
func autocorrelation(x []float64, lag int) float64 {
	n := len(x)
	if lag >= n {
		return 0
	}
	mean := stat.Mean(x, nil)
	variance := stat.Variance(x, nil)
	if variance == 0 {
		return 0
	}

	sum := 0.0
	for i := 0; i+lag < n; i++ {
		sum += (x[i] - mean) * (x[i+lag] - mean)
	}
	return sum / (float64(n-1) * variance)
}

// column copies column j of a draw matrix.
func column(chain *mat.Dense, j int) []float64 {
	rows, _ := chain.Dims()
	col := make([]float64, rows)
	for i := 0; i < rows; i++ {
		col[i] = chain.At(i, j)
	}
	return col
}
