package posterior

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Draws holds kept MCMC draws, one matrix per chain (rows are draws,
// columns are parameters).
type Draws struct {
	Names  []string
	Chains []*mat.Dense
}

// New validates chain shapes against the parameter names.
func New(names []string, chains []*mat.Dense) (*Draws, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no parameter names")
	}
	if len(chains) == 0 {
		return nil, fmt.Errorf("no chains")
	}
	for c, chain := range chains {
		_, cols := chain.Dims()
		if cols != len(names) {
			return nil, fmt.Errorf("chain %d has %d columns, expected %d parameters", c, cols, len(names))
		}
	}
	return &Draws{Names: names, Chains: chains}, nil
}

// NumDraws returns the total kept draws pooled across chains.
func (d *Draws) NumDraws() int {
	total := 0
	for _, chain := range d.Chains {
		rows, _ := chain.Dims()
		total += rows
	}
	return total
}

// Param returns the index of a named parameter.
func (d *Draws) Param(name string) (int, bool) {
	for j, n := range d.Names {
		if n == name {
			return j, true
		}
	}
	return 0, false
}

// Pooled returns all draws of parameter j concatenated across chains.
func (d *Draws) Pooled(j int) []float64 {
	out := make([]float64, 0, d.NumDraws())
	for _, chain := range d.Chains {
		rows, _ := chain.Dims()
		for i := 0; i < rows; i++ {
			out = append(out, chain.At(i, j))
		}
	}
	return out
}

// PooledMatrix returns all draws stacked into one matrix
// (NumDraws x len(Names)).
func (d *Draws) PooledMatrix() *mat.Dense {
	total := d.NumDraws()
	out := mat.NewDense(total, len(d.Names), nil)
	r := 0
	for _, chain := range d.Chains {
		rows, cols := chain.Dims()
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				out.Set(r, j, chain.At(i, j))
			}
			r++
		}
	}
	return out
}

// Summary describes one scalar posterior distribution.
type Summary struct {
	Mean   float64 `json:"mean"`
	SD     float64 `json:"sd"`
	Median float64 `json:"median"`
	Lower  float64 `json:"lower"`
	Upper  float64 `json:"upper"`
	Level  float64 `json:"level"` // interval mass, e.g. 0.95
}

// DefaultLevel is the credible interval mass used when none is given.
const DefaultLevel = 0.95

// Summarize computes the posterior summary of a draw vector at the given
// equal-tailed interval mass.
func Summarize(draws []float64, level float64) Summary {
	if level <= 0 || level >= 1 {
		level = DefaultLevel
	}
	sorted := make([]float64, len(draws))
	copy(sorted, draws)
	sort.Float64s(sorted)

	alpha := (1 - level) / 2
	return Summary{
		Mean:   stat.Mean(sorted, nil),
		SD:     math.Sqrt(stat.Variance(sorted, nil)),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Lower:  stat.Quantile(alpha, stat.Empirical, sorted, nil),
		Upper:  stat.Quantile(1-alpha, stat.Empirical, sorted, nil),
		Level:  level,
	}
}

// SummarizeParam summarizes one named parameter on the coefficient scale.
func (d *Draws) SummarizeParam(name string, level float64) (Summary, error) {
	j, ok := d.Param(name)
	if !ok {
		return Summary{}, fmt.Errorf("unknown parameter %q", name)
	}
	return Summarize(d.Pooled(j), level), nil
}

// RateRatio summarizes exp(parameter): the incidence rate ratio implied by
// a log-link coefficient. Each draw is exponentiated before summarizing,
// so the interval is the equal-tailed interval of the ratio itself.
func (d *Draws) RateRatio(name string, level float64) (Summary, error) {
	j, ok := d.Param(name)
	if !ok {
		return Summary{}, fmt.Errorf("unknown parameter %q", name)
	}
	pooled := d.Pooled(j)
	ratios := make([]float64, len(pooled))
	for i, b := range pooled {
		ratios[i] = math.Exp(b)
	}
	return Summarize(ratios, level), nil
}

// ProbBelow returns the posterior probability that a parameter is below a
// threshold (e.g. Pr(beta < 0) is the probability of any reduction).
func (d *Draws) ProbBelow(name string, threshold float64) (float64, error) {
	j, ok := d.Param(name)
	if !ok {
		return 0, fmt.Errorf("unknown parameter %q", name)
	}
	pooled := d.Pooled(j)
	below := 0
	for _, v := range pooled {
		if v < threshold {
			below++
		}
	}
	return float64(below) / float64(len(pooled)), nil
}
