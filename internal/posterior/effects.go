package posterior

import (
	"fmt"
	"math"

	"github.com/roach88/ceasefire/internal/design"
	"github.com/roach88/ceasefire/internal/series"
)

// Effect summarizes the estimated causal impact of the ceasefire
// indicator(s): the incidence rate ratio, the posterior probability of any
// reduction, and the expected number of shootings averted across the
// window days that fall inside the study span.
type Effect struct {
	Name string `json:"name"` // parameter name, e.g. "ceasefire"

	// IRR is the posterior of exp(beta): the multiplicative change in the
	// daily shooting rate during window days.
	IRR Summary `json:"irr"`

	// ProbReduction is Pr(IRR < 1): the posterior probability the
	// intervention reduced the rate at all.
	ProbReduction float64 `json:"prob_reduction"`

	// Averted is the posterior of the total expected counts averted over
	// the window days: sum over those days of mu(counterfactual, window
	// off) - mu(observed covariates). Positive means shootings prevented.
	Averted Summary `json:"averted"`

	// WindowDays counts the indicator days inside the study span.
	WindowDays int `json:"window_days"`
}

// Effects computes one Effect per ceasefire indicator column.
// The counterfactual for each draw keeps every covariate at its observed
// value and zeroes only the indicator column in question.
func Effects(d *Draws, m *design.Matrix, s *series.Series, level float64) ([]Effect, error) {
	nCoef := numCoefficients(d)
	if nCoef != m.Cols() {
		return nil, fmt.Errorf("draws have %d coefficients, design matrix has %d columns", nCoef, m.Cols())
	}

	pooled := d.PooledMatrix()
	nDraws, _ := pooled.Dims()

	effects := make([]Effect, 0, len(m.WindowCols))
	for _, col := range m.WindowCols {
		name := m.Names[col]

		irr, err := d.RateRatio(name, level)
		if err != nil {
			return nil, err
		}
		probReduction, err := d.ProbBelow(name, 0)
		if err != nil {
			return nil, err
		}

		// Indicator days for this column.
		var days []int
		for i := 0; i < s.Len(); i++ {
			if m.X.At(i, col) != 0 {
				days = append(days, i)
			}
		}

		averted := make([]float64, nDraws)
		for t := 0; t < nDraws; t++ {
			total := 0.0
			for _, i := range days {
				etaObs := 0.0
				for j := 0; j < nCoef; j++ {
					etaObs += m.X.At(i, j) * pooled.At(t, j)
				}
				// Counterfactual: same day, indicator off.
				etaCF := etaObs - m.X.At(i, col)*pooled.At(t, col)
				total += math.Exp(etaCF) - math.Exp(etaObs)
			}
			averted[t] = total
		}

		effects = append(effects, Effect{
			Name:          name,
			IRR:           irr,
			ProbReduction: probReduction,
			Averted:       Summarize(averted, level),
			WindowDays:    len(days),
		})
	}

	return effects, nil
}
