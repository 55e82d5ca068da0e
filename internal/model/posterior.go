package model

import (
	"fmt"
	"math"

	"github.com/roach88/ceasefire/internal/config"
	"github.com/roach88/ceasefire/internal/design"
	"github.com/roach88/ceasefire/internal/series"
)

// Posterior is the unnormalized log posterior of the count regression.
// It implements distmv.LogProber, which is all the gonum sampler needs.
//
// The parameter vector is [beta_0 .. beta_{p-1}] for Poisson and
// [beta_0 .. beta_{p-1}, log r] for the negative binomial.
type Posterior struct {
	counts []int
	rows   [][]float64 // design matrix rows, extracted once
	names  []string

	likelihood string
	priors     config.PriorSpec
}

// NewPosterior binds a series and design matrix into a log posterior.
// The series and matrix must have the same number of days.
func NewPosterior(s *series.Series, m *design.Matrix, model config.ModelSpec) (*Posterior, error) {
	if s.Len() != m.Rows() {
		return nil, fmt.Errorf("series has %d days but design matrix has %d rows", s.Len(), m.Rows())
	}
	if model.Likelihood != config.LikelihoodNegBin && model.Likelihood != config.LikelihoodPoisson {
		return nil, fmt.Errorf("unknown likelihood %q", model.Likelihood)
	}

	rows := make([][]float64, m.Rows())
	for i := range rows {
		row := make([]float64, m.Cols())
		for j := 0; j < m.Cols(); j++ {
			row[j] = m.X.At(i, j)
		}
		rows[i] = row
	}

	names := make([]string, len(m.Names))
	copy(names, m.Names)
	if model.Likelihood == config.LikelihoodNegBin {
		names = append(names, "log_dispersion")
	}

	return &Posterior{
		counts:     s.Counts,
		rows:       rows,
		names:      names,
		likelihood: model.Likelihood,
		priors:     model.Priors,
	}, nil
}

// Dim returns the length of the parameter vector.
func (p *Posterior) Dim() int {
	return len(p.names)
}

// ParamNames returns the parameter names in vector order.
func (p *Posterior) ParamNames() []string {
	return p.names
}

// NumCoefficients returns the number of regression coefficients
// (excluding the dispersion parameter, if any).
func (p *Posterior) NumCoefficients() int {
	if p.likelihood == config.LikelihoodNegBin {
		return len(p.names) - 1
	}
	return len(p.names)
}

// LogProb evaluates the unnormalized log posterior at theta.
// Implements distmv.LogProber for samplemv.MetropolisHastingser.
func (p *Posterior) LogProb(theta []float64) float64 {
	if len(theta) != p.Dim() {
		panic(fmt.Sprintf("posterior dimension %d, got parameter vector of length %d", p.Dim(), len(theta)))
	}

	nCoef := p.NumCoefficients()
	beta := theta[:nCoef]

	lp := 0.0

	switch p.likelihood {
	case config.LikelihoodNegBin:
		r := math.Exp(theta[nCoef])
		if math.IsInf(r, 0) || r <= 0 {
			return math.Inf(-1)
		}
		for i, y := range p.counts {
			mu := meanFromEta(linearPredictor(p.rows[i], beta))
			lp += negBinLogPMF(y, mu, r)
		}
		lp += normalLogDensity(theta[nCoef], p.priors.LogDispersionMean, p.priors.LogDispersionSD)
	case config.LikelihoodPoisson:
		for i, y := range p.counts {
			mu := meanFromEta(linearPredictor(p.rows[i], beta))
			lp += poissonLogPMF(y, mu)
		}
	}

	// Coefficient priors: intercept gets its own scale.
	lp += normalLogDensity(beta[0], 0, p.priors.InterceptSD)
	for _, b := range beta[1:] {
		lp += normalLogDensity(b, 0, p.priors.CoefSD)
	}

	if math.IsNaN(lp) {
		return math.Inf(-1)
	}
	return lp
}

func normalLogDensity(x, mean, sd float64) float64 {
	z := (x - mean) / sd
	return -0.5*z*z - math.Log(sd) - 0.5*math.Log(2*math.Pi)
}
