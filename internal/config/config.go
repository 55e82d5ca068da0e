package config

import (
	"fmt"
	"time"

	"github.com/roach88/ceasefire/internal/canonical"
	"github.com/roach88/ceasefire/internal/series"
)

// Likelihood families for the daily count model.
const (
	LikelihoodNegBin  = "negbin"
	LikelihoodPoisson = "poisson"
)

// Analysis is the complete, typed analysis configuration.
type Analysis struct {
	// Name labels the analysis in run records and reports.
	Name string

	// Data optionally clips the study span. Zero times mean "full series".
	Data DataSpec

	// Model describes the regression structure and priors.
	Model ModelSpec

	// Windows are the ceasefire intervention periods, inclusive of both
	// endpoints. They must not overlap.
	Windows []Window

	// Sampler controls the MCMC run.
	Sampler SamplerSpec
}

// DataSpec clips the observed series to a study span.
type DataSpec struct {
	Start time.Time // zero means series start
	End   time.Time // zero means series end
}

// ModelSpec describes the count regression.
type ModelSpec struct {
	// Likelihood is "negbin" (default) or "poisson".
	Likelihood string

	// TrendDF is the degrees of freedom of the natural cubic spline over
	// the day index capturing the long-run trend. Zero disables the trend.
	TrendDF int

	// Harmonics is the number of annual Fourier harmonic pairs.
	Harmonics int

	// Weekday adds day-of-week indicators (Monday is the reference level).
	Weekday bool

	// Holiday adds a public-holiday indicator.
	Holiday bool

	// PerWindow fits a separate coefficient per labeled window instead of
	// one pooled ceasefire coefficient.
	PerWindow bool

	// Priors are the prior scales for all coefficient blocks.
	Priors PriorSpec
}

// PriorSpec holds normal prior parameters. All coefficients are centered at
// zero; the intercept and the dispersion get their own scales.
type PriorSpec struct {
	InterceptSD float64
	CoefSD      float64

	// Dispersion prior is on log(r), the negative-binomial size parameter.
	LogDispersionMean float64
	LogDispersionSD   float64
}

// Window is one ceasefire intervention period, inclusive of both endpoints.
type Window struct {
	Label string
	Start time.Time
	End   time.Time
}

// Contains reports whether a date falls inside the window.
func (w Window) Contains(d time.Time) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// Days returns the number of calendar days covered by the window.
func (w Window) Days() int {
	return int(w.End.Sub(w.Start).Hours()/24) + 1
}

// SamplerSpec controls the Metropolis-Hastings run.
type SamplerSpec struct {
	Chains int
	Draws  int // kept draws per chain, after burn-in and thinning
	BurnIn int
	Thin   int

	// StepScale multiplies the default random-walk proposal standard
	// deviation. Tune it toward a 20-40% acceptance rate.
	StepScale float64

	// Seed drives all chains; each chain derives its own stream from it.
	Seed uint64
}

// Default returns the analysis defaults applied before CUE compilation
// overlays the user's config.
func Default() Analysis {
	return Analysis{
		Model: ModelSpec{
			Likelihood: LikelihoodNegBin,
			TrendDF:    4,
			Harmonics:  2,
			Weekday:    true,
			Holiday:    true,
			Priors: PriorSpec{
				InterceptSD:       5,
				CoefSD:            1,
				LogDispersionMean: 2,
				LogDispersionSD:   1,
			},
		},
		Sampler: SamplerSpec{
			Chains:    4,
			Draws:     2000,
			BurnIn:    2000,
			Thin:      2,
			StepScale: 1,
			Seed:      1,
		},
	}
}

// Fingerprint computes the content-addressed identity of the config.
// Stored on every fit run; a report over a run can verify the config it
// presents is the config that produced the draws.
func (a *Analysis) Fingerprint() (string, error) {
	fp, err := canonical.Fingerprint(canonical.DomainConfig, a.canonicalObject())
	if err != nil {
		return "", fmt.Errorf("config fingerprint: %w", err)
	}
	return fp, nil
}

// CanonicalJSON renders the config in the same canonical form the
// fingerprint hashes. Stored alongside each run so the exact settings
// survive later edits to the config directory.
func (a *Analysis) CanonicalJSON() (string, error) {
	data, err := canonical.Marshal(a.canonicalObject())
	if err != nil {
		return "", fmt.Errorf("config canonical json: %w", err)
	}
	return string(data), nil
}

func (a *Analysis) canonicalObject() map[string]any {
	windows := make([]any, len(a.Windows))
	for i, w := range a.Windows {
		windows[i] = map[string]any{
			"label": w.Label,
			"start": w.Start.Format(series.DateLayout),
			"end":   w.End.Format(series.DateLayout),
		}
	}

	obj := map[string]any{
		"name": a.Name,
		"data": map[string]any{
			"start": formatOptionalDate(a.Data.Start),
			"end":   formatOptionalDate(a.Data.End),
		},
		"model": map[string]any{
			"likelihood": a.Model.Likelihood,
			"trend_df":   a.Model.TrendDF,
			"harmonics":  a.Model.Harmonics,
			"weekday":    a.Model.Weekday,
			"holiday":    a.Model.Holiday,
			"per_window": a.Model.PerWindow,
			"priors": map[string]any{
				"intercept_sd":        a.Model.Priors.InterceptSD,
				"coef_sd":             a.Model.Priors.CoefSD,
				"log_dispersion_mean": a.Model.Priors.LogDispersionMean,
				"log_dispersion_sd":   a.Model.Priors.LogDispersionSD,
			},
		},
		"windows": windows,
		"sampler": map[string]any{
			"chains":     a.Sampler.Chains,
			"draws":      a.Sampler.Draws,
			"burnin":     a.Sampler.BurnIn,
			"thin":       a.Sampler.Thin,
			"step_scale": a.Sampler.StepScale,
			"seed":       int64(a.Sampler.Seed),
		},
	}
	return obj
}

func formatOptionalDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(series.DateLayout)
}
