package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/ceasefire/internal/series"
)

// Validation error codes (E100-E199)
const (
	// General errors (E100)
	ErrNameEmpty = "E100" // analysis name required

	// Model errors (E101-E109)
	ErrInvalidLikelihood = "E101" // unknown likelihood family
	ErrInvalidTrendDF    = "E102" // trend df out of range
	ErrInvalidHarmonics  = "E103" // harmonics out of range
	ErrNonPositivePrior  = "E104" // prior sd must be positive

	// Window errors (E110-E119)
	ErrNoWindows         = "E110" // at least one window required
	ErrWindowOrder       = "E111" // window end before start
	ErrWindowOverlap     = "E112" // windows overlap
	ErrDuplicateLabel    = "E113" // duplicate window label
	ErrWindowOutsideSpan = "E114" // window outside the study span

	// Sampler errors (E120-E129)
	ErrInvalidChains    = "E120" // chains must be >= 1
	ErrInvalidDraws     = "E121" // draws must be positive
	ErrInvalidBurnIn    = "E122" // burn-in must be non-negative
	ErrInvalidThin      = "E123" // thin must be >= 1
	ErrInvalidStepScale = "E124" // step scale must be positive

	// Data errors (E130-E139)
	ErrSpanOrder = "E130" // data end before start
)

// Maximum structural sizes. Six harmonic pairs already resolve cycles down
// to two months; beyond that the seasonal term starts chasing noise.
const (
	MaxHarmonics = 6
	MaxTrendDF   = 30
)

// ValidationError represents a semantic config error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks semantic rules over a compiled Analysis.
// Returns all errors found (does not fail-fast).
func Validate(a *Analysis) []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(a.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "name is required and must be non-empty",
			Code:    ErrNameEmpty,
		})
	}

	errs = append(errs, validateModel(&a.Model)...)
	errs = append(errs, validateWindows(a.Windows, a.Data)...)
	errs = append(errs, validateSampler(&a.Sampler)...)

	if !a.Data.Start.IsZero() && !a.Data.End.IsZero() && a.Data.End.Before(a.Data.Start) {
		errs = append(errs, ValidationError{
			Field:   "data",
			Message: fmt.Sprintf("end %s before start %s", a.Data.End.Format(series.DateLayout), a.Data.Start.Format(series.DateLayout)),
			Code:    ErrSpanOrder,
		})
	}

	return errs
}

func validateModel(m *ModelSpec) []ValidationError {
	var errs []ValidationError

	if m.Likelihood != LikelihoodNegBin && m.Likelihood != LikelihoodPoisson {
		errs = append(errs, ValidationError{
			Field:   "model.likelihood",
			Message: fmt.Sprintf("unknown likelihood %q, must be %q or %q", m.Likelihood, LikelihoodNegBin, LikelihoodPoisson),
			Code:    ErrInvalidLikelihood,
		})
	}

	if m.TrendDF < 0 || m.TrendDF > MaxTrendDF {
		errs = append(errs, ValidationError{
			Field:   "model.trend.df",
			Message: fmt.Sprintf("trend df %d out of range [0, %d]", m.TrendDF, MaxTrendDF),
			Code:    ErrInvalidTrendDF,
		})
	}
	// A natural cubic spline needs at least two interior knots to differ
	// from a straight line.
	if m.TrendDF == 1 {
		errs = append(errs, ValidationError{
			Field:   "model.trend.df",
			Message: "trend df 1 is not a spline; use 0 (no trend) or >= 2",
			Code:    ErrInvalidTrendDF,
		})
	}

	if m.Harmonics < 0 || m.Harmonics > MaxHarmonics {
		errs = append(errs, ValidationError{
			Field:   "model.seasonal.harmonics",
			Message: fmt.Sprintf("harmonics %d out of range [0, %d]", m.Harmonics, MaxHarmonics),
			Code:    ErrInvalidHarmonics,
		})
	}

	for _, p := range []struct {
		field string
		value float64
	}{
		{"model.priors.intercept_sd", m.Priors.InterceptSD},
		{"model.priors.coef_sd", m.Priors.CoefSD},
		{"model.priors.log_dispersion_sd", m.Priors.LogDispersionSD},
	} {
		if p.value <= 0 {
			errs = append(errs, ValidationError{
				Field:   p.field,
				Message: fmt.Sprintf("prior sd must be positive, got %g", p.value),
				Code:    ErrNonPositivePrior,
			})
		}
	}

	return errs
}

func validateWindows(windows []Window, data DataSpec) []ValidationError {
	var errs []ValidationError

	if len(windows) == 0 {
		errs = append(errs, ValidationError{
			Field:   "windows",
			Message: "at least one ceasefire window is required",
			Code:    ErrNoWindows,
		})
		return errs
	}

	labels := make(map[string]bool)
	for i, w := range windows {
		if w.End.Before(w.Start) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("windows[%d]", i),
				Message: fmt.Sprintf("window %q ends %s before it starts %s", w.Label, w.End.Format(series.DateLayout), w.Start.Format(series.DateLayout)),
				Code:    ErrWindowOrder,
			})
		}
		if labels[w.Label] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("windows[%d].label", i),
				Message: fmt.Sprintf("duplicate window label %q", w.Label),
				Code:    ErrDuplicateLabel,
			})
		}
		labels[w.Label] = true

		if !data.Start.IsZero() && w.End.Before(data.Start) || !data.End.IsZero() && w.Start.After(data.End) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("windows[%d]", i),
				Message: fmt.Sprintf("window %q lies entirely outside the study span", w.Label),
				Code:    ErrWindowOutsideSpan,
			})
		}
	}

	// Overlap check on a sorted copy so the config order doesn't matter.
	sorted := make([]Window, len(windows))
	copy(sorted, windows)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })
	for i := 1; i < len(sorted); i++ {
		if !sorted[i].Start.After(sorted[i-1].End) {
			errs = append(errs, ValidationError{
				Field:   "windows",
				Message: fmt.Sprintf("windows %q and %q overlap", sorted[i-1].Label, sorted[i].Label),
				Code:    ErrWindowOverlap,
			})
		}
	}

	return errs
}

func validateSampler(s *SamplerSpec) []ValidationError {
	var errs []ValidationError

	if s.Chains < 1 {
		errs = append(errs, ValidationError{
			Field:   "sampler.chains",
			Message: fmt.Sprintf("chains must be >= 1, got %d", s.Chains),
			Code:    ErrInvalidChains,
		})
	}
	if s.Draws < 1 {
		errs = append(errs, ValidationError{
			Field:   "sampler.draws",
			Message: fmt.Sprintf("draws must be positive, got %d", s.Draws),
			Code:    ErrInvalidDraws,
		})
	}
	if s.BurnIn < 0 {
		errs = append(errs, ValidationError{
			Field:   "sampler.burnin",
			Message: fmt.Sprintf("burn-in must be non-negative, got %d", s.BurnIn),
			Code:    ErrInvalidBurnIn,
		})
	}
	if s.Thin < 1 {
		errs = append(errs, ValidationError{
			Field:   "sampler.thin",
			Message: fmt.Sprintf("thin must be >= 1, got %d", s.Thin),
			Code:    ErrInvalidThin,
		})
	}
	if s.StepScale <= 0 {
		errs = append(errs, ValidationError{
			Field:   "sampler.step_scale",
			Message: fmt.Sprintf("step scale must be positive, got %g", s.StepScale),
			Code:    ErrInvalidStepScale,
		})
	}

	return errs
}
