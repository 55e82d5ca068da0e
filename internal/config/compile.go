package config

import (
	"fmt"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/ceasefire/internal/series"
)

// CompileAnalysis parses a CUE value into an Analysis.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the analysis struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`analysis: { name: "city" ... }`)
//	a, err := CompileAnalysis(v.LookupPath(cue.ParsePath("analysis")))
//
// Fields absent from the CUE source keep their Default() values, so a
// minimal config only needs a name and windows.
func CompileAnalysis(v cue.Value) (*Analysis, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	a := Default()

	// Parse name (required)
	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return nil, &CompileError{
			Field:   "name",
			Message: "name is required",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	a.Name = name

	// Parse data span (optional)
	if err := parseData(v, &a.Data); err != nil {
		return nil, err
	}

	// Parse model (optional, overlays defaults)
	if err := parseModel(v, &a.Model); err != nil {
		return nil, err
	}

	// Parse windows (required, at least one)
	windows, err := parseWindows(v)
	if err != nil {
		return nil, err
	}
	if len(windows) == 0 {
		return nil, &CompileError{
			Field:   "windows",
			Message: "at least one ceasefire window is required",
			Pos:     v.Pos(),
		}
	}
	a.Windows = windows

	// Parse sampler (optional, overlays defaults)
	if err := parseSampler(v, &a.Sampler); err != nil {
		return nil, err
	}

	return &a, nil
}

// parseData extracts the optional study-span clip.
func parseData(v cue.Value, data *DataSpec) error {
	dataVal := v.LookupPath(cue.ParsePath("data"))
	if !dataVal.Exists() {
		return nil
	}

	var err error
	data.Start, err = parseOptionalDate(dataVal, "start")
	if err != nil {
		return err
	}
	data.End, err = parseOptionalDate(dataVal, "end")
	if err != nil {
		return err
	}
	return nil
}

// parseModel overlays model fields from CUE onto the defaults.
func parseModel(v cue.Value, model *ModelSpec) error {
	modelVal := v.LookupPath(cue.ParsePath("model"))
	if !modelVal.Exists() {
		return nil
	}

	if lv := modelVal.LookupPath(cue.ParsePath("likelihood")); lv.Exists() {
		likelihood, err := lv.String()
		if err != nil {
			return formatCUEError(err)
		}
		model.Likelihood = likelihood
	}

	if err := parseOptionalInt(modelVal, "trend.df", &model.TrendDF); err != nil {
		return err
	}
	if err := parseOptionalInt(modelVal, "seasonal.harmonics", &model.Harmonics); err != nil {
		return err
	}
	if err := parseOptionalBool(modelVal, "weekday", &model.Weekday); err != nil {
		return err
	}
	if err := parseOptionalBool(modelVal, "holiday", &model.Holiday); err != nil {
		return err
	}
	if err := parseOptionalBool(modelVal, "per_window", &model.PerWindow); err != nil {
		return err
	}

	priorsVal := modelVal.LookupPath(cue.ParsePath("priors"))
	if priorsVal.Exists() {
		if err := parseOptionalFloat(priorsVal, "intercept_sd", &model.Priors.InterceptSD); err != nil {
			return err
		}
		if err := parseOptionalFloat(priorsVal, "coef_sd", &model.Priors.CoefSD); err != nil {
			return err
		}
		if err := parseOptionalFloat(priorsVal, "log_dispersion_mean", &model.Priors.LogDispersionMean); err != nil {
			return err
		}
		if err := parseOptionalFloat(priorsVal, "log_dispersion_sd", &model.Priors.LogDispersionSD); err != nil {
			return err
		}
	}

	return nil
}

// parseWindows extracts the ceasefire window list.
func parseWindows(v cue.Value) ([]Window, error) {
	windowsVal := v.LookupPath(cue.ParsePath("windows"))
	if !windowsVal.Exists() {
		return nil, nil
	}

	iter, err := windowsVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var windows []Window
	i := 0
	for iter.Next() {
		wv := iter.Value()

		label, err := wv.LookupPath(cue.ParsePath("label")).String()
		if err != nil {
			return nil, &CompileError{
				Field:   fmt.Sprintf("windows[%d].label", i),
				Message: "window label is required",
				Pos:     wv.Pos(),
			}
		}

		start, err := parseRequiredDate(wv, fmt.Sprintf("windows[%d]", i), "start")
		if err != nil {
			return nil, err
		}
		end, err := parseRequiredDate(wv, fmt.Sprintf("windows[%d]", i), "end")
		if err != nil {
			return nil, err
		}

		windows = append(windows, Window{Label: label, Start: start, End: end})
		i++
	}
	return windows, nil
}

// parseSampler overlays sampler fields from CUE onto the defaults.
func parseSampler(v cue.Value, sampler *SamplerSpec) error {
	samplerVal := v.LookupPath(cue.ParsePath("sampler"))
	if !samplerVal.Exists() {
		return nil
	}

	if err := parseOptionalInt(samplerVal, "chains", &sampler.Chains); err != nil {
		return err
	}
	if err := parseOptionalInt(samplerVal, "draws", &sampler.Draws); err != nil {
		return err
	}
	if err := parseOptionalInt(samplerVal, "burnin", &sampler.BurnIn); err != nil {
		return err
	}
	if err := parseOptionalInt(samplerVal, "thin", &sampler.Thin); err != nil {
		return err
	}
	if err := parseOptionalFloat(samplerVal, "step_scale", &sampler.StepScale); err != nil {
		return err
	}

	if sv := samplerVal.LookupPath(cue.ParsePath("seed")); sv.Exists() {
		seed, err := sv.Int64()
		if err != nil {
			return formatCUEError(err)
		}
		if seed < 0 {
			return &CompileError{
				Field:   "sampler.seed",
				Message: "seed must be non-negative",
				Pos:     sv.Pos(),
			}
		}
		sampler.Seed = uint64(seed)
	}

	return nil
}

func parseOptionalInt(v cue.Value, path string, dst *int) error {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return nil
	}
	n, err := fv.Int64()
	if err != nil {
		return formatCUEError(err)
	}
	*dst = int(n)
	return nil
}

func parseOptionalFloat(v cue.Value, path string, dst *float64) error {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return nil
	}
	f, err := fv.Float64()
	if err != nil {
		return formatCUEError(err)
	}
	*dst = f
	return nil
}

func parseOptionalBool(v cue.Value, path string, dst *bool) error {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return nil
	}
	b, err := fv.Bool()
	if err != nil {
		return formatCUEError(err)
	}
	*dst = b
	return nil
}

func parseOptionalDate(v cue.Value, path string) (time.Time, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return time.Time{}, nil
	}
	s, err := fv.String()
	if err != nil {
		return time.Time{}, formatCUEError(err)
	}
	t, err := series.ParseDate(s)
	if err != nil {
		return time.Time{}, &CompileError{
			Field:   path,
			Message: err.Error(),
			Pos:     fv.Pos(),
		}
	}
	return t, nil
}

func parseRequiredDate(v cue.Value, prefix, field string) (time.Time, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return time.Time{}, &CompileError{
			Field:   prefix + "." + field,
			Message: field + " date is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return time.Time{}, formatCUEError(err)
	}
	t, err := series.ParseDate(s)
	if err != nil {
		return time.Time{}, &CompileError{
			Field:   prefix + "." + field,
			Message: err.Error(),
			Pos:     fv.Pos(),
		}
	}
	return t, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
