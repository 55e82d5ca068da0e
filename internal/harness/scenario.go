package harness

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/ceasefire/internal/config"
	"github.com/roach88/ceasefire/internal/series"
	"github.com/roach88/ceasefire/internal/testutil"
)

// Scenario defines one end-to-end model check.
//
// A scenario generates a synthetic series with known effects, fits the
// configured model against it, and asserts that the posterior recovers
// what was planted: the window effect size, coefficient signs, and
// convergence of the chains.
type Scenario struct {
	// Name uniquely identifies this scenario. It doubles as the golden
	// file name for snapshot comparison.
	Name string `yaml:"name"`

	// Description explains what this scenario checks.
	Description string `yaml:"description"`

	// Series describes the synthetic data generator.
	Series SeriesSpec `yaml:"series"`

	// Windows are the intervention periods, each with the true
	// multiplicative effect the generator applies.
	Windows []WindowSpec `yaml:"windows"`

	// Model overrides the model defaults. Nil keeps them.
	Model *ModelSpec `yaml:"model,omitempty"`

	// Sampler overrides the sampler defaults. Nil keeps them.
	Sampler *SamplerSpec `yaml:"sampler,omitempty"`

	// Assertions validate the fit. At least one is required.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run id for deterministic golden files.
	// Empty defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// SeriesSpec is the YAML shape of the synthetic generator settings.
// Dates are ISO strings; weekday keys are "mon".."sun".
type SeriesSpec struct {
	Start             string             `yaml:"start"`
	Days              int                `yaml:"days"`
	Baseline          float64            `yaml:"baseline"`
	Weekday           map[string]float64 `yaml:"weekday,omitempty"`
	SeasonalAmplitude float64            `yaml:"seasonal_amplitude,omitempty"`
	TrendTotal        float64            `yaml:"trend_total,omitempty"`
	HolidayEffect     float64            `yaml:"holiday_effect,omitempty"`
	Dispersion        float64            `yaml:"dispersion,omitempty"`
	Seed              uint64             `yaml:"seed"`
}

// WindowSpec is one intervention period with its planted effect.
type WindowSpec struct {
	Label  string  `yaml:"label"`
	Start  string  `yaml:"start"`
	End    string  `yaml:"end"`
	Effect float64 `yaml:"effect"`
}

// ModelSpec overrides the model defaults. Pointer fields distinguish
// "unset" from an explicit zero.
type ModelSpec struct {
	Likelihood string `yaml:"likelihood,omitempty"`
	TrendDF    *int   `yaml:"trend_df,omitempty"`
	Harmonics  *int   `yaml:"harmonics,omitempty"`
	Weekday    *bool  `yaml:"weekday,omitempty"`
	Holiday    *bool  `yaml:"holiday,omitempty"`
	PerWindow  *bool  `yaml:"per_window,omitempty"`
}

// SamplerSpec overrides the sampler defaults.
type SamplerSpec struct {
	Chains    int     `yaml:"chains,omitempty"`
	Draws     int     `yaml:"draws,omitempty"`
	BurnIn    int     `yaml:"burnin,omitempty"`
	Thin      int     `yaml:"thin,omitempty"`
	StepScale float64 `yaml:"step_scale,omitempty"`
	Seed      uint64  `yaml:"seed,omitempty"`
}

// Assertion validates one aspect of the fit.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Param names the parameter for irr_within, prob_reduction_at_least
	// and param_sign. For window parameters use the design matrix name,
	// e.g. "ceasefire" or "ceasefire_summer-2023".
	Param string `yaml:"param,omitempty"`

	// Min and Max bound the posterior mean for irr_within.
	Min float64 `yaml:"min,omitempty"`
	Max float64 `yaml:"max,omitempty"`

	// Value is the threshold for the scalar assertion types.
	Value float64 `yaml:"value,omitempty"`

	// Sign is "positive" or "negative" for param_sign. It checks the
	// posterior mean of the coefficient on the log scale.
	Sign string `yaml:"sign,omitempty"`
}

// Assertion type constants.
const (
	AssertIRRWithin      = "irr_within"
	AssertProbReduction  = "prob_reduction_at_least"
	AssertRHatBelow      = "rhat_below"
	AssertESSAbove       = "ess_above"
	AssertParamSign      = "param_sign"
	AssertMoveRateWithin = "move_rate_within"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected so a typo like "assertion:" fails loudly instead of silently
// weakening the scenario.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Series.Start == "" {
		return fmt.Errorf("series.start is required")
	}
	if _, err := series.ParseDate(s.Series.Start); err != nil {
		return fmt.Errorf("series.start: %w", err)
	}
	if s.Series.Days < 1 {
		return fmt.Errorf("series.days must be positive")
	}
	if s.Series.Baseline <= 0 {
		return fmt.Errorf("series.baseline must be positive")
	}
	for key := range s.Series.Weekday {
		if _, ok := weekdayKeys[key]; !ok {
			return fmt.Errorf("series.weekday: unknown day %q", key)
		}
	}
	if len(s.Windows) == 0 {
		return fmt.Errorf("windows list is required and must be non-empty")
	}
	for i, w := range s.Windows {
		if w.Label == "" {
			return fmt.Errorf("windows[%d]: label is required", i)
		}
		start, err := series.ParseDate(w.Start)
		if err != nil {
			return fmt.Errorf("windows[%d].start: %w", i, err)
		}
		end, err := series.ParseDate(w.End)
		if err != nil {
			return fmt.Errorf("windows[%d].end: %w", i, err)
		}
		if end.Before(start) {
			return fmt.Errorf("windows[%d]: end precedes start", i)
		}
		if w.Effect <= 0 {
			return fmt.Errorf("windows[%d]: effect must be positive", i)
		}
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertIRRWithin:
		if a.Param == "" {
			return fmt.Errorf("assertions[%d]: param is required for irr_within", index)
		}
		if a.Min <= 0 || a.Max <= a.Min {
			return fmt.Errorf("assertions[%d]: irr_within needs 0 < min < max", index)
		}
	case AssertProbReduction:
		if a.Param == "" {
			return fmt.Errorf("assertions[%d]: param is required for prob_reduction_at_least", index)
		}
		if a.Value <= 0 || a.Value > 1 {
			return fmt.Errorf("assertions[%d]: value must be in (0, 1] for prob_reduction_at_least", index)
		}
	case AssertRHatBelow:
		if a.Value <= 1 {
			return fmt.Errorf("assertions[%d]: value must exceed 1 for rhat_below", index)
		}
	case AssertESSAbove:
		if a.Value <= 0 {
			return fmt.Errorf("assertions[%d]: value must be positive for ess_above", index)
		}
	case AssertParamSign:
		if a.Param == "" {
			return fmt.Errorf("assertions[%d]: param is required for param_sign", index)
		}
		if a.Sign != "positive" && a.Sign != "negative" {
			return fmt.Errorf("assertions[%d]: sign must be \"positive\" or \"negative\"", index)
		}
	case AssertMoveRateWithin:
		if a.Min < 0 || a.Max <= a.Min || a.Max > 1 {
			return fmt.Errorf("assertions[%d]: move_rate_within needs 0 <= min < max <= 1", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

var weekdayKeys = map[string]time.Weekday{
	"mon": time.Monday,
	"tue": time.Tuesday,
	"wed": time.Wednesday,
	"thu": time.Thursday,
	"fri": time.Friday,
	"sat": time.Saturday,
	"sun": time.Sunday,
}

// buildSeriesSpec converts the YAML series block to generator settings.
// Validation has already checked the fields parse.
func (s *Scenario) buildSeriesSpec() (testutil.SeriesSpec, error) {
	start, err := series.ParseDate(s.Series.Start)
	if err != nil {
		return testutil.SeriesSpec{}, err
	}

	spec := testutil.SeriesSpec{
		Start:             start,
		Days:              s.Series.Days,
		Baseline:          s.Series.Baseline,
		SeasonalAmplitude: s.Series.SeasonalAmplitude,
		TrendTotal:        s.Series.TrendTotal,
		HolidayEffect:     s.Series.HolidayEffect,
		Dispersion:        s.Series.Dispersion,
		Seed:              s.Series.Seed,
	}

	if len(s.Series.Weekday) > 0 {
		spec.Weekday = make(map[time.Weekday]float64, len(s.Series.Weekday))
		for key, mult := range s.Series.Weekday {
			spec.Weekday[weekdayKeys[key]] = mult
		}
	}

	for _, w := range s.Windows {
		win, err := w.toWindow()
		if err != nil {
			return testutil.SeriesSpec{}, err
		}
		spec.Windows = append(spec.Windows, testutil.WindowEffect{Window: win, Effect: w.Effect})
	}
	return spec, nil
}

func (w WindowSpec) toWindow() (config.Window, error) {
	start, err := series.ParseDate(w.Start)
	if err != nil {
		return config.Window{}, err
	}
	end, err := series.ParseDate(w.End)
	if err != nil {
		return config.Window{}, err
	}
	return config.Window{Label: w.Label, Start: start, End: end}, nil
}

// buildAnalysis assembles the analysis config the scenario fits:
// the package defaults overlaid with the scenario's model and sampler
// blocks, plus the scenario windows.
func (s *Scenario) buildAnalysis() (*config.Analysis, error) {
	analysis := config.Default()
	analysis.Name = s.Name

	for _, w := range s.Windows {
		win, err := w.toWindow()
		if err != nil {
			return nil, err
		}
		analysis.Windows = append(analysis.Windows, win)
	}

	if m := s.Model; m != nil {
		if m.Likelihood != "" {
			analysis.Model.Likelihood = m.Likelihood
		}
		if m.TrendDF != nil {
			analysis.Model.TrendDF = *m.TrendDF
		}
		if m.Harmonics != nil {
			analysis.Model.Harmonics = *m.Harmonics
		}
		if m.Weekday != nil {
			analysis.Model.Weekday = *m.Weekday
		}
		if m.Holiday != nil {
			analysis.Model.Holiday = *m.Holiday
		}
		if m.PerWindow != nil {
			analysis.Model.PerWindow = *m.PerWindow
		}
	}

	if sp := s.Sampler; sp != nil {
		if sp.Chains > 0 {
			analysis.Sampler.Chains = sp.Chains
		}
		if sp.Draws > 0 {
			analysis.Sampler.Draws = sp.Draws
		}
		if sp.BurnIn > 0 {
			analysis.Sampler.BurnIn = sp.BurnIn
		}
		if sp.Thin > 0 {
			analysis.Sampler.Thin = sp.Thin
		}
		if sp.StepScale > 0 {
			analysis.Sampler.StepScale = sp.StepScale
		}
		if sp.Seed != 0 {
			analysis.Sampler.Seed = sp.Seed
		}
	}

	if errs := config.Validate(&analysis); len(errs) > 0 {
		return nil, fmt.Errorf("scenario config invalid: %v", errs[0])
	}
	return &analysis, nil
}
