package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/ceasefire/internal/config"
	"github.com/roach88/ceasefire/internal/design"
	"github.com/roach88/ceasefire/internal/model"
	"github.com/roach88/ceasefire/internal/posterior"
	"github.com/roach88/ceasefire/internal/series"
	"github.com/roach88/ceasefire/internal/store"
)

// Section names selectable via the CLI --section flag.
const (
	SectionEffects      = "effects"
	SectionCoefficients = "coefficients"
	SectionTrend        = "trend"
	SectionSeasonal     = "seasonal"
	SectionPredictive   = "predictive"
	SectionAll          = "all"
)

// ValidSections lists the accepted --section values.
var ValidSections = []string{
	SectionAll, SectionEffects, SectionCoefficients,
	SectionTrend, SectionSeasonal, SectionPredictive,
}

// RunInfo carries the run provenance shown in every report header.
type RunInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	Likelihood  string    `json:"likelihood"`
	SpanStart   time.Time `json:"span_start"`
	SpanEnd     time.Time `json:"span_end"`
	Chains      int       `json:"chains"`
	Draws       int       `json:"draws"`
	Seed        uint64    `json:"seed"`
	RHatMax     float64   `json:"rhat_max"`
	ESSMin      float64   `json:"ess_min"`
	MoveRate    float64   `json:"move_rate"`
	Converged   bool      `json:"converged"`
	ConfigHash  string    `json:"config_hash"`
	Fingerprint string    `json:"data_fingerprint"`
}

// Coefficient pairs one parameter's posterior on the log scale with its
// incidence-rate-ratio transform.
type Coefficient struct {
	Name string            `json:"name"`
	Coef posterior.Summary `json:"coef"`
	IRR  posterior.Summary `json:"irr"`
}

// Report is the assembled presentation of one fit run.
// Sections not requested are nil and omitted from JSON output.
type Report struct {
	Run          RunInfo                     `json:"run"`
	Effects      []posterior.Effect          `json:"effects,omitempty"`
	Coefficients []Coefficient               `json:"coefficients,omitempty"`
	Trend        []posterior.TrendPoint      `json:"trend,omitempty"`
	Seasonal     []posterior.TrendPoint      `json:"seasonal,omitempty"`
	Predictive   []posterior.PredictivePoint `json:"predictive,omitempty"`
	Coverage     float64                     `json:"coverage,omitempty"`
	Warnings     []string                    `json:"warnings,omitempty"`
}

// Build computes the requested report sections for a stored run.
//
// The draws, design matrix and series must all come from the same study
// span; the caller (the report command) reconstructs the matrix from the
// stored config and observations and verifies fingerprints first.
func Build(run *store.Run, draws *posterior.Draws, m *design.Matrix, s *series.Series, cfg *config.Analysis, sections []string, level float64) (*Report, error) {
	want := sectionSet(sections)

	r := &Report{
		Run: RunInfo{
			ID:          run.ID,
			Name:        run.Name,
			CreatedAt:   run.CreatedAt,
			Likelihood:  run.Likelihood,
			SpanStart:   run.SpanStart,
			SpanEnd:     run.SpanEnd,
			Chains:      run.Chains,
			Draws:       run.Draws,
			Seed:        run.Seed,
			RHatMax:     run.RHatMax,
			ESSMin:      run.ESSMin,
			MoveRate:    run.MoveRate,
			Converged:   run.RHatMax <= model.RHatWarnThreshold,
			ConfigHash:  run.ConfigHash,
			Fingerprint: run.DataFingerprint,
		},
	}

	if !r.Run.Converged {
		r.Warnings = append(r.Warnings,
			fmt.Sprintf("max split-R-hat %.3f exceeds %.2f; treat summaries with caution", run.RHatMax, model.RHatWarnThreshold))
	}

	var err error
	if want[SectionEffects] {
		r.Effects, err = posterior.Effects(draws, m, s, level)
		if err != nil {
			return nil, fmt.Errorf("effects section: %w", err)
		}
	}

	if want[SectionCoefficients] {
		r.Coefficients, err = coefficients(draws, level)
		if err != nil {
			return nil, fmt.Errorf("coefficients section: %w", err)
		}
	}

	if want[SectionTrend] {
		r.Trend, err = posterior.MarginalTrend(draws, m, s, level)
		if err != nil {
			return nil, fmt.Errorf("trend section: %w", err)
		}
	}

	if want[SectionSeasonal] {
		if cfg.Model.Harmonics == 0 {
			r.Warnings = append(r.Warnings, "seasonal section skipped: model has no seasonal term")
		} else {
			r.Seasonal, err = posterior.SeasonalCurve(draws, m, s, cfg.Model.Harmonics, level)
			if err != nil {
				return nil, fmt.Errorf("seasonal section: %w", err)
			}
		}
	}

	if want[SectionPredictive] {
		r.Predictive, err = posterior.Predictive(draws, m, s, run.Likelihood, level, run.Seed)
		if err != nil {
			return nil, fmt.Errorf("predictive section: %w", err)
		}
		r.Coverage = posterior.Coverage(r.Predictive)
	}

	return r, nil
}

// coefficients summarizes every regression coefficient on both scales.
// The dispersion parameter is reported on the log scale only (its IRR has
// no meaning) and therefore appears last with a zero IRR summary.
func coefficients(draws *posterior.Draws, level float64) ([]Coefficient, error) {
	out := make([]Coefficient, 0, len(draws.Names))
	for _, name := range draws.Names {
		coef, err := draws.SummarizeParam(name, level)
		if err != nil {
			return nil, err
		}
		c := Coefficient{Name: name, Coef: coef}
		if name != "log_dispersion" {
			c.IRR, err = draws.RateRatio(name, level)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, c)
	}
	return out, nil
}

func sectionSet(sections []string) map[string]bool {
	want := make(map[string]bool)
	if len(sections) == 0 {
		want[SectionAll] = true
	}
	for _, s := range sections {
		want[strings.ToLower(strings.TrimSpace(s))] = true
	}
	if want[SectionAll] {
		for _, s := range ValidSections {
			want[s] = true
		}
	}
	return want
}

// IsValidSection checks a --section value.
func IsValidSection(s string) bool {
	for _, v := range ValidSections {
		if s == v {
			return true
		}
	}
	return false
}
