// Package harness runs end-to-end model checks from YAML scenarios.
//
// A scenario plants known effects in a synthetic daily series, fits the
// configured model against a fresh in-memory database, and asserts that
// the posterior recovers what was planted. Because both the generator and
// the sampler are seeded, a scenario is fully deterministic: the same
// YAML produces the same draws, the same effects, and the same rendered
// report, which is what makes golden snapshots of reports meaningful.
//
// The harness exercises the real pipeline, not a shortcut: observations
// round-trip through the store, the run and its draws are persisted and
// read back, and the report is assembled from the stored record.
package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/ceasefire/internal/config"
	"github.com/roach88/ceasefire/internal/design"
	"github.com/roach88/ceasefire/internal/model"
	"github.com/roach88/ceasefire/internal/posterior"
	"github.com/roach88/ceasefire/internal/report"
	"github.com/roach88/ceasefire/internal/series"
	"github.com/roach88/ceasefire/internal/store"
	"github.com/roach88/ceasefire/internal/testutil"
)

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory database for isolation.
// Execution flow:
//  1. Generate the synthetic series from the scenario's series block
//  2. Write and re-read it through a fresh store
//  3. Build the design matrix and fit the model
//  4. Persist the run with a fixed id and frozen timestamp, read it back
//  5. Assemble the full report and evaluate assertions
//
// An error return means the scenario could not execute; assertion
// failures are reported on the Result instead.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	spec, err := scenario.buildSeriesSpec()
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}
	generated, err := testutil.GenerateSeries(spec)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: generate series: %w", scenario.Name, err)
	}

	analysis, err := scenario.buildAnalysis()
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("scenario %q: open store: %w", scenario.Name, err)
	}
	defer st.Close()

	if err := st.UpsertObservations(ctx, generated.Observations(), "harness"); err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}
	s, err := st.ReadSeries(ctx)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	m, _, err := design.Build(s, analysis)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: build design matrix: %w", scenario.Name, err)
	}
	post, err := model.NewPosterior(s, m, analysis.Model)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	fit, err := model.Fit(ctx, post, analysis.Sampler)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: fit: %w", scenario.Name, err)
	}

	run, err := persistRun(ctx, st, scenario, analysis, s, fit)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	chains, err := st.ReadDraws(ctx, run.ID)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}
	draws, err := posterior.New(run.ParamNames, chains)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	rep, err := report.Build(run, draws, m, s, analysis, []string{report.SectionAll}, posterior.DefaultLevel)
	if err != nil {
		return nil, fmt.Errorf("scenario %q: build report: %w", scenario.Name, err)
	}

	result := NewResult()
	result.Effects = rep.Effects
	result.Diagnostics = fit.Diagnostics
	result.MoveRate = meanRate(fit.MoveRate)
	result.Report = rep

	EvaluateAssertions(result, scenario.Assertions, draws, fit)
	return result, nil
}

// persistRun writes the fit as a run record with a fixed id and a frozen
// creation timestamp, so reports built from it are byte-stable.
func persistRun(ctx context.Context, st *store.Store, scenario *Scenario, analysis *config.Analysis, s *series.Series, fit *model.Result) (*store.Run, error) {
	configHash, err := analysis.Fingerprint()
	if err != nil {
		return nil, err
	}
	configJSON, err := analysis.CanonicalJSON()
	if err != nil {
		return nil, err
	}
	dataFP, err := s.Fingerprint()
	if err != nil {
		return nil, err
	}

	idGen := testutil.NewFixedRunIDGenerator(scenario.RunID)
	clock := testutil.NewFrozenClock(time.Time{})

	run := store.Run{
		ID:              idGen.NewID(),
		CreatedAt:       clock.Now(),
		Name:            scenario.Name,
		ConfigHash:      configHash,
		ConfigJSON:      configJSON,
		DataFingerprint: dataFP,
		SpanStart:       s.Start,
		SpanEnd:         s.End(),
		Likelihood:      analysis.Model.Likelihood,
		Chains:          analysis.Sampler.Chains,
		Draws:           analysis.Sampler.Draws,
		BurnIn:          analysis.Sampler.BurnIn,
		Thin:            analysis.Sampler.Thin,
		Seed:            analysis.Sampler.Seed,
		RHatMax:         fit.Diagnostics.MaxRHat(),
		ESSMin:          fit.Diagnostics.MinESS(),
		MoveRate:        meanRate(fit.MoveRate),
		ParamNames:      fit.ParamNames,
	}

	if err := st.WriteRun(ctx, run, fit.Chains); err != nil {
		return nil, err
	}
	return &run, nil
}

func meanRate(rates []float64) float64 {
	if len(rates) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range rates {
		sum += r
	}
	return sum / float64(len(rates))
}
