package cli

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/ceasefire/internal/config"
	"github.com/roach88/ceasefire/internal/design"
	"github.com/roach88/ceasefire/internal/model"
	"github.com/roach88/ceasefire/internal/series"
	"github.com/roach88/ceasefire/internal/store"
)

// FitOptions holds flags for the fit command.
type FitOptions struct {
	*RootOptions
	Database string
	Seed     uint64
	Chains   int
	Draws    int
}

// FitSummary is the success payload of the fit command.
type FitSummary struct {
	RunID     string   `json:"run_id"`
	Name      string   `json:"name"`
	Span      string   `json:"span"`
	Days      int      `json:"days"`
	Params    int      `json:"params"`
	Chains    int      `json:"chains"`
	Draws     int      `json:"draws"`
	Seed      uint64   `json:"seed"`
	RHatMax   float64  `json:"rhat_max"`
	ESSMin    float64  `json:"ess_min"`
	MoveRate  float64  `json:"move_rate"`
	Converged bool     `json:"converged"`
	Elapsed   string   `json:"elapsed"`
	Warnings  []string `json:"warnings,omitempty"`
}

func (s FitSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s (%s)\n", s.RunID, s.Name)
	fmt.Fprintf(&b, "fit %d params over %d days (%s), %d chains x %d draws, seed %d, %s\n",
		s.Params, s.Days, s.Span, s.Chains, s.Draws, s.Seed, s.Elapsed)
	fmt.Fprintf(&b, "diagnostics: max R-hat %.3f, min ESS %.0f, move rate %.2f", s.RHatMax, s.ESSMin, s.MoveRate)
	if !s.Converged {
		fmt.Fprintf(&b, "\nWARNING: chains did not converge (R-hat > %.2f)", model.RHatWarnThreshold)
	}
	for _, w := range s.Warnings {
		fmt.Fprintf(&b, "\nWARNING: %s", w)
	}
	return b.String()
}

// NewFitCommand creates the fit command.
func NewFitCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FitOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "fit <config-dir>",
		Short: "Fit the model and persist a run",
		Long: `Fit the count regression described by the config to the stored series.

The observed series is clipped to the config's study span, the design
matrix is built, and parallel Metropolis-Hastings chains are run. The
kept draws, parameter names, convergence diagnostics and the config and
data fingerprints are persisted as a new run.

The same config, data and seed always reproduce the same draws.

Example:
  ceasefire fit --db ./city.db ./analysis
  ceasefire fit --db ./city.db --seed 7 ./analysis`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFit(opts, args[0], cmd)
		},
	}

	databaseFlag(cmd, rootOpts, &opts.Database)
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "override the sampler seed (or CEASEFIRE_SEED)")
	cmd.Flags().IntVar(&opts.Chains, "chains", 0, "override the number of chains")
	cmd.Flags().IntVar(&opts.Draws, "draws", 0, "override kept draws per chain")

	return cmd
}

func runFit(opts *FitOptions, configDir string, cmd *cobra.Command) error {
	configureLogging(opts.Verbose)
	start := time.Now()

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	loadResult, err := LoadAnalysis(configDir)
	if err != nil {
		if formatErr := formatter.Error(loadErrorCode(err), err.Error(), nil); formatErr != nil {
			return formatErr
		}
		return NewExitError(ExitFailure, "config failed to compile")
	}
	analysis := loadResult.Analysis

	if errs := config.Validate(analysis); len(errs) > 0 {
		details := make([]string, len(errs))
		for i, e := range errs {
			details[i] = e.Error()
		}
		if formatErr := formatter.Error(ErrCodeGeneric,
			fmt.Sprintf("config failed validation with %d error(s)", len(errs)), details); formatErr != nil {
			return formatErr
		}
		return NewExitError(ExitFailure, "config failed validation")
	}

	applySamplerOverrides(analysis, opts)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	full, err := st.ReadSeries(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read observations", err)
	}

	s, err := clipToSpan(full, analysis)
	if err != nil {
		return WrapExitError(ExitFailure, "study span not covered by data", err)
	}
	slog.Info("series loaded", "days", s.Len(), "start", s.Start.Format(series.DateLayout), "end", s.End().Format(series.DateLayout))

	m, warnings, err := design.Build(s, analysis)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to build design matrix", err)
	}
	for _, w := range warnings {
		slog.Warn(w)
	}

	post, err := model.NewPosterior(s, m, analysis.Model)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to set up posterior", err)
	}

	slog.Info("sampling",
		"params", post.Dim(),
		"chains", analysis.Sampler.Chains,
		"draws", analysis.Sampler.Draws,
		"burnin", analysis.Sampler.BurnIn,
		"seed", analysis.Sampler.Seed)

	res, err := model.Fit(cmd.Context(), post, analysis.Sampler)
	if err != nil {
		return WrapExitError(ExitFailure, "sampling failed", err)
	}

	configHash, err := analysis.Fingerprint()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to fingerprint config", err)
	}
	configJSON, err := analysis.CanonicalJSON()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to serialize config", err)
	}
	dataFP, err := s.Fingerprint()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to fingerprint series", err)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to generate run id", err)
	}

	run := store.Run{
		ID:              id.String(),
		CreatedAt:       time.Now().UTC(),
		Name:            analysis.Name,
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
		RHatMax:         res.Diagnostics.MaxRHat(),
		ESSMin:          res.Diagnostics.MinESS(),
		MoveRate:        meanMoveRate(res.MoveRate),
		ParamNames:      res.ParamNames,
	}

	if err := st.WriteRun(cmd.Context(), run, res.Chains); err != nil {
		return WrapExitError(ExitCommandError, "failed to persist run", err)
	}

	summary := FitSummary{
		RunID:     run.ID,
		Name:      run.Name,
		Span:      fmt.Sprintf("%s .. %s", run.SpanStart.Format(series.DateLayout), run.SpanEnd.Format(series.DateLayout)),
		Days:      s.Len(),
		Params:    post.Dim(),
		Chains:    run.Chains,
		Draws:     run.Draws,
		Seed:      run.Seed,
		RHatMax:   run.RHatMax,
		ESSMin:    run.ESSMin,
		MoveRate:  run.MoveRate,
		Converged: res.Diagnostics.Converged(),
		Elapsed:   time.Since(start).Round(time.Millisecond).String(),
		Warnings:  warnings,
	}
	return formatter.Success(summary)
}

// applySamplerOverrides layers flag and environment overrides onto the
// config's sampler block. Precedence is flag, then environment, then config.
func applySamplerOverrides(analysis *config.Analysis, opts *FitOptions) {
	if opts.Seed != 0 {
		analysis.Sampler.Seed = opts.Seed
	} else if opts.Env.Seed != 0 {
		analysis.Sampler.Seed = opts.Env.Seed
	}
	if opts.Chains > 0 {
		analysis.Sampler.Chains = opts.Chains
	}
	if opts.Draws > 0 {
		analysis.Sampler.Draws = opts.Draws
	}
}

// clipToSpan narrows the series to the config's study span. A zero start
// or end in the config means "use the data's edge".
func clipToSpan(s *series.Series, analysis *config.Analysis) (*series.Series, error) {
	from, to := s.Start, s.End()
	if !analysis.Data.Start.IsZero() {
		from = analysis.Data.Start
	}
	if !analysis.Data.End.IsZero() {
		to = analysis.Data.End
	}
	if from.Equal(s.Start) && to.Equal(s.End()) {
		return s, nil
	}
	return s.Slice(from, to)
}

func meanMoveRate(rates []float64) float64 {
	if len(rates) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range rates {
		sum += r
	}
	return sum / float64(len(rates))
}
