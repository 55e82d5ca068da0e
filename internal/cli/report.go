package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/ceasefire/internal/config"
	"github.com/roach88/ceasefire/internal/design"
	"github.com/roach88/ceasefire/internal/posterior"
	"github.com/roach88/ceasefire/internal/report"
	"github.com/roach88/ceasefire/internal/series"
	"github.com/roach88/ceasefire/internal/store"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Database   string
	RunID      string
	Sections   []string
	Level      float64
	AllowStale bool
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "report <config-dir>",
		Short: "Summarize a stored run",
		Long: `Summarize the posterior of a stored run: ceasefire effects, coefficient
tables, the marginal trend and seasonal curves, and posterior predictive
intervals against the observed counts.

The design matrix is rebuilt from the config and stored observations, so
both must still match the fingerprints recorded with the run. A mismatch
means the report would describe different data than the fit saw; pass
--allow-stale only when that is understood.

Example:
  ceasefire report --db ./city.db ./analysis
  ceasefire report --db ./city.db --run 0198c5f2-... --section effects ./analysis
  ceasefire report --db ./city.db --format json ./analysis`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(opts, args[0], cmd)
		},
	}

	databaseFlag(cmd, rootOpts, &opts.Database)
	cmd.Flags().StringVar(&opts.RunID, "run", "latest", "run id to report on, or \"latest\"")
	cmd.Flags().StringSliceVar(&opts.Sections, "section", []string{report.SectionAll},
		fmt.Sprintf("sections to include %v", report.ValidSections))
	cmd.Flags().Float64Var(&opts.Level, "level", posterior.DefaultLevel, "credible interval level")
	cmd.Flags().BoolVar(&opts.AllowStale, "allow-stale", false, "report even if config or data fingerprints changed since the fit")

	return cmd
}

func runReport(opts *ReportOptions, configDir string, cmd *cobra.Command) error {
	configureLogging(opts.Verbose)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	for _, s := range opts.Sections {
		if !report.IsValidSection(s) {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid section %q: must be one of %v", s, report.ValidSections))
		}
	}
	if opts.Level <= 0 || opts.Level >= 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid level %g: must be in (0, 1)", opts.Level))
	}

	loadResult, err := LoadAnalysis(configDir)
	if err != nil {
		if formatErr := formatter.Error(loadErrorCode(err), err.Error(), nil); formatErr != nil {
			return formatErr
		}
		return NewExitError(ExitFailure, "config failed to compile")
	}
	analysis := loadResult.Analysis

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	var run *store.Run
	if opts.RunID == "latest" {
		run, err = st.LatestRun(cmd.Context())
	} else {
		run, err = st.GetRun(cmd.Context(), opts.RunID)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load run", err)
	}
	slog.Debug("run loaded", "id", run.ID, "created_at", run.CreatedAt)

	// Rebuild the study span exactly as the fit saw it: clip to the
	// span recorded on the run, not the config's, so a config edited
	// after the fit cannot silently shift the report.
	full, err := st.ReadSeries(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read observations", err)
	}
	s, err := full.Slice(run.SpanStart, run.SpanEnd)
	if err != nil {
		return staleDataError(formatter,
			fmt.Sprintf("stored observations no longer cover the run's span: %v", err))
	}

	if err := verifyFingerprints(formatter, opts, run, analysis, s); err != nil {
		return err
	}

	m, _, err := design.Build(s, analysis)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to rebuild design matrix", err)
	}

	chains, err := st.ReadDraws(cmd.Context(), run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read draws", err)
	}
	draws, err := posterior.New(run.ParamNames, chains)
	if err != nil {
		return WrapExitError(ExitFailure, "stored draws are inconsistent", err)
	}

	rep, err := report.Build(run, draws, m, s, analysis, opts.Sections, opts.Level)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to build report", err)
	}

	if opts.Format == "json" {
		return json.NewEncoder(formatter.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   rep,
			RunID:  run.ID,
		})
	}
	return report.RenderText(formatter.Writer, rep)
}

// verifyFingerprints checks that the config and observations still match
// what the run was fit against.
func verifyFingerprints(formatter *OutputFormatter, opts *ReportOptions, run *store.Run, analysis *config.Analysis, s *series.Series) error {
	configHash, err := analysis.Fingerprint()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to fingerprint config", err)
	}
	dataFP, err := s.Fingerprint()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to fingerprint series", err)
	}

	if configHash != run.ConfigHash {
		if !opts.AllowStale {
			return staleDataError(formatter,
				fmt.Sprintf("config has changed since run %s was fit (hash %s, run recorded %s)", run.ID, configHash, run.ConfigHash))
		}
		slog.Warn("config hash mismatch", "run", run.ID)
	}
	if dataFP != run.DataFingerprint {
		if !opts.AllowStale {
			return staleDataError(formatter,
				fmt.Sprintf("observations have changed since run %s was fit", run.ID))
		}
		slog.Warn("data fingerprint mismatch", "run", run.ID)
	}
	return nil
}

func staleDataError(formatter *OutputFormatter, message string) error {
	if formatErr := formatter.Error(ErrCodeStaleData, message, "re-fit, or pass --allow-stale to report anyway"); formatErr != nil {
		return formatErr
	}
	return NewExitError(ExitFailure, message)
}
