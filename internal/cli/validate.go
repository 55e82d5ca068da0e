package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ceasefire/internal/config"
	"github.com/roach88/ceasefire/internal/series"
	"github.com/roach88/ceasefire/internal/store"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Database string // optional; enables data coverage checks
}

// ValidateSummary is the success payload of the validate command.
type ValidateSummary struct {
	Name       string   `json:"name"`
	Files      int      `json:"files"`
	Windows    int      `json:"windows"`
	ConfigHash string   `json:"config_hash"`
	DataChecks []string `json:"data_checks,omitempty"`
}

func (s ValidateSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "config %q valid (%d file(s), %d window(s))\nhash: %s", s.Name, s.Files, s.Windows, s.ConfigHash)
	for _, c := range s.DataChecks {
		fmt.Fprintf(&b, "\n%s", c)
	}
	return b.String()
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <config-dir>",
		Short: "Validate an analysis config",
		Long: `Load the CUE analysis config and check it semantically.

All semantic errors are collected and reported together. With --db, the
stored observations are also checked against the config: the study span
must be covered and every ceasefire window should overlap it.

Example:
  ceasefire validate ./analysis
  ceasefire validate --db ./city.db ./analysis`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "artifact database for data coverage checks (optional)")

	return cmd
}

func runValidate(opts *ValidateOptions, configDir string, cmd *cobra.Command) error {
	configureLogging(opts.Verbose)

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
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	summary := ValidateSummary{
		Name:    analysis.Name,
		Files:   loadResult.FileCount,
		Windows: len(analysis.Windows),
	}
	summary.ConfigHash, err = analysis.Fingerprint()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to fingerprint config", err)
	}

	if opts.Database == "" {
		opts.Database = opts.Env.Database
	}
	if opts.Database != "" {
		checks, err := checkDataCoverage(cmd, opts.Database, analysis)
		if err != nil {
			return err
		}
		summary.DataChecks = checks
	}

	return formatter.Success(summary)
}

// checkDataCoverage compares the stored series against the config's study
// span and windows. Problems are reported as check lines, not errors; a
// clipped window is legitimate (the analysis just warns at fit time).
func checkDataCoverage(cmd *cobra.Command, database string, analysis *config.Analysis) ([]string, error) {
	st, err := store.Open(database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	s, err := st.ReadSeries(cmd.Context())
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read observations", err)
	}

	var checks []string
	checks = append(checks, fmt.Sprintf("data: %d days, %s .. %s",
		s.Len(), s.Start.Format(series.DateLayout), s.End().Format(series.DateLayout)))

	if !analysis.Data.Start.IsZero() && analysis.Data.Start.Before(s.Start) {
		checks = append(checks, fmt.Sprintf("check: study start %s precedes first observation %s",
			analysis.Data.Start.Format(series.DateLayout), s.Start.Format(series.DateLayout)))
	}
	if !analysis.Data.End.IsZero() && analysis.Data.End.After(s.End()) {
		checks = append(checks, fmt.Sprintf("check: study end %s exceeds last observation %s",
			analysis.Data.End.Format(series.DateLayout), s.End().Format(series.DateLayout)))
	}

	for _, w := range analysis.Windows {
		inSpan := 0
		for d := w.Start; !d.After(w.End); d = d.AddDate(0, 0, 1) {
			if _, ok := s.Index(d); ok {
				inSpan++
			}
		}
		switch {
		case inSpan == 0:
			checks = append(checks, fmt.Sprintf("check: window %q has no observed days", w.Label))
		case inSpan < w.Days():
			checks = append(checks, fmt.Sprintf("check: window %q covered %d of %d days", w.Label, inSpan, w.Days()))
		}
	}

	return checks, nil
}

// loadErrorCode extracts the structured code from a LoadError.
func loadErrorCode(err error) string {
	if le, ok := err.(*LoadError); ok {
		return le.Code
	}
	return ErrCodeGeneric
}
