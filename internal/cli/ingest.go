package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/ceasefire/internal/series"
	"github.com/roach88/ceasefire/internal/store"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	Database    string
	DateColumn  string
	CountColumn string
	Source      string
}

// IngestSummary is the success payload of the ingest command.
type IngestSummary struct {
	Days        int    `json:"days"`
	Total       int    `json:"total"`
	Start       string `json:"start"`
	End         string `json:"end"`
	Fingerprint string `json:"fingerprint"`
}

func (s IngestSummary) String() string {
	return fmt.Sprintf("ingested %d days (%d incidents) spanning %s .. %s\nfingerprint: %s",
		s.Days, s.Total, s.Start, s.End, s.Fingerprint)
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest <incidents.csv>",
		Short: "Load shooting records into the artifact database",
		Long: `Parse a CSV of shooting records and store them as a dense daily series.

The CSV may be incident-level (one row per shooting, counted as one each)
or pre-aggregated (pass --count-column). Rows sharing a date are summed;
days inside the observed span with no rows become explicit zeros.
Re-ingesting overwrites existing dates.

Example:
  ceasefire ingest --db ./city.db shootings.csv
  ceasefire ingest --db ./city.db --date-column incident_date --count-column n daily.csv`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, args[0], cmd)
		},
	}

	databaseFlag(cmd, rootOpts, &opts.Database)
	cmd.Flags().StringVar(&opts.DateColumn, "date-column", "date", "CSV column holding the date")
	cmd.Flags().StringVar(&opts.CountColumn, "count-column", "", "CSV column holding a pre-aggregated count (default: one per row)")
	cmd.Flags().StringVar(&opts.Source, "source", "", "label recorded with each observation (e.g. extract name)")

	return cmd
}

func runIngest(opts *IngestOptions, csvPath string, cmd *cobra.Command) error {
	configureLogging(opts.Verbose)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open CSV", err)
	}
	defer f.Close()

	ingestOpts := series.DefaultIngestOptions()
	ingestOpts.DateColumn = opts.DateColumn
	ingestOpts.CountColumn = opts.CountColumn

	slog.Info("parsing CSV", "path", csvPath)
	s, err := series.ReadCSV(f, ingestOpts)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to parse CSV", err)
	}
	slog.Info("series parsed", "days", s.Len(), "total", s.Total())

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	if err := st.UpsertObservations(cmd.Context(), s.Observations(), opts.Source); err != nil {
		return WrapExitError(ExitCommandError, "failed to write observations", err)
	}

	fp, err := s.Fingerprint()
	if err != nil {
		return WrapExitError(ExitFailure, "failed to fingerprint series", err)
	}

	return formatter.Success(IngestSummary{
		Days:        s.Len(),
		Total:       s.Total(),
		Start:       s.Start.Format(series.DateLayout),
		End:         s.End().Format(series.DateLayout),
		Fingerprint: fp,
	})
}

// configureLogging sets the default slog handler per the verbose flag.
func configureLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}
