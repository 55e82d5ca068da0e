package cli

import (
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/ceasefire/internal/model"
	"github.com/roach88/ceasefire/internal/series"
	"github.com/roach88/ceasefire/internal/store"
)

// RunsOptions holds flags for the runs command.
type RunsOptions struct {
	*RootOptions
	Database string
	Delete   string
}

// RunRow is one run in the JSON listing.
type RunRow struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Name       string    `json:"name"`
	Span       string    `json:"span"`
	Likelihood string    `json:"likelihood"`
	Chains     int       `json:"chains"`
	Draws      int       `json:"draws"`
	Seed       uint64    `json:"seed"`
	RHatMax    float64   `json:"rhat_max"`
	Converged  bool      `json:"converged"`
}

// RunsList is the success payload of the runs command.
type RunsList struct {
	Runs []RunRow `json:"runs"`
}

func (l RunsList) String() string {
	if len(l.Runs) == 0 {
		return "no runs recorded"
	}
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tNAME\tSPAN\tMODEL\tCHAINS\tDRAWS\tR-HAT\tOK")
	for _, r := range l.Runs {
		ok := "yes"
		if !r.Converged {
			ok = "NO"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%.3f\t%s\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04"), r.Name, r.Span,
			r.Likelihood, r.Chains, r.Draws, r.RHatMax, ok)
	}
	tw.Flush()
	return strings.TrimRight(b.String(), "\n")
}

// NewRunsCommand creates the runs command.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List stored runs",
		Long: `List persisted fit runs, newest first, with their convergence state.

Pass --delete to remove a run and its draws.

Example:
  ceasefire runs --db ./city.db
  ceasefire runs --db ./city.db --delete 0198c5f2-...`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRuns(opts, cmd)
		},
	}

	databaseFlag(cmd, rootOpts, &opts.Database)
	cmd.Flags().StringVar(&opts.Delete, "delete", "", "delete the run with this id instead of listing")

	return cmd
}

func runRuns(opts *RunsOptions, cmd *cobra.Command) error {
	configureLogging(opts.Verbose)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	if opts.Delete != "" {
		if err := st.DeleteRun(cmd.Context(), opts.Delete); err != nil {
			return WrapExitError(ExitCommandError, "failed to delete run", err)
		}
		return formatter.Success(fmt.Sprintf("deleted run %s", opts.Delete))
	}

	runs, err := st.ListRuns(cmd.Context())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	list := RunsList{Runs: make([]RunRow, 0, len(runs))}
	for _, r := range runs {
		list.Runs = append(list.Runs, RunRow{
			ID:         r.ID,
			CreatedAt:  r.CreatedAt,
			Name:       r.Name,
			Span:       fmt.Sprintf("%s..%s", r.SpanStart.Format(series.DateLayout), r.SpanEnd.Format(series.DateLayout)),
			Likelihood: r.Likelihood,
			Chains:     r.Chains,
			Draws:      r.Draws,
			Seed:       r.Seed,
			RHatMax:    r.RHatMax,
			Converged:  r.RHatMax <= model.RHatWarnThreshold,
		})
	}
	return formatter.Success(list)
}
