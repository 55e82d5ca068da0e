package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/ceasefire/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
}

// ScenarioResult is one scenario's outcome in the JSON listing.
type ScenarioResult struct {
	Name     string   `json:"name"`
	File     string   `json:"file"`
	Pass     bool     `json:"pass"`
	RHatMax  float64  `json:"rhat_max"`
	MoveRate float64  `json:"move_rate"`
	Errors   []string `json:"errors,omitempty"`
}

// TestSummary is the success payload of the test command.
type TestSummary struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
}

func (s TestSummary) String() string {
	var b strings.Builder
	for _, r := range s.Scenarios {
		mark := "PASS"
		if !r.Pass {
			mark = "FAIL"
		}
		fmt.Fprintf(&b, "%s  %s (R-hat %.3f, move %.2f)\n", mark, r.Name, r.RHatMax, r.MoveRate)
		for _, e := range r.Errors {
			for _, line := range strings.Split(e, "\n") {
				fmt.Fprintf(&b, "      %s\n", line)
			}
		}
	}
	fmt.Fprintf(&b, "%d passed, %d failed", s.Passed, s.Failed)
	return b.String()
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenario-dir-or-file>",
		Short: "Run model check scenarios",
		Long: `Run YAML model check scenarios: each generates a synthetic series with
known effects, fits the model against an in-memory database, and asserts
the posterior recovers what was planted.

A directory argument runs every *.yaml and *.yml file in it.

Example:
  ceasefire test ./scenarios
  ceasefire test ./scenarios/weekend-effect.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTest(opts, args[0], cmd)
		},
	}

	return cmd
}

func runTest(opts *TestOptions, path string, cmd *cobra.Command) error {
	configureLogging(opts.Verbose)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	files, err := collectScenarioFiles(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to collect scenarios", err)
	}
	if len(files) == 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("no scenario files found in %s", path))
	}

	summary := TestSummary{}
	for _, file := range files {
		scenario, err := harness.LoadScenario(file)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("failed to load %s", file), err)
		}

		formatter.VerboseLog("running scenario %q from %s", scenario.Name, file)
		result, err := harness.Run(cmd.Context(), scenario)
		if err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("scenario %q failed to execute", scenario.Name), err)
		}

		summary.Scenarios = append(summary.Scenarios, ScenarioResult{
			Name:     scenario.Name,
			File:     file,
			Pass:     result.Pass,
			RHatMax:  result.Diagnostics.MaxRHat(),
			MoveRate: result.MoveRate,
			Errors:   result.Errors,
		})
		if result.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}

	if err := formatter.Success(summary); err != nil {
		return err
	}
	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}
	return nil
}

// collectScenarioFiles resolves the argument to a sorted list of YAML
// scenario files.
func collectScenarioFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
