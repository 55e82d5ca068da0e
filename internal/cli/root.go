package cli

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Env carries environment-variable defaults, parsed once at startup.
	Env EnvDefaults
}

// EnvDefaults are flag defaults sourced from the environment, so repeated
// invocations against the same artifact database don't need --db each time.
type EnvDefaults struct {
	Database string `env:"CEASEFIRE_DB"`
	Seed     uint64 `env:"CEASEFIRE_SEED"`
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the ceasefire CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ceasefire",
		Short: "Ceasefire impact analysis",
		Long:  "Estimates the impact of recurring community ceasefire weekends on daily shooting counts.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if err := env.Parse(&opts.Env); err != nil {
				return fmt.Errorf("parse environment defaults: %w", err)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewIngestCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewFitCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewRunsCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// databaseFlag registers the --db flag with the environment default and
// marks it required only when no default exists.
func databaseFlag(cmd *cobra.Command, opts *RootOptions, dst *string) {
	cmd.Flags().StringVar(dst, "db", "", "path to SQLite artifact database (or CEASEFIRE_DB)")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if *dst == "" {
			*dst = opts.Env.Database
		}
		if *dst == "" {
			return NewExitError(ExitCommandError, "no database given: set --db or CEASEFIRE_DB")
		}
		return nil
	}
}
