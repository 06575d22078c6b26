package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config is an optional heuristic config file (.yaml, .yml or .cue).
	Config string

	// State is the SQLite sync state database.
	State string

	// Out is the constitution output directory.
	Out string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// Default locations, relative to the working directory.
const (
	DefaultState = ".bpkit/state.db"
	DefaultOut   = "constitutions"
)

// NewRootCommand creates the root command for the bpkit CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "bpkit",
		Short: "bpkit - business plan constitutions",
		Long: `Decompose a pitch deck into strategic and feature constitutions and
keep both in sync as either side changes.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.Config, "config", "c", "", "heuristic config file (.yaml or .cue)")
	cmd.PersistentFlags().StringVar(&opts.State, "state", DefaultState, "sync state database")
	cmd.PersistentFlags().StringVarP(&opts.Out, "out", "o", DefaultOut, "constitution directory")

	cmd.AddCommand(NewDecomposeCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewImpactCommand(opts))
	cmd.AddCommand(NewChangelogCommand(opts))
	cmd.AddCommand(NewStateCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}
