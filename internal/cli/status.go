package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/bpkit/internal/render"
	"github.com/roach88/bpkit/internal/syncer"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Check bool
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status <deck>",
		Short: "Show the sync state of every constitution",
		Long: `Compare the deck and the output directory with the last sync point and
report each tracked constitution as in-sync, deck-ahead,
constitution-ahead or conflict. Nothing is written.

With --check the command exits 1 unless everything is in sync.

Examples:
  bpkit status deck.md
  bpkit status deck.md --check --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Check, "check", false, "exit 1 unless everything is in sync")

	return cmd
}

func runStatus(opts *StatusOptions, deck string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	p, err := openProject(opts.RootOptions, cmd)
	if err != nil {
		return fail(f, "open project", err)
	}
	defer p.Close()

	current, err := render.ReadDir(p.out)
	if err != nil {
		return fail(f, "read constitutions", err)
	}
	rep, err := p.engine.Status(cmd.Context(), deck, current)
	if err != nil {
		return fail(f, "status "+deck, err)
	}

	text := func(w io.Writer) { writeStatus(w, rep) }
	if opts.Check && !inSync(rep) {
		msg := "not in sync"
		if !rep.Initialized {
			msg = "no sync point"
		}
		if err := f.Failure(ErrCodeConflict, msg, rep, text); err != nil {
			return err
		}
		return &ExitError{Code: ExitFailure, Message: msg, Reported: true}
	}
	return f.Success(rep, text)
}

func inSync(rep *syncer.StatusReport) bool {
	return rep.Initialized && rep.Count(syncer.InSync) == len(rep.Constitutions)
}

func writeStatus(w io.Writer, rep *syncer.StatusReport) {
	if !rep.Initialized {
		fmt.Fprintln(w, "No sync point; run bpkit sync first")
		return
	}
	fmt.Fprintf(w, "%s, synced %s\n", rep.Source, rep.SyncedAt.UTC().Format("2006-01-02 15:04:05Z"))
	if len(rep.Changed) > 0 {
		fmt.Fprintf(w, "changed sections: %v\n", rep.Changed)
	}
	if rep.HeuristicsChanged {
		fmt.Fprintln(w, "config heuristics changed since the last sync")
	}
	for _, c := range rep.Constitutions {
		fmt.Fprintf(w, "  %-40s %-8s %s\n", c.ID, c.Version, c.State)
		if c.State == syncer.InSync {
			continue
		}
		if len(c.Sections) > 0 {
			fmt.Fprintf(w, "      sections: %v\n", c.Sections)
		}
		if len(c.Statements) > 0 {
			fmt.Fprintf(w, "      statements: %v\n", c.Statements)
		}
	}
	fmt.Fprintf(w, "%d in sync, %d deck ahead, %d constitution ahead, %d conflict\n",
		rep.Count(syncer.InSync), rep.Count(syncer.DeckAhead),
		rep.Count(syncer.ConstitutionAhead), rep.Count(syncer.Conflict))
}
