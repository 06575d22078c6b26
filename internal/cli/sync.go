package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/bpkit/internal/render"
	"github.com/roach88/bpkit/internal/syncer"
)

// SyncOptions holds flags for the sync command.
type SyncOptions struct {
	*RootOptions
	Reverse bool
	Apply   bool
}

// SyncResult is the output of a forward sync.
type SyncResult struct {
	*syncer.ForwardReport
	Out       string   `json:"out"`
	Written   []string `json:"written"`
	Changelog string   `json:"changelog"`
}

// ReverseResult is the output of a reverse sync.
type ReverseResult struct {
	*syncer.ReverseReport
	Applied bool     `json:"applied"`
	Written []string `json:"written,omitempty"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SyncOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "sync <deck>",
		Short: "Sync a deck and its constitutions",
		Long: `Forward sync decomposes the deck, classifies every section change,
bumps constitution versions and rewrites the output directory. The first
sync records the sync point.

--reverse proposes a deck patch for constitutions edited in the output
directory; nothing is written unless --apply is also given.

A sync is refused when the deck and a constitution both changed since the
last sync point; both diffs are reported.

Exit codes:
  0 - Synced
  1 - Refused (conflict) or aborted (structural error)
  2 - Command error

Examples:
  bpkit sync deck.md
  bpkit sync deck.md --reverse
  bpkit sync deck.md --reverse --apply
  bpkit sync deck.md -o docs/constitutions --state .bpkit/state.db`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Apply && !opts.Reverse {
				return fail(newFormatter(opts.RootOptions, cmd), "--apply requires --reverse", nil)
			}
			if opts.Reverse {
				return runReverse(opts, args[0], cmd)
			}
			return runSync(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Reverse, "reverse", "r", false, "propose a deck patch from edited constitutions")
	cmd.Flags().BoolVar(&opts.Apply, "apply", false, "apply the reverse proposal to the deck")

	return cmd
}

func runSync(opts *SyncOptions, deck string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	p, err := openProject(opts.RootOptions, cmd)
	if err != nil {
		return fail(f, "open project", err)
	}
	defer p.Close()

	result, err := syncOnce(cmd.Context(), p, deck)
	if err != nil {
		return fail(f, "sync "+deck, err)
	}

	return f.Success(result, func(w io.Writer) {
		writeSync(f, w, *result)
	})
}

func writeSync(f *OutputFormatter, w io.Writer, r SyncResult) {
	if r.Initialized {
		fmt.Fprintf(w, "Initialized sync point with %d constitutions\n", len(r.Constitutions))
	} else if len(r.Changes) == 0 {
		fmt.Fprintln(w, "Deck unchanged")
	}
	for _, ch := range r.Changes {
		line := fmt.Sprintf("  %-22s %-10s bump %s", ch.Label, ch.Classification, ch.Bump())
		if ch.RelabeledTo != "" {
			line += " -> " + string(ch.RelabeledTo)
		}
		fmt.Fprintln(w, line)
		for _, a := range ch.Added {
			fmt.Fprintf(w, "      + %s\n", a)
		}
		for _, rm := range ch.Removed {
			fmt.Fprintf(w, "      - %s\n", rm)
		}
		if f.Verbose && ch.Diff != "" {
			fmt.Fprint(w, ch.Diff)
		}
	}
	for _, e := range r.Entries {
		fmt.Fprintf(w, "changelog %d: %s\n", e.Seq, e.What)
	}
	if len(r.Retired) > 0 {
		fmt.Fprintf(w, "retired: %v\n", r.Retired)
	}
	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "skipped (edited on disk): %v\n", r.Skipped)
	}
	if len(r.Impact) > 0 {
		fmt.Fprintf(w, "impact: %v\n", r.Impact)
	}
	fmt.Fprintf(w, "wrote %d files to %s\n", len(r.Written), r.Out)
	if len(r.Diagnostics) > 0 {
		fmt.Fprintln(w, "diagnostics:")
		f.writeDiagnostics(w, r.Diagnostics)
	}
}

func runReverse(opts *SyncOptions, deck string, cmd *cobra.Command) error {
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
	rep, err := p.engine.Reverse(cmd.Context(), deck, current)
	if err != nil {
		return fail(f, "reverse sync "+deck, err)
	}

	result := ReverseResult{ReverseReport: rep}
	if opts.Apply && !rep.Empty() {
		if err := p.engine.Apply(cmd.Context(), deck, rep); err != nil {
			return fail(f, "apply proposal", err)
		}
		tracked, err := p.engine.Tracked(cmd.Context())
		if err != nil {
			return failCode(f, ErrCodeState, ExitCommandError, "read sync point", err)
		}
		if result.Written, err = render.WriteDir(p.out, tracked); err != nil {
			return failCode(f, ErrCodeWriteFailed, ExitCommandError, "write constitutions", err)
		}
		if _, err := p.writeChangelog(cmd.Context()); err != nil {
			return failCode(f, ErrCodeWriteFailed, ExitCommandError, "write changelog", err)
		}
		result.Applied = true
	}

	return f.Success(result, func(w io.Writer) {
		writeReverse(f, w, result)
	})
}

func writeReverse(f *OutputFormatter, w io.Writer, r ReverseResult) {
	if r.Empty() {
		fmt.Fprintln(w, "No constitution edits to propose")
		return
	}
	for _, pr := range r.Proposals {
		fmt.Fprintf(w, "%s: %s, %s -> %s\n", pr.ConstitutionID, pr.Classification, pr.From, pr.To)
		for _, ch := range pr.Changes {
			fmt.Fprintf(w, "  %s %s (%s)\n", ch.Op, ch.StatementID, ch.Classification)
		}
	}
	fmt.Fprintln(w)
	fmt.Fprint(w, r.Diff)
	if r.Applied {
		fmt.Fprintf(w, "applied %d proposal(s); wrote %d files\n", len(r.Proposals), len(r.Written))
	} else {
		fmt.Fprintln(w, "not applied; rerun with --apply to patch the deck")
	}
	if len(r.Diagnostics) > 0 {
		fmt.Fprintln(w, "diagnostics:")
		f.writeDiagnostics(w, r.Diagnostics)
	}
}
