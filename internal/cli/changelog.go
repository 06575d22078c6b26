package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/bpkit/internal/ir"
	"github.com/roach88/bpkit/internal/syncer"
)

// ChangelogOptions holds flags for the changelog command.
type ChangelogOptions struct {
	*RootOptions
	Write bool
	Limit int
	Since int64
}

// ChangelogResult is the output of the changelog command.
type ChangelogResult struct {
	Entries []ir.ChangelogEntry `json:"entries"`

	// Head is the seq of the newest entry, 0 when the log is empty.
	Head    int64  `json:"head"`
	Written string `json:"written,omitempty"`
}

// NewChangelogCommand creates the changelog command.
func NewChangelogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ChangelogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "changelog",
		Short: "Show the sync changelog",
		Long: `List changelog entries newest first. Entries are append-only; each
names the direction, the classified change that triggered it and the
resulting constitution versions.

Examples:
  bpkit changelog
  bpkit changelog --limit 5
  bpkit changelog --since 12
  bpkit changelog --write`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChangelog(opts, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Write, "write", "w", false, "write CHANGELOG.md to the output directory")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 0, "show only the newest n entries")
	cmd.Flags().Int64Var(&opts.Since, "since", 0, "show only entries after this seq")

	return cmd
}

func runChangelog(opts *ChangelogOptions, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	p, err := openProject(opts.RootOptions, cmd)
	if err != nil {
		return fail(f, "open project", err)
	}
	defer p.Close()

	ctx := cmd.Context()
	records, err := p.store.StreamSince(ctx, syncer.StreamChangelog, opts.Since)
	if err != nil {
		return failCode(f, ErrCodeState, ExitCommandError, "read changelog", err)
	}
	entries, err := syncer.DecodeChangelog(records)
	if err != nil {
		return failCode(f, ErrCodeState, ExitCommandError, "read changelog", err)
	}
	head, err := p.store.LastSeq(ctx, syncer.StreamChangelog)
	if err != nil {
		return failCode(f, ErrCodeState, ExitCommandError, "read changelog", err)
	}

	result := ChangelogResult{Entries: newestFirst(entries, opts.Limit), Head: head}
	if opts.Write {
		if result.Written, err = p.writeChangelog(ctx); err != nil {
			return failCode(f, ErrCodeWriteFailed, ExitCommandError, "write changelog", err)
		}
	}

	return f.Success(result, func(w io.Writer) {
		if len(result.Entries) == 0 {
			fmt.Fprintln(w, "No changelog entries")
		}
		for _, e := range result.Entries {
			fmt.Fprintf(w, "%3d  %s  %-7s  %-10s %-5s  %s\n",
				e.Seq, e.Timestamp.UTC().Format("2006-01-02"), e.Direction, e.Classification, e.Bump, e.What)
		}
		if result.Written != "" {
			fmt.Fprintf(w, "wrote %s\n", result.Written)
		}
	})
}

// newestFirst reverses entries, keeping at most limit when limit > 0.
func newestFirst(entries []ir.ChangelogEntry, limit int) []ir.ChangelogEntry {
	out := make([]ir.ChangelogEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, entries[i])
	}
	return out
}
