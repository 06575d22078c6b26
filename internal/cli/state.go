package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// StateKey is one stored document and how often it was rewritten.
type StateKey struct {
	Key      string `json:"key"`
	Revision int64  `json:"revision"`
}

// StateStream is one append-only log stream and its newest seq.
type StateStream struct {
	Stream string `json:"stream"`
	Head   int64  `json:"head"`
}

// StateResult is the output of the state command.
type StateResult struct {
	Path    string        `json:"path"`
	Keys    []StateKey    `json:"keys"`
	Streams []StateStream `json:"streams"`
}

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state [prefix]",
		Short: "Inspect the sync state database",
		Long: `List the documents in the sync state database with their revision
counts, and every log stream with its newest seq. A prefix limits the
documents listed, e.g. "constitution/".

Examples:
  bpkit state
  bpkit state constitution/ --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			return runState(rootOpts, prefix, cmd)
		},
	}

	return cmd
}

func runState(opts *RootOptions, prefix string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	p, err := openProject(opts, cmd)
	if err != nil {
		return fail(f, "open project", err)
	}
	defer p.Close()
	ctx := cmd.Context()

	keys, err := p.store.Keys(ctx, prefix)
	if err != nil {
		return failCode(f, ErrCodeState, ExitCommandError, "list keys", err)
	}
	result := StateResult{Path: opts.State, Keys: make([]StateKey, 0, len(keys)), Streams: []StateStream{}}
	for _, k := range keys {
		rev, err := p.store.Revision(ctx, k)
		if err != nil {
			return failCode(f, ErrCodeState, ExitCommandError, "read revision", err)
		}
		result.Keys = append(result.Keys, StateKey{Key: k, Revision: rev})
	}

	streams, err := p.store.Streams(ctx)
	if err != nil {
		return failCode(f, ErrCodeState, ExitCommandError, "list streams", err)
	}
	for _, s := range streams {
		head, err := p.store.LastSeq(ctx, s)
		if err != nil {
			return failCode(f, ErrCodeState, ExitCommandError, "read stream", err)
		}
		result.Streams = append(result.Streams, StateStream{Stream: s, Head: head})
	}

	return f.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "%s\n", result.Path)
		for _, k := range result.Keys {
			fmt.Fprintf(w, "  %-50s rev %d\n", k.Key, k.Revision)
		}
		for _, s := range result.Streams {
			fmt.Fprintf(w, "  log %-46s seq %d\n", s.Stream, s.Head)
		}
	})
}
