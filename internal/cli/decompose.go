package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/bpkit/internal/engine"
	"github.com/roach88/bpkit/internal/graph"
	"github.com/roach88/bpkit/internal/ir"
	"github.com/roach88/bpkit/internal/render"
	"github.com/roach88/bpkit/internal/synth"
)

// DecomposeOptions holds flags for the decompose command.
type DecomposeOptions struct {
	*RootOptions
	Write    bool
	Parallel int
}

// ConstitutionSummary is one constitution in command output.
type ConstitutionSummary struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	Version  string `json:"version"`
	Priority string `json:"priority,omitempty"`
}

// LinkReport summarizes the link graph of a decomposition.
type LinkReport struct {
	Edges    int `json:"edges"`
	Valid    int `json:"valid"`
	Dangling int `json:"dangling"`
	Stale    int `json:"stale"`

	// Unlinked are statement nodes with no traceability edge.
	Unlinked []string `json:"unlinked,omitempty"`
}

// DecomposeResult is the output of the decompose command.
type DecomposeResult struct {
	Source        string                `json:"source"`
	Stats         synth.Stats           `json:"stats"`
	Constitutions []ConstitutionSummary `json:"constitutions"`
	Links         LinkReport            `json:"links"`
	Written       []string              `json:"written,omitempty"`
	Diagnostics   []ir.Diagnostic       `json:"diagnostics"`
}

// NewDecomposeCommand creates the decompose command.
func NewDecomposeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DecomposeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "decompose <deck>",
		Short: "Decompose a deck into constitutions",
		Long: `Map a deck's sections, extract features and principles, and synthesize
4 strategic and up to 10 feature constitutions.

Nothing is recorded in the sync state; use sync for that. --write renders
the constitutions into the output directory.

Examples:
  bpkit decompose deck.md
  bpkit decompose deck.md --write -o constitutions
  bpkit decompose deck.html --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecompose(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Write, "write", "w", false, "write constitutions to the output directory")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", 0, "extract up to n sections concurrently")

	return cmd
}

func runDecompose(opts *DecomposeOptions, deck string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return fail(f, "load config", err)
	}
	eng := engine.New(cfg, nil,
		engine.WithLogger(newLogger(opts.RootOptions, cmd)),
		engine.WithParallel(opts.Parallel))

	d, err := eng.DecomposeFile(cmd.Context(), deck)
	if err != nil {
		return fail(f, "decompose "+deck, err)
	}
	f.VerboseLog("decomposed %s: %d sections", deck, len(d.Sections))

	result := summarize(d)
	if opts.Write {
		written, err := render.WriteDir(opts.Out, d.Constitutions())
		if err != nil {
			return failCode(f, ErrCodeWriteFailed, ExitCommandError, "write constitutions", err)
		}
		result.Written = written
	}

	return f.Success(result, func(w io.Writer) {
		writeDecompose(f, w, result)
	})
}

func summarize(d *engine.Decomposition) DecomposeResult {
	result := DecomposeResult{
		Source:        d.Source,
		Stats:         d.Output.Stats,
		Constitutions: summaries(d.Constitutions()),
		Diagnostics:   d.Diagnostics,
	}
	if result.Diagnostics == nil {
		result.Diagnostics = []ir.Diagnostic{}
	}

	edges := d.Graph.Edges()
	result.Links.Edges = len(edges)
	broken := d.Graph.Validate()
	for _, e := range broken {
		if e.Status == graph.StatusDangling {
			result.Links.Dangling++
		} else {
			result.Links.Stale++
		}
	}
	result.Links.Valid = len(edges) - len(broken)
	result.Links.Unlinked = d.Graph.Unlinked()
	return result
}

func summaries(cs []ir.Constitution) []ConstitutionSummary {
	out := make([]ConstitutionSummary, len(cs))
	for i, c := range cs {
		out[i] = ConstitutionSummary{
			ID:       c.ID,
			Type:     string(c.Type),
			Title:    c.Title,
			Version:  c.Version.String(),
			Priority: c.Priority,
		}
	}
	return out
}

func writeDecompose(f *OutputFormatter, w io.Writer, r DecomposeResult) {
	fmt.Fprintf(w, "%s: %d strategic, %d feature constitutions\n", r.Source, r.Stats.Strategic, r.Stats.Features)
	for _, c := range r.Constitutions {
		if c.Priority != "" {
			fmt.Fprintf(w, "  %-40s %s  %s\n", c.ID, c.Priority, c.Title)
		} else {
			fmt.Fprintf(w, "  %-40s     %s\n", c.ID, c.Title)
		}
	}
	fmt.Fprintf(w, "principles %d, stories %d, data entities %d, criteria %d derived / %d placeholder, %d need review\n",
		r.Stats.Principles, r.Stats.Stories, r.Stats.DataEntities, r.Stats.DerivedCriteria, r.Stats.PlaceholderCriteria, r.Stats.NeedsReview)
	fmt.Fprintf(w, "links %d: %d valid, %d dangling, %d stale, %d unlinked statements\n",
		r.Links.Edges, r.Links.Valid, r.Links.Dangling, r.Links.Stale, len(r.Links.Unlinked))
	if len(r.Written) > 0 {
		fmt.Fprintf(w, "wrote %d files\n", len(r.Written))
	}
	if len(r.Diagnostics) > 0 {
		fmt.Fprintln(w, "diagnostics:")
		f.writeDiagnostics(w, r.Diagnostics)
	}
}
