package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewImpactCommand creates the impact command.
func NewImpactCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "impact <section|constitution|node>",
		Short: "List what a change would reach",
		Long: `Walk the link graph recorded at the last sync point and list every
constitution and statement a change to the target would affect.

The target is a canonical section label, a constitution id or a graph
node id.

Examples:
  bpkit impact pricing
  bpkit impact feature-hosts-can-list-properties
  bpkit impact product-constitution --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImpact(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runImpact(opts *RootOptions, target string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	p, err := openProject(opts, cmd)
	if err != nil {
		return fail(f, "open project", err)
	}
	defer p.Close()

	rep, err := p.engine.Impact(cmd.Context(), target)
	if err != nil {
		return fail(f, "impact", err)
	}
	return f.Success(rep, func(w io.Writer) {
		fmt.Fprintf(w, "%s (%s) affects %d constitution(s)\n", rep.Target, rep.Node, len(rep.Constitutions))
		for _, id := range rep.Constitutions {
			fmt.Fprintf(w, "  %s\n", id)
		}
		if f.Verbose {
			fmt.Fprintf(w, "nodes:\n")
			for _, n := range rep.Nodes {
				fmt.Fprintf(w, "  %s\n", n)
			}
		}
	})
}
