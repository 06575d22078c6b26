// Package synth builds strategic and feature constitutions from mapped
// sections and extracted candidates, and records every generated statement
// in the link graph.
//
// Output is a pure function of its inputs: identical sections, candidates
// and configuration produce byte-identical constitutions.
package synth

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/roach88/bpkit/internal/config"
	"github.com/roach88/bpkit/internal/extract"
	"github.com/roach88/bpkit/internal/graph"
	"github.com/roach88/bpkit/internal/ir"
)

// Input is everything one synthesis pass reads.
type Input struct {
	Sections   []ir.Section
	Extraction *extract.Result

	// UpdatedAt stamps every constitution. Callers pass the document's
	// modification time so reruns stay identical.
	UpdatedAt time.Time
}

// Stats summarizes a synthesis pass.
type Stats struct {
	Strategic           int `json:"strategic"`
	Features            int `json:"features"`
	Principles          int `json:"principles"`
	Stories             int `json:"stories"`
	DataEntities        int `json:"data_entities"`
	DerivedCriteria     int `json:"derived_criteria"`
	PlaceholderCriteria int `json:"placeholder_criteria"`
	NeedsReview         int `json:"needs_review"`
	Links               int `json:"links"`
}

// Output is the result of a synthesis pass.
type Output struct {
	Strategic   []ir.Constitution
	Features    []ir.Constitution
	Diagnostics []ir.Diagnostic
	Stats       Stats
}

// All returns strategic constitutions followed by feature constitutions.
func (o *Output) All() []ir.Constitution {
	out := make([]ir.Constitution, 0, len(o.Strategic)+len(o.Features))
	out = append(out, o.Strategic...)
	return append(out, o.Features...)
}

// Synthesizer renders constitutions.
type Synthesizer struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New creates a Synthesizer. A nil logger uses slog.Default().
func New(cfg *config.Config, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{cfg: cfg, logger: logger}
}

// Synthesize builds the 4 strategic and N feature constitutions, adds their
// nodes and edges to g and commits the batch. A commit failure or an
// unlinked statement aborts the pass with every diagnostic gathered so far.
func (s *Synthesizer) Synthesize(in Input, g *graph.Graph) (*Output, error) {
	out := &Output{}
	matched := matchedSections(in.Sections)

	for _, sec := range in.Sections {
		if sec.Status == ir.StatusMatched {
			g.AddNode(graph.Node{ID: sec.NodeID(), Kind: graph.NodeSection})
		}
	}

	strategic, diags := s.SynthesizeStrategic(in, matched, g)
	out.Strategic = strategic
	out.Diagnostics = append(out.Diagnostics, diags...)

	features, diags := s.SynthesizeFeatures(in, matched, g)
	out.Features = features
	out.Diagnostics = append(out.Diagnostics, diags...)

	if err := g.Commit(); err != nil {
		return nil, withDiagnostics(err, out.Diagnostics)
	}

	if unlinked := g.Unlinked(); len(unlinked) > 0 {
		for _, id := range unlinked {
			out.Diagnostics = append(out.Diagnostics, ir.Errorf(ir.CodeStatementUnlinked, ir.Location{Node: id},
				"statement has no derives-from or traces-to link"))
		}
		return nil, ir.NewStructuralError(fmt.Sprintf("%d unlinked statement(s)", len(unlinked)), out.Diagnostics)
	}

	if cycles := g.DependencyCycles(); len(cycles) > 0 {
		for _, c := range cycles {
			out.Diagnostics = append(out.Diagnostics, ir.Info(ir.CodeDependencyCycle, ir.Location{Node: c[0]},
				"features depend on each other: %v", c))
		}
	}

	out.Stats = stats(out, g)
	s.logger.Debug("synthesis complete",
		"strategic", out.Stats.Strategic,
		"features", out.Stats.Features,
		"links", out.Stats.Links)
	return out, nil
}

func withDiagnostics(err error, earlier []ir.Diagnostic) error {
	var e *ir.Error
	if errors.As(err, &e) {
		return e.WithDiagnostics(earlier)
	}
	return err
}

func matchedSections(sections []ir.Section) map[ir.Label]ir.Section {
	out := map[ir.Label]ir.Section{}
	for _, s := range sections {
		if s.Status == ir.StatusMatched {
			out[s.Label] = s
		}
	}
	return out
}

func stats(o *Output, g *graph.Graph) Stats {
	st := Stats{Strategic: len(o.Strategic), Features: len(o.Features), Links: len(g.Edges())}
	for _, c := range o.All() {
		for _, stmt := range c.Statements() {
			if stmt.NeedsReview {
				st.NeedsReview++
			}
			switch stmt.Kind {
			case ir.StatementPrinciple:
				st.Principles++
			case ir.StatementStory:
				st.Stories++
			case ir.StatementEntity:
				st.DataEntities++
			case ir.StatementCriterion:
				if stmt.NeedsReview {
					st.PlaceholderCriteria++
				} else {
					st.DerivedCriteria++
				}
			}
		}
	}
	return st
}

// link adds the statement node and its derives-from edge. Feature
// statements also trace to the strategic constitution motivating them.
func link(g *graph.Graph, c ir.Constitution, stmt ir.Statement, tracesTo string) {
	id := ir.StatementNodeID(c.ID, stmt.ID)
	g.AddNode(graph.Node{ID: id, Kind: graph.NodeStatement, Owner: c.ID})
	g.AddEdge(id, ir.SectionNodeID(stmt.Source), graph.DerivesFrom)
	if tracesTo != "" {
		g.AddEdge(id, tracesTo, graph.TracesTo)
	}
}

// idSet hands out unique statement ids within one constitution.
type idSet map[string]int

func (s idSet) unique(base string) string {
	if base == "" {
		base = "statement"
	}
	s[base]++
	if n := s[base]; n > 1 {
		return fmt.Sprintf("%s-%d", base, n)
	}
	return base
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
