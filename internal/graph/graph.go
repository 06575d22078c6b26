// Package graph is the traceability graph linking deck sections, extracted
// entities, constitutions and their statements.
//
// Edges are added in batches: AddEdge only queues an edge, and Commit
// validates the whole batch at once, so nodes may be added in any order
// during a synthesis pass. A batch with a missing endpoint fails with a
// dangling reference error listing every such edge; a batch that closes a
// cycle of derives-from edges fails with a structural error. Cycles of
// depends-on edges are allowed.
//
// A Graph is not safe for concurrent mutation. One synthesis or sync pass
// owns it at a time.
package graph

import (
	"fmt"
	"sort"

	"github.com/roach88/bpkit/internal/ir"
)

// NodeKind is the closed set of node kinds.
type NodeKind string

const (
	NodeSection      NodeKind = "section"
	NodeEntity       NodeKind = "entity"
	NodeConstitution NodeKind = "constitution"
	NodeStatement    NodeKind = "statement"
)

// EdgeKind is the closed set of edge kinds.
type EdgeKind string

const (
	DerivesFrom EdgeKind = "derives-from"
	TracesTo    EdgeKind = "traces-to"
	DependsOn   EdgeKind = "depends-on"
)

// EdgeStatus is the review status of a committed edge.
type EdgeStatus string

const (
	StatusValid    EdgeStatus = "valid"
	StatusDangling EdgeStatus = "dangling"
	StatusStale    EdgeStatus = "stale"
)

// Node is a graph vertex.
type Node struct {
	ID   string   `json:"id"`
	Kind NodeKind `json:"kind"`

	// Owner is the constitution id for constitution and statement nodes.
	Owner string `json:"owner,omitempty"`
}

// Edge is a directed, typed link.
type Edge struct {
	From   string     `json:"from"`
	To     string     `json:"to"`
	Kind   EdgeKind   `json:"kind"`
	Status EdgeStatus `json:"status"`
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -%s-> %s", e.From, e.Kind, e.To)
}

type edgeKey struct {
	from, to string
	kind     EdgeKind
}

func (e Edge) key() edgeKey { return edgeKey{e.From, e.To, e.Kind} }

// Graph holds nodes, committed edges and the pending batch.
type Graph struct {
	nodes   map[string]Node
	edges   map[edgeKey]*Edge
	pending []Edge
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]Node),
		edges: make(map[edgeKey]*Edge),
	}
}

// AddNode inserts or replaces a node. Committed edges that were dangling
// because n was absent become valid again.
func (g *Graph) AddNode(n Node) {
	g.nodes[n.ID] = n
	for _, e := range g.edges {
		if e.Status == StatusDangling && g.has(e.From) && g.has(e.To) {
			e.Status = StatusValid
		}
	}
}

// RemoveNode deletes a node. Committed edges touching it are kept and
// marked dangling so Validate reports them.
func (g *Graph) RemoveNode(id string) {
	delete(g.nodes, id)
	for _, e := range g.edges {
		if e.From == id || e.To == id {
			e.Status = StatusDangling
		}
	}
}

// Node returns the node with id.
func (g *Graph) Node(id string) (Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

func (g *Graph) has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// AddEdge queues an edge for the next Commit. Endpoints are not checked
// until then.
func (g *Graph) AddEdge(from, to string, kind EdgeKind) {
	g.pending = append(g.pending, Edge{From: from, To: to, Kind: kind, Status: StatusValid})
}

// Pending returns the number of queued edges.
func (g *Graph) Pending() int { return len(g.pending) }

// Commit validates and applies the pending batch. On failure nothing from
// the batch is applied and the batch is discarded.
func (g *Graph) Commit() error {
	batch := g.pending
	g.pending = nil

	var dangling []ir.Diagnostic
	for _, e := range batch {
		for _, end := range []string{e.From, e.To} {
			if !g.has(end) {
				dangling = append(dangling, ir.Errorf(ir.CodeEdgeDangling, ir.Location{Node: e.From},
					"edge %s references missing node %s", e, end))
			}
		}
	}
	if len(dangling) > 0 {
		return ir.NewDanglingReference(fmt.Sprintf("%d edge endpoint(s) missing at commit", len(dangling)), dangling)
	}

	if cycles := derivationCycles(g.adjacency(DerivesFrom, batch)); len(cycles) > 0 {
		diags := make([]ir.Diagnostic, len(cycles))
		for i, c := range cycles {
			diags[i] = ir.Errorf(ir.CodeDerivationCycle, ir.Location{Node: c[0]}, "derivation cycle: %s", formatCycle(c))
		}
		return ir.NewStructuralError("derives-from edges must form a DAG", diags)
	}

	for _, e := range batch {
		if old, ok := g.edges[e.key()]; ok {
			old.Status = StatusValid
			continue
		}
		g.edges[e.key()] = &e
	}
	return nil
}

// Edges returns committed edges sorted by from, to, kind.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edges))
	for _, e := range g.edges {
		out = append(out, *e)
	}
	sortEdges(out)
	return out
}

// Nodes returns all nodes sorted by id.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Out returns committed edges leaving id, sorted.
func (g *Graph) Out(id string) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.From == id {
			out = append(out, *e)
		}
	}
	sortEdges(out)
	return out
}

// In returns committed edges entering id, sorted.
func (g *Graph) In(id string) []Edge {
	var out []Edge
	for _, e := range g.edges {
		if e.To == id {
			out = append(out, *e)
		}
	}
	sortEdges(out)
	return out
}

// Validate returns every committed edge that is dangling or stale.
// Edges whose endpoint has disappeared are reported as dangling.
func (g *Graph) Validate() []Edge {
	var broken []Edge
	for _, e := range g.Edges() {
		if !g.has(e.From) || !g.has(e.To) {
			e.Status = StatusDangling
		}
		if e.Status != StatusValid {
			broken = append(broken, e)
		}
	}
	return broken
}

// Unlinked returns statement nodes with no valid outgoing derives-from or
// traces-to edge, sorted. Every generated statement must be traceable.
func (g *Graph) Unlinked() []string {
	var out []string
	for _, n := range g.Nodes() {
		if n.Kind != NodeStatement {
			continue
		}
		linked := false
		for _, e := range g.Out(n.ID) {
			if (e.Kind == DerivesFrom || e.Kind == TracesTo) && e.Status == StatusValid && g.has(e.To) {
				linked = true
				break
			}
		}
		if !linked {
			out = append(out, n.ID)
		}
	}
	return out
}

// ImpactOf returns the ids of every node that transitively derives from or
// traces to id, sorted. id itself is excluded.
func (g *Graph) ImpactOf(id string) []string {
	reverse := map[string][]string{}
	for _, e := range g.edges {
		if e.Kind == DerivesFrom || e.Kind == TracesTo {
			reverse[e.To] = append(reverse[e.To], e.From)
		}
	}

	seen := map[string]bool{id: true}
	queue := []string{id}
	var out []string
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, from := range reverse[cur] {
			if !seen[from] {
				seen[from] = true
				out = append(out, from)
				queue = append(queue, from)
			}
		}
	}
	sort.Strings(out)
	return out
}

// MarkStale marks every committed derives-from or traces-to edge pointing
// at id as stale and returns how many changed.
func (g *Graph) MarkStale(id string) int {
	n := 0
	for _, e := range g.edges {
		if e.To == id && e.Kind != DependsOn && e.Status == StatusValid {
			e.Status = StatusStale
			n++
		}
	}
	return n
}

// DependencyCycles returns the cycles formed by depends-on edges. They are
// permitted and reported for information only.
func (g *Graph) DependencyCycles() [][]string {
	return derivationCycles(g.adjacency(DependsOn, nil))
}

// adjacency builds a successor map for one edge kind over committed edges
// plus extra.
func (g *Graph) adjacency(kind EdgeKind, extra []Edge) map[string][]string {
	adj := map[string][]string{}
	add := func(e Edge) {
		if e.Kind == kind {
			adj[e.From] = append(adj[e.From], e.To)
		}
	}
	for _, e := range g.edges {
		add(*e)
	}
	for _, e := range extra {
		add(e)
	}
	return adj
}

func sortEdges(es []Edge) {
	sort.Slice(es, func(i, j int) bool {
		a, b := es[i], es[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		return a.Kind < b.Kind
	})
}
