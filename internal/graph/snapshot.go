package graph

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/bpkit/internal/ir"
)

// Snapshot is the serializable form of a committed graph.
type Snapshot struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Snapshot returns the committed nodes and edges in sorted order.
func (g *Graph) Snapshot() Snapshot {
	return Snapshot{Nodes: g.Nodes(), Edges: g.Edges()}
}

// CanonicalValue implements ir.Canonicaler.
func (s Snapshot) CanonicalValue() any {
	nodes := make([]any, len(s.Nodes))
	for i, n := range s.Nodes {
		nodes[i] = map[string]any{"id": n.ID, "kind": string(n.Kind), "owner": n.Owner}
	}
	edges := make([]any, len(s.Edges))
	for i, e := range s.Edges {
		edges[i] = map[string]any{"from": e.From, "to": e.To, "kind": string(e.Kind), "status": string(e.Status)}
	}
	return map[string]any{"nodes": nodes, "edges": edges}
}

// MarshalCanonical encodes the snapshot as canonical JSON.
func (s Snapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s)
}

// Restore rebuilds a graph from a snapshot. Edge statuses are kept as
// recorded.
func Restore(s Snapshot) *Graph {
	g := New()
	for _, n := range s.Nodes {
		g.nodes[n.ID] = n
	}
	for _, e := range s.Edges {
		g.edges[e.key()] = &e
	}
	return g
}

// DecodeSnapshot parses JSON produced by MarshalCanonical.
func DecodeSnapshot(data []byte) (*Graph, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode graph snapshot: %w", err)
	}
	return Restore(s), nil
}

// Report summarizes edge health.
type Report struct {
	Nodes    int              `json:"nodes"`
	Edges    int              `json:"edges"`
	Valid    int              `json:"valid"`
	Dangling int              `json:"dangling"`
	Stale    int              `json:"stale"`
	ByKind   map[EdgeKind]int `json:"by_kind"`
	Unlinked []string         `json:"unlinked,omitempty"`
}

// Report counts nodes and edges by status and kind.
func (g *Graph) Report() Report {
	r := Report{Nodes: len(g.nodes), Edges: len(g.edges), ByKind: map[EdgeKind]int{}}
	broken := map[edgeKey]EdgeStatus{}
	for _, e := range g.Validate() {
		broken[e.key()] = e.Status
	}
	for _, e := range g.edges {
		r.ByKind[e.Kind]++
		switch broken[e.key()] {
		case StatusDangling:
			r.Dangling++
		case StatusStale:
			r.Stale++
		default:
			r.Valid++
		}
	}
	r.Unlinked = g.Unlinked()
	return r
}
