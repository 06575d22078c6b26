package engine

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/roach88/bpkit/internal/graph"
	"github.com/roach88/bpkit/internal/ir"
	"github.com/roach88/bpkit/internal/source"
	"github.com/roach88/bpkit/internal/syncer"
)

// Sync decomposes the deck at path and forward syncs it. current holds the
// constitutions as they are on disk; the first sync records the sync point.
func (e *Engine) Sync(ctx context.Context, path string, current []ir.Constitution) (*syncer.ForwardReport, *Decomposition, error) {
	d, err := e.DecomposeFile(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	rep, err := e.syncer.ForwardSync(ctx, d.Snapshot(), current)
	if err != nil {
		return nil, d, err
	}
	return rep, d, nil
}

// Status reports the sync state of every tracked constitution.
func (e *Engine) Status(ctx context.Context, path string, current []ir.Constitution) (*syncer.StatusReport, error) {
	d, err := e.DecomposeFile(ctx, path)
	if err != nil {
		return nil, err
	}
	return e.syncer.Status(ctx, d.Sections, current)
}

// Reverse proposes a deck patch for constitutions edited on disk.
// Nothing is written. Decks whose loader cannot map blocks back to raw
// bytes (HTML, text runs) are refused with source.ErrNotPatchable.
func (e *Engine) Reverse(ctx context.Context, path string, current []ir.Constitution) (*syncer.ReverseReport, error) {
	d, err := e.DecomposeFile(ctx, path)
	if err != nil {
		return nil, err
	}
	if !d.Document.Patchable {
		return nil, fmt.Errorf("reverse sync %s: %w", path, source.ErrNotPatchable)
	}
	return e.syncer.ReverseSync(ctx, d.Content, d.Sections, current)
}

// Apply applies a reverse-sync proposal: the patched deck is written to
// path and the edited constitutions become the new sync point.
func (e *Engine) Apply(ctx context.Context, path string, rep *syncer.ReverseReport) error {
	if rep.Empty() {
		return nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read deck: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat deck: %w", err)
	}

	decompose := func(patched []byte) (syncer.Snapshot, error) {
		d, err := e.Decompose(ctx, path, patched)
		if err != nil {
			return syncer.Snapshot{}, err
		}
		return d.Snapshot(), nil
	}
	patched, err := e.syncer.Apply(ctx, rep, source.NormalizeNewlines(content), decompose)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, patched, info.Mode().Perm()); err != nil {
		return fmt.Errorf("write deck: %w", err)
	}
	e.logger.Info("deck patched", "component", "engine", "path", path, "proposals", len(rep.Proposals))
	return nil
}

// Changelog returns the changelog in append order.
func (e *Engine) Changelog(ctx context.Context) ([]ir.ChangelogEntry, error) {
	return e.syncer.Changelog(ctx)
}

// Tracked returns the constitutions recorded at the last sync point.
func (e *Engine) Tracked(ctx context.Context) ([]ir.Constitution, error) {
	return e.syncer.Constitutions(ctx)
}

// ImpactReport lists what a change to one section, constitution or
// statement reaches through the recorded link graph.
type ImpactReport struct {
	Target string `json:"target"`
	Node   string `json:"node"`

	// Constitutions are the ids of every affected constitution, sorted.
	Constitutions []string `json:"constitutions"`

	// Nodes are the affected graph nodes, sorted.
	Nodes []string `json:"nodes"`
}

// Impact resolves target (a canonical section label, a constitution id or
// a raw node id) in the graph of the last sync point.
func (e *Engine) Impact(ctx context.Context, target string) (*ImpactReport, error) {
	g, err := e.syncer.Graph(ctx)
	if err != nil {
		return nil, err
	}
	return impactOf(g, target)
}

func impactOf(g *graph.Graph, target string) (*ImpactReport, error) {
	rep := &ImpactReport{Target: target}
	owners := map[string]bool{}

	label := ir.Label(target)
	switch {
	case label.IsCanonical():
		rep.Node = ir.SectionNodeID(label)
		for _, k := range ir.StrategicFor(label) {
			owners[ir.StrategicID(k)] = true
		}
	default:
		if _, ok := g.Node(ir.ConstitutionNodeID(target)); ok {
			rep.Node = ir.ConstitutionNodeID(target)
		} else if _, ok := g.Node(target); ok {
			rep.Node = target
		} else {
			return nil, fmt.Errorf("impact: %q is not a section label, constitution id or graph node", target)
		}
	}

	rep.Nodes = g.ImpactOf(rep.Node)
	for _, id := range rep.Nodes {
		if n, ok := g.Node(id); ok && n.Owner != "" && n.Owner != target {
			owners[n.Owner] = true
		}
	}
	rep.Constitutions = make([]string, 0, len(owners))
	for id := range owners {
		rep.Constitutions = append(rep.Constitutions, id)
	}
	sort.Strings(rep.Constitutions)
	if rep.Nodes == nil {
		rep.Nodes = []string{}
	}
	return rep, nil
}
