package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bpkit/internal/ir"
)

// deck builds section -> entity -> constitution -> statement chains.
func deck(t *testing.T) *Graph {
	t.Helper()
	g := New()
	// Edges first: nodes may arrive in any order before Commit.
	g.AddEdge("entity:feature:pricing", "section:business-model", DerivesFrom)
	g.AddEdge("constitution:business-constitution", "section:business-model", DerivesFrom)
	g.AddEdge("statement:business-constitution/p1", "section:business-model", DerivesFrom)
	g.AddEdge("constitution:feature-001-pricing", "entity:feature:pricing", DerivesFrom)
	g.AddEdge("statement:feature-001-pricing/us1", "section:business-model", DerivesFrom)
	g.AddEdge("statement:feature-001-pricing/us1", "statement:business-constitution/p1", TracesTo)
	g.AddEdge("constitution:feature-002-search", "section:solution", DerivesFrom)

	for _, n := range []Node{
		{ID: "section:business-model", Kind: NodeSection},
		{ID: "section:solution", Kind: NodeSection},
		{ID: "entity:feature:pricing", Kind: NodeEntity},
		{ID: "constitution:business-constitution", Kind: NodeConstitution, Owner: "business-constitution"},
		{ID: "statement:business-constitution/p1", Kind: NodeStatement, Owner: "business-constitution"},
		{ID: "constitution:feature-001-pricing", Kind: NodeConstitution, Owner: "feature-001-pricing"},
		{ID: "statement:feature-001-pricing/us1", Kind: NodeStatement, Owner: "feature-001-pricing"},
		{ID: "constitution:feature-002-search", Kind: NodeConstitution, Owner: "feature-002-search"},
	} {
		g.AddNode(n)
	}
	require.NoError(t, g.Commit())
	return g
}

func TestCommit_OutOfOrderNodes(t *testing.T) {
	g := deck(t)
	assert.Len(t, g.Edges(), 7)
	assert.Zero(t, g.Pending())
	assert.Empty(t, g.Validate())
	assert.Empty(t, g.Unlinked())
}

func TestCommit_DanglingReference(t *testing.T) {
	g := deck(t)
	g.AddEdge("statement:x/p1", "section:team", DerivesFrom)
	g.AddEdge("constitution:business-constitution", "section:vision", DerivesFrom)

	err := g.Commit()
	require.Error(t, err)
	assert.True(t, ir.IsDangling(err))

	diags := ir.DiagnosticsOf(err)
	require.Len(t, diags, 3, "every missing endpoint is reported")
	for _, d := range diags {
		assert.Equal(t, ir.CodeEdgeDangling, d.Code)
		assert.Equal(t, ir.SeverityError, d.Severity)
	}

	assert.Len(t, g.Edges(), 7, "failed batch is not applied")
	assert.Zero(t, g.Pending())
}

func TestCommit_DerivationCycleRejected(t *testing.T) {
	g := New()
	for _, id := range []string{"a", "b", "c"} {
		g.AddNode(Node{ID: id, Kind: NodeStatement})
	}
	g.AddEdge("a", "b", DerivesFrom)
	g.AddEdge("b", "c", DerivesFrom)
	require.NoError(t, g.Commit())

	g.AddEdge("c", "a", DerivesFrom)
	err := g.Commit()
	require.Error(t, err)
	assert.True(t, ir.IsStructural(err))

	diags := ir.DiagnosticsOf(err)
	require.Len(t, diags, 1)
	assert.Equal(t, ir.CodeDerivationCycle, diags[0].Code)
	assert.Contains(t, diags[0].Message, "a -> b -> c -> a")
	assert.Len(t, g.Edges(), 2)
}

func TestCommit_SelfDerivationRejected(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: "a", Kind: NodeStatement})
	g.AddEdge("a", "a", DerivesFrom)
	assert.True(t, ir.IsStructural(g.Commit()))
}

func TestCommit_DependencyCyclesAllowed(t *testing.T) {
	g := New()
	g.AddNode(Node{ID: "constitution:a", Kind: NodeConstitution})
	g.AddNode(Node{ID: "constitution:b", Kind: NodeConstitution})
	g.AddEdge("constitution:a", "constitution:b", DependsOn)
	g.AddEdge("constitution:b", "constitution:a", DependsOn)

	require.NoError(t, g.Commit())
	assert.Equal(t, [][]string{{"constitution:a", "constitution:b"}}, g.DependencyCycles())
}

func TestCommit_DuplicateEdgeIsIdempotent(t *testing.T) {
	g := deck(t)
	g.AddEdge("constitution:feature-002-search", "section:solution", DerivesFrom)
	require.NoError(t, g.Commit())
	assert.Len(t, g.Edges(), 7)
}

func TestImpactOf(t *testing.T) {
	g := deck(t)

	assert.Equal(t, []string{
		"constitution:business-constitution",
		"constitution:feature-001-pricing",
		"entity:feature:pricing",
		"statement:business-constitution/p1",
		"statement:feature-001-pricing/us1",
	}, g.ImpactOf("section:business-model"))

	assert.Equal(t, []string{"statement:feature-001-pricing/us1"}, g.ImpactOf("statement:business-constitution/p1"))
	assert.Empty(t, g.ImpactOf("constitution:feature-002-search"))
}

func TestImpactOf_IgnoresDependsOn(t *testing.T) {
	g := deck(t)
	g.AddEdge("constitution:feature-002-search", "constitution:feature-001-pricing", DependsOn)
	require.NoError(t, g.Commit())

	assert.NotContains(t, g.ImpactOf("entity:feature:pricing"), "constitution:feature-002-search")
}

func TestRemoveNode_MakesEdgesDangling(t *testing.T) {
	g := deck(t)
	g.RemoveNode("entity:feature:pricing")

	broken := g.Validate()
	require.Len(t, broken, 2)
	for _, e := range broken {
		assert.Equal(t, StatusDangling, e.Status)
	}

	g.AddNode(Node{ID: "entity:feature:pricing", Kind: NodeEntity})
	assert.Empty(t, g.Validate())
}

func TestMarkStale(t *testing.T) {
	g := deck(t)
	assert.Equal(t, 4, g.MarkStale("section:business-model"))
	assert.Zero(t, g.MarkStale("section:business-model"), "already stale")

	broken := g.Validate()
	assert.Len(t, broken, 4)
	for _, e := range broken {
		assert.Equal(t, StatusStale, e.Status)
	}
}

func TestUnlinked(t *testing.T) {
	g := deck(t)
	g.AddNode(Node{ID: "statement:market-constitution/p1", Kind: NodeStatement, Owner: "market-constitution"})
	assert.Equal(t, []string{"statement:market-constitution/p1"}, g.Unlinked())
}

func TestSnapshotRoundTrip(t *testing.T) {
	g := deck(t)
	g.MarkStale("section:solution")

	data, err := g.Snapshot().MarshalCanonical()
	require.NoError(t, err)

	restored, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, g.Snapshot(), restored.Snapshot())

	again, err := restored.Snapshot().MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, string(data), string(again))
}

func TestReport(t *testing.T) {
	g := deck(t)
	g.MarkStale("section:solution")
	g.RemoveNode("entity:feature:pricing")

	r := g.Report()
	assert.Equal(t, 7, r.Nodes)
	assert.Equal(t, 7, r.Edges)
	assert.Equal(t, 1, r.Stale)
	assert.Equal(t, 2, r.Dangling)
	assert.Equal(t, 4, r.Valid)
	assert.Equal(t, 6, r.ByKind[DerivesFrom])
	assert.Equal(t, 1, r.ByKind[TracesTo])
}
