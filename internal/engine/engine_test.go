package engine

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bpkit/internal/config"
	"github.com/roach88/bpkit/internal/ir"
	"github.com/roach88/bpkit/internal/render"
	"github.com/roach88/bpkit/internal/source"
	"github.com/roach88/bpkit/internal/store"
	"github.com/roach88/bpkit/internal/syncer"
	"github.com/roach88/bpkit/internal/testutil"
)

const hostsKey = "feature:hosts pay 10 per month for"

// project is a deck, an output directory and a SQLite state store in a
// temporary directory.
type project struct {
	dir    string
	deck   string
	out    string
	dbPath string
	store  *store.Store
	engine *Engine
}

func newProject(t *testing.T, cfg *config.Config) *project {
	t.Helper()
	dir := t.TempDir()
	content, err := os.ReadFile(filepath.Join("testdata", "stayhub.md"))
	require.NoError(t, err)

	p := &project{
		dir:    dir,
		deck:   filepath.Join(dir, "deck.md"),
		out:    filepath.Join(dir, "constitutions"),
		dbPath: filepath.Join(dir, "state.db"),
	}
	require.NoError(t, os.WriteFile(p.deck, content, 0o644))
	p.open(t, cfg)
	return p
}

func (p *project) open(t *testing.T, cfg *config.Config) {
	t.Helper()
	st, err := store.Open(p.dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	p.store = st
	p.engine = New(cfg, st, WithSyncOptions(
		syncer.WithClock(testutil.NewDeterministicClock(testutil.Epoch, 0).Now),
		syncer.WithIDs(testutil.NewSequentialIDs("cl").Next),
	))
}

// sync runs a forward sync and writes the result like the CLI does.
func (p *project) sync(t *testing.T) *syncer.ForwardReport {
	t.Helper()
	current, err := render.ReadDir(p.out)
	require.NoError(t, err)
	rep, _, err := p.engine.Sync(context.Background(), p.deck, current)
	require.NoError(t, err)
	_, err = render.WriteDir(p.out, rep.Constitutions)
	require.NoError(t, err)
	return rep
}

func (p *project) current(t *testing.T) []ir.Constitution {
	t.Helper()
	cs, err := render.ReadDir(p.out)
	require.NoError(t, err)
	return cs
}

func (p *project) edit(t *testing.T, file, old, new string) {
	t.Helper()
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	require.Contains(t, string(data), old)
	require.NoError(t, os.WriteFile(file, []byte(strings.Replace(string(data), old, new, 1)), 0o644))
}

func byID(cs []ir.Constitution, id string) (ir.Constitution, bool) {
	i := slices.IndexFunc(cs, func(c ir.Constitution) bool { return c.ID == id })
	if i < 0 {
		return ir.Constitution{}, false
	}
	return cs[i], true
}

func TestDecompose(t *testing.T) {
	e := New(config.Default(), nil)
	content, err := os.ReadFile(filepath.Join("testdata", "stayhub.md"))
	require.NoError(t, err)

	first, err := e.Decompose(context.Background(), "stayhub.md", content)
	require.NoError(t, err)
	second, err := e.Decompose(context.Background(), "stayhub.md", content)
	require.NoError(t, err)

	assert.Len(t, first.Output.Strategic, 4)
	assert.Len(t, first.Output.Features, 7)
	assert.False(t, ir.HasErrors(first.Diagnostics))

	a, err := ir.MarshalCanonical(map[string]any{"constitutions": first.Constitutions(), "graph": first.Graph.Snapshot()})
	require.NoError(t, err)
	b, err := ir.MarshalCanonical(map[string]any{"constitutions": second.Constitutions(), "graph": second.Graph.Snapshot()})
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))

	snap := first.Snapshot()
	assert.Equal(t, "stayhub.md", snap.Source)
	assert.Len(t, snap.Constitutions, 11)
}

func TestDecompose_LabelCollisionAborts(t *testing.T) {
	cfg := config.Default()
	cfg.DuplicatePolicy = config.DuplicateReject
	e := New(cfg, nil)

	deck := "# Deck\n\n## The Problem\n\nTravelers waste days.\n\n## Problem\n\nHosts lose bookings.\n"
	_, err := e.Decompose(context.Background(), "deck.md", []byte(deck))
	require.Error(t, err)
	assert.True(t, ir.IsStructural(err))
	assert.NotEmpty(t, ir.FilterCode(ir.DiagnosticsOf(err), ir.CodeLabelCollision))
}

func TestDecompose_UnknownFormat(t *testing.T) {
	_, err := New(config.Default(), nil).Decompose(context.Background(), "deck.docx", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no loader for deck.docx")
}

func TestSync_Lifecycle(t *testing.T) {
	ctx := context.Background()
	p := newProject(t, config.Default())

	rep := p.sync(t)
	require.True(t, rep.Initialized)
	assert.Len(t, rep.Constitutions, 11)

	status, err := p.engine.Status(ctx, p.deck, p.current(t))
	require.NoError(t, err)
	assert.Equal(t, 11, status.Count(syncer.InSync))

	hosts := slices.IndexFunc(rep.Constitutions, func(c ir.Constitution) bool { return c.EntityKey == hostsKey })
	require.GreaterOrEqual(t, hosts, 0)
	hostsID := rep.Constitutions[hosts].ID

	p.edit(t, p.deck, "- Hosts pay $10 per month for premium listing tools\n", "")
	status, err = p.engine.Status(ctx, p.deck, p.current(t))
	require.NoError(t, err)
	assert.Equal(t, []ir.Label{ir.LabelBusinessModel}, status.Changed)

	rep = p.sync(t)
	business, ok := byID(rep.Constitutions, ir.StrategicID(ir.StrategicBusiness))
	require.True(t, ok)
	assert.Equal(t, "2.0.0", business.Version.String())
	assert.Contains(t, rep.Retired, hostsID)
	assert.NoFileExists(t, filepath.Join(p.out, render.DirFeatures, hostsID+".md"))

	// State survives reopening the database.
	p.store.Close()
	p.open(t, config.Default())
	entries, err := p.engine.Changelog(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[1].Seq)
	assert.Equal(t, ir.BumpMajor, entries[1].Bump)

	tracked, err := p.engine.Tracked(ctx)
	require.NoError(t, err)
	_, ok = byID(tracked, hostsID)
	assert.False(t, ok, "retired feature still tracked")
}

func TestReverse_Apply(t *testing.T) {
	ctx := context.Background()
	p := newProject(t, config.Default())
	p.sync(t)

	product := filepath.Join(p.out, render.DirStrategic, ir.StrategicID(ir.StrategicProduct)+".md")
	p.edit(t, product,
		"Guests must never pay for a listing that does not exist.",
		"Guests must never pay for a listing that is not verified within 24 hours.")

	rep, err := p.engine.Reverse(ctx, p.deck, p.current(t))
	require.NoError(t, err)
	require.Len(t, rep.Proposals, 1)
	assert.Equal(t, ir.StrategicID(ir.StrategicProduct), rep.Proposals[0].ConstitutionID)
	assert.Equal(t, ir.ClassClarifying, rep.Proposals[0].Classification)
	assert.Equal(t, "1.0.1", rep.Proposals[0].To)

	// Proposing writes nothing.
	deck, err := os.ReadFile(p.deck)
	require.NoError(t, err)
	assert.NotContains(t, string(deck), "24 hours")

	require.NoError(t, p.engine.Apply(ctx, p.deck, rep))
	deck, err = os.ReadFile(p.deck)
	require.NoError(t, err)
	assert.Contains(t, string(deck), "Guests must never pay for a listing that is not verified within 24 hours.")

	status, err := p.engine.Status(ctx, p.deck, p.current(t))
	require.NoError(t, err)
	for _, c := range status.Constitutions {
		if c.ID == ir.StrategicID(ir.StrategicProduct) {
			assert.Equal(t, syncer.InSync, c.State)
			assert.Equal(t, "1.0.1", c.Version)
		}
	}
}

func TestReverse_RefusesHTMLDeck(t *testing.T) {
	p := newProject(t, config.Default())
	html := filepath.Join(p.dir, "deck.html")
	require.NoError(t, os.WriteFile(html, []byte(`<h1>Stayhub</h1>
<h2>The Problem</h2>
<p>Guests must never pay for a listing that does not exist.</p>
<h2>Solution</h2>
<ul><li>Instant booking</li><li>Search listings by price</li></ul>`), 0o644))

	_, err := p.engine.Reverse(context.Background(), html, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, source.ErrNotPatchable)
}

func TestImpact(t *testing.T) {
	ctx := context.Background()
	p := newProject(t, config.Default())

	_, err := p.engine.Impact(ctx, "business-model")
	assert.ErrorIs(t, err, syncer.ErrNotInitialized)

	rep := p.sync(t)
	hosts := slices.IndexFunc(rep.Constitutions, func(c ir.Constitution) bool { return c.EntityKey == hostsKey })
	require.GreaterOrEqual(t, hosts, 0)

	impact, err := p.engine.Impact(ctx, "business-model")
	require.NoError(t, err)
	assert.Equal(t, ir.SectionNodeID(ir.LabelBusinessModel), impact.Node)
	assert.Contains(t, impact.Constitutions, ir.StrategicID(ir.StrategicBusiness))
	assert.Contains(t, impact.Constitutions, rep.Constitutions[hosts].ID)

	impact, err = p.engine.Impact(ctx, ir.StrategicID(ir.StrategicProduct))
	require.NoError(t, err)
	assert.Equal(t, ir.ConstitutionNodeID(ir.StrategicID(ir.StrategicProduct)), impact.Node)
	assert.NotContains(t, impact.Constitutions, ir.StrategicID(ir.StrategicProduct))

	_, err = p.engine.Impact(ctx, "nothing-here")
	assert.Error(t, err)
}
