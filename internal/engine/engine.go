package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roach88/bpkit/internal/config"
	"github.com/roach88/bpkit/internal/extract"
	"github.com/roach88/bpkit/internal/graph"
	"github.com/roach88/bpkit/internal/ir"
	"github.com/roach88/bpkit/internal/mapper"
	"github.com/roach88/bpkit/internal/source"
	"github.com/roach88/bpkit/internal/syncer"
	"github.com/roach88/bpkit/internal/synth"
)

// Engine decomposes decks and syncs them against persisted state.
// A project's state store must have a single writer.
type Engine struct {
	cfg      *config.Config
	registry *source.Registry
	store    syncer.Store
	syncer   *syncer.Syncer
	logger   *slog.Logger
	parallel int
	syncOpts []syncer.Option
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Components log with a "component" attribute.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithParallel extracts up to n sections concurrently.
func WithParallel(n int) Option {
	return func(e *Engine) { e.parallel = n }
}

// WithRegistry replaces the default deck loaders.
func WithRegistry(r *source.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithSyncOptions passes options through to the syncer.
func WithSyncOptions(opts ...syncer.Option) Option {
	return func(e *Engine) { e.syncOpts = append(e.syncOpts, opts...) }
}

// New creates an Engine. A nil store keeps sync state in memory.
func New(cfg *config.Config, st syncer.Store, opts ...Option) *Engine {
	if st == nil {
		st = syncer.NewMemoryStore()
	}
	e := &Engine{
		cfg:      cfg,
		registry: source.NewRegistry(),
		store:    st,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	syncOpts := append([]syncer.Option{syncer.WithLogger(e.logger.With("component", "syncer"))}, e.syncOpts...)
	e.syncer = syncer.New(st, cfg, syncOpts...)
	return e
}

// Config returns the heuristic configuration the engine runs with.
func (e *Engine) Config() *config.Config { return e.cfg }

// Discover expands a deck glob into the files a registered loader reads.
func (e *Engine) Discover(pattern string) ([]string, error) {
	return e.registry.Discover(pattern)
}

// Decomposition is the outcome of one pipeline pass over a deck.
type Decomposition struct {
	Source     string
	Content    []byte
	Document   *ir.Document
	Sections   []ir.Section
	Extraction *extract.Result
	Output     *synth.Output
	Graph      *graph.Graph

	// Diagnostics gathers every stage's diagnostics in pipeline order.
	Diagnostics []ir.Diagnostic
}

// Constitutions returns strategic then feature constitutions.
func (d *Decomposition) Constitutions() []ir.Constitution {
	return d.Output.All()
}

// Snapshot returns the decomposition in the form the syncer records.
func (d *Decomposition) Snapshot() syncer.Snapshot {
	return syncer.Snapshot{
		Source:        d.Source,
		Sections:      d.Sections,
		Extraction:    d.Extraction,
		Constitutions: d.Output.All(),
		Graph:         d.Graph,
	}
}

// DecomposeFile reads and decomposes the deck at path. Documents without
// a front matter date are stamped with the file modification time.
func (e *Engine) DecomposeFile(ctx context.Context, path string) (*Decomposition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read deck: %w", err)
	}
	var modified time.Time
	if info, err := os.Stat(path); err == nil {
		modified = info.ModTime().UTC().Truncate(time.Second)
	}
	return e.decompose(ctx, path, content, modified)
}

// Decompose runs the pipeline over content. name selects the loader by
// suffix.
func (e *Engine) Decompose(ctx context.Context, name string, content []byte) (*Decomposition, error) {
	return e.decompose(ctx, name, content, time.Time{})
}

func (e *Engine) decompose(ctx context.Context, name string, content []byte, modified time.Time) (*Decomposition, error) {
	loader, ok := e.registry.For(name)
	if !ok {
		return nil, fmt.Errorf("no loader for %s (supported: %s)", filepath.Base(name), strings.Join(e.registry.Extensions(), ", "))
	}
	content = source.NormalizeNewlines(content)
	doc, diags, err := loader.Load(name, content)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	if doc.ModifiedAt.IsZero() {
		doc.ModifiedAt = modified
	}
	return e.run(ctx, name, content, doc, diags)
}

func (e *Engine) run(ctx context.Context, name string, content []byte, doc *ir.Document, diags []ir.Diagnostic) (*Decomposition, error) {
	log := e.logger.With("component", "pipeline", "source", name)
	d := &Decomposition{Source: name, Content: content, Document: doc, Diagnostics: diags}

	sections, mapDiags := mapper.Map(doc, e.cfg)
	d.Sections = sections
	d.Diagnostics = append(d.Diagnostics, mapDiags...)
	if ir.HasErrors(mapDiags) {
		return nil, ir.NewStructuralError("unresolved canonical label collision", d.Diagnostics)
	}
	d.Diagnostics = append(d.Diagnostics, mapper.Check(sections, e.cfg)...)
	log.Debug("sections mapped", "sections", len(sections))

	res, err := extract.New(e.cfg).ExtractAll(ctx, sections, extract.Options{
		Parallel: e.parallel,
		Logger:   e.logger.With("component", "extract"),
	})
	if err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	d.Extraction = res
	d.Diagnostics = append(d.Diagnostics, res.Diagnostics...)

	g := graph.New()
	out, err := synth.New(e.cfg, e.logger.With("component", "synth")).Synthesize(synth.Input{
		Sections:   sections,
		Extraction: res,
		UpdatedAt:  doc.ModifiedAt,
	}, g)
	if err != nil {
		return nil, withDiagnostics(err, d.Diagnostics)
	}
	d.Output = out
	d.Graph = g
	d.Diagnostics = append(d.Diagnostics, out.Diagnostics...)

	log.Info("deck decomposed",
		"strategic", out.Stats.Strategic,
		"features", out.Stats.Features,
		"diagnostics", len(d.Diagnostics))
	return d, nil
}

// withDiagnostics prefixes the diagnostics of an aborting *ir.Error with
// the ones gathered before the failing stage.
func withDiagnostics(err error, earlier []ir.Diagnostic) error {
	var e *ir.Error
	if errors.As(err, &e) {
		return e.WithDiagnostics(earlier)
	}
	return err
}
