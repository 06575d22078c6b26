package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/bpkit/internal/config"
	"github.com/roach88/bpkit/internal/extract"
	"github.com/roach88/bpkit/internal/graph"
	"github.com/roach88/bpkit/internal/ir"
)

// ErrNotInitialized is returned when an operation needs a sync point and
// none has been recorded yet.
var ErrNotInitialized = errors.New("no sync point recorded: decompose the deck first")

// Snapshot is the outcome of one decomposition pass over the deck.
type Snapshot struct {
	Source        string
	Sections      []ir.Section
	Extraction    *extract.Result
	Constitutions []ir.Constitution
	Graph         *graph.Graph
}

// Batcher is implemented by stores that can apply several writes
// atomically.
type Batcher interface {
	Batch(ctx context.Context, fn func(Store) error) error
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithClock sets the timestamp source for changelog entries.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// WithIDs sets the changelog entry id generator.
func WithIDs(next func() string) Option {
	return func(s *Syncer) { s.newID = next }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// Syncer runs forward and reverse sync against persisted sync state.
// A project's state must have a single writer.
type Syncer struct {
	store    Store
	cfg      *config.Config
	classify *classifier
	now      func() time.Time
	newID    func() string
	logger   *slog.Logger
}

// New creates a Syncer over store.
func New(store Store, cfg *config.Config, opts ...Option) *Syncer {
	s := &Syncer{
		store:    store,
		cfg:      cfg,
		classify: newClassifier(cfg),
		now:      time.Now,
		newID:    func() string { return uuid.Must(uuid.NewV7()).String() },
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ConstitutionStatus is one constitution's sync state.
type ConstitutionStatus struct {
	ID      string `json:"id"`
	State   State  `json:"state"`
	Version string `json:"version"`

	// Sections are the tracked sections changed since the sync point.
	Sections []ir.Label `json:"sections,omitempty"`

	// Statements are the statement ids edited since the sync point.
	Statements []string `json:"statements,omitempty"`
}

// StatusReport describes every tracked constitution.
type StatusReport struct {
	Initialized       bool                 `json:"initialized"`
	Source            string               `json:"source,omitempty"`
	SyncedAt          time.Time            `json:"synced_at"`
	Changed           []ir.Label           `json:"changed,omitempty"`
	HeuristicsChanged bool                 `json:"heuristics_changed,omitempty"`
	Constitutions     []ConstitutionStatus `json:"constitutions"`
}

// Count returns the number of constitutions in state st.
func (r *StatusReport) Count(st State) int {
	n := 0
	for _, c := range r.Constitutions {
		if c.State == st {
			n++
		}
	}
	return n
}

// assessment is one tracked constitution compared against the deck and its
// on-disk form.
type assessment struct {
	state      *ConstitutionState
	current    *ir.Constitution
	sections   []ir.Label
	statements []string
	status     State
}

func assess(b *baseline, next map[ir.Label]SectionRecord, current []ir.Constitution) []assessment {
	byIdentity := map[string]*ir.Constitution{}
	for i := range current {
		byIdentity[identity(current[i])] = &current[i]
	}

	var out []assessment
	for _, cs := range b.active() {
		a := assessment{state: cs, current: byIdentity[cs.Identity]}
		for _, l := range ir.CanonicalLabels {
			recorded, tracked := cs.SectionHashes[l]
			if tracked && next[l].Hash != recorded {
				a.sections = append(a.sections, l)
			}
		}
		if a.current != nil {
			a.statements = editedStatements(cs.StatementHashes, statementHashes(*a.current))
		}
		switch {
		case len(a.sections) > 0 && len(a.statements) > 0:
			a.status = Conflict
		case len(a.sections) > 0:
			a.status = DeckAhead
		case len(a.statements) > 0:
			a.status = ConstitutionAhead
		default:
			a.status = InSync
		}
		out = append(out, a)
	}
	return out
}

func editedStatements(recorded, current map[string]string) []string {
	var ids []string
	for id, h := range recorded {
		if current[id] != h {
			ids = append(ids, id)
		}
	}
	for id := range current {
		if _, ok := recorded[id]; !ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// conflicts returns the details of every conflicting assessment.
func conflicts(assessed []assessment, deck *DeckState, next map[ir.Label]SectionRecord) []ConflictDetail {
	var out []ConflictDetail
	for _, a := range assessed {
		if a.status != Conflict {
			continue
		}
		var deckDiff, constDiff strings.Builder
		for _, l := range a.sections {
			fmt.Fprintf(&deckDiff, "## %s\n%s", l, lineDiff(deck.Sections[l].Text, next[l].Text))
		}
		old := a.state.Constitution
		for _, id := range a.statements {
			before, _ := old.Statement(id)
			after, _ := a.current.Statement(id)
			fmt.Fprintf(&constDiff, "## %s\n%s", id, lineDiff(before.Text, after.Text))
		}
		out = append(out, ConflictDetail{
			ConstitutionID:   old.ID,
			DeckDiff:         deckDiff.String(),
			ConstitutionDiff: constDiff.String(),
			Sections:         a.sections,
			Statements:       a.statements,
		})
	}
	return out
}

// Status reports the sync state of every tracked constitution against the
// given deck sections and on-disk constitutions.
func (s *Syncer) Status(ctx context.Context, sections []ir.Section, current []ir.Constitution) (*StatusReport, error) {
	b, err := loadBaseline(ctx, s.store)
	if err != nil {
		return nil, err
	}
	rep := &StatusReport{Constitutions: []ConstitutionStatus{}}
	if !b.initialized() {
		return rep, nil
	}
	rep.Initialized = true
	rep.Source = b.deck.Source
	rep.SyncedAt = b.deck.SyncedAt
	rep.HeuristicsChanged = s.heuristicsChanged(b.deck)

	next := deckRecords(sections, nil)
	for _, l := range ir.CanonicalLabels {
		before, had := b.deck.Sections[l]
		after, has := next[l]
		if had != has || before.Hash != after.Hash {
			rep.Changed = append(rep.Changed, l)
		}
	}

	for _, a := range assess(b, next, current) {
		rep.Constitutions = append(rep.Constitutions, ConstitutionStatus{
			ID:         a.state.Constitution.ID,
			State:      a.status,
			Version:    a.state.Metadata.Current.String(),
			Sections:   a.sections,
			Statements: a.statements,
		})
	}
	return rep, nil
}

func (s *Syncer) heuristicsChanged(deck *DeckState) bool {
	fp, err := s.cfg.Fingerprint()
	return err == nil && deck.Fingerprint != "" && fp != deck.Fingerprint
}

// ForwardReport is the outcome of a forward sync.
type ForwardReport struct {
	// Initialized is set when this pass recorded the first sync point.
	Initialized bool `json:"initialized,omitempty"`

	Changes []SectionChange `json:"changes"`

	// Constitutions is the resulting artifact set with versions applied.
	Constitutions []ir.Constitution `json:"constitutions"`

	// Retired lists ids of feature constitutions whose entity disappeared.
	Retired []string `json:"retired,omitempty"`

	// Skipped lists constitution-ahead ids left untouched; reverse sync
	// them first.
	Skipped []string `json:"skipped,omitempty"`

	// Impact lists every constitution id needing review, sorted.
	Impact []string `json:"impact"`

	Entries     []ir.ChangelogEntry `json:"entries"`
	Diagnostics []ir.Diagnostic     `json:"diagnostics,omitempty"`
}

// Initialize records snap as the first sync point: every constitution at
// the baseline version and one changelog entry.
func (s *Syncer) Initialize(ctx context.Context, snap Snapshot) (*ForwardReport, error) {
	fp, err := s.cfg.Fingerprint()
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	now := s.now().UTC()
	next := deckRecords(snap.Sections, snap.Extraction)
	deck := &DeckState{Source: snap.Source, Fingerprint: fp, Sections: next, SyncedAt: now}

	rep := &ForwardReport{Initialized: true, Changes: []SectionChange{}}
	states := map[string]*ConstitutionState{}
	versions := map[string]string{}
	for _, c := range snap.Constitutions {
		c.Version = ir.Baseline
		st := newConstitutionState(c, ir.NewVersionMetadata(), next)
		states[st.Identity] = &st
		deck.Constitutions = append(deck.Constitutions, st.Identity)
		rep.Constitutions = append(rep.Constitutions, c)
		rep.Impact = append(rep.Impact, c.ID)
		versions[c.ID] = c.Version.String()
	}
	sort.Strings(rep.Impact)

	rep.Entries = []ir.ChangelogEntry{{
		ID:             s.newID(),
		Direction:      ir.DirectionForward,
		What:           fmt.Sprintf("initial decomposition of %s into %d constitutions", snap.Source, len(snap.Constitutions)),
		Trigger:        "decompose",
		Classification: ir.ClassStructural,
		Bump:           ir.BumpNone,
		Impact:         rep.Impact,
		Versions:       versions,
		Timestamp:      now,
	}}

	if err := s.persist(ctx, deck, states, snap.Graph, rep.Entries); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	s.logger.Info("sync point recorded", "source", snap.Source, "constitutions", len(states))
	return rep, nil
}

// ForwardSync propagates deck changes into constitutions. snap is a fresh
// decomposition of the current deck; current holds the constitutions as
// they are on disk, so direct edits are detected. Without a recorded sync
// point it initializes instead. Conflicts abort with a *ConflictError and
// nothing is written.
func (s *Syncer) ForwardSync(ctx context.Context, snap Snapshot, current []ir.Constitution) (*ForwardReport, error) {
	b, err := loadBaseline(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("forward sync: %w", err)
	}
	if !b.initialized() {
		return s.Initialize(ctx, snap)
	}

	next := deckRecords(snap.Sections, snap.Extraction)
	assessed := assess(b, next, current)
	if cs := conflicts(assessed, b.deck, next); len(cs) > 0 {
		return nil, &ConflictError{Conflicts: cs}
	}

	rep := &ForwardReport{Changes: s.classify.sections(b.deck.Sections, next)}
	if s.heuristicsChanged(b.deck) {
		rep.Diagnostics = append(rep.Diagnostics, ir.Info(ir.CodeHeuristicsChanged, ir.Location{},
			"heuristic configuration changed since the last sync; entity changes may come from it rather than the deck"))
	}
	changeByLabel := map[ir.Label]SectionChange{}
	for _, ch := range rep.Changes {
		changeByLabel[ch.Label] = ch
	}
	byIdentity := map[string]assessment{}
	for _, a := range assessed {
		byIdentity[a.state.Identity] = a
	}

	states := map[string]*ConstitutionState{}
	order := slices.Clone(b.deck.Constitutions)
	for _, c := range snap.Constitutions {
		id := identity(c)
		old, known := b.constitutions[id]
		a := byIdentity[id]

		if known && !old.Retired && a.status == ConstitutionAhead {
			rep.Skipped = append(rep.Skipped, a.current.ID)
			rep.Constitutions = append(rep.Constitutions, *a.current)
			states[id] = old
			continue
		}

		meta := ir.NewVersionMetadata()
		switch {
		case !known:
			order = append(order, id)
		case old.Retired:
			meta = cloneMetadata(old.Metadata)
			meta.Record(ir.ClassStructural, false)
		default:
			meta = cloneMetadata(old.Metadata)
			if a.status == DeckAhead || !maps.Equal(old.StatementHashes, statementHashes(c)) {
				class, breaking := s.constitutionClass(old.Constitution, c, a.sections, changeByLabel)
				meta.Record(class, breaking)
			}
		}
		c.Version = meta.Current
		st := newConstitutionState(c, meta, next)
		states[id] = &st
		rep.Constitutions = append(rep.Constitutions, c)
	}

	for _, old := range b.active() {
		if _, ok := states[old.Identity]; ok {
			continue
		}
		retired := *old
		retired.Metadata = cloneMetadata(old.Metadata)
		retired.Metadata.Record(ir.ClassStructural, true)
		retired.Constitution.Version = retired.Metadata.Current
		retired.Retired = true
		states[old.Identity] = &retired
		rep.Retired = append(rep.Retired, old.Constitution.ID)
	}

	rep.Entries, rep.Impact = s.forwardEntries(rep.Changes, b, snap.Graph, states)

	deck := &DeckState{Source: snap.Source, Sections: next, SyncedAt: s.now().UTC(), Constitutions: order}
	if deck.Fingerprint, err = s.cfg.Fingerprint(); err != nil {
		return nil, fmt.Errorf("forward sync: %w", err)
	}
	if err := s.persist(ctx, deck, states, snap.Graph, rep.Entries); err != nil {
		return nil, fmt.Errorf("forward sync: %w", err)
	}

	s.logger.Info("forward sync complete",
		"changes", len(rep.Changes),
		"retired", len(rep.Retired),
		"skipped", len(rep.Skipped))
	return rep, nil
}

// constitutionClass classifies what a deck change means for one
// constitution. Strategic constitutions take the class of their changed
// sections. Feature constitutions are judged by their own statements, so
// an unrelated bullet dropped from a shared section does not break them.
func (s *Syncer) constitutionClass(old, next ir.Constitution, labels []ir.Label, changes map[ir.Label]SectionChange) (ir.ChangeClass, bool) {
	class, breaking := ir.ClassEditorial, false
	if old.Type == ir.TypeStrategic {
		for _, l := range labels {
			if ch, ok := changes[l]; ok {
				class = ir.MaxClass(class, ch.Classification)
				breaking = breaking || ch.Breaking
			}
		}
		return class, breaking
	}
	for _, ch := range statementChanges(s.classify, old, next) {
		class = ir.MaxClass(class, ch.Classification)
		breaking = breaking || ch.Breaking
	}
	return class, breaking
}

// forwardEntries builds one changelog entry per section change and the
// overall impact list.
func (s *Syncer) forwardEntries(changes []SectionChange, b *baseline, next *graph.Graph, states map[string]*ConstitutionState) ([]ir.ChangelogEntry, []string) {
	// Feature ids can shift between passes; resolve old graph owners to
	// their current id through the stable identity.
	current := map[string]string{}
	for _, old := range b.constitutions {
		if st, ok := states[old.Identity]; ok {
			current[old.Constitution.ID] = st.Constitution.ID
		}
	}
	versionOf := map[string]string{}
	for _, st := range states {
		versionOf[st.Constitution.ID] = st.Metadata.Current.String()
	}

	all := map[string]bool{}
	entries := []ir.ChangelogEntry{}
	for _, ch := range changes {
		impact := map[string]bool{}
		for _, k := range ir.StrategicFor(ch.Label) {
			impact[ir.StrategicID(k)] = true
		}
		for _, g := range []*graph.Graph{b.graph, next} {
			if g == nil {
				continue
			}
			for _, id := range g.ImpactOf(ir.SectionNodeID(ch.Label)) {
				n, _ := g.Node(id)
				if n.Owner == "" {
					continue
				}
				owner := n.Owner
				if g == b.graph {
					if cur, ok := current[owner]; ok {
						owner = cur
					}
				}
				impact[owner] = true
			}
		}

		entry := ir.ChangelogEntry{
			ID:             s.newID(),
			Direction:      ir.DirectionForward,
			What:           describe(ch),
			Trigger:        "deck:" + string(ch.Label),
			Classification: ch.Classification,
			Bump:           ch.Bump(),
			Impact:         sortedSet(impact),
			Versions:       map[string]string{},
			Timestamp:      s.now().UTC(),
		}
		for _, id := range entry.Impact {
			all[id] = true
			if v, ok := versionOf[id]; ok {
				entry.Versions[id] = v
			}
		}
		entries = append(entries, entry)
	}
	return entries, sortedSet(all)
}

func describe(ch SectionChange) string {
	switch {
	case ch.RelabeledTo != "":
		return fmt.Sprintf("%s relabeled as %s", ch.Label, ch.RelabeledTo)
	case ch.RelabeledFrom != "":
		return fmt.Sprintf("%s relabeled from %s", ch.Label, ch.RelabeledFrom)
	case ch.Before == "" && ch.After != "":
		return fmt.Sprintf("%s section added", ch.Label)
	case ch.After == "" && ch.Before != "":
		return fmt.Sprintf("%s section removed", ch.Label)
	}
	var parts []string
	if len(ch.Removed) > 0 {
		parts = append(parts, "removed "+strings.Join(ch.Removed, ", "))
	}
	if len(ch.Added) > 0 {
		parts = append(parts, "added "+strings.Join(ch.Added, ", "))
	}
	if len(ch.Reworded) > 0 {
		parts = append(parts, fmt.Sprintf("reworded %d principle(s)", len(ch.Reworded)))
	}
	if len(parts) > 0 {
		return fmt.Sprintf("%s: %s", ch.Label, strings.Join(parts, "; "))
	}
	if ch.Classification == ir.ClassClarifying {
		return fmt.Sprintf("%s: new detail", ch.Label)
	}
	return fmt.Sprintf("%s: wording changed", ch.Label)
}

// persist writes a sync point: deck state, constitution states, graph and
// changelog entries. Entry sequence numbers are filled in from the log.
func (s *Syncer) persist(ctx context.Context, deck *DeckState, states map[string]*ConstitutionState, g *graph.Graph, entries []ir.ChangelogEntry) error {
	return s.write(ctx, func(st Store) error {
		ids := make([]string, 0, len(states))
		for id := range states {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			if err := putJSON(ctx, st, keyConstitution+id, states[id]); err != nil {
				return err
			}
		}
		if deck != nil {
			if err := putJSON(ctx, st, keyDeck, deck); err != nil {
				return err
			}
		}
		if g != nil {
			data, err := g.Snapshot().MarshalCanonical()
			if err != nil {
				return fmt.Errorf("encode graph: %w", err)
			}
			if err := st.Put(ctx, keyGraph, data); err != nil {
				return fmt.Errorf("put graph: %w", err)
			}
		}
		return appendEntries(ctx, st, entries)
	})
}

func appendEntries(ctx context.Context, st Store, entries []ir.ChangelogEntry) error {
	for i := range entries {
		data, err := json.Marshal(entries[i])
		if err != nil {
			return fmt.Errorf("encode changelog entry: %w", err)
		}
		seq, err := st.Append(ctx, StreamChangelog, data)
		if err != nil {
			return fmt.Errorf("append changelog: %w", err)
		}
		entries[i].Seq = seq
	}
	return nil
}

func (s *Syncer) write(ctx context.Context, fn func(Store) error) error {
	if b, ok := s.store.(Batcher); ok {
		return b.Batch(ctx, fn)
	}
	return fn(s.store)
}

// Changelog returns every changelog entry in append order.
func (s *Syncer) Changelog(ctx context.Context) ([]ir.ChangelogEntry, error) {
	records, err := s.store.Stream(ctx, StreamChangelog)
	if err != nil {
		return nil, fmt.Errorf("read changelog: %w", err)
	}
	return DecodeChangelog(records)
}

// DecodeChangelog decodes changelog stream records, taking each entry's Seq
// from its record.
func DecodeChangelog(records []Record) ([]ir.ChangelogEntry, error) {
	out := make([]ir.ChangelogEntry, 0, len(records))
	for _, r := range records {
		var e ir.ChangelogEntry
		if err := json.Unmarshal(r.Data, &e); err != nil {
			return nil, fmt.Errorf("decode changelog entry %d: %w", r.Seq, err)
		}
		e.Seq = r.Seq
		out = append(out, e)
	}
	return out, nil
}

// Graph returns the link graph recorded at the last sync point.
func (s *Syncer) Graph(ctx context.Context) (*graph.Graph, error) {
	b, err := loadBaseline(ctx, s.store)
	if err != nil {
		return nil, err
	}
	if !b.initialized() {
		return nil, ErrNotInitialized
	}
	return b.graph, nil
}

// Constitutions returns the tracked constitutions as recorded at the last
// sync point, retired ones excluded.
func (s *Syncer) Constitutions(ctx context.Context) ([]ir.Constitution, error) {
	b, err := loadBaseline(ctx, s.store)
	if err != nil {
		return nil, err
	}
	if !b.initialized() {
		return nil, ErrNotInitialized
	}
	var out []ir.Constitution
	for _, cs := range b.active() {
		out = append(out, cs.Constitution)
	}
	return out, nil
}

func cloneMetadata(m ir.VersionMetadata) ir.VersionMetadata {
	return ir.VersionMetadata{Current: m.Current, Log: slices.Clone(m.Log)}
}

func sortedSet(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
