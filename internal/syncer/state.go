package syncer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/roach88/bpkit/internal/graph"
	"github.com/roach88/bpkit/internal/ir"
)

// Store is the persistence contract for sync state: a key-value map plus
// append-only streams. Implementations must return stream records in append
// order with strictly increasing sequence numbers starting at 1.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Append(ctx context.Context, stream string, entry []byte) (int64, error)
	Stream(ctx context.Context, stream string) ([]Record, error)
}

// Record is one entry of an append-only stream.
type Record struct {
	Seq  int64
	Data []byte
}

// Keys used in the Store.
const (
	keyDeck         = "deck"
	keyGraph        = "graph"
	keyConstitution = "constitution/"

	// StreamChangelog is the append-only changelog stream.
	StreamChangelog = "changelog"
)

// State is a constitution's position relative to its source deck.
type State string

const (
	InSync            State = "in-sync"
	DeckAhead         State = "deck-ahead"
	ConstitutionAhead State = "constitution-ahead"
	Conflict          State = "conflict"
)

// SectionRecord is a canonical section as seen at the last sync point.
type SectionRecord struct {
	Hash string `json:"hash"`

	// BodyHash ignores the label so a relabeled section can be recognized.
	BodyHash string `json:"body_hash"`

	Text string `json:"text"`

	// Entities are the candidate keys extracted from the section, sorted.
	Entities []string `json:"entities"`
}

// DeckState records the deck side of the last sync point.
type DeckState struct {
	Source      string                     `json:"source"`
	Fingerprint string                     `json:"fingerprint"`
	Sections    map[ir.Label]SectionRecord `json:"sections"`
	SyncedAt    time.Time                  `json:"synced_at"`

	// Constitutions lists the identities of every tracked constitution,
	// retired ones included, in first-seen order.
	Constitutions []string `json:"constitutions"`
}

// ConstitutionState records one constitution at the last sync point.
type ConstitutionState struct {
	Identity     string             `json:"identity"`
	Constitution ir.Constitution    `json:"constitution"`
	Metadata     ir.VersionMetadata `json:"metadata"`

	// SectionHashes are the hashes of the tracked source sections.
	SectionHashes map[ir.Label]string `json:"section_hashes"`

	// StatementHashes maps statement id to ir.StatementHash.
	StatementHashes map[string]string `json:"statement_hashes"`

	Retired bool `json:"retired,omitempty"`
}

// identity is the stable key of a constitution across syncs. Feature ids
// carry an ordinal that shifts when features are added, so features are
// identified by the candidate they were built from.
func identity(c ir.Constitution) string {
	if c.Type == ir.TypeFeature && c.EntityKey != "" {
		return c.EntityKey
	}
	return c.ID
}

// trackedLabels returns the canonical sections whose changes reach c. A
// feature tracks its own section and every section one of its statements
// was drawn from.
func trackedLabels(c ir.Constitution) []ir.Label {
	if c.Type == ir.TypeStrategic {
		return ir.StrategicSources[c.Kind]
	}
	tracked := map[ir.Label]bool{}
	for _, l := range c.Sources {
		tracked[l] = true
	}
	for _, s := range c.Statements() {
		if s.Source != "" {
			tracked[s.Source] = true
		}
	}
	var out []ir.Label
	for _, l := range ir.CanonicalLabels {
		if tracked[l] {
			out = append(out, l)
		}
	}
	return out
}

func statementHashes(c ir.Constitution) map[string]string {
	out := make(map[string]string, len(c.Principles)+len(c.Entities))
	for _, s := range c.Statements() {
		out[s.ID] = ir.StatementHash(s)
	}
	return out
}

func newConstitutionState(c ir.Constitution, meta ir.VersionMetadata, deck map[ir.Label]SectionRecord) ConstitutionState {
	hashes := map[ir.Label]string{}
	for _, l := range trackedLabels(c) {
		hashes[l] = deck[l].Hash
	}
	return ConstitutionState{
		Identity:        identity(c),
		Constitution:    c,
		Metadata:        meta,
		SectionHashes:   hashes,
		StatementHashes: statementHashes(c),
	}
}

// baseline is everything recorded at the last sync point.
type baseline struct {
	deck          *DeckState
	constitutions map[string]*ConstitutionState
	graph         *graph.Graph
}

func (b *baseline) initialized() bool { return b.deck != nil }

// active returns non-retired states in tracking order.
func (b *baseline) active() []*ConstitutionState {
	var out []*ConstitutionState
	for _, id := range b.deck.Constitutions {
		if cs, ok := b.constitutions[id]; ok && !cs.Retired {
			out = append(out, cs)
		}
	}
	return out
}

func loadBaseline(ctx context.Context, st Store) (*baseline, error) {
	b := &baseline{constitutions: map[string]*ConstitutionState{}, graph: graph.New()}

	var deck DeckState
	found, err := getJSON(ctx, st, keyDeck, &deck)
	if err != nil || !found {
		return b, err
	}
	b.deck = &deck

	for _, id := range deck.Constitutions {
		var cs ConstitutionState
		ok, err := getJSON(ctx, st, keyConstitution+id, &cs)
		if err != nil {
			return nil, err
		}
		if ok {
			b.constitutions[id] = &cs
		}
	}

	data, ok, err := st.Get(ctx, keyGraph)
	if err != nil {
		return nil, fmt.Errorf("load graph: %w", err)
	}
	if ok {
		g, err := graph.DecodeSnapshot(data)
		if err != nil {
			return nil, fmt.Errorf("load graph: %w", err)
		}
		b.graph = g
	}
	return b, nil
}

func getJSON(ctx context.Context, st Store, key string, v any) (bool, error) {
	data, ok, err := st.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func putJSON(ctx context.Context, st Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := st.Put(ctx, key, data); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu      sync.Mutex
	kv      map[string][]byte
	streams map[string][][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{kv: map[string][]byte{}, streams: map[string][][]byte{}}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.kv[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kv[key] = append([]byte(nil), value...)
	return nil
}

func (m *MemoryStore) Append(_ context.Context, stream string, entry []byte) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams[stream] = append(m.streams[stream], append([]byte(nil), entry...))
	return int64(len(m.streams[stream])), nil
}

func (m *MemoryStore) Stream(_ context.Context, stream string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.streams[stream]))
	for i, d := range m.streams[stream] {
		out[i] = Record{Seq: int64(i + 1), Data: append([]byte(nil), d...)}
	}
	return out, nil
}

// Keys returns the stored keys, sorted.
func (m *MemoryStore) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.kv))
	for k := range m.kv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
