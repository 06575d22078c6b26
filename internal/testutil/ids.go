package testutil

import (
	"fmt"
	"sync"
)

// SequentialIDs generates changelog entry ids in sequence: prefix-000001,
// prefix-000002, ...
//
// The same scenario with the same generator produces byte-identical
// changelogs, which golden snapshots rely on.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialIDs creates a generator. An empty prefix uses "entry".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "entry"
	}
	return &SequentialIDs{prefix: prefix}
}

// Next returns the next id.
func (g *SequentialIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%06d", g.prefix, g.n)
}
