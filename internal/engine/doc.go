// Package engine runs the decomposition pipeline and the sync operations
// over one deck.
//
// A decomposition pass is linear: load the deck, map headings onto the
// canonical sections, extract candidate entities, synthesize constitutions
// and commit the link graph. An unresolved label collision, a derivation
// cycle or a dangling link aborts the pass with every diagnostic gathered
// up to that point.
//
// Sync operations (Sync, Status, Reverse, Apply) decompose the deck afresh
// and hand the result to a syncer.Syncer over the engine's state store.
//
// Watch processes deck changes on a single goroutine in arrival order, so
// sync state keeps one writer even while the file keeps changing.
package engine
