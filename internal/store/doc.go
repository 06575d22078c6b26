// Package store provides SQLite-backed durable sync state.
//
// A Store holds two tables:
//   - kv: the current document for each key (deck record, constitution
//     states, dependency graph), overwritten on every sync
//   - log: append-only streams such as the changelog, ordered by a
//     per-stream seq starting at 1
//
// Store implements syncer.Store and syncer.Batcher, so a sync pass commits
// all of its writes in one transaction or none of them.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// Log rows are never updated or deleted. Ordering always uses seq, never
// timestamps, so replaying a stream is deterministic.
package store
