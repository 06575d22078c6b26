// Package syncer keeps constitutions and their source deck synchronized.
//
// Every constitution is in one of four states relative to the deck, computed
// by comparing content hashes against the hashes recorded at the last sync
// point:
//
//	in-sync             neither side changed
//	deck-ahead          a tracked section changed; forward sync regenerates
//	constitution-ahead  the constitution was edited; reverse sync proposes a deck patch
//	conflict            both changed; automatic sync refuses and reports both diffs
//
// Forward sync classifies each changed section as editorial, clarifying or
// structural and bumps the versions of the affected constitutions. A
// principle whose wording changed is paired with its old form rather than
// counted as removed and added, so forward and reverse agree on what a
// rewording is. Reverse sync never rewrites the deck; it returns a patch
// that Apply makes real.
//
// Sync state lives behind the Store interface: a key-value map plus an
// append-only changelog stream. MemoryStore serves tests; the store package
// provides the SQLite implementation.
package syncer
