// Package extract proposes candidate entities (features and principles) from
// labeled sections.
//
// Two heuristics run over every matched section:
//
//   - List-based: each list item becomes a feature when the section label is a
//     feature label, and a principle when the item carries a modal phrase.
//   - Sentence-pattern: prose sentences that pair a capability action verb
//     with more capability vocabulary become features; sentences with a modal
//     phrase become principles.
//
// Candidates are scored with method reliability times match strength,
// deduplicated by kind plus normalized title, and the deck-wide feature count
// is capped. Nothing is dropped without a diagnostic: weak candidates are
// flagged low-confidence and candidates cut by the ceiling are named in a
// truncation diagnostic.
//
// Extract is a pure function of the section and the configuration, so
// ExtractAll may run sections concurrently.
package extract
