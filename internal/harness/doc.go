// Package harness runs conformance scenarios against the decomposition and
// sync pipeline.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: pricing-tier-dropped
//	description: "What this scenario validates"
//	deck: ../decks/stayhub.md
//	config: bpkit.yaml            # optional
//	steps:
//	  - action: sync
//	  - action: edit_deck
//	    replace: "- Hosts pay $10 per month for premium listing tools\n"
//	    with: ""
//	  - action: sync
//	    expect:
//	      changes: 1
//	assertions:
//	  - type: change
//	    step: 2
//	    label: business-model
//	    classification: structural
//	    bump: major
//	  - type: version
//	    constitution: business-constitution
//	    version: "2.0.0"
//
// Steps are sync, reverse, apply, decompose, edit_deck and
// edit_constitution. A step may expect an abort code (expect.error) or a
// number of changes or proposals (expect.changes).
//
// # Assertion Types
//
//   - change: a sync step classified a section change
//   - proposal: a reverse step proposed a version for a constitution
//   - version, state: the final version or sync state of a constitution
//   - retired: a feature was retired and its file removed
//   - impact: the impact of a target reaches the listed constitutions
//   - changelog_count, constitution_count, deck_contains
//
// Constitutions are named by id or, for features, by entity key
// ("feature:hosts pay 10 per month for"), since feature ids carry an
// ordinal.
//
// # Deterministic Testing
//
// Every scenario runs in a fresh temporary workspace with an in-memory
// SQLite store, a fixed clock and sequential changelog ids, so the trace
// is byte-identical across runs and can be compared to a golden file.
package harness
