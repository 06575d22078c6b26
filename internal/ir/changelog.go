package ir

import "time"

// Direction records which side of a sync produced a change.
type Direction string

const (
	DirectionForward Direction = "forward" // deck -> constitutions
	DirectionReverse Direction = "reverse" // constitution -> deck (proposed)
)

// ChangelogEntry is an immutable record in the append-only changelog.
type ChangelogEntry struct {
	ID string `json:"id"`

	// Seq is assigned by the log on append.
	Seq int64 `json:"seq"`

	Direction Direction `json:"direction"`

	// What summarizes the change.
	What string `json:"what"`

	// Trigger names the classified diff that caused the entry.
	Trigger        string      `json:"trigger"`
	Classification ChangeClass `json:"classification"`
	Bump           Bump        `json:"bump"`

	// Impact lists affected constitution ids, sorted.
	Impact []string `json:"impact"`

	// Versions maps constitution id to the version after the change.
	Versions map[string]string `json:"versions,omitempty"`

	// Proposed is set for reverse-sync entries awaiting an explicit apply.
	Proposed bool `json:"proposed,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}
