package ir

import (
	"fmt"
	"strconv"
	"strings"
)

// Version constants for the engine and its heuristics.
const (
	// EngineVersion is the bpkit engine version.
	EngineVersion = "0.1.0"

	// StateVersion is the persisted sync state schema version.
	StateVersion = "1"
)

// Version is a semantic version triple.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// Baseline is the version of every freshly synthesized constitution.
var Baseline = Version{Major: 1}

// ParseVersion parses "MAJOR.MINOR.PATCH", with an optional leading "v".
func ParseVersion(s string) (Version, error) {
	parts := strings.Split(strings.TrimPrefix(strings.TrimSpace(s), "v"), ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("invalid version %q: want MAJOR.MINOR.PATCH", s)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return Version{}, fmt.Errorf("invalid version %q: component %q", s, p)
		}
		nums[i] = n
	}
	return Version{Major: nums[0], Minor: nums[1], Patch: nums[2]}, nil
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Compare returns -1, 0 or 1 under semantic version ordering.
func (v Version) Compare(o Version) int {
	for _, d := range [3]int{v.Major - o.Major, v.Minor - o.Minor, v.Patch - o.Patch} {
		if d < 0 {
			return -1
		}
		if d > 0 {
			return 1
		}
	}
	return 0
}

// Bump is the version increment implied by a classified change.
type Bump string

const (
	BumpNone  Bump = "none"
	BumpPatch Bump = "patch"
	BumpMinor Bump = "minor"
	BumpMajor Bump = "major"
)

// rank orders bumps so the largest wins when several changes apply.
func (b Bump) rank() int {
	switch b {
	case BumpPatch:
		return 1
	case BumpMinor:
		return 2
	case BumpMajor:
		return 3
	}
	return 0
}

// MaxBump returns the larger of a and b.
func MaxBump(a, b Bump) Bump {
	if b.rank() > a.rank() {
		return b
	}
	if a == "" {
		return BumpNone
	}
	return a
}

// Apply returns v incremented by b.
func (v Version) Apply(b Bump) Version {
	switch b {
	case BumpMajor:
		return Version{Major: v.Major + 1}
	case BumpMinor:
		return Version{Major: v.Major, Minor: v.Minor + 1}
	case BumpPatch:
		return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
	}
	return v
}

// ChangeClass classifies the impact of a diff.
type ChangeClass string

const (
	ClassEditorial  ChangeClass = "editorial"
	ClassClarifying ChangeClass = "clarifying"
	ClassStructural ChangeClass = "structural"
)

func (c ChangeClass) rank() int {
	switch c {
	case ClassClarifying:
		return 1
	case ClassStructural:
		return 2
	}
	return 0
}

// MaxClass returns the more impactful of a and b.
func MaxClass(a, b ChangeClass) ChangeClass {
	if b.rank() > a.rank() {
		return b
	}
	if a == "" {
		return ClassEditorial
	}
	return a
}

// BumpFor maps a classification to its bump. A structural change with a
// removal (or a relabel) is breaking and bumps major.
func BumpFor(class ChangeClass, breaking bool) Bump {
	switch class {
	case ClassStructural:
		if breaking {
			return BumpMajor
		}
		return BumpMinor
	case ClassClarifying:
		return BumpPatch
	}
	return BumpNone
}

// VersionChange is one entry of a constitution's version log.
type VersionChange struct {
	Old            Version     `json:"old"`
	New            Version     `json:"new"`
	Classification ChangeClass `json:"classification"`
	Breaking       bool        `json:"breaking,omitempty"`
}

// VersionMetadata is a constitution's current version plus the log of
// classified diffs that produced it.
type VersionMetadata struct {
	Current Version         `json:"current"`
	Log     []VersionChange `json:"log"`
}

// NewVersionMetadata starts a log at Baseline.
func NewVersionMetadata() VersionMetadata {
	return VersionMetadata{Current: Baseline, Log: []VersionChange{}}
}

// Record applies a classified change, appends it to the log and returns it.
// Editorial changes are logged with an unchanged version.
func (m *VersionMetadata) Record(class ChangeClass, breaking bool) VersionChange {
	next := m.Current.Apply(BumpFor(class, breaking))
	change := VersionChange{Old: m.Current, New: next, Classification: class, Breaking: breaking}
	m.Log = append(m.Log, change)
	m.Current = next
	return change
}

// Replay recomputes the current version from Baseline and the log.
// The current version is a pure function of the log.
func (m VersionMetadata) Replay() Version {
	v := Baseline
	for _, c := range m.Log {
		v = v.Apply(BumpFor(c.Classification, c.Breaking))
	}
	return v
}
