package syncer

import (
	"fmt"
	"strings"

	"github.com/roach88/bpkit/internal/ir"
)

// ConflictDetail is one constitution whose deck sources and own statements
// both changed since the last sync point.
type ConflictDetail struct {
	ConstitutionID string `json:"constitution_id"`

	// DeckDiff covers every changed tracked section.
	DeckDiff string `json:"deck_diff"`

	// ConstitutionDiff covers every edited statement.
	ConstitutionDiff string `json:"constitution_diff"`

	Sections   []ir.Label `json:"sections"`
	Statements []string   `json:"statements"`
}

// ConflictError refuses an automatic sync and carries both diffs of every
// conflicting constitution for manual resolution.
type ConflictError struct {
	Conflicts []ConflictDetail
}

func (e *ConflictError) Error() string {
	ids := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		ids[i] = c.ConstitutionID
	}
	return fmt.Sprintf("%s: deck and constitution both changed: %s", ir.ErrCodeConflictState, strings.Join(ids, ", "))
}

// Unwrap exposes the conflict as an *ir.Error so ir.IsConflict matches.
func (e *ConflictError) Unwrap() error {
	diags := make([]ir.Diagnostic, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		d := ir.Errorf(ir.CodeSyncConflict, ir.Location{Node: ir.ConstitutionNodeID(c.ConstitutionID)},
			"%s changed on both sides (sections %v, statements %v)", c.ConstitutionID, c.Sections, c.Statements)
		d.Content = c.DeckDiff + c.ConstitutionDiff
		diags = append(diags, d)
	}
	return ir.NewConflictState("automatic sync refused", diags)
}
