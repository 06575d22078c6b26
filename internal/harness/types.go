package harness

import (
	"github.com/roach88/bpkit/internal/ir"
	"github.com/roach88/bpkit/internal/syncer"
)

// TraceEvent records the outcome of one step.
type TraceEvent struct {
	Step   int    `json:"step"`
	Action string `json:"action"`

	// Error is the abort code when the step failed.
	Error string `json:"error,omitempty"`

	Initialized   bool `json:"initialized,omitempty"`
	Constitutions int  `json:"constitutions,omitempty"`

	Changes   []syncer.SectionChange `json:"changes,omitempty"`
	Proposals []syncer.Proposal      `json:"proposals,omitempty"`

	// Retired holds entity keys, not ids, so traces stay readable.
	Retired []string `json:"retired,omitempty"`

	// Applied is the number of proposals written to the deck.
	Applied int `json:"applied,omitempty"`
}

// CanonicalValue is the golden form of the event: classifications and
// versions only, no diffs or timestamps.
func (e TraceEvent) CanonicalValue() any {
	m := map[string]any{
		"step":   e.Step,
		"action": e.Action,
	}
	if e.Error != "" {
		m["error"] = e.Error
	}
	if e.Initialized {
		m["initialized"] = true
	}
	if e.Constitutions > 0 {
		m["constitutions"] = e.Constitutions
	}
	if len(e.Changes) > 0 {
		changes := make([]any, len(e.Changes))
		for i, ch := range e.Changes {
			changes[i] = map[string]any{
				"label":          string(ch.Label),
				"classification": string(ch.Classification),
				"bump":           string(ch.Bump()),
			}
		}
		m["changes"] = changes
	}
	if len(e.Proposals) > 0 {
		proposals := make([]any, len(e.Proposals))
		for i, p := range e.Proposals {
			proposals[i] = map[string]any{
				"constitution":   p.ConstitutionID,
				"classification": string(p.Classification),
				"from":           p.From,
				"to":             p.To,
			}
		}
		m["proposals"] = proposals
	}
	if len(e.Retired) > 0 {
		m["retired"] = e.Retired
	}
	if e.Applied > 0 {
		m["applied"] = e.Applied
	}
	return m
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final is the workspace state after the last step.
	Final *FinalState `json:"-"`
}

// FinalState is what assertions inspect once every step has run.
type FinalState struct {
	Deck          string
	Constitutions []ir.Constitution
	Status        *syncer.StatusReport
	Changelog     []ir.ChangelogEntry

	// Retired maps retired feature ids to their entity keys.
	Retired map[string]string

	// Resolve maps a feature entity key to its constitution id.
	Resolve func(ref string) string

	// Impact resolves an impact target against the final sync point.
	Impact func(target string) ([]string, error)
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
