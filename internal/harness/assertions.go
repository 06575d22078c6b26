package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/bpkit/internal/ir"
	"github.com/roach88/bpkit/internal/syncer"
)

// AssertionError is returned when an assertion fails.
// It includes the step trace to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nSteps:\n")
		for _, ev := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s%s\n", ev.Step, ev.Action, summarize(ev))
		}
	}
	return buf.String()
}

func summarize(ev TraceEvent) string {
	var parts []string
	if ev.Error != "" {
		parts = append(parts, "error="+ev.Error)
	}
	for _, ch := range ev.Changes {
		parts = append(parts, fmt.Sprintf("%s:%s", ch.Label, ch.Classification))
	}
	for _, p := range ev.Proposals {
		parts = append(parts, fmt.Sprintf("%s:%s->%s", p.ConstitutionID, p.From, p.To))
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

func (r *Result) fail(a Assertion, expected, actual string) error {
	return &AssertionError{Type: a.Type, Expected: expected, Actual: actual, Trace: r.Trace}
}

// assertChange checks that a sync step classified a section change.
func assertChange(r *Result, a Assertion) error {
	ev := r.Trace[a.Step]
	i := slices.IndexFunc(ev.Changes, func(ch syncer.SectionChange) bool { return string(ch.Label) == a.Label })
	if i < 0 {
		return r.fail(a, fmt.Sprintf("step %d changes %s", a.Step, a.Label), fmt.Sprintf("no change to %s", a.Label))
	}
	ch := ev.Changes[i]
	if a.Classification != "" && string(ch.Classification) != a.Classification {
		return r.fail(a, fmt.Sprintf("%s classified %s", a.Label, a.Classification), string(ch.Classification))
	}
	if a.Bump != "" && string(ch.Bump()) != a.Bump {
		return r.fail(a, fmt.Sprintf("%s bump %s", a.Label, a.Bump), string(ch.Bump()))
	}
	return nil
}

// assertProposal checks that a reverse step proposed a version for a
// constitution.
func assertProposal(r *Result, a Assertion) error {
	ev := r.Trace[a.Step]
	id := r.Final.Resolve(a.Constitution)
	for _, p := range ev.Proposals {
		if p.ConstitutionID != id {
			continue
		}
		if a.Classification != "" && string(p.Classification) != a.Classification {
			return r.fail(a, fmt.Sprintf("%s proposal classified %s", id, a.Classification), string(p.Classification))
		}
		if a.Bump != "" && string(p.Bump) != a.Bump {
			return r.fail(a, fmt.Sprintf("%s proposal bump %s", id, a.Bump), string(p.Bump))
		}
		if a.Version != "" && p.To != a.Version {
			return r.fail(a, fmt.Sprintf("%s proposed at %s", id, a.Version), p.To)
		}
		return nil
	}
	return r.fail(a, fmt.Sprintf("step %d proposes %s", a.Step, id), "no proposal")
}

// assertVersion checks the on-disk version of a constitution.
func assertVersion(r *Result, a Assertion) error {
	c, ok := r.constitution(a.Constitution)
	if !ok {
		return r.fail(a, fmt.Sprintf("%s at %s", a.Constitution, a.Version), "constitution not found")
	}
	if got := c.Version.String(); got != a.Version {
		return r.fail(a, fmt.Sprintf("%s at %s", c.ID, a.Version), got)
	}
	return nil
}

// assertState checks a constitution's sync state.
func assertState(r *Result, a Assertion) error {
	if r.Final.Status == nil || !r.Final.Status.Initialized {
		return r.fail(a, fmt.Sprintf("%s %s", a.Constitution, a.State), "no sync point")
	}
	id := r.Final.Resolve(a.Constitution)
	for _, c := range r.Final.Status.Constitutions {
		if c.ID == id {
			if string(c.State) != a.State {
				return r.fail(a, fmt.Sprintf("%s %s", id, a.State), string(c.State))
			}
			return nil
		}
	}
	return r.fail(a, fmt.Sprintf("%s %s", id, a.State), "not tracked")
}

// assertRetired checks that a feature was retired and its file removed.
func assertRetired(r *Result, a Assertion) error {
	id := r.Final.Resolve(a.Constitution)
	for rid, key := range r.Final.Retired {
		if rid == id || key == a.Constitution {
			if _, ok := r.constitution(rid); ok {
				return r.fail(a, a.Constitution+" retired", "file still present")
			}
			return nil
		}
	}
	return r.fail(a, a.Constitution+" retired", "not retired")
}

// assertImpact checks that the impact of a target reaches every listed
// constitution.
func assertImpact(r *Result, a Assertion) error {
	got, err := r.Final.Impact(a.Target)
	if err != nil {
		return r.fail(a, fmt.Sprintf("impact of %s", a.Target), err.Error())
	}
	for _, want := range a.Contains {
		id := r.Final.Resolve(want)
		if !slices.Contains(got, id) {
			return r.fail(a, fmt.Sprintf("impact of %s contains %s", a.Target, id), fmt.Sprintf("%v", got))
		}
	}
	return nil
}

func (r *Result) constitution(ref string) (ir.Constitution, bool) {
	id := r.Final.Resolve(ref)
	for _, c := range r.Final.Constitutions {
		if c.ID == id {
			return c, true
		}
	}
	return ir.Constitution{}, false
}

// EvaluateAssertions checks every assertion against a finished run and
// returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, a := range assertions {
		var err error
		switch {
		case result.Final == nil:
			err = fmt.Errorf("assertion[%d]: no final state to check", i)
		case (a.Type == AssertChange || a.Type == AssertProposal) && (a.Step < 0 || a.Step >= len(result.Trace)):
			err = fmt.Errorf("assertion[%d]: step %d out of range", i, a.Step)
		default:
			err = evaluate(result, a)
		}
		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertChange:
		return assertChange(r, a)
	case AssertProposal:
		return assertProposal(r, a)
	case AssertVersion:
		return assertVersion(r, a)
	case AssertState:
		return assertState(r, a)
	case AssertRetired:
		return assertRetired(r, a)
	case AssertImpact:
		return assertImpact(r, a)
	case AssertChangelogCount:
		if n := len(r.Final.Changelog); n != a.Count {
			return r.fail(a, fmt.Sprintf("%d changelog entries", a.Count), fmt.Sprintf("%d", n))
		}
	case AssertConstitutions:
		if n := len(r.Final.Constitutions); n != a.Count {
			return r.fail(a, fmt.Sprintf("%d constitutions", a.Count), fmt.Sprintf("%d", n))
		}
	case AssertDeckContains:
		if !strings.Contains(r.Final.Deck, a.Text) {
			return r.fail(a, fmt.Sprintf("deck contains %q", a.Text), "not found")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
