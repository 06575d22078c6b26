package harness

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestdata(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

func TestRun_Scenarios(t *testing.T) {
	for _, name := range []string{"reword-is-editorial", "pricing-tier-dropped", "reverse-apply", "conflict-refused"} {
		t.Run(name, func(t *testing.T) {
			result, err := Run(context.Background(), loadTestdata(t, name))
			require.NoError(t, err)
			assert.True(t, result.Pass, strings.Join(result.Errors, "\n"))
		})
	}
}

func TestRun_Golden(t *testing.T) {
	result, err := RunWithGolden(t, loadTestdata(t, "reverse-apply"))
	require.NoError(t, err)
	assert.True(t, result.Pass)
}

func TestRun_Deterministic(t *testing.T) {
	s := loadTestdata(t, "pricing-tier-dropped")

	first, err := Run(context.Background(), s)
	require.NoError(t, err)
	second, err := Run(context.Background(), s)
	require.NoError(t, err)

	a, err := MarshalTrace(s.Name, first)
	require.NoError(t, err)
	b, err := MarshalTrace(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
	assert.Contains(t, string(a), `"retired":["feature:hosts pay 10 per month for"]`)
}

func TestRun_ReportsFailedExpectations(t *testing.T) {
	s := loadTestdata(t, "reword-is-editorial")
	s.Steps = append(s.Steps, Step{Action: ActionApply})
	s.Assertions = append(s.Assertions,
		Assertion{Type: AssertVersion, Constitution: "business-constitution", Version: "9.0.0"},
		Assertion{Type: AssertDeckContains, Text: "nowhere in the deck"},
	)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 3)
	assert.Contains(t, result.Errors[0], "apply without a reverse proposal")
	assert.Contains(t, result.Errors[1], "business-constitution at 9.0.0")
	assert.Contains(t, result.Errors[2], "nowhere in the deck")
	assert.Equal(t, "ERROR", result.Trace[len(result.Trace)-1].Error)
}

func TestRun_UnexpectedStepError(t *testing.T) {
	s := loadTestdata(t, "reverse-apply")
	s.Steps = []Step{{Action: ActionReverse}}
	s.Assertions = []Assertion{{Type: AssertChangelogCount, Count: 0}}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, "NOT_INITIALIZED", result.Trace[0].Error)
}

func TestRunSuite(t *testing.T) {
	result, err := RunSuite(context.Background(), filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	assert.Equal(t, 4, result.TotalScenarios)
	assert.Equal(t, 4, result.Passed)
	assert.Empty(t, result.Failures)

	_, err = RunSuite(context.Background(), filepath.Join(t.TempDir(), "*.yaml"))
	assert.Error(t, err)
}

func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{
		Type:     AssertVersion,
		Expected: "business-constitution at 2.0.0",
		Actual:   "1.0.0",
		Trace:    []TraceEvent{{Step: 0, Action: ActionSync}, {Step: 1, Action: ActionSync, Error: "CONFLICT_STATE"}},
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: version")
	assert.Contains(t, msg, "Expected: business-constitution at 2.0.0")
	assert.Contains(t, msg, "[1] sync error=CONFLICT_STATE")
}
