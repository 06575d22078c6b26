package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/roach88/bpkit/internal/config"
	"github.com/roach88/bpkit/internal/engine"
	"github.com/roach88/bpkit/internal/ir"
	"github.com/roach88/bpkit/internal/logging"
	"github.com/roach88/bpkit/internal/render"
	"github.com/roach88/bpkit/internal/store"
	"github.com/roach88/bpkit/internal/syncer"
	"github.com/roach88/bpkit/internal/testutil"
)

// Harness runs one scenario against a throwaway workspace: a copy of the
// deck, a constitution directory and an in-memory state store.
type Harness struct {
	engine *engine.Engine
	deck   string
	out    string
	logger *slog.Logger

	// pending is the last reverse-sync proposal, consumed by apply.
	pending *syncer.ReverseReport

	// keys maps every constitution id seen so far to its entity key.
	keys map[string]string

	// retired maps retired feature ids to their entity keys.
	retired map[string]string
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh workspace and in-memory database for
// isolation. A fixed clock and sequential changelog ids make the trace
// reproducible. The returned error is reserved for failures of the
// harness itself; failed expectations are reported in the Result.
func Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	cfg := config.Default()
	if scenario.Config != "" {
		loaded, err := config.Load(scenario.Config)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}

	ws, err := os.MkdirTemp("", "bpkit-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}
	defer os.RemoveAll(ws)

	content, err := os.ReadFile(scenario.Deck)
	if err != nil {
		return nil, fmt.Errorf("failed to read deck: %w", err)
	}
	deck := filepath.Join(ws, "deck"+filepath.Ext(scenario.Deck))
	if err := os.WriteFile(deck, content, 0o644); err != nil {
		return nil, fmt.Errorf("failed to copy deck: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := logging.Discard()
	h := &Harness{
		engine: engine.New(cfg, st,
			engine.WithLogger(logger),
			engine.WithSyncOptions(
				syncer.WithClock(testutil.NewDeterministicClock(testutil.Epoch, time.Second).Now),
				syncer.WithIDs(testutil.NewSequentialIDs("entry").Next),
			)),
		deck:    deck,
		out:     filepath.Join(ws, "constitutions"),
		logger:  logger,
		keys:    map[string]string{},
		retired: map[string]string{},
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		ev, err := h.execute(ctx, i, step, result)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
		result.Trace = append(result.Trace, ev)
	}

	final, err := h.final(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read final state: %w", err)
	}
	result.Final = final

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// RunFile loads and runs the scenario at path.
func RunFile(ctx context.Context, path string) (*Scenario, *Result, error) {
	scenario, err := LoadScenario(path)
	if err != nil {
		return nil, nil, err
	}
	result, err := Run(ctx, scenario)
	return scenario, result, err
}

// execute runs one step. Engine errors become the event's Error and are
// checked against the step's expectation.
func (h *Harness) execute(ctx context.Context, i int, step Step, result *Result) (TraceEvent, error) {
	ev := TraceEvent{Step: i, Action: step.Action}
	changes := -1

	var stepErr error
	switch step.Action {
	case ActionEditDeck:
		stepErr = editFile(h.deck, step.Replace, step.With)

	case ActionEditConstitution:
		path, err := h.constitutionPath(step.Constitution)
		if err != nil {
			stepErr = err
			break
		}
		stepErr = editFile(path, step.Replace, step.With)

	case ActionDecompose:
		d, err := h.engine.DecomposeFile(ctx, h.deck)
		if err != nil {
			stepErr = err
			break
		}
		ev.Constitutions = len(d.Constitutions())

	case ActionSync:
		current, err := render.ReadDir(h.out)
		if err != nil {
			return ev, err
		}
		rep, _, err := h.engine.Sync(ctx, h.deck, current)
		if err != nil {
			stepErr = err
			break
		}
		if _, err := render.WriteDir(h.out, rep.Constitutions); err != nil {
			return ev, err
		}
		for _, c := range rep.Constitutions {
			h.keys[c.ID] = c.EntityKey
		}
		ev.Initialized = rep.Initialized
		ev.Constitutions = len(rep.Constitutions)
		ev.Changes = rep.Changes
		for _, id := range rep.Retired {
			h.retired[id] = h.keys[id]
			ev.Retired = append(ev.Retired, h.keys[id])
		}
		sort.Strings(ev.Retired)
		changes = len(rep.Changes)

	case ActionReverse:
		current, err := render.ReadDir(h.out)
		if err != nil {
			return ev, err
		}
		rep, err := h.engine.Reverse(ctx, h.deck, current)
		if err != nil {
			stepErr = err
			break
		}
		h.pending = rep
		ev.Proposals = rep.Proposals
		changes = len(rep.Proposals)

	case ActionApply:
		if h.pending == nil {
			stepErr = errors.New("apply without a reverse proposal")
			break
		}
		if err := h.engine.Apply(ctx, h.deck, h.pending); err != nil {
			stepErr = err
			break
		}
		ev.Applied = len(h.pending.Proposals)
		h.pending = nil
		// Rewrite the accepted constitutions with their new versions.
		tracked, err := h.engine.Tracked(ctx)
		if err != nil {
			return ev, err
		}
		if _, err := render.WriteDir(h.out, tracked); err != nil {
			return ev, err
		}

	default:
		return ev, fmt.Errorf("unknown action %q", step.Action)
	}

	if stepErr != nil {
		ev.Error = errorCode(stepErr)
		h.logger.Debug("step failed", "step", i, "action", step.Action, "error", stepErr)
	}

	want := ""
	if step.Expect != nil {
		want = step.Expect.Error
	}
	switch {
	case want == "" && stepErr != nil:
		result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", i, step.Action, stepErr))
	case want != "" && ev.Error != want:
		result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got %q", i, step.Action, want, ev.Error))
	}
	if step.Expect != nil && step.Expect.Changes != nil && stepErr == nil && changes != *step.Expect.Changes {
		result.AddError(fmt.Sprintf("steps[%d] %s: expected %d changes, got %d", i, step.Action, *step.Expect.Changes, changes))
	}
	return ev, nil
}

// constitutionPath finds the rendered file of a constitution id or
// feature entity key.
func (h *Harness) constitutionPath(ref string) (string, error) {
	id := h.resolve(ref)
	for _, dir := range []string{render.DirStrategic, render.DirFeatures} {
		path := filepath.Join(h.out, dir, id+".md")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("constitution %s has no file", ref)
}

// resolve maps a feature entity key to its constitution id. Anything else
// is returned unchanged.
func (h *Harness) resolve(ref string) string {
	if !strings.HasPrefix(ref, "feature:") {
		return ref
	}
	ids := make([]string, 0, len(h.keys))
	for id := range h.keys {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if h.keys[id] == ref {
			return id
		}
	}
	return ref
}

func (h *Harness) final(ctx context.Context) (*FinalState, error) {
	deck, err := os.ReadFile(h.deck)
	if err != nil {
		return nil, err
	}
	current, err := render.ReadDir(h.out)
	if err != nil {
		return nil, err
	}
	status, err := h.engine.Status(ctx, h.deck, current)
	if err != nil && !ir.IsStructural(err) {
		return nil, err
	}
	changelog, err := h.engine.Changelog(ctx)
	if err != nil {
		return nil, err
	}

	f := &FinalState{
		Deck:          string(deck),
		Constitutions: current,
		Status:        status,
		Changelog:     changelog,
		Retired:       h.retired,
		Resolve:       h.resolve,
	}
	f.Impact = func(target string) ([]string, error) {
		rep, err := h.engine.Impact(ctx, h.resolve(target))
		if err != nil {
			return nil, err
		}
		return rep.Constitutions, nil
	}
	return f, nil
}

func editFile(path, replace, with string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if !strings.Contains(text, replace) {
		return fmt.Errorf("%s does not contain %q", filepath.Base(path), replace)
	}
	return os.WriteFile(path, []byte(strings.Replace(text, replace, with, 1)), 0o644)
}

// errorCode names the abort code of err, or ERROR for anything else.
func errorCode(err error) string {
	var e *ir.Error
	if errors.As(err, &e) {
		return string(e.Code)
	}
	if errors.Is(err, syncer.ErrNotInitialized) {
		return "NOT_INITIALIZED"
	}
	return "ERROR"
}
