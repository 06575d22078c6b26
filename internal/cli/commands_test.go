package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bpkit/internal/ir"
	"github.com/roach88/bpkit/internal/render"
	"github.com/roach88/bpkit/internal/syncer"
)

// decodeData unmarshals the data field of a JSON response into v and
// returns the response status.
func decodeData(t *testing.T, out string, v any) string {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp), out)
	if v != nil {
		require.NoError(t, json.Unmarshal(resp.Data, v))
	}
	return resp.Status
}

func replaceIn(t *testing.T, path, old, new string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), old)
	require.NoError(t, os.WriteFile(path, []byte(strings.Replace(string(data), old, new, 1)), 0o644))
}

func TestDecompose_JSON(t *testing.T) {
	out, err := execute(t, "decompose", testDeck, "--format", "json")
	require.NoError(t, err)

	var result DecomposeResult
	assert.Equal(t, "ok", decodeData(t, out, &result))
	assert.Equal(t, 4, result.Stats.Strategic)
	assert.Equal(t, 7, result.Stats.Features)
	assert.Len(t, result.Constitutions, 11)
	assert.Positive(t, result.Links.Edges)
	assert.Zero(t, result.Links.Dangling)
	assert.Empty(t, result.Written)
}

func TestDecompose_Write(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, "decompose", testDeck, "--write", "-o", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "4 strategic, 7 feature constitutions")
	assert.Contains(t, out, "wrote 11 files")

	cs, err := render.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, cs, 11)
}

func TestDecompose_MissingDeck(t *testing.T) {
	_, err := execute(t, "decompose", filepath.Join(t.TempDir(), "nope.md"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.True(t, IsReported(err))
}

func TestValidate_Deck(t *testing.T) {
	out, err := execute(t, "validate", testDeck)
	require.NoError(t, err)
	assert.Contains(t, out, "✓")
	assert.Contains(t, out, "All decks valid")
}

func TestValidate_Directory(t *testing.T) {
	out, err := execute(t, "validate", filepath.Dir(testDeck), "--format", "json")
	require.NoError(t, err)

	var result ValidationResult
	decodeData(t, out, &result)
	assert.True(t, result.Valid)
	require.Len(t, result.Decks, 1)
	assert.Equal(t, 7, result.Decks[0].Features)
}

func TestValidate_NoDecks(t *testing.T) {
	out, err := execute(t, "validate", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNoDecks)
}

func TestValidate_InvalidDeck(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "bpkit.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("duplicate_policy: reject\n"), 0o644))
	deck := filepath.Join(dir, "deck.md")
	require.NoError(t, os.WriteFile(deck, []byte("# Deck\n\n## The Problem\n\nTravelers waste days.\n\n## Problem\n\nHosts lose bookings.\n"), 0o644))

	out, err := execute(t, "validate", deck, "-c", cfg, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result ValidationResult
	assert.Equal(t, "error", decodeData(t, out, &result))
	require.Len(t, result.Decks, 1)
	assert.False(t, result.Decks[0].Valid)
	assert.NotEmpty(t, ir.FilterCode(result.Decks[0].Diagnostics, ir.CodeLabelCollision))
}

func TestSync_Lifecycle(t *testing.T) {
	deck, flags := workspace(t)
	run := func(args ...string) (string, error) {
		return execute(t, append(args, flags...)...)
	}

	out, err := run("status", deck)
	require.NoError(t, err)
	assert.Contains(t, out, "No sync point")

	out, err = run("sync", deck)
	require.NoError(t, err)
	assert.Contains(t, out, "Initialized sync point with 11 constitutions")

	out, err = run("sync", deck)
	require.NoError(t, err)
	assert.Contains(t, out, "Deck unchanged")

	replaceIn(t, deck, "We charge hosts a small monthly subscription.", "Hosts are charged a small monthly subscription.")
	out, err = run("status", deck, "--check")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, string(syncer.DeckAhead))

	out, err = run("sync", deck, "--format", "json")
	require.NoError(t, err)
	var result SyncResult
	decodeData(t, out, &result)
	require.Len(t, result.Changes, 1)
	assert.Equal(t, ir.LabelBusinessModel, result.Changes[0].Label)
	assert.Equal(t, ir.ClassEditorial, result.Changes[0].Classification)

	_, err = run("status", deck, "--check")
	require.NoError(t, err)

	out, err = run("changelog", "--format", "json")
	require.NoError(t, err)
	var log ChangelogResult
	decodeData(t, out, &log)
	require.Len(t, log.Entries, 2)
	assert.Greater(t, log.Entries[0].Seq, log.Entries[1].Seq, "newest first")

	changelog := filepath.Join(flags[3], render.ChangelogMD)
	data, err := os.ReadFile(changelog)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Changelog")
}

func TestSync_Conflict(t *testing.T) {
	deck, flags := workspace(t)
	run := func(args ...string) (string, error) {
		return execute(t, append(args, flags...)...)
	}
	_, err := run("sync", deck)
	require.NoError(t, err)

	business := filepath.Join(flags[3], render.DirStrategic, ir.StrategicID(ir.StrategicBusiness)+".md")
	replaceIn(t, business, "We charge hosts a small monthly subscription.", "We charge hosts a monthly fee.")
	replaceIn(t, deck, "We charge hosts a small monthly subscription.", "We bill hosts a small monthly subscription.")

	out, err := run("sync", deck)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, ErrCodeConflict)
	assert.Contains(t, out, "deck:")
	assert.Contains(t, out, "constitution:")

	out, err = run("status", deck, "--format", "json")
	require.NoError(t, err)
	var status syncer.StatusReport
	decodeData(t, out, &status)
	assert.Equal(t, 1, status.Count(syncer.Conflict))
}

func TestSync_ReverseApply(t *testing.T) {
	deck, flags := workspace(t)
	run := func(args ...string) (string, error) {
		return execute(t, append(args, flags...)...)
	}
	_, err := run("sync", deck)
	require.NoError(t, err)

	_, err = run("sync", deck, "--apply")
	require.Error(t, err, "--apply without --reverse")

	out, err := run("sync", deck, "--reverse")
	require.NoError(t, err)
	assert.Contains(t, out, "No constitution edits to propose")

	product := filepath.Join(flags[3], render.DirStrategic, ir.StrategicID(ir.StrategicProduct)+".md")
	edited := "Guests must never pay for a listing that is not verified within 24 hours."
	replaceIn(t, product, "Guests must never pay for a listing that does not exist.", edited)

	out, err = run("sync", deck, "--reverse")
	require.NoError(t, err)
	assert.Contains(t, out, "1.0.0 -> 1.0.1")
	assert.Contains(t, out, "not applied")
	data, err := os.ReadFile(deck)
	require.NoError(t, err)
	assert.NotContains(t, string(data), edited)

	out, err = run("sync", deck, "--reverse", "--apply", "--format", "json")
	require.NoError(t, err)
	var result ReverseResult
	decodeData(t, out, &result)
	assert.True(t, result.Applied)
	require.Len(t, result.Proposals, 1)

	data, err = os.ReadFile(deck)
	require.NoError(t, err)
	assert.Contains(t, string(data), edited)

	out, err = run("status", deck, "--format", "json")
	require.NoError(t, err)
	var status syncer.StatusReport
	decodeData(t, out, &status)
	for _, c := range status.Constitutions {
		if c.ID == ir.StrategicID(ir.StrategicProduct) {
			assert.Equal(t, syncer.InSync, c.State)
			assert.Equal(t, "1.0.1", c.Version)
		}
	}
}

func TestSync_ReverseBeforeInit(t *testing.T) {
	deck, flags := workspace(t)
	out, err := execute(t, append([]string{"sync", deck, "--reverse"}, flags...)...)
	require.Error(t, err)
	assert.Contains(t, out, ErrCodeNotInitialized)
}

func TestImpact_Command(t *testing.T) {
	deck, flags := workspace(t)
	_, err := execute(t, append([]string{"sync", deck}, flags...)...)
	require.NoError(t, err)

	out, err := execute(t, append([]string{"impact", "business-model", "--format", "json"}, flags...)...)
	require.NoError(t, err)
	var rep struct {
		Node          string   `json:"node"`
		Constitutions []string `json:"constitutions"`
	}
	decodeData(t, out, &rep)
	assert.Equal(t, ir.SectionNodeID(ir.LabelBusinessModel), rep.Node)
	assert.Contains(t, rep.Constitutions, ir.StrategicID(ir.StrategicBusiness))

	_, err = execute(t, append([]string{"impact", "nothing-here"}, flags...)...)
	require.Error(t, err)
}

func TestTest_Scenarios(t *testing.T) {
	out, err := execute(t, "test", "../harness/testdata/scenarios")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ reverse-apply")
	assert.Contains(t, out, "4 passed, 0 failed, 4 total")
}

func TestTest_FilterAndGolden(t *testing.T) {
	golden := t.TempDir()
	_, err := execute(t, "test", "../harness/testdata/scenarios", "--filter", "reverse-*", "--golden", golden, "--update")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(golden, "reverse-apply.golden"))

	out, err := execute(t, "test", "../harness/testdata/scenarios", "--filter", "reverse-*", "--golden", golden, "--format", "json")
	require.NoError(t, err)
	var result TestResult
	decodeData(t, out, &result)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, result.Passed)

	require.NoError(t, os.WriteFile(filepath.Join(golden, "reverse-apply.golden"), []byte("{}"), 0o644))
	out, err = execute(t, "test", "../harness/testdata/scenarios", "--filter", "reverse-*", "--golden", golden)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace differs")
}

func TestTest_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	deck, err := filepath.Abs(testDeck)
	require.NoError(t, err)
	scenario := "name: wrong-version\ndeck: " + deck + "\nsteps:\n  - action: sync\nassertions:\n  - type: version\n    constitution: product-constitution\n    version: \"9.9.9\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wrong.yaml"), []byte(scenario), 0o644))

	out, err := execute(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong-version")
	assert.Contains(t, out, ErrCodeScenarios)
}

func TestChangelog_SinceAndState(t *testing.T) {
	deck, flags := workspace(t)
	run := func(args ...string) (string, error) {
		return execute(t, append(args, flags...)...)
	}
	_, err := run("sync", deck)
	require.NoError(t, err)
	replaceIn(t, deck, "We charge hosts a small monthly subscription.", "Hosts are charged a small monthly subscription.")
	_, err = run("sync", deck)
	require.NoError(t, err)

	out, err := run("changelog", "--since", "1", "--format", "json")
	require.NoError(t, err)
	var log ChangelogResult
	decodeData(t, out, &log)
	require.Len(t, log.Entries, 1)
	assert.EqualValues(t, 2, log.Entries[0].Seq)
	assert.EqualValues(t, 2, log.Head)

	out, err = run("state", "--format", "json")
	require.NoError(t, err)
	var state StateResult
	decodeData(t, out, &state)
	require.NotEmpty(t, state.Keys)
	keys := make([]string, len(state.Keys))
	for i, k := range state.Keys {
		keys[i] = k.Key
		assert.Positive(t, k.Revision)
	}
	assert.Contains(t, keys, "deck")
	assert.Equal(t, []StateStream{{Stream: syncer.StreamChangelog, Head: 2}}, state.Streams)

	out, err = run("state", "constitution/")
	require.NoError(t, err)
	assert.NotContains(t, out, "  deck ")
	assert.Contains(t, out, "constitution/")
}
