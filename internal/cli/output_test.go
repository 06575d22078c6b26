package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bpkit/internal/config"
	"github.com/roach88/bpkit/internal/ir"
	"github.com/roach88/bpkit/internal/source"
	"github.com/roach88/bpkit/internal/syncer"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data, nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	err := formatter.Success("ignored", func(w io.Writer) {
		fmt.Fprintln(w, "rendered")
	})
	require.NoError(t, err)
	assert.Equal(t, "rendered\n", buf.String())

	buf.Reset()
	require.NoError(t, formatter.Success("plain", nil))
	assert.Equal(t, "plain\n", buf.String())
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("E002", "deck unreadable", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E002", resp.Error.Code)
	assert.Equal(t, "deck unreadable", resp.Error.Message)
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error("E005", "not found", map[string]string{"path": "x"}))
	assert.Equal(t, "Error [E005]: not found\n", buf.String())

	buf.Reset()
	formatter.Verbose = true
	require.NoError(t, formatter.Error("E005", "not found", "x"))
	assert.Contains(t, buf.String(), "Details: x")
}

func TestOutputFormatter_JSONFailureCarriesData(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Failure("E014", "1 of 1 deck(s) invalid", map[string]bool{"valid": false}, nil))

	var resp struct {
		Status string          `json:"status"`
		Data   map[string]bool `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data["valid"])
	assert.Equal(t, "E014", resp.Error.Code)
}

func TestOutputFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut}

	formatter.VerboseLog("hidden %d", 1)
	assert.Empty(t, errOut.String())

	formatter.Verbose = true
	formatter.VerboseLog("shown %d", 2)
	assert.Equal(t, "shown 2\n", errOut.String())
	assert.Empty(t, out.String())
}

func TestWriteDiagnostics_InfoOnlyWhenVerbose(t *testing.T) {
	diags := []ir.Diagnostic{
		{Severity: ir.SeverityInfo, Code: ir.CodeEntityMerged, Message: "merged"},
		{Severity: ir.SeverityWarning, Code: ir.CodeThinSection, Message: "thin"},
	}
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	formatter.writeDiagnostics(buf, diags)
	assert.NotContains(t, buf.String(), "merged")
	assert.Contains(t, buf.String(), "thin")

	buf.Reset()
	formatter.Verbose = true
	formatter.writeDiagnostics(buf, diags)
	assert.Contains(t, buf.String(), "merged")
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad path")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "refused", errors.New("inner")))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.Equal(t, "refused: inner", WrapExitError(ExitFailure, "refused", errors.New("inner")).Error())

	assert.False(t, IsReported(NewExitError(ExitFailure, "x")))
	assert.True(t, IsReported(&ExitError{Code: ExitFailure, Reported: true}))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
		exit int
	}{
		{"structural", &ir.Error{Code: ir.ErrCodeStructural, Message: "cycle"}, ErrCodeStructural, ExitFailure},
		{"dangling", &ir.Error{Code: ir.ErrCodeDanglingReference, Message: "edge"}, ErrCodeDangling, ExitFailure},
		{"conflict", &syncer.ConflictError{}, ErrCodeConflict, ExitFailure},
		{"not initialized", fmt.Errorf("reverse: %w", syncer.ErrNotInitialized), ErrCodeNotInitialized, ExitCommandError},
		{"config", &config.InvalidError{Path: "c.yaml"}, ErrCodeConfig, ExitCommandError},
		{"not patchable", fmt.Errorf("reverse sync deck.html: %w", source.ErrNotPatchable), ErrCodeNotPatchable, ExitCommandError},
		{"other", errors.New("boom"), ErrCodeGeneric, ExitCommandError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, exit := classify(tt.err)
			assert.Equal(t, tt.code, code)
			assert.Equal(t, tt.exit, exit)
		})
	}
}

func TestFail_JSONConflictDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}
	conflict := &syncer.ConflictError{Conflicts: []syncer.ConflictDetail{{
		ConstitutionID:   "business-constitution",
		DeckDiff:         "-a\n+b\n",
		ConstitutionDiff: "-a\n+c\n",
	}}}

	err := fail(formatter, "sync deck.md", conflict)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, IsReported(err))

	var resp struct {
		Error struct {
			Code    string                  `json:"code"`
			Details []syncer.ConflictDetail `json:"details"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, ErrCodeConflict, resp.Error.Code)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "business-constitution", resp.Error.Details[0].ConstitutionID)
}
