package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/roach88/bpkit/internal/config"
	"github.com/roach88/bpkit/internal/ir"
	"github.com/roach88/bpkit/internal/render"
	"github.com/roach88/bpkit/internal/source"
	"github.com/roach88/bpkit/internal/syncer"
)

// CLI error codes. Config validation errors carry their own E1xx codes.
const (
	ErrCodeGeneric        = "E001" // Generic/unknown error
	ErrCodeDeckLoad       = "E002" // Deck unreadable or in an unknown format
	ErrCodeNoDecks        = "E003" // No decks matched
	ErrCodeState          = "E004" // State store failure
	ErrCodeNotFound       = "E005" // Path not found
	ErrCodeConfig         = "E006" // Config file invalid
	ErrCodeWriteFailed    = "E007" // File write error
	ErrCodeConstitution   = "E008" // Constitution file unreadable
	ErrCodeStructural     = "E010" // Label collision or derivation cycle
	ErrCodeDangling       = "E011" // Dangling link at commit
	ErrCodeConflict       = "E012" // Deck and constitution both changed
	ErrCodeNotInitialized = "E013" // No sync point yet
	ErrCodeInvalid        = "E014" // Deck decomposed with errors
	ErrCodeNotPatchable   = "E015" // Deck format cannot take reverse edits
	ErrCodeScenarios      = "E020" // Scenarios failed
)

// classify maps an error to a CLI code and exit code. Aborts of the
// pipeline or a refused sync are failures; everything else is a command
// error.
func classify(err error) (string, int) {
	switch {
	case ir.IsStructural(err):
		return ErrCodeStructural, ExitFailure
	case ir.IsDangling(err):
		return ErrCodeDangling, ExitFailure
	case ir.IsConflict(err):
		return ErrCodeConflict, ExitFailure
	case errors.Is(err, syncer.ErrNotInitialized):
		return ErrCodeNotInitialized, ExitCommandError
	case errors.Is(err, source.ErrNotPatchable):
		return ErrCodeNotPatchable, ExitCommandError
	case errors.Is(err, render.ErrNotConstitution):
		return ErrCodeConstitution, ExitCommandError
	case errors.Is(err, fs.ErrNotExist):
		return ErrCodeNotFound, ExitCommandError
	}

	var loadErr *config.LoadError
	var invalid *config.InvalidError
	if errors.As(err, &loadErr) || errors.As(err, &invalid) {
		return ErrCodeConfig, ExitCommandError
	}
	return ErrCodeGeneric, ExitCommandError
}

// fail writes err through f and returns the ExitError the command should
// return. Abort diagnostics and conflict diffs become the error details.
func fail(f *OutputFormatter, message string, err error) error {
	code, exit := classify(err)
	return failCode(f, code, exit, message, err)
}

func failCode(f *OutputFormatter, code string, exit int, message string, err error) error {
	var details any
	var conflict *syncer.ConflictError
	var invalid *config.InvalidError
	switch {
	case errors.As(err, &conflict):
		details = conflict.Conflicts
	case errors.As(err, &invalid):
		details = invalid.Errors
	case len(ir.DiagnosticsOf(err)) > 0:
		details = ir.DiagnosticsOf(err)
	}

	msg := message
	if err != nil {
		msg = fmt.Sprintf("%s: %v", message, err)
	}
	if f.json() {
		if werr := f.Error(code, msg, details); werr != nil {
			return werr
		}
	} else {
		_ = f.Error(code, msg, nil)
		writeDetails(f, details)
	}
	return &ExitError{Code: exit, Message: message, Err: err, Reported: true}
}

// writeDetails prints abort diagnostics and conflict diffs in text mode.
func writeDetails(f *OutputFormatter, details any) {
	switch d := details.(type) {
	case []ir.Diagnostic:
		f.writeDiagnostics(f.Writer, d)
	case []config.ValidationError:
		for _, e := range d {
			fmt.Fprintf(f.Writer, "  %v\n", e)
		}
	case []syncer.ConflictDetail:
		for _, c := range d {
			fmt.Fprintf(f.Writer, "\n%s (sections %v, statements %v)\n", c.ConstitutionID, c.Sections, c.Statements)
			fmt.Fprintf(f.Writer, "deck:\n%s", c.DeckDiff)
			fmt.Fprintf(f.Writer, "constitution:\n%s", c.ConstitutionDiff)
		}
	}
}
