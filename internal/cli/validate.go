package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/bpkit/internal/ir"
)

// DeckValidation is the validation outcome for one deck.
type DeckValidation struct {
	Path        string          `json:"path"`
	Valid       bool            `json:"valid"`
	Features    int             `json:"features"`
	Diagnostics []ir.Diagnostic `json:"diagnostics"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Decks []DeckValidation `json:"decks"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <deck|dir|pattern>",
		Short: "Decompose decks and report diagnostics without writing",
		Long: `Decompose one or more decks and report their diagnostics. Nothing is
written and no sync state is touched.

A directory validates every deck beneath it; a pattern may use ** to match
across directories. A deck is invalid if decomposition aborts or any
diagnostic is an error.

Examples:
  bpkit validate deck.md
  bpkit validate decks/
  bpkit validate "decks/**/*.{md,html}" --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, pattern string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd)
	eng, err := newEngine(opts, cmd)
	if err != nil {
		return fail(f, "load config", err)
	}

	if info, err := os.Stat(pattern); err == nil && info.IsDir() {
		pattern = filepath.Join(pattern, "**", "*")
	}
	decks, err := eng.Discover(pattern)
	if err != nil {
		return failCode(f, ErrCodeGeneric, ExitCommandError, "discover decks", err)
	}
	if len(decks) == 0 {
		return failCode(f, ErrCodeNoDecks, ExitCommandError, "no decks match "+pattern, nil)
	}
	f.VerboseLog("found %d deck(s) matching %s", len(decks), pattern)

	result := ValidationResult{Valid: true, Decks: make([]DeckValidation, 0, len(decks))}
	for _, path := range decks {
		v := DeckValidation{Path: path, Valid: true}
		d, err := eng.DecomposeFile(cmd.Context(), path)
		if err != nil {
			v.Valid = false
			v.Diagnostics = ir.DiagnosticsOf(err)
			if len(v.Diagnostics) == 0 {
				v.Diagnostics = []ir.Diagnostic{{
					Severity: ir.SeverityError,
					Code:     "DECOMPOSE_FAILED",
					Message:  err.Error(),
				}}
			}
		} else {
			v.Features = d.Output.Stats.Features
			v.Diagnostics = d.Diagnostics
			for _, diag := range d.Diagnostics {
				if diag.Severity == ir.SeverityError {
					v.Valid = false
				}
			}
		}
		if v.Diagnostics == nil {
			v.Diagnostics = []ir.Diagnostic{}
		}
		if !v.Valid {
			result.Valid = false
		}
		result.Decks = append(result.Decks, v)
	}

	text := func(w io.Writer) { writeValidation(f, w, result) }
	if result.Valid {
		return f.Success(result, text)
	}

	invalid := 0
	for _, v := range result.Decks {
		if !v.Valid {
			invalid++
		}
	}
	msg := fmt.Sprintf("%d of %d deck(s) invalid", invalid, len(result.Decks))
	if err := f.Failure(ErrCodeInvalid, msg, result, text); err != nil {
		return err
	}
	return &ExitError{Code: ExitFailure, Message: msg, Reported: true}
}

func writeValidation(f *OutputFormatter, w io.Writer, r ValidationResult) {
	for _, v := range r.Decks {
		mark := "✓"
		if !v.Valid {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s (%d features)\n", mark, v.Path, v.Features)
		f.writeDiagnostics(w, v.Diagnostics)
	}
	if r.Valid {
		fmt.Fprintln(w, "All decks valid")
	}
}
