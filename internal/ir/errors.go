package ir

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes errors that abort a synthesis or sync pass.
// Non-fatal findings (unrecognized sections, low-confidence entities) are
// warning-severity Diagnostics, never errors.
type ErrorCode string

const (
	// ErrCodeStructural indicates an unresolved label collision or a
	// derivation cycle. Fatal to the current synthesis pass.
	ErrCodeStructural ErrorCode = "STRUCTURAL_ERROR"

	// ErrCodeDanglingReference indicates a link edge endpoint was missing at
	// commit time.
	ErrCodeDanglingReference ErrorCode = "DANGLING_REFERENCE"

	// ErrCodeConflictState indicates deck and constitution both changed since
	// the last sync point.
	ErrCodeConflictState ErrorCode = "CONFLICT_STATE"
)

// Error aborts a pass. It carries every diagnostic accumulated up to the
// failure point so one retry can address all of them.
type Error struct {
	Code        ErrorCode
	Message     string
	Diagnostics []Diagnostic
}

func (e *Error) Error() string {
	if n := len(e.Diagnostics); n > 0 {
		return fmt.Sprintf("%s: %s (%d diagnostics)", e.Code, e.Message, n)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewStructuralError creates an Error for structural failures.
func NewStructuralError(message string, diags []Diagnostic) *Error {
	return &Error{Code: ErrCodeStructural, Message: message, Diagnostics: diags}
}

// NewDanglingReference creates an Error for dangling link edges.
func NewDanglingReference(message string, diags []Diagnostic) *Error {
	return &Error{Code: ErrCodeDanglingReference, Message: message, Diagnostics: diags}
}

// NewConflictState creates an Error for divergent sync state.
func NewConflictState(message string, diags []Diagnostic) *Error {
	return &Error{Code: ErrCodeConflictState, Message: message, Diagnostics: diags}
}

// WithDiagnostics returns a copy of e whose diagnostics are prefixed by
// earlier ones, so an abort reports everything accumulated in the pass.
func (e *Error) WithDiagnostics(earlier []Diagnostic) *Error {
	all := make([]Diagnostic, 0, len(earlier)+len(e.Diagnostics))
	all = append(all, earlier...)
	all = append(all, e.Diagnostics...)
	return &Error{Code: e.Code, Message: e.Message, Diagnostics: all}
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsStructural returns true if err is a structural error.
// Uses errors.As to handle wrapped errors.
func IsStructural(err error) bool { return hasCode(err, ErrCodeStructural) }

// IsDangling returns true if err is a dangling reference error.
func IsDangling(err error) bool { return hasCode(err, ErrCodeDanglingReference) }

// IsConflict returns true if err is a conflict state error.
func IsConflict(err error) bool { return hasCode(err, ErrCodeConflictState) }

// DiagnosticsOf extracts the diagnostic list from an abort error.
func DiagnosticsOf(err error) []Diagnostic {
	var e *Error
	if errors.As(err, &e) {
		return e.Diagnostics
	}
	return nil
}
