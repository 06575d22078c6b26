package ir

import "fmt"

// Severity of a diagnostic.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic codes reported by the engine.
const (
	CodeNoHeadings        = "DOCUMENT_NO_HEADINGS"
	CodeLowQuality        = "LOW_EXTRACTION_QUALITY"
	CodeSectionMissing    = "SECTION_MISSING"
	CodeSectionDuplicate  = "SECTION_DUPLICATE"
	CodeUnrecognized      = "SECTION_UNRECOGNIZED"
	CodeSectionPreamble   = "SECTION_PREAMBLE"
	CodeLabelCollision    = "LABEL_COLLISION"
	CodePlaceholder       = "SECTION_PLACEHOLDER"
	CodeVague             = "SECTION_VAGUE"
	CodeThinSection       = "SECTION_THIN"
	CodeContradiction     = "DECK_CONTRADICTION"
	CodeLowConfidence     = "ENTITY_LOW_CONFIDENCE"
	CodeEntityMerged      = "ENTITY_MERGED"
	CodeFeaturesTruncated = "FEATURES_TRUNCATED"
	CodeFeaturesBelow     = "FEATURES_BELOW_TARGET"
	CodePrincipleFallback = "PRINCIPLE_FALLBACK"
	CodeCriterionFallback = "CRITERION_PLACEHOLDER"
	CodeStatementUnlinked = "STATEMENT_UNLINKED"
	CodeEdgeDangling      = "EDGE_DANGLING"
	CodeEdgeStale         = "EDGE_STALE"
	CodeDerivationCycle   = "DERIVATION_CYCLE"
	CodeDependencyCycle   = "DEPENDENCY_CYCLE"
	CodeSyncConflict      = "SYNC_CONFLICT"
	CodePatchUnanchored   = "PATCH_UNANCHORED"
	CodeHeuristicsChanged = "HEURISTICS_CHANGED"
)

// Location points a diagnostic at the source or at a graph node.
type Location struct {
	Section Label  `json:"section,omitempty"`
	Heading string `json:"heading,omitempty"`
	Line    int    `json:"line,omitempty"`
	EndLine int    `json:"end_line,omitempty"`
	Node    string `json:"node,omitempty"`
}

func (l Location) String() string {
	switch {
	case l.Line > 0 && l.EndLine > l.Line:
		return fmt.Sprintf("lines %d-%d", l.Line, l.EndLine)
	case l.Line > 0:
		return fmt.Sprintf("line %d", l.Line)
	case l.Node != "":
		return l.Node
	case l.Section != "":
		return string(l.Section)
	}
	return ""
}

// Diagnostic is a typed, user-facing finding.
type Diagnostic struct {
	Severity Severity `json:"severity"`
	Code     string   `json:"code"`
	Message  string   `json:"message"`
	Location Location `json:"location"`

	// Content preserves source text the diagnostic is about, so flagged
	// content is never lost from the output.
	Content string `json:"content,omitempty"`
}

func (d Diagnostic) String() string {
	if loc := d.Location.String(); loc != "" {
		return fmt.Sprintf("%s [%s] %s (%s)", d.Severity, d.Code, d.Message, loc)
	}
	return fmt.Sprintf("%s [%s] %s", d.Severity, d.Code, d.Message)
}

// Warn builds a warning diagnostic.
func Warn(code string, loc Location, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityWarning, Code: code, Message: fmt.Sprintf(format, args...), Location: loc}
}

// Info builds an info diagnostic.
func Info(code string, loc Location, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityInfo, Code: code, Message: fmt.Sprintf(format, args...), Location: loc}
}

// Errorf builds an error diagnostic.
func Errorf(code string, loc Location, format string, args ...any) Diagnostic {
	return Diagnostic{Severity: SeverityError, Code: code, Message: fmt.Sprintf(format, args...), Location: loc}
}

// HasErrors reports whether any diagnostic has error severity.
func HasErrors(diags []Diagnostic) bool {
	for _, d := range diags {
		if d.Severity == SeverityError {
			return true
		}
	}
	return false
}

// FilterCode returns the diagnostics with the given code.
func FilterCode(diags []Diagnostic, code string) []Diagnostic {
	var out []Diagnostic
	for _, d := range diags {
		if d.Code == code {
			out = append(out, d)
		}
	}
	return out
}
