package config

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/bpkit/internal/ir"
)

// Validation error codes (E100-E199)
const (
	ErrThresholdRange   = "E101" // threshold or weight outside (0,1]
	ErrDuplicatePolicy  = "E102" // unknown duplicate policy
	ErrCeiling          = "E103" // feature ceiling/target inconsistent
	ErrUnknownLabel     = "E104" // table references a non-canonical label
	ErrSynonymCollision = "E105" // one phrase claimed by two labels
	ErrEmptyVocabulary  = "E106" // capability vocabulary is empty
	ErrWeightOrder      = "E107" // list-based weight must exceed pattern-based
	ErrContradiction    = "E108" // contradiction pair is not a pair
	ErrNonPositive      = "E109" // count must be positive
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks the configuration. Returns all errors found (does not
// fail-fast).
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	add := func(field, code, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
	}

	unit := map[string]float64{
		"acceptance_threshold": c.AcceptanceThreshold,
		"list_weight":          c.ListWeight,
		"pattern_weight":       c.PatternWeight,
		"confidence_floor":     c.ConfidenceFloor,
		"reword_similarity":    c.RewordSimilarity,
	}
	for _, field := range []string{"acceptance_threshold", "list_weight", "pattern_weight", "confidence_floor", "reword_similarity"} {
		if v := unit[field]; v <= 0 || v > 1 {
			add(field, ErrThresholdRange, "must be in (0,1], got %v", v)
		}
	}
	if c.NumericBoost < 0 || c.NumericBoost > 1 {
		add("numeric_boost", ErrThresholdRange, "must be in [0,1], got %v", c.NumericBoost)
	}
	for i, m := range c.Modals {
		if m.Strength <= 0 || m.Strength > 1 {
			add(fmt.Sprintf("modals[%d]", i), ErrThresholdRange, "strength of %q must be in (0,1], got %v", m.Phrase, m.Strength)
		}
	}
	if c.ListWeight <= c.PatternWeight {
		add("list_weight", ErrWeightOrder, "list-based weight %v must exceed pattern-based weight %v", c.ListWeight, c.PatternWeight)
	}

	if c.DuplicatePolicy != DuplicateFlag && c.DuplicatePolicy != DuplicateReject {
		add("duplicate_policy", ErrDuplicatePolicy, "must be %q or %q, got %q", DuplicateFlag, DuplicateReject, c.DuplicatePolicy)
	}

	if c.FeatureCeiling <= 0 {
		add("feature_ceiling", ErrCeiling, "must be positive, got %d", c.FeatureCeiling)
	}
	if c.FeatureTarget < 0 || c.FeatureTarget > c.FeatureCeiling {
		add("feature_target", ErrCeiling, "must be in [0,%d], got %d", c.FeatureCeiling, c.FeatureTarget)
	}
	if c.PatternSaturation <= 0 {
		add("pattern_saturation", ErrNonPositive, "must be positive, got %d", c.PatternSaturation)
	}
	if c.ClarifyingMinTerms <= 0 {
		add("clarifying_min_terms", ErrNonPositive, "must be positive, got %d", c.ClarifyingMinTerms)
	}

	labels := make([]string, 0, len(c.Synonyms))
	for l := range c.Synonyms {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	owner := map[string]string{}
	for _, l := range labels {
		if !ir.Label(l).IsCanonical() {
			add("synonyms."+l, ErrUnknownLabel, "%q is not a canonical section label", l)
			continue
		}
		for _, phrase := range c.Synonyms[l] {
			key := strings.Join(ir.Words(phrase), " ")
			if prev, ok := owner[key]; ok && prev != l {
				add("synonyms."+l, ErrSynonymCollision, "phrase %q already maps to %q", phrase, prev)
				continue
			}
			owner[key] = l
		}
	}
	for _, l := range c.FeatureLabels {
		if !ir.Label(l).IsCanonical() {
			add("feature_labels", ErrUnknownLabel, "%q is not a canonical section label", l)
		}
	}

	if len(c.ActionVerbs) == 0 {
		add("action_verbs", ErrEmptyVocabulary, "capability vocabulary needs at least one action verb")
	}
	if len(c.CapabilityNouns) == 0 {
		add("capability_nouns", ErrEmptyVocabulary, "capability vocabulary needs at least one noun")
	}
	for i, p := range c.Contradictions {
		if len(p) != 2 {
			add(fmt.Sprintf("contradictions[%d]", i), ErrContradiction, "want exactly two terms, got %d", len(p))
		}
	}

	return errs
}
