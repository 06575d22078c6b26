package ir

import (
	"fmt"
	"math"
)

// EntityKind is the closed set of extractable entity kinds.
type EntityKind string

const (
	KindFeature   EntityKind = "feature"
	KindPrinciple EntityKind = "principle"
)

// Method records which heuristic produced a candidate.
type Method string

const (
	MethodList    Method = "list-based"
	MethodPattern Method = "pattern-based"
)

// Confidence is a score in [0,1] stored as fixed-point thousandths so that it
// participates in canonical hashing without floats.
type Confidence int

// ConfidenceMax is a confidence of 1.0.
const ConfidenceMax Confidence = 1000

// NewConfidence converts f to a Confidence, clipping to [0,1].
func NewConfidence(f float64) Confidence {
	if math.IsNaN(f) || f <= 0 {
		return 0
	}
	if f >= 1 {
		return ConfidenceMax
	}
	return Confidence(math.Round(f * 1000))
}

// Float returns the confidence as a float in [0,1].
func (c Confidence) Float() float64 {
	return float64(c) / 1000
}

func (c Confidence) String() string {
	return fmt.Sprintf("%.3f", c.Float())
}

// CandidateEntity is a feature or principle proposed by the extractor.
type CandidateEntity struct {
	Kind       EntityKind `json:"kind"`
	Title      string     `json:"title"`
	Body       string     `json:"body"`
	Confidence Confidence `json:"confidence"`
	Method     Method     `json:"method"`

	// Section is the label of the section the entity came from.
	Section Label `json:"section"`

	// SectionIndex is the mapper index of that section.
	SectionIndex int `json:"section_index"`

	// LowConfidence marks entities below the configured floor. They are kept.
	LowConfidence bool `json:"low_confidence,omitempty"`

	// Terms are the vocabulary terms that matched, in match order.
	Terms []string `json:"terms,omitempty"`

	Range SourceRange `json:"range"`
}

// Key is the deduplication key: kind plus normalized title.
func (c CandidateEntity) Key() string {
	return EntityKey(c.Kind, c.Title)
}

// NodeID returns the link graph node id for this entity.
func (c CandidateEntity) NodeID() string {
	return "entity:" + c.Key()
}

// EntityKey builds the deduplication key for a kind and title.
func EntityKey(kind EntityKind, title string) string {
	return string(kind) + ":" + NormalizeTitle(title)
}

// CanonicalValue implements Canonicaler.
func (c CandidateEntity) CanonicalValue() any {
	terms := c.Terms
	if terms == nil {
		terms = []string{}
	}
	return map[string]any{
		"kind":           string(c.Kind),
		"title":          c.Title,
		"body":           c.Body,
		"confidence":     int(c.Confidence),
		"method":         string(c.Method),
		"section":        string(c.Section),
		"low_confidence": c.LowConfidence,
		"terms":          terms,
		"start_line":     c.Range.StartLine,
	}
}
