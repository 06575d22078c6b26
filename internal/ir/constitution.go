package ir

import "time"

// ConstitutionType distinguishes the two layers of generated artifacts.
type ConstitutionType string

const (
	TypeStrategic ConstitutionType = "strategic"
	TypeFeature   ConstitutionType = "feature"
)

// StrategicKind is one of the four fixed strategic constitutions.
type StrategicKind string

const (
	StrategicCompany  StrategicKind = "company"
	StrategicProduct  StrategicKind = "product"
	StrategicMarket   StrategicKind = "market"
	StrategicBusiness StrategicKind = "business"
)

// StrategicKinds lists the strategic kinds in synthesis order.
var StrategicKinds = []StrategicKind{
	StrategicCompany,
	StrategicProduct,
	StrategicMarket,
	StrategicBusiness,
}

// StrategicSources is the fixed table of canonical sections motivating each
// strategic constitution. team motivates both company and business.
var StrategicSources = map[StrategicKind][]Label{
	StrategicCompany:  {LabelCompanyPurpose, LabelVision, LabelTeam},
	StrategicProduct:  {LabelProblem, LabelSolution, LabelWhyNow},
	StrategicMarket:   {LabelMarketPotential, LabelCompetition},
	StrategicBusiness: {LabelBusinessModel, LabelFinancials, LabelTeam},
}

// StrategicFor returns the strategic kinds motivated by label, in
// StrategicKinds order.
func StrategicFor(label Label) []StrategicKind {
	var kinds []StrategicKind
	for _, k := range StrategicKinds {
		for _, l := range StrategicSources[k] {
			if l == label {
				kinds = append(kinds, k)
				break
			}
		}
	}
	return kinds
}

// StrategicID returns the constitution id of a strategic kind.
func StrategicID(k StrategicKind) string {
	return string(k) + "-constitution"
}

// StatementKind is the closed set of statements a constitution holds.
type StatementKind string

const (
	StatementPrinciple StatementKind = "principle"
	StatementStory     StatementKind = "user-story"
	StatementEntity    StatementKind = "data-entity"
	StatementCriterion StatementKind = "success-criterion"
)

// Statement is one principle or entity definition inside a constitution.
type Statement struct {
	ID         string        `json:"id"`
	Kind       StatementKind `json:"kind"`
	Title      string        `json:"title"`
	Text       string        `json:"text"`
	Rationale  string        `json:"rationale,omitempty"`
	Source     Label         `json:"source"`
	Confidence Confidence    `json:"confidence"`

	// NeedsReview marks statements built from fallbacks or placeholders.
	NeedsReview bool `json:"needs_review,omitempty"`

	// Attributes lists suggested fields of a data entity.
	Attributes []string `json:"attributes,omitempty"`

	// Acceptance is the given/when/then line of a user story.
	Acceptance string `json:"acceptance,omitempty"`
}

// CanonicalValue implements Canonicaler.
func (s Statement) CanonicalValue() any {
	attrs := s.Attributes
	if attrs == nil {
		attrs = []string{}
	}
	return map[string]any{
		"id":           s.ID,
		"kind":         string(s.Kind),
		"title":        s.Title,
		"text":         s.Text,
		"rationale":    s.Rationale,
		"source":       string(s.Source),
		"confidence":   int(s.Confidence),
		"needs_review": s.NeedsReview,
		"attributes":   attrs,
		"acceptance":   s.Acceptance,
	}
}

// Constitution is a generated strategic or feature artifact.
type Constitution struct {
	ID      string           `json:"id"`
	Type    ConstitutionType `json:"type"`
	Kind    StrategicKind    `json:"kind,omitempty"` // strategic only
	Title   string           `json:"title"`
	Version Version          `json:"version"`

	// Priority is P1-P3 for feature constitutions.
	Priority string `json:"priority,omitempty"`

	// EntityKey is the candidate key a feature constitution was built from.
	EntityKey string `json:"entity_key,omitempty"`

	// Sources are the canonical sections the constitution derives from.
	Sources []Label `json:"sources"`

	Principles []Statement `json:"principles"`
	Entities   []Statement `json:"entities"`

	// DependsOn lists ids of feature constitutions this one depends on.
	DependsOn []string `json:"depends_on,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Statements returns principles followed by entities.
func (c Constitution) Statements() []Statement {
	out := make([]Statement, 0, len(c.Principles)+len(c.Entities))
	out = append(out, c.Principles...)
	return append(out, c.Entities...)
}

// Statement looks up a statement by id.
func (c Constitution) Statement(id string) (Statement, bool) {
	for _, s := range c.Statements() {
		if s.ID == id {
			return s, true
		}
	}
	return Statement{}, false
}

// NodeID returns the link graph node id for the constitution.
func (c Constitution) NodeID() string {
	return ConstitutionNodeID(c.ID)
}

// ConstitutionNodeID returns the link graph node id for a constitution id.
func ConstitutionNodeID(id string) string {
	return "constitution:" + id
}

// StatementNodeID returns the link graph node id for a statement.
func StatementNodeID(constitutionID, statementID string) string {
	return "statement:" + constitutionID + "/" + statementID
}

// CanonicalValue implements Canonicaler.
func (c Constitution) CanonicalValue() any {
	sources := make([]string, len(c.Sources))
	for i, l := range c.Sources {
		sources[i] = string(l)
	}
	deps := c.DependsOn
	if deps == nil {
		deps = []string{}
	}
	return map[string]any{
		"id":         c.ID,
		"type":       string(c.Type),
		"kind":       string(c.Kind),
		"title":      c.Title,
		"version":    c.Version.String(),
		"priority":   c.Priority,
		"entity_key": c.EntityKey,
		"sources":    sources,
		"principles": statementsValue(c.Principles),
		"entities":   statementsValue(c.Entities),
		"depends_on": deps,
		"updated_at": c.UpdatedAt,
	}
}

func statementsValue(stmts []Statement) []any {
	out := make([]any, len(stmts))
	for i, s := range stmts {
		out[i] = s
	}
	return out
}
