package ir

// Label is one of the ten canonical section identifiers.
type Label string

const (
	LabelCompanyPurpose  Label = "company-purpose"
	LabelProblem         Label = "problem"
	LabelSolution        Label = "solution"
	LabelMarketPotential Label = "market-potential"
	LabelCompetition     Label = "competition"
	LabelBusinessModel   Label = "business-model"
	LabelFinancials      Label = "financials"
	LabelTeam            Label = "team"
	LabelVision          Label = "vision"
	LabelWhyNow          Label = "why-now"
)

// CanonicalLabels lists the canonical labels in schema order.
// Schema order breaks ties when one heading scores equally against two labels.
var CanonicalLabels = []Label{
	LabelCompanyPurpose,
	LabelProblem,
	LabelSolution,
	LabelMarketPotential,
	LabelCompetition,
	LabelBusinessModel,
	LabelFinancials,
	LabelTeam,
	LabelVision,
	LabelWhyNow,
}

// IsCanonical reports whether l is one of the canonical labels.
func (l Label) IsCanonical() bool {
	for _, c := range CanonicalLabels {
		if c == l {
			return true
		}
	}
	return false
}

// SectionStatus is the outcome of mapping a heading onto the schema.
type SectionStatus string

const (
	StatusMatched      SectionStatus = "matched"
	StatusDuplicate    SectionStatus = "duplicate"
	StatusMissing      SectionStatus = "missing"
	StatusUnrecognized SectionStatus = "unrecognized"
)

// Section is a contiguous run of blocks under one heading, labeled against
// the canonical schema.
type Section struct {
	// Index is the section's position in the mapper output.
	Index int `json:"index"`

	// Label is the assigned canonical label. Empty for unrecognized sections.
	Label Label `json:"label,omitempty"`

	// Heading is the raw heading text. Empty for missing sections.
	Heading string `json:"heading,omitempty"`

	Status SectionStatus `json:"status"`

	// Score is the similarity of the heading to Label.
	Score Confidence `json:"score"`

	// DuplicateOf is the Index of the matched section this one duplicates, or -1.
	DuplicateOf int `json:"duplicate_of"`

	// Blocks are the body blocks (the heading itself excluded).
	Blocks []Block `json:"blocks,omitempty"`

	// Range covers the heading and the body.
	Range SourceRange `json:"range"`
}

// Body returns the section body as text.
func (s Section) Body() string {
	return JoinBlocks(s.Blocks)
}

// Hash returns the content hash of the section (label + body).
func (s Section) Hash() string {
	return SectionHash(s.Label, s.Body())
}

// NodeID returns the link graph node id for this section.
func (s Section) NodeID() string {
	return SectionNodeID(s.Label)
}

// SectionNodeID returns the link graph node id for a canonical section.
func SectionNodeID(l Label) string {
	return "section:" + string(l)
}
