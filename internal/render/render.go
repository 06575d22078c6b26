package render

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/bpkit/internal/ir"
	"github.com/roach88/bpkit/internal/source"
)

// Header is the YAML metadata block of a rendered constitution.
type Header struct {
	ID        string              `yaml:"id"`
	Type      ir.ConstitutionType `yaml:"type"`
	Kind      ir.StrategicKind    `yaml:"kind,omitempty"`
	Title     string              `yaml:"title"`
	Version   string              `yaml:"version"`
	Priority  string              `yaml:"priority,omitempty"`
	EntityKey string              `yaml:"entity_key,omitempty"`
	Sources   []ir.Label          `yaml:"sources,flow"`
	DependsOn []string            `yaml:"depends_on,flow,omitempty"`
	UpdatedAt time.Time           `yaml:"updated_at"`
}

// statementMeta is the metadata comment under each statement heading.
type statementMeta struct {
	ID          string           `yaml:"id"`
	Kind        ir.StatementKind `yaml:"kind"`
	Source      ir.Label         `yaml:"source"`
	Confidence  float64          `yaml:"confidence"`
	NeedsReview bool             `yaml:"needs_review,omitempty"`
}

const (
	headingPrinciples = "## Principles"
	headingEntities   = "## Entities"
	metaPrefix        = "<!-- bpkit "
	metaSuffix        = " -->"
	none              = "_None._"

	labelRationale  = "**Rationale:** "
	labelAcceptance = "**Acceptance:** "
	labelAttributes = "**Attributes:** "
)

// Render returns the Markdown form of c.
func Render(c ir.Constitution) ([]byte, error) {
	sources := c.Sources
	if sources == nil {
		sources = []ir.Label{}
	}
	h := Header{
		ID:        c.ID,
		Type:      c.Type,
		Kind:      c.Kind,
		Title:     c.Title,
		Version:   c.Version.String(),
		Priority:  c.Priority,
		EntityKey: c.EntityKey,
		Sources:   sources,
		DependsOn: c.DependsOn,
		UpdatedAt: c.UpdatedAt.UTC(),
	}

	var body bytes.Buffer
	fmt.Fprintf(&body, "\n# %s\n", c.Title)
	if err := writeStatements(&body, headingPrinciples, c.Principles); err != nil {
		return nil, fmt.Errorf("render %s: %w", c.ID, err)
	}
	if err := writeStatements(&body, headingEntities, c.Entities); err != nil {
		return nil, fmt.Errorf("render %s: %w", c.ID, err)
	}

	out, err := source.WriteFrontMatter(h, body.Bytes())
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", c.ID, err)
	}
	return out, nil
}

func writeStatements(buf *bytes.Buffer, heading string, stmts []ir.Statement) error {
	fmt.Fprintf(buf, "\n%s\n", heading)
	if len(stmts) == 0 {
		fmt.Fprintf(buf, "\n%s\n", none)
		return nil
	}
	for _, s := range stmts {
		meta, err := encodeMeta(statementMeta{
			ID:          s.ID,
			Kind:        s.Kind,
			Source:      s.Source,
			Confidence:  s.Confidence.Float(),
			NeedsReview: s.NeedsReview,
		})
		if err != nil {
			return fmt.Errorf("statement %s: %w", s.ID, err)
		}
		fmt.Fprintf(buf, "\n### %s\n%s%s%s\n", s.Title, metaPrefix, meta, metaSuffix)
		if s.Text != "" {
			fmt.Fprintf(buf, "\n%s\n", s.Text)
		}
		if s.Rationale != "" {
			fmt.Fprintf(buf, "\n%s%s\n", labelRationale, s.Rationale)
		}
		if s.Acceptance != "" {
			fmt.Fprintf(buf, "\n%s%s\n", labelAcceptance, s.Acceptance)
		}
		if len(s.Attributes) > 0 {
			fmt.Fprintf(buf, "\n%s%s\n", labelAttributes, strings.Join(s.Attributes, ", "))
		}
	}
	return nil
}

// encodeMeta renders m as a single-line YAML flow mapping.
func encodeMeta(m statementMeta) (string, error) {
	var n yaml.Node
	if err := n.Encode(m); err != nil {
		return "", err
	}
	n.Style = yaml.FlowStyle
	out, err := yaml.Marshal(&n)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
