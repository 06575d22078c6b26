package render

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/bpkit/internal/ir"
	"github.com/roach88/bpkit/internal/source"
)

// ErrNotConstitution is returned for content without a constitution header.
var ErrNotConstitution = errors.New("render: not a constitution")

// Parse reads a rendered constitution back. Statements keep the ids in
// their metadata comments; prose between statements is attributed to the
// statement above it.
func Parse(content []byte) (ir.Constitution, error) {
	content = source.NormalizeNewlines(content)
	meta, body, _, err := source.SplitFrontMatter(content)
	if errors.Is(err, source.ErrNoFrontMatter) {
		return ir.Constitution{}, ErrNotConstitution
	}
	if err != nil {
		return ir.Constitution{}, fmt.Errorf("parse constitution: %w", err)
	}

	var h Header
	if err := yaml.Unmarshal(meta, &h); err != nil {
		return ir.Constitution{}, fmt.Errorf("parse constitution header: %w", err)
	}
	if h.ID == "" {
		return ir.Constitution{}, fmt.Errorf("%w: header has no id", ErrNotConstitution)
	}
	if h.Type != ir.TypeStrategic && h.Type != ir.TypeFeature {
		return ir.Constitution{}, fmt.Errorf("parse %s: unknown type %q", h.ID, h.Type)
	}
	version, err := ir.ParseVersion(h.Version)
	if err != nil {
		return ir.Constitution{}, fmt.Errorf("parse %s: %w", h.ID, err)
	}

	c := ir.Constitution{
		ID:         h.ID,
		Type:       h.Type,
		Kind:       h.Kind,
		Title:      h.Title,
		Version:    version,
		Priority:   h.Priority,
		EntityKey:  h.EntityKey,
		Sources:    h.Sources,
		DependsOn:  h.DependsOn,
		UpdatedAt:  h.UpdatedAt.UTC(),
		Principles: []ir.Statement{},
		Entities:   []ir.Statement{},
	}
	if c.Sources == nil {
		c.Sources = []ir.Label{}
	}

	p := &parser{seen: map[string]bool{}}
	lines := strings.Split(string(body), "\n")
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		switch {
		case line == headingPrinciples:
			p.flush()
			p.target = &c.Principles
		case line == headingEntities:
			p.flush()
			p.target = &c.Entities
		case strings.HasPrefix(line, "### ") && i+1 < len(lines) && strings.HasPrefix(lines[i+1], metaPrefix):
			p.flush()
			end := i + 1
			for end < len(lines) && !strings.HasSuffix(lines[end], metaSuffix) {
				end++
			}
			if end == len(lines) {
				return ir.Constitution{}, fmt.Errorf("parse %s: unterminated metadata for %q", h.ID, line)
			}
			raw := strings.Join(lines[i+1:end+1], " ")
			if err := p.start(strings.TrimPrefix(line, "### "), raw); err != nil {
				return ir.Constitution{}, fmt.Errorf("parse %s: %w", h.ID, err)
			}
			i = end
		case strings.TrimSpace(line) == "":
			p.endParagraph()
		case p.cur != nil:
			p.para = append(p.para, line)
		}
	}
	p.flush()
	return c, nil
}

type parser struct {
	target *[]ir.Statement
	cur    *ir.Statement
	paras  []string
	para   []string
	seen   map[string]bool
}

func (p *parser) start(title, metaLine string) error {
	if p.target == nil {
		return fmt.Errorf("statement %q outside the principles and entities sections", title)
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(metaLine, metaPrefix), metaSuffix)
	var m statementMeta
	if err := yaml.Unmarshal([]byte(raw), &m); err != nil {
		return fmt.Errorf("statement %q metadata: %w", title, err)
	}
	if m.ID == "" {
		return fmt.Errorf("statement %q has no id", title)
	}
	if p.seen[m.ID] {
		return fmt.Errorf("duplicate statement id %s", m.ID)
	}
	switch m.Kind {
	case ir.StatementPrinciple, ir.StatementStory, ir.StatementEntity, ir.StatementCriterion:
	default:
		return fmt.Errorf("statement %s: unknown kind %q", m.ID, m.Kind)
	}
	p.seen[m.ID] = true
	p.cur = &ir.Statement{
		ID:          m.ID,
		Kind:        m.Kind,
		Title:       title,
		Source:      m.Source,
		Confidence:  ir.NewConfidence(m.Confidence),
		NeedsReview: m.NeedsReview,
	}
	return nil
}

func (p *parser) endParagraph() {
	if len(p.para) > 0 {
		p.paras = append(p.paras, strings.Join(p.para, "\n"))
		p.para = nil
	}
}

// flush closes the current statement and appends it to its section.
func (p *parser) flush() {
	p.endParagraph()
	if p.cur == nil {
		return
	}
	var text []string
	for _, para := range p.paras {
		switch {
		case strings.HasPrefix(para, labelRationale):
			p.cur.Rationale = strings.TrimPrefix(para, labelRationale)
		case strings.HasPrefix(para, labelAcceptance):
			p.cur.Acceptance = strings.TrimPrefix(para, labelAcceptance)
		case strings.HasPrefix(para, labelAttributes):
			for _, a := range strings.Split(strings.TrimPrefix(para, labelAttributes), ",") {
				if a = strings.TrimSpace(a); a != "" {
					p.cur.Attributes = append(p.cur.Attributes, a)
				}
			}
		default:
			text = append(text, para)
		}
	}
	p.cur.Text = strings.Join(text, "\n\n")
	*p.target = append(*p.target, *p.cur)
	p.cur, p.paras = nil, nil
}
