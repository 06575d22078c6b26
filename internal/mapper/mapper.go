// Package mapper labels the heading hierarchy of a Document against the
// canonical ten-section schema.
//
// Every heading becomes a Section. Headings that match no label stay in the
// output as unrecognized, repeated labels are flagged as duplicates with a
// back-reference, and labels with no heading are appended as missing. No
// block of the document is dropped: content outside any section is carried
// in a diagnostic.
package mapper

import (
	"fmt"

	"github.com/roach88/bpkit/internal/config"
	"github.com/roach88/bpkit/internal/ir"
)

// Mapper scores headings against the canonical labels.
// It is immutable after New and safe for concurrent use.
type Mapper struct {
	cfg       *config.Config
	stopwords map[string]bool
	phrases   map[ir.Label][]tokenSet
}

// New builds a Mapper from the synonym table and stopwords in cfg.
func New(cfg *config.Config) *Mapper {
	m := &Mapper{
		cfg:       cfg,
		stopwords: make(map[string]bool, len(cfg.Stopwords)),
		phrases:   make(map[ir.Label][]tokenSet, len(ir.CanonicalLabels)),
	}
	for _, w := range cfg.Stopwords {
		for _, t := range ir.Words(w) {
			m.stopwords[t] = true
		}
	}
	for _, l := range ir.CanonicalLabels {
		phrases := append([]string{string(l)}, cfg.Synonyms[string(l)]...)
		for _, p := range phrases {
			if ts := m.tokens(p); len(ts) > 0 {
				m.phrases[l] = append(m.phrases[l], ts)
			}
		}
	}
	return m
}

// Map is shorthand for New(cfg).Map(doc).
func Map(doc *ir.Document, cfg *config.Config) ([]ir.Section, []ir.Diagnostic) {
	return New(cfg).Map(doc)
}

// Score returns the best canonical label for heading and its similarity.
// Equal scores resolve to the label listed first in the schema. An empty
// label means no phrase shares a token with the heading.
func (m *Mapper) Score(heading string) (ir.Label, float64) {
	ht := m.tokens(heading)
	var best ir.Label
	var bestScore float64
	for _, l := range ir.CanonicalLabels {
		for _, p := range m.phrases[l] {
			if s := jaccard(ht, p); s > bestScore {
				best, bestScore = l, s
			}
		}
	}
	return best, bestScore
}

// Map splits doc into sections and labels each one.
func (m *Mapper) Map(doc *ir.Document) ([]ir.Section, []ir.Diagnostic) {
	var diags []ir.Diagnostic

	level, start := m.sectionLevel(doc.Blocks)
	if start < 0 {
		diag := ir.Warn(ir.CodeNoHeadings, ir.Location{}, "document %s has no section headings", doc.Source)
		diag.Content = ir.JoinBlocks(doc.Blocks)
		diags = append(diags, diag)
	} else if start > 0 {
		pre := doc.Blocks[:start]
		diag := ir.Info(ir.CodeSectionPreamble, ir.Location{Line: pre[0].Range.StartLine, EndLine: pre[len(pre)-1].Range.EndLine},
			"%d block(s) precede the first section heading", len(pre))
		diag.Content = ir.JoinBlocks(pre)
		diags = append(diags, diag)
	}

	var sections []ir.Section
	if start >= 0 {
		sections = m.split(doc.Blocks[start:], level)
	}

	first := make(map[ir.Label]int)
	for i := range sections {
		s := &sections[i]
		label, score := m.Score(s.Heading)
		s.Score = ir.NewConfidence(score)
		loc := location(*s)

		if label == "" || score < m.cfg.AcceptanceThreshold {
			s.Status = ir.StatusUnrecognized
			diag := ir.Warn(ir.CodeUnrecognized, loc, "heading %q matches no canonical section (best score %.2f)", s.Heading, score)
			diag.Content = sectionText(*s)
			diags = append(diags, diag)
			continue
		}

		s.Label = label
		loc.Section = label
		if prev, ok := first[label]; ok {
			s.Status = ir.StatusDuplicate
			s.DuplicateOf = prev
			var diag ir.Diagnostic
			if m.cfg.DuplicatePolicy == config.DuplicateReject {
				diag = ir.Errorf(ir.CodeLabelCollision, loc, "heading %q collides with %q for label %s",
					s.Heading, sections[prev].Heading, label)
			} else {
				diag = ir.Warn(ir.CodeSectionDuplicate, loc, "heading %q duplicates %q (label %s); the first one is used",
					s.Heading, sections[prev].Heading, label)
			}
			diag.Content = sectionText(*s)
			diags = append(diags, diag)
			continue
		}
		s.Status = ir.StatusMatched
		first[label] = i
	}

	for _, l := range ir.CanonicalLabels {
		if _, ok := first[l]; ok {
			continue
		}
		sections = append(sections, ir.Section{
			Index:       len(sections),
			Label:       l,
			Status:      ir.StatusMissing,
			DuplicateOf: -1,
		})
		diags = append(diags, ir.Warn(ir.CodeSectionMissing, ir.Location{Section: l}, "no heading maps to %s", l))
	}

	return sections, diags
}

// split cuts blocks at every heading of the section level. blocks[0] is
// always such a heading. Deeper headings stay inside their section.
func (m *Mapper) split(blocks []ir.Block, level int) []ir.Section {
	var sections []ir.Section
	for _, b := range blocks {
		if b.Kind == ir.BlockHeading && b.Level <= level {
			sections = append(sections, ir.Section{
				Index:       len(sections),
				Heading:     b.Text,
				DuplicateOf: -1,
				Range:       b.Range,
			})
			continue
		}
		s := &sections[len(sections)-1]
		s.Blocks = append(s.Blocks, b)
		s.Range = s.Range.Span(b.Range)
	}
	return sections
}

// sectionLevel picks the heading level that delimits sections and the index
// of the first such heading, or -1 when there are no headings. The
// shallowest level is used unless it holds a single leading heading above
// deeper ones that matches no canonical label; that heading is the deck
// title and the next level down is used.
func (m *Mapper) sectionLevel(blocks []ir.Block) (level, start int) {
	counts := map[int]int{}
	levels := []int{}
	for _, b := range blocks {
		if b.Kind != ir.BlockHeading {
			continue
		}
		if counts[b.Level] == 0 {
			levels = append(levels, b.Level)
		}
		counts[b.Level]++
	}
	if len(levels) == 0 {
		return 0, -1
	}

	top, next := levels[0], 0
	for _, l := range levels {
		if l < top {
			top = l
		}
	}
	for _, l := range levels {
		if l > top && (next == 0 || l < next) {
			next = l
		}
	}

	level = top
	if counts[top] == 1 && next != 0 {
		for _, b := range blocks {
			if b.Kind == ir.BlockHeading {
				if _, score := m.Score(b.Text); b.Level == top && score < m.cfg.AcceptanceThreshold {
					level = next
				}
				break
			}
		}
	}

	for i, b := range blocks {
		if b.Kind == ir.BlockHeading && b.Level == level {
			return level, i
		}
	}
	return level, -1
}

func location(s ir.Section) ir.Location {
	return ir.Location{Heading: s.Heading, Line: s.Range.StartLine, EndLine: s.Range.EndLine}
}

// sectionText renders a section with its heading, for diagnostics that must
// carry the content they flag.
func sectionText(s ir.Section) string {
	if len(s.Blocks) == 0 {
		return s.Heading
	}
	return fmt.Sprintf("%s\n%s", s.Heading, s.Body())
}
