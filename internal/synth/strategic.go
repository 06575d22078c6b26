package synth

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/bpkit/internal/graph"
	"github.com/roach88/bpkit/internal/ir"
)

// SynthesizeStrategic builds the four strategic constitutions in fixed
// order. Each takes the principle candidates of its source sections; a
// source section with none contributes its lead sentence, flagged for
// review.
func (s *Synthesizer) SynthesizeStrategic(in Input, matched map[ir.Label]ir.Section, g *graph.Graph) ([]ir.Constitution, []ir.Diagnostic) {
	var diags []ir.Diagnostic
	principles := in.Extraction.Principles()

	// Fallbacks are computed once per section so team contributes the same
	// statement to company and business.
	fallbacks := map[ir.Label]*ir.Statement{}

	out := make([]ir.Constitution, 0, len(ir.StrategicKinds))
	for _, kind := range ir.StrategicKinds {
		c := ir.Constitution{
			ID:         ir.StrategicID(kind),
			Type:       ir.TypeStrategic,
			Kind:       kind,
			Title:      cases.Title(language.English).String(string(kind)) + " Constitution",
			Version:    ir.Baseline,
			Sources:    []ir.Label{},
			Principles: []ir.Statement{},
			Entities:   []ir.Statement{},
			UpdatedAt:  in.UpdatedAt,
		}
		g.AddNode(graph.Node{ID: c.NodeID(), Kind: graph.NodeConstitution, Owner: c.ID})

		ids := idSet{}
		for _, label := range ir.StrategicSources[kind] {
			sec, ok := matched[label]
			if !ok {
				continue
			}
			c.Sources = append(c.Sources, label)
			g.AddEdge(c.NodeID(), sec.NodeID(), graph.DerivesFrom)

			found := false
			for _, p := range principles {
				if p.Section != label {
					continue
				}
				found = true
				c.Principles = append(c.Principles, ir.Statement{
					ID:          ids.unique(ir.Slug(p.Title, 5)),
					Kind:        ir.StatementPrinciple,
					Title:       p.Title,
					Text:        p.Body,
					Source:      label,
					Confidence:  p.Confidence,
					NeedsReview: p.LowConfidence,
				})
			}
			if found {
				continue
			}

			fb, seen := fallbacks[label]
			if !seen {
				fb = fallbackPrinciple(sec)
				fallbacks[label] = fb
				if fb != nil {
					d := ir.Warn(ir.CodePrincipleFallback, ir.Location{Section: label, Line: sec.Range.StartLine},
						"%s states no principle; its lead sentence is used and needs review", label)
					d.Content = fb.Text
					diags = append(diags, d)
				}
			}
			if fb != nil {
				stmt := *fb
				stmt.ID = ids.unique(stmt.ID)
				c.Principles = append(c.Principles, stmt)
			}
		}

		for _, stmt := range c.Principles {
			link(g, c, stmt, "")
		}
		out = append(out, c)
	}
	return out, diags
}

// fallbackPrinciple returns the first sentence or list item of a section,
// or nil for an empty section.
func fallbackPrinciple(sec ir.Section) *ir.Statement {
	for _, b := range sec.Blocks {
		var lead string
		switch b.Kind {
		case ir.BlockParagraph:
			lead = firstSentence(b.Text)
		case ir.BlockListItem:
			lead = b.Text
		}
		lead = ir.NormalizeSpace(lead)
		if lead == "" {
			continue
		}
		title := strings.TrimRight(lead, ".!?;: ")
		return &ir.Statement{
			ID:          ir.Slug(title, 5),
			Kind:        ir.StatementPrinciple,
			Title:       title,
			Text:        lead,
			Source:      sec.Label,
			NeedsReview: true,
		}
	}
	return nil
}

func firstSentence(text string) string {
	for i, r := range text {
		if (r == '.' || r == '!' || r == '?') && (i+1 == len(text) || text[i+1] == ' ') {
			return text[:i+1]
		}
	}
	return text
}
