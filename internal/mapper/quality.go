package mapper

import (
	"strings"

	"github.com/roach88/bpkit/internal/config"
	"github.com/roach88/bpkit/internal/ir"
)

// Check runs the section quality heuristics over matched sections:
// placeholder tokens, vague phrases, thin bodies and contradictory claims
// made across the deck. All findings are warnings.
func Check(sections []ir.Section, cfg *config.Config) []ir.Diagnostic {
	var diags []ir.Diagnostic

	for _, s := range sections {
		if s.Status != ir.StatusMatched {
			continue
		}
		loc := location(s)
		loc.Section = s.Label
		body := s.Body()
		lower := strings.ToLower(body)

		for _, p := range cfg.Placeholders {
			if strings.Contains(lower, strings.ToLower(p)) {
				d := ir.Warn(ir.CodePlaceholder, loc, "%s contains placeholder %q", s.Label, p)
				d.Content = lineContaining(body, lower, strings.ToLower(p))
				diags = append(diags, d)
			}
		}

		norm := padded(body)
		for _, p := range cfg.VaguePhrases {
			if containsPhrase(norm, p) {
				diags = append(diags, ir.Warn(ir.CodeVague, loc, "%s uses vague phrase %q", s.Label, p))
			}
		}

		if s.Label != ir.LabelCompanyPurpose {
			if n := len(ir.Words(body)); n < cfg.ThinSectionWords {
				diags = append(diags, ir.Warn(ir.CodeThinSection, loc,
					"%s has %d words; at least %d are expected", s.Label, n, cfg.ThinSectionWords))
			}
		}
	}

	return append(diags, contradictions(sections, cfg.Contradictions)...)
}

// contradictions reports each configured pair whose two terms both appear
// in the deck, located at the first section mentioning the second term.
func contradictions(sections []ir.Section, pairs [][]string) []ir.Diagnostic {
	var diags []ir.Diagnostic
	for _, pair := range pairs {
		if len(pair) != 2 {
			continue
		}
		a, aok := firstMention(sections, pair[0])
		b, bok := firstMention(sections, pair[1])
		if !aok || !bok {
			continue
		}
		loc := location(b)
		loc.Section = b.Label
		diags = append(diags, ir.Warn(ir.CodeContradiction, loc,
			"deck claims both %q (%s) and %q (%s)", pair[0], a.Label, pair[1], b.Label))
	}
	return diags
}

func firstMention(sections []ir.Section, term string) (ir.Section, bool) {
	for _, s := range sections {
		if s.Status == ir.StatusMatched && containsPhrase(padded(s.Heading+" "+s.Body()), term) {
			return s, true
		}
	}
	return ir.Section{}, false
}

// padded returns the normalized word form of s surrounded by spaces, so
// phrase lookups match whole words only.
func padded(s string) string {
	return " " + ir.NormalizeTitle(s) + " "
}

func containsPhrase(padded, phrase string) bool {
	p := ir.NormalizeTitle(phrase)
	return p != "" && strings.Contains(padded, " "+p+" ")
}

func lineContaining(body, lower, needle string) string {
	i := strings.Index(lower, needle)
	if i < 0 || len(lower) != len(body) {
		return body
	}
	start := strings.LastIndexByte(body[:i], '\n') + 1
	end := strings.IndexByte(body[i:], '\n')
	if end < 0 {
		return body[start:]
	}
	return body[start : i+end]
}
