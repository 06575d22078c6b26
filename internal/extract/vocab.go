package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/bpkit/internal/config"
	"github.com/roach88/bpkit/internal/ir"
)

// vocabulary is the stemmed capability vocabulary and modal table.
type vocabulary struct {
	verbs     map[string]bool
	nouns     map[string]bool
	stopwords map[string]bool
	modals    []config.Modal
}

func newVocabulary(cfg *config.Config) vocabulary {
	v := vocabulary{
		verbs:     stems(cfg.ActionVerbs),
		nouns:     stems(cfg.CapabilityNouns),
		stopwords: map[string]bool{},
		modals:    cfg.Modals,
	}
	for _, w := range cfg.Stopwords {
		v.stopwords[w] = true
	}
	return v
}

func stems(words []string) map[string]bool {
	out := make(map[string]bool, len(words))
	for _, w := range words {
		for _, t := range ir.Words(w) {
			out[ir.Stem(t)] = true
		}
	}
	return out
}

// match returns the vocabulary terms found in words, in order of first
// appearance, and the index of the first action verb or -1.
func (v vocabulary) match(words []string) (terms []string, verbAt int) {
	verbAt = -1
	seen := map[string]bool{}
	for i, w := range words {
		st := ir.Stem(w)
		isVerb, isNoun := v.verbs[st], v.nouns[st]
		if isVerb && verbAt < 0 {
			verbAt = i
		}
		if (isVerb || isNoun) && !seen[st] {
			seen[st] = true
			terms = append(terms, w)
		}
	}
	return terms, verbAt
}

// modal returns the strongest modal phrase in text. Equal strengths resolve
// to the phrase listed first.
func (v vocabulary) modal(text string) (config.Modal, bool) {
	padded := " " + ir.NormalizeTitle(text) + " "
	var best config.Modal
	found := false
	for _, m := range v.modals {
		p := ir.NormalizeTitle(m.Phrase)
		if p == "" || !strings.Contains(padded, " "+p+" ") {
			continue
		}
		if !found || m.Strength > best.Strength {
			best, found = m, true
		}
	}
	return best, found
}

var numericRe = regexp.MustCompile(`\d+(?:[.,]\d+)?\s*(?:%|ms\b|s\b|sec\b|seconds?\b|minutes?\b|hours?\b|days?\b|x\b)|[<>≤≥]\s*\d|\$\s?\d`)

// hasNumericConstraint reports whether text states a measurable bound such
// as "< 2 seconds", "99.9%" or "$10".
func hasNumericConstraint(text string) bool {
	return numericRe.MatchString(text)
}

var sentenceEnd = regexp.MustCompile(`[.!?]+(?:\s+|$)`)

// sentences splits prose at terminal punctuation followed by space.
func sentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start:loc[1]]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

var titlePrefix = regexp.MustCompile(`(?i)^(feature|capability|component)\s*:\s*`)

// featureTitle derives a short name from a list item: the lead before a
// colon or dash, at most six words, title-cased.
func featureTitle(item string) string {
	item = titlePrefix.ReplaceAllString(strings.TrimSpace(item), "")
	for _, sep := range []string{": ", " - ", " – ", " — "} {
		if i := strings.Index(item, sep); i > 0 {
			item = item[:i]
			break
		}
	}
	words := strings.Fields(strings.Map(func(r rune) rune {
		switch {
		case r == '-' || r == '\'' || r == '’':
			return r
		case strings.ContainsRune(".,;:!?()[]{}\"*_`", r):
			return ' '
		}
		return r
	}, item))
	if len(words) > 6 {
		words = words[:6]
	}
	return titleCase(strings.Join(words, " "))
}

// patternTitle names a sentence-pattern feature by its action verb and up
// to two following content words.
func (v vocabulary) patternTitle(words []string, verbAt int) string {
	parts := []string{words[verbAt]}
	for _, w := range words[verbAt+1:] {
		if len(parts) == 3 {
			break
		}
		if v.stopwords[w] {
			if len(parts) > 1 {
				break
			}
			continue
		}
		parts = append(parts, w)
	}
	return titleCase(strings.Join(parts, " "))
}

// principleTitle is the statement itself without trailing punctuation.
func principleTitle(text string) string {
	return strings.TrimRight(ir.NormalizeSpace(text), ".!?;: ")
}

func titleCase(s string) string {
	// Casers are stateful; one per call keeps extraction safe for concurrent use.
	return cases.Title(language.English, cases.NoLower).String(s)
}
