package mapper

import "github.com/roach88/bpkit/internal/ir"

// tokenSet is a set of stemmed heading tokens.
type tokenSet map[string]struct{}

// tokens folds, strips punctuation, drops stopwords and stems s.
func (m *Mapper) tokens(s string) tokenSet {
	ts := tokenSet{}
	for _, w := range ir.Words(s) {
		if m.stopwords[w] {
			continue
		}
		ts[ir.Stem(w)] = struct{}{}
	}
	return ts
}

// jaccard is |a ∩ b| / |a ∪ b|; zero when either set is empty.
func jaccard(a, b tokenSet) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// Similarity is the Jaccard similarity of the stemmed, stopword-filtered
// tokens of a and b.
func (m *Mapper) Similarity(a, b string) float64 {
	return jaccard(m.tokens(a), m.tokens(b))
}
