package ir

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// NormalizeSpace collapses runs of whitespace and trims the ends.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Words splits s into case-folded, NFC-normalized words. Punctuation is a
// separator except for apostrophes inside a word, which are dropped.
func Words(s string) []string {
	// Casers are stateful; one per call keeps Words safe for concurrent use.
	s = cases.Fold().String(norm.NFC.String(s))
	s = strings.NewReplacer("'", "", "’", "").Replace(s)
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// NormalizeTitle is the comparison form of a title: folded words joined by
// single spaces.
func NormalizeTitle(s string) string {
	return strings.Join(Words(s), " ")
}

// Slug returns a kebab-case identifier built from at most maxWords words.
// maxWords <= 0 keeps all words.
func Slug(s string, maxWords int) string {
	w := Words(s)
	if maxWords > 0 && len(w) > maxWords {
		w = w[:maxWords]
	}
	return strings.Join(w, "-")
}

// Stem reduces a folded word to a crude stem so inflections of vocabulary
// terms match: "booking", "bookings" and "book" all stem to "book".
func Stem(w string) string {
	switch {
	case strings.HasSuffix(w, "sses"):
		w = w[:len(w)-2]
	case len(w) > 4 && strings.HasSuffix(w, "ies"):
		w = w[:len(w)-3] + "y"
	case len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss"):
		w = w[:len(w)-1]
	}
	switch {
	case len(w) > 5 && strings.HasSuffix(w, "ing"):
		w = w[:len(w)-3]
	case len(w) > 4 && strings.HasSuffix(w, "ed"):
		w = w[:len(w)-2]
	}
	if len(w) > 3 && strings.HasSuffix(w, "e") {
		w = w[:len(w)-1]
	}
	return w
}
