package syncer

import (
	"regexp"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/bpkit/internal/config"
	"github.com/roach88/bpkit/internal/extract"
	"github.com/roach88/bpkit/internal/ir"
	"github.com/roach88/bpkit/internal/mapper"
)

// SectionChange is one classified deck-side change.
type SectionChange struct {
	Label          ir.Label       `json:"label"`
	Classification ir.ChangeClass `json:"classification"`

	// Breaking is set when a tracked entity was removed or the section was
	// relabeled or dropped.
	Breaking bool `json:"breaking,omitempty"`

	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`

	// Reworded pairs principles whose wording changed. They are neither
	// added nor removed.
	Reworded []Reword `json:"reworded,omitempty"`

	// RelabeledFrom and RelabeledTo name the other side of a relabel.
	RelabeledFrom ir.Label `json:"relabeled_from,omitempty"`
	RelabeledTo   ir.Label `json:"relabeled_to,omitempty"`

	Before string `json:"before"`
	After  string `json:"after"`
	Diff   string `json:"diff"`
}

// Reword is a removed entity key read as the added key that replaced it.
type Reword struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// Bump returns the version bump the change implies.
func (c SectionChange) Bump() ir.Bump {
	return ir.BumpFor(c.Classification, c.Breaking)
}

// StatementChange is one classified edit of a constitution statement.
type StatementChange struct {
	ConstitutionID string         `json:"constitution_id"`
	StatementID    string         `json:"statement_id"`
	Source         ir.Label       `json:"source"`
	Op             string         `json:"op"` // added, removed, modified
	Classification ir.ChangeClass `json:"classification"`
	Breaking       bool           `json:"breaking,omitempty"`
	Before         string         `json:"before,omitempty"`
	After          string         `json:"after,omitempty"`
}

// Statement edit operations.
const (
	OpAdded    = "added"
	OpRemoved  = "removed"
	OpModified = "modified"
)

// deckRecords captures the matched sections of a pass with the entity keys
// extracted from each.
func deckRecords(sections []ir.Section, res *extract.Result) map[ir.Label]SectionRecord {
	entities := map[ir.Label][]string{}
	if res != nil {
		for _, e := range res.Entities {
			entities[e.Section] = append(entities[e.Section], e.Key())
		}
	}
	out := map[ir.Label]SectionRecord{}
	for _, s := range sections {
		if s.Status != ir.StatusMatched {
			continue
		}
		keys := slices.Clone(entities[s.Label])
		if keys == nil {
			keys = []string{}
		}
		sort.Strings(keys)
		body := s.Body()
		out[s.Label] = SectionRecord{
			Hash:     s.Hash(),
			BodyHash: ir.SectionHash("", body),
			Text:     body,
			Entities: slices.Compact(keys),
		}
	}
	return out
}

// classifier turns section and statement diffs into change classes.
type classifier struct {
	stopwords map[string]bool
	minTerms  int
	similar   *mapper.Mapper
	reword    float64
}

func newClassifier(cfg *config.Config) *classifier {
	stop := make(map[string]bool, len(cfg.Stopwords))
	for _, w := range cfg.Stopwords {
		stop[w] = true
	}
	return &classifier{
		stopwords: stop,
		minTerms:  max(cfg.ClarifyingMinTerms, 1),
		similar:   mapper.New(cfg),
		reword:    cfg.RewordSimilarity,
	}
}

// pair matches each removed text to the most similar unused added text at
// or above the reword similarity. match[i] is the added index for
// removed[i], or -1. Equal scores go to the earlier added text.
func (c *classifier) pair(removed, added []string, compatible func(i, j int) bool) []int {
	match := make([]int, len(removed))
	used := make([]bool, len(added))
	for i, r := range removed {
		match[i] = -1
		best := 0.0
		for j, a := range added {
			if used[j] || !compatible(i, j) {
				continue
			}
			if score := c.similar.Similarity(r, a); score >= c.reword && score > best {
				match[i], best = j, score
			}
		}
		if match[i] >= 0 {
			used[match[i]] = true
		}
	}
	return match
}

// rewords pulls reworded principles out of a section's added and removed
// entity keys. Feature keys are never paired: a renamed feature is a
// different constitution.
func (c *classifier) rewords(added, removed []string) (restAdded, restRemoved []string, pairs []Reword) {
	kind := func(key string) (string, string) {
		k, text, _ := strings.Cut(key, ":")
		return k, text
	}
	texts := func(keys []string) []string {
		out := make([]string, len(keys))
		for i, k := range keys {
			_, out[i] = kind(k)
		}
		return out
	}
	principle := string(ir.KindPrinciple)
	match := c.pair(texts(removed), texts(added), func(i, j int) bool {
		ri, _ := kind(removed[i])
		aj, _ := kind(added[j])
		return ri == principle && aj == principle
	})

	paired := make([]bool, len(added))
	for i, j := range match {
		if j < 0 {
			restRemoved = append(restRemoved, removed[i])
			continue
		}
		paired[j] = true
		pairs = append(pairs, Reword{Before: removed[i], After: added[j]})
	}
	for j, a := range added {
		if !paired[j] {
			restAdded = append(restAdded, a)
		}
	}
	return restAdded, restRemoved, pairs
}

// sections compares every canonical label of old and next, in schema order.
func (c *classifier) sections(old, next map[ir.Label]SectionRecord) []SectionChange {
	var out []SectionChange
	for _, label := range ir.CanonicalLabels {
		before, hadBefore := old[label]
		after, hasAfter := next[label]
		if hadBefore == hasAfter && before.Hash == after.Hash {
			continue
		}

		ch := SectionChange{
			Label:  label,
			Before: before.Text,
			After:  after.Text,
			Diff:   lineDiff(before.Text, after.Text),
		}
		ch.Added, ch.Removed, ch.Reworded = c.rewords(setDiff(before.Entities, after.Entities))

		switch {
		case hadBefore && !hasAfter:
			ch.RelabeledTo = findBody(next, before.BodyHash, label)
		case !hadBefore && hasAfter:
			ch.RelabeledFrom = findBody(old, after.BodyHash, label)
		}

		switch {
		case ch.RelabeledTo != "" || ch.RelabeledFrom != "":
			ch.Classification, ch.Breaking = ir.ClassStructural, true
		case len(ch.Removed) > 0, hadBefore && !hasAfter:
			ch.Classification, ch.Breaking = ir.ClassStructural, true
		case len(ch.Added) > 0, !hadBefore && hasAfter:
			ch.Classification = ir.ClassStructural
		case c.newDetail(before.Text, after.Text):
			ch.Classification = ir.ClassClarifying
		default:
			ch.Classification = ir.ClassEditorial
		}
		out = append(out, ch)
	}
	return out
}

// statement classifies an edit of one statement's text. Removal is
// breaking; addition is structural; a rewrite is clarifying when it adds
// detail and editorial otherwise.
func (c *classifier) statement(op, before, after string) (ir.ChangeClass, bool) {
	switch op {
	case OpRemoved:
		return ir.ClassStructural, true
	case OpAdded:
		return ir.ClassStructural, false
	}
	if c.newDetail(before, after) {
		return ir.ClassClarifying, false
	}
	return ir.ClassEditorial, false
}

var numberRe = regexp.MustCompile(`\d+(?:[.,]\d+)*`)

// newDetail reports whether after adds detail to before: a number before
// lacks, or at least minTerms more significant terms gained than lost.
// Swapping words for synonyms gains about as many terms as it loses and
// stays editorial.
func (c *classifier) newDetail(before, after string) bool {
	known := map[string]bool{}
	for _, n := range numberRe.FindAllString(before, -1) {
		known[n] = true
	}
	for _, n := range numberRe.FindAllString(after, -1) {
		if !known[n] {
			return true
		}
	}

	old, next := c.terms(before), c.terms(after)
	gained, lost := 0, 0
	for t := range next {
		if !old[t] {
			gained++
		}
	}
	for t := range old {
		if !next[t] {
			lost++
		}
	}
	return gained-lost >= c.minTerms
}

// terms returns the stems of the significant words of s.
func (c *classifier) terms(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range ir.Words(s) {
		if c.stopwords[w] || len(w) < 3 {
			continue
		}
		out[ir.Stem(w)] = true
	}
	return out
}

// findBody returns the label, other than skip, whose body hash is hash.
func findBody(records map[ir.Label]SectionRecord, hash string, skip ir.Label) ir.Label {
	for _, label := range ir.CanonicalLabels {
		if r, ok := records[label]; ok && label != skip && r.BodyHash == hash {
			return label
		}
	}
	return ""
}

// setDiff returns the elements only in b and only in a. Inputs are sorted.
func setDiff(a, b []string) (added, removed []string) {
	for _, x := range b {
		if _, found := slices.BinarySearch(a, x); !found {
			added = append(added, x)
		}
	}
	for _, x := range a {
		if _, found := slices.BinarySearch(b, x); !found {
			removed = append(removed, x)
		}
	}
	return added, removed
}
