package extract

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/bpkit/internal/config"
	"github.com/roach88/bpkit/internal/ir"
)

// Extractor turns sections into candidate entities.
// It is immutable after New and safe for concurrent use.
type Extractor struct {
	cfg   *config.Config
	vocab vocabulary
}

// New creates an Extractor for cfg.
func New(cfg *config.Config) *Extractor {
	return &Extractor{cfg: cfg, vocab: newVocabulary(cfg)}
}

// Extract returns the deduplicated candidates of one section in source
// order. Only matched sections yield candidates.
func (e *Extractor) Extract(s ir.Section) []ir.CandidateEntity {
	out, _ := merge(e.candidates(s))
	return out
}

// candidates runs both heuristics over s without deduplication.
func (e *Extractor) candidates(s ir.Section) []ir.CandidateEntity {
	if s.Status != ir.StatusMatched {
		return nil
	}
	featureSection := e.cfg.FeatureLabel(s.Label)

	var out []ir.CandidateEntity
	for _, b := range s.Blocks {
		switch b.Kind {
		case ir.BlockListItem:
			if featureSection {
				if c, ok := e.listFeature(s, b); ok {
					out = append(out, c)
				}
			}
			if c, ok := e.principle(s, b, b.Text, ir.MethodList); ok {
				out = append(out, c)
			}
		case ir.BlockParagraph:
			for _, sent := range sentences(b.Text) {
				if len([]rune(sent)) < e.cfg.MinSentenceLength {
					continue
				}
				if featureSection {
					if c, ok := e.patternFeature(s, b, sent); ok {
						out = append(out, c)
					}
				}
				if c, ok := e.principle(s, b, sent, ir.MethodPattern); ok {
					out = append(out, c)
				}
			}
		}
	}
	return out
}

// listFeature scores a list item by how much capability vocabulary it
// carries: none is half strength, two or more terms is full strength.
func (e *Extractor) listFeature(s ir.Section, b ir.Block) (ir.CandidateEntity, bool) {
	title := featureTitle(b.Text)
	if ir.NormalizeTitle(title) == "" {
		return ir.CandidateEntity{}, false
	}
	terms, _ := e.vocab.match(ir.Words(b.Text))
	strength := 0.5 + 0.25*float64(min(len(terms), 2))
	return e.candidate(s, b, ir.KindFeature, ir.MethodList, title, b.Text, e.cfg.ListWeight*strength, terms), true
}

// patternFeature accepts a sentence naming an action verb followed by at
// least one more word; strength grows with vocabulary matches up to the
// configured saturation.
func (e *Extractor) patternFeature(s ir.Section, b ir.Block, sent string) (ir.CandidateEntity, bool) {
	words := ir.Words(sent)
	terms, verbAt := e.vocab.match(words)
	if verbAt < 0 || verbAt == len(words)-1 {
		return ir.CandidateEntity{}, false
	}
	strength := float64(len(terms)) / float64(max(e.cfg.PatternSaturation, 1))
	title := e.vocab.patternTitle(words, verbAt)
	return e.candidate(s, b, ir.KindFeature, ir.MethodPattern, title, sent, e.cfg.PatternWeight*min(strength, 1), terms), true
}

// principle accepts text carrying a modal phrase. Its strength is the
// modal's, boosted when the text states a numeric constraint.
func (e *Extractor) principle(s ir.Section, b ir.Block, text string, method ir.Method) (ir.CandidateEntity, bool) {
	m, ok := e.vocab.modal(text)
	if !ok {
		return ir.CandidateEntity{}, false
	}
	weight := e.cfg.PatternWeight
	if method == ir.MethodList {
		weight = e.cfg.ListWeight
	}
	score := weight * m.Strength
	if hasNumericConstraint(text) {
		score += e.cfg.NumericBoost
	}
	return e.candidate(s, b, ir.KindPrinciple, method, principleTitle(text), text, score, []string{ir.NormalizeTitle(m.Phrase)}), true
}

func (e *Extractor) candidate(s ir.Section, b ir.Block, kind ir.EntityKind, method ir.Method, title, body string, score float64, terms []string) ir.CandidateEntity {
	conf := ir.NewConfidence(score)
	return ir.CandidateEntity{
		Kind:          kind,
		Title:         title,
		Body:          ir.NormalizeSpace(body),
		Confidence:    conf,
		Method:        method,
		Section:       s.Label,
		SectionIndex:  s.Index,
		LowConfidence: conf < ir.NewConfidence(e.cfg.ConfidenceFloor),
		Terms:         terms,
		Range:         b.Range,
	}
}

// Options tunes ExtractAll.
type Options struct {
	// Parallel is the number of sections extracted concurrently.
	// Values below 2 extract sequentially.
	Parallel int

	// Logger receives debug output. Defaults to slog.Default().
	Logger *slog.Logger
}

// Result is the deck-wide extraction outcome.
type Result struct {
	// Entities in source order, deduplicated and capped.
	Entities []ir.CandidateEntity

	// Excluded lists features cut by the ceiling, highest confidence first.
	Excluded []ir.CandidateEntity

	Diagnostics []ir.Diagnostic
}

// Features returns the feature entities of r in source order.
func (r *Result) Features() []ir.CandidateEntity {
	return r.ofKind(ir.KindFeature)
}

// Principles returns the principle entities of r in source order.
func (r *Result) Principles() []ir.CandidateEntity {
	return r.ofKind(ir.KindPrinciple)
}

func (r *Result) ofKind(k ir.EntityKind) []ir.CandidateEntity {
	var out []ir.CandidateEntity
	for _, c := range r.Entities {
		if c.Kind == k {
			out = append(out, c)
		}
	}
	return out
}

// ExtractAll extracts every section, merges duplicates across the deck and
// applies the feature ceiling. The only error is context cancellation.
func (e *Extractor) ExtractAll(ctx context.Context, sections []ir.Section, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	perSection := make([][]ir.CandidateEntity, len(sections))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(opts.Parallel, 1))
	for i := range sections {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			perSection[i] = e.candidates(sections[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	var all []ir.CandidateEntity
	for i, cs := range perSection {
		logger.Debug("section extracted", "section", sections[i].Label, "candidates", len(cs))
		all = append(all, cs...)
	}

	res := &Result{}
	merged, notes := merge(all)
	res.Diagnostics = append(res.Diagnostics, notes...)

	res.Entities, res.Excluded = e.applyCeiling(merged)
	if len(res.Excluded) > 0 {
		res.Diagnostics = append(res.Diagnostics, truncation(res.Excluded, e.cfg.FeatureCeiling))
	}

	for _, c := range res.Entities {
		if c.LowConfidence {
			d := ir.Warn(ir.CodeLowConfidence, entityLocation(c),
				"%s %q has confidence %s, below %.2f", c.Kind, c.Title, c.Confidence, e.cfg.ConfidenceFloor)
			d.Content = c.Body
			res.Diagnostics = append(res.Diagnostics, d)
		}
	}

	logger.Debug("extraction complete",
		"entities", len(res.Entities),
		"features", len(res.Features()),
		"excluded", len(res.Excluded))
	return res, nil
}

// merge deduplicates by kind plus normalized title. The highest confidence
// wins and the earliest wins ties; the survivor keeps the position of the
// first occurrence. Each merged-away candidate yields an info diagnostic.
func merge(cands []ir.CandidateEntity) ([]ir.CandidateEntity, []ir.Diagnostic) {
	var out []ir.CandidateEntity
	var diags []ir.Diagnostic
	at := map[string]int{}
	for _, c := range cands {
		key := c.Key()
		i, seen := at[key]
		if !seen {
			at[key] = len(out)
			out = append(out, c)
			continue
		}
		loser := c
		if c.Confidence > out[i].Confidence {
			loser, out[i] = out[i], c
		}
		d := ir.Info(ir.CodeEntityMerged, entityLocation(loser),
			"%s %q merged into the %s candidate from %s", loser.Kind, loser.Title, out[i].Method, out[i].Section)
		d.Content = loser.Body
		diags = append(diags, d)
	}
	return out, diags
}

// applyCeiling keeps the FeatureCeiling highest-confidence features (source
// order breaks ties) and returns the rest as excluded.
func (e *Extractor) applyCeiling(cands []ir.CandidateEntity) (kept, excluded []ir.CandidateEntity) {
	var features []int
	for i, c := range cands {
		if c.Kind == ir.KindFeature {
			features = append(features, i)
		}
	}
	if e.cfg.FeatureCeiling <= 0 || len(features) <= e.cfg.FeatureCeiling {
		return cands, nil
	}

	ranked := append([]int(nil), features...)
	sort.SliceStable(ranked, func(a, b int) bool {
		return cands[ranked[a]].Confidence > cands[ranked[b]].Confidence
	})
	drop := map[int]bool{}
	for _, i := range ranked[e.cfg.FeatureCeiling:] {
		drop[i] = true
		excluded = append(excluded, cands[i])
	}
	for i, c := range cands {
		if !drop[i] {
			kept = append(kept, c)
		}
	}
	return kept, excluded
}

func truncation(excluded []ir.CandidateEntity, ceiling int) ir.Diagnostic {
	lines := make([]string, len(excluded))
	for i, c := range excluded {
		lines[i] = fmt.Sprintf("%s (%s, confidence %s, line %d)", c.Title, c.Section, c.Confidence, c.Range.StartLine)
	}
	d := ir.Warn(ir.CodeFeaturesTruncated, ir.Location{},
		"%d feature candidate(s) beyond the ceiling of %d were excluded", len(excluded), ceiling)
	d.Content = strings.Join(lines, "\n")
	return d
}

func entityLocation(c ir.CandidateEntity) ir.Location {
	return ir.Location{Section: c.Section, Line: c.Range.StartLine, EndLine: c.Range.EndLine, Node: c.NodeID()}
}
