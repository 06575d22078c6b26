package synth

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/bpkit/internal/graph"
	"github.com/roach88/bpkit/internal/ir"
)

// SynthesizeFeatures builds one constitution per surviving feature
// candidate, numbered in source order. Fewer candidates than the target
// yields a diagnostic; features are never invented to reach it.
func (s *Synthesizer) SynthesizeFeatures(in Input, matched map[ir.Label]ir.Section, g *graph.Graph) ([]ir.Constitution, []ir.Diagnostic) {
	var diags []ir.Diagnostic
	features := in.Extraction.Features()
	principles := in.Extraction.Principles()

	if n := len(features); n < s.cfg.FeatureTarget {
		diags = append(diags, ir.Warn(ir.CodeFeaturesBelow, ir.Location{},
			"%d feature(s) extracted; %d to %d are expected", n, s.cfg.FeatureTarget, max(s.cfg.FeatureCeiling, s.cfg.FeatureTarget)))
	}

	priorities := rankPriorities(features)
	introducedBy := map[string]string{} // data entity -> feature id

	out := make([]ir.Constitution, 0, len(features))
	for i, f := range features {
		c := ir.Constitution{
			ID:         fmt.Sprintf("feature-%03d-%s", i+1, ir.Slug(f.Title, 4)),
			Type:       ir.TypeFeature,
			Title:      f.Title,
			Version:    ir.Baseline,
			Priority:   priorities[i],
			EntityKey:  f.Key(),
			Sources:    []ir.Label{f.Section},
			Principles: []ir.Statement{},
			Entities:   []ir.Statement{},
			UpdatedAt:  in.UpdatedAt,
		}

		ids := idSet{}
		c.Principles = append(c.Principles, ir.Statement{
			ID:          ids.unique(ir.Slug(f.Title, 5)),
			Kind:        ir.StatementPrinciple,
			Title:       f.Title,
			Text:        f.Body,
			Source:      f.Section,
			Confidence:  f.Confidence,
			NeedsReview: f.LowConfidence,
		})
		for _, p := range relatedPrinciples(f, principles) {
			c.Principles = append(c.Principles, ir.Statement{
				ID:          ids.unique(ir.Slug(p.Title, 5)),
				Kind:        ir.StatementPrinciple,
				Title:       p.Title,
				Text:        p.Body,
				Source:      p.Section,
				Confidence:  p.Confidence,
				NeedsReview: p.LowConfidence,
			})
		}

		c.Entities = append(c.Entities, s.story(f, matched[f.Section]))

		for _, ent := range s.dataEntities(f) {
			c.Entities = append(c.Entities, ent)
			name := strings.TrimPrefix(ent.ID, "de-")
			if owner, ok := introducedBy[name]; ok {
				if !slices.Contains(c.DependsOn, owner) {
					c.DependsOn = append(c.DependsOn, owner)
				}
			} else {
				introducedBy[name] = c.ID
			}
		}

		crit, critDiags := s.criteria(f, matched)
		c.Entities = append(c.Entities, crit...)
		diags = append(diags, critDiags...)

		// Constitution and entity nodes: the feature derives from its
		// candidate entity, which derives from the section it came from.
		entityNode := f.NodeID()
		g.AddNode(graph.Node{ID: entityNode, Kind: graph.NodeEntity})
		g.AddEdge(entityNode, ir.SectionNodeID(f.Section), graph.DerivesFrom)
		g.AddNode(graph.Node{ID: c.NodeID(), Kind: graph.NodeConstitution, Owner: c.ID})
		g.AddEdge(c.NodeID(), entityNode, graph.DerivesFrom)
		for _, dep := range c.DependsOn {
			g.AddEdge(c.NodeID(), ir.ConstitutionNodeID(dep), graph.DependsOn)
		}

		tracesTo := ""
		if kinds := ir.StrategicFor(f.Section); len(kinds) > 0 {
			tracesTo = ir.ConstitutionNodeID(ir.StrategicID(kinds[0]))
		}
		for _, stmt := range c.Statements() {
			link(g, c, stmt, tracesTo)
		}
		out = append(out, c)
	}
	return out, diags
}

// rankPriorities assigns P1 to the three most confident features, P2 to the
// next four and P3 to the rest. Source order breaks ties.
func rankPriorities(features []ir.CandidateEntity) []string {
	order := make([]int, len(features))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return features[order[a]].Confidence > features[order[b]].Confidence
	})
	out := make([]string, len(features))
	for rank, i := range order {
		switch {
		case rank < 3:
			out[i] = "P1"
		case rank < 7:
			out[i] = "P2"
		default:
			out[i] = "P3"
		}
	}
	return out
}

// relatedPrinciples returns principles from the feature's own list item or
// sharing one of its vocabulary terms, in source order.
func relatedPrinciples(f ir.CandidateEntity, principles []ir.CandidateEntity) []ir.CandidateEntity {
	terms := map[string]bool{}
	for _, t := range f.Terms {
		terms[ir.Stem(t)] = true
	}
	var out []ir.CandidateEntity
	for _, p := range principles {
		if p.Section == f.Section && p.Range == f.Range {
			out = append(out, p)
			continue
		}
		for _, w := range ir.Words(p.Body) {
			if terms[ir.Stem(w)] {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// story fills the user story template for a feature. The actor is the
// first configured role named by the feature, then by its section, else
// "user".
func (s *Synthesizer) story(f ir.CandidateEntity, sec ir.Section) ir.Statement {
	role := s.findRole(f.Body)
	if role == "" {
		role = s.findRole(sec.Body())
	}
	if role == "" {
		role = "user"
	}

	action := strings.ToLower(f.Title)
	benefit := "the capability works as described in the " + string(f.Section) + " section"
	if _, rest, ok := cutDetail(f.Body); ok {
		benefit = strings.TrimRight(rest, ".!?; ")
	}

	return ir.Statement{
		ID:         "us-1",
		Kind:       ir.StatementStory,
		Title:      fmt.Sprintf("As a %s, I want %s", role, action),
		Text:       fmt.Sprintf("As a %s, I want %s, so that %s.", role, action, benefit),
		Source:     f.Section,
		Confidence: f.Confidence,
		Acceptance: fmt.Sprintf("Given a %s, when they use %s, then %s.", role, action, benefit),
	}
}

func (s *Synthesizer) findRole(text string) string {
	stems := map[string]bool{}
	for _, w := range ir.Words(text) {
		stems[ir.Stem(w)] = true
	}
	for _, r := range s.cfg.Roles {
		if stems[ir.Stem(strings.ToLower(r))] {
			return r
		}
	}
	return ""
}

// cutDetail splits "Title: detail" or "Title - detail".
func cutDetail(body string) (head, rest string, ok bool) {
	for _, sep := range []string{": ", " - ", " – ", " — "} {
		if h, r, found := strings.Cut(body, sep); found && strings.TrimSpace(r) != "" {
			return h, strings.TrimSpace(r), true
		}
	}
	return body, "", false
}

// dataEntities returns one statement per configured data entity the
// feature names, in entity-name order.
func (s *Synthesizer) dataEntities(f ir.CandidateEntity) []ir.Statement {
	stems := map[string]bool{}
	for _, w := range ir.Words(f.Title + " " + f.Body) {
		stems[ir.Stem(w)] = true
	}
	title := cases.Title(language.English)

	var out []ir.Statement
	for _, name := range sortedKeys(s.cfg.DataEntities) {
		if !stems[ir.Stem(strings.ToLower(name))] {
			continue
		}
		attrs := append([]string{}, s.cfg.DataEntities[name]...)
		out = append(out, ir.Statement{
			ID:         "de-" + name,
			Kind:       ir.StatementEntity,
			Title:      title.String(name),
			Text:       fmt.Sprintf("%s record used by %s", title.String(name), f.Title),
			Source:     f.Section,
			Confidence: f.Confidence,
			Attributes: attrs,
		})
	}
	return out
}

var (
	commissionRe = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*%\s*(?:commission|fee|take rate)`)
	priceRe      = regexp.MustCompile(`\$\s?(\d+(?:,\d{3})*(?:\.\d+)?)`)
	scaleRe      = regexp.MustCompile(`(?i)(\d[\d,]*)\s*(k|m)?\+?\s*(?:users|customers|transactions|bookings|hosts|guests)`)
)

// scaleFloor is the smallest user scale that implies a performance criterion.
const scaleFloor = 10000

// criteria derives measurable success criteria from business-model numbers,
// stated scale and critical keywords. When nothing is derivable a single
// placeholder flagged for review is emitted.
func (s *Synthesizer) criteria(f ir.CandidateEntity, matched map[ir.Label]ir.Section) ([]ir.Statement, []ir.Diagnostic) {
	var out []ir.Statement
	add := func(source ir.Label, text, rationale string) {
		out = append(out, ir.Statement{
			ID:         fmt.Sprintf("sc-%d", len(out)+1),
			Kind:       ir.StatementCriterion,
			Title:      text,
			Text:       text,
			Rationale:  rationale,
			Source:     source,
			Confidence: ir.ConfidenceMax * 9 / 10,
		})
	}

	if bm, ok := matched[ir.LabelBusinessModel]; ok {
		body := bm.Body()
		if m := commissionRe.FindStringSubmatch(body); m != nil {
			add(ir.LabelBusinessModel,
				fmt.Sprintf("Fee calculation accurate to 0.01%% for the %s%% rate", m[1]),
				fmt.Sprintf("Revenue depends on a %s%% fee; calculation errors change revenue directly", m[1]))
		}
		if m := priceRe.FindStringSubmatch(body); m != nil {
			add(ir.LabelBusinessModel,
				"Prices display accurate to 2 decimal places",
				fmt.Sprintf("The business model charges amounts such as $%s", m[1]))
		}
	}

	for _, label := range []ir.Label{f.Section, ir.LabelMarketPotential} {
		sec, ok := matched[label]
		if !ok {
			continue
		}
		if n, raw, ok := scaleOf(sec.Body()); ok && n >= scaleFloor {
			add(label,
				fmt.Sprintf("Handles %s concurrent users with responses under 2 seconds", raw),
				fmt.Sprintf("The deck targets %s users", raw))
			break
		}
	}

	lowerTitle := strings.ToLower(f.Title + " " + f.Body)
	for _, kw := range s.cfg.CriticalKeywords {
		if strings.Contains(lowerTitle, strings.ToLower(kw)) {
			add(f.Section,
				"Feature availability above 99.5% measured monthly",
				fmt.Sprintf("%s is business-critical (%s); downtime costs revenue", f.Title, kw))
			break
		}
	}

	if len(out) > 0 {
		return out, nil
	}

	text := fmt.Sprintf("[Success criterion for %s: define a measurable target]", f.Title)
	out = append(out, ir.Statement{
		ID:          "sc-1",
		Kind:        ir.StatementCriterion,
		Title:       text,
		Text:        text,
		Source:      f.Section,
		NeedsReview: true,
	})
	d := ir.Info(ir.CodeCriterionFallback, ir.Location{Section: f.Section, Node: f.NodeID()},
		"no measurable criterion found for %q; a placeholder needs review", f.Title)
	return out, []ir.Diagnostic{d}
}

// scaleOf finds the first "<n> users" style figure, expanding k and m.
func scaleOf(text string) (int, string, bool) {
	m := scaleRe.FindStringSubmatch(text)
	if m == nil {
		return 0, "", false
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return 0, "", false
	}
	switch strings.ToLower(m[2]) {
	case "k":
		n *= 1000
	case "m":
		n *= 1000000
	}
	return n, strings.TrimSpace(m[1] + m[2]), true
}
