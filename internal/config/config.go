// Package config holds the heuristic tables and thresholds that drive section
// mapping, entity extraction, synthesis and sync classification.
//
// A Config is passed explicitly into every engine call; there is no
// process-wide state. Default returns the seed tables; Load overlays a YAML
// or CUE file on top of them.
package config

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/roach88/bpkit/internal/ir"
)

// Duplicate policies.
const (
	DuplicateFlag   = "flag"   // keep the first heading, flag the rest
	DuplicateReject = "reject" // any duplicate label is an unresolved collision
)

// Modal is an imperative/modal phrase and the strength it lends a principle.
type Modal struct {
	Phrase   string  `yaml:"phrase" json:"phrase"`
	Strength float64 `yaml:"strength" json:"strength"`
}

// Config is the complete heuristic configuration.
type Config struct {
	// Synonyms maps a canonical label to extra heading phrases that mean it.
	// The label's own words are always a phrase.
	Synonyms map[string][]string `yaml:"synonyms" json:"synonyms"`

	// Stopwords are dropped from headings and phrases before scoring.
	Stopwords []string `yaml:"stopwords" json:"stopwords"`

	// AcceptanceThreshold is the minimum similarity for a heading to match.
	AcceptanceThreshold float64 `yaml:"acceptance_threshold" json:"acceptance_threshold"`

	// DuplicatePolicy is "flag" or "reject".
	DuplicatePolicy string `yaml:"duplicate_policy" json:"duplicate_policy"`

	// FeatureLabels are the sections whose list items become features.
	FeatureLabels []string `yaml:"feature_labels" json:"feature_labels"`

	// ActionVerbs and CapabilityNouns form the capability vocabulary.
	ActionVerbs     []string `yaml:"action_verbs" json:"action_verbs"`
	CapabilityNouns []string `yaml:"capability_nouns" json:"capability_nouns"`

	// Modals mark principle statements.
	Modals []Modal `yaml:"modals" json:"modals"`

	// Method reliabilities. List-based must outrank pattern-based.
	ListWeight    float64 `yaml:"list_weight" json:"list_weight"`
	PatternWeight float64 `yaml:"pattern_weight" json:"pattern_weight"`

	// PatternSaturation is the number of vocabulary matches at which a
	// sentence-pattern candidate reaches full match strength.
	PatternSaturation int `yaml:"pattern_saturation" json:"pattern_saturation"`

	// NumericBoost is added to principle strength when the text carries a
	// numeric constraint.
	NumericBoost float64 `yaml:"numeric_boost" json:"numeric_boost"`

	// ConfidenceFloor flags (never drops) entities below it.
	ConfidenceFloor float64 `yaml:"confidence_floor" json:"confidence_floor"`

	// FeatureCeiling caps feature candidates across the deck.
	FeatureCeiling int `yaml:"feature_ceiling" json:"feature_ceiling"`

	// FeatureTarget is the minimum feature count before a diagnostic.
	FeatureTarget int `yaml:"feature_target" json:"feature_target"`

	// MinSentenceLength drops shorter sentences from pattern extraction.
	MinSentenceLength int `yaml:"min_sentence_length" json:"min_sentence_length"`

	// ClarifyingMinTerms is how many more significant terms a revision must
	// add than it drops to count as clarifying rather than editorial.
	ClarifyingMinTerms int `yaml:"clarifying_min_terms" json:"clarifying_min_terms"`

	// RewordSimilarity is the token similarity at which a removed and an
	// added principle are read as one reworded principle.
	RewordSimilarity float64 `yaml:"reword_similarity" json:"reword_similarity"`

	// Section quality checks.
	ThinSectionWords int        `yaml:"thin_section_words" json:"thin_section_words"`
	Placeholders     []string   `yaml:"placeholders" json:"placeholders"`
	VaguePhrases     []string   `yaml:"vague_phrases" json:"vague_phrases"`
	Contradictions   [][]string `yaml:"contradictions" json:"contradictions"`

	// DataEntities maps an entity noun to its suggested attributes.
	DataEntities map[string][]string `yaml:"data_entities" json:"data_entities"`

	// CriticalKeywords imply an availability criterion for a feature.
	CriticalKeywords []string `yaml:"critical_keywords" json:"critical_keywords"`

	// Roles are nouns recognized as user story actors.
	Roles []string `yaml:"roles" json:"roles"`
}

// Default returns the seed configuration.
func Default() *Config {
	return &Config{
		Synonyms: map[string][]string{
			string(ir.LabelCompanyPurpose):  {"purpose", "mission", "our mission", "about us", "who we are", "company overview", "elevator pitch"},
			string(ir.LabelProblem):         {"problem", "pain", "pain points", "challenge", "customer pain"},
			string(ir.LabelSolution):        {"solution", "product", "how it works", "value proposition", "our product"},
			string(ir.LabelMarketPotential): {"market", "market size", "market opportunity", "opportunity", "tam", "go to market", "target market"},
			string(ir.LabelCompetition):     {"competitors", "competitive landscape", "alternatives", "differentiation"},
			string(ir.LabelBusinessModel):   {"revenue model", "pricing", "monetization", "how we make money", "unit economics"},
			string(ir.LabelFinancials):      {"financial projections", "projections", "financial plan", "the ask", "use of funds", "funding"},
			string(ir.LabelTeam):            {"founders", "founding team", "management", "leadership"},
			string(ir.LabelVision):          {"long term vision", "future", "roadmap", "where we are going"},
			string(ir.LabelWhyNow):          {"timing", "why today", "market timing"},
		},
		Stopwords: []string{
			"a", "an", "the", "our", "your", "their", "my", "we", "you", "they", "it", "its",
			"this", "that", "these", "those", "of", "and", "or", "to", "for", "in", "on", "at",
			"by", "with", "from", "is", "are", "was", "be", "as", "into",
		},
		AcceptanceThreshold: 0.5,
		DuplicatePolicy:     DuplicateFlag,
		FeatureLabels:       []string{string(ir.LabelSolution), string(ir.LabelBusinessModel)},
		ActionVerbs: []string{
			"create", "manage", "book", "search", "browse", "upload", "download", "send",
			"receive", "process", "track", "view", "edit", "delete", "share", "export",
			"import", "connect", "integrate", "analyze", "report", "notify", "approve",
			"reject", "review", "rate", "schedule", "pay", "invite", "sync", "automate",
		},
		CapabilityNouns: []string{
			"user", "account", "profile", "listing", "product", "booking", "reservation",
			"payment", "transaction", "search", "filter", "dashboard", "analytics", "report",
			"notification", "message", "review", "rating", "comment", "feed", "timeline",
			"calendar", "schedule", "settings", "preferences", "authentication",
			"authorization", "registration", "subscription", "invoice", "order", "api",
		},
		Modals: []Modal{
			{Phrase: "must", Strength: 1.0},
			{Phrase: "will always", Strength: 1.0},
			{Phrase: "must never", Strength: 1.0},
			{Phrase: "never", Strength: 0.85},
			{Phrase: "guarantee", Strength: 0.85},
			{Phrase: "ensure", Strength: 0.8},
			{Phrase: "require", Strength: 0.8},
			{Phrase: "should", Strength: 0.75},
		},
		ListWeight:         0.85,
		PatternWeight:      0.70,
		PatternSaturation:  3,
		NumericBoost:       0.1,
		ConfidenceFloor:    0.3,
		FeatureCeiling:     10,
		FeatureTarget:      5,
		MinSentenceLength:  10,
		ClarifyingMinTerms: 3,
		RewordSimilarity:   0.5,
		ThinSectionWords:   10,
		Placeholders:       []string{"[tbd]", "[todo]", "[x]", "[needs input]", "[placeholder]", "[insert", "xxx"},
		VaguePhrases:       []string{"tbd", "to be determined", "coming soon", "etc.", "and more", "and so on", "lorem ipsum"},
		Contradictions: [][]string{
			{"mobile-first", "desktop-first"},
			{"b2b", "b2c"},
			{"enterprise", "consumer"},
			{"free", "paid-only"},
			{"self-service", "sales-led"},
			{"low-price", "premium"},
			{"simple", "feature-rich"},
		},
		DataEntities: map[string][]string{
			"user":         {"id", "email", "name", "role", "created_at"},
			"listing":      {"id", "owner_id", "title", "description", "price", "status"},
			"booking":      {"id", "listing_id", "guest_id", "start_date", "end_date", "status"},
			"payment":      {"id", "booking_id", "amount", "currency", "status", "processed_at"},
			"review":       {"id", "author_id", "subject_id", "rating", "comment"},
			"subscription": {"id", "account_id", "plan", "status", "renews_at"},
			"order":        {"id", "customer_id", "total", "status", "placed_at"},
			"message":      {"id", "sender_id", "recipient_id", "body", "sent_at"},
			"account":      {"id", "owner_id", "plan", "created_at"},
			"invoice":      {"id", "account_id", "amount", "due_at", "status"},
		},
		CriticalKeywords: []string{"payment", "transaction", "booking", "authentication", "authorization", "checkout"},
		Roles:            []string{"user", "customer", "guest", "host", "seller", "buyer", "admin", "owner", "member", "team", "developer", "manager"},
	}
}

// FeatureLabel reports whether list items under label become features.
func (c *Config) FeatureLabel(label ir.Label) bool {
	for _, l := range c.FeatureLabels {
		if ir.Label(l) == label {
			return true
		}
	}
	return false
}

// Fingerprint hashes every heuristic table and threshold. Sync state records
// it so a heuristics change is visible as such rather than as a deck edit.
func (c *Config) Fingerprint() (string, error) {
	return ir.HashCanonical(ir.DomainConfig, c.canonical())
}

// canonical renders the config without floats: thresholds become
// fixed-precision strings.
func (c *Config) canonical() map[string]any {
	ff := func(f float64) string { return strconv.FormatFloat(f, 'f', 4, 64) }

	syn := map[string]any{}
	for k, v := range c.Synonyms {
		syn[k] = sortedCopy(v)
	}
	ents := map[string]any{}
	for k, v := range c.DataEntities {
		ents[k] = append([]string(nil), v...)
	}
	modals := make([]any, len(c.Modals))
	for i, m := range c.Modals {
		modals[i] = map[string]any{"phrase": m.Phrase, "strength": ff(m.Strength)}
	}
	pairs := make([]any, len(c.Contradictions))
	for i, p := range c.Contradictions {
		pairs[i] = append([]string{}, p...)
	}
	return map[string]any{
		"synonyms":             syn,
		"stopwords":            sortedCopy(c.Stopwords),
		"acceptance_threshold": ff(c.AcceptanceThreshold),
		"duplicate_policy":     c.DuplicatePolicy,
		"feature_labels":       sortedCopy(c.FeatureLabels),
		"action_verbs":         sortedCopy(c.ActionVerbs),
		"capability_nouns":     sortedCopy(c.CapabilityNouns),
		"modals":               modals,
		"list_weight":          ff(c.ListWeight),
		"pattern_weight":       ff(c.PatternWeight),
		"pattern_saturation":   c.PatternSaturation,
		"numeric_boost":        ff(c.NumericBoost),
		"confidence_floor":     ff(c.ConfidenceFloor),
		"feature_ceiling":      c.FeatureCeiling,
		"feature_target":       c.FeatureTarget,
		"min_sentence_length":  c.MinSentenceLength,
		"clarifying_min_terms": c.ClarifyingMinTerms,
		"reword_similarity":    ff(c.RewordSimilarity),
		"thin_section_words":   c.ThinSectionWords,
		"placeholders":         sortedCopy(c.Placeholders),
		"vague_phrases":        sortedCopy(c.VaguePhrases),
		"contradictions":       pairs,
		"data_entities":        ents,
		"critical_keywords":    sortedCopy(c.CriticalKeywords),
		"roles":                sortedCopy(c.Roles),
	}
}

func sortedCopy(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}

func (c *Config) String() string {
	return fmt.Sprintf("config(threshold=%.2f ceiling=%d floor=%.2f)", c.AcceptanceThreshold, c.FeatureCeiling, c.ConfidenceFloor)
}
