package syncer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bpkit/internal/config"
	"github.com/roach88/bpkit/internal/ir"
)

func record(label ir.Label, text string, entities ...string) SectionRecord {
	if entities == nil {
		entities = []string{}
	}
	return SectionRecord{
		Hash:     ir.SectionHash(label, text),
		BodyHash: ir.SectionHash("", text),
		Text:     text,
		Entities: entities,
	}
}

func TestClassifier_Sections(t *testing.T) {
	c := newClassifier(config.Default())
	old := map[ir.Label]SectionRecord{
		ir.LabelProblem:  record(ir.LabelProblem, "Travelers waste days finding a place."),
		ir.LabelSolution: record(ir.LabelSolution, "- Instant booking\n- Reviews", "feature:instant booking", "feature:reviews"),
		ir.LabelTeam:     record(ir.LabelTeam, "Ada and Bo built marketplaces."),
	}

	tests := []struct {
		name     string
		label    ir.Label
		next     SectionRecord
		drop     bool
		class    ir.ChangeClass
		breaking bool
	}{
		{"reword", ir.LabelProblem, record(ir.LabelProblem, "Travelers spend days finding a place."), false, ir.ClassEditorial, false},
		{"new number", ir.LabelProblem, record(ir.LabelProblem, "Travelers waste 3 days finding a place."), false, ir.ClassClarifying, false},
		{"new terms", ir.LabelProblem, record(ir.LabelProblem, "Travelers waste days finding a safe, quiet, affordable place."), false, ir.ClassClarifying, false},
		{"synonyms", ir.LabelProblem, record(ir.LabelProblem, "Tourists lose weeks locating a home."), false, ir.ClassEditorial, false},
		{"entity added", ir.LabelSolution, record(ir.LabelSolution, "- Instant booking\n- Reviews\n- Chat", "feature:chat", "feature:instant booking", "feature:reviews"), false, ir.ClassStructural, false},
		{"entity removed", ir.LabelSolution, record(ir.LabelSolution, "- Instant booking", "feature:instant booking"), false, ir.ClassStructural, true},
		{"section dropped", ir.LabelTeam, SectionRecord{}, true, ir.ClassStructural, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := map[ir.Label]SectionRecord{}
			for l, r := range old {
				next[l] = r
			}
			if tt.drop {
				delete(next, tt.label)
			} else {
				next[tt.label] = tt.next
			}

			changes := c.sections(old, next)
			require.Len(t, changes, 1)
			assert.Equal(t, tt.label, changes[0].Label)
			assert.Equal(t, tt.class, changes[0].Classification)
			assert.Equal(t, tt.breaking, changes[0].Breaking)
		})
	}
}

func TestClassifier_RewordedPrinciple(t *testing.T) {
	c := newClassifier(config.Default())
	before := "Guests must never pay for a listing that does not exist."
	after := "Guests must never pay for listings that do not exist."
	old := map[ir.Label]SectionRecord{
		ir.LabelProblem: record(ir.LabelProblem, before, ir.EntityKey(ir.KindPrinciple, before)),
	}

	tests := []struct {
		name     string
		text     string
		key      string
		class    ir.ChangeClass
		breaking bool
		reworded int
	}{
		{"reworded", after, ir.EntityKey(ir.KindPrinciple, after), ir.ClassEditorial, false, 1},
		{"reworded with a number", "Guests must never pay for a listing that does not exist after 24 hours.",
			ir.EntityKey(ir.KindPrinciple, "Guests must never pay for a listing that does not exist after 24 hours"), ir.ClassClarifying, false, 1},
		{"replaced", "Hosts must verify every guest.", ir.EntityKey(ir.KindPrinciple, "Hosts must verify every guest"), ir.ClassStructural, true, 0},
		{"feature renamed", before, ir.EntityKey(ir.KindFeature, "guests never pay for a listing that does not exist"), ir.ClassStructural, true, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := map[ir.Label]SectionRecord{ir.LabelProblem: record(ir.LabelProblem, tt.text, tt.key)}
			if tt.text == before {
				// Same text, different entity keys.
				r := next[ir.LabelProblem]
				r.Hash = "changed"
				next[ir.LabelProblem] = r
			}

			changes := c.sections(old, next)
			require.Len(t, changes, 1)
			assert.Equal(t, tt.class, changes[0].Classification)
			assert.Equal(t, tt.breaking, changes[0].Breaking)
			assert.Len(t, changes[0].Reworded, tt.reworded)
		})
	}
}

func TestStatementChanges_PairsRewordedStatement(t *testing.T) {
	c := newClassifier(config.Default())
	principle := func(id, text string) ir.Statement {
		return ir.Statement{ID: id, Kind: ir.StatementPrinciple, Title: text, Text: text, Source: ir.LabelProblem}
	}
	old := ir.Constitution{ID: "product-constitution", Principles: []ir.Statement{
		principle("travelers-waste-days-finding-a", "Travelers waste days finding a trusted place."),
		principle("hosts-must-verify-every-guest", "Hosts must verify every guest."),
	}}
	next := ir.Constitution{ID: "product-constitution", Principles: []ir.Statement{
		principle("travelers-spend-days-finding-a", "Travelers spend days finding a trusted place."),
		principle("prices-include-every-fee", "Prices include every fee."),
	}}

	changes := statementChanges(c, old, next)
	require.Len(t, changes, 3)

	assert.Equal(t, OpModified, changes[0].Op)
	assert.Equal(t, "travelers-waste-days-finding-a", changes[0].StatementID)
	assert.Equal(t, "Travelers spend days finding a trusted place.", changes[0].After)
	assert.Equal(t, ir.ClassEditorial, changes[0].Classification)

	assert.Equal(t, OpRemoved, changes[1].Op)
	assert.True(t, changes[1].Breaking)
	assert.Equal(t, OpAdded, changes[2].Op)
	assert.Equal(t, ir.ClassStructural, changes[2].Classification)
}

func TestClassifier_Relabel(t *testing.T) {
	c := newClassifier(config.Default())
	body := "We grow by partnering with property managers."
	old := map[ir.Label]SectionRecord{ir.LabelMarketPotential: record(ir.LabelMarketPotential, body)}
	next := map[ir.Label]SectionRecord{ir.LabelBusinessModel: record(ir.LabelBusinessModel, body)}

	changes := c.sections(old, next)
	require.Len(t, changes, 2)
	assert.Equal(t, ir.LabelMarketPotential, changes[0].Label)
	assert.Equal(t, ir.LabelBusinessModel, changes[0].RelabeledTo)
	assert.Equal(t, ir.LabelBusinessModel, changes[1].Label)
	assert.Equal(t, ir.LabelMarketPotential, changes[1].RelabeledFrom)
	for _, ch := range changes {
		assert.Equal(t, ir.BumpMajor, ch.Bump())
	}
	assert.Equal(t, "market-potential relabeled as business-model", describe(changes[0]))
}

func TestLineDiff(t *testing.T) {
	assert.Empty(t, lineDiff("same", "same"))
	assert.Equal(t, "  a\n- b\n+ c\n", lineDiff("a\nb", "a\nc"))
	assert.Equal(t, "+ new\n", lineDiff("", "new"))
}

func TestPatchRoundTrip(t *testing.T) {
	before := "# Deck\n\n## Solution\n\n- Booking\n- Reviews\n"
	after := "# Deck\n\n## Solution\n\n- Instant booking\n- Reviews\n"

	out, err := applyPatch(makePatch(before, after), before)
	require.NoError(t, err)
	assert.Equal(t, after, out)

	_, err = applyPatch("not a patch", before)
	assert.Error(t, err)
}

func TestEditBody(t *testing.T) {
	body := "## Business Model\n\nWe charge a fee. We grow fast.\n\n- Commission on bookings\n- Premium tools"

	tests := []struct {
		name  string
		e     edit
		listy bool
		want  string
		ok    bool
	}{
		{"modify", edit{op: OpModified, before: "We grow fast.", after: "We grow 20% a year."}, false,
			"## Business Model\n\nWe charge a fee. We grow 20% a year.\n\n- Commission on bookings\n- Premium tools", true},
		{"remove list line", edit{op: OpRemoved, before: "Premium tools"}, true,
			"## Business Model\n\nWe charge a fee. We grow fast.\n\n- Commission on bookings", true},
		{"remove sentence", edit{op: OpRemoved, before: "We grow fast."}, false,
			"## Business Model\n\nWe charge a fee. \n\n- Commission on bookings\n- Premium tools", true},
		{"add to list", edit{op: OpAdded, after: "Referral credits"}, true,
			body + "\n- Referral credits", true},
		{"add paragraph", edit{op: OpAdded, after: "Referral credits."}, false,
			body + "\n\nReferral credits.", true},
		{"missing", edit{op: OpModified, before: "We sell ads.", after: "We sell nothing."}, false, body, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := editBody(body, tt.e, tt.listy)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	_, ok, err := st.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.Put(ctx, "deck", []byte("v1")))
	require.NoError(t, st.Put(ctx, "deck", []byte("v2")))
	v, ok, err := st.Get(ctx, "deck")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", string(v))

	for i, entry := range []string{"a", "b", "c"} {
		seq, err := st.Append(ctx, StreamChangelog, []byte(entry))
		require.NoError(t, err)
		assert.Equal(t, int64(i+1), seq)
	}
	records, err := st.Stream(ctx, StreamChangelog)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Record{Seq: 3, Data: []byte("c")}, records[2])
	assert.Equal(t, []string{"deck"}, st.Keys())
}
