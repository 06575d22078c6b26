package syncer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/bpkit/internal/ir"
)

// Proposal is the reverse-sync outcome for one edited constitution.
type Proposal struct {
	ConstitutionID string            `json:"constitution_id"`
	Changes        []StatementChange `json:"changes"`
	Classification ir.ChangeClass    `json:"classification"`
	Breaking       bool              `json:"breaking,omitempty"`
	Bump           ir.Bump           `json:"bump"`

	// From and To are the versions before and after the proposal applies.
	From string `json:"from"`
	To   string `json:"to"`
}

// ReverseReport proposes a deck patch for directly edited constitutions.
// Nothing is written until Apply.
type ReverseReport struct {
	Proposals []Proposal `json:"proposals"`

	// Patch turns the deck into Patched.
	Patch   string `json:"patch"`
	Diff    string `json:"diff"`
	Patched string `json:"-"`

	// Entries are the changelog entries Apply will append.
	Entries     []ir.ChangelogEntry `json:"entries"`
	Diagnostics []ir.Diagnostic     `json:"diagnostics,omitempty"`

	// edited holds the on-disk constitutions the proposals accept.
	edited []ir.Constitution
}

// Empty reports whether there is nothing to propose.
func (r *ReverseReport) Empty() bool { return len(r.Proposals) == 0 }

// statementChanges diffs two forms of one constitution statement by
// statement. A statement whose id changed with its wording is paired with
// its replacement of the same kind and source and reported as modified.
func statementChanges(c *classifier, old, next ir.Constitution) []StatementChange {
	nextByID := map[string]ir.Statement{}
	for _, s := range next.Statements() {
		nextByID[s.ID] = s
	}

	var out []StatementChange
	var removed, added []ir.Statement
	seen := map[string]bool{}
	for _, before := range old.Statements() {
		seen[before.ID] = true
		after, ok := nextByID[before.ID]
		switch {
		case !ok:
			removed = append(removed, before)
		case ir.StatementHash(before) != ir.StatementHash(after):
			out = append(out, c.modified(next.ID, before, after))
		}
	}
	for _, after := range next.Statements() {
		if !seen[after.ID] {
			added = append(added, after)
		}
	}

	match := c.pair(statementTexts(removed), statementTexts(added), func(i, j int) bool {
		return removed[i].Kind == added[j].Kind && removed[i].Source == added[j].Source
	})
	paired := make([]bool, len(added))
	for i, before := range removed {
		if j := match[i]; j >= 0 {
			paired[j] = true
			out = append(out, c.modified(next.ID, before, added[j]))
			continue
		}
		ch := StatementChange{ConstitutionID: next.ID, StatementID: before.ID, Source: before.Source, Op: OpRemoved, Before: before.Text}
		ch.Classification, ch.Breaking = c.statement(OpRemoved, before.Text, "")
		out = append(out, ch)
	}
	for j, after := range added {
		if paired[j] {
			continue
		}
		ch := StatementChange{ConstitutionID: next.ID, StatementID: after.ID, Source: after.Source, Op: OpAdded, After: after.Text}
		ch.Classification, ch.Breaking = c.statement(OpAdded, "", after.Text)
		out = append(out, ch)
	}
	return out
}

func (c *classifier) modified(constitution string, before, after ir.Statement) StatementChange {
	ch := StatementChange{
		ConstitutionID: constitution,
		StatementID:    before.ID,
		Source:         before.Source,
		Op:             OpModified,
		Before:         before.Text,
		After:          after.Text,
	}
	ch.Classification, ch.Breaking = c.statement(OpModified, before.Title+" "+before.Text, after.Title+" "+after.Text)
	return ch
}

func statementTexts(stmts []ir.Statement) []string {
	out := make([]string, len(stmts))
	for i, s := range stmts {
		out[i] = s.Text
	}
	return out
}

// ReverseSync proposes deck edits for every constitution edited on disk
// since the last sync point. deck is the raw deck source and sections its
// mapping; a statement whose text cannot be found in its source section is
// reported as PATCH_UNANCHORED and left out of the patch.
func (s *Syncer) ReverseSync(ctx context.Context, deck []byte, sections []ir.Section, current []ir.Constitution) (*ReverseReport, error) {
	b, err := loadBaseline(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("reverse sync: %w", err)
	}
	if !b.initialized() {
		return nil, ErrNotInitialized
	}

	next := deckRecords(sections, nil)
	assessed := assess(b, next, current)
	if cs := conflicts(assessed, b.deck, next); len(cs) > 0 {
		return nil, &ConflictError{Conflicts: cs}
	}

	rep := &ReverseReport{Proposals: []Proposal{}, Entries: []ir.ChangelogEntry{}}
	var edits []edit
	for _, a := range assessed {
		if a.status != ConstitutionAhead {
			continue
		}
		changes := statementChanges(s.classify, a.state.Constitution, *a.current)
		p := Proposal{ConstitutionID: a.current.ID, Changes: changes, Classification: ir.ClassEditorial}
		for _, ch := range changes {
			p.Classification = ir.MaxClass(p.Classification, ch.Classification)
			p.Breaking = p.Breaking || ch.Breaking
			edits = append(edits, edit{label: ch.Source, op: ch.Op, before: ch.Before, after: ch.After, statement: ch.StatementID})
		}
		p.Bump = ir.BumpFor(p.Classification, p.Breaking)
		from := a.state.Metadata.Current
		p.From, p.To = from.String(), from.Apply(p.Bump).String()
		rep.Proposals = append(rep.Proposals, p)
		rep.edited = append(rep.edited, *a.current)

		rep.Entries = append(rep.Entries, ir.ChangelogEntry{
			ID:             s.newID(),
			Direction:      ir.DirectionReverse,
			What:           fmt.Sprintf("%s: %d statement edit(s) proposed for the deck", p.ConstitutionID, len(changes)),
			Trigger:        "constitution:" + p.ConstitutionID,
			Classification: p.Classification,
			Bump:           p.Bump,
			Impact:         []string{p.ConstitutionID},
			Versions:       map[string]string{p.ConstitutionID: p.To},
			Proposed:       true,
			Timestamp:      s.now().UTC(),
		})
	}

	content := string(deck)
	patched, diags := applyEdits(content, sections, edits)
	rep.Patched = patched
	rep.Patch = makePatch(content, patched)
	rep.Diff = lineDiff(content, patched)
	rep.Diagnostics = diags
	return rep, nil
}

// Apply applies rep's patch to deck and records the accepted edits: each
// edited constitution becomes its own sync point at the proposed version,
// tracking the patched deck. decompose maps the patched deck so the new
// section hashes can be recorded. It returns the patched deck; writing it
// out is the caller's job.
func (s *Syncer) Apply(ctx context.Context, rep *ReverseReport, deck []byte, decompose func([]byte) (Snapshot, error)) ([]byte, error) {
	if rep.Empty() {
		return deck, nil
	}
	patched, err := applyPatch(rep.Patch, string(deck))
	if err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}
	snap, err := decompose([]byte(patched))
	if err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}

	b, err := loadBaseline(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}
	if !b.initialized() {
		return nil, ErrNotInitialized
	}
	next := deckRecords(snap.Sections, snap.Extraction)

	states := map[string]*ConstitutionState{}
	for i, c := range rep.edited {
		old, ok := b.constitutions[identity(c)]
		if !ok {
			continue
		}
		p := rep.Proposals[i]
		meta := cloneMetadata(old.Metadata)
		meta.Record(p.Classification, p.Breaking)
		c.Version = meta.Current
		st := newConstitutionState(c, meta, next)
		states[st.Identity] = &st
	}

	entries := make([]ir.ChangelogEntry, len(rep.Entries))
	copy(entries, rep.Entries)
	for i := range entries {
		entries[i].Proposed = false
		entries[i].Timestamp = s.now().UTC()
	}
	if err := s.persist(ctx, nil, states, nil, entries); err != nil {
		return nil, fmt.Errorf("apply: %w", err)
	}
	s.logger.Info("reverse sync applied", "constitutions", len(states))
	return []byte(patched), nil
}

// edit is one statement change to carry into the deck.
type edit struct {
	label     ir.Label
	op        string
	before    string
	after     string
	statement string
}

// applyEdits rewrites section text in content. Sections are edited from the
// end of the document backwards so earlier offsets stay valid.
func applyEdits(content string, sections []ir.Section, edits []edit) (string, []ir.Diagnostic) {
	var diags []ir.Diagnostic
	byLabel := map[ir.Label][]edit{}
	seen := map[edit]bool{}
	for _, e := range edits {
		key := e
		key.statement = ""
		if seen[key] {
			continue
		}
		seen[key] = true
		byLabel[e.label] = append(byLabel[e.label], e)
	}

	var targets []ir.Section
	for _, s := range sections {
		if s.Status == ir.StatusMatched && len(byLabel[s.Label]) > 0 {
			targets = append(targets, s)
		}
	}
	sort.Slice(targets, func(i, j int) bool { return targets[i].Range.StartOffset > targets[j].Range.StartOffset })

	placed := map[ir.Label]bool{}
	for _, sec := range targets {
		placed[sec.Label] = true
		start, end := sec.Range.StartOffset, sec.Range.EndOffset
		if end <= start || end > len(content) {
			for _, e := range byLabel[sec.Label] {
				diags = append(diags, unanchored(e, "the deck format has no source offsets"))
			}
			continue
		}
		body := content[start:end]
		listy := len(sec.Blocks) > 0 && sec.Blocks[len(sec.Blocks)-1].Kind == ir.BlockListItem
		for _, e := range byLabel[sec.Label] {
			var ok bool
			body, ok = editBody(body, e, listy)
			if !ok {
				diags = append(diags, unanchored(e, "its text does not appear in the section"))
			}
		}
		content = content[:start] + body + content[end:]
	}

	for _, e := range edits {
		if !placed[e.label] {
			diags = append(diags, unanchored(e, "its source section is not in the deck"))
		}
	}
	return content, diags
}

func editBody(body string, e edit, listy bool) (string, bool) {
	switch e.op {
	case OpAdded:
		if listy {
			return body + "\n- " + e.after, true
		}
		return body + "\n\n" + e.after, true
	case OpModified:
		if e.before == "" || !strings.Contains(body, e.before) {
			return body, false
		}
		return strings.Replace(body, e.before, e.after, 1), true
	case OpRemoved:
		i := strings.Index(body, e.before)
		if e.before == "" || i < 0 {
			return body, false
		}
		lineStart := strings.LastIndex(body[:i], "\n") + 1
		lineEnd := len(body)
		if j := strings.Index(body[i:], "\n"); j >= 0 {
			lineEnd = i + j
		}
		rest := strings.TrimSpace(strings.Replace(body[lineStart:lineEnd], e.before, "", 1))
		if strings.Trim(rest, "-*+.0123456789") != "" {
			return body[:i] + body[i+len(e.before):], true
		}
		// The statement was the whole line: drop the line.
		if lineStart > 0 {
			return body[:lineStart-1] + body[lineEnd:], true
		}
		return strings.TrimPrefix(body[lineEnd:], "\n"), true
	}
	return body, false
}

func unanchored(e edit, why string) ir.Diagnostic {
	d := ir.Warn(ir.CodePatchUnanchored, ir.Location{Section: e.label},
		"%s edit of %s not carried into the deck: %s", e.op, e.statement, why)
	d.Content = e.after
	if d.Content == "" {
		d.Content = e.before
	}
	return d
}
