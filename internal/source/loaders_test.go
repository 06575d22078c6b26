package source

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/bpkit/internal/ir"
)

func TestHTMLLoader(t *testing.T) {
	html := `<html><body>
<h1>Stayhub</h1>
<h2>The Problem</h2>
<p>Finding a <em>trusted</em> home takes days.</p>
<h2>Solution</h2>
<ul><li>Instant booking</li><li>Verified hosts</li></ul>
</body></html>`

	doc, _, err := NewHTMLLoader().Load("deck.html", []byte(html))
	require.NoError(t, err)

	var headings, items []string
	for _, b := range doc.Blocks {
		switch b.Kind {
		case ir.BlockHeading:
			headings = append(headings, b.Text)
		case ir.BlockListItem:
			items = append(items, b.Text)
		}
	}
	assert.Equal(t, []string{"Stayhub", "The Problem", "Solution"}, headings)
	assert.Equal(t, []string{"Instant booking", "Verified hosts"}, items)

	// Offsets point into the converted Markdown, not the HTML.
	assert.False(t, doc.Patchable)

	md, _, err := NewMarkdownLoader().Load("deck.md", []byte("# Stayhub\n"))
	require.NoError(t, err)
	assert.True(t, md.Patchable)
}

func TestAssembleRuns(t *testing.T) {
	runs := []TextRun{
		{Text: "Stayhub", Page: 1, Y: 10, FontSize: 28},
		{Text: "The Problem", Page: 2, Y: 10, FontSize: 20},
		{Text: "takes days.", Page: 2, X: 120, Y: 40, FontSize: 11},
		{Text: "Finding a home", Page: 2, X: 10, Y: 40.5, FontSize: 11},
		{Text: "Hosts are unverified.", Page: 2, Y: 55, FontSize: 11},
		{Text: "Solution", Page: 3, Y: 10, FontSize: 16},
		{Text: "• Instant booking", Page: 3, Y: 40, FontSize: 11},
		{Text: "2. Verified hosts", Page: 3, Y: 55, FontSize: 11},
		{Text: "Key metrics", Page: 3, Y: 80, FontSize: 11, Bold: true},
	}

	doc, diags := AssembleRuns("deck.pdf", runs, DefaultAssembleOptions())
	assert.Empty(t, diags)

	want := []ir.Block{
		{Kind: ir.BlockHeading, Text: "Stayhub", Level: 1},
		{Kind: ir.BlockHeading, Text: "The Problem", Level: 1},
		{Kind: ir.BlockParagraph, Text: "Finding a home takes days. Hosts are unverified."},
		{Kind: ir.BlockHeading, Text: "Solution", Level: 2},
		{Kind: ir.BlockListItem, Text: "Instant booking", Level: 1},
		{Kind: ir.BlockListItem, Text: "Verified hosts", Level: 1},
		{Kind: ir.BlockHeading, Text: "Key metrics", Level: 2},
	}
	require.Len(t, doc.Blocks, len(want))
	for i, w := range want {
		assert.Equal(t, w.Kind, doc.Blocks[i].Kind, "block %d kind", i)
		assert.Equal(t, w.Text, doc.Blocks[i].Text, "block %d text", i)
		assert.Equal(t, w.Level, doc.Blocks[i].Level, "block %d level", i)
	}

	para := doc.Blocks[2]
	assert.Equal(t, 3, para.Range.StartLine)
	assert.Equal(t, 4, para.Range.EndLine)
}

func TestAssembleRuns_LowQuality(t *testing.T) {
	t.Run("no headings", func(t *testing.T) {
		runs := []TextRun{
			{Text: "All body text at one size", Page: 1, Y: 10, FontSize: 11},
			{Text: "and nothing else", Page: 1, Y: 30, FontSize: 11},
		}
		_, diags := AssembleRuns("deck.pdf", runs, DefaultAssembleOptions())
		require.Len(t, diags, 1)
		assert.Equal(t, ir.CodeLowQuality, diags[0].Code)
	})

	t.Run("fragments", func(t *testing.T) {
		runs := []TextRun{
			{Text: "Problem", Page: 1, Y: 10, FontSize: 20},
			{Text: "§§", Page: 1, Y: 30, FontSize: 11},
			{Text: "~~~~", Page: 1, Y: 50, FontSize: 11},
			{Text: "|", Page: 1, Y: 70, FontSize: 11},
		}
		_, diags := AssembleRuns("deck.pdf", runs, DefaultAssembleOptions())
		require.Len(t, diags, 1)
		assert.Contains(t, diags[0].Message, "look like text")
	})
}

func TestRegistry_For(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		path string
		want any
	}{
		{"deck.md", &MarkdownLoader{}},
		{"DECK.MARKDOWN", &MarkdownLoader{}},
		{"deck.html", &HTMLLoader{}},
		{"deck.runs.json", &RunsLoader{}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			l, ok := r.For(tt.path)
			require.True(t, ok)
			assert.IsType(t, tt.want, l)
		})
	}

	_, ok := r.For("deck.json")
	assert.False(t, ok)
}

func TestRegistry_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "deck.runs.json")
	data, err := json.Marshal([]TextRun{{Text: "Problem", Page: 1, FontSize: 20}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	doc, _, err := NewRegistry().LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.Source)
	assert.False(t, doc.ModifiedAt.IsZero(), "mtime fills a missing timestamp")
	require.Len(t, doc.Blocks, 1)

	_, _, err = NewRegistry().LoadFile(filepath.Join(dir, "deck.txt"))
	assert.ErrorContains(t, err, "no loader")
}

func TestRegistry_Discover(t *testing.T) {
	dir := t.TempDir()
	for _, rel := range []string{"a/deck.md", "a/b/other.markdown", "a/notes.txt", "z.html"} {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("# x\n"), 0o644))
	}

	r := NewRegistry()
	files, err := r.Discover(filepath.Join(dir, "**", "*"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a", "b", "other.markdown"),
		filepath.Join(dir, "a", "deck.md"),
		filepath.Join(dir, "z.html"),
	}, files)

	single, err := r.Discover(filepath.Join(dir, "a", "deck.md"))
	require.NoError(t, err)
	assert.Len(t, single, 1)
}
