package source

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/roach88/bpkit/internal/ir"
)

// MarkdownLoader parses Markdown decks with goldmark.
type MarkdownLoader struct {
	md goldmark.Markdown
}

// NewMarkdownLoader creates a Markdown loader with GFM table support.
func NewMarkdownLoader() *MarkdownLoader {
	return &MarkdownLoader{md: goldmark.New(goldmark.WithExtensions(extension.Table))}
}

// Extensions implements Loader.
func (l *MarkdownLoader) Extensions() []string {
	return []string{".md", ".markdown"}
}

// Load implements Loader. Front matter keys become document metadata; an
// "updated", "modified" or "date" key sets ModifiedAt.
func (l *MarkdownLoader) Load(name string, content []byte) (*ir.Document, []ir.Diagnostic, error) {
	content = NormalizeNewlines(content)

	var meta map[string]any
	body, offset, err := DecodeFrontMatter(content, &meta)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", name, err)
	}

	w := &mdWalker{src: body, base: offset, lines: newLineIndex(content)}
	root := l.md.Parser().Parse(text.NewReader(body))
	if err := ast.Walk(root, w.visit); err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", name, err)
	}

	doc := &ir.Document{
		Source:     name,
		Blocks:     w.blocks,
		Metadata:   flattenMeta(meta),
		ModifiedAt: metaTime(meta),
		Patchable:  true,
	}
	if doc.Blocks == nil {
		doc.Blocks = []ir.Block{}
	}
	return doc, nil, nil
}

// mdWalker collects blocks from a goldmark AST.
type mdWalker struct {
	src    []byte
	base   int // offset of src within the full content
	lines  lineIndex
	blocks []ir.Block
}

func (w *mdWalker) visit(n ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}

	switch node := n.(type) {
	case *ast.Heading:
		w.add(ir.BlockHeading, w.plainText(node), node.Level, node)
		return ast.WalkSkipChildren, nil

	case *ast.ListItem:
		var parts []string
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			if c.Kind() == ast.KindList {
				continue
			}
			if t := w.plainText(c); t != "" {
				parts = append(parts, t)
			}
		}
		w.add(ir.BlockListItem, strings.Join(parts, " "), listDepth(node), node)
		return ast.WalkContinue, nil

	case *ast.Paragraph, *ast.TextBlock:
		if n.Parent() != nil && n.Parent().Kind() == ast.KindListItem {
			return ast.WalkSkipChildren, nil
		}
		w.add(ir.BlockParagraph, w.plainText(n), 0, n)
		return ast.WalkSkipChildren, nil

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		var sb strings.Builder
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			sb.Write(seg.Value(w.src))
		}
		w.add(ir.BlockParagraph, ir.NormalizeSpace(sb.String()), 0, n)
		return ast.WalkSkipChildren, nil

	case *extast.TableHeader, *extast.TableRow:
		var cells []string
		for c := n.FirstChild(); c != nil; c = c.NextSibling() {
			cells = append(cells, w.plainText(c))
		}
		w.add(ir.BlockTableRow, strings.Join(cells, " | "), 0, n)
		return ast.WalkSkipChildren, nil

	case *ast.HTMLBlock, *ast.ThematicBreak:
		return ast.WalkSkipChildren, nil
	}

	return ast.WalkContinue, nil
}

func (w *mdWalker) add(kind ir.BlockKind, txt string, level int, n ast.Node) {
	if txt == "" && kind != ir.BlockHeading {
		return
	}
	block := ir.Block{Kind: kind, Text: txt, Level: level}
	if start, stop, ok := w.span(n); ok {
		start += w.base
		stop += w.base
		block.Range = ir.SourceRange{
			StartLine:   w.lines.line(start),
			EndLine:     w.lines.line(max(stop-1, start)),
			StartOffset: start,
			EndOffset:   stop,
		}
	}
	w.blocks = append(w.blocks, block)
}

// plainText returns the visible text of n with inline markup removed.
func (w *mdWalker) plainText(n ast.Node) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(w.src))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte(' ')
			}
		case *ast.String:
			sb.Write(t.Value)
		case *ast.AutoLink:
			sb.Write(t.Label(w.src))
			return ast.WalkSkipChildren, nil
		case *ast.RawHTML:
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return ir.NormalizeSpace(sb.String())
}

// span returns the byte range of n within src. Inline nodes have no line
// segments, so containers fall back to the union of their children.
func (w *mdWalker) span(n ast.Node) (start, stop int, ok bool) {
	if n.Type() == ast.TypeBlock {
		if lines := n.Lines(); lines != nil && lines.Len() > 0 {
			return lines.At(0).Start, lines.At(lines.Len() - 1).Stop, true
		}
	}
	if t, isText := n.(*ast.Text); isText {
		return t.Segment.Start, t.Segment.Stop, true
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		s, e, found := w.span(c)
		if !found {
			continue
		}
		if !ok || s < start {
			start = s
		}
		if !ok || e > stop {
			stop = e
		}
		ok = true
	}
	return start, stop, ok
}

// listDepth counts enclosing lists; a top-level item has depth 1.
func listDepth(n ast.Node) int {
	depth := 0
	for p := n.Parent(); p != nil; p = p.Parent() {
		if p.Kind() == ast.KindList {
			depth++
		}
	}
	return depth
}

// lineIndex holds the start offset of every line.
type lineIndex []int

func newLineIndex(src []byte) lineIndex {
	idx := lineIndex{0}
	for i, b := range src {
		if b == '\n' {
			idx = append(idx, i+1)
		}
	}
	return idx
}

// line returns the 1-based line containing offset.
func (l lineIndex) line(offset int) int {
	return sort.Search(len(l), func(i int) bool { return l[i] > offset })
}

func flattenMeta(meta map[string]any) map[string]string {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]string, len(meta))
	for k, v := range meta {
		if t, ok := v.(time.Time); ok {
			out[k] = t.UTC().Format(time.RFC3339)
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}

var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"}

func metaTime(meta map[string]any) time.Time {
	for _, key := range []string{"updated", "modified", "date"} {
		switch v := meta[key].(type) {
		case time.Time:
			return v.UTC()
		case string:
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, v); err == nil {
					return t.UTC()
				}
			}
		}
	}
	return time.Time{}
}
