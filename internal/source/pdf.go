package source

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/roach88/bpkit/internal/ir"
)

// TextRun is one positioned run of text from an external PDF extractor.
// Y grows downward within a page.
type TextRun struct {
	Text     string  `json:"text"`
	Page     int     `json:"page"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	FontSize float64 `json:"font_size"`
	Bold     bool    `json:"bold,omitempty"`
}

// AssembleOptions tunes how runs become blocks.
type AssembleOptions struct {
	// TitleSize and above is a level 1 heading.
	TitleSize float64
	// HeadingSize and above (or bold short lines) is a level 2 heading.
	HeadingSize float64
	// LineTolerance is the maximum Y distance of runs on one line.
	LineTolerance float64
	// MinQuality is the minimum share of well-formed lines.
	MinQuality float64
}

// DefaultAssembleOptions returns thresholds for typical slide exports.
func DefaultAssembleOptions() AssembleOptions {
	return AssembleOptions{TitleSize: 18, HeadingSize: 14, LineTolerance: 2, MinQuality: 0.6}
}

// RunsLoader loads JSON arrays of TextRun values.
type RunsLoader struct {
	Options AssembleOptions
}

// NewRunsLoader creates a loader with default thresholds.
func NewRunsLoader() *RunsLoader {
	return &RunsLoader{Options: DefaultAssembleOptions()}
}

// Extensions implements Loader.
func (l *RunsLoader) Extensions() []string {
	return []string{".runs.json"}
}

// Load implements Loader.
func (l *RunsLoader) Load(name string, content []byte) (*ir.Document, []ir.Diagnostic, error) {
	var runs []TextRun
	if err := json.Unmarshal(content, &runs); err != nil {
		return nil, nil, fmt.Errorf("decode text runs %s: %w", name, err)
	}
	doc, diags := AssembleRuns(name, runs, l.Options)
	return doc, diags, nil
}

type pdfLine struct {
	text string
	page int
	size float64
	bold bool
}

// AssembleRuns groups runs into lines and classifies each line as heading,
// list item or body text. Consecutive body lines of the same size on a page
// merge into one paragraph. Lines are numbered in reading order and offsets
// count runes of the assembled text.
func AssembleRuns(name string, runs []TextRun, opts AssembleOptions) (*ir.Document, []ir.Diagnostic) {
	lines := groupLines(runs, opts.LineTolerance)
	doc := &ir.Document{Source: name, Blocks: []ir.Block{}}

	offset := 0
	wellFormed := 0
	for i, ln := range lines {
		lineNo := i + 1
		rng := ir.SourceRange{StartLine: lineNo, EndLine: lineNo, StartOffset: offset, EndOffset: offset + len([]rune(ln.text))}
		offset = rng.EndOffset + 1
		if isWellFormed(ln.text) {
			wellFormed++
		}

		kind, level, txt := classifyLine(ln, opts)
		if kind == ir.BlockParagraph && len(doc.Blocks) > 0 {
			prev := &doc.Blocks[len(doc.Blocks)-1]
			if prev.Kind == ir.BlockParagraph && i > 0 && lines[i-1].page == ln.page && lines[i-1].size == ln.size {
				prev.Text += " " + txt
				prev.Range = prev.Range.Span(rng)
				continue
			}
		}
		doc.Blocks = append(doc.Blocks, ir.Block{Kind: kind, Text: txt, Level: level, Range: rng})
	}

	var diags []ir.Diagnostic
	if len(lines) > 0 && len(doc.Headings()) == 0 {
		diags = append(diags, ir.Warn(ir.CodeLowQuality, ir.Location{},
			"no line reached heading size %.0f; sections cannot be told apart from body text", opts.HeadingSize))
	}
	if len(lines) > 0 {
		if q := float64(wellFormed) / float64(len(lines)); q < opts.MinQuality {
			diags = append(diags, ir.Warn(ir.CodeLowQuality, ir.Location{},
				"only %.0f%% of extracted lines look like text (minimum %.0f%%)", q*100, opts.MinQuality*100))
		}
	}
	return doc, diags
}

func groupLines(runs []TextRun, tolerance float64) []pdfLine {
	sorted := append([]TextRun(nil), runs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		if math.Abs(a.Y-b.Y) > tolerance {
			return a.Y < b.Y
		}
		return a.X < b.X
	})

	var lines []pdfLine
	var lastY float64
	for _, r := range sorted {
		txt := strings.TrimSpace(r.Text)
		if txt == "" {
			continue
		}
		if n := len(lines); n > 0 && lines[n-1].page == r.Page && math.Abs(lastY-r.Y) <= tolerance {
			ln := &lines[n-1]
			ln.text += " " + txt
			ln.size = math.Max(ln.size, r.FontSize)
			ln.bold = ln.bold && r.Bold
			continue
		}
		lines = append(lines, pdfLine{text: txt, page: r.Page, size: r.FontSize, bold: r.Bold})
		lastY = r.Y
	}
	return lines
}

var bulletPrefixes = []string{"•", "▪", "◦", "‣", "-", "*", "–"}

func classifyLine(ln pdfLine, opts AssembleOptions) (ir.BlockKind, int, string) {
	txt := ir.NormalizeSpace(ln.text)
	for _, p := range bulletPrefixes {
		if strings.HasPrefix(txt, p+" ") || (p != "-" && p != "*" && strings.HasPrefix(txt, p)) {
			return ir.BlockListItem, 1, strings.TrimSpace(strings.TrimPrefix(txt, p))
		}
	}
	if item, ok := numberedItem(txt); ok {
		return ir.BlockListItem, 1, item
	}
	switch {
	case ln.size >= opts.TitleSize:
		return ir.BlockHeading, 1, txt
	case ln.size >= opts.HeadingSize:
		return ir.BlockHeading, 2, txt
	case ln.bold && len(strings.Fields(txt)) <= 6:
		return ir.BlockHeading, 2, txt
	}
	return ir.BlockParagraph, 0, txt
}

// numberedItem recognizes "1. text" and "1) text".
func numberedItem(txt string) (string, bool) {
	i := 0
	for i < len(txt) && txt[i] >= '0' && txt[i] <= '9' {
		i++
	}
	if i == 0 || i+1 >= len(txt) || (txt[i] != '.' && txt[i] != ')') || txt[i+1] != ' ' {
		return "", false
	}
	return strings.TrimSpace(txt[i+2:]), true
}

// isWellFormed reports whether a line is mostly letters and longer than a
// stray glyph.
func isWellFormed(txt string) bool {
	letters, total := 0, 0
	for _, r := range txt {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			letters++
		}
	}
	return total > 2 && letters*2 > total
}
