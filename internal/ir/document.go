package ir

import (
	"strings"
	"time"
)

// BlockKind identifies the kind of a raw document block.
type BlockKind string

const (
	BlockHeading   BlockKind = "heading"
	BlockParagraph BlockKind = "paragraph"
	BlockListItem  BlockKind = "list-item"
	BlockTableRow  BlockKind = "table-row"
)

// SourceRange locates a block in the source text.
// Lines are 1-based and inclusive; offsets are byte offsets, end exclusive.
type SourceRange struct {
	StartLine   int `json:"start_line"`
	EndLine     int `json:"end_line"`
	StartOffset int `json:"start_offset"`
	EndOffset   int `json:"end_offset"`
}

// Span returns the smallest range covering r and o.
func (r SourceRange) Span(o SourceRange) SourceRange {
	if r == (SourceRange{}) {
		return o
	}
	if o == (SourceRange{}) {
		return r
	}
	out := r
	out.StartLine = min(r.StartLine, o.StartLine)
	out.StartOffset = min(r.StartOffset, o.StartOffset)
	out.EndLine = max(r.EndLine, o.EndLine)
	out.EndOffset = max(r.EndOffset, o.EndOffset)
	return out
}

// Block is one raw unit of a loaded document.
type Block struct {
	Kind  BlockKind   `json:"kind"`
	Text  string      `json:"text"`
	Level int         `json:"level,omitempty"` // heading level (1-6); list nesting depth for list items
	Range SourceRange `json:"range"`
}

// Document is an ordered, read-only sequence of blocks produced by a loader.
type Document struct {
	// Source names where the document came from (path or URI).
	Source string `json:"source"`

	// Blocks in document order.
	Blocks []Block `json:"blocks"`

	// Metadata holds front matter key/values, if any.
	Metadata map[string]string `json:"metadata,omitempty"`

	// Patchable is set when block offsets index the raw input, so edits
	// can be written back into it.
	Patchable bool `json:"patchable,omitempty"`

	// ModifiedAt stamps constitutions synthesized from this document.
	// Loaders set it from front matter or file metadata; identical input
	// therefore synthesizes identical output.
	ModifiedAt time.Time `json:"modified_at"`
}

// Headings returns the indices of heading blocks in document order.
func (d *Document) Headings() []int {
	var idx []int
	for i, b := range d.Blocks {
		if b.Kind == BlockHeading {
			idx = append(idx, i)
		}
	}
	return idx
}

// JoinBlocks joins block texts with newlines, prefixing list items so the
// result reads like the source.
func JoinBlocks(blocks []Block) string {
	var sb strings.Builder
	for i, b := range blocks {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if b.Kind == BlockListItem {
			sb.WriteString("- ")
		}
		sb.WriteString(b.Text)
	}
	return sb.String()
}
