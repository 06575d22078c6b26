package source

import (
	"fmt"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"

	"github.com/roach88/bpkit/internal/ir"
)

// HTMLLoader loads HTML-exported decks by converting them to Markdown.
type HTMLLoader struct {
	markdown *MarkdownLoader
}

// NewHTMLLoader creates an HTML loader.
func NewHTMLLoader() *HTMLLoader {
	return &HTMLLoader{markdown: NewMarkdownLoader()}
}

// Extensions implements Loader.
func (l *HTMLLoader) Extensions() []string {
	return []string{".html", ".htm"}
}

// Load implements Loader. Source ranges refer to the converted Markdown,
// so the document is not patchable.
func (l *HTMLLoader) Load(name string, content []byte) (*ir.Document, []ir.Diagnostic, error) {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.Table())

	markdown, err := conv.ConvertBytes(content)
	if err != nil {
		return nil, nil, fmt.Errorf("convert %s to markdown: %w", name, err)
	}
	doc, diags, err := l.markdown.Load(name, markdown)
	if err != nil {
		return nil, nil, err
	}
	doc.Patchable = false
	return doc, diags, nil
}
