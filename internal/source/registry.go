package source

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/roach88/bpkit/internal/ir"
)

// ErrNotPatchable is returned when edits cannot be written back into a deck
// because its document offsets do not index the raw file.
var ErrNotPatchable = errors.New("deck format cannot be patched")

// Loader turns raw content into a Document.
type Loader interface {
	// Load parses content named name.
	Load(name string, content []byte) (*ir.Document, []ir.Diagnostic, error)

	// Extensions lists the file suffixes this loader handles, with dot.
	Extensions() []string
}

// Registry manages loaders keyed by file suffix.
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]Loader
}

// NewRegistry creates a registry with the Markdown, HTML and text-run loaders.
func NewRegistry() *Registry {
	r := &Registry{loaders: make(map[string]Loader)}
	r.Register(NewMarkdownLoader())
	r.Register(NewHTMLLoader())
	r.Register(NewRunsLoader())
	return r
}

// Register adds a loader for each of its extensions.
func (r *Registry) Register(l Loader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ext := range l.Extensions() {
		r.loaders[strings.ToLower(ext)] = l
	}
}

// For returns the loader for path. The longest matching suffix wins, so
// "deck.runs.json" selects the text-run loader.
func (r *Registry) For(path string) (Loader, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lower := strings.ToLower(path)
	var best string
	for ext := range r.loaders {
		if strings.HasSuffix(lower, ext) && len(ext) > len(best) {
			best = ext
		}
	}
	if best == "" {
		return nil, false
	}
	return r.loaders[best], true
}

// Extensions returns all registered suffixes, sorted.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	exts := make([]string, 0, len(r.loaders))
	for ext := range r.loaders {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// LoadFile reads and loads path. When the loader leaves ModifiedAt unset,
// the file modification time (truncated to seconds) is used.
func (r *Registry) LoadFile(path string) (*ir.Document, []ir.Diagnostic, error) {
	loader, ok := r.For(path)
	if !ok {
		return nil, nil, fmt.Errorf("no loader for %s (supported: %s)", path, strings.Join(r.Extensions(), ", "))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read deck: %w", err)
	}

	doc, diags, err := loader.Load(path, content)
	if err != nil {
		return nil, nil, err
	}
	if doc.ModifiedAt.IsZero() {
		if info, statErr := os.Stat(path); statErr == nil {
			doc.ModifiedAt = info.ModTime().UTC().Truncate(time.Second)
		}
	}
	return doc, diags, nil
}

// Discover expands a doublestar pattern ("decks/**/*.md") into the sorted
// list of files some registered loader can handle. A pattern naming a single
// existing file returns it unchanged.
func (r *Registry) Discover(pattern string) ([]string, error) {
	if info, err := os.Stat(pattern); err == nil && !info.IsDir() {
		return []string{pattern}, nil
	}

	matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}

	var files []string
	for _, m := range matches {
		if _, ok := r.For(m); ok {
			files = append(files, filepath.Clean(m))
		}
	}
	sort.Strings(files)
	return files, nil
}
