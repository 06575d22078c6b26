package render

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/roach88/bpkit/internal/ir"
)

// Output directory layout.
const (
	DirStrategic = "strategic"
	DirFeatures  = "features"
	ChangelogMD  = "CHANGELOG.md"

	constitutionGlob = "{strategic,features}/*.md"
)

// Path returns the location of c relative to an output directory.
func Path(c ir.Constitution) string {
	dir := DirFeatures
	if c.Type == ir.TypeStrategic {
		dir = DirStrategic
	}
	return filepath.Join(dir, c.ID+".md")
}

// WriteDir renders every constitution under dir and removes constitution
// files no longer in cs, such as retired features. Files in the managed
// directories that do not parse as constitutions are left alone. It
// returns the written paths relative to dir.
func WriteDir(dir string, cs []ir.Constitution) ([]string, error) {
	for _, sub := range []string{DirStrategic, DirFeatures} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("write constitutions: %w", err)
		}
	}

	keep := map[string]bool{}
	written := make([]string, 0, len(cs))
	for _, c := range cs {
		data, err := Render(c)
		if err != nil {
			return nil, err
		}
		rel := Path(c)
		if err := os.WriteFile(filepath.Join(dir, rel), data, 0o644); err != nil {
			return nil, fmt.Errorf("write constitutions: %w", err)
		}
		keep[filepath.ToSlash(rel)] = true
		written = append(written, rel)
	}

	existing, err := doublestar.Glob(os.DirFS(dir), constitutionGlob)
	if err != nil {
		return nil, fmt.Errorf("write constitutions: %w", err)
	}
	for _, rel := range existing {
		if keep[rel] {
			continue
		}
		path := filepath.Join(dir, filepath.FromSlash(rel))
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("write constitutions: %w", err)
		}
		if _, err := Parse(data); err != nil {
			continue
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("write constitutions: %w", err)
		}
	}
	return written, nil
}

// ReadDir parses every constitution under dir, sorted by id. A missing
// directory yields no constitutions.
func ReadDir(dir string) ([]ir.Constitution, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), constitutionGlob)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read constitutions: %w", err)
	}

	out := make([]ir.Constitution, 0, len(matches))
	for _, rel := range matches {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			return nil, fmt.Errorf("read constitutions: %w", err)
		}
		c, err := Parse(data)
		if errors.Is(err, ErrNotConstitution) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", rel, err)
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Changelog renders entries newest first as a Markdown changelog.
func Changelog(entries []ir.ChangelogEntry) []byte {
	var buf bytes.Buffer
	buf.WriteString("# Changelog\n")
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		fmt.Fprintf(&buf, "\n## %d. %s\n\n", e.Seq, e.What)
		fmt.Fprintf(&buf, "- when: %s\n", e.Timestamp.UTC().Format("2006-01-02T15:04:05Z"))
		fmt.Fprintf(&buf, "- direction: %s\n", e.Direction)
		fmt.Fprintf(&buf, "- trigger: %s\n", e.Trigger)
		fmt.Fprintf(&buf, "- change: %s (bump %s)\n", e.Classification, e.Bump)
		if len(e.Impact) > 0 {
			fmt.Fprintf(&buf, "- impact: %s\n", strings.Join(e.Impact, ", "))
		}
		ids := make([]string, 0, len(e.Versions))
		for id := range e.Versions {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(&buf, "- %s: %s\n", id, e.Versions[id])
		}
	}
	return buf.Bytes()
}
