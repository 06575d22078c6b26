package syncer

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// lineDiff renders a line-oriented diff of a and b: unchanged lines are
// prefixed with two spaces, removed lines with "- " and added lines with
// "+ ". Identical inputs produce "".
func lineDiff(a, b string) string {
	if a == b {
		return ""
	}
	dmp := diffmatchpatch.New()
	ca, cb, lines := dmp.DiffLinesToChars(withNewline(a), withNewline(b))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(ca, cb, false), lines)

	var sb strings.Builder
	for _, d := range diffs {
		prefix := "  "
		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "- "
		case diffmatchpatch.DiffInsert:
			prefix = "+ "
		}
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			sb.WriteString(prefix)
			sb.WriteString(line)
		}
	}
	return sb.String()
}

func withNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

// makePatch returns the textual patch turning before into after.
func makePatch(before, after string) string {
	dmp := diffmatchpatch.New()
	return dmp.PatchToText(dmp.PatchMake(before, after))
}

// applyPatch applies a textual patch to text. Every hunk must apply.
func applyPatch(patch, text string) (string, error) {
	dmp := diffmatchpatch.New()
	patches, err := dmp.PatchFromText(patch)
	if err != nil {
		return "", fmt.Errorf("parse patch: %w", err)
	}
	out, applied := dmp.PatchApply(patches, text)
	for i, ok := range applied {
		if !ok {
			return "", fmt.Errorf("patch hunk %d does not apply", i+1)
		}
	}
	return out, nil
}
