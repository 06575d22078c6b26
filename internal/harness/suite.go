package harness

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Failures       []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is one scenario that did not pass.
type ScenarioFailure struct {
	Scenario string   `json:"scenario"`
	Path     string   `json:"path"`
	Errors   []string `json:"errors"`
}

// FindScenarios expands pattern into scenario files, sorted. A directory
// matches every .yaml and .yml file beneath it.
func FindScenarios(pattern string) ([]string, error) {
	if info, err := os.Stat(pattern); err == nil && info.IsDir() {
		pattern = filepath.Join(pattern, "**", "*.{yaml,yml}")
	}
	paths, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// RunSuite runs every scenario matching pattern.
//
// A scenario that fails to load or run counts as failed; the suite keeps
// going so one report covers everything.
func RunSuite(ctx context.Context, pattern string) (*SuiteResult, error) {
	paths, err := FindScenarios(pattern)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenarios match %s", pattern)
	}

	result := &SuiteResult{}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.TotalScenarios++
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		scenario, run, err := RunFile(ctx, path)
		switch {
		case scenario == nil:
			result.fail(name, path, fmt.Sprintf("failed to load scenario: %v", err))
		case err != nil:
			result.fail(scenario.Name, path, fmt.Sprintf("scenario execution failed: %v", err))
		case !run.Pass:
			result.fail(scenario.Name, path, run.Errors...)
		default:
			result.Passed++
		}
	}
	return result, nil
}

func (r *SuiteResult) fail(name, path string, errs ...string) {
	r.Failed++
	r.Failures = append(r.Failures, ScenarioFailure{Scenario: name, Path: path, Errors: errs})
}
