package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/bpkit/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Golden string // directory of golden trace files
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios>",
		Short: "Run sync scenarios",
		Long: `Run scenario files: each replays deck and constitution edits through
sync in a scratch workspace and checks its assertions.

<scenarios> is a directory (every .yaml/.yml beneath it) or a glob
pattern. With --golden, each scenario's trace is also compared with
<golden>/<name>.golden; --update rewrites those files.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  bpkit test ./scenarios
  bpkit test ./scenarios --filter "pricing-*"
  bpkit test ./scenarios --golden ./golden --update
  bpkit test "scenarios/**/*.yaml" --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Golden, "golden", "", "compare traces with golden files in this directory")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, pattern string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)
	if opts.Update && opts.Golden == "" {
		return failCode(f, ErrCodeGeneric, ExitCommandError, "--update requires --golden", nil)
	}

	files, err := harness.FindScenarios(pattern)
	if err != nil {
		return failCode(f, ErrCodeScenarios, ExitCommandError, "find scenarios", err)
	}
	files, err = filterScenarios(files, opts.Filter)
	if err != nil {
		return failCode(f, ErrCodeScenarios, ExitCommandError, "invalid filter pattern", err)
	}
	if len(files) == 0 {
		return f.Success(TestResult{Scenarios: []ScenarioResult{}}, func(w io.Writer) {
			fmt.Fprintln(w, "No scenarios found.")
		})
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	for _, file := range files {
		sr := runScenario(opts, file, cmd)
		f.VerboseLog("%s: pass=%v", sr.Name, sr.Pass)
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	text := func(w io.Writer) { writeTests(w, result) }
	if result.Failed == 0 {
		return f.Success(result, text)
	}
	msg := fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.Total)
	if err := f.Failure(ErrCodeScenarios, msg, result, text); err != nil {
		return err
	}
	return &ExitError{Code: ExitFailure, Message: msg, Reported: true}
}

// filterScenarios keeps files whose base name without extension matches
// filter.
func filterScenarios(files []string, filter string) ([]string, error) {
	if filter == "" {
		return files, nil
	}
	var out []string
	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		ok, err := filepath.Match(filter, name)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, file)
		}
	}
	return out, nil
}

// runScenario executes one scenario and checks its golden trace.
func runScenario(opts *TestOptions, file string, cmd *cobra.Command) ScenarioResult {
	sr := ScenarioResult{Name: filepath.Base(file), Path: file}

	scenario, result, err := harness.RunFile(cmd.Context(), file)
	if scenario == nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return sr
	}
	sr.Name = scenario.Name
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		return sr
	}
	sr.Pass = result.Pass
	sr.Errors = result.Errors

	if opts.Golden == "" {
		return sr
	}
	if err := checkGolden(opts, scenario.Name, result); err != nil {
		sr.Pass = false
		sr.Errors = append(sr.Errors, err.Error())
	}
	return sr
}

func checkGolden(opts *TestOptions, name string, result *harness.Result) error {
	got, err := harness.MarshalTrace(name, result)
	if err != nil {
		return fmt.Errorf("marshal trace: %w", err)
	}
	path := filepath.Join(opts.Golden, name+".golden")

	if opts.Update {
		if err := os.MkdirAll(opts.Golden, 0o755); err != nil {
			return fmt.Errorf("failed to update golden file: %w", err)
		}
		if err := os.WriteFile(path, got, 0o644); err != nil {
			return fmt.Errorf("failed to update golden file: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("golden file missing: %s (run with --update)", path)
	}
	if err != nil {
		return fmt.Errorf("golden comparison failed: %w", err)
	}
	if !bytes.Equal(bytes.TrimSpace(want), bytes.TrimSpace(got)) {
		return fmt.Errorf("trace differs from %s", path)
	}
	return nil
}

func writeTests(w io.Writer, r TestResult) {
	for _, s := range r.Scenarios {
		if s.Pass {
			fmt.Fprintf(w, "✓ %s\n", s.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", r.Passed, r.Failed, r.Total)
}
