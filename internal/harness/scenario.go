package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario: a deck, a sequence of edits and
// syncs against it, and assertions on the resulting state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Deck is the starting deck, relative to the scenario file.
	Deck string `yaml:"deck"`

	// Config optionally names a heuristic config file (.yaml or .cue),
	// relative to the scenario file. Defaults apply when empty.
	Config string `yaml:"config,omitempty"`

	// Steps run in order against one workspace.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the final workspace state.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one action against the workspace.
type Step struct {
	// Action is one of the Action* constants.
	Action string `yaml:"action"`

	// Constitution names the constitution file edited by edit_constitution.
	Constitution string `yaml:"constitution,omitempty"`

	// Replace and With describe a text edit: the first occurrence of
	// Replace becomes With.
	Replace string `yaml:"replace,omitempty"`
	With    string `yaml:"with,omitempty"`

	// Expect optionally checks the step's outcome.
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// StepExpect is the expected outcome of one step.
type StepExpect struct {
	// Error is the expected abort code (STRUCTURAL_ERROR, CONFLICT_STATE,
	// ...). Empty means the step must succeed.
	Error string `yaml:"error,omitempty"`

	// Changes is the expected number of classified changes (sync) or
	// proposals (reverse). Nil skips the check.
	Changes *int `yaml:"changes,omitempty"`
}

// Step actions.
const (
	ActionSync             = "sync"
	ActionReverse          = "reverse"
	ActionApply            = "apply"
	ActionDecompose        = "decompose"
	ActionEditDeck         = "edit_deck"
	ActionEditConstitution = "edit_constitution"
)

// Assertion validates the trace or the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Step is the zero-based step index for change and proposal assertions.
	Step int `yaml:"step,omitempty"`

	// Constitution is a constitution id, or a feature entity key prefixed
	// with "feature:".
	Constitution string `yaml:"constitution,omitempty"`

	Label          string `yaml:"label,omitempty"`
	Classification string `yaml:"classification,omitempty"`
	Bump           string `yaml:"bump,omitempty"`
	Version        string `yaml:"version,omitempty"`
	State          string `yaml:"state,omitempty"`
	Target         string `yaml:"target,omitempty"`
	Text           string `yaml:"text,omitempty"`
	Count          int    `yaml:"count,omitempty"`

	// Contains lists ids an impact report must include.
	Contains []string `yaml:"contains,omitempty"`
}

// Assertion types.
const (
	AssertChange         = "change"
	AssertProposal       = "proposal"
	AssertVersion        = "version"
	AssertState          = "state"
	AssertRetired        = "retired"
	AssertImpact         = "impact"
	AssertChangelogCount = "changelog_count"
	AssertDeckContains   = "deck_contains"
	AssertConstitutions  = "constitution_count"
)

// LoadScenario reads and parses a scenario YAML file. Deck and config
// paths are resolved relative to the file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	if scenario.Deck != "" && !filepath.IsAbs(scenario.Deck) {
		scenario.Deck = filepath.Join(base, scenario.Deck)
	}
	if scenario.Config != "" && !filepath.IsAbs(scenario.Config) {
		scenario.Config = filepath.Join(base, scenario.Config)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Deck == "" {
		return fmt.Errorf("deck is required")
	}
	if _, err := os.Stat(s.Deck); os.IsNotExist(err) {
		return fmt.Errorf("deck file not found: %s", s.Deck)
	}
	if s.Config != "" {
		if _, err := os.Stat(s.Config); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", s.Config)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, len(s.Steps)); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, s *Step) error {
	switch s.Action {
	case ActionSync, ActionReverse, ActionApply, ActionDecompose:
	case ActionEditDeck:
		if s.Replace == "" {
			return fmt.Errorf("steps[%d]: replace is required for edit_deck", index)
		}
	case ActionEditConstitution:
		if s.Constitution == "" || s.Replace == "" {
			return fmt.Errorf("steps[%d]: constitution and replace are required for edit_constitution", index)
		}
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, s.Action)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, steps int) error {
	need := func(ok bool, what string) error {
		if !ok {
			return fmt.Errorf("assertions[%d]: %s is required for %s", index, what, a.Type)
		}
		return nil
	}

	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertChange, AssertProposal:
		if a.Step < 0 || a.Step >= steps {
			return fmt.Errorf("assertions[%d]: step %d out of range", index, a.Step)
		}
		if a.Type == AssertChange {
			return need(a.Label != "", "label")
		}
		return need(a.Constitution != "", "constitution")
	case AssertVersion:
		if err := need(a.Constitution != "", "constitution"); err != nil {
			return err
		}
		return need(a.Version != "", "version")
	case AssertState:
		if err := need(a.Constitution != "", "constitution"); err != nil {
			return err
		}
		return need(a.State != "", "state")
	case AssertRetired:
		return need(a.Constitution != "", "constitution")
	case AssertImpact:
		if err := need(a.Target != "", "target"); err != nil {
			return err
		}
		return need(len(a.Contains) > 0, "contains")
	case AssertDeckContains:
		return need(a.Text != "", "text")
	case AssertChangelogCount, AssertConstitutions:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
