package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Scenario defines a convergence scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the relay room
	// and the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Replicas lists replica ids. Each id is also the replica's tie-break
	// identity, so ordering between equal timestamps follows these names.
	Replicas []string `yaml:"replicas"`

	// Start is the initial wall-clock reading of every replica (default 1000).
	Start int64 `yaml:"start,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one action in a scenario.
type Step struct {
	// Replica the action runs on. Not used by sync_all.
	Replica string `yaml:"replica,omitempty"`

	// At sets the replica's wall clock before the action.
	At int64 `yaml:"at,omitempty"`

	Action string `yaml:"action"`
	ID     string `yaml:"id,omitempty"`
	Title  string `yaml:"title,omitempty"`

	// ExpectError marks a step that must fail.
	ExpectError bool `yaml:"expect_error,omitempty"`
}

// Step actions.
const (
	ActionAdd        = "add"
	ActionRename     = "rename"
	ActionToggle     = "toggle"
	ActionDelete     = "delete"
	ActionSync       = "sync"
	ActionSyncAll    = "sync_all"
	ActionDisconnect = "disconnect"
	ActionRestart    = "restart"
)

// Assertion validates the final state.
type Assertion struct {
	Type string `yaml:"type"`

	// Replica restricts a task assertion to one replica.
	Replica string `yaml:"replica,omitempty"`

	ID        string  `yaml:"id,omitempty"`
	Title     *string `yaml:"title,omitempty"`
	Completed *bool   `yaml:"completed,omitempty"`

	// Count is the expected number of tasks (task_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertConverged  = "converged"
	AssertTask       = "task"
	AssertTaskAbsent = "task_absent"
	AssertTaskCount  = "task_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Replicas) == 0 {
		return fmt.Errorf("replicas list is required and must be non-empty")
	}
	seen := make(map[string]bool, len(s.Replicas))
	for _, r := range s.Replicas {
		if r == "" {
			return fmt.Errorf("replica ids must be non-empty")
		}
		if seen[r] {
			return fmt.Errorf("duplicate replica %q", r)
		}
		seen[r] = true
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step, s.Replicas); err != nil {
			return err
		}
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(i, a, s.Replicas); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step Step, replicas []string) error {
	switch step.Action {
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	case ActionSyncAll:
		return nil
	case ActionAdd, ActionRename, ActionToggle, ActionDelete,
		ActionSync, ActionDisconnect, ActionRestart:
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, step.Action)
	}

	if !slices.Contains(replicas, step.Replica) {
		return fmt.Errorf("steps[%d]: unknown replica %q", index, step.Replica)
	}
	switch step.Action {
	case ActionAdd, ActionRename:
		if step.ID == "" || step.Title == "" {
			return fmt.Errorf("steps[%d]: %s needs id and title", index, step.Action)
		}
	case ActionToggle, ActionDelete:
		if step.ID == "" {
			return fmt.Errorf("steps[%d]: %s needs id", index, step.Action)
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion, replicas []string) error {
	if a.Replica != "" && !slices.Contains(replicas, a.Replica) {
		return fmt.Errorf("assertions[%d]: unknown replica %q", index, a.Replica)
	}
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertConverged:
	case AssertTask:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for task", index)
		}
		if a.Title == nil && a.Completed == nil {
			return fmt.Errorf("assertions[%d]: task needs title or completed", index)
		}
	case AssertTaskAbsent:
		if a.ID == "" {
			return fmt.Errorf("assertions[%d]: id is required for task_absent", index)
		}
	case AssertTaskCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
