package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/speciate/internal/invoke"
)

// Scenario is a sequence of binds, invocations and rebinds applied to one
// target handle.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Target names a built-in target function.
	Target string `yaml:"target"`

	// Delegate wraps the target in a delegating handle.
	Delegate bool `yaml:"delegate,omitempty"`

	// Runtime overrides the runtime thresholds.
	Runtime *Thresholds `yaml:"runtime,omitempty"`

	// Steps run in order against the current handle.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final handle and runtime.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Thresholds overrides runtime thresholds. Nil fields keep the defaults.
type Thresholds struct {
	FieldCount  *int `yaml:"field_count,omitempty"`
	Expressions *int `yaml:"expressions,omitempty"`
	Compile     *int `yaml:"compile,omitempty"`
}

// Step performs one operation on the current handle.
type Step struct {
	Bind   *BindStep   `yaml:"bind,omitempty"`
	Invoke *InvokeStep `yaml:"invoke,omitempty"`
	Rebind bool        `yaml:"rebind,omitempty"`

	// Expect validates the step. Without it the step must succeed.
	Expect *Expect `yaml:"expect,omitempty"`
}

// BindStep binds Value to parameter Pos of the current handle.
type BindStep struct {
	Pos   int `yaml:"pos"`
	Value any `yaml:"value"`
}

// InvokeStep calls the current handle.
type InvokeStep struct {
	Args []any `yaml:"args"`
}

// Expect specifies the expected outcome of a step.
type Expect struct {
	// Result is compared with the invocation result in its %v rendering.
	Result any `yaml:"result,omitempty"`

	// Error is the expected error kind, e.g. CONTRACT_VIOLATION.
	Error string `yaml:"error,omitempty"`

	// Species is the expected signature key of the handle after the step.
	Species *string `yaml:"species,omitempty"`
}

// Assertion validates the state after all steps.
type Assertion struct {
	// Type is one of species, rebinds, unit_exists, unit_count.
	Type string `yaml:"type"`

	// Key is the expected signature key (species).
	Key string `yaml:"key,omitempty"`

	// Name is the expected unit name (unit_exists).
	Name string `yaml:"name,omitempty"`

	// Count is the expected number (rebinds, unit_count).
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertSpecies    = "species"
	AssertRebinds    = "rebinds"
	AssertUnitExists = "unit_exists"
	AssertUnitCount  = "unit_count"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
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

// runtimeOptions returns the runtime options for the threshold overrides.
func (s *Scenario) runtimeOptions() []invoke.Option {
	if s.Runtime == nil {
		return nil
	}
	var opts []invoke.Option
	if s.Runtime.FieldCount != nil {
		opts = append(opts, invoke.WithFieldCountThreshold(*s.Runtime.FieldCount))
	}
	if s.Runtime.Expressions != nil {
		opts = append(opts, invoke.WithExpressionThreshold(*s.Runtime.Expressions))
	}
	if s.Runtime.Compile != nil {
		opts = append(opts, invoke.WithCompileThreshold(*s.Runtime.Compile))
	}
	return opts
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Target == "" {
		return fmt.Errorf("target is required")
	}
	if _, ok := targets[s.Target]; !ok {
		return fmt.Errorf("unknown target %q", s.Target)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		ops := 0
		if step.Bind != nil {
			ops++
		}
		if step.Invoke != nil {
			ops++
		}
		if step.Rebind {
			ops++
		}
		if ops != 1 {
			return fmt.Errorf("steps[%d]: exactly one of bind, invoke, rebind is required", i)
		}
		if step.Expect != nil && step.Expect.Result != nil && step.Invoke == nil {
			return fmt.Errorf("steps[%d].expect: result is only valid for invoke", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertSpecies:
	case AssertRebinds, AssertUnitCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertUnitExists:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for unit_exists", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
