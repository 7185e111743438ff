package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is one conformance test case.
type Scenario struct {
	// Name uniquely identifies the scenario; golden files are keyed
	// by it.
	Name string `yaml:"name"`

	// Description explains what the scenario demonstrates.
	Description string `yaml:"description"`

	// Rules lists CUE rule files to register, resolved relative to
	// the scenario file.
	Rules []string `yaml:"rules,omitempty"`

	// Setup invocations establish initial state. Each must complete
	// with a non-error variant.
	Setup []Step `yaml:"setup,omitempty"`

	// Steps are the invocations under test, each with an optional
	// expectation on its completion.
	Steps []Step `yaml:"steps,omitempty"`

	// Request optionally drives one request-driven flow after the
	// steps.
	Request *RequestStep `yaml:"request,omitempty"`

	// Assertions are checked against the combined trace and the
	// final store state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Step invokes one concept action inside a fresh flow.
type Step struct {
	// Invoke is "Concept.action".
	Invoke string `yaml:"invoke"`

	// Args is the action input.
	Args map[string]any `yaml:"args,omitempty"`

	// Expect validates the step's completion; nil skips validation.
	Expect *Expect `yaml:"expect,omitempty"`
}

// RequestStep drives one request-driven flow.
type RequestStep struct {
	// Body is the request input.
	Body map[string]any `yaml:"body"`

	// Expect validates the response body; nil skips validation.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect is a partial match on a completion or response.
type Expect struct {
	// Variant is the expected variant tag; empty accepts any.
	Variant string `yaml:"variant,omitempty"`

	// Output is a subset match on the output or response body: every
	// listed field must be present and equal.
	Output map[string]any `yaml:"output,omitempty"`
}

// Assertion types.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// Assertion validates the trace or the final store state.
type Assertion struct {
	Type string `yaml:"type"`

	// Action is "Concept.action" (trace_contains, trace_count).
	Action string `yaml:"action,omitempty"`

	// Variant restricts trace_contains/trace_count to completions
	// with this tag.
	Variant string `yaml:"variant,omitempty"`

	// Args is a subset match on the invocation input (trace_contains).
	Args map[string]any `yaml:"args,omitempty"`

	// Actions is the required completion order (trace_order).
	Actions []string `yaml:"actions,omitempty"`

	// Count is the expected number of matches (trace_count) or rows
	// (final_state). Nil means unconstrained for final_state.
	Count *int `yaml:"count,omitempty"`

	// Relation and Where select store rows (final_state).
	Relation string         `yaml:"relation,omitempty"`
	Where    map[string]any `yaml:"where,omitempty"`

	// Expect requires at least one selected row to contain these
	// fields (final_state).
	Expect map[string]any `yaml:"expect,omitempty"`
}

// LoadScenario reads and validates a scenario file. Rule paths are
// resolved relative to the scenario's directory. Unknown YAML fields
// are rejected to catch typos.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}

	base := filepath.Dir(path)
	for i, rule := range s.Rules {
		if !filepath.IsAbs(rule) {
			s.Rules[i] = filepath.Join(base, rule)
		}
	}

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Steps) == 0 && s.Request == nil {
		return fmt.Errorf("at least one step or a request is required")
	}
	for i, step := range s.Setup {
		if step.Invoke == "" {
			return fmt.Errorf("setup[%d]: invoke is required", i)
		}
	}
	for i, step := range s.Steps {
		if step.Invoke == "" {
			return fmt.Errorf("steps[%d]: invoke is required", i)
		}
	}
	for i, a := range s.Assertions {
		if err := a.validate(); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func (a *Assertion) validate() error {
	switch a.Type {
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("action is required for %s", a.Type)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("actions list is required for %s", a.Type)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("action is required for %s", a.Type)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("non-negative count is required for %s", a.Type)
		}
	case AssertFinalState:
		if a.Relation == "" {
			return fmt.Errorf("relation is required for %s", a.Type)
		}
		if a.Count == nil && a.Expect == nil {
			return fmt.Errorf("count or expect is required for %s", a.Type)
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
