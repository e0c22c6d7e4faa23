package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/reqlog/internal/ir"
	"github.com/roach88/reqlog/internal/testutil"
)

// Scenario defines a replay scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Steps are appended to the log in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the replayed request.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one log entry: a signed action, or raw bytes.
type Step struct {
	// Action is the core action name (e.g., "create", "accept").
	Action string `yaml:"action,omitempty"`

	// Signer names the signing party. Required with Action.
	Signer string `yaml:"signer,omitempty"`

	// Params are the action parameters. Party references are resolved
	// before signing.
	Params map[string]any `yaml:"params,omitempty"`

	// Version overrides the protocol version written on the action.
	Version string `yaml:"version,omitempty"`

	// Raw is appended verbatim instead of a signed action.
	Raw string `yaml:"raw,omitempty"`

	// Expect, when set, is checked against the event the step produced.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the replay outcome of a step.
type Expect struct {
	// Status is applied, rejected or malformed.
	Status string `yaml:"status"`

	// Reason is the expected rejection reason (e.g., "UNAUTHORIZED").
	Reason string `yaml:"reason,omitempty"`
}

// Assertion validates the replayed request.
type Assertion struct {
	// Type selects the check; see the package documentation.
	Type string `yaml:"type"`

	// Equals is the expected value for state, expected_amount and
	// extension_value.
	Equals string `yaml:"equals,omitempty"`

	// Count is the expected number of events (event_count).
	Count int `yaml:"count,omitempty"`

	// Statuses is the expected status sequence (event_statuses).
	Statuses []string `yaml:"statuses,omitempty"`

	// Extension is the extension id (extension_value, payment_reference).
	Extension string `yaml:"extension,omitempty"`

	// Key is the values key (extension_value).
	Key string `yaml:"key,omitempty"`
}

// Assertion type constants.
const (
	AssertState            = "state"
	AssertExpectedAmount   = "expected_amount"
	AssertEventCount       = "event_count"
	AssertEventStatuses    = "event_statuses"
	AssertExtensionValue   = "extension_value"
	AssertPaymentReference = "payment_reference"
	AssertNoRequest        = "no_request"
)

var validStatuses = map[string]bool{
	string(ir.EventApplied):   true,
	string(ir.EventRejected):  true,
	string(ir.EventMalformed): true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Reject unknown fields so "assertion:" vs "assertions:" typos fail loudly.
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

// LoadDir loads every *.yaml scenario in dir, sorted by file name.
func LoadDir(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
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
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	switch {
	case step.Raw != "" && step.Action != "":
		return fmt.Errorf("steps[%d]: raw and action are exclusive", index)
	case step.Raw == "" && step.Action == "":
		return fmt.Errorf("steps[%d]: action or raw is required", index)
	}
	if step.Action != "" {
		if _, ok := testutil.PartyKey(step.Signer); !ok {
			return fmt.Errorf("steps[%d]: unknown signer %q", index, step.Signer)
		}
	}
	if step.Expect != nil {
		if !validStatuses[step.Expect.Status] {
			return fmt.Errorf("steps[%d].expect: unknown status %q", index, step.Expect.Status)
		}
		if step.Expect.Reason != "" && step.Expect.Status != string(ir.EventRejected) {
			return fmt.Errorf("steps[%d].expect: reason requires status rejected", index)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertState, AssertExpectedAmount:
		if a.Equals == "" {
			return fmt.Errorf("assertions[%d]: equals is required for %s", index, a.Type)
		}
	case AssertEventCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for event_count", index)
		}
	case AssertEventStatuses:
		if len(a.Statuses) == 0 {
			return fmt.Errorf("assertions[%d]: statuses list is required for event_statuses", index)
		}
		for _, st := range a.Statuses {
			if !validStatuses[st] {
				return fmt.Errorf("assertions[%d]: unknown status %q", index, st)
			}
		}
	case AssertExtensionValue:
		if a.Extension == "" || a.Key == "" {
			return fmt.Errorf("assertions[%d]: extension and key are required for extension_value", index)
		}
	case AssertPaymentReference:
		if a.Extension == "" {
			return fmt.Errorf("assertions[%d]: extension is required for payment_reference", index)
		}
	case AssertNoRequest:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
