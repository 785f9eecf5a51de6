package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/roach88/peephole/internal/combine"
	"github.com/roach88/peephole/internal/compiler"
	"github.com/roach88/peephole/internal/engine"
	"github.com/roach88/peephole/internal/ir"
)

// Scenario is one combine test case.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Target is a built-in target name. Default: aarch64.
	Target string `yaml:"target,omitempty"`

	// Config overrides the default post-legalization configuration.
	Config *ScenarioConfig `yaml:"config,omitempty"`

	// Input is the textual function to combine.
	Input string `yaml:"input"`

	// Expect holds whole-run expectations.
	Expect Expect `yaml:"expect,omitempty"`

	// Assertions are checked against the output after the run.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// path is the file the scenario was loaded from, if any.
	path string
}

// ScenarioConfig is the YAML form of combine.Config.
type ScenarioConfig struct {
	Disable       []string `yaml:"disable,omitempty"`
	OnlyEnable    []string `yaml:"only_enable,omitempty"`
	MaxIterations int      `yaml:"max_iterations,omitempty"`
	AllowIllegal  bool     `yaml:"allow_illegal,omitempty"`
	DCE           *bool    `yaml:"dce,omitempty"`
	DetectCycles  bool     `yaml:"detect_cycles,omitempty"`
}

// Expect holds expectations about the whole run. Empty fields are not
// checked.
type Expect struct {
	// Status is the engine status the run must end with.
	Status string `yaml:"status,omitempty"`

	// Error is the runtime error code the run must fail with.
	Error string `yaml:"error,omitempty"`

	// Output is the exact printed output, compared after trimming.
	Output string `yaml:"output,omitempty"`

	// Fired is the exact ordered list of rule IDs that fired. A present
	// but empty list means nothing may fire.
	Fired *[]string `yaml:"fired,omitempty"`
}

// Assertion checks one property of the run.
type Assertion struct {
	Type string `yaml:"type"`

	// Opcode is used by opcode_count and no_opcode.
	Opcode string `yaml:"opcode,omitempty"`

	// Rule is used by fired and not_fired.
	Rule string `yaml:"rule,omitempty"`

	// Count is the expected number for opcode_count and, optionally, fired.
	Count *int `yaml:"count,omitempty"`

	// Samples are argument tuples for equivalent. Each tuple feeds ARG 0,
	// ARG 1, ... in order.
	Samples [][]int64 `yaml:"samples,omitempty"`
}

// Assertion type constants.
const (
	AssertOpcodeCount = "opcode_count"
	AssertNoOpcode    = "no_opcode"
	AssertFired       = "fired"
	AssertNotFired    = "not_fired"
	AssertLegal       = "legal"
	AssertIdempotent  = "idempotent"
	AssertEquivalent  = "equivalent"
)

// DefaultTarget is used when a scenario names none.
const DefaultTarget = "aarch64"

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or fails validation.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.path = path
	return s, nil
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches "assertion:" for "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every .yaml and .yml file directly in dir, ordered
// by file name. Scenario names must be unique.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}
	var names []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)

	seen := make(map[string]string)
	scenarios := make([]*Scenario, 0, len(names))
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if prev, dup := seen[s.Name]; dup {
			return nil, fmt.Errorf("scenario %q is defined in both %s and %s", s.Name, prev, name)
		}
		seen[s.Name] = name
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// Path returns the file the scenario was loaded from, or "".
func (s *Scenario) Path() string { return s.path }

// CombineConfig returns the combiner configuration the scenario runs with.
func (s *Scenario) CombineConfig() combine.Config {
	cfg := combine.DefaultConfig()
	cfg.Name = "scenario:" + s.Name
	if c := s.Config; c != nil {
		cfg.Filter = combine.RuleFilter{Disable: c.Disable, OnlyEnable: c.OnlyEnable}
		if c.MaxIterations > 0 {
			cfg.MaxIterations = c.MaxIterations
		}
		cfg.AllowIllegal = c.AllowIllegal
		if c.DCE != nil {
			cfg.DeadCodeElimination = *c.DCE
		}
		cfg.DetectCycles = c.DetectCycles
	}
	return cfg
}

// TargetName returns the scenario's target, defaulted.
func (s *Scenario) TargetName() string {
	if s.Target == "" {
		return DefaultTarget
	}
	return s.Target
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Input == "" {
		return fmt.Errorf("input is required")
	}
	if _, err := ir.Parse(s.Input); err != nil {
		return fmt.Errorf("input: %w", err)
	}
	if _, ok := compiler.BuiltinTargets[s.TargetName()]; !ok {
		return fmt.Errorf("unknown target %q", s.Target)
	}
	if c := s.Config; c != nil && c.MaxIterations < 0 {
		return fmt.Errorf("config.max_iterations must be non-negative")
	}
	if st := s.Expect.Status; st != "" && !knownStatus(st) {
		return fmt.Errorf("expect.status: unknown status %q", st)
	}
	if code := s.Expect.Error; code != "" && !knownErrorCode(code) {
		return fmt.Errorf("expect.error: unknown error code %q", code)
	}
	for i, a := range s.Assertions {
		if err := validateAssertion(a, i); err != nil {
			return err
		}
	}
	return nil
}

func knownStatus(s string) bool {
	switch engine.Status(s) {
	case engine.StatusFixpoint, engine.StatusSkipped, engine.StatusRefused,
		engine.StatusBudgetExhausted, engine.StatusCycleDetected,
		engine.StatusIllegalRewrite, engine.StatusApplyContract:
		return true
	}
	return false
}

func knownErrorCode(code string) bool {
	switch engine.RuntimeErrorCode(code) {
	case engine.ErrCodePreconditionViolated, engine.ErrCodeBudgetExhausted,
		engine.ErrCodeCycleDetected, engine.ErrCodeIllegalRewrite,
		engine.ErrCodeApplyContract:
		return true
	}
	return false
}

func validateAssertion(a Assertion, index int) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertOpcodeCount, AssertNoOpcode:
		if a.Opcode == "" {
			return fmt.Errorf("assertions[%d]: opcode is required for %s", index, a.Type)
		}
		if _, ok := ir.ParseOpcode(a.Opcode); !ok {
			return fmt.Errorf("assertions[%d]: unknown opcode %q", index, a.Opcode)
		}
		if a.Type == AssertOpcodeCount && (a.Count == nil || *a.Count < 0) {
			return fmt.Errorf("assertions[%d]: non-negative count is required for opcode_count", index)
		}
	case AssertFired, AssertNotFired:
		if a.Rule == "" {
			return fmt.Errorf("assertions[%d]: rule is required for %s", index, a.Type)
		}
		if a.Count != nil && *a.Count < 1 {
			return fmt.Errorf("assertions[%d]: count must be positive for fired", index)
		}
	case AssertLegal, AssertIdempotent:
	case AssertEquivalent:
		if len(a.Samples) == 0 {
			return fmt.Errorf("assertions[%d]: samples are required for equivalent", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
