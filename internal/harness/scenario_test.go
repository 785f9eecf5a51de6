package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalScenario = `name: minimal
input: |
  func @f legalized {
    %0:s32 = ARG 0
    RET %0
  }
`

// TestParseScenario_Minimal tests defaults of a minimal scenario.
func TestParseScenario_Minimal(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario))
	require.NoError(t, err)
	assert.Equal(t, "minimal", s.Name)
	assert.Equal(t, DefaultTarget, s.TargetName())
	assert.Nil(t, s.Expect.Fired)

	cfg := s.CombineConfig()
	assert.Equal(t, "scenario:minimal", cfg.Name)
	assert.True(t, cfg.DeadCodeElimination)
	assert.Positive(t, cfg.MaxIterations)
}

// TestParseScenario_Config tests the config overrides.
func TestParseScenario_Config(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario + `config:
  disable: [mul_const]
  only_enable: ["0-3"]
  max_iterations: 7
  allow_illegal: true
  dce: false
  detect_cycles: true
`))
	require.NoError(t, err)
	cfg := s.CombineConfig()
	assert.Equal(t, []string{"mul_const"}, cfg.Filter.Disable)
	assert.Equal(t, []string{"0-3"}, cfg.Filter.OnlyEnable)
	assert.Equal(t, 7, cfg.MaxIterations)
	assert.True(t, cfg.AllowIllegal)
	assert.False(t, cfg.DeadCodeElimination)
	assert.True(t, cfg.DetectCycles)
}

// TestParseScenario_EmptyFired tests that an empty fired list is kept.
func TestParseScenario_EmptyFired(t *testing.T) {
	s, err := ParseScenario([]byte(minimalScenario + "expect:\n  fired: []\n"))
	require.NoError(t, err)
	require.NotNil(t, s.Expect.Fired)
	assert.Empty(t, *s.Expect.Fired)
}

// TestParseScenario_Rejects tests validation failures.
func TestParseScenario_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown field", minimalScenario + "assertion: []\n", "field assertion not found"},
		{"no name", "input: x\n", "name is required"},
		{"no input", "name: x\n", "input is required"},
		{"bad input", "name: x\ninput: nonsense\n", "input: line 1"},
		{"unknown target", minimalScenario + "target: z80\n", `unknown target "z80"`},
		{"bad status", minimalScenario + "expect:\n  status: done\n", `unknown status "done"`},
		{"bad error", minimalScenario + "expect:\n  error: OOPS\n", `unknown error code "OOPS"`},
		{"negative budget", minimalScenario + "config:\n  max_iterations: -1\n", "non-negative"},
		{"assertion type", minimalScenario + "assertions:\n  - type: magic\n", `unknown assertion type "magic"`},
		{"missing type", minimalScenario + "assertions:\n  - rule: x\n", "type is required"},
		{"opcode missing", minimalScenario + "assertions:\n  - type: no_opcode\n", "opcode is required"},
		{"opcode unknown", minimalScenario + "assertions:\n  - type: no_opcode\n    opcode: G_FOO\n", `unknown opcode "G_FOO"`},
		{"count missing", minimalScenario + "assertions:\n  - type: opcode_count\n    opcode: G_ADD\n", "count is required"},
		{"rule missing", minimalScenario + "assertions:\n  - type: fired\n", "rule is required"},
		{"zero fired count", minimalScenario + "assertions:\n  - type: fired\n    rule: x\n    count: 0\n", "count must be positive"},
		{"no samples", minimalScenario + "assertions:\n  - type: equivalent\n", "samples are required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// TestLoadScenario_MissingFile tests the read error.
func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

// TestLoadScenarios_SortedAndUnique tests directory loading.
func TestLoadScenarios_SortedAndUnique(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)
	assert.Equal(t, "budget", scenarios[0].Name)
	assert.Equal(t, filepath.Join("testdata/scenarios", "budget.yaml"), scenarios[0].Path())

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(minimalScenario), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.yml"), []byte(minimalScenario), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	_, err = LoadScenarios(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `scenario "minimal" is defined in both a.yaml and b.yml`)
}
