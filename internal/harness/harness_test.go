package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/peephole/internal/combine"
	"github.com/roach88/peephole/internal/engine"
	"github.com/roach88/peephole/internal/ir"
)

func loadTestScenario(t *testing.T, name string) *Scenario {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata/scenarios", name+".yaml"))
	require.NoError(t, err)
	return s
}

// TestRun_Scenarios tests that every shipped scenario passes.
func TestRun_Scenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := Run(s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

// TestRun_Mul9Golden tests the mul9 snapshot against its golden file.
func TestRun_Mul9Golden(t *testing.T) {
	require.NoError(t, RunWithGolden(t, loadTestScenario(t, "mul_const_9")))
}

// TestRun_ResultFields tests the fields filled from the run log.
func TestRun_ResultFields(t *testing.T) {
	result, err := Run(loadTestScenario(t, "commute_then_mul"))
	require.NoError(t, err)
	assert.Equal(t, engine.StatusFixpoint, result.Status)
	assert.Empty(t, result.ErrorCode)
	assert.Equal(t, []string{"commute_constant_to_rhs", "mul_const"}, result.Fired)
	require.Len(t, result.Trace, 2)
	assert.Less(t, result.Trace[0].Seq, result.Trace[1].Seq)
	assert.Equal(t, "%2:s32 = G_MUL %1, %0", result.Trace[0].Instr)
	assert.Equal(t, "%2:s32 = G_MUL %0, %1", result.Trace[1].Instr)
}

// TestRun_ReportsFailures tests that broken expectations fail the result.
func TestRun_ReportsFailures(t *testing.T) {
	s, err := ParseScenario([]byte(`name: wrong
input: |
  func @mul9 legalized {
    %0:s32 = ARG 0
    %1:s32 = G_CONSTANT 9
    %2:s32 = G_MUL %0, %1
    RET %2
  }
expect:
  status: skipped
  fired: [copy_prop]
  output: "func @mul9 {\n}"
assertions:
  - type: opcode_count
    opcode: G_MUL
    count: 1
  - type: not_fired
    rule: mul_const
  - type: fired
    rule: copy_prop
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 6)
	assert.Contains(t, result.Errors[0], "expected status skipped, got fixpoint")
	assert.Contains(t, result.Errors[1], "output mismatch")
	assert.Contains(t, result.Errors[2], "expected firings [copy_prop], got [mul_const]")
	assert.Contains(t, result.Errors[3], "Expected: 1 G_MUL instructions")
	assert.Contains(t, result.Errors[4], "mul_const never fires")
	assert.Contains(t, result.Errors[5], "copy_prop fires")
}

// TestRun_UnexpectedError tests that an unexpected runtime error fails.
func TestRun_UnexpectedError(t *testing.T) {
	s := loadTestScenario(t, "budget")
	s.Expect = Expect{}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, "BUDGET_EXHAUSTED", result.ErrorCode)
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0], "unexpected error")
}

// TestRun_ExpectedErrorMissing tests expecting an error that never comes.
func TestRun_ExpectedErrorMissing(t *testing.T) {
	s := loadTestScenario(t, "mul_const_9")
	s.Expect.Error = "CYCLE_DETECTED"

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors, "expected error CYCLE_DETECTED, got no error")
}

// TestRun_NotIdempotent tests the idempotent assertion against a rule that
// always fires.
func TestRun_NotIdempotent(t *testing.T) {
	swap := combine.NewRule[struct{}]("swap_add", ir.G_ADD, []ir.Opcode{ir.G_ADD}, "commutes every add",
		func(h *combine.Helper, mi *ir.Instruction, _ *struct{}) bool { return true },
		func(h *combine.Helper, mi *ir.Instruction, _ *struct{}) {
			h.F.Mutate(mi, func() { h.F.SwapOperands(mi, 1, 2) })
		})
	table, err := combine.NewTable(swap)
	require.NoError(t, err)

	s, err := ParseScenario([]byte(`name: swap
config:
  max_iterations: 3
input: |
  func @add legalized {
    %0:s32 = ARG 0
    %1:s32 = ARG 1
    %2:s32 = G_ADD %0, %1
    RET %2
  }
expect:
  error: BUDGET_EXHAUSTED
assertions:
  - type: idempotent
`))
	require.NoError(t, err)

	result, err := New(WithRules(table)).Run(context.Background(), s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "second run succeeds")
}

// TestRun_EquivalentSampleTooShort tests the argument count check.
func TestRun_EquivalentSampleTooShort(t *testing.T) {
	s, err := ParseScenario([]byte(`name: short
input: |
  func @add legalized {
    %0:s32 = ARG 0
    %1:s32 = ARG 1
    %2:s32 = G_ADD %0, %1
    RET %2
  }
assertions:
  - type: equivalent
    samples: [[1]]
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "the function takes 2 arguments")
}

// TestAssertionError_Format tests the failure message layout.
func TestAssertionError_Format(t *testing.T) {
	err := &AssertionError{Type: AssertLegal, Expected: "legal", Actual: "illegal G_MUL", Fired: []string{"a", "b"}}
	assert.Equal(t, "Assertion failed: legal\n  Expected: legal\n  Actual: illegal G_MUL\n  Fired: a, b\n", err.Error())
}
