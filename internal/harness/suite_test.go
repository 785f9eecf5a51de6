package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestRunSuite_AllPass tests the shipped scenarios as a suite.
func TestRunSuite_AllPass(t *testing.T) {
	suite, err := New().RunSuite(context.Background(), "testdata/scenarios", SuiteOptions{})
	require.NoError(t, err)
	assert.True(t, suite.OK(), "failures: %+v", suite.Failures)
	assert.Equal(t, suite.Total, suite.Passed)
	assert.Len(t, suite.Results, suite.Total)
}

// TestRunSuite_GoldenUpdateThenCompare tests writing and checking golden
// files outside go test.
func TestRunSuite_GoldenUpdateThenCompare(t *testing.T) {
	golden := t.TempDir()
	h := New()
	ctx := context.Background()

	_, err := h.RunSuite(ctx, "testdata/scenarios", SuiteOptions{GoldenDir: golden})
	require.NoError(t, err)

	suite, err := h.RunSuite(ctx, "testdata/scenarios", SuiteOptions{GoldenDir: golden, Update: true})
	require.NoError(t, err)
	assert.True(t, suite.OK())

	want, err := os.ReadFile("testdata/golden/mul_const_9.golden")
	require.NoError(t, err)
	got, err := os.ReadFile(filepath.Join(golden, "mul_const_9.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(got))

	suite, err = h.RunSuite(ctx, "testdata/scenarios", SuiteOptions{GoldenDir: golden})
	require.NoError(t, err)
	assert.True(t, suite.OK(), "failures: %+v", suite.Failures)

	require.NoError(t, os.WriteFile(filepath.Join(golden, "budget.golden"), []byte("stale\n"), 0o644))
	suite, err = h.RunSuite(ctx, "testdata/scenarios", SuiteOptions{GoldenDir: golden})
	require.NoError(t, err)
	assert.False(t, suite.OK())
	require.Len(t, suite.Failures, 1)
	assert.Equal(t, "budget", suite.Failures[0].Scenario)
	assert.Contains(t, suite.Failures[0].Errors[0], ErrGoldenMismatch.Error())
}

// TestRunSuite_MissingGolden tests that a missing golden file fails.
func TestRunSuite_MissingGolden(t *testing.T) {
	suite, err := New().RunSuite(context.Background(), "testdata/scenarios", SuiteOptions{GoldenDir: t.TempDir()})
	require.NoError(t, err)
	assert.Equal(t, suite.Total, suite.Failed)
}

// TestRunSuite_BadDirectory tests that load errors abort the suite.
func TestRunSuite_BadDirectory(t *testing.T) {
	_, err := New().RunSuite(context.Background(), filepath.Join(t.TempDir(), "missing"), SuiteOptions{})
	require.Error(t, err)
}

// TestSnapshot_Format tests the snapshot header lines.
func TestSnapshot_Format(t *testing.T) {
	r := NewResult("x")
	r.Status = "budget_exhausted"
	r.ErrorCode = "BUDGET_EXHAUSTED"
	r.Trace = []TraceEntry{{Seq: 1, Step: 2, Rule: "copy_prop", Instr: "%1:s32 = COPY %0"}}
	r.Output = "func @x {\n}\n"

	assert.Equal(t, "# scenario: x\n# status: budget_exhausted\n# error: BUDGET_EXHAUSTED\n"+
		"# fired: step 2 copy_prop: %1:s32 = COPY %0\nfunc @x {\n}\n", string(Snapshot(r)))
}
