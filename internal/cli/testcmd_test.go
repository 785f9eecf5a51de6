package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/peephole/internal/harness"
)

const scenariosDir = "../harness/testdata/scenarios"

// copyScenarios copies the scenario files into a fresh directory with no
// golden sibling.
func copyScenarios(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "scenarios")
	require.NoError(t, os.Mkdir(dir, 0o755))
	entries, err := os.ReadDir(scenariosDir)
	require.NoError(t, err)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(scenariosDir, e.Name()))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, e.Name()), data, 0o644))
	}
	return dir
}

// TestTestCommand_Pass tests running the scenario suite without golden
// files.
func TestTestCommand_Pass(t *testing.T) {
	out, _, err := execute(t, "test", copyScenarios(t))
	require.NoError(t, err)
	assert.Contains(t, out, "PASS mul_const_9")
	assert.Contains(t, out, "PASS budget")
	assert.Contains(t, out, "0 failed")
}

// TestTestCommand_GoldenUpdateThenCompare tests writing golden files and
// checking against them.
func TestTestCommand_GoldenUpdateThenCompare(t *testing.T) {
	golden := t.TempDir()

	out, _, err := execute(t, "test", "--golden", golden, "--update", scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "PASS mul_const_9 (golden updated)")
	assert.FileExists(t, filepath.Join(golden, "mul_const_9.golden"))

	out, _, err = execute(t, "test", "--format", "json", "--golden", golden, scenariosDir)
	require.NoError(t, err)
	var suite harness.SuiteResult
	decodeData(t, out, &suite)
	assert.Equal(t, suite.Total, suite.Passed)
	assert.Zero(t, suite.Failed)
}

// TestTestCommand_StaleGolden tests that a changed golden file fails the
// scenario.
func TestTestCommand_StaleGolden(t *testing.T) {
	golden := t.TempDir()
	_, _, err := execute(t, "test", "--golden", golden, "--update", scenariosDir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(golden, "mul_const_9.golden"), []byte("stale\n"), 0o644))

	out, _, err := execute(t, "test", "--golden", golden, scenariosDir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "FAIL mul_const_9")
	assert.Contains(t, out, "1 failed")
}

// TestTestCommand_MissingDirectory tests a scenarios directory that does
// not exist.
func TestTestCommand_MissingDirectory(t *testing.T) {
	out, _, err := execute(t, "test", "testdata/no-scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}

// TestResolveGoldenDir tests golden directory selection.
func TestResolveGoldenDir(t *testing.T) {
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	sibling := filepath.Join(root, "golden")
	require.NoError(t, os.Mkdir(scenarios, 0o755))

	assert.Equal(t, "explicit", resolveGoldenDir("explicit", scenarios, false))
	assert.Empty(t, resolveGoldenDir("", scenarios, false))
	assert.Equal(t, sibling, resolveGoldenDir("", scenarios, true))

	require.NoError(t, os.Mkdir(sibling, 0o755))
	assert.Equal(t, sibling, resolveGoldenDir("", scenarios+"/", false))
}
