package cli

import (
	"cmp"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/peephole/internal/engine"
	"github.com/roach88/peephole/internal/rules"
)

// recordRuns combines path into a fresh database and returns the database
// path and the recorded results.
func recordRuns(t *testing.T, path string, extra ...string) (string, []FunctionResult) {
	t.Helper()
	db := filepath.Join(t.TempDir(), "runs.db")
	args := append([]string{"run", "--format", "json", "--db", db}, extra...)
	out, _, err := execute(t, append(args, path)...)
	require.NoError(t, err)

	var results []FunctionResult
	decodeData(t, out, &results)
	for _, r := range results {
		require.True(t, r.Recorded, r.Function)
	}
	return db, results
}

// TestTrace_Timeline tests that firings and events interleave by seq.
func TestTrace_Timeline(t *testing.T) {
	db, results := recordRuns(t, "testdata/mul.mir")
	mul := results[0]

	out, _, err := execute(t, "trace", "--format", "json", "--db", db, "--run", mul.RunID)
	require.NoError(t, err)

	var trace TraceResult
	decodeData(t, out, &trace)
	assert.Equal(t, mul.RunID, trace.RunID)
	assert.Equal(t, "mul9", trace.Function)
	assert.Equal(t, string(engine.StatusFixpoint), trace.Status)
	assert.Equal(t, 1, trace.Stats.Firings)
	assert.Equal(t, map[string]int{rules.MulConst: 1}, trace.Stats.ByRule)
	assert.Positive(t, trace.Stats.Events)
	assert.Len(t, trace.Timeline, trace.Stats.Firings+trace.Stats.Events)
	assert.True(t, slices.IsSortedFunc(trace.Timeline, func(a, b TraceEntry) int {
		return cmp.Compare(a.Seq, b.Seq)
	}))

	// The firing is stamped before the events its apply caused.
	first := slices.IndexFunc(trace.Timeline, func(e TraceEntry) bool { return e.RuleID == rules.MulConst })
	require.GreaterOrEqual(t, first, 0)
	assert.Equal(t, "firing", trace.Timeline[first].Type)
	assert.Equal(t, "%2:s32 = G_MUL %0, %1", trace.Timeline[first].Text)
}

// TestTrace_Filters tests the --kind, --rule and --no-events filters.
func TestTrace_Filters(t *testing.T) {
	db, results := recordRuns(t, "testdata/mul9.mir")
	runID := results[0].RunID

	t.Run("kind", func(t *testing.T) {
		out, _, err := execute(t, "trace", "--format", "json", "--db", db, "--run", runID, "--kind", "created")
		require.NoError(t, err)
		var trace TraceResult
		decodeData(t, out, &trace)
		assert.Zero(t, trace.Stats.Firings)
		require.NotEmpty(t, trace.Timeline)
		for _, e := range trace.Timeline {
			assert.Equal(t, "event", e.Type)
			assert.Equal(t, string(engine.EventCreated), e.Kind)
		}
	})

	t.Run("rule", func(t *testing.T) {
		out, _, err := execute(t, "trace", "--format", "json", "--db", db, "--run", runID, "--rule", rules.MulConst)
		require.NoError(t, err)
		var trace TraceResult
		decodeData(t, out, &trace)
		for _, e := range trace.Timeline {
			assert.Equal(t, rules.MulConst, e.RuleID)
		}
	})

	t.Run("no events", func(t *testing.T) {
		out, _, err := execute(t, "trace", "--format", "json", "--db", db, "--run", runID, "--no-events")
		require.NoError(t, err)
		var trace TraceResult
		decodeData(t, out, &trace)
		assert.Zero(t, trace.Stats.Events)
		require.Len(t, trace.Timeline, 1)
		assert.Equal(t, "firing", trace.Timeline[0].Type)
	})

	t.Run("text", func(t *testing.T) {
		out, _, err := execute(t, "trace", "--db", db, "--run", runID, "--rule", "copy_prop")
		require.NoError(t, err)
		assert.Contains(t, out, "Run "+runID+": @mul9, fixpoint")
		assert.Contains(t, out, "(no matching entries)")
		assert.Contains(t, out, "0 firing(s), 0 event(s)")
	})
}

// TestTrace_Errors tests trace argument and lookup errors.
func TestTrace_Errors(t *testing.T) {
	db, _ := recordRuns(t, "testdata/mul9.mir")

	_, _, err := execute(t, "trace", "--db", db, "--run", "no-such-run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "run not found")

	_, _, err = execute(t, "trace", "--db", db, "--run", "x", "--kind", "exploded")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `unknown event kind "exploded"`)

	_, _, err = execute(t, "trace", "--run", "x")
	require.Error(t, err)
}

// TestReplay_Deterministic tests that recorded runs replay identically.
func TestReplay_Deterministic(t *testing.T) {
	db, results := recordRuns(t, "testdata/mul.mir")

	out, _, err := execute(t, "replay", "--db", db)
	require.NoError(t, err)
	for _, r := range results {
		assert.Contains(t, out, "OK       "+r.RunID+" @"+r.Function)
	}
	assert.Contains(t, out, "All 2 run(s) replay identically")

	out, _, err = execute(t, "replay", "--format", "json", "--db", db, "--run", results[1].RunID)
	require.NoError(t, err)
	var summary ReplaySummary
	decodeData(t, out, &summary)
	assert.Equal(t, 1, summary.TotalRuns)
	assert.True(t, summary.Deterministic)
	require.Len(t, summary.Runs, 1)
	assert.Equal(t, "merge", summary.Runs[0].Function)
}

// TestReplay_RecordedConfig tests that replay rebuilds the recorded
// configuration, including filters and declared targets.
func TestReplay_RecordedConfig(t *testing.T) {
	db, results := recordRuns(t, "testdata/mul9.mir", "--config", "testdata/config", "--combiner", "no-shifts")
	require.Empty(t, results[0].Firings)

	out, _, err := execute(t, "replay", "--db", db, "--config", "testdata/config")
	require.NoError(t, err)
	assert.Contains(t, out, "All 1 run(s) replay identically")

	db, _ = recordRuns(t, "testdata/mul9.mir", "--disable-rule", rules.MulConst)
	_, _, err = execute(t, "replay", "--db", db)
	require.NoError(t, err)
}

// TestReplay_FailedRun tests that a refused run replays to the same
// refusal.
func TestReplay_FailedRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	_, _, err := execute(t, "run", "--db", db, "testdata/unlegalized.mir")
	require.Error(t, err)

	out, _, err := execute(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "@raw")
}

// TestReplay_UnknownRun tests replaying a run that was never recorded.
func TestReplay_UnknownRun(t *testing.T) {
	db, _ := recordRuns(t, "testdata/mul9.mir")
	_, _, err := execute(t, "replay", "--db", db, "--run", "missing")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
