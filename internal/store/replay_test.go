package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/peephole/internal/combine"
	"github.com/roach88/peephole/internal/engine"
)

func replayFactory(rec RunRecord) (*engine.Engine, error) {
	return buildEngine(rec.Config)
}

// TestReplay_Matches tests that an unchanged engine reproduces its run.
func TestReplay_Matches(t *testing.T) {
	s := createTestStore(t)
	recordRun(t, s, "run-1", mul9Src, combine.DefaultConfig())

	res, err := s.Replay(context.Background(), "run-1", replayFactory)
	require.NoError(t, err)
	assert.True(t, res.Match, "mismatches: %v", res.Mismatches)
	assert.Equal(t, "mul9", res.Function)
}

// TestReplay_DetectsDrift tests that a changed rule set is reported.
func TestReplay_DetectsDrift(t *testing.T) {
	s := createTestStore(t)
	recordRun(t, s, "run-1", mul9Src, combine.DefaultConfig())

	noMul := func(rec RunRecord) (*engine.Engine, error) {
		cfg := rec.Config
		cfg.Filter.Disable = append(cfg.Filter.Disable, "mul_const")
		return buildEngine(cfg)
	}
	res, err := s.Replay(context.Background(), "run-1", noMul)
	require.NoError(t, err)
	assert.False(t, res.Match)

	fields := map[string]bool{}
	for _, m := range res.Mismatches {
		fields[m.Field] = true
	}
	assert.True(t, fields["output_hash"])
	assert.True(t, fields["firings"])
}

// TestReplay_FailedRun tests replaying a run that stopped on its budget.
func TestReplay_FailedRun(t *testing.T) {
	s := createTestStore(t)
	cfg := combine.DefaultConfig()
	cfg.MaxIterations = 2
	rec := recordRun(t, s, "run-1", mul9Src, cfg)
	assert.Equal(t, engine.StatusBudgetExhausted, rec.Status)
	assert.Contains(t, rec.Error, "BUDGET_EXHAUSTED")

	res, err := s.Replay(context.Background(), "run-1", replayFactory)
	require.NoError(t, err)
	assert.True(t, res.Match, "mismatches: %v", res.Mismatches)
}

// TestReplay_UnknownRun tests the not-found path.
func TestReplay_UnknownRun(t *testing.T) {
	s := createTestStore(t)
	_, err := s.Replay(context.Background(), "nope", replayFactory)
	require.ErrorIs(t, err, ErrRunNotFound)
}

// TestReplayAll_WriteOrder tests replaying the whole log.
func TestReplayAll_WriteOrder(t *testing.T) {
	s := createTestStore(t)
	recordRun(t, s, "b", mul9Src, combine.DefaultConfig())
	recordRun(t, s, "a", plainSrc, combine.DefaultConfig())

	results, err := s.ReplayAll(context.Background(), replayFactory)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "b", results[0].RunID)
	assert.Equal(t, "a", results[1].RunID)
	for _, r := range results {
		assert.True(t, r.Match)
	}
}
