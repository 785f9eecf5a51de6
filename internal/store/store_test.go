package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/peephole/internal/combine"
	"github.com/roach88/peephole/internal/engine"
	"github.com/roach88/peephole/internal/ir"
	"github.com/roach88/peephole/internal/legal"
	"github.com/roach88/peephole/internal/queryir"
	"github.com/roach88/peephole/internal/rules"
)

const mul9Src = `func @mul9 legalized {
  %0:s32 = ARG 0
  %1:s32 = G_CONSTANT 9
  %2:s32 = G_MUL %0, %1
  RET %2
}`

const plainSrc = `func @plain legalized {
  %0:s32 = ARG 0
  %1:s32 = ARG 1
  %2:s32 = G_ADD %0, %1
  RET %2
}`

func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func buildEngine(cfg combine.Config, ids ...string) (*engine.Engine, error) {
	c, err := combine.BuildCombiner(rules.Table(), cfg)
	if err != nil {
		return nil, err
	}
	opts := []engine.Option{}
	if len(ids) > 0 {
		opts = append(opts, engine.WithRunIDGenerator(engine.NewFixedGenerator(ids...)))
	}
	return engine.New(c, legal.AArch64(), opts...), nil
}

// recordRun combines src and writes the run to s.
func recordRun(t *testing.T, s *Store, id, src string, cfg combine.Config) RunRecord {
	t.Helper()
	eng, err := buildEngine(cfg, id)
	require.NoError(t, err)

	f := ir.MustParse(src)
	input := ir.Print(f)
	res, runErr := eng.Run(context.Background(), f)
	require.NotNil(t, res)

	rec := NewRunRecord(res, cfg, "aarch64", input, ir.Print(f), runErr)
	inserted, err := s.WriteRun(context.Background(), rec, res.Firings, res.Events)
	require.NoError(t, err)
	require.True(t, inserted)

	stored, err := s.ReadRun(context.Background(), id)
	require.NoError(t, err)
	return stored
}

// TestOpen_CreatesNewDatabase tests that Open creates the file.
func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

// TestOpen_Idempotent tests reopening an existing log.
func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "iteration %d", i)

		var count int
		require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&count))
		require.NoError(t, s.Close())
	}
}

// TestOpen_Pragmas tests the connection configuration.
func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
	assert.NoError(t, s.verifyPragma("user_version", "1"))
}

// TestOpen_RejectsNewerSchema tests that a future schema is not touched.
func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

// TestWriteRun_RoundTrip tests that a run reads back as written.
func TestWriteRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	cfg := combine.DefaultConfig()
	cfg.Filter = combine.RuleFilter{Disable: []string{"copy_prop"}}

	rec := recordRun(t, s, "run-1", mul9Src, cfg)
	assert.Equal(t, "run-1", rec.ID)
	assert.Equal(t, int64(1), rec.Seq)
	assert.Equal(t, "mul9", rec.Function)
	assert.Equal(t, cfg.Name, rec.Combiner)
	assert.Equal(t, "aarch64", rec.Target)
	assert.Equal(t, cfg, rec.Config)
	assert.Equal(t, engine.StatusFixpoint, rec.Status)
	assert.Empty(t, rec.Error)
	assert.Equal(t, 1, rec.Rewrites)
	assert.Equal(t, 1, rec.DeadErased)
	assert.Contains(t, rec.Output, "G_SHL")
	assert.NotEqual(t, rec.InputHash, rec.OutputHash)

	hash, err := ConfigHash(cfg)
	require.NoError(t, err)
	assert.Equal(t, hash, rec.ConfigHash)
}

// TestWriteRun_Idempotent tests that rewriting a run ID inserts nothing.
func TestWriteRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := recordRun(t, s, "run-1", mul9Src, combine.DefaultConfig())

	inserted, err := s.WriteRun(ctx, rec, []engine.Firing{{Seq: 99, RuleID: "x"}}, nil)
	require.NoError(t, err)
	assert.False(t, inserted)

	firings, err := s.ReadFirings(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, firings, 1)
	assert.Equal(t, "mul_const", firings[0].RuleID)
}

// TestWriteRun_Atomic tests that a failing firing rolls back the run row.
func TestWriteRun_Atomic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	rec := RunRecord{ID: "run-dup", Function: "f", Config: combine.DefaultConfig(), Status: engine.StatusFixpoint}

	dup := []engine.Firing{{Seq: 1, RuleID: "a"}, {Seq: 1, RuleID: "b"}}
	_, err := s.WriteRun(ctx, rec, dup, nil)
	require.Error(t, err)

	_, err = s.ReadRun(ctx, "run-dup")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

// TestReadRun_NotFound tests the sentinel error.
func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadRun(context.Background(), "missing")
	require.ErrorIs(t, err, ErrRunNotFound)
}

// TestListRuns_OrderAndFilter tests write order and the function filter.
func TestListRuns_OrderAndFilter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	recordRun(t, s, "zz", mul9Src, combine.DefaultConfig())
	recordRun(t, s, "aa", plainSrc, combine.DefaultConfig())
	recordRun(t, s, "mm", mul9Src, combine.DefaultConfig())

	all, err := s.ListRuns(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"zz", "aa", "mm"}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Equal(t, []int64{1, 2, 3}, []int64{all[0].Seq, all[1].Seq, all[2].Seq})

	mul9, err := s.ListRuns(ctx, "mul9")
	require.NoError(t, err)
	require.Len(t, mul9, 2)
	assert.Equal(t, "mm", mul9[1].ID)
}

// TestReadEvents_ClockOrder tests the event log of a run.
func TestReadEvents_ClockOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	recordRun(t, s, "run-1", mul9Src, combine.DefaultConfig())

	events, err := s.ReadEvents(ctx, "run-1")
	require.NoError(t, err)
	require.NotEmpty(t, events)
	for i := 1; i < len(events); i++ {
		assert.Less(t, events[i-1].Seq, events[i].Seq)
	}

	var erasedByDCE bool
	for _, e := range events {
		if e.Kind == engine.EventErasing && e.RuleID == "" {
			erasedByDCE = true
		}
	}
	assert.True(t, erasedByDCE, "dead constant erasure carries no rule")
}

// TestQueryFirings_Filter tests filtering firings across runs.
func TestQueryFirings_Filter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	recordRun(t, s, "run-1", mul9Src, combine.DefaultConfig())
	recordRun(t, s, "run-2", plainSrc, combine.DefaultConfig())
	recordRun(t, s, "run-3", mul9Src, combine.DefaultConfig())

	rows, err := s.QueryFirings(ctx, queryir.Equals{Field: "rule_id", Value: queryir.String("mul_const")})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "run-1", rows[0].RunID)
	assert.Equal(t, "run-3", rows[1].RunID)
	assert.Equal(t, "G_MUL", rows[0].Opcode)

	rows, err = s.QueryFirings(ctx, queryir.Conj(
		queryir.Equals{Field: "run_id", Value: queryir.String("run-3")},
		queryir.AnyOf("rule_id", "mul_const", "copy_prop"),
	))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	_, err = s.QueryFirings(ctx, queryir.Equals{Field: "kind", Value: queryir.String("created")})
	assert.Error(t, err)
}

// TestQueryEvents_Kind tests filtering events by kind and rule.
func TestQueryEvents_Kind(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	recordRun(t, s, "run-1", mul9Src, combine.DefaultConfig())

	rows, err := s.QueryEvents(ctx, queryir.Conj(
		queryir.Equals{Field: "kind", Value: queryir.String(string(engine.EventCreated))},
		queryir.Equals{Field: "rule_id", Value: queryir.String("mul_const")},
	))
	require.NoError(t, err)
	require.Len(t, rows, 3, "constant, shift and add")
	for _, r := range rows {
		assert.Equal(t, engine.EventCreated, r.Kind)
	}
}

// TestDeleteRun_Cascades tests that firings and events go with the run.
func TestDeleteRun_Cascades(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	recordRun(t, s, "run-1", mul9Src, combine.DefaultConfig())

	require.NoError(t, s.DeleteRun(ctx, "run-1"))
	firings, err := s.ReadFirings(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, firings)
	events, err := s.ReadEvents(ctx, "run-1")
	require.NoError(t, err)
	assert.Empty(t, events)
}

// TestConfigHash_Stable tests that nil and empty filters hash alike.
func TestConfigHash_Stable(t *testing.T) {
	a := combine.DefaultConfig()
	b := combine.DefaultConfig()
	b.Filter = combine.RuleFilter{Disable: []string{}}

	ha, err := ConfigHash(a)
	require.NoError(t, err)
	hb, err := ConfigHash(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)

	b.MaxIterations = 7
	hb, err = ConfigHash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}
