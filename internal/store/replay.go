package store

import (
	"context"
	"fmt"

	"github.com/roach88/peephole/internal/engine"
	"github.com/roach88/peephole/internal/ir"
)

// EngineFactory rebuilds the engine a recorded run was combined with,
// usually by resolving rec.Target and rec.Config.
type EngineFactory func(rec RunRecord) (*engine.Engine, error)

// Mismatch is one difference between a recording and its replay.
type Mismatch struct {
	Field    string `json:"field"`
	Recorded string `json:"recorded"`
	Replayed string `json:"replayed"`
}

// ReplayResult is the outcome of replaying one run.
type ReplayResult struct {
	RunID      string     `json:"run_id"`
	Function   string     `json:"function"`
	Match      bool       `json:"match"`
	Mismatches []Mismatch `json:"mismatches,omitempty"`
}

// Replay re-runs a recorded input with its recorded configuration and
// compares status, output and the firing sequence.
//
// A replay that differs is not an error: the differences are in the
// result. Errors mean the replay could not be attempted.
func (s *Store) Replay(ctx context.Context, runID string, build EngineFactory) (ReplayResult, error) {
	rec, err := s.ReadRun(ctx, runID)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}
	firings, err := s.ReadFirings(ctx, runID)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay: %w", err)
	}

	f, err := ir.Parse(rec.Input)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay %s: parse recorded input: %w", runID, err)
	}
	eng, err := build(rec)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay %s: rebuild engine: %w", runID, err)
	}

	res, runErr := eng.Run(ctx, f)
	if res == nil {
		return ReplayResult{}, fmt.Errorf("replay %s: %w", runID, runErr)
	}

	mismatches := Compare(rec, firings, res, ir.Print(f))
	return ReplayResult{
		RunID:      rec.ID,
		Function:   rec.Function,
		Match:      len(mismatches) == 0,
		Mismatches: mismatches,
	}, nil
}

// ReplayAll replays every run in the log in write order.
func (s *Store) ReplayAll(ctx context.Context, build EngineFactory) ([]ReplayResult, error) {
	runs, err := s.ListRuns(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("replay all: %w", err)
	}
	results := make([]ReplayResult, 0, len(runs))
	for _, rec := range runs {
		r, err := s.Replay(ctx, rec.ID, build)
		if err != nil {
			return results, err
		}
		results = append(results, r)
	}
	return results, nil
}

// Compare lists the differences between a recorded run and a fresh result
// whose printed output is output. Firing seq values are not compared,
// since they depend on the clock the engine was given.
func Compare(rec RunRecord, firings []engine.Firing, res *engine.Result, output string) []Mismatch {
	var out []Mismatch
	check := func(field, recorded, replayed string) {
		if recorded != replayed {
			out = append(out, Mismatch{Field: field, Recorded: recorded, Replayed: replayed})
		}
	}

	check("input_hash", rec.InputHash, res.InputHash)
	check("status", string(rec.Status), string(res.Status))
	check("output_hash", rec.OutputHash, res.OutputHash)
	check("output", rec.Output, output)
	check("steps", fmt.Sprint(rec.Steps), fmt.Sprint(res.Steps))
	check("rewrites", fmt.Sprint(rec.Rewrites), fmt.Sprint(res.Rewrites))
	check("dead_erased", fmt.Sprint(rec.DeadErased), fmt.Sprint(res.DeadErased))

	check("firings", fmt.Sprint(len(firings)), fmt.Sprint(len(res.Firings)))
	for i := range min(len(firings), len(res.Firings)) {
		want, got := firings[i], res.Firings[i]
		check(fmt.Sprintf("firings[%d]", i), firingKey(want), firingKey(got))
	}
	return out
}

func firingKey(f engine.Firing) string {
	return fmt.Sprintf("step %d %s #%d %s", f.Step, f.RuleID, f.Instr, f.Text)
}
