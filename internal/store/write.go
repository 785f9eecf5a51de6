package store

import (
	"context"
	"fmt"

	"github.com/roach88/peephole/internal/combine"
	"github.com/roach88/peephole/internal/engine"
)

// RunRecord is the stored summary of one combine run.
type RunRecord struct {
	ID         string         `json:"id"`
	Seq        int64          `json:"seq"` // assigned by WriteRun
	Function   string         `json:"function"`
	Combiner   string         `json:"combiner"`
	Target     string         `json:"target"`
	Config     combine.Config `json:"config"`
	ConfigHash string         `json:"config_hash"` // assigned by WriteRun
	Status     engine.Status  `json:"status"`
	Error      string         `json:"error,omitempty"`
	Input      string         `json:"input"`
	Output     string         `json:"output"`
	InputHash  string         `json:"input_hash"`
	OutputHash string         `json:"output_hash"`
	Steps      int            `json:"steps"`
	Rewrites   int            `json:"rewrites"`
	DeadErased int            `json:"dead_erased"`
}

// NewRunRecord summarizes res. input and output are the printed function
// before and after the run; runErr is the error Run returned, if any.
func NewRunRecord(res *engine.Result, cfg combine.Config, target, input, output string, runErr error) RunRecord {
	rec := RunRecord{
		ID:         res.RunID,
		Function:   res.Function,
		Combiner:   cfg.Name,
		Target:     target,
		Config:     cfg,
		Status:     res.Status,
		Input:      input,
		Output:     output,
		InputHash:  res.InputHash,
		OutputHash: res.OutputHash,
		Steps:      res.Steps,
		Rewrites:   res.Rewrites,
		DeadErased: res.DeadErased,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	return rec
}

// WriteRun stores a run with its firings and events in one transaction.
//
// Writing is idempotent on the run ID: if the run already exists nothing
// is written and inserted is false. The stored seq is one past the
// largest seq in the log.
func (s *Store) WriteRun(ctx context.Context, rec RunRecord, firings []engine.Firing, events []engine.Event) (inserted bool, err error) {
	configJSON, err := marshalConfig(rec.Config)
	if err != nil {
		return false, fmt.Errorf("write run: %w", err)
	}
	configHash, err := ConfigHash(rec.Config)
	if err != nil {
		return false, fmt.Errorf("write run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, function, combiner, target, config, config_hash, status, error,
		 input, output, input_hash, output_hash, steps, rewrites, dead_erased)
		VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM runs), ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		rec.ID,
		rec.Function,
		rec.Combiner,
		rec.Target,
		configJSON,
		configHash,
		string(rec.Status),
		rec.Error,
		rec.Input,
		rec.Output,
		rec.InputHash,
		rec.OutputHash,
		rec.Steps,
		rec.Rewrites,
		rec.DeadErased,
	)
	if err != nil {
		return false, fmt.Errorf("write run: insert run: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write run: rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, nil
	}

	firingStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO firings (run_id, seq, step, rule_id, rule_number, instr, opcode, text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return false, fmt.Errorf("write run: prepare firings: %w", err)
	}
	defer firingStmt.Close()
	for _, f := range firings {
		if _, err := firingStmt.ExecContext(ctx, rec.ID, f.Seq, f.Step, f.RuleID, f.RuleNumber, int64(f.Instr), f.Opcode, f.Text); err != nil {
			return false, fmt.Errorf("write run: insert firing %d: %w", f.Seq, err)
		}
	}

	eventStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO events (run_id, seq, kind, instr, text, rule_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return false, fmt.Errorf("write run: prepare events: %w", err)
	}
	defer eventStmt.Close()
	for _, e := range events {
		if _, err := eventStmt.ExecContext(ctx, rec.ID, e.Seq, string(e.Kind), int64(e.Instr), e.Text, e.RuleID); err != nil {
			return false, fmt.Errorf("write run: insert event %d: %w", e.Seq, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("write run: commit: %w", err)
	}
	return true, nil
}

// DeleteRun removes a run and, by cascade, its firings and events.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}
