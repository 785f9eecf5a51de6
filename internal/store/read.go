package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/peephole/internal/engine"
	"github.com/roach88/peephole/internal/ir"
	"github.com/roach88/peephole/internal/queryir"
	"github.com/roach88/peephole/internal/querysql"
)

// ErrRunNotFound is returned by ReadRun for an unknown run ID.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `id, seq, function, combiner, target, config, config_hash, status, error,
	input, output, input_hash, output_hash, steps, rewrites, dead_erased`

// ReadRun returns the run with the given ID.
func (s *Store) ReadRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return rec, nil
}

// ListRuns returns every run in write order. A non-empty function keeps
// only the runs of that function.
//
// Returns an empty slice (not nil) if the log has no matching runs.
func (s *Store) ListRuns(ctx context.Context, function string) ([]RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if function != "" {
		query += ` WHERE function = ?`
		args = append(args, function)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: iterate: %w", err)
	}
	return runs, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var (
		rec        RunRecord
		configJSON string
		status     string
	)
	err := row.Scan(
		&rec.ID,
		&rec.Seq,
		&rec.Function,
		&rec.Combiner,
		&rec.Target,
		&configJSON,
		&rec.ConfigHash,
		&status,
		&rec.Error,
		&rec.Input,
		&rec.Output,
		&rec.InputHash,
		&rec.OutputHash,
		&rec.Steps,
		&rec.Rewrites,
		&rec.DeadErased,
	)
	if err != nil {
		return RunRecord{}, err
	}
	rec.Status = engine.Status(status)
	rec.Config, err = unmarshalConfig(configJSON)
	if err != nil {
		return RunRecord{}, err
	}
	return rec, nil
}

// FiringRow is a firing together with the run it belongs to.
type FiringRow struct {
	RunID string `json:"run_id"`
	engine.Firing
}

// EventRow is an event together with the run it belongs to.
type EventRow struct {
	RunID string `json:"run_id"`
	engine.Event
}

// ReadFirings returns the firings of a run in firing order.
func (s *Store) ReadFirings(ctx context.Context, runID string) ([]engine.Firing, error) {
	rows, err := s.QueryFirings(ctx, queryir.Equals{Field: "run_id", Value: queryir.String(runID)})
	if err != nil {
		return nil, err
	}
	out := make([]engine.Firing, len(rows))
	for i, r := range rows {
		out[i] = r.Firing
	}
	return out, nil
}

// ReadEvents returns the observer events of a run in clock order.
func (s *Store) ReadEvents(ctx context.Context, runID string) ([]engine.Event, error) {
	rows, err := s.QueryEvents(ctx, queryir.Equals{Field: "run_id", Value: queryir.String(runID)})
	if err != nil {
		return nil, err
	}
	out := make([]engine.Event, len(rows))
	for i, r := range rows {
		out[i] = r.Event
	}
	return out, nil
}

// QueryFirings returns the firings matching filter, across runs, ordered
// by seq. A nil filter matches every firing.
func (s *Store) QueryFirings(ctx context.Context, filter queryir.Predicate) ([]FiringRow, error) {
	q := queryir.Select{
		From:    "firings",
		Filter:  filter,
		Columns: []string{"run_id", "seq", "step", "rule_id", "rule_number", "instr", "opcode", "text"},
	}
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query firings: %w", err)
	}
	defer rows.Close()

	out := []FiringRow{}
	for rows.Next() {
		var (
			r     FiringRow
			instr int64
		)
		if err := rows.Scan(&r.RunID, &r.Seq, &r.Step, &r.RuleID, &r.RuleNumber, &instr, &r.Opcode, &r.Text); err != nil {
			return nil, fmt.Errorf("query firings: scan: %w", err)
		}
		r.Instr = ir.InstrID(instr)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query firings: iterate: %w", err)
	}
	return out, nil
}

// QueryEvents returns the events matching filter, across runs, ordered by
// seq. A nil filter matches every event.
func (s *Store) QueryEvents(ctx context.Context, filter queryir.Predicate) ([]EventRow, error) {
	q := queryir.Select{
		From:    "events",
		Filter:  filter,
		Columns: []string{"run_id", "seq", "kind", "instr", "text", "rule_id"},
	}
	rows, err := s.query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := []EventRow{}
	for rows.Next() {
		var (
			r     EventRow
			kind  string
			instr int64
		)
		if err := rows.Scan(&r.RunID, &r.Seq, &kind, &instr, &r.Text, &r.RuleID); err != nil {
			return nil, fmt.Errorf("query events: scan: %w", err)
		}
		r.Kind = engine.EventKind(kind)
		r.Instr = ir.InstrID(instr)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query events: iterate: %w", err)
	}
	return out, nil
}

func (s *Store) query(ctx context.Context, q queryir.Query) (*sql.Rows, error) {
	text, params, err := querysql.Compile(q)
	if err != nil {
		return nil, err
	}
	return s.db.QueryContext(ctx, text, params...)
}
