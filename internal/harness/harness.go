package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"github.com/roach88/peephole/internal/combine"
	"github.com/roach88/peephole/internal/compiler"
	"github.com/roach88/peephole/internal/engine"
	"github.com/roach88/peephole/internal/ir"
	"github.com/roach88/peephole/internal/legal"
	"github.com/roach88/peephole/internal/rules"
	"github.com/roach88/peephole/internal/store"
	"github.com/roach88/peephole/internal/testutil"
)

// Harness runs scenarios against one rule table.
type Harness struct {
	rules  *combine.Table
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithRules replaces the rule library the scenarios run with.
func WithRules(t *combine.Table) Option {
	return func(h *Harness) { h.rules = t }
}

// WithLogger sets the engine logger. Default: discard.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// New creates a Harness over the standard rule library.
func New(opts ...Option) *Harness {
	h := &Harness{
		rules:  rules.Table(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run executes a scenario with the standard rule library.
func Run(scenario *Scenario) (*Result, error) {
	return New().Run(context.Background(), scenario)
}

// run is the state shared by the checks of one scenario.
type run struct {
	h        *Harness
	scenario *Scenario
	cfg      combine.Config
	target   *legal.Table
	input    *ir.Function // untouched copy of the input
	output   *ir.Function
	res      *engine.Result
	result   *Result
}

// Run executes a scenario and returns its result.
//
// Each scenario runs in a fresh in-memory run log. An error means the
// scenario could not be executed at all; failed expectations are reported
// in the result.
//
// Execution flow:
//  1. Parse the input and build the engine
//  2. Combine the input and record the run
//  3. Read the firings back from the log
//  4. Check expectations and assertions
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	f, err := ir.Parse(scenario.Input)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	r := &run{
		h:        h,
		scenario: scenario,
		cfg:      scenario.CombineConfig(),
		target:   compiler.BuiltinTargets[scenario.TargetName()](),
		input:    f.Clone(),
		output:   f,
		result:   NewResult(scenario.Name),
	}

	eng, err := r.engine("scenario-" + scenario.Name)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	inputText := ir.Print(f)
	res, runErr := eng.Run(ctx, f)
	if res == nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, runErr)
	}
	r.res = res

	rec := store.NewRunRecord(res, r.cfg, scenario.TargetName(), inputText, ir.Print(f), runErr)
	if _, err := st.WriteRun(ctx, rec, res.Firings, res.Events); err != nil {
		return nil, fmt.Errorf("scenario %s: record run: %w", scenario.Name, err)
	}
	firings, err := st.ReadFirings(ctx, res.RunID)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: read firings: %w", scenario.Name, err)
	}

	result := r.result
	result.Status = res.Status
	result.Output = rec.Output
	for _, fr := range firings {
		result.Fired = append(result.Fired, fr.RuleID)
		result.Trace = append(result.Trace, TraceEntry{Seq: fr.Seq, Step: fr.Step, Rule: fr.RuleID, Instr: fr.Text})
	}
	var rtErr *engine.RuntimeError
	if errors.As(runErr, &rtErr) {
		result.ErrorCode = string(rtErr.Code)
	}

	r.checkExpect(runErr)
	for _, msg := range r.evaluateAssertions(ctx) {
		result.AddError(msg)
	}
	return result, nil
}

func (r *run) engine(runID string) (*engine.Engine, error) {
	c, err := combine.BuildCombiner(r.h.rules, r.cfg)
	if err != nil {
		return nil, err
	}
	return engine.New(c, r.target,
		engine.WithLogger(r.h.logger),
		engine.WithRunIDGenerator(testutil.FixedRunID(runID)),
	), nil
}

func (r *run) checkExpect(runErr error) {
	exp := r.scenario.Expect
	result := r.result

	if exp.Error == "" && runErr != nil {
		result.AddError(fmt.Sprintf("unexpected error: %v", runErr))
	}
	if exp.Error != "" && result.ErrorCode != exp.Error {
		got := result.ErrorCode
		if got == "" {
			got = "no error"
		}
		result.AddError(fmt.Sprintf("expected error %s, got %s", exp.Error, got))
	}
	if exp.Status != "" && string(result.Status) != exp.Status {
		result.AddError(fmt.Sprintf("expected status %s, got %s", exp.Status, result.Status))
	}
	if exp.Output != "" && strings.TrimSpace(exp.Output) != strings.TrimSpace(result.Output) {
		result.AddError(fmt.Sprintf("output mismatch:\n--- expected\n%s\n--- actual\n%s",
			strings.TrimSpace(exp.Output), strings.TrimSpace(result.Output)))
	}
	if exp.Fired != nil && !slices.Equal(*exp.Fired, result.Fired) {
		result.AddError(fmt.Sprintf("expected firings %v, got %v", *exp.Fired, result.Fired))
	}
}
