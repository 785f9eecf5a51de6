package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/peephole/internal/combine"
	"github.com/roach88/peephole/internal/ir"
	"github.com/roach88/peephole/internal/legal"
)

// Status is how a run ended.
type Status string

const (
	StatusFixpoint        Status = "fixpoint"
	StatusSkipped         Status = "skipped"
	StatusRefused         Status = "refused"
	StatusBudgetExhausted Status = "budget_exhausted"
	StatusCycleDetected   Status = "cycle_detected"
	StatusIllegalRewrite  Status = "illegal_rewrite"
	StatusApplyContract   Status = "apply_contract"
)

// Firing records one successful match and apply.
type Firing struct {
	Seq        int64      `json:"seq"`
	Step       int        `json:"step"`
	RuleID     string     `json:"rule_id"`
	RuleNumber int        `json:"rule_number"`
	Instr      ir.InstrID `json:"instr"`
	Opcode     string     `json:"opcode"`
	Text       string     `json:"text"` // the anchor as printed before the apply
}

// Result summarizes one Run.
type Result struct {
	RunID      string   `json:"run_id"`
	Function   string   `json:"function"`
	Status     Status   `json:"status"`
	InputHash  string   `json:"input_hash"`
	OutputHash string   `json:"output_hash"`
	Steps      int      `json:"steps"`
	Rewrites   int      `json:"rewrites"`
	DeadErased int      `json:"dead_erased"`
	Firings    []Firing `json:"firings"`
	Events     []Event  `json:"events"`
}

// Skipped reports whether the function was left alone because of its
// properties.
func (r *Result) Skipped() bool { return r.Status == StatusSkipped }

// Mutations counts graph changes made by the run.
func (r *Result) Mutations() int { return r.Rewrites + r.DeadErased }

// Engine drives a Combiner over functions.
//
// An Engine holds no per-function state. Run may be called concurrently on
// different functions as long as any observer passed with WithObserver is
// itself safe for concurrent use.
type Engine struct {
	combiner      *combine.Combiner
	target        *legal.Table
	logger        *slog.Logger
	observers     []ir.Observer
	clock         *Clock
	runIDs        RunIDGenerator
	maxIterations int
	detectCycles  bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxIterations overrides the combiner's iteration budget.
//
// Use WithMaxIterations(10) for testing budget enforcement.
func WithMaxIterations(n int) Option {
	return func(e *Engine) {
		e.maxIterations = n
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithObserver attaches an extra observer (a CSE or dominator adapter, for
// example) to every function the engine combines.
func WithObserver(o ir.Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// WithClock shares one clock across all runs. By default each run starts
// its own clock at zero so seq values are comparable between runs.
func WithClock(c *Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithRunIDGenerator sets the run ID source. Default: UUIDv7Generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) {
		e.runIDs = g
	}
}

// WithCycleDetection turns on state-hash cycle detection regardless of the
// combiner configuration.
func WithCycleDetection() Option {
	return func(e *Engine) {
		e.detectCycles = true
	}
}

// New creates an Engine applying c, with target as the legal-operation set.
// A nil target disables legality checks.
func New(c *combine.Combiner, target *legal.Table, opts ...Option) *Engine {
	cfg := c.Config()
	e := &Engine{
		combiner:      c,
		target:        target,
		logger:        slog.Default(),
		runIDs:        UUIDv7Generator{},
		maxIterations: cfg.MaxIterations,
		detectCycles:  cfg.DetectCycles,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.maxIterations <= 0 {
		e.maxIterations = combine.DefaultMaxIterations
	}
	return e
}

// Combiner returns the combiner the engine applies.
func (e *Engine) Combiner() *combine.Combiner { return e.combiner }

// run is the state of one Run.
type run struct {
	e       *Engine
	f       *ir.Function
	cfg     combine.Config
	h       *combine.Helper
	res     *Result
	work    *worklist
	touched *tracker
	log     *eventLog
	quota   *QuotaEnforcer
	cycles  *CycleDetector
	logger  *slog.Logger
}

// Run combines f to a fixpoint.
//
// The context is only consulted before the run starts; once started, a run
// goes to its fixpoint or its budget. On error the returned Result is still
// populated with what happened up to the failure.
func (e *Engine) Run(ctx context.Context, f *ir.Function) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cfg := e.combiner.Config()
	clock := e.clock
	if clock == nil {
		clock = NewClock()
	}
	r := &run{
		e:   e,
		f:   f,
		cfg: cfg,
		res: &Result{
			RunID:     e.runIDs.Generate(),
			Function:  f.Name,
			InputHash: ir.FunctionHash(f),
		},
		work:    newWorklist(),
		touched: newTracker(),
		log:     &eventLog{f: f, clock: clock},
		quota:   NewQuotaEnforcer(e.maxIterations),
		logger:  e.logger.With("function", f.Name, "combiner", cfg.Name),
	}
	if e.detectCycles {
		r.cycles = NewCycleDetector()
	}

	err := r.execute()
	r.res.OutputHash = ir.FunctionHash(f)
	r.res.Events = r.log.events
	if err != nil {
		return r.res, err
	}
	r.logger.Info("combine finished",
		"status", r.res.Status,
		"steps", r.res.Steps,
		"rewrites", r.res.Rewrites,
		"dead_erased", r.res.DeadErased)
	return r.res, nil
}

func (r *run) execute() error {
	f := r.f
	if f.Props.FailedISel || f.Props.OptNone {
		r.res.Status = StatusSkipped
		r.logger.Debug("function skipped", "failedisel", f.Props.FailedISel, "optnone", f.Props.OptNone)
		return nil
	}
	if err := r.checkPrecondition(); err != nil {
		r.res.Status = StatusRefused
		r.logger.Error("precondition violated", "error", err)
		return NewPreconditionError(f.Name, err)
	}

	mux := NewObserverMux(r.touched, r.log)
	for _, o := range r.e.observers {
		mux.Add(o)
	}
	if prev := f.SetObserver(mux); prev != nil {
		mux.Add(prev)
		defer f.SetObserver(prev)
	} else {
		defer f.SetObserver(nil)
	}

	r.h = combine.NewHelper(f, r.e.target, r.cfg.AllowIllegal, r.logger)
	if r.cycles != nil {
		r.cycles.Record(f.Name, r.res.InputHash)
	}

	r.work.seed(f)
	for {
		id, ok := r.work.pop()
		if !ok {
			break
		}
		mi := f.Instr(id)
		if mi == nil {
			continue
		}
		if err := r.quota.Check(f.Name); err != nil {
			r.res.Status = StatusBudgetExhausted
			r.logger.Warn("iteration budget exhausted",
				"steps", r.res.Steps,
				"dequeued", r.quota.Current(),
				"max_iterations", r.quota.MaxSteps(),
				"pending", r.work.len()+1)
			return NewBudgetError(f.Name, r.res.Steps, r.quota.MaxSteps(), err)
		}
		r.res.Steps++
		if err := r.step(mi); err != nil {
			return err
		}
	}
	r.res.Status = StatusFixpoint
	return nil
}

func (r *run) checkPrecondition() error {
	f := r.f
	if err := f.Verify(); err != nil {
		return err
	}
	if r.cfg.AllowIllegal {
		return nil
	}
	if !f.Props.Legalized {
		return fmt.Errorf("function @%s is not marked legalized", f.Name)
	}
	if r.e.target != nil {
		if err := r.e.target.Verify(f); err != nil {
			return err
		}
	}
	return nil
}

// isTriviallyDead reports whether mi defines only unused registers and has
// no side effects.
func isTriviallyDead(f *ir.Function, mi *ir.Instruction) bool {
	if mi.Opcode().HasSideEffects() {
		return false
	}
	defs := mi.Defs()
	if len(defs) == 0 {
		return false
	}
	for _, d := range defs {
		if f.UseCount(d) != 0 {
			return false
		}
	}
	return true
}

func (r *run) step(mi *ir.Instruction) error {
	f := r.f
	r.touched.reset()

	if r.cfg.DeadCodeElimination && isTriviallyDead(f, mi) {
		r.log.rule = ""
		f.Erase(mi)
		r.res.DeadErased++
		r.touched.requeue(f, r.work)
		return nil
	}

	rule, info, ok := r.e.combiner.Match(r.h, mi)
	if !ok {
		return nil
	}

	text := ir.PrintInstr(f, mi)
	firing := Firing{
		Seq:        r.log.clock.Next(),
		Step:       r.res.Steps,
		RuleID:     rule.ID,
		RuleNumber: rule.Number,
		Instr:      mi.ID(),
		Opcode:     mi.Opcode().String(),
		Text:       text,
	}
	r.logger.Debug("rule fired",
		"rule", rule.ID,
		"instr", text,
		"opcode", firing.Opcode)

	r.log.rule = rule.ID
	err := r.apply(rule, mi, info)
	r.log.rule = ""
	r.res.Firings = append(r.res.Firings, firing)
	r.res.Rewrites++
	if err != nil {
		r.res.Status = StatusApplyContract
		r.logger.Error("apply failed", "rule", rule.ID, "error", err)
		return err
	}

	if !r.cfg.AllowIllegal && r.e.target != nil {
		for _, c := range r.touched.changed(f) {
			if err := r.e.target.Check(f, c); err != nil {
				r.res.Status = StatusIllegalRewrite
				r.logger.Error("rewrite left an illegal instruction", "rule", rule.ID, "error", err)
				return NewIllegalRewriteError(f.Name, rule.ID, err)
			}
		}
	}

	if r.cycles != nil {
		hash := ir.FunctionHash(f)
		if r.cycles.WouldCycle(f.Name, hash) {
			r.res.Status = StatusCycleDetected
			r.logger.Warn("rewrite cycle detected", "rule", rule.ID, "state_hash", hash)
			return NewCycleError(f.Name, rule.ID, hash)
		}
		r.cycles.Record(f.Name, hash)
	}

	r.touched.requeue(f, r.work)
	return nil
}

// apply runs rule.Apply, turning a panic into an APPLY_CONTRACT error.
func (r *run) apply(rule combine.Rule, mi *ir.Instruction, info combine.MatchInfo) (err error) {
	instr := ir.PrintInstr(r.f, mi)
	defer func() {
		if p := recover(); p != nil {
			err = NewApplyContractError(r.f.Name, rule.ID, instr, p)
		}
	}()
	rule.Apply(r.h, mi, info)
	return nil
}

// RunAll combines independent functions in parallel, at most GOMAXPROCS at
// a time. Results are in input order; a function that failed has its error
// joined into the returned error and its partial Result kept.
func (e *Engine) RunAll(ctx context.Context, fns []*ir.Function) ([]*Result, error) {
	results := make([]*Result, len(fns))
	errs := make([]error, len(fns))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, f := range fns {
		g.Go(func() error {
			res, err := e.Run(ctx, f)
			results[i] = res
			if err != nil {
				errs[i] = fmt.Errorf("function @%s: %w", f.Name, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, errors.Join(errs...)
}
