package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/peephole/internal/apint"
	"github.com/roach88/peephole/internal/interp"
	"github.com/roach88/peephole/internal/ir"
)

// AssertionError is a failed assertion with enough context to debug it.
type AssertionError struct {
	Type     string   // assertion type
	Expected string   // human-readable expected outcome
	Actual   string   // human-readable actual outcome
	Fired    []string // rules that fired, for context
}

func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Fired) > 0 {
		fmt.Fprintf(&buf, "  Fired: %s\n", strings.Join(e.Fired, ", "))
	}
	return buf.String()
}

// evaluateAssertions runs every assertion and returns the failures.
func (r *run) evaluateAssertions(ctx context.Context) []string {
	var failures []string
	for i, a := range r.scenario.Assertions {
		if err := r.evaluate(ctx, a); err != nil {
			failures = append(failures, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return failures
}

func (r *run) evaluate(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertOpcodeCount:
		return r.assertOpcodeCount(a.Opcode, *a.Count)
	case AssertNoOpcode:
		return r.assertOpcodeCount(a.Opcode, 0)
	case AssertFired:
		return r.assertFired(a)
	case AssertNotFired:
		return r.assertNotFired(a.Rule)
	case AssertLegal:
		return r.assertLegal()
	case AssertIdempotent:
		return r.assertIdempotent(ctx)
	case AssertEquivalent:
		return r.assertEquivalent(a.Samples)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func (r *run) fail(typ, expected, actual string) error {
	return &AssertionError{Type: typ, Expected: expected, Actual: actual, Fired: r.result.Fired}
}

func (r *run) assertOpcodeCount(name string, want int) error {
	op, _ := ir.ParseOpcode(name)
	got := 0
	for _, mi := range r.output.Instrs() {
		if mi.Opcode() == op {
			got++
		}
	}
	if got != want {
		return r.fail(AssertOpcodeCount,
			fmt.Sprintf("%d %s instructions", want, name),
			fmt.Sprintf("%d %s instructions", got, name))
	}
	return nil
}

func (r *run) firedCount(rule string) int {
	n := 0
	for _, id := range r.result.Fired {
		if id == rule {
			n++
		}
	}
	return n
}

func (r *run) assertFired(a Assertion) error {
	n := r.firedCount(a.Rule)
	switch {
	case a.Count == nil && n == 0:
		return r.fail(AssertFired, fmt.Sprintf("%s fires", a.Rule), "never fired")
	case a.Count != nil && n != *a.Count:
		return r.fail(AssertFired,
			fmt.Sprintf("%s fires %d times", a.Rule, *a.Count),
			fmt.Sprintf("fired %d times", n))
	}
	return nil
}

func (r *run) assertNotFired(rule string) error {
	if n := r.firedCount(rule); n > 0 {
		return r.fail(AssertNotFired, fmt.Sprintf("%s never fires", rule), fmt.Sprintf("fired %d times", n))
	}
	return nil
}

func (r *run) assertLegal() error {
	if err := r.target.Verify(r.output); err != nil {
		return r.fail(AssertLegal, "every instruction legal for "+r.scenario.TargetName(), err.Error())
	}
	return nil
}

// assertIdempotent combines a copy of the output again; a second run must
// neither fire a rule nor erase anything.
func (r *run) assertIdempotent(ctx context.Context) error {
	eng, err := r.engine("scenario-" + r.scenario.Name + "-again")
	if err != nil {
		return err
	}
	again := r.output.Clone()
	res, err := eng.Run(ctx, again)
	if err != nil {
		return r.fail(AssertIdempotent, "second run succeeds", err.Error())
	}
	if res.Mutations() != 0 {
		var fired []string
		for _, fr := range res.Firings {
			fired = append(fired, fr.RuleID)
		}
		return r.fail(AssertIdempotent, "second run changes nothing",
			fmt.Sprintf("%d rewrites %v, %d dead erased", res.Rewrites, fired, res.DeadErased))
	}
	return nil
}

// assertEquivalent evaluates input and output on each sample. Sample
// values are sign-extended or truncated to each ARG's width by interp.
func (r *run) assertEquivalent(samples [][]int64) error {
	need := argCount(r.input)
	for _, sample := range samples {
		if len(sample) < need {
			return fmt.Errorf("sample %v has %d values, the function takes %d arguments", sample, len(sample), need)
		}
		args := make([]apint.Int, len(sample))
		for i, v := range sample {
			args[i] = apint.FromInt64(64, v)
		}
		want, err := interp.Eval(r.input, args)
		if err != nil {
			return fmt.Errorf("evaluate input on %v: %w", sample, err)
		}
		got, err := interp.Eval(r.output, args)
		if err != nil {
			return fmt.Errorf("evaluate output on %v: %w", sample, err)
		}
		if !want.Equal(got) {
			return r.fail(AssertEquivalent,
				fmt.Sprintf("output on %v returns %v", sample, want.Returns),
				fmt.Sprintf("returns %v", got.Returns))
		}
	}
	return nil
}

// argCount returns one past the highest ARG index in f.
func argCount(f *ir.Function) int {
	n := 0
	for _, mi := range f.Instrs() {
		if mi.Opcode() == ir.ARG {
			n = max(n, int(mi.Operand(1).Imm.Uint64())+1)
		}
	}
	return n
}
