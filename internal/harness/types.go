package harness

import "github.com/roach88/peephole/internal/engine"

// TraceEntry is one rule firing as read back from the run log.
type TraceEntry struct {
	Seq   int64  `json:"seq"`
	Step  int    `json:"step"`
	Rule  string `json:"rule"`
	Instr string `json:"instr"`
}

// Result is the outcome of one scenario.
type Result struct {
	// Name is the scenario name.
	Name string `json:"name"`

	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Status is how the engine run ended.
	Status engine.Status `json:"status"`

	// ErrorCode is the runtime error code, empty on success.
	ErrorCode string `json:"error_code,omitempty"`

	// Output is the printed function after the run.
	Output string `json:"output"`

	// Fired lists the rule IDs that fired, in order.
	Fired []string `json:"fired"`

	// Trace holds the firings with their positions.
	Trace []TraceEntry `json:"trace"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(name string) *Result {
	return &Result{
		Name:   name,
		Pass:   true,
		Fired:  []string{},
		Trace:  []TraceEntry{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
