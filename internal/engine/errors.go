package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents an error detected while combining a function.
//
// Runtime errors include:
//   - Precondition violation: the function is not legal or not well formed
//   - Budget exhausted: the worklist did not drain within MaxIterations
//   - Cycle detected: a function state repeated between rewrites
//   - Illegal rewrite: a rule created an instruction outside the legal set
//   - Apply contract: a rule's apply could not complete its own match
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Function names the function being combined.
	Function string

	// RuleID identifies the rule involved, if any.
	RuleID string

	// Details contains additional context.
	Details map[string]string

	// Cause is the underlying error, if any.
	Cause error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodePreconditionViolated indicates the input was refused untouched.
	ErrCodePreconditionViolated RuntimeErrorCode = "PRECONDITION_VIOLATED"

	// ErrCodeBudgetExhausted indicates the iteration budget ran out. The
	// function is valid but may not be at a fixpoint.
	ErrCodeBudgetExhausted RuntimeErrorCode = "BUDGET_EXHAUSTED"

	// ErrCodeCycleDetected indicates rewrites returned the function to an
	// earlier state.
	ErrCodeCycleDetected RuntimeErrorCode = "CYCLE_DETECTED"

	// ErrCodeIllegalRewrite indicates a rewrite left an illegal instruction.
	ErrCodeIllegalRewrite RuntimeErrorCode = "ILLEGAL_REWRITE"

	// ErrCodeApplyContract indicates a rule's apply panicked. The function
	// state is unspecified.
	ErrCodeApplyContract RuntimeErrorCode = "APPLY_CONTRACT"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.Function != "" && e.RuleID != "" {
		return fmt.Sprintf("%s: %s (function=%s, rule=%s)", e.Code, e.Message, e.Function, e.RuleID)
	}
	if e.Function != "" {
		return fmt.Sprintf("%s: %s (function=%s)", e.Code, e.Message, e.Function)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error { return e.Cause }

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsPreconditionError reports whether the function was refused.
func IsPreconditionError(err error) bool { return hasCode(err, ErrCodePreconditionViolated) }

// IsBudgetError returns true if the error is a budget exhausted error.
// Matches both RuntimeError with ErrCodeBudgetExhausted and StepsExceededError.
func IsBudgetError(err error) bool {
	if hasCode(err, ErrCodeBudgetExhausted) {
		return true
	}
	var se *StepsExceededError
	return errors.As(err, &se)
}

// IsCycleError returns true if the error is a cycle detection error.
func IsCycleError(err error) bool { return hasCode(err, ErrCodeCycleDetected) }

// IsIllegalRewrite reports whether a rewrite broke legality.
func IsIllegalRewrite(err error) bool { return hasCode(err, ErrCodeIllegalRewrite) }

// IsApplyContract reports whether a rule's apply panicked.
func IsApplyContract(err error) bool { return hasCode(err, ErrCodeApplyContract) }

// NewPreconditionError refuses fn because of cause.
func NewPreconditionError(fn string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodePreconditionViolated,
		Message:  cause.Error(),
		Function: fn,
		Cause:    cause,
	}
}

// NewBudgetError creates a RuntimeError for an exhausted budget, keeping
// the quota's error as the cause.
func NewBudgetError(fn string, steps, maxSteps int, cause error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeBudgetExhausted,
		Message:  fmt.Sprintf("worklist did not drain within %d steps", maxSteps),
		Function: fn,
		Details: map[string]string{
			"steps":          fmt.Sprintf("%d", steps),
			"max_iterations": fmt.Sprintf("%d", maxSteps),
		},
		Cause: cause,
	}
}

// NewCycleError creates a RuntimeError for a repeated function state.
func NewCycleError(fn, ruleID, stateHash string) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeCycleDetected,
		Message:  "rewrite returned the function to an earlier state",
		Function: fn,
		RuleID:   ruleID,
		Details:  map[string]string{"state_hash": stateHash},
	}
}

// NewIllegalRewriteError reports an instruction a rule left outside the
// legal set.
func NewIllegalRewriteError(fn, ruleID string, cause error) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeIllegalRewrite,
		Message:  cause.Error(),
		Function: fn,
		RuleID:   ruleID,
	}
}

// NewApplyContractError wraps a panic raised by a rule's apply.
func NewApplyContractError(fn, ruleID, instr string, recovered any) *RuntimeError {
	return &RuntimeError{
		Code:     ErrCodeApplyContract,
		Message:  fmt.Sprintf("apply panicked: %v", recovered),
		Function: fn,
		RuleID:   ruleID,
		Details:  map[string]string{"instr": instr},
	}
}
