package engine

import (
	"errors"
	"fmt"
)

// QuotaEnforcer counts worklist dequeues for one function and enforces the
// iteration budget.
//
// The budget is what guarantees termination: rules are expected to reduce
// cost or normalize, but nothing stops two rules from undoing each other.
// The optional CycleDetector catches exact repeats earlier; the quota
// catches everything else.
type QuotaEnforcer struct {
	maxSteps int
	current  int
}

// NewQuotaEnforcer creates a new quota enforcer with the given limit.
func NewQuotaEnforcer(maxSteps int) *QuotaEnforcer {
	return &QuotaEnforcer{maxSteps: maxSteps}
}

// Check counts one step and fails once the count passes the limit.
func (q *QuotaEnforcer) Check(fn string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			Function: fn,
			Steps:    q.current,
			Limit:    q.maxSteps,
		}
	}
	return nil
}

// Current returns the current step count.
func (q *QuotaEnforcer) Current() int {
	return q.current
}

// MaxSteps returns the maximum steps limit.
func (q *QuotaEnforcer) MaxSteps() int {
	return q.maxSteps
}

// StepsExceededError is returned by Check when the budget is spent.
type StepsExceededError struct {
	Function string
	Steps    int
	Limit    int
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("function %s exceeded iteration budget: %d steps > %d limit",
		e.Function, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
