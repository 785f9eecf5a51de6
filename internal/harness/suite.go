package harness

import (
	"context"
	"fmt"
)

// SuiteOptions configures RunSuite.
type SuiteOptions struct {
	// GoldenDir, when set, holds one golden file per scenario; a passing
	// scenario whose snapshot differs fails.
	GoldenDir string

	// Update rewrites golden files instead of comparing them.
	Update bool
}

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Results  []*Result         `json:"results"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioFailure is one failed scenario.
type ScenarioFailure struct {
	Scenario string   `json:"scenario"`
	Path     string   `json:"path,omitempty"`
	Errors   []string `json:"errors"`
}

// OK reports whether every scenario passed.
func (s *SuiteResult) OK() bool { return s.Failed == 0 }

// RunSuite loads and runs every scenario in dir in file-name order.
//
// Loading errors abort the suite. Execution errors of a single scenario
// are recorded as that scenario's failure and the suite continues.
func (h *Harness) RunSuite(ctx context.Context, dir string, opts SuiteOptions) (*SuiteResult, error) {
	scenarios, err := LoadScenarios(dir)
	if err != nil {
		return nil, err
	}

	suite := &SuiteResult{Results: []*Result{}}
	for _, s := range scenarios {
		suite.Total++
		result, err := h.Run(ctx, s)
		if err != nil {
			result = NewResult(s.Name)
			result.AddError(err.Error())
		} else if opts.GoldenDir != "" && (result.Pass || opts.Update) {
			if err := CheckGolden(opts.GoldenDir, s.Name, Snapshot(result), opts.Update); err != nil {
				result.AddError(fmt.Sprintf("golden: %v", err))
			}
		}

		suite.Results = append(suite.Results, result)
		if result.Pass {
			suite.Passed++
			continue
		}
		suite.Failed++
		suite.Failures = append(suite.Failures, ScenarioFailure{
			Scenario: s.Name,
			Path:     s.Path(),
			Errors:   result.Errors,
		})
	}
	return suite, nil
}
