package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// GoldenSuffix is the file extension of golden files.
const GoldenSuffix = ".golden"

// Snapshot renders the parts of a result that golden files pin: status,
// error code, firing order and the printed output.
func Snapshot(r *Result) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# scenario: %s\n", r.Name)
	fmt.Fprintf(&buf, "# status: %s\n", r.Status)
	if r.ErrorCode != "" {
		fmt.Fprintf(&buf, "# error: %s\n", r.ErrorCode)
	}
	for _, e := range r.Trace {
		fmt.Fprintf(&buf, "# fired: step %d %s: %s\n", e.Step, e.Rule, e.Instr)
	}
	buf.WriteString(r.Output)
	return buf.Bytes()
}

// RunWithGolden runs a scenario, fails t if it does not pass, and compares
// its snapshot against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	if !result.Pass {
		t.Errorf("scenario %s failed:\n%s", scenario.Name, strings.Join(result.Errors, "\n"))
	}
	AssertGolden(t, scenario.Name, result)
	return nil
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(GoldenSuffix),
	)
	g.Assert(t, name, Snapshot(result))
}

// ErrGoldenMismatch reports a snapshot that differs from its golden file.
var ErrGoldenMismatch = errors.New("snapshot differs from golden file")

// CheckGolden compares got with dir/name.golden outside of go test. With
// update the file is (re)written instead. A missing file is an error
// unless update is set.
func CheckGolden(dir, name string, got []byte, update bool) error {
	path := filepath.Join(dir, name+GoldenSuffix)
	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create golden directory: %w", err)
		}
		if err := os.WriteFile(path, got, 0o644); err != nil {
			return fmt.Errorf("write golden file: %w", err)
		}
		return nil
	}
	want, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read golden file: %w", err)
	}
	if !bytes.Equal(want, got) {
		return fmt.Errorf("%s: %w", path, ErrGoldenMismatch)
	}
	return nil
}
