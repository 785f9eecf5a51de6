package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/peephole/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update    bool   // regenerate golden files
	GoldenDir string // golden file directory
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run conformance scenarios",
		Long: `Run every YAML scenario in a directory through the combiner.

Each scenario is combined with its own configuration, recorded to an
in-memory run log, and checked against its expectations and assertions.
When a golden directory is in use, the status, firings and printed
output of each passing scenario must also match its golden file. The
golden directory defaults to "golden" next to the scenarios directory
when that exists.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, malformed scenario)

Examples:
  peephole test ./testdata/scenarios
  peephole test ./testdata/scenarios --update
  peephole test ./testdata/scenarios --golden ./testdata/golden --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden", "", "golden file directory")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if _, err := os.Stat(scenariosDir); os.IsNotExist(err) {
		_ = formatter.Error(CLIError{Code: ErrCodeNotFound, Message: fmt.Sprintf("scenarios directory not found: %s", scenariosDir)})
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}

	golden := resolveGoldenDir(opts.GoldenDir, scenariosDir, opts.Update)
	if golden != "" {
		formatter.VerboseLog("Using golden directory %s", golden)
	}

	h := harness.New(harness.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr())))
	suite, err := h.RunSuite(ctx, scenariosDir, harness.SuiteOptions{GoldenDir: golden, Update: opts.Update})
	if err != nil {
		_ = formatter.Error(CLIError{Code: ErrCodeGeneric, Message: err.Error()})
		return WrapExitError(ExitCommandError, "loading scenarios", err)
	}

	if formatter.JSON() {
		if err := formatter.Success(suite, ""); err != nil {
			return err
		}
	} else if err := formatter.Success(nil, formatSuiteText(suite, opts.Update && golden != "")); err != nil {
		return err
	}

	if !suite.OK() {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", suite.Failed, suite.Total))
	}
	return nil
}

// resolveGoldenDir picks the golden directory: the flag, or a sibling
// "golden" directory that exists (or will be created by --update).
func resolveGoldenDir(flag, scenariosDir string, update bool) string {
	if flag != "" {
		return flag
	}
	sibling := filepath.Join(filepath.Dir(filepath.Clean(scenariosDir)), "golden")
	if info, err := os.Stat(sibling); err == nil && info.IsDir() {
		return sibling
	}
	if update {
		return sibling
	}
	return ""
}

func formatSuiteText(suite *harness.SuiteResult, updated bool) string {
	var buf strings.Builder
	if suite.Total == 0 {
		return "No scenarios found.\n"
	}
	for _, r := range suite.Results {
		if r.Pass {
			suffix := ""
			if updated {
				suffix = " (golden updated)"
			}
			fmt.Fprintf(&buf, "PASS %s%s\n", r.Name, suffix)
			continue
		}
		fmt.Fprintf(&buf, "FAIL %s\n", r.Name)
		for _, e := range r.Errors {
			for _, line := range strings.Split(strings.TrimRight(e, "\n"), "\n") {
				fmt.Fprintf(&buf, "  %s\n", line)
			}
		}
	}
	fmt.Fprintf(&buf, "\n%d passed, %d failed, %d total\n", suite.Passed, suite.Failed, suite.Total)
	return buf.String()
}
