package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/peephole/internal/compiler"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	CombinerCount int `json:"combiners"`
	TargetCount   int `json:"targets"`
	OpcodeCount   int `json:"opcodes"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <config-dir>",
		Short: "Compile CUE combiner configuration to canonical JSON",
		Long: `Compile CUE combiner and target declarations to canonical JSON.

Canonical JSON has sorted keys and no insignificant whitespace, so the
same configuration always compiles to the same bytes.

Examples:
  peephole compile ./config
  peephole compile ./config -o config.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, configDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	loadResult, loadErrors := LoadConfig(configDir, LoadModeCollectAll)
	if loadResult == nil {
		return outputLoadErrors(formatter, loadErrors)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, configDir)
	for _, c := range loadResult.Bundle.Combiners {
		formatter.VerboseLog("Compiling combiner: %s", c.Name)
	}
	for _, t := range loadResult.Bundle.Targets {
		formatter.VerboseLog("Compiling target: %s", t.Name)
	}
	if len(loadErrors) > 0 {
		return outputLoadErrors(formatter, loadErrors)
	}

	data, err := loadResult.Bundle.Canonical()
	if err != nil {
		return WrapExitError(ExitCommandError, "marshaling configuration", err)
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, append(data, '\n'), 0o644); err != nil {
			_ = formatter.Error(CLIError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("writing output file: %v", err)})
			return WrapExitError(ExitCommandError, "writing output file", err)
		}
	}

	stats := calculateStats(loadResult.Bundle)
	if formatter.JSON() {
		return formatter.Success(map[string]any{
			"stats":  stats,
			"bundle": loadResult.Bundle,
		}, "")
	}

	var buf strings.Builder
	fmt.Fprintf(&buf, "Compiled %d combiner(s), %d target(s)\n", stats.CombinerCount, stats.TargetCount)
	for _, c := range loadResult.Bundle.Combiners {
		fmt.Fprintf(&buf, "  combiner %s: target %s, max_iterations %d\n", c.Name, c.Target, c.Config.MaxIterations)
	}
	for _, t := range loadResult.Bundle.Targets {
		fmt.Fprintf(&buf, "  target %s: %d opcode(s)\n", t.Name, len(t.Ops))
	}
	if opts.Output != "" {
		fmt.Fprintf(&buf, "Wrote canonical JSON to %s\n", opts.Output)
	} else {
		buf.Write(data)
		buf.WriteByte('\n')
	}
	return formatter.Success(nil, buf.String())
}

func calculateStats(b *compiler.Bundle) CompilationStats {
	stats := CompilationStats{
		CombinerCount: len(b.Combiners),
		TargetCount:   len(b.Targets),
	}
	for _, t := range b.Targets {
		stats.OpcodeCount += len(t.Ops)
	}
	return stats
}

// outputLoadErrors reports load or compile failures. They are command
// errors (exit code 2).
func outputLoadErrors(formatter *OutputFormatter, errs []error) error {
	cliErrs := make([]CLIError, 0, len(errs))
	for _, err := range errs {
		cliErrs = append(cliErrs, asLoadError(err).CLIError())
	}
	_ = formatter.Error(cliErrs...)
	if len(errs) == 1 {
		return WrapExitError(ExitCommandError, "loading configuration", errs[0])
	}
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}
