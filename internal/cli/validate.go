package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/peephole/internal/compiler"
	"github.com/roach88/peephole/internal/rules"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid     bool                       `json:"valid"`
	Combiners int                        `json:"combiners"`
	Targets   int                        `json:"targets"`
	Errors    []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-dir>",
		Short: "Validate combiner configuration",
		Long: `Validate CUE combiner and target declarations against the rule library.

Every filter entry must name a rule, a rule number or a range inside the
table; every combiner must name a declared or built-in target; target
opcodes and types must parse. All problems are reported at once.

Exit codes:
  0 - Configuration is valid
  1 - Validation errors found
  2 - Command error (directory not found, CUE does not load)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, configDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	loadResult, loadErrors := LoadConfig(configDir, LoadModeCollectAll)
	if loadResult == nil {
		return outputLoadErrors(formatter, loadErrors)
	}
	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, configDir)

	var verrs []compiler.ValidationError
	for _, err := range loadErrors {
		ce := asLoadError(err).CLIError()
		verrs = append(verrs, compiler.ValidationError{Field: "load", Message: ce.Message, Code: ce.Code, Line: ce.Line})
	}
	verrs = append(verrs, compiler.ValidateBundle(loadResult.Bundle, rules.Table())...)

	result := ValidationResult{
		Valid:     len(verrs) == 0,
		Combiners: len(loadResult.Bundle.Combiners),
		Targets:   len(loadResult.Bundle.Targets),
		Errors:    verrs,
	}

	if formatter.JSON() {
		if err := formatter.Success(result, ""); err != nil {
			return err
		}
	} else {
		var buf strings.Builder
		if result.Valid {
			fmt.Fprintf(&buf, "Configuration is valid: %d combiner(s), %d target(s)\n", result.Combiners, result.Targets)
		} else {
			fmt.Fprintf(&buf, "Validation failed with %d error(s)\n", len(verrs))
			for _, e := range verrs {
				fmt.Fprintf(&buf, "  %s\n", e.Error())
			}
		}
		if err := formatter.Success(nil, buf.String()); err != nil {
			return err
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(verrs)))
	}
	return nil
}
