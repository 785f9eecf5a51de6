package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/peephole/internal/combine"
	"github.com/roach88/peephole/internal/ir"
)

// MatchOptions holds flags for the match command.
type MatchOptions struct {
	*RootOptions
	CombineFlags
	All bool // list instructions no rule matches
}

// InstrMatch lists the rules whose match succeeds on one instruction.
type InstrMatch struct {
	Instr ir.InstrID `json:"instr"`
	Text  string     `json:"text"`
	Rules []string   `json:"rules"`
}

// FunctionMatches is the dry run of one function.
type FunctionMatches struct {
	Function string       `json:"function"`
	Matches  []InstrMatch `json:"matches"`
}

// NewMatchCommand creates the match command.
func NewMatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "match <file.mir>",
		Short: "Show which rules match each instruction, without rewriting",
		Long: `Dry-run the enabled rules over every instruction of every function.

Each rule anchored on an instruction's opcode is asked to match; every
rule that succeeds is listed in table order, the first being the one a
run would apply. Nothing is rewritten.

Examples:
  peephole match mul.mir
  peephole match --disable-rule commute_constant_to_rhs mul.mir --all`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMatch(opts, args[0], cmd)
		},
	}

	opts.CombineFlags.register(cmd)
	cmd.Flags().BoolVar(&opts.All, "all", false, "also list instructions no rule matches")

	return cmd
}

func runMatch(opts *MatchOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	fns, err := readFunctions(path, cmd.InOrStdin())
	if err != nil {
		_ = formatter.Error(CLIError{Code: ErrCodeParseFailed, Message: err.Error()})
		return WrapExitError(ExitCommandError, "reading input", err)
	}
	rc, err := opts.build()
	if err != nil {
		_ = formatter.Error(CLIError{Code: ErrCodeGeneric, Message: err.Error()})
		return WrapExitError(ExitCommandError, "building combiner", err)
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	out := make([]FunctionMatches, 0, len(fns))
	for _, f := range fns {
		h := combine.NewHelper(f, rc.table, rc.combiner.Config().AllowIllegal, logger)
		fm := FunctionMatches{Function: f.Name, Matches: []InstrMatch{}}
		for _, mi := range f.Instrs() {
			var ids []string
			for _, r := range rc.combiner.MatchAll(h, mi) {
				ids = append(ids, r.ID)
			}
			if len(ids) == 0 && !opts.All {
				continue
			}
			if ids == nil {
				ids = []string{}
			}
			fm.Matches = append(fm.Matches, InstrMatch{Instr: mi.ID(), Text: ir.PrintInstr(f, mi), Rules: ids})
		}
		out = append(out, fm)
	}

	if formatter.JSON() {
		return formatter.Success(out, "")
	}
	var buf strings.Builder
	for _, fm := range out {
		fmt.Fprintf(&buf, "@%s:\n", fm.Function)
		if len(fm.Matches) == 0 {
			buf.WriteString("  no rule matches\n")
		}
		for _, m := range fm.Matches {
			rules := "-"
			if len(m.Rules) > 0 {
				rules = strings.Join(m.Rules, ", ")
			}
			fmt.Fprintf(&buf, "  %-40s %s\n", m.Text, rules)
		}
	}
	return formatter.Success(nil, buf.String())
}
