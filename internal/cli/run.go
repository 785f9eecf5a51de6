package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/peephole/internal/combine"
	"github.com/roach88/peephole/internal/engine"
	"github.com/roach88/peephole/internal/ir"
	"github.com/roach88/peephole/internal/legal"
	"github.com/roach88/peephole/internal/store"
)

// CombineFlags are the flags shared by every command that builds a
// combiner.
type CombineFlags struct {
	Config         string
	Combiner       string
	Target         string
	DisableRule    []string
	OnlyEnableRule []string
	Rules          string
	MaxIterations  int
}

func (f *CombineFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Config, "config", "", "CUE configuration directory declaring combiners and targets")
	cmd.Flags().StringVar(&f.Combiner, "combiner", DefaultCombiner, "combiner to run")
	cmd.Flags().StringVar(&f.Target, "target", "aarch64", "target for the default combiner")
	cmd.Flags().StringArrayVar(&f.DisableRule, "disable-rule", nil, "disable a rule by ID, number or range (repeatable)")
	cmd.Flags().StringArrayVar(&f.OnlyEnableRule, "only-enable-rule", nil, "enable only these rules (repeatable)")
	cmd.Flags().StringVar(&f.Rules, "rules", "", `rule filter list: "-id" disables, "id" or "+id" only-enables`)
	cmd.Flags().IntVar(&f.MaxIterations, "max-iterations", 0, "override the iteration budget")
}

// resolved is a combiner ready to run.
type resolved struct {
	combiner *combine.Combiner
	target   string
	table    *legal.Table
	engine   *engine.Engine
}

// build resolves the combiner named by the flags and applies the rule
// overrides.
func (f *CombineFlags) build(opts ...engine.Option) (*resolved, error) {
	src, err := NewEngineSource(f.Config)
	if err != nil {
		return nil, err
	}
	cfg, targetName, table, err := src.Resolve(f.Combiner, f.Target)
	if err != nil {
		return nil, err
	}
	cfg.Filter.Disable = append(cfg.Filter.Disable, f.DisableRule...)
	cfg.Filter.OnlyEnable = append(cfg.Filter.OnlyEnable, f.OnlyEnableRule...)
	if f.Rules != "" {
		extra, err := combine.ParseRuleFilter(f.Rules)
		if err != nil {
			return nil, err
		}
		cfg.Filter.Disable = append(cfg.Filter.Disable, extra.Disable...)
		cfg.Filter.OnlyEnable = append(cfg.Filter.OnlyEnable, extra.OnlyEnable...)
	}
	if f.MaxIterations > 0 {
		cfg.MaxIterations = f.MaxIterations
	}
	c, err := combine.BuildCombiner(src.Rules, cfg)
	if err != nil {
		return nil, err
	}
	return &resolved{
		combiner: c,
		target:   targetName,
		table:    table,
		engine:   engine.New(c, table, opts...),
	}, nil
}

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	CombineFlags
	Database string

	// RunIDs allows overriding the run ID generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// FunctionResult is the outcome of combining one function.
type FunctionResult struct {
	Function   string          `json:"function"`
	RunID      string          `json:"run_id"`
	Status     engine.Status   `json:"status"`
	Error      string          `json:"error,omitempty"`
	Steps      int             `json:"steps"`
	Rewrites   int             `json:"rewrites"`
	DeadErased int             `json:"dead_erased"`
	Firings    []engine.Firing `json:"firings"`
	Output     string          `json:"output"`
	Recorded   bool            `json:"recorded"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <file.mir>",
		Short: "Combine every function in a file",
		Long: `Combine every function in an IR text file to a fixpoint.

Functions are combined in parallel and printed in input order. With --db
each run is recorded (input, output, configuration, firings and observer
events) so it can be traced and replayed later. Use - to read stdin.

Exit codes:
  0 - Every function reached a fixpoint or was skipped
  1 - A function was refused or stopped early
  2 - Command error (unreadable input, bad configuration)

Examples:
  peephole run add.mir
  peephole run --db runs.db --disable-rule mul_const add.mir
  peephole run --config ./config --combiner narrow add.mir`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCombine(opts, args[0], cmd)
		},
	}

	opts.CombineFlags.register(cmd)
	cmd.Flags().StringVar(&opts.Database, "db", "", "record runs to this SQLite database")

	return cmd
}

func runCombine(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	fns, err := readFunctions(path, cmd.InOrStdin())
	if err != nil {
		_ = formatter.Error(CLIError{Code: ErrCodeParseFailed, Message: err.Error()})
		return WrapExitError(ExitCommandError, "reading input", err)
	}

	engineOpts := []engine.Option{engine.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr()))}
	if opts.RunIDs != nil {
		engineOpts = append(engineOpts, engine.WithRunIDGenerator(opts.RunIDs))
	}
	rc, err := opts.build(engineOpts...)
	if err != nil {
		_ = formatter.Error(CLIError{Code: ErrCodeGeneric, Message: err.Error()})
		return WrapExitError(ExitCommandError, "building combiner", err)
	}
	formatter.VerboseLog("Combining %d function(s) with %s on %s", len(fns), rc.combiner.Config().Name, rc.target)

	inputs := make([]string, len(fns))
	for i, f := range fns {
		inputs[i] = ir.Print(f)
	}
	results, runErr := rc.engine.RunAll(ctx, fns)
	fnErrs := errorsByFunction(runErr)

	var st *store.Store
	if opts.Database != "" {
		st, err = store.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
	}

	out := make([]FunctionResult, 0, len(fns))
	failed := 0
	for i, f := range fns {
		res := results[i]
		if res == nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("function @%s was not combined", f.Name), fnErrs[f.Name])
		}
		fr := FunctionResult{
			Function:   res.Function,
			RunID:      res.RunID,
			Status:     res.Status,
			Steps:      res.Steps,
			Rewrites:   res.Rewrites,
			DeadErased: res.DeadErased,
			Firings:    res.Firings,
			Output:     ir.Print(f),
		}
		if fr.Firings == nil {
			fr.Firings = []engine.Firing{}
		}
		fnErr := fnErrs[f.Name]
		if fnErr != nil {
			fr.Error = fnErr.Error()
			failed++
		}
		if st != nil {
			rec := store.NewRunRecord(res, rc.combiner.Config(), rc.target, inputs[i], fr.Output, fnErr)
			inserted, err := st.WriteRun(ctx, rec, res.Firings, res.Events)
			if err != nil {
				return WrapExitError(ExitCommandError, "recording run", err)
			}
			fr.Recorded = inserted
			formatter.VerboseLog("Recorded run %s for @%s", res.RunID, res.Function)
		}
		out = append(out, fr)
	}

	if formatter.JSON() {
		if err := formatter.Success(out, ""); err != nil {
			return err
		}
	} else if err := formatter.Success(nil, formatRunText(out)); err != nil {
		return err
	}

	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d function(s) did not reach a fixpoint", failed))
	}
	return nil
}

// formatRunText prints each function behind a comment header, so the
// output parses again as IR text.
func formatRunText(results []FunctionResult) string {
	var buf strings.Builder
	for i, r := range results {
		if i > 0 {
			buf.WriteByte('\n')
		}
		fmt.Fprintf(&buf, "# @%s: %s, %d step(s), %d rewrite(s), %d dead erased, run %s\n",
			r.Function, r.Status, r.Steps, r.Rewrites, r.DeadErased, r.RunID)
		for _, fr := range r.Firings {
			fmt.Fprintf(&buf, "#   step %d %s: %s\n", fr.Step, fr.RuleID, fr.Text)
		}
		if r.Error != "" {
			fmt.Fprintf(&buf, "# error: %s\n", r.Error)
		}
		buf.WriteString(r.Output)
	}
	return buf.String()
}

// readFunctions parses every function in path, or stdin for "-".
func readFunctions(path string, stdin io.Reader) ([]*ir.Function, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	fns, err := ir.ParseAll(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if len(fns) == 0 {
		return nil, fmt.Errorf("%s: no functions", path)
	}
	return fns, nil
}

// errorsByFunction splits the joined error of RunAll by function name.
func errorsByFunction(err error) map[string]error {
	out := make(map[string]error)
	if err == nil {
		return out
	}
	var errs []error
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		errs = joined.Unwrap()
	} else {
		errs = []error{err}
	}
	for _, e := range errs {
		var re *engine.RuntimeError
		if errors.As(e, &re) {
			out[re.Function] = e
		}
	}
	return out
}
