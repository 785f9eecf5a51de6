package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/peephole/internal/combine"
	"github.com/roach88/peephole/internal/engine"
	"github.com/roach88/peephole/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
	Config   string // optional - directory declaring custom targets
}

// ReplaySummary holds the overall replay result.
type ReplaySummary struct {
	Runs          []store.ReplayResult `json:"runs"`
	TotalRuns     int                  `json:"total_runs"`
	Diverged      int                  `json:"diverged"`
	Deterministic bool                 `json:"deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-run recorded inputs and check the results have not drifted",
		Long: `Replay recorded runs and verify determinism.

Each run's recorded input is combined again with its recorded
configuration and target. The status, printed output, counters and the
firing sequence must match the recording exactly.

Runs on a target declared in CUE need --config to resolve it.

Exit codes:
  0 - Every replayed run matches its recording
  1 - At least one run diverged
  2 - Command error (database not found, unknown run or target)

Examples:
  peephole replay --db runs.db
  peephole replay --db runs.db --run 0190a5c4-...
  peephole replay --db runs.db --config ./config --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay this run only")
	cmd.Flags().StringVar(&opts.Config, "config", "", "CUE configuration directory declaring targets")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	src, err := NewEngineSource(opts.Config)
	if err != nil {
		return WrapExitError(ExitCommandError, "loading configuration", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	build := replayFactory(src, newLogger(opts.RootOptions, cmd.ErrOrStderr()))

	var results []store.ReplayResult
	if opts.RunID != "" {
		r, err := st.Replay(ctx, opts.RunID, build)
		if errors.Is(err, store.ErrRunNotFound) {
			_ = formatter.Error(CLIError{Code: ErrCodeNotFound, Message: fmt.Sprintf("no run %s in %s", opts.RunID, opts.Database)})
			return WrapExitError(ExitCommandError, "run not found", err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "replay failed", err)
		}
		results = []store.ReplayResult{r}
	} else {
		results, err = st.ReplayAll(ctx, build)
		if err != nil {
			return WrapExitError(ExitCommandError, "replay failed", err)
		}
	}

	summary := ReplaySummary{
		Runs:          results,
		TotalRuns:     len(results),
		Deterministic: true,
	}
	for _, r := range results {
		formatter.VerboseLog("Replayed %s (@%s): match=%v", r.RunID, r.Function, r.Match)
		if !r.Match {
			summary.Diverged++
			summary.Deterministic = false
		}
	}

	if formatter.JSON() {
		if err := formatter.Success(summary, ""); err != nil {
			return err
		}
	} else if err := formatter.Success(nil, formatReplayText(summary)); err != nil {
		return err
	}

	if !summary.Deterministic {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d run(s) diverged", summary.Diverged, summary.TotalRuns))
	}
	return nil
}

// replayFactory rebuilds engines from recorded configuration. The target
// is resolved by name, declared targets first.
func replayFactory(src *EngineSource, logger *slog.Logger) store.EngineFactory {
	return func(rec store.RunRecord) (*engine.Engine, error) {
		table, err := src.TargetTable(rec.Target)
		if err != nil {
			return nil, err
		}
		c, err := combine.BuildCombiner(src.Rules, rec.Config)
		if err != nil {
			return nil, err
		}
		return engine.New(c, table, engine.WithLogger(logger)), nil
	}
}

func formatReplayText(s ReplaySummary) string {
	var buf strings.Builder
	if s.TotalRuns == 0 {
		return "No runs found in database.\n"
	}
	for _, r := range s.Runs {
		if r.Match {
			fmt.Fprintf(&buf, "OK       %s @%s\n", r.RunID, r.Function)
			continue
		}
		fmt.Fprintf(&buf, "DIVERGED %s @%s\n", r.RunID, r.Function)
		for _, m := range r.Mismatches {
			fmt.Fprintf(&buf, "  %s: recorded %q, replayed %q\n", m.Field, m.Recorded, m.Replayed)
		}
	}
	if s.Deterministic {
		fmt.Fprintf(&buf, "\nAll %d run(s) replay identically\n", s.TotalRuns)
	} else {
		fmt.Fprintf(&buf, "\n%d of %d run(s) diverged\n", s.Diverged, s.TotalRuns)
	}
	return buf.String()
}
