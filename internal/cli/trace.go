package cli

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/peephole/internal/engine"
	"github.com/roach88/peephole/internal/queryir"
	"github.com/roach88/peephole/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Rules    []string // optional - keep firings and events of these rules
	Kinds    []string // optional - keep events of these kinds
	NoEvents bool
}

// TraceEntry is one line of the timeline: a firing or an observer event.
type TraceEntry struct {
	Seq    int64  `json:"seq"`
	Type   string `json:"type"` // "firing" or "event"
	Kind   string `json:"kind,omitempty"`
	Step   int    `json:"step,omitempty"`
	RuleID string `json:"rule_id,omitempty"`
	Instr  int32  `json:"instr"`
	Text   string `json:"text"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunID    string       `json:"run_id"`
	Function string       `json:"function"`
	Status   string       `json:"status"`
	Timeline []TraceEntry `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Firings int            `json:"firings"`
	Events  int            `json:"events"`
	ByRule  map[string]int `json:"by_rule"`
}

var eventKinds = []string{
	string(engine.EventCreated),
	string(engine.EventErasing),
	string(engine.EventChanging),
	string(engine.EventChanged),
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the firings and graph changes of a recorded run",
		Long: `Show the timeline of a recorded run: each rule firing with the anchor
it fired on, interleaved with the observer events it caused, in clock
order.

Events with no rule were made by the driver itself (dead code erasure).

Examples:
  peephole trace --db runs.db --run 0190a5c4-...
  peephole trace --db runs.db --run 0190a5c4-... --rule mul_const
  peephole trace --db runs.db --run 0190a5c4-... --kind erasing --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to trace (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().StringArrayVar(&opts.Rules, "rule", nil, "keep only this rule (repeatable)")
	cmd.Flags().StringArrayVar(&opts.Kinds, "kind", nil, "keep only events of this kind (repeatable)")
	cmd.Flags().BoolVar(&opts.NoEvents, "no-events", false, "show firings only")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	for _, k := range opts.Kinds {
		if !slices.Contains(eventKinds, k) {
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown event kind %q (known: %v)", k, eventKinds))
		}
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	rec, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, store.ErrRunNotFound) {
		_ = formatter.Error(CLIError{Code: ErrCodeNotFound, Message: fmt.Sprintf("no run %s in %s", opts.RunID, opts.Database)})
		return WrapExitError(ExitCommandError, "run not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	result, err := buildTrace(ctx, st, rec, opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to query run log", err)
	}

	if formatter.JSON() {
		return formatter.Success(result, "")
	}
	return formatter.Success(nil, formatTraceText(result))
}

func buildTrace(ctx context.Context, st *store.Store, rec store.RunRecord, opts *TraceOptions) (*TraceResult, error) {
	byRun := queryir.Equals{Field: "run_id", Value: queryir.String(rec.ID)}
	byRule := queryir.AnyOf("rule_id", opts.Rules...)

	result := &TraceResult{
		RunID:    rec.ID,
		Function: rec.Function,
		Status:   string(rec.Status),
		Timeline: []TraceEntry{},
		Stats:    TraceStats{ByRule: map[string]int{}},
	}

	if len(opts.Kinds) == 0 {
		firings, err := st.QueryFirings(ctx, queryir.Conj(byRun, byRule))
		if err != nil {
			return nil, err
		}
		for _, f := range firings {
			result.Timeline = append(result.Timeline, TraceEntry{
				Seq:    f.Seq,
				Type:   "firing",
				Step:   f.Step,
				RuleID: f.RuleID,
				Instr:  int32(f.Instr),
				Text:   f.Text,
			})
			result.Stats.Firings++
			result.Stats.ByRule[f.RuleID]++
		}
	}

	if !opts.NoEvents {
		events, err := st.QueryEvents(ctx, queryir.Conj(byRun, byRule, queryir.AnyOf("kind", opts.Kinds...)))
		if err != nil {
			return nil, err
		}
		for _, e := range events {
			result.Timeline = append(result.Timeline, TraceEntry{
				Seq:    e.Seq,
				Type:   "event",
				Kind:   string(e.Kind),
				RuleID: e.RuleID,
				Instr:  int32(e.Instr),
				Text:   e.Text,
			})
			result.Stats.Events++
		}
	}

	// Firings and events share the run's clock.
	slices.SortStableFunc(result.Timeline, func(a, b TraceEntry) int {
		return cmp.Compare(a.Seq, b.Seq)
	})
	return result, nil
}

func formatTraceText(r *TraceResult) string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Run %s: @%s, %s\n", r.RunID, r.Function, r.Status)
	if len(r.Timeline) == 0 {
		buf.WriteString("  (no matching entries)\n")
	}
	for _, e := range r.Timeline {
		switch e.Type {
		case "firing":
			fmt.Fprintf(&buf, "%5d  step %-4d %-28s %s\n", e.Seq, e.Step, e.RuleID, e.Text)
		default:
			rule := e.RuleID
			if rule == "" {
				rule = "(driver)"
			}
			fmt.Fprintf(&buf, "%5d    %-9s %-28s #%d %s\n", e.Seq, e.Kind, rule, e.Instr, e.Text)
		}
	}
	fmt.Fprintf(&buf, "\n%d firing(s), %d event(s)\n", r.Stats.Firings, r.Stats.Events)
	return buf.String()
}
