package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/roach88/peephole/internal/combine"
	"github.com/roach88/peephole/internal/compiler"
)

// RulesOptions holds flags for the rules command.
type RulesOptions struct {
	*RootOptions
	CombineFlags
	Tree bool
}

// RuleInfo describes one rule of the table.
type RuleInfo struct {
	Number   int      `json:"number"`
	ID       string   `json:"id"`
	Anchor   string   `json:"anchor"`
	Produces []string `json:"produces"`
	Enabled  bool     `json:"enabled"`
	Doc      string   `json:"doc"`
}

// RulesResult is the rule table as seen by one combiner.
type RulesResult struct {
	Combiner string                  `json:"combiner"`
	Rules    []RuleInfo              `json:"rules"`
	Cycles   []compiler.CycleWarning `json:"cycles"`
}

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RulesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "rules",
		Short: "List the rule table and static cycle warnings",
		Long: `List the rule library in table order, marking the rules the selected
combiner enables.

Rule A feeds rule B when A may create B's anchor opcode. Loops in that
graph among enabled rules are reported as warnings; the iteration budget
bounds any that are real.

Examples:
  peephole rules
  peephole rules --tree
  peephole rules --disable-rule 2-4 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRules(opts, cmd)
		},
	}

	opts.CombineFlags.register(cmd)
	cmd.Flags().BoolVar(&opts.Tree, "tree", false, "group rules under their anchor opcode")

	return cmd
}

func runRules(opts *RulesOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	rc, err := opts.build()
	if err != nil {
		_ = formatter.Error(CLIError{Code: ErrCodeGeneric, Message: err.Error()})
		return WrapExitError(ExitCommandError, "building combiner", err)
	}
	c := rc.combiner

	result := RulesResult{
		Combiner: c.Config().Name,
		Rules:    []RuleInfo{},
		Cycles:   compiler.AnalyzeCycles(compiler.EnabledRules(c)),
	}
	for _, r := range c.Table().Rules() {
		result.Rules = append(result.Rules, ruleInfo(c, r))
	}

	if formatter.JSON() {
		return formatter.Success(result, "")
	}

	var buf strings.Builder
	if opts.Tree {
		buf.WriteString(rulesTree(c).String())
	} else {
		for _, r := range result.Rules {
			mark := " "
			if r.Enabled {
				mark = "*"
			}
			fmt.Fprintf(&buf, "%s %2d %-28s %-22s %s\n", mark, r.Number, r.ID, r.Anchor, r.Doc)
		}
	}
	if len(result.Cycles) > 0 {
		buf.WriteString("\n")
		for _, w := range result.Cycles {
			fmt.Fprintf(&buf, "%s: %s\n", w.Level, w.Message)
		}
	}
	return formatter.Success(nil, buf.String())
}

func ruleInfo(c *combine.Combiner, r combine.Rule) RuleInfo {
	produces := make([]string, 0, len(r.Produces))
	for _, op := range r.Produces {
		produces = append(produces, op.String())
	}
	return RuleInfo{
		Number:   r.Number,
		ID:       r.ID,
		Anchor:   r.Opcode.String(),
		Produces: produces,
		Enabled:  c.Enabled(r.Number),
		Doc:      r.Doc,
	}
}

// rulesTree renders the opcode-indexed dispatch table: one branch per
// anchor, rules in the order the driver tries them.
func rulesTree(c *combine.Combiner) treeprint.Tree {
	t := c.Table()
	tree := treeprint.New()
	tree.SetValue(c.Config().Name)
	for _, op := range t.Anchors() {
		branch := tree.AddBranch(op.String())
		for _, n := range t.ForOpcode(op) {
			r := t.Rule(n)
			label := fmt.Sprintf("%d %s", r.Number, r.ID)
			if !c.Enabled(n) {
				label += " (disabled)"
			}
			node := branch.AddBranch(label)
			for _, p := range r.Produces {
				node.AddNode("produces " + p.String())
			}
		}
	}
	return tree
}
