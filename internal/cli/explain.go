package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/roach88/peephole/internal/ir"
)

// ExplainOptions holds flags for the explain command.
type ExplainOptions struct {
	*RootOptions
	Function string
	Depth    int
}

// RegNode is one register in a def-use tree.
type RegNode struct {
	Reg      string     `json:"reg"`
	Type     string     `json:"type"`
	Def      string     `json:"def,omitempty"` // defining instruction, empty for undefined
	Operands []*RegNode `json:"operands,omitempty"`
	Users    []string   `json:"users,omitempty"`
}

// NewExplainCommand creates the explain command.
func NewExplainCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExplainOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "explain <file.mir> <%reg>",
		Short: "Show the def-use tree of a register",
		Long: `Show how a register is computed and who reads it.

The tree descends through the producers of the register's defining
instruction, which is the path multi-instruction rules match along, and
lists the instructions that use it.

Examples:
  peephole explain mul.mir %2
  peephole explain --function mul9 --depth 2 mul.mir %2`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExplain(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Function, "function", "", "function to look in (default: the only one)")
	cmd.Flags().IntVar(&opts.Depth, "depth", 8, "maximum producer depth")

	return cmd
}

func runExplain(opts *ExplainOptions, path, regText string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	fns, err := readFunctions(path, cmd.InOrStdin())
	if err != nil {
		_ = formatter.Error(CLIError{Code: ErrCodeParseFailed, Message: err.Error()})
		return WrapExitError(ExitCommandError, "reading input", err)
	}
	f, err := pickFunction(fns, opts.Function)
	if err != nil {
		return WrapExitError(ExitCommandError, "selecting function", err)
	}
	r, err := parseRegArg(regText)
	if err != nil {
		return WrapExitError(ExitCommandError, "parsing register", err)
	}
	if !f.RegType(r).IsValid() {
		return NewExitError(ExitCommandError, fmt.Sprintf("register %s does not exist in @%s", r, f.Name))
	}

	node := explainReg(f, r, opts.Depth, true)
	if formatter.JSON() {
		return formatter.Success(node, "")
	}
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("@%s", f.Name))
	addRegNode(tree, node)
	return formatter.Success(nil, tree.String())
}

func pickFunction(fns []*ir.Function, name string) (*ir.Function, error) {
	if name == "" {
		if len(fns) != 1 {
			return nil, fmt.Errorf("input has %d functions, use --function", len(fns))
		}
		return fns[0], nil
	}
	for _, f := range fns {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, fmt.Errorf("no function @%s", name)
}

// parseRegArg accepts %N or N.
func parseRegArg(s string) (ir.Reg, error) {
	n, err := strconv.ParseInt(strings.TrimPrefix(s, "%"), 10, 32)
	if err != nil || n < 0 {
		return ir.NoReg, fmt.Errorf("invalid register %q", s)
	}
	return ir.Reg(n), nil
}

// explainReg builds the producer tree of r. Users are listed for the root
// only.
func explainReg(f *ir.Function, r ir.Reg, depth int, withUsers bool) *RegNode {
	node := &RegNode{Reg: r.String(), Type: f.RegType(r).String()}
	if withUsers {
		for _, u := range f.Uses(r) {
			node.Users = append(node.Users, ir.PrintInstr(f, u))
		}
	}
	def := f.Def(r)
	if def == nil {
		return node
	}
	node.Def = ir.PrintInstr(f, def)
	if depth <= 0 {
		return node
	}
	for _, u := range def.Uses() {
		node.Operands = append(node.Operands, explainReg(f, u, depth-1, false))
	}
	return node
}

func addRegNode(tree treeprint.Tree, n *RegNode) {
	label := fmt.Sprintf("%s:%s", n.Reg, n.Type)
	if n.Def != "" {
		label += " <- " + n.Def
	} else {
		label += " (undefined)"
	}
	branch := tree.AddBranch(label)
	for _, op := range n.Operands {
		addRegNode(branch, op)
	}
	if len(n.Users) > 0 {
		users := branch.AddMetaBranch("users", fmt.Sprintf("%d", len(n.Users)))
		for _, u := range n.Users {
			users.AddNode(u)
		}
	}
}
