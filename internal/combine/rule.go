package combine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/peephole/internal/analysis"
	"github.com/roach88/peephole/internal/ir"
	"github.com/roach88/peephole/internal/legal"
)

// MatchInfo is the payload a successful Match hands to its Apply. It lives
// for exactly one match/apply cycle.
type MatchInfo any

// Rule is one combine: a match predicate and the rewrite it enables.
type Rule struct {
	// ID is the stable name used by filters, logs and the run log.
	ID string

	// Number is the position in the owning Table, assigned by NewTable.
	Number int

	// Opcode is the anchor opcode the driver dispatches on.
	Opcode ir.Opcode

	// Produces lists the opcodes Apply may create or mutate into. It feeds
	// the static rule-interaction analysis and the legality pre-check.
	Produces []ir.Opcode

	// Doc is a one-line description shown by `peephole rules`.
	Doc string

	// Match inspects mi without mutating anything.
	Match func(h *Helper, mi *ir.Instruction) (MatchInfo, bool)

	// Apply performs the rewrite for a prior successful Match.
	Apply func(h *Helper, mi *ir.Instruction, info MatchInfo)
}

// NewRule binds a rule whose MatchInfo is a T. Each match attempt starts
// from a fresh zero T that is dropped when the match fails.
func NewRule[T any](
	id string,
	anchor ir.Opcode,
	produces []ir.Opcode,
	doc string,
	match func(h *Helper, mi *ir.Instruction, info *T) bool,
	apply func(h *Helper, mi *ir.Instruction, info *T),
) Rule {
	return Rule{
		ID:       id,
		Opcode:   anchor,
		Produces: produces,
		Doc:      doc,
		Match: func(h *Helper, mi *ir.Instruction) (MatchInfo, bool) {
			info := new(T)
			if !match(h, mi, info) {
				return nil, false
			}
			return info, true
		},
		Apply: func(h *Helper, mi *ir.Instruction, info MatchInfo) {
			ti, ok := info.(*T)
			if !ok {
				panic(fmt.Sprintf("rule %s: match info has type %T", id, info))
			}
			apply(h, mi, ti)
		},
	}
}

// Helper is the context handed to Match and Apply.
type Helper struct {
	F            *ir.Function
	Q            analysis.Queries
	B            *ir.Builder
	Legal        *legal.Table
	AllowIllegal bool
	Logger       *slog.Logger
}

// NewHelper returns a helper over f with live graph queries.
func NewHelper(f *ir.Function, table *legal.Table, allowIllegal bool, logger *slog.Logger) *Helper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Helper{
		F:            f,
		Q:            analysis.NewGraphQueries(f),
		B:            ir.NewBuilder(f),
		Legal:        table,
		AllowIllegal: allowIllegal,
		Logger:       logger,
	}
}

// IsLegal reports whether a rewrite may create op with the given type
// indices. Without a table, or with illegal forms allowed, everything is.
func (h *Helper) IsLegal(op ir.Opcode, types ...ir.Type) bool {
	if h.AllowIllegal || h.Legal == nil {
		return true
	}
	return h.Legal.Allows(op, types...)
}

// BuildBefore positions the builder immediately before mi.
func (h *Helper) BuildBefore(mi *ir.Instruction) *ir.Builder {
	h.B.SetInsertPoint(mi)
	return h.B
}

// ReplaceReg redirects every use of from to to.
func (h *Helper) ReplaceReg(from, to ir.Reg) {
	h.F.ReplaceAllUses(from, to)
}

// EraseInst removes mi from the function.
func (h *Helper) EraseInst(mi *ir.Instruction) {
	h.F.Erase(mi)
}
