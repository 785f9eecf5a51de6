package rules

import (
	"github.com/roach88/peephole/internal/combine"
	"github.com/roach88/peephole/internal/ir"
)

type copyMatch struct {
	src ir.Reg
}

// copyProp forwards the source of a type-preserving COPY to its readers.
func copyProp() combine.Rule {
	return combine.NewRule(CopyProp, ir.COPY, nil,
		"replace uses of a same-typed COPY with its source",
		func(h *combine.Helper, mi *ir.Instruction, m *copyMatch) bool {
			dst, src := mi.Dst(), mi.Reg(1)
			if h.F.RegType(dst) != h.F.RegType(src) {
				return false
			}
			m.src = src
			return true
		},
		func(h *combine.Helper, mi *ir.Instruction, m *copyMatch) {
			h.ReplaceReg(mi.Dst(), m.src)
			h.EraseInst(mi)
		})
}

// commuteConstantToRHS moves a constant left operand of G_MUL to the right
// so later rules only look for constants in one position.
func commuteConstantToRHS() combine.Rule {
	return combine.NewRule(CommuteConstantToRHS, ir.G_MUL, []ir.Opcode{ir.G_MUL},
		"put the constant operand of a multiply on the right",
		func(h *combine.Helper, mi *ir.Instruction, _ *struct{}) bool {
			if !mi.Opcode().IsCommutative() {
				return false
			}
			if _, ok := h.Q.IConstantValueOf(mi.Reg(1)); !ok {
				return false
			}
			_, rhsConst := h.Q.IConstantValueOf(mi.Reg(2))
			return !rhsConst
		},
		func(h *combine.Helper, mi *ir.Instruction, _ *struct{}) {
			h.F.Mutate(mi, func() { h.F.SwapOperands(mi, 1, 2) })
		})
}
