package rules

import (
	"github.com/roach88/peephole/internal/combine"
	"github.com/roach88/peephole/internal/ir"
)

// foldMergeToZext rewrites %d:s64 = G_MERGE_VALUES %a:s32, 0 into
// %d:s64 = G_ZEXT %a in place, keeping %d.
func foldMergeToZext() combine.Rule {
	return combine.NewRule(FoldMergeToZext, ir.G_MERGE_VALUES,
		[]ir.Opcode{ir.G_ZEXT},
		"merge of an s32 with a zero high half becomes a zero extension",
		func(h *combine.Helper, mi *ir.Instruction, _ *struct{}) bool {
			if mi.NumOperands() != 3 || h.F.RegType(mi.Reg(1)) != ir.S32 {
				return false
			}
			hi, ok := h.Q.IConstantValueOf(mi.Reg(2))
			if !ok || !hi.IsZero() {
				return false
			}
			return h.IsLegal(ir.G_ZEXT, h.F.RegType(mi.Dst()), ir.S32)
		},
		func(h *combine.Helper, mi *ir.Instruction, _ *struct{}) {
			h.F.Mutate(mi, func() {
				h.F.SetOpcode(mi, ir.G_ZEXT)
				h.F.RemoveOperand(mi, 2)
			})
		})
}

// mutateAnyExtToZext pins the upper bits of an extended comparison result
// to zero so later known-bits reasoning can rely on them.
func mutateAnyExtToZext() combine.Rule {
	return combine.NewRule(MutateAnyExtToZext, ir.G_ANYEXT,
		[]ir.Opcode{ir.G_ZEXT},
		"any-extension of a compare result becomes a zero extension",
		func(h *combine.Helper, mi *ir.Instruction, _ *struct{}) bool {
			dstTy := h.F.RegType(mi.Dst())
			if !dstTy.IsScalar() {
				return false
			}
			def := h.F.Def(mi.Reg(1))
			if def == nil || (def.Opcode() != ir.G_ICMP && def.Opcode() != ir.G_FCMP) {
				return false
			}
			return h.IsLegal(ir.G_ZEXT, dstTy, h.F.RegType(mi.Reg(1)))
		},
		func(h *combine.Helper, mi *ir.Instruction, _ *struct{}) {
			h.F.Mutate(mi, func() { h.F.SetOpcode(mi, ir.G_ZEXT) })
		})
}
