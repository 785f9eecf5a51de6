package rules

import (
	"github.com/roach88/peephole/internal/analysis"
	"github.com/roach88/peephole/internal/combine"
	"github.com/roach88/peephole/internal/ir"
)

type pairwiseMatch struct {
	op  ir.Opcode
	ty  ir.Type
	src ir.Reg
}

// extractVecEltPairwiseAdd turns
//
//	%s = G_SHUFFLE_VECTOR %v, %u, shufflemask(1, ...)
//	%a = G_FADD %v, %s
//	%e = G_EXTRACT_VECTOR_ELT %a, 0
//
// into an add of lanes 0 and 1 of %v.
func extractVecEltPairwiseAdd() combine.Rule {
	return combine.NewRule(ExtractVecEltPairwise, ir.G_EXTRACT_VECTOR_ELT,
		[]ir.Opcode{ir.G_CONSTANT, ir.G_EXTRACT_VECTOR_ELT, ir.G_FADD},
		"fold lane 0 of v + shuffle(v, <1, ...>) into a scalar pairwise add",
		matchPairwiseAdd, applyPairwiseAdd)
}

func matchPairwiseAdd(h *combine.Helper, mi *ir.Instruction, m *pairwiseMatch) bool {
	idx, ok := h.Q.IConstantValueOf(mi.Reg(2))
	if !ok || !idx.IsZero() {
		return false
	}
	fadd := analysis.OpcodeDef(h.F, ir.G_FADD, mi.Reg(1))
	if fadd == nil {
		return false
	}
	ty := h.F.RegType(mi.Dst())
	switch ty.SizeInBits() {
	case 16, 32, 64:
	default:
		return false
	}

	a, b := fadd.Reg(1), fadd.Reg(2)
	shuffle, other := analysis.OpcodeDef(h.F, ir.G_SHUFFLE_VECTOR, b), a
	if shuffle == nil {
		shuffle, other = analysis.OpcodeDef(h.F, ir.G_SHUFFLE_VECTOR, a), b
	}
	if shuffle == nil {
		return false
	}
	mask := shuffle.Operand(3).Mask
	if len(mask) == 0 || mask[0] != 1 {
		return false
	}
	// Compare registers, not definers: two results of one multi-def
	// instruction are different values.
	src := analysis.RegIgnoringCopies(h.F, shuffle.Reg(1))
	if src != analysis.RegIgnoringCopies(h.F, other) {
		return false
	}

	if !h.IsLegal(ir.G_CONSTANT, ir.S64) ||
		!h.IsLegal(ir.G_EXTRACT_VECTOR_ELT, ty, h.F.RegType(src), ir.S64) ||
		!h.IsLegal(ir.G_FADD, ty) {
		return false
	}
	m.op, m.ty, m.src = ir.G_FADD, ty, src
	return true
}

func applyPairwiseAdd(h *combine.Helper, mi *ir.Instruction, m *pairwiseMatch) {
	b := h.BuildBefore(mi)
	lo := b.ExtractVectorElement(m.ty, m.src, b.ConstantInt(ir.S64, 0))
	hi := b.ExtractVectorElement(m.ty, m.src, b.ConstantInt(ir.S64, 1))
	b.BuildInto(m.op, mi.Dst(), ir.UseOp(lo), ir.UseOp(hi))
	h.EraseInst(mi)
}
