package rules

import (
	"github.com/roach88/peephole/internal/apint"
	"github.com/roach88/peephole/internal/combine"
	"github.com/roach88/peephole/internal/ir"
)

// mulConstMatch is the decision taken for x * C.
//
//	shift      N, the shift applied to x
//	addSub     G_ADD or G_SUB combining the shifted value with x
//	shiftedLHS the shifted value is the left operand of addSub
//	negate     the combined value is subtracted from zero
//	trailing   tz, the final left shift
type mulConstMatch struct {
	shift      uint
	addSub     ir.Opcode
	shiftedLHS bool
	negate     bool
	trailing   uint
}

// mulConst strength-reduces a multiply by a constant of the form
// (2^N +/- 1) * 2^M, or its negation, into shifts and an add or subtract.
func mulConst() combine.Rule {
	return combine.NewRule(MulConst, ir.G_MUL,
		[]ir.Opcode{ir.G_CONSTANT, ir.G_SHL, ir.G_ADD, ir.G_SUB},
		"rewrite x * C as shift and add/sub when C is (2^N +/- 1) * 2^M",
		matchMulConst, applyMulConst)
}

func matchMulConst(h *combine.Helper, mi *ir.Instruction, m *mulConstMatch) bool {
	dst, lhs, rhs := mi.Dst(), mi.Reg(1), mi.Reg(2)
	ty := h.F.RegType(lhs)
	if !ty.IsScalar() {
		return false
	}
	raw, ok := h.Q.IConstantValueOf(rhs)
	if !ok {
		return false
	}
	width := ty.SizeInBits()
	c := raw.SextOrTrunc(width)

	tz := c.CountTrailingZeros()
	if tz >= width {
		// C == 0 has no shift+add form and the trailing shift would be
		// out of range.
		return false
	}
	one := apint.New(width, 1)
	shifted := c.AShr(tz)
	if shifted.Eq(one) {
		// C is a power of two, including 1: one shift at most, never an
		// add or subtract.
		return false
	}
	if tz > 0 && !trailingShiftProfitable(h, dst, lhs) {
		return false
	}

	switch {
	case c.IsNonNegative():
		if v := shifted.Sub(one); v.IsPowerOf2() {
			m.shift, m.addSub, m.shiftedLHS = uint(v.LogBase2()), ir.G_ADD, true
		} else if v := shifted.Add(one); v.IsPowerOf2() {
			m.shift, m.addSub, m.shiftedLHS = uint(v.LogBase2()), ir.G_SUB, true
		} else {
			return false
		}
		m.trailing = tz
	default:
		if tz > 0 {
			// Negative forms never take a trailing shift.
			return false
		}
		neg := c.Neg()
		if v := neg.Add(one); v.IsPowerOf2() {
			m.shift, m.addSub, m.shiftedLHS = uint(v.LogBase2()), ir.G_SUB, false
		} else if v := neg.Sub(one); v.IsPowerOf2() {
			m.shift, m.addSub, m.shiftedLHS, m.negate = uint(v.LogBase2()), ir.G_ADD, true, true
		} else {
			return false
		}
	}

	return h.IsLegal(ir.G_CONSTANT, ir.S64) &&
		h.IsLegal(ir.G_SHL, ty, ir.S64) &&
		h.IsLegal(m.addSub, ty) &&
		(!m.negate || (h.IsLegal(ir.G_CONSTANT, ty) && h.IsLegal(ir.G_SUB, ty)))
}

// trailingShiftProfitable keeps a multiply that a later stage would fold
// into a widening multiply or a multiply-accumulate.
func trailingShiftProfitable(h *combine.Helper, dst, lhs ir.Reg) bool {
	if h.F.HasOneUse(lhs) && (h.Q.IsSignExtended(lhs) || h.Q.IsZeroExtended(lhs)) {
		return false
	}
	if user := h.F.SingleUser(dst); user != nil {
		switch user.Opcode() {
		case ir.G_ADD, ir.G_SUB, ir.G_PTR_ADD:
			return false
		}
	}
	return true
}

func applyMulConst(h *combine.Helper, mi *ir.Instruction, m *mulConstMatch) {
	dst, x := mi.Dst(), mi.Reg(1)
	ty := h.F.RegType(x)
	b := h.BuildBefore(mi)

	shl := b.Shl(ty, x, b.ConstantInt(ir.S64, int64(m.shift)))
	lhs, rhs := shl, x
	if !m.shiftedLHS {
		lhs, rhs = x, shl
	}

	switch {
	case m.negate:
		res := b.Binary(m.addSub, ty, lhs, rhs)
		b.BuildInto(ir.G_SUB, dst, ir.UseOp(b.ConstantInt(ty, 0)), ir.UseOp(res))
	case m.trailing > 0:
		res := b.Binary(m.addSub, ty, lhs, rhs)
		b.BuildInto(ir.G_SHL, dst, ir.UseOp(res), ir.UseOp(b.ConstantInt(ir.S64, int64(m.trailing))))
	default:
		b.BuildInto(m.addSub, dst, ir.UseOp(lhs), ir.UseOp(rhs))
	}
	h.EraseInst(mi)
}
