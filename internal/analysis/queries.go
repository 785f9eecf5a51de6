// Package analysis answers the value questions combine rules ask about
// registers: is it a known constant, and was it produced by an extension.
//
// Answers are computed from the live graph on every call, so they can never
// be stale after a mutation.
package analysis

import (
	"github.com/roach88/peephole/internal/apint"
	"github.com/roach88/peephole/internal/ir"
)

// Queries is the read-only view rules use to inspect producers.
type Queries interface {
	// ConstantValueOf returns the scalar constant in r, or the lane value of
	// a uniform constant vector.
	ConstantValueOf(r ir.Reg) (apint.Int, bool)
	// IConstantValueOf returns the scalar integer constant in r, looking
	// through copies, extensions and truncations of a G_CONSTANT.
	IConstantValueOf(r ir.Reg) (apint.Int, bool)
	// SplatConstantOf returns the lane value of a G_BUILD_VECTOR whose
	// lanes all hold the same constant.
	SplatConstantOf(r ir.Reg) (apint.Int, bool)
	// IsSignExtended reports whether r is defined by G_SEXT or G_SEXT_INREG.
	IsSignExtended(r ir.Reg) bool
	// IsZeroExtended reports whether r is defined by G_ZEXT.
	IsZeroExtended(r ir.Reg) bool
}

// GraphQueries implements Queries directly over a Function.
type GraphQueries struct {
	f *ir.Function
}

// NewGraphQueries returns queries over f.
func NewGraphQueries(f *ir.Function) *GraphQueries {
	return &GraphQueries{f: f}
}

var _ Queries = (*GraphQueries)(nil)

// maxLookThrough bounds the COPY/ext/trunc chain followed to a constant.
const maxLookThrough = 8

func (q *GraphQueries) IConstantValueOf(r ir.Reg) (apint.Int, bool) {
	type step struct {
		op    ir.Opcode
		width uint
	}
	var steps []step

	for depth := 0; depth < maxLookThrough; depth++ {
		def := q.f.Def(r)
		if def == nil {
			return apint.Int{}, false
		}
		switch def.Opcode() {
		case ir.G_CONSTANT:
			v := def.Operand(1).Imm
			for i := len(steps) - 1; i >= 0; i-- {
				switch steps[i].op {
				case ir.G_SEXT:
					v = v.Sext(steps[i].width)
				case ir.G_ZEXT:
					v = v.Zext(steps[i].width)
				case ir.G_TRUNC:
					v = v.Trunc(steps[i].width)
				}
			}
			return v, true
		case ir.COPY, ir.G_SEXT, ir.G_ZEXT, ir.G_TRUNC:
			dstTy := q.f.RegType(def.Dst())
			if !dstTy.IsScalar() {
				return apint.Int{}, false
			}
			steps = append(steps, step{op: def.Opcode(), width: dstTy.SizeInBits()})
			r = def.Reg(1)
		default:
			return apint.Int{}, false
		}
	}
	return apint.Int{}, false
}

func (q *GraphQueries) SplatConstantOf(r ir.Reg) (apint.Int, bool) {
	def := q.f.Def(r)
	if def == nil || def.Opcode() != ir.G_BUILD_VECTOR {
		return apint.Int{}, false
	}
	var splat apint.Int
	for i := 1; i < def.NumOperands(); i++ {
		v, ok := q.IConstantValueOf(def.Reg(i))
		if !ok {
			return apint.Int{}, false
		}
		if i == 1 {
			splat = v
		} else if !v.Eq(splat) {
			return apint.Int{}, false
		}
	}
	return splat, true
}

func (q *GraphQueries) ConstantValueOf(r ir.Reg) (apint.Int, bool) {
	if v, ok := q.IConstantValueOf(r); ok {
		return v, true
	}
	return q.SplatConstantOf(r)
}

func (q *GraphQueries) IsSignExtended(r ir.Reg) bool {
	def := q.f.Def(r)
	return def != nil && (def.Opcode() == ir.G_SEXT || def.Opcode() == ir.G_SEXT_INREG)
}

func (q *GraphQueries) IsZeroExtended(r ir.Reg) bool {
	def := q.f.Def(r)
	return def != nil && def.Opcode() == ir.G_ZEXT
}

// DefIgnoringCopies returns the definer of r after walking back through
// same-typed COPY instructions.
func DefIgnoringCopies(f *ir.Function, r ir.Reg) *ir.Instruction {
	def := f.Def(r)
	for depth := 0; def != nil && def.Opcode() == ir.COPY && depth < maxLookThrough; depth++ {
		src := def.Reg(1)
		if f.RegType(src) != f.RegType(r) {
			break
		}
		next := f.Def(src)
		if next == nil {
			break
		}
		def = next
	}
	return def
}

// RegIgnoringCopies returns the register r holds the value of after walking
// back through same-typed COPY instructions.
func RegIgnoringCopies(f *ir.Function, r ir.Reg) ir.Reg {
	for depth := 0; depth < maxLookThrough; depth++ {
		def := f.Def(r)
		if def == nil || def.Opcode() != ir.COPY {
			break
		}
		src := def.Reg(1)
		if f.RegType(src) != f.RegType(r) {
			break
		}
		r = src
	}
	return r
}

// OpcodeDef returns the definer of r, ignoring copies, when it has opcode op.
func OpcodeDef(f *ir.Function, op ir.Opcode, r ir.Reg) *ir.Instruction {
	def := DefIgnoringCopies(f, r)
	if def == nil || def.Opcode() != op {
		return nil
	}
	return def
}
