package ir

import "github.com/roach88/peephole/internal/apint"

// Builder creates instructions at an insertion point.
type Builder struct {
	f      *Function
	before *Instruction
}

// NewBuilder returns a builder that appends to the end of f.
func NewBuilder(f *Function) *Builder { return &Builder{f: f} }

// Function returns the function being built into.
func (b *Builder) Function() *Function { return b.f }

// SetInsertPoint makes new instructions go immediately before mi. A nil
// mi appends to the end of the function.
func (b *Builder) SetInsertPoint(mi *Instruction) { b.before = mi }

// Build creates op with a fresh result register of type ty.
func (b *Builder) Build(op Opcode, ty Type, srcs ...Operand) Reg {
	dst := b.f.NewReg(ty)
	b.BuildInto(op, dst, srcs...)
	return dst
}

// BuildInto creates op defining the existing register dst.
func (b *Builder) BuildInto(op Opcode, dst Reg, srcs ...Operand) *Instruction {
	ops := make([]Operand, 0, len(srcs)+1)
	ops = append(ops, DefOp(dst))
	ops = append(ops, srcs...)
	return b.f.Insert(b.before, op, ops, nil)
}

// Constant builds a G_CONSTANT of type ty holding v wrapped to ty's width.
func (b *Builder) Constant(ty Type, v apint.Int) Reg {
	return b.Build(G_CONSTANT, ty, ImmOp(v.SextOrTrunc(ty.SizeInBits())))
}

// ConstantInt builds a G_CONSTANT of type ty from a signed value.
func (b *Builder) ConstantInt(ty Type, v int64) Reg {
	return b.Build(G_CONSTANT, ty, ImmOp(apint.FromInt64(ty.SizeInBits(), v)))
}

// Binary builds a two-source operation into a fresh register.
func (b *Builder) Binary(op Opcode, ty Type, lhs, rhs Reg) Reg {
	return b.Build(op, ty, UseOp(lhs), UseOp(rhs))
}

// Shl builds x << amt.
func (b *Builder) Shl(ty Type, x, amt Reg) Reg { return b.Binary(G_SHL, ty, x, amt) }

// Add builds x + y.
func (b *Builder) Add(ty Type, x, y Reg) Reg { return b.Binary(G_ADD, ty, x, y) }

// Sub builds x - y.
func (b *Builder) Sub(ty Type, x, y Reg) Reg { return b.Binary(G_SUB, ty, x, y) }

// ExtractVectorElement builds a lane read of vec at index idx.
func (b *Builder) ExtractVectorElement(ty Type, vec, idx Reg) Reg {
	return b.Binary(G_EXTRACT_VECTOR_ELT, ty, vec, idx)
}

// PtrAdd builds ptr + off.
func (b *Builder) PtrAdd(ty Type, ptr, off Reg) Reg { return b.Binary(G_PTR_ADD, ty, ptr, off) }

// Store builds a store of val to ptr.
func (b *Builder) Store(val, ptr Reg, mem MemDesc) *Instruction {
	mem.Kind = MemStore
	return b.f.Insert(b.before, G_STORE, []Operand{UseOp(val), UseOp(ptr)}, &mem)
}

// Load builds a load of type ty from ptr.
func (b *Builder) Load(ty Type, ptr Reg, mem MemDesc) Reg {
	mem.Kind = MemLoad
	dst := b.f.NewReg(ty)
	b.f.Insert(b.before, G_LOAD, []Operand{DefOp(dst), UseOp(ptr)}, &mem)
	return dst
}
