package legal

import "github.com/roach88/peephole/internal/ir"

var (
	s8, s16, s32, s64, s128 = ir.S8, ir.S16, ir.S32, ir.S64, ir.S128
	p0                      = ir.P0

	v8s8  = ir.Vector(8, s8)
	v16s8 = ir.Vector(16, s8)
	v4s16 = ir.Vector(4, s16)
	v8s16 = ir.Vector(8, s16)
	v2s32 = ir.Vector(2, s32)
	v4s32 = ir.Vector(4, s32)
	v2s64 = ir.Vector(2, s64)
	v2p0  = ir.Vector(2, p0)
)

func unary(types ...ir.Type) []Sig {
	out := make([]Sig, len(types))
	for i, t := range types {
		out[i] = Sig{t}
	}
	return out
}

// AArch64 returns the post-legalization operation set of a 64-bit Arm
// target, restricted to the opcodes this module models.
func AArch64() *Table {
	intVecs := []ir.Type{v8s8, v16s8, v4s16, v8s16, v2s32, v4s32, v2s64}
	fpTypes := []ir.Type{s16, s32, s64, v4s16, v8s16, v2s32, v4s32, v2s64}
	allVecs := append(append([]ir.Type{}, intVecs...), v2p0)

	t := NewTable("aarch64")
	t.Legal(ir.G_CONSTANT, unary(s32, s64, p0)...)
	t.Legal(ir.G_FCONSTANT, unary(s16, s32, s64)...)
	t.Legal(ir.G_IMPLICIT_DEF, unary(append([]ir.Type{s32, s64, s128, p0}, allVecs...)...)...)

	for _, op := range []ir.Opcode{ir.G_ADD, ir.G_SUB, ir.G_AND, ir.G_OR, ir.G_XOR} {
		t.Legal(op, unary(append([]ir.Type{s32, s64}, intVecs...)...)...)
	}
	t.Legal(ir.G_MUL, unary(s32, s64, v8s8, v16s8, v4s16, v8s16, v2s32, v4s32)...)

	for _, op := range []ir.Opcode{ir.G_SHL, ir.G_LSHR, ir.G_ASHR} {
		t.Legal(op, Sig{s32, s32}, Sig{s32, s64}, Sig{s64, s64})
		for _, v := range intVecs {
			t.Legal(op, Sig{v, v})
		}
	}
	t.Legal(ir.G_PTR_ADD, Sig{p0, s64}, Sig{v2p0, v2s64})

	for _, op := range []ir.Opcode{ir.G_FADD, ir.G_FSUB, ir.G_FMUL} {
		t.Legal(op, unary(fpTypes...)...)
	}

	t.Legal(ir.G_ICMP, Sig{s32, s32}, Sig{s32, s64}, Sig{s32, p0},
		Sig{v4s32, v4s32}, Sig{v2s64, v2s64}, Sig{v8s16, v8s16}, Sig{v16s8, v16s8})
	t.Legal(ir.G_FCMP, Sig{s32, s16}, Sig{s32, s32}, Sig{s32, s64},
		Sig{v4s32, v4s32}, Sig{v2s64, v2s64})

	for _, op := range []ir.Opcode{ir.G_SEXT, ir.G_ZEXT, ir.G_ANYEXT} {
		t.Legal(op, Sig{s32, s8}, Sig{s32, s16}, Sig{s64, s8}, Sig{s64, s16}, Sig{s64, s32},
			Sig{v8s16, v8s8}, Sig{v4s32, v4s16}, Sig{v2s64, v2s32})
	}
	t.Legal(ir.G_SEXT_INREG, unary(s32, s64)...)
	t.Legal(ir.G_TRUNC, Sig{s8, s32}, Sig{s16, s32}, Sig{s32, s64}, Sig{s8, s64}, Sig{s16, s64},
		Sig{v8s8, v8s16}, Sig{v4s16, v4s32}, Sig{v2s32, v2s64})

	t.Legal(ir.G_MERGE_VALUES, Sig{s64, s32}, Sig{s128, s64})
	t.Legal(ir.G_UNMERGE_VALUES, Sig{s32, s64}, Sig{s64, s128})
	t.Legal(ir.G_BUILD_VECTOR, Sig{v4s32, s32}, Sig{v2s32, s32}, Sig{v2s64, s64}, Sig{v2p0, p0})

	t.Legal(ir.G_EXTRACT_VECTOR_ELT,
		Sig{s16, v4s16, s64}, Sig{s16, v8s16, s64},
		Sig{s32, v2s32, s64}, Sig{s32, v4s32, s64},
		Sig{s64, v2s64, s64}, Sig{p0, v2p0, s64})
	for _, v := range allVecs {
		t.Legal(ir.G_SHUFFLE_VECTOR, Sig{v, v})
	}

	for _, op := range []ir.Opcode{ir.G_LOAD, ir.G_STORE} {
		for _, ty := range append([]ir.Type{s8, s16, s32, s64, s128, p0}, allVecs...) {
			t.Legal(op, Sig{ty, p0})
		}
	}
	return t
}
