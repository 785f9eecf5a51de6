package rules

import (
	"github.com/roach88/peephole/internal/combine"
	"github.com/roach88/peephole/internal/ir"
)

// splitStoreZero128 replaces a full-width store of a zero 128-bit vector
// with two 64-bit scalar zero stores at offsets 0 and 8.
func splitStoreZero128() combine.Rule {
	return combine.NewRule(SplitStoreZero128, ir.G_STORE,
		[]ir.Opcode{ir.G_CONSTANT, ir.G_PTR_ADD, ir.G_STORE},
		"split a 128-bit zero vector store into two 64-bit zero stores",
		func(h *combine.Helper, mi *ir.Instruction, _ *struct{}) bool {
			mem, ok := mi.Mem()
			if !ok || !mem.IsSimple() {
				return false
			}
			val := mi.Reg(0)
			valTy := h.F.RegType(val)
			if !valTy.IsVector() || valTy.SizeInBits() != 128 {
				return false
			}
			// Truncating stores are left alone.
			if uint64(valTy.SizeInBits()) != mem.SizeInBits() {
				return false
			}
			if !h.F.HasOneUse(val) {
				return false
			}
			c, ok := h.Q.ConstantValueOf(val)
			if !ok || !c.IsZero() {
				return false
			}
			ptrTy := h.F.RegType(mi.Reg(1))
			return h.IsLegal(ir.G_CONSTANT, ir.S64) &&
				h.IsLegal(ir.G_PTR_ADD, ptrTy, ir.S64) &&
				h.IsLegal(ir.G_STORE, ir.S64, ptrTy)
		},
		func(h *combine.Helper, mi *ir.Instruction, _ *struct{}) {
			mem, _ := mi.Mem()
			ptr := mi.Reg(1)
			b := h.BuildBefore(mi)

			zero := b.ConstantInt(ir.S64, 0)
			hi := b.PtrAdd(h.F.RegType(ptr), ptr, b.ConstantInt(ir.S64, 8))
			b.Store(zero, ptr, mem.Split(0, 8))
			b.Store(zero, hi, mem.Split(8, 8))
			h.EraseInst(mi)
		})
}
