package ir

import (
	"errors"
	"fmt"
)

// VerifyError reports a structural defect in a Function.
type VerifyError struct {
	Instr InstrID
	Msg   string
}

func (e *VerifyError) Error() string {
	if e.Instr == NoInstr {
		return "verify: " + e.Msg
	}
	return fmt.Sprintf("verify: instruction #%d: %s", e.Instr, e.Msg)
}

// IsVerifyError reports whether err contains a VerifyError.
func IsVerifyError(err error) bool {
	var ve *VerifyError
	return errors.As(err, &ve)
}

type shape struct {
	kinds    []OperandKind
	variadic OperandKind // repeated kind accepted after kinds, 0 for none
	minExtra int
	mem      bool
}

func shapeOf(op Opcode) shape {
	switch op {
	case ARG, G_CONSTANT:
		return shape{kinds: []OperandKind{KindDef, KindImm}}
	case RET:
		return shape{variadic: KindUse}
	case COPY, G_TRUNC, G_SEXT, G_ZEXT, G_ANYEXT:
		return shape{kinds: []OperandKind{KindDef, KindUse}}
	case G_IMPLICIT_DEF:
		return shape{kinds: []OperandKind{KindDef}}
	case G_FCONSTANT:
		return shape{kinds: []OperandKind{KindDef, KindFPImm}}
	case G_ADD, G_SUB, G_MUL, G_AND, G_OR, G_XOR, G_SHL, G_LSHR, G_ASHR,
		G_PTR_ADD, G_FADD, G_FSUB, G_FMUL, G_EXTRACT_VECTOR_ELT:
		return shape{kinds: []OperandKind{KindDef, KindUse, KindUse}}
	case G_ICMP, G_FCMP:
		return shape{kinds: []OperandKind{KindDef, KindPred, KindUse, KindUse}}
	case G_SEXT_INREG:
		return shape{kinds: []OperandKind{KindDef, KindUse, KindImm}}
	case G_MERGE_VALUES:
		return shape{kinds: []OperandKind{KindDef, KindUse}, variadic: KindUse, minExtra: 1}
	case G_BUILD_VECTOR:
		return shape{kinds: []OperandKind{KindDef, KindUse}, variadic: KindUse, minExtra: 1}
	case G_SHUFFLE_VECTOR:
		return shape{kinds: []OperandKind{KindDef, KindUse, KindUse, KindMask}}
	case G_LOAD:
		return shape{kinds: []OperandKind{KindDef, KindUse}, mem: true}
	case G_STORE:
		return shape{kinds: []OperandKind{KindUse, KindUse}, mem: true}
	}
	return shape{}
}

// Verify checks the single-definition discipline, the consistency of the
// def-use index, operand shapes and basic type agreement. It returns all
// defects joined.
func (f *Function) Verify() error {
	var errs []error
	fail := func(mi *Instruction, format string, args ...any) {
		id := NoInstr
		if mi != nil {
			id = mi.id
		}
		errs = append(errs, &VerifyError{Instr: id, Msg: fmt.Sprintf(format, args...)})
	}

	useCounts := make([]int, len(f.regs))
	for _, mi := range f.Instrs() {
		if !mi.op.Valid() {
			fail(mi, "invalid opcode")
			continue
		}
		f.verifyShape(mi, fail)
		for _, o := range mi.ops {
			if !o.IsReg() {
				continue
			}
			if !f.validReg(o.Reg) || !f.regs[o.Reg].ty.IsValid() {
				fail(mi, "register %s has no type", o.Reg)
				continue
			}
			if o.Kind == KindDef {
				if f.regs[o.Reg].def != mi.id {
					fail(mi, "register %s is defined more than once", o.Reg)
				}
				continue
			}
			useCounts[o.Reg]++
			if f.Def(o.Reg) == nil {
				fail(mi, "use of undefined register %s", o.Reg)
			}
		}
		if len(errs) == 0 {
			f.verifyTypes(mi, fail)
		}
	}

	for r, info := range f.regs {
		if useCounts[r] != len(info.uses) {
			fail(nil, "register %s: use index has %d entries, found %d uses", Reg(r), len(info.uses), useCounts[r])
		}
		for _, id := range info.uses {
			if f.instrs[id].erased {
				fail(nil, "register %s: use index references erased instruction #%d", Reg(r), id)
			}
		}
	}
	return errors.Join(errs...)
}

func (f *Function) verifyShape(mi *Instruction, fail func(*Instruction, string, ...any)) {
	if mi.op == G_UNMERGE_VALUES {
		f.verifyUnmergeShape(mi, fail)
		return
	}
	s := shapeOf(mi.op)
	if len(mi.ops) < len(s.kinds)+s.minExtra {
		fail(mi, "%s expects at least %d operands, has %d", mi.op, len(s.kinds)+s.minExtra, len(mi.ops))
		return
	}
	for i, o := range mi.ops {
		want := s.variadic
		if i < len(s.kinds) {
			want = s.kinds[i]
		}
		if want == 0 {
			fail(mi, "%s has %d operands, expects %d", mi.op, len(mi.ops), len(s.kinds))
			return
		}
		if o.Kind != want {
			fail(mi, "operand %d of %s is %s, expects %s", i, mi.op, o.Kind, want)
			return
		}
	}
	if s.mem != (mi.mem != nil) {
		fail(mi, "%s memory descriptor mismatch", mi.op)
	}
}

// verifyUnmergeShape checks G_UNMERGE_VALUES: one or more defs, then exactly
// one use.
func (f *Function) verifyUnmergeShape(mi *Instruction, fail func(*Instruction, string, ...any)) {
	n := len(mi.ops)
	if n < 2 {
		fail(mi, "G_UNMERGE_VALUES expects at least 2 operands, has %d", n)
		return
	}
	for i, o := range mi.ops[:n-1] {
		if o.Kind != KindDef {
			fail(mi, "operand %d of G_UNMERGE_VALUES is %s, expects %s", i, o.Kind, KindDef)
			return
		}
	}
	if o := mi.ops[n-1]; o.Kind != KindUse {
		fail(mi, "operand %d of G_UNMERGE_VALUES is %s, expects %s", n-1, o.Kind, KindUse)
	}
	if mi.mem != nil {
		fail(mi, "G_UNMERGE_VALUES memory descriptor mismatch")
	}
}

func (f *Function) verifyTypes(mi *Instruction, fail func(*Instruction, string, ...any)) {
	ty := func(i int) Type { return f.RegType(mi.ops[i].Reg) }
	switch mi.op {
	case G_CONSTANT:
		if ty(0).IsVector() || mi.ops[1].Imm.Width() != ty(0).SizeInBits() {
			fail(mi, "constant immediate does not match %s", ty(0))
		}
	case COPY:
		if ty(0) != ty(1) {
			fail(mi, "copy between %s and %s", ty(0), ty(1))
		}
	case G_ADD, G_SUB, G_MUL, G_AND, G_OR, G_XOR, G_FADD, G_FSUB, G_FMUL:
		if ty(0) != ty(1) || ty(0) != ty(2) {
			fail(mi, "%s operand types %s, %s, %s disagree", mi.op, ty(0), ty(1), ty(2))
		}
	case G_SHL, G_LSHR, G_ASHR:
		if ty(0) != ty(1) {
			fail(mi, "%s result %s differs from source %s", mi.op, ty(0), ty(1))
		}
	case G_PTR_ADD:
		if !ty(0).ElementType().IsPointer() || ty(0) != ty(1) {
			fail(mi, "G_PTR_ADD needs pointer result and base")
		}
	case G_SEXT, G_ZEXT, G_ANYEXT:
		if ty(0).ScalarSizeInBits() <= ty(1).ScalarSizeInBits() || ty(0).NumElements() != ty(1).NumElements() {
			fail(mi, "%s from %s to %s does not widen", mi.op, ty(1), ty(0))
		}
	case G_TRUNC:
		if ty(0).ScalarSizeInBits() >= ty(1).ScalarSizeInBits() || ty(0).NumElements() != ty(1).NumElements() {
			fail(mi, "G_TRUNC from %s to %s does not narrow", ty(1), ty(0))
		}
	case G_ICMP, G_FCMP:
		if mi.op == G_ICMP && !mi.ops[1].Pred.IsIntPredicate() || mi.op == G_FCMP && !mi.ops[1].Pred.IsFPPredicate() {
			fail(mi, "%s with predicate %s", mi.op, mi.ops[1].Pred)
		}
	case G_MERGE_VALUES:
		var total uint
		for i := 1; i < len(mi.ops); i++ {
			if ty(i) != ty(1) {
				fail(mi, "G_MERGE_VALUES sources differ in type")
				return
			}
			total += ty(i).SizeInBits()
		}
		if total != ty(0).SizeInBits() {
			fail(mi, "G_MERGE_VALUES sources cover %d bits, result has %d", total, ty(0).SizeInBits())
		}
	case G_UNMERGE_VALUES:
		src := len(mi.ops) - 1
		var total uint
		for i := 0; i < src; i++ {
			if ty(i) != ty(0) {
				fail(mi, "G_UNMERGE_VALUES results differ in type")
				return
			}
			total += ty(i).SizeInBits()
		}
		if total != ty(src).SizeInBits() {
			fail(mi, "G_UNMERGE_VALUES results cover %d bits, source has %d", total, ty(src).SizeInBits())
		}
	case G_BUILD_VECTOR:
		if !ty(0).IsVector() || uint(len(mi.ops)-1) != ty(0).NumElements() {
			fail(mi, "G_BUILD_VECTOR lane count mismatch for %s", ty(0))
			return
		}
		for i := 1; i < len(mi.ops); i++ {
			if ty(i) != ty(0).ElementType() {
				fail(mi, "G_BUILD_VECTOR lane %d is %s, expects %s", i-1, ty(i), ty(0).ElementType())
			}
		}
	case G_EXTRACT_VECTOR_ELT:
		if !ty(1).IsVector() || ty(1).ElementType() != ty(0) {
			fail(mi, "G_EXTRACT_VECTOR_ELT of %s into %s", ty(1), ty(0))
		}
	case G_SHUFFLE_VECTOR:
		if ty(1) != ty(2) || uint(len(mi.ops[3].Mask)) != ty(0).NumElements() {
			fail(mi, "G_SHUFFLE_VECTOR mask or source mismatch")
		}
	case G_STORE:
		if !ty(1).IsPointer() {
			fail(mi, "G_STORE address is %s", ty(1))
		}
	case G_LOAD:
		if !ty(1).IsPointer() {
			fail(mi, "G_LOAD address is %s", ty(1))
		}
	}
}
