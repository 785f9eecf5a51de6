package ir

import (
	"fmt"
	"slices"

	"github.com/roach88/peephole/internal/apint"
)

// Reg identifies a virtual register within one Function.
type Reg int32

// NoReg is the absent register.
const NoReg Reg = -1

func (r Reg) String() string { return fmt.Sprintf("%%%d", int32(r)) }

// OperandKind tags an Operand.
type OperandKind uint8

const (
	KindDef OperandKind = iota + 1
	KindUse
	KindImm
	KindFPImm
	KindPred
	KindMask
)

func (k OperandKind) String() string {
	switch k {
	case KindDef:
		return "def"
	case KindUse:
		return "use"
	case KindImm:
		return "imm"
	case KindFPImm:
		return "fpimm"
	case KindPred:
		return "pred"
	case KindMask:
		return "mask"
	}
	return "invalid"
}

// Operand is one slot of an Instruction. Only the fields selected by Kind
// are meaningful.
type Operand struct {
	Kind OperandKind
	Reg  Reg
	Imm  apint.Int
	FImm float64
	Pred Predicate
	Mask []int
}

// DefOp returns a defining operand.
func DefOp(r Reg) Operand { return Operand{Kind: KindDef, Reg: r} }

// UseOp returns a using operand.
func UseOp(r Reg) Operand { return Operand{Kind: KindUse, Reg: r} }

// ImmOp returns an integer immediate.
func ImmOp(v apint.Int) Operand { return Operand{Kind: KindImm, Imm: v} }

// IntOp returns a 64-bit integer immediate.
func IntOp(v int64) Operand { return ImmOp(apint.FromInt64(64, v)) }

// FPImmOp returns a floating-point immediate.
func FPImmOp(v float64) Operand { return Operand{Kind: KindFPImm, FImm: v} }

// PredOp returns a comparison predicate operand.
func PredOp(p Predicate) Operand { return Operand{Kind: KindPred, Pred: p} }

// MaskOp returns a shuffle mask operand. Negative entries are undefined lanes.
func MaskOp(m []int) Operand { return Operand{Kind: KindMask, Mask: slices.Clone(m)} }

// IsReg reports whether the operand names a register.
func (o Operand) IsReg() bool { return o.Kind == KindDef || o.Kind == KindUse }

// Predicate is an integer or floating-point comparison predicate.
type Predicate uint8

const (
	PredInvalid Predicate = iota

	FCMP_FALSE
	FCMP_OEQ
	FCMP_OGT
	FCMP_OGE
	FCMP_OLT
	FCMP_OLE
	FCMP_ONE
	FCMP_ORD
	FCMP_UNO
	FCMP_UEQ
	FCMP_UGT
	FCMP_UGE
	FCMP_ULT
	FCMP_ULE
	FCMP_UNE
	FCMP_TRUE

	ICMP_EQ
	ICMP_NE
	ICMP_UGT
	ICMP_UGE
	ICMP_ULT
	ICMP_ULE
	ICMP_SGT
	ICMP_SGE
	ICMP_SLT
	ICMP_SLE

	numPredicates
)

var predicateNames = [numPredicates]string{
	FCMP_FALSE: "false", FCMP_OEQ: "oeq", FCMP_OGT: "ogt", FCMP_OGE: "oge",
	FCMP_OLT: "olt", FCMP_OLE: "ole", FCMP_ONE: "one", FCMP_ORD: "ord",
	FCMP_UNO: "uno", FCMP_UEQ: "ueq", FCMP_UGT: "ugt", FCMP_UGE: "uge",
	FCMP_ULT: "ult", FCMP_ULE: "ule", FCMP_UNE: "une", FCMP_TRUE: "true",
	ICMP_EQ: "eq", ICMP_NE: "ne", ICMP_UGT: "ugt", ICMP_UGE: "uge",
	ICMP_ULT: "ult", ICMP_ULE: "ule", ICMP_SGT: "sgt", ICMP_SGE: "sge",
	ICMP_SLT: "slt", ICMP_SLE: "sle",
}

// IsIntPredicate reports whether p belongs to G_ICMP.
func (p Predicate) IsIntPredicate() bool { return p >= ICMP_EQ && p < numPredicates }

// IsFPPredicate reports whether p belongs to G_FCMP.
func (p Predicate) IsFPPredicate() bool { return p >= FCMP_FALSE && p <= FCMP_TRUE }

func (p Predicate) String() string {
	switch {
	case p.IsIntPredicate():
		return "intpred(" + predicateNames[p] + ")"
	case p.IsFPPredicate():
		return "floatpred(" + predicateNames[p] + ")"
	}
	return "pred(invalid)"
}

// ParsePredicate resolves a predicate name within the int or float family.
func ParsePredicate(name string, integer bool) (Predicate, bool) {
	lo, hi := FCMP_FALSE, FCMP_TRUE
	if integer {
		lo, hi = ICMP_EQ, ICMP_SLE
	}
	for p := lo; p <= hi; p++ {
		if predicateNames[p] == name {
			return p, true
		}
	}
	return PredInvalid, false
}

// Ordering is the atomic ordering of a memory access.
type Ordering uint8

const (
	NotAtomic Ordering = iota
	Unordered
	Monotonic
	Acquire
	Release
	AcquireRelease
	SequentiallyConsistent
)

var orderingNames = []string{"", "unordered", "monotonic", "acquire", "release", "acq_rel", "seq_cst"}

func (o Ordering) String() string {
	if int(o) < len(orderingNames) {
		return orderingNames[o]
	}
	return "invalid"
}

func parseOrdering(s string) (Ordering, bool) {
	for i, name := range orderingNames {
		if i > 0 && name == s {
			return Ordering(i), true
		}
	}
	return NotAtomic, false
}

// MemKind says whether a memory descriptor describes a load or a store.
type MemKind uint8

const (
	MemLoad MemKind = iota + 1
	MemStore
)

func (k MemKind) String() string {
	if k == MemStore {
		return "store"
	}
	return "load"
}

// MemDesc describes the memory access of a load or store.
type MemDesc struct {
	Kind     MemKind
	Size     uint64 // bytes
	Align    uint64 // known alignment of the accessed address, a power of two
	Offset   int64  // byte offset of the access within the underlying object
	Ordering Ordering
	Volatile bool
}

// IsAtomic reports whether the access has an atomic ordering.
func (m MemDesc) IsAtomic() bool { return m.Ordering != NotAtomic }

// IsSimple reports whether the access is neither atomic nor volatile.
func (m MemDesc) IsSimple() bool { return !m.IsAtomic() && !m.Volatile }

// SizeInBits returns the access width in bits.
func (m MemDesc) SizeInBits() uint64 { return m.Size * 8 }

// Split derives the descriptor for a size-byte piece of the access at
// offset bytes from its start. The piece keeps the ordering and volatility;
// its alignment is the largest power of two dividing both the original
// alignment and offset.
func (m MemDesc) Split(offset int64, size uint64) MemDesc {
	out := m
	out.Size = size
	out.Offset = m.Offset + offset
	out.Align = commonAlign(m.Align, offset)
	return out
}

func commonAlign(align uint64, offset int64) uint64 {
	if align == 0 {
		align = 1
	}
	if offset == 0 {
		return align
	}
	off := uint64(offset)
	if offset < 0 {
		off = uint64(-offset)
	}
	lowest := off & -off
	return min(align, lowest)
}

func (m MemDesc) String() string {
	s := "("
	if m.Volatile {
		s += "volatile "
	}
	if m.IsAtomic() {
		s += m.Ordering.String() + " "
	}
	s += fmt.Sprintf("%s %d align %d", m.Kind, m.Size, m.Align)
	if m.Offset != 0 {
		s += fmt.Sprintf(" offset %d", m.Offset)
	}
	return s + ")"
}
