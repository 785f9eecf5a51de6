// Package interp evaluates functions over the scalar and vector integer
// subset of the instruction set, with a byte-addressed memory. It is the
// reference used to check that a rewrite preserved a function's meaning.
package interp

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/peephole/internal/apint"
	"github.com/roach88/peephole/internal/ir"
)

// Value is a register's contents: one lane for scalars and pointers, one
// per element for vectors.
type Value []apint.Int

// Scalar returns the single lane of v.
func (v Value) Scalar() apint.Int { return v[0] }

// Equal reports lane-wise equality.
func (v Value) Equal(w Value) bool {
	return slices.EqualFunc(v, w, func(a, b apint.Int) bool { return a.Eq(b) })
}

func (v Value) String() string {
	if len(v) == 1 {
		return v[0].String()
	}
	return fmt.Sprint([]apint.Int(v))
}

// UnsupportedError reports an instruction the evaluator does not model,
// such as floating-point arithmetic.
type UnsupportedError struct {
	Op ir.Opcode
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("interp: %s is not supported", e.Op)
}

// IsUnsupported reports whether err contains an UnsupportedError.
func IsUnsupported(err error) bool {
	var ue *UnsupportedError
	return errors.As(err, &ue)
}

// Result is the observable outcome of one evaluation.
type Result struct {
	Returns []Value
	Memory  map[uint64]byte
}

// Equal reports whether two evaluations are indistinguishable.
func (r Result) Equal(o Result) bool {
	return slices.EqualFunc(r.Returns, o.Returns, Value.Equal) && maps.Equal(r.Memory, o.Memory)
}

// Eval runs f with the given ARG values. args[i] feeds `ARG i`; it is
// sign-extended or truncated to the register's element width and splatted
// across vector lanes. Memory starts empty and unwritten bytes read as zero.
func Eval(f *ir.Function, args []apint.Int) (Result, error) {
	st := &state{f: f, regs: make(map[ir.Reg]Value), mem: make(map[uint64]byte)}
	for _, mi := range f.Instrs() {
		if mi.Opcode() == ir.RET {
			var out []Value
			for _, r := range mi.Uses() {
				v, err := st.get(r)
				if err != nil {
					return Result{}, err
				}
				out = append(out, v)
			}
			return Result{Returns: out, Memory: st.mem}, nil
		}
		if err := st.step(mi, args); err != nil {
			return Result{}, fmt.Errorf("%s: %w", ir.PrintInstr(f, mi), err)
		}
	}
	return Result{Memory: st.mem}, nil
}

type state struct {
	f    *ir.Function
	regs map[ir.Reg]Value
	mem  map[uint64]byte
}

func (s *state) get(r ir.Reg) (Value, error) {
	v, ok := s.regs[r]
	if !ok {
		return nil, fmt.Errorf("interp: %s read before it is defined", r)
	}
	return v, nil
}

func (s *state) step(mi *ir.Instruction, args []apint.Int) error {
	ops := make([]Value, 0, mi.NumOperands())
	for _, r := range mi.Uses() {
		v, err := s.get(r)
		if err != nil {
			return err
		}
		ops = append(ops, v)
	}
	var dstTy ir.Type
	if mi.NumDefs() > 0 {
		dstTy = s.f.RegType(mi.Dst())
	}
	width := dstTy.ScalarSizeInBits()
	lanes := func(fn func(i int) apint.Int) Value {
		out := make(Value, max(1, int(dstTy.NumElements())))
		for i := range out {
			out[i] = fn(i)
		}
		return out
	}
	set := func(v Value) error {
		s.regs[mi.Dst()] = v
		return nil
	}

	switch op := mi.Opcode(); op {
	case ir.ARG:
		n := mi.Operand(1).Imm.Uint64()
		if n >= uint64(len(args)) {
			return fmt.Errorf("interp: no value for ARG %d", n)
		}
		return set(lanes(func(int) apint.Int { return args[n].SextOrTrunc(width) }))
	case ir.COPY:
		return set(slices.Clone(ops[0]))
	case ir.G_IMPLICIT_DEF:
		return set(lanes(func(int) apint.Int { return apint.Zero(width) }))
	case ir.G_CONSTANT:
		return set(Value{mi.Operand(1).Imm.SextOrTrunc(width)})
	case ir.G_ADD, ir.G_SUB, ir.G_MUL, ir.G_AND, ir.G_OR, ir.G_XOR, ir.G_PTR_ADD:
		return set(lanes(func(i int) apint.Int { return binary(op, ops[0][i], ops[1][i]) }))
	case ir.G_SHL, ir.G_LSHR, ir.G_ASHR:
		var err error
		v := lanes(func(i int) apint.Int {
			amt := ops[1][i]
			if !amt.IsUint64() || amt.Uint64() >= uint64(width) {
				err = fmt.Errorf("interp: shift amount %s out of range for %d bits", amt.UnsignedString(), width)
				return apint.Zero(width)
			}
			return shift(op, ops[0][i], uint(amt.Uint64()))
		})
		if err != nil {
			return err
		}
		return set(v)
	case ir.G_SEXT:
		return set(lanes(func(i int) apint.Int { return ops[0][i].Sext(width) }))
	case ir.G_ZEXT, ir.G_ANYEXT:
		return set(lanes(func(i int) apint.Int { return ops[0][i].Zext(width) }))
	case ir.G_TRUNC:
		return set(lanes(func(i int) apint.Int { return ops[0][i].Trunc(width) }))
	case ir.G_SEXT_INREG:
		from := uint(mi.Operand(2).Imm.Uint64())
		return set(lanes(func(i int) apint.Int { return ops[0][i].Trunc(from).Sext(width) }))
	case ir.G_ICMP:
		pred := mi.Operand(1).Pred
		return set(lanes(func(i int) apint.Int {
			if compare(pred, ops[0][i], ops[1][i]) {
				return apint.New(width, 1)
			}
			return apint.Zero(width)
		}))
	case ir.G_MERGE_VALUES:
		acc := apint.Zero(width)
		piece := ops[0][0].Width()
		for i := len(ops) - 1; i >= 0; i-- {
			acc = acc.Shl(piece).Or(ops[i][0].Zext(width))
		}
		return set(Value{acc})
	case ir.G_UNMERGE_VALUES:
		src := ops[0][0]
		for i, r := range mi.Defs() {
			s.regs[r] = Value{src.LShr(uint(i) * width).Trunc(width)}
		}
		return nil
	case ir.G_BUILD_VECTOR:
		return set(lanes(func(i int) apint.Int { return ops[i][0] }))
	case ir.G_EXTRACT_VECTOR_ELT:
		idx := ops[1][0]
		if !idx.IsUint64() || idx.Uint64() >= uint64(len(ops[0])) {
			return fmt.Errorf("interp: lane %s out of range", idx.UnsignedString())
		}
		return set(Value{ops[0][idx.Uint64()]})
	case ir.G_SHUFFLE_VECTOR:
		mask := mi.Operand(3).Mask
		both := append(slices.Clone(ops[0]), ops[1]...)
		return set(lanes(func(i int) apint.Int {
			if mask[i] < 0 {
				return apint.Zero(width)
			}
			return both[mask[i]]
		}))
	case ir.G_LOAD:
		addr := ops[0][0].Uint64()
		return set(lanes(func(i int) apint.Int { return s.load(addr+uint64(i)*uint64(width/8), width) }))
	case ir.G_STORE:
		mem, _ := mi.Mem()
		addr := ops[1][0].Uint64()
		valTy := s.f.RegType(mi.Reg(0))
		elt := valTy.ScalarSizeInBits()
		var written uint64
		for i, lane := range ops[0] {
			for b := uint(0); b < elt/8 && written < mem.Size; b++ {
				s.mem[addr+uint64(i)*uint64(elt/8)+uint64(b)] = byte(lane.LShr(b * 8).Trunc(8).Uint64())
				written++
			}
		}
		return nil
	default:
		return &UnsupportedError{Op: op}
	}
}

func (s *state) load(addr uint64, width uint) apint.Int {
	acc := apint.Zero(width)
	for b := int(width/8) - 1; b >= 0; b-- {
		acc = acc.Shl(8).Or(apint.New(width, uint64(s.mem[addr+uint64(b)])))
	}
	return acc
}

func binary(op ir.Opcode, a, b apint.Int) apint.Int {
	switch op {
	case ir.G_ADD, ir.G_PTR_ADD:
		return a.Add(b)
	case ir.G_SUB:
		return a.Sub(b)
	case ir.G_MUL:
		return a.Mul(b)
	case ir.G_AND:
		return a.And(b)
	case ir.G_OR:
		return a.Or(b)
	default:
		return a.Xor(b)
	}
}

func shift(op ir.Opcode, a apint.Int, n uint) apint.Int {
	switch op {
	case ir.G_SHL:
		return a.Shl(n)
	case ir.G_LSHR:
		return a.LShr(n)
	default:
		return a.AShr(n)
	}
}

func compare(p ir.Predicate, a, b apint.Int) bool {
	switch p {
	case ir.ICMP_EQ:
		return a.Eq(b)
	case ir.ICMP_NE:
		return !a.Eq(b)
	case ir.ICMP_UGT:
		return b.Ult(a)
	case ir.ICMP_UGE:
		return !a.Ult(b)
	case ir.ICMP_ULT:
		return a.Ult(b)
	case ir.ICMP_ULE:
		return !b.Ult(a)
	case ir.ICMP_SGT:
		return b.Slt(a)
	case ir.ICMP_SGE:
		return !a.Slt(b)
	case ir.ICMP_SLT:
		return a.Slt(b)
	default:
		return !b.Slt(a)
	}
}
