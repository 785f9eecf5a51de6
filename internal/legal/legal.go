// Package legal describes which opcode and type combinations a target can
// emit directly, and checks functions against that set.
package legal

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/peephole/internal/ir"
)

// Sig is the list of types at an opcode's type indices.
type Sig []ir.Type

func (s Sig) String() string {
	parts := make([]string, len(s))
	for i, t := range s {
		parts[i] = t.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Table is a target's legal-operation set. It is read-only once built and
// safe to share between goroutines.
type Table struct {
	Name   string
	always map[ir.Opcode]bool
	sigs   map[ir.Opcode][]Sig
}

// NewTable returns an empty table. ARG, RET and COPY are always legal.
func NewTable(name string) *Table {
	return &Table{
		Name:   name,
		always: map[ir.Opcode]bool{ir.ARG: true, ir.RET: true, ir.COPY: true},
		sigs:   make(map[ir.Opcode][]Sig),
	}
}

// Legal adds signatures for op.
func (t *Table) Legal(op ir.Opcode, sigs ...Sig) *Table {
	for _, s := range sigs {
		if !slices.ContainsFunc(t.sigs[op], func(x Sig) bool { return slices.Equal(x, s) }) {
			t.sigs[op] = append(t.sigs[op], s)
		}
	}
	return t
}

// AlwaysLegal marks op legal for every type.
func (t *Table) AlwaysLegal(op ir.Opcode) *Table {
	t.always[op] = true
	return t
}

// Opcodes returns the opcodes with any legal form, in enum order.
func (t *Table) Opcodes() []ir.Opcode {
	var out []ir.Opcode
	for _, op := range ir.Opcodes() {
		if t.always[op] || len(t.sigs[op]) > 0 {
			out = append(out, op)
		}
	}
	return out
}

// Sigs returns the signatures registered for op.
func (t *Table) Sigs(op ir.Opcode) []Sig { return t.sigs[op] }

// Allows reports whether op is legal with the given type indices.
func (t *Table) Allows(op ir.Opcode, types ...ir.Type) bool {
	if t.always[op] {
		return true
	}
	return slices.ContainsFunc(t.sigs[op], func(s Sig) bool { return slices.Equal(s, Sig(types)) })
}

// TypesOf returns the type indices of mi used for legality lookup.
//
//	type0  the result, or the stored value for G_STORE
//	type1  the second varying type: shift amount, extension source,
//	       address, vector operand, merge piece
//	type2  the index type of G_EXTRACT_VECTOR_ELT
func TypesOf(f *ir.Function, mi *ir.Instruction) Sig {
	ty := func(i int) ir.Type { return f.RegType(mi.Reg(i)) }
	switch mi.Opcode() {
	case ir.ARG, ir.RET, ir.COPY:
		return nil
	case ir.G_CONSTANT, ir.G_FCONSTANT, ir.G_IMPLICIT_DEF, ir.G_SEXT_INREG,
		ir.G_ADD, ir.G_SUB, ir.G_MUL, ir.G_AND, ir.G_OR, ir.G_XOR,
		ir.G_FADD, ir.G_FSUB, ir.G_FMUL:
		return Sig{ty(0)}
	case ir.G_SHL, ir.G_LSHR, ir.G_ASHR, ir.G_PTR_ADD:
		return Sig{ty(0), ty(2)}
	case ir.G_SEXT, ir.G_ZEXT, ir.G_ANYEXT, ir.G_TRUNC,
		ir.G_MERGE_VALUES, ir.G_BUILD_VECTOR, ir.G_SHUFFLE_VECTOR:
		return Sig{ty(0), ty(1)}
	case ir.G_ICMP, ir.G_FCMP:
		return Sig{ty(0), ty(2)}
	case ir.G_UNMERGE_VALUES:
		return Sig{ty(0), ty(mi.NumOperands() - 1)}
	case ir.G_EXTRACT_VECTOR_ELT:
		return Sig{ty(0), ty(1), ty(2)}
	case ir.G_LOAD, ir.G_STORE:
		return Sig{ty(0), ty(1)}
	}
	return nil
}

// IllegalInstrError reports an instruction outside the legal set.
type IllegalInstrError struct {
	Instr ir.InstrID
	Text  string
	Types Sig
}

func (e *IllegalInstrError) Error() string {
	return fmt.Sprintf("instruction #%d is not legal: %s (types %s)", e.Instr, e.Text, e.Types)
}

// IsIllegalInstr reports whether err contains an IllegalInstrError.
func IsIllegalInstr(err error) bool {
	var ie *IllegalInstrError
	return errors.As(err, &ie)
}

// Check returns an IllegalInstrError when mi is outside the set.
func (t *Table) Check(f *ir.Function, mi *ir.Instruction) error {
	types := TypesOf(f, mi)
	if t.Allows(mi.Opcode(), types...) {
		return nil
	}
	return &IllegalInstrError{Instr: mi.ID(), Text: ir.PrintInstr(f, mi), Types: types}
}

// Verify checks every instruction of f, returning the first violation.
func (t *Table) Verify(f *ir.Function) error {
	for _, mi := range f.Instrs() {
		if err := t.Check(f, mi); err != nil {
			return err
		}
	}
	return nil
}
