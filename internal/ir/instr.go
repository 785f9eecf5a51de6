package ir

import "fmt"

// InstrID identifies an Instruction within one Function. IDs are never
// reused, so a stale ID of an erased instruction stays detectable.
type InstrID int32

// NoInstr is the absent instruction.
const NoInstr InstrID = -1

// Instruction is one operation of a Function. Defined registers come first
// in the operand list, followed by sources and attributes.
//
// Instructions are owned by their Function; all mutation goes through the
// Function so the def-use index stays consistent.
type Instruction struct {
	id     InstrID
	op     Opcode
	ops    []Operand
	mem    *MemDesc
	erased bool
	prev   InstrID
	next   InstrID
}

// ID returns the stable identity of the instruction.
func (mi *Instruction) ID() InstrID { return mi.id }

// Opcode returns the operation.
func (mi *Instruction) Opcode() Opcode { return mi.op }

// Erased reports whether the instruction has been removed from its function.
func (mi *Instruction) Erased() bool { return mi.erased }

// NumOperands returns the operand count.
func (mi *Instruction) NumOperands() int { return len(mi.ops) }

// Operand returns operand i.
func (mi *Instruction) Operand(i int) Operand { return mi.ops[i] }

// Reg returns the register of operand i, or NoReg if it is not a register.
func (mi *Instruction) Reg(i int) Reg {
	if i < 0 || i >= len(mi.ops) || !mi.ops[i].IsReg() {
		return NoReg
	}
	return mi.ops[i].Reg
}

// NumDefs returns the number of leading defining operands.
func (mi *Instruction) NumDefs() int {
	n := 0
	for n < len(mi.ops) && mi.ops[n].Kind == KindDef {
		n++
	}
	return n
}

// Defs returns the defined registers.
func (mi *Instruction) Defs() []Reg {
	var out []Reg
	for _, o := range mi.ops {
		if o.Kind == KindDef {
			out = append(out, o.Reg)
		}
	}
	return out
}

// Uses returns the used registers in operand order, with repeats.
func (mi *Instruction) Uses() []Reg {
	var out []Reg
	for _, o := range mi.ops {
		if o.Kind == KindUse {
			out = append(out, o.Reg)
		}
	}
	return out
}

// Dst returns the first defined register.
func (mi *Instruction) Dst() Reg {
	if len(mi.ops) > 0 && mi.ops[0].Kind == KindDef {
		return mi.ops[0].Reg
	}
	return NoReg
}

// Mem returns the memory descriptor of a load or store.
func (mi *Instruction) Mem() (MemDesc, bool) {
	if mi.mem == nil {
		return MemDesc{}, false
	}
	return *mi.mem, true
}

func (mi *Instruction) String() string {
	return fmt.Sprintf("#%d %s", mi.id, mi.op)
}
