package ir

import (
	"fmt"
	"slices"
)

// Props are the function-level properties set by earlier pipeline stages.
type Props struct {
	Legalized  bool
	FailedISel bool
	OptNone    bool
	OptSize    bool
	MinSize    bool
}

type regInfo struct {
	ty   Type
	def  InstrID
	uses []InstrID // one entry per use operand
}

// Function is a single-definition instruction graph: an arena of
// instructions in program order plus the def-use index over its registers.
//
// Every mutation keeps the index consistent and is reported to the
// installed Observer. A Function is not safe for concurrent use.
type Function struct {
	Name  string
	Props Props

	instrs   []*Instruction
	regs     []regInfo
	first    InstrID
	last     InstrID
	live     int
	observer Observer
}

// NewFunction returns an empty function.
func NewFunction(name string) *Function {
	return &Function{
		Name:     name,
		first:    NoInstr,
		last:     NoInstr,
		observer: nopObserver{},
	}
}

// SetObserver installs o and returns the previous observer. A nil o
// removes observation.
func (f *Function) SetObserver(o Observer) Observer {
	prev := f.observer
	if o == nil {
		o = nopObserver{}
	}
	f.observer = o
	if _, ok := prev.(nopObserver); ok {
		return nil
	}
	return prev
}

// NewReg allocates a register of type ty.
func (f *Function) NewReg(ty Type) Reg {
	f.regs = append(f.regs, regInfo{ty: ty, def: NoInstr})
	return Reg(len(f.regs) - 1)
}

// DeclareReg makes register r exist with type ty. Registers between the
// current end of the arena and r are created without a type.
func (f *Function) DeclareReg(r Reg, ty Type) error {
	if r < 0 {
		return fmt.Errorf("invalid register %s", r)
	}
	for Reg(len(f.regs)) <= r {
		f.regs = append(f.regs, regInfo{def: NoInstr})
	}
	info := &f.regs[r]
	if info.ty.IsValid() && info.ty != ty {
		return fmt.Errorf("register %s redeclared as %s (was %s)", r, ty, info.ty)
	}
	info.ty = ty
	return nil
}

// NumRegs returns the size of the register arena.
func (f *Function) NumRegs() int { return len(f.regs) }

func (f *Function) validReg(r Reg) bool { return r >= 0 && int(r) < len(f.regs) }

// RegType returns the type of r.
func (f *Function) RegType(r Reg) Type {
	if !f.validReg(r) {
		return Type{}
	}
	return f.regs[r].ty
}

// Def returns the instruction defining r, or nil.
func (f *Function) Def(r Reg) *Instruction {
	if !f.validReg(r) || f.regs[r].def == NoInstr {
		return nil
	}
	return f.instrs[f.regs[r].def]
}

// Uses returns the distinct instructions reading r, in the order the uses
// were added.
func (f *Function) Uses(r Reg) []*Instruction {
	if !f.validReg(r) {
		return nil
	}
	var out []*Instruction
	seen := make(map[InstrID]bool, len(f.regs[r].uses))
	for _, id := range f.regs[r].uses {
		if !seen[id] {
			seen[id] = true
			out = append(out, f.instrs[id])
		}
	}
	return out
}

// UseCount returns the number of operands reading r.
func (f *Function) UseCount(r Reg) int {
	if !f.validReg(r) {
		return 0
	}
	return len(f.regs[r].uses)
}

// HasOneUse reports whether exactly one operand reads r.
func (f *Function) HasOneUse(r Reg) bool { return f.UseCount(r) == 1 }

// SingleUser returns the only instruction reading r through exactly one
// operand, or nil.
func (f *Function) SingleUser(r Reg) *Instruction {
	if !f.HasOneUse(r) {
		return nil
	}
	return f.instrs[f.regs[r].uses[0]]
}

// Instr returns the live instruction with the given ID, or nil.
func (f *Function) Instr(id InstrID) *Instruction {
	if id < 0 || int(id) >= len(f.instrs) || f.instrs[id].erased {
		return nil
	}
	return f.instrs[id]
}

// Live reports whether id names an instruction that has not been erased.
func (f *Function) Live(id InstrID) bool { return f.Instr(id) != nil }

// NumInstrs returns the number of live instructions.
func (f *Function) NumInstrs() int { return f.live }

// First returns the first instruction in program order, or nil.
func (f *Function) First() *Instruction { return f.Instr(f.first) }

// Next returns the instruction after mi in program order, or nil.
func (f *Function) Next(mi *Instruction) *Instruction { return f.Instr(mi.next) }

// Instrs returns the live instructions in program order.
func (f *Function) Instrs() []*Instruction {
	out := make([]*Instruction, 0, f.live)
	for mi := f.First(); mi != nil; mi = f.Next(mi) {
		out = append(out, mi)
	}
	return out
}

// Append adds a new instruction at the end of the function.
func (f *Function) Append(op Opcode, ops []Operand, mem *MemDesc) *Instruction {
	return f.Insert(nil, op, ops, mem)
}

// Insert adds a new instruction immediately before before, or at the end
// when before is nil. The instruction's defs take ownership of their
// registers.
func (f *Function) Insert(before *Instruction, op Opcode, ops []Operand, mem *MemDesc) *Instruction {
	mi := &Instruction{
		id:   InstrID(len(f.instrs)),
		op:   op,
		ops:  slices.Clone(ops),
		prev: NoInstr,
		next: NoInstr,
	}
	if mem != nil {
		m := *mem
		mi.mem = &m
	}
	f.instrs = append(f.instrs, mi)
	f.live++
	f.link(mi, before)

	for _, o := range mi.ops {
		switch o.Kind {
		case KindDef:
			f.ensureReg(o.Reg)
			f.regs[o.Reg].def = mi.id
		case KindUse:
			f.ensureReg(o.Reg)
			f.regs[o.Reg].uses = append(f.regs[o.Reg].uses, mi.id)
		}
	}

	f.observer.CreatedInstr(mi)
	return mi
}

func (f *Function) ensureReg(r Reg) {
	for Reg(len(f.regs)) <= r {
		f.regs = append(f.regs, regInfo{def: NoInstr})
	}
}

func (f *Function) link(mi, before *Instruction) {
	if before == nil {
		mi.prev = f.last
		if f.last != NoInstr {
			f.instrs[f.last].next = mi.id
		} else {
			f.first = mi.id
		}
		f.last = mi.id
		return
	}
	mi.next = before.id
	mi.prev = before.prev
	if before.prev != NoInstr {
		f.instrs[before.prev].next = mi.id
	} else {
		f.first = mi.id
	}
	before.prev = mi.id
}

func (f *Function) unlink(mi *Instruction) {
	if mi.prev != NoInstr {
		f.instrs[mi.prev].next = mi.next
	} else {
		f.first = mi.next
	}
	if mi.next != NoInstr {
		f.instrs[mi.next].prev = mi.prev
	} else {
		f.last = mi.prev
	}
	mi.prev, mi.next = NoInstr, NoInstr
}

// Erase removes mi from the function. Registers it defined lose their
// definition unless another instruction has taken it over; registers it
// read lose one use per operand.
func (f *Function) Erase(mi *Instruction) {
	if mi.erased {
		return
	}
	f.observer.ErasingInstr(mi)
	for _, o := range mi.ops {
		switch o.Kind {
		case KindDef:
			if f.regs[o.Reg].def == mi.id {
				f.regs[o.Reg].def = NoInstr
			}
		case KindUse:
			f.dropUse(o.Reg, mi.id)
		}
	}
	f.unlink(mi)
	mi.erased = true
	f.live--
}

func (f *Function) dropUse(r Reg, id InstrID) {
	uses := f.regs[r].uses
	if i := slices.Index(uses, id); i >= 0 {
		f.regs[r].uses = slices.Delete(uses, i, i+1)
	}
}

// Mutate runs fn between ChangingInstr and ChangedInstr notifications for
// mi. In-place edits (SetOpcode, RemoveOperand, SetUse, SwapOperands) must
// happen inside fn.
func (f *Function) Mutate(mi *Instruction, fn func()) {
	f.observer.ChangingInstr(mi)
	fn()
	f.observer.ChangedInstr(mi)
}

// SetOpcode changes the operation of mi in place.
func (f *Function) SetOpcode(mi *Instruction, op Opcode) { mi.op = op }

// RemoveOperand deletes operand i of mi.
func (f *Function) RemoveOperand(mi *Instruction, i int) {
	o := mi.ops[i]
	switch o.Kind {
	case KindDef:
		if f.regs[o.Reg].def == mi.id {
			f.regs[o.Reg].def = NoInstr
		}
	case KindUse:
		f.dropUse(o.Reg, mi.id)
	}
	mi.ops = slices.Delete(mi.ops, i, i+1)
}

// SetUse points use operand i of mi at r.
func (f *Function) SetUse(mi *Instruction, i int, r Reg) {
	o := &mi.ops[i]
	if o.Kind != KindUse {
		panic(fmt.Sprintf("ir: operand %d of %s is not a use", i, mi))
	}
	if o.Reg == r {
		return
	}
	f.dropUse(o.Reg, mi.id)
	f.ensureReg(r)
	f.regs[r].uses = append(f.regs[r].uses, mi.id)
	o.Reg = r
}

// SwapOperands exchanges operands i and j of mi.
func (f *Function) SwapOperands(mi *Instruction, i, j int) {
	mi.ops[i], mi.ops[j] = mi.ops[j], mi.ops[i]
}

// ReplaceAllUses redirects every read of from to to. Each affected
// instruction is reported as changed.
func (f *Function) ReplaceAllUses(from, to Reg) {
	if from == to {
		return
	}
	for _, user := range f.Uses(from) {
		f.Mutate(user, func() {
			for i, o := range user.ops {
				if o.Kind == KindUse && o.Reg == from {
					f.SetUse(user, i, to)
				}
			}
		})
	}
}

// Clone returns a deep copy with no observer installed.
func (f *Function) Clone() *Function {
	g := &Function{
		Name:     f.Name,
		Props:    f.Props,
		instrs:   make([]*Instruction, len(f.instrs)),
		regs:     make([]regInfo, len(f.regs)),
		first:    f.first,
		last:     f.last,
		live:     f.live,
		observer: nopObserver{},
	}
	for i, mi := range f.instrs {
		c := *mi
		c.ops = make([]Operand, len(mi.ops))
		for j, o := range mi.ops {
			o.Mask = slices.Clone(o.Mask)
			c.ops[j] = o
		}
		if mi.mem != nil {
			m := *mi.mem
			c.mem = &m
		}
		g.instrs[i] = &c
	}
	for i, r := range f.regs {
		r.uses = slices.Clone(r.uses)
		g.regs[i] = r
	}
	return g
}
