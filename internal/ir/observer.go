package ir

// Observer is notified of every change to a Function's instructions.
//
// ErasingInstr fires before the instruction is unlinked, so observers may
// still inspect its operands. ChangingInstr and ChangedInstr bracket any
// in-place mutation.
type Observer interface {
	CreatedInstr(mi *Instruction)
	ErasingInstr(mi *Instruction)
	ChangingInstr(mi *Instruction)
	ChangedInstr(mi *Instruction)
}

type nopObserver struct{}

func (nopObserver) CreatedInstr(*Instruction)  {}
func (nopObserver) ErasingInstr(*Instruction)  {}
func (nopObserver) ChangingInstr(*Instruction) {}
func (nopObserver) ChangedInstr(*Instruction)  {}
