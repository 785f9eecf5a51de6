package engine

import (
	"github.com/roach88/peephole/internal/ir"
)

// worklist is the LIFO of instructions awaiting a combine attempt.
//
// Membership is deduplicated: pushing an instruction already on the list
// leaves it where it is. Erased instructions are not removed eagerly; the
// driver skips them when they are popped.
type worklist struct {
	items []ir.InstrID
	in    map[ir.InstrID]bool
}

func newWorklist() *worklist {
	return &worklist{in: make(map[ir.InstrID]bool)}
}

// seed pushes every instruction of f in reverse program order, so they pop
// in program order.
func (w *worklist) seed(f *ir.Function) {
	instrs := f.Instrs()
	for i := len(instrs) - 1; i >= 0; i-- {
		w.push(instrs[i].ID())
	}
}

func (w *worklist) push(id ir.InstrID) {
	if w.in[id] {
		return
	}
	w.in[id] = true
	w.items = append(w.items, id)
}

func (w *worklist) pop() (ir.InstrID, bool) {
	if len(w.items) == 0 {
		return ir.NoInstr, false
	}
	id := w.items[len(w.items)-1]
	w.items = w.items[:len(w.items)-1]
	delete(w.in, id)
	return id, true
}

func (w *worklist) len() int { return len(w.items) }
