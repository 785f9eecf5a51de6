package engine

import (
	"slices"

	"github.com/roach88/peephole/internal/ir"
)

// ObserverMux fans one function's change notifications out to several
// observers in registration order.
type ObserverMux struct {
	observers []ir.Observer
}

// NewObserverMux returns a mux over the non-nil observers in obs.
func NewObserverMux(obs ...ir.Observer) *ObserverMux {
	m := &ObserverMux{}
	for _, o := range obs {
		m.Add(o)
	}
	return m
}

// Add appends o. A nil o is ignored.
func (m *ObserverMux) Add(o ir.Observer) {
	if o != nil {
		m.observers = append(m.observers, o)
	}
}

// Len returns the number of attached observers.
func (m *ObserverMux) Len() int { return len(m.observers) }

func (m *ObserverMux) CreatedInstr(mi *ir.Instruction) {
	for _, o := range m.observers {
		o.CreatedInstr(mi)
	}
}

func (m *ObserverMux) ErasingInstr(mi *ir.Instruction) {
	for _, o := range m.observers {
		o.ErasingInstr(mi)
	}
}

func (m *ObserverMux) ChangingInstr(mi *ir.Instruction) {
	for _, o := range m.observers {
		o.ChangingInstr(mi)
	}
}

func (m *ObserverMux) ChangedInstr(mi *ir.Instruction) {
	for _, o := range m.observers {
		o.ChangedInstr(mi)
	}
}

var _ ir.Observer = (*ObserverMux)(nil)

// tracker records what one step touched so the driver can requeue it.
type tracker struct {
	instrs map[ir.InstrID]bool // created or changed
	regs   map[ir.Reg]bool
}

func newTracker() *tracker {
	return &tracker{
		instrs: make(map[ir.InstrID]bool),
		regs:   make(map[ir.Reg]bool),
	}
}

func (t *tracker) reset() {
	clear(t.instrs)
	clear(t.regs)
}

func (t *tracker) touchRegs(regs []ir.Reg) {
	for _, r := range regs {
		t.regs[r] = true
	}
}

func (t *tracker) CreatedInstr(mi *ir.Instruction) {
	t.instrs[mi.ID()] = true
	t.touchRegs(mi.Defs())
	t.touchRegs(mi.Uses())
}

// ErasingInstr touches the operands so their definers are revisited; they
// may have just become dead.
func (t *tracker) ErasingInstr(mi *ir.Instruction) {
	t.touchRegs(mi.Uses())
}

func (t *tracker) ChangingInstr(mi *ir.Instruction) {
	t.touchRegs(mi.Uses())
}

func (t *tracker) ChangedInstr(mi *ir.Instruction) {
	t.instrs[mi.ID()] = true
	t.touchRegs(mi.Defs())
	t.touchRegs(mi.Uses())
}

// requeue pushes the touched instructions and the definers and users of
// the touched registers. IDs go on in descending order so the oldest
// instruction pops first.
func (t *tracker) requeue(f *ir.Function, w *worklist) {
	ids := make(map[ir.InstrID]bool, len(t.instrs))
	for id := range t.instrs {
		ids[id] = true
	}
	for r := range t.regs {
		if def := f.Def(r); def != nil {
			ids[def.ID()] = true
		}
		for _, user := range f.Uses(r) {
			ids[user.ID()] = true
		}
	}
	ordered := make([]ir.InstrID, 0, len(ids))
	for id := range ids {
		if f.Live(id) {
			ordered = append(ordered, id)
		}
	}
	slices.Sort(ordered)
	slices.Reverse(ordered)
	for _, id := range ordered {
		w.push(id)
	}
}

// changed returns the live instructions created or changed this step, in
// ID order.
func (t *tracker) changed(f *ir.Function) []*ir.Instruction {
	var out []*ir.Instruction
	for id := range t.instrs {
		if mi := f.Instr(id); mi != nil {
			out = append(out, mi)
		}
	}
	slices.SortFunc(out, func(a, b *ir.Instruction) int { return int(a.ID()) - int(b.ID()) })
	return out
}

var _ ir.Observer = (*tracker)(nil)

// EventKind names a graph change notification.
type EventKind string

const (
	EventCreated  EventKind = "created"
	EventErasing  EventKind = "erasing"
	EventChanging EventKind = "changing"
	EventChanged  EventKind = "changed"
)

// Event is one recorded change notification.
type Event struct {
	Seq    int64      `json:"seq"`
	Kind   EventKind  `json:"kind"`
	Instr  ir.InstrID `json:"instr"`
	Text   string     `json:"text"`
	RuleID string     `json:"rule_id,omitempty"` // empty for dead-code erasure
}

// eventLog stamps every notification with the clock and the rule being
// applied.
type eventLog struct {
	f      *ir.Function
	clock  *Clock
	rule   string
	events []Event
}

func (l *eventLog) record(kind EventKind, mi *ir.Instruction) {
	l.events = append(l.events, Event{
		Seq:    l.clock.Next(),
		Kind:   kind,
		Instr:  mi.ID(),
		Text:   ir.PrintInstr(l.f, mi),
		RuleID: l.rule,
	})
}

func (l *eventLog) CreatedInstr(mi *ir.Instruction)  { l.record(EventCreated, mi) }
func (l *eventLog) ErasingInstr(mi *ir.Instruction)  { l.record(EventErasing, mi) }
func (l *eventLog) ChangingInstr(mi *ir.Instruction) { l.record(EventChanging, mi) }
func (l *eventLog) ChangedInstr(mi *ir.Instruction)  { l.record(EventChanged, mi) }

var _ ir.Observer = (*eventLog)(nil)
