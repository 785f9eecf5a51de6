package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/peephole/internal/ir"
)

// Recorder is an ir.Observer that keeps one line per notification, for
// asserting on the exact sequence a rewrite produces.
//
// Lines look like "3 created G_SHL": a logical sequence number starting
// at 1, the notification kind and the opcode.
//
// Thread-safety: all methods are safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	seq   int64
	lines []string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) record(kind string, mi *ir.Instruction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.lines = append(r.lines, fmt.Sprintf("%d %s %s", r.seq, kind, mi.Opcode()))
}

func (r *Recorder) CreatedInstr(mi *ir.Instruction)  { r.record("created", mi) }
func (r *Recorder) ErasingInstr(mi *ir.Instruction)  { r.record("erasing", mi) }
func (r *Recorder) ChangingInstr(mi *ir.Instruction) { r.record("changing", mi) }
func (r *Recorder) ChangedInstr(mi *ir.Instruction)  { r.record("changed", mi) }

// Lines returns a copy of the recorded lines.
func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}

// Reset forgets every line. After Reset the next sequence number is 1.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq = 0
	r.lines = nil
}
