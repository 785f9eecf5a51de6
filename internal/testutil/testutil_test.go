package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/peephole/internal/ir"
)

const addSrc = `func @add legalized {
  %0:s32 = ARG 0
  %1:s32 = ARG 1
  %2:s32 = G_ADD %0, %1
  RET %2
}`

// TestFixedRunID_Stable tests that the ID never changes.
func TestFixedRunID_Stable(t *testing.T) {
	gen := FixedRunID("scenario-1")
	for i := 0; i < 3; i++ {
		assert.Equal(t, "scenario-1", gen.Generate())
	}
	assert.Equal(t, "test-run", FixedRunID("").Generate())
}

// TestRecorder_Sequence tests the recorded line format and Reset.
func TestRecorder_Sequence(t *testing.T) {
	f := Parse(t, addSrc)
	rec := NewRecorder()
	f.SetObserver(rec)

	add := f.Instrs()[2]
	f.Mutate(add, func() { f.SwapOperands(add, 1, 2) })
	f.Erase(add)

	assert.Equal(t, []string{"1 changing G_ADD", "2 changed G_ADD", "3 erasing G_ADD"}, rec.Lines())

	rec.Reset()
	assert.Empty(t, rec.Lines())
	f.Erase(f.Instrs()[0])
	assert.Equal(t, []string{"1 erasing ARG"}, rec.Lines())
}

// TestRecorder_Concurrent tests that concurrent notifications all land.
func TestRecorder_Concurrent(t *testing.T) {
	f := Parse(t, addSrc)
	mi := f.Instrs()[0]
	rec := NewRecorder()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec.CreatedInstr(mi)
		}()
	}
	wg.Wait()
	assert.Len(t, rec.Lines(), 50)
}

// TestOpcodes_ProgramOrder tests Opcodes.
func TestOpcodes_ProgramOrder(t *testing.T) {
	f := ir.MustParse(addSrc)
	assert.Equal(t, []string{"ARG", "ARG", "G_ADD", "RET"}, Opcodes(f))
}
