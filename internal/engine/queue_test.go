package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/peephole/internal/ir"
)

// TestWorklist_SeedPopsInProgramOrder tests the seeding order.
func TestWorklist_SeedPopsInProgramOrder(t *testing.T) {
	f := ir.MustParse(`func @f legalized {
  %0:s32 = ARG 0
  %1:s32 = G_CONSTANT 1
  %2:s32 = G_ADD %0, %1
  RET %2
}`)
	w := newWorklist()
	w.seed(f)
	assert.Equal(t, 4, w.len())

	var got []ir.InstrID
	for {
		id, ok := w.pop()
		if !ok {
			break
		}
		got = append(got, id)
	}
	assert.Equal(t, []ir.InstrID{0, 1, 2, 3}, got)
}

// TestWorklist_PushDeduplicates tests that a queued entry keeps its place.
func TestWorklist_PushDeduplicates(t *testing.T) {
	w := newWorklist()
	w.push(1)
	w.push(2)
	w.push(1)
	assert.Equal(t, 2, w.len())

	id, _ := w.pop()
	assert.Equal(t, ir.InstrID(2), id)
	id, _ = w.pop()
	assert.Equal(t, ir.InstrID(1), id)

	// Popped entries may be pushed again.
	w.push(1)
	id, ok := w.pop()
	assert.True(t, ok)
	assert.Equal(t, ir.InstrID(1), id)

	_, ok = w.pop()
	assert.False(t, ok)
}
