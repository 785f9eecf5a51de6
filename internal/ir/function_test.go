package ir

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type eventLog struct{ events []string }

func (l *eventLog) CreatedInstr(mi *Instruction)  { l.add("create", mi) }
func (l *eventLog) ErasingInstr(mi *Instruction)  { l.add("erase", mi) }
func (l *eventLog) ChangingInstr(mi *Instruction) { l.add("changing", mi) }
func (l *eventLog) ChangedInstr(mi *Instruction)  { l.add("changed", mi) }

func (l *eventLog) add(kind string, mi *Instruction) {
	l.events = append(l.events, fmt.Sprintf("%s #%d %s", kind, mi.ID(), mi.Opcode()))
}

const addFn = `func @add legalized {
  %0:s32 = ARG 0
  %1:s32 = ARG 1
  %2:s32 = G_ADD %0, %1
  %3:s32 = G_ADD %2, %2
  RET %3
}`

// Def and use lookups reflect the parsed graph.
func TestFunction_DefUseIndex(t *testing.T) {
	f := MustParse(addFn)
	require.NoError(t, f.Verify())

	assert.Equal(t, ARG, f.Def(0).Opcode())
	assert.Equal(t, G_ADD, f.Def(2).Opcode())
	assert.Equal(t, 2, f.UseCount(2), "both operands of the second add read %2")
	assert.Len(t, f.Uses(2), 1, "users are distinct instructions")
	assert.False(t, f.HasOneUse(2))
	assert.True(t, f.HasOneUse(3))
	assert.Equal(t, RET, f.SingleUser(3).Opcode())
	assert.Nil(t, f.Def(99))
	assert.Equal(t, S32, f.RegType(2))
}

// Insert places the instruction before the anchor and notifies the observer.
func TestFunction_InsertBefore(t *testing.T) {
	f := MustParse(addFn)
	log := &eventLog{}
	f.SetObserver(log)

	anchor := f.Def(3)
	b := NewBuilder(f)
	b.SetInsertPoint(anchor)
	c := b.ConstantInt(S32, 5)

	instrs := f.Instrs()
	require.Len(t, instrs, 6)
	assert.Equal(t, G_CONSTANT, instrs[3].Opcode())
	assert.Equal(t, f.Def(c), instrs[3])
	assert.Equal(t, []string{fmt.Sprintf("create #%d G_CONSTANT", f.Def(c).ID())}, log.events)
	require.NoError(t, f.Verify())
}

// Erase drops uses and retires the ID.
func TestFunction_Erase(t *testing.T) {
	f := MustParse(addFn)
	log := &eventLog{}
	f.SetObserver(log)

	ret := f.SingleUser(3)
	id := ret.ID()
	f.Erase(ret)

	assert.False(t, f.Live(id))
	assert.Nil(t, f.Instr(id))
	assert.True(t, ret.Erased())
	assert.Equal(t, 0, f.UseCount(3))
	assert.Equal(t, 4, f.NumInstrs())
	assert.Equal(t, []string{fmt.Sprintf("erase #%d RET", id)}, log.events)

	f.Erase(ret)
	assert.Len(t, log.events, 1, "erasing twice is a no-op")
}

// A replacement definition keeps ownership when the old definer is erased.
func TestFunction_RedefineThenErase(t *testing.T) {
	f := MustParse(addFn)
	old := f.Def(2)
	b := NewBuilder(f)
	b.SetInsertPoint(old)
	b.BuildInto(G_SUB, 2, UseOp(0), UseOp(1))
	f.Erase(old)

	require.NotNil(t, f.Def(2))
	assert.Equal(t, G_SUB, f.Def(2).Opcode())
	require.NoError(t, f.Verify())
}

// Mutate brackets in-place edits with changing/changed.
func TestFunction_MutateInPlace(t *testing.T) {
	f := MustParse(`func @m legalized {
  %0:s32 = ARG 0
  %1:s32 = G_CONSTANT 0
  %2:s64 = G_MERGE_VALUES %0, %1
  RET %2
}`)
	log := &eventLog{}
	f.SetObserver(log)

	merge := f.Def(2)
	f.Mutate(merge, func() {
		f.SetOpcode(merge, G_ZEXT)
		f.RemoveOperand(merge, 2)
	})

	assert.Equal(t, G_ZEXT, merge.Opcode())
	assert.Equal(t, 0, f.UseCount(1))
	assert.Equal(t, []string{
		fmt.Sprintf("changing #%d G_MERGE_VALUES", merge.ID()),
		fmt.Sprintf("changed #%d G_ZEXT", merge.ID()),
	}, log.events)
	require.NoError(t, f.Verify())
}

// ReplaceAllUses redirects every operand and reports each user once.
func TestFunction_ReplaceAllUses(t *testing.T) {
	f := MustParse(addFn)
	log := &eventLog{}
	f.SetObserver(log)

	f.ReplaceAllUses(2, 0)

	assert.Equal(t, 0, f.UseCount(2))
	assert.Equal(t, 3, f.UseCount(0))
	assert.Equal(t, []Reg{0, 0}, f.Def(3).Uses())
	assert.Len(t, log.events, 2)
	require.NoError(t, f.Verify())
}

// Clone is independent of the original.
func TestFunction_Clone(t *testing.T) {
	f := MustParse(addFn)
	g := f.Clone()
	g.Erase(g.Def(3))

	assert.Equal(t, 5, f.NumInstrs())
	assert.Equal(t, 4, g.NumInstrs())
	assert.Equal(t, Print(f), Print(MustParse(addFn)))
}
