package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/peephole/internal/ir"
)

const src = `func @q legalized {
  %0:s32 = ARG 0
  %1:s32 = G_CONSTANT -3
  %2:s32 = COPY %1
  %3:s64 = G_SEXT %2
  %4:s64 = G_ZEXT %1
  %5:s16 = G_TRUNC %1
  %6:<4 x s32> = G_BUILD_VECTOR %1, %2, %1, %1
  %7:<4 x s32> = G_BUILD_VECTOR %1, %0, %1, %1
  %8:s32 = G_SEXT_INREG %0, 8
  %9:s64 = G_ZEXT %0
  %10:s32 = COPY %0
  RET %3
}`

// Constants are found through copies and extensions, applying them.
func TestIConstantValueOf_LookThrough(t *testing.T) {
	f := ir.MustParse(src)
	q := NewGraphQueries(f)

	v, ok := q.IConstantValueOf(1)
	require.True(t, ok)
	assert.Equal(t, int64(-3), v.Int64())

	v, ok = q.IConstantValueOf(3)
	require.True(t, ok)
	assert.Equal(t, uint(64), v.Width())
	assert.Equal(t, int64(-3), v.Int64())

	v, ok = q.IConstantValueOf(4)
	require.True(t, ok)
	assert.Equal(t, uint64(0xfffffffd), v.Uint64())

	v, ok = q.IConstantValueOf(5)
	require.True(t, ok)
	assert.Equal(t, uint64(0xfffd), v.Uint64())

	_, ok = q.IConstantValueOf(0)
	assert.False(t, ok)
	_, ok = q.IConstantValueOf(10)
	assert.False(t, ok)
}

// Uniform vectors are splats; mixed lanes are not.
func TestSplatConstantOf(t *testing.T) {
	q := NewGraphQueries(ir.MustParse(src))

	v, ok := q.SplatConstantOf(6)
	require.True(t, ok)
	assert.Equal(t, int64(-3), v.Int64())

	_, ok = q.SplatConstantOf(7)
	assert.False(t, ok)

	v, ok = q.ConstantValueOf(6)
	require.True(t, ok)
	assert.Equal(t, uint(32), v.Width())
}

// Extension provenance is a single-level check.
func TestExtensionQueries(t *testing.T) {
	q := NewGraphQueries(ir.MustParse(src))
	assert.True(t, q.IsSignExtended(3))
	assert.True(t, q.IsSignExtended(8))
	assert.False(t, q.IsSignExtended(9))
	assert.True(t, q.IsZeroExtended(9))
	assert.True(t, q.IsZeroExtended(4))
	assert.False(t, q.IsZeroExtended(10), "copies are not looked through")
}

// Answers follow graph mutation without any invalidation step.
func TestQueries_NeverStale(t *testing.T) {
	f := ir.MustParse(src)
	q := NewGraphQueries(f)
	_, ok := q.IConstantValueOf(1)
	require.True(t, ok)

	def := f.Def(1)
	b := ir.NewBuilder(f)
	b.SetInsertPoint(def)
	b.BuildInto(ir.G_ADD, 1, ir.UseOp(0), ir.UseOp(0))
	f.Erase(def)

	_, ok = q.IConstantValueOf(1)
	assert.False(t, ok)
}

func TestOpcodeDef_IgnoresCopies(t *testing.T) {
	f := ir.MustParse(src)
	assert.Equal(t, ir.G_CONSTANT, DefIgnoringCopies(f, 2).Opcode())
	assert.NotNil(t, OpcodeDef(f, ir.ARG, 10))
	assert.Nil(t, OpcodeDef(f, ir.G_CONSTANT, 10))
}

// Copies resolve to their source register; other definers stop the walk.
func TestRegIgnoringCopies(t *testing.T) {
	f := ir.MustParse(src)
	assert.Equal(t, ir.Reg(0), RegIgnoringCopies(f, 10))
	assert.Equal(t, ir.Reg(1), RegIgnoringCopies(f, 2))
	assert.Equal(t, ir.Reg(3), RegIgnoringCopies(f, 3))
	assert.Equal(t, ir.Reg(0), RegIgnoringCopies(f, 0))
}
