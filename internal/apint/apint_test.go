package apint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// FromInt64 wraps negative values to the requested width.
func TestFromInt64_Wraps(t *testing.T) {
	a := FromInt64(8, -1)
	assert.Equal(t, uint64(0xff), a.Uint64())
	assert.Equal(t, int64(-1), a.Int64())
	assert.True(t, a.IsNegative())
	assert.True(t, a.IsAllOnes())

	b := FromInt64(128, -2)
	assert.Equal(t, "-2", b.String())
	assert.Equal(t, uint(1), b.CountTrailingZeros())
}

// Arithmetic wraps modulo 2^width.
func TestArithmetic_Wraparound(t *testing.T) {
	maxInt := FromInt64(32, 0x7fffffff)
	one := New(32, 1)

	sum := maxInt.Add(one)
	assert.Equal(t, "-2147483648", sum.String())
	assert.True(t, sum.IsNegative())

	assert.Equal(t, uint64(0xffffffff), Zero(32).Sub(one).Uint64())
	assert.Equal(t, uint64(1), New(32, 0x80000001).Mul(New(32, 0x80000001)).Uint64())
	assert.True(t, sum.Neg().Eq(sum), "INT_MIN is its own negation")
}

// Shifts clamp at the width.
func TestShifts(t *testing.T) {
	x := FromInt64(16, -16)
	assert.Equal(t, int64(-4), x.AShr(2).Int64())
	assert.Equal(t, uint64(0x3ffc), x.LShr(2).Uint64())
	assert.Equal(t, int64(-1), x.AShr(40).Int64())
	assert.True(t, x.Shl(16).IsZero())
	assert.Equal(t, uint64(0xff00), New(16, 0xff).Shl(8).Uint64())
}

// Extension and truncation keep or drop the sign as expected.
func TestExtendTruncate(t *testing.T) {
	x := FromInt64(8, -3)
	assert.Equal(t, int64(-3), x.Sext(64).Int64())
	assert.Equal(t, uint64(0xfd), x.Zext(64).Uint64())
	assert.Equal(t, uint64(0x34), New(32, 0x1234).Trunc(8).Uint64())
	assert.Equal(t, int64(-3), x.SextOrTrunc(32).Int64())
	assert.Equal(t, uint64(0xfd), FromInt64(32, -3).ZextOrTrunc(8).Uint64())
	assert.Equal(t, uint(256), x.Sext(256).Width())
	assert.Equal(t, "-3", x.Sext(256).String())
}

// CountTrailingZeros handles zero and multi-limb values.
func TestCountTrailingZeros(t *testing.T) {
	assert.Equal(t, uint(32), Zero(32).CountTrailingZeros())
	assert.Equal(t, uint(0), New(32, 9).CountTrailingZeros())
	assert.Equal(t, uint(1), New(32, 6).CountTrailingZeros())
	assert.Equal(t, uint(70), New(128, 1).Shl(70).CountTrailingZeros())
}

// Power-of-two checks read the bits as unsigned.
func TestIsPowerOf2(t *testing.T) {
	assert.True(t, New(32, 8).IsPowerOf2())
	assert.Equal(t, 3, New(32, 8).LogBase2())
	assert.False(t, New(32, 9).IsPowerOf2())
	assert.False(t, Zero(32).IsPowerOf2())
	assert.Equal(t, -1, Zero(32).LogBase2())

	intMin := New(32, 0x80000000)
	assert.True(t, intMin.IsPowerOf2())
	assert.Equal(t, 31, intMin.LogBase2())
}

// Parse accepts signed decimal and hex literals.
func TestParse(t *testing.T) {
	a, err := Parse(32, "-15")
	require.NoError(t, err)
	assert.Equal(t, int64(-15), a.Int64())

	b, err := Parse(128, "340282366920938463463374607431768211455")
	require.NoError(t, err)
	assert.True(t, b.IsAllOnes())

	c, err := Parse(16, "0xff")
	require.NoError(t, err)
	assert.Equal(t, uint64(255), c.Uint64())

	_, err = Parse(32, "nine")
	assert.Error(t, err)
	_, err = Parse(32, "-")
	assert.Error(t, err)
}

// Comparisons distinguish signed and unsigned order.
func TestCompare(t *testing.T) {
	neg := FromInt64(32, -1)
	one := New(32, 1)
	assert.True(t, neg.Slt(one))
	assert.False(t, neg.Ult(one))
	assert.True(t, one.Ult(neg))
	assert.True(t, FromInt64(32, 5).EqInt64(5))
	assert.False(t, New(32, 5).Eq(New(64, 5)), "different widths are never equal")
}

// Mismatched widths are a programming error.
func TestWidthMismatch_Panics(t *testing.T) {
	assert.Panics(t, func() { New(32, 1).Add(New(64, 1)) })
	assert.Panics(t, func() { New(0, 1) })
	assert.Panics(t, func() { New(64, 1).Sext(32) })
}

// TestString_Signed tests decimal formatting of negative, positive and
// minimum values.
func TestString_Signed(t *testing.T) {
	assert.Equal(t, "-1", AllOnes(8).String())
	assert.Equal(t, "255", AllOnes(8).UnsignedString())
	assert.Equal(t, "-128", New(8, 0x80).String())
	assert.Equal(t, "127", New(8, 0x7f).String())
	assert.Equal(t, "-9", FromInt64(128, -9).String())
	assert.Equal(t, "<invalid>", Int{}.String())
}
