// Package apint implements fixed-width two's-complement integers.
//
// An Int carries its bit width (1 to 256) and wraps on overflow the way
// machine registers do. Values are stored masked to the width; signed
// interpretation is applied on demand.
package apint

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/holiman/uint256"
)

// MaxWidth is the widest supported integer.
const MaxWidth = 256

// Int is an immutable fixed-width integer.
type Int struct {
	v     uint256.Int
	width uint
}

func checkWidth(width uint) {
	if width == 0 || width > MaxWidth {
		panic(fmt.Sprintf("apint: invalid width %d", width))
	}
}

func mask(width uint) *uint256.Int {
	if width == MaxWidth {
		return new(uint256.Int).SetAllOne()
	}
	m := new(uint256.Int).Lsh(uint256.NewInt(1), width)
	return m.Sub(m, uint256.NewInt(1))
}

func wrap(width uint, v *uint256.Int) Int {
	var out Int
	out.width = width
	out.v.And(v, mask(width))
	return out
}

// New returns v truncated to width bits.
func New(width uint, v uint64) Int {
	checkWidth(width)
	return wrap(width, uint256.NewInt(v))
}

// FromInt64 returns v sign-extended or truncated to width bits.
func FromInt64(width uint, v int64) Int {
	checkWidth(width)
	x := uint256.NewInt(uint64(v))
	if v < 0 {
		hi := new(uint256.Int).Lsh(new(uint256.Int).SetAllOne(), 64)
		x.Or(x, hi)
	}
	return wrap(width, x)
}

// Zero returns the zero value of the given width.
func Zero(width uint) Int { return New(width, 0) }

// AllOnes returns the value with every bit set (-1 when signed).
func AllOnes(width uint) Int {
	checkWidth(width)
	return wrap(width, new(uint256.Int).SetAllOne())
}

// Parse reads a decimal literal with an optional leading minus sign and
// wraps it to width bits. A "0x" prefix selects hexadecimal.
func Parse(width uint, s string) (Int, error) {
	checkWidth(width)
	neg := strings.HasPrefix(s, "-")
	body := strings.TrimPrefix(s, "-")
	if body == "" {
		return Int{}, fmt.Errorf("apint: empty literal %q", s)
	}

	var x *uint256.Int
	var err error
	if strings.HasPrefix(body, "0x") || strings.HasPrefix(body, "0X") {
		x, err = uint256.FromHex(body)
	} else {
		x, err = uint256.FromDecimal(body)
	}
	if err != nil {
		return Int{}, fmt.Errorf("apint: parse %q: %w", s, err)
	}
	if neg {
		x.Neg(x)
	}
	return wrap(width, x), nil
}

// Width returns the bit width.
func (a Int) Width() uint { return a.width }

// IsZero reports whether every bit is clear.
func (a Int) IsZero() bool { return a.v.IsZero() }

// IsAllOnes reports whether every bit is set.
func (a Int) IsAllOnes() bool { return a.v.Eq(mask(a.width)) }

// IsNegative reports whether the sign bit is set.
func (a Int) IsNegative() bool {
	return a.bit(a.width - 1)
}

// IsNonNegative reports whether the sign bit is clear.
func (a Int) IsNonNegative() bool { return !a.IsNegative() }

func (a Int) bit(i uint) bool {
	return a.v[i/64]>>(i%64)&1 == 1
}

// Eq reports whether a and b have the same width and bits.
func (a Int) Eq(b Int) bool {
	return a.width == b.width && a.v.Eq(&b.v)
}

// EqInt64 reports whether a equals v wrapped to a's width.
func (a Int) EqInt64(v int64) bool {
	return a.Eq(FromInt64(a.width, v))
}

func (a Int) same(b Int) {
	if a.width != b.width {
		panic(fmt.Sprintf("apint: width mismatch %d vs %d", a.width, b.width))
	}
}

// Add returns a+b modulo 2^width.
func (a Int) Add(b Int) Int {
	a.same(b)
	return wrap(a.width, new(uint256.Int).Add(&a.v, &b.v))
}

// Sub returns a-b modulo 2^width.
func (a Int) Sub(b Int) Int {
	a.same(b)
	return wrap(a.width, new(uint256.Int).Sub(&a.v, &b.v))
}

// Mul returns a*b modulo 2^width.
func (a Int) Mul(b Int) Int {
	a.same(b)
	return wrap(a.width, new(uint256.Int).Mul(&a.v, &b.v))
}

// Neg returns -a modulo 2^width.
func (a Int) Neg() Int {
	return wrap(a.width, new(uint256.Int).Neg(&a.v))
}

// Not returns the bitwise complement.
func (a Int) Not() Int {
	return wrap(a.width, new(uint256.Int).Not(&a.v))
}

// And returns a&b.
func (a Int) And(b Int) Int {
	a.same(b)
	return wrap(a.width, new(uint256.Int).And(&a.v, &b.v))
}

// Or returns a|b.
func (a Int) Or(b Int) Int {
	a.same(b)
	return wrap(a.width, new(uint256.Int).Or(&a.v, &b.v))
}

// Xor returns a^b.
func (a Int) Xor(b Int) Int {
	a.same(b)
	return wrap(a.width, new(uint256.Int).Xor(&a.v, &b.v))
}

// Shl returns a << n. Shifting by the width or more yields zero.
func (a Int) Shl(n uint) Int {
	if n >= a.width {
		return Zero(a.width)
	}
	return wrap(a.width, new(uint256.Int).Lsh(&a.v, n))
}

// LShr returns a logically shifted right by n.
func (a Int) LShr(n uint) Int {
	if n >= a.width {
		return Zero(a.width)
	}
	return wrap(a.width, new(uint256.Int).Rsh(&a.v, n))
}

// AShr returns a arithmetically shifted right by n. Shifting by the width
// or more yields zero or all ones depending on the sign.
func (a Int) AShr(n uint) Int {
	if n >= a.width {
		if a.IsNegative() {
			return AllOnes(a.width)
		}
		return Zero(a.width)
	}
	s := a.signed256()
	return wrap(a.width, s.SRsh(s, n))
}

// signed256 returns the value sign-extended to 256 bits.
func (a Int) signed256() *uint256.Int {
	s := new(uint256.Int).Set(&a.v)
	if a.IsNegative() && a.width < MaxWidth {
		s.Or(s, new(uint256.Int).Not(mask(a.width)))
	}
	return s
}

// Sext sign-extends a to width bits. width must be at least a.Width().
func (a Int) Sext(width uint) Int {
	checkWidth(width)
	if width < a.width {
		panic(fmt.Sprintf("apint: sext from %d to %d", a.width, width))
	}
	return wrap(width, a.signed256())
}

// Zext zero-extends a to width bits. width must be at least a.Width().
func (a Int) Zext(width uint) Int {
	checkWidth(width)
	if width < a.width {
		panic(fmt.Sprintf("apint: zext from %d to %d", a.width, width))
	}
	return wrap(width, &a.v)
}

// Trunc keeps the low width bits. width must not exceed a.Width().
func (a Int) Trunc(width uint) Int {
	checkWidth(width)
	if width > a.width {
		panic(fmt.Sprintf("apint: trunc from %d to %d", a.width, width))
	}
	return wrap(width, &a.v)
}

// SextOrTrunc sign-extends or truncates a to width bits.
func (a Int) SextOrTrunc(width uint) Int {
	if width >= a.width {
		return a.Sext(width)
	}
	return a.Trunc(width)
}

// ZextOrTrunc zero-extends or truncates a to width bits.
func (a Int) ZextOrTrunc(width uint) Int {
	if width >= a.width {
		return a.Zext(width)
	}
	return a.Trunc(width)
}

// CountTrailingZeros returns the number of low zero bits. Zero has width
// trailing zeros.
func (a Int) CountTrailingZeros() uint {
	if a.v.IsZero() {
		return a.width
	}
	var n uint
	for _, limb := range a.v {
		if limb != 0 {
			return n + uint(bits.TrailingZeros64(limb))
		}
		n += 64
	}
	return n
}

// IsPowerOf2 reports whether exactly one bit is set, reading the bits as
// unsigned.
func (a Int) IsPowerOf2() bool {
	if a.v.IsZero() {
		return false
	}
	m := new(uint256.Int).Sub(&a.v, uint256.NewInt(1))
	return m.And(m, &a.v).IsZero()
}

// LogBase2 returns the index of the highest set bit, or -1 for zero.
func (a Int) LogBase2() int {
	return a.v.BitLen() - 1
}

// ActiveBits returns the number of bits needed for the unsigned value.
func (a Int) ActiveBits() uint { return uint(a.v.BitLen()) }

// Uint64 returns the low 64 bits.
func (a Int) Uint64() uint64 { return a.v.Uint64() }

// Int64 returns the low 64 bits of the sign-extended value.
func (a Int) Int64() int64 { return int64(a.signed256().Uint64()) }

// IsUint64 reports whether the unsigned value fits in 64 bits.
func (a Int) IsUint64() bool { return a.v.IsUint64() }

// Ult reports a < b as unsigned.
func (a Int) Ult(b Int) bool {
	a.same(b)
	return a.v.Lt(&b.v)
}

// Slt reports a < b as signed.
func (a Int) Slt(b Int) bool {
	a.same(b)
	return a.signed256().Slt(b.signed256())
}

// String formats the signed decimal value.
func (a Int) String() string {
	if a.width == 0 {
		return "<invalid>"
	}
	if a.IsNegative() {
		n := a.Neg()
		return "-" + n.v.Dec()
	}
	return a.v.Dec()
}

// UnsignedString formats the unsigned decimal value.
func (a Int) UnsignedString() string { return a.v.Dec() }
