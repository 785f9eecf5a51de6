package ir

import (
	"fmt"
	"strconv"
	"strings"
)

type typeKind uint8

const (
	kindInvalid typeKind = iota
	kindScalar
	kindVector
	kindPointer
)

// PointerBits is the width of every pointer type.
const PointerBits = 64

// Type is a low-level type descriptor: a scalar of some bit width, a
// vector of scalars or pointers, or a pointer in an address space.
//
// Types are comparable values; the zero Type is invalid.
type Type struct {
	kind  typeKind
	bits  uint16 // scalar width, or element width for vectors
	lanes uint16
	space uint8 // address space for pointers and pointer elements
	ptrEl bool  // vector of pointers
}

// Scalar returns the scalar type of the given width.
func Scalar(bits uint) Type {
	return Type{kind: kindScalar, bits: uint16(bits)}
}

// Pointer returns the pointer type in the given address space.
func Pointer(space uint) Type {
	return Type{kind: kindPointer, bits: PointerBits, space: uint8(space)}
}

// Vector returns a vector of lanes elements of type elem.
func Vector(lanes uint, elem Type) Type {
	return Type{
		kind:  kindVector,
		bits:  elem.bits,
		lanes: uint16(lanes),
		space: elem.space,
		ptrEl: elem.kind == kindPointer,
	}
}

// Common types.
var (
	S1   = Scalar(1)
	S8   = Scalar(8)
	S16  = Scalar(16)
	S32  = Scalar(32)
	S64  = Scalar(64)
	S128 = Scalar(128)
	P0   = Pointer(0)
)

// IsValid reports whether t was built by one of the constructors.
func (t Type) IsValid() bool { return t.kind != kindInvalid }

// IsScalar reports whether t is a plain scalar.
func (t Type) IsScalar() bool { return t.kind == kindScalar }

// IsVector reports whether t is a vector.
func (t Type) IsVector() bool { return t.kind == kindVector }

// IsPointer reports whether t is a scalar pointer.
func (t Type) IsPointer() bool { return t.kind == kindPointer }

// AddressSpace returns the address space of a pointer or pointer vector.
func (t Type) AddressSpace() uint { return uint(t.space) }

// NumElements returns the lane count of a vector and 1 otherwise.
func (t Type) NumElements() uint {
	if t.kind == kindVector {
		return uint(t.lanes)
	}
	return 1
}

// ScalarSizeInBits returns the width of one element.
func (t Type) ScalarSizeInBits() uint { return uint(t.bits) }

// SizeInBits returns the total width.
func (t Type) SizeInBits() uint {
	if t.kind == kindVector {
		return uint(t.bits) * uint(t.lanes)
	}
	return uint(t.bits)
}

// SizeInBytes returns the total width rounded up to whole bytes.
func (t Type) SizeInBytes() uint { return (t.SizeInBits() + 7) / 8 }

// ElementType returns the lane type of a vector, or t itself.
func (t Type) ElementType() Type {
	if t.kind != kindVector {
		return t
	}
	if t.ptrEl {
		return Pointer(uint(t.space))
	}
	return Scalar(uint(t.bits))
}

func (t Type) String() string {
	switch t.kind {
	case kindScalar:
		return "s" + strconv.Itoa(int(t.bits))
	case kindPointer:
		return "p" + strconv.Itoa(int(t.space))
	case kindVector:
		return fmt.Sprintf("<%d x %s>", t.lanes, t.ElementType())
	default:
		return "_"
	}
}

// ParseType parses the textual form produced by Type.String.
func ParseType(s string) (Type, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "<") && strings.HasSuffix(s, ">"):
		inner := strings.TrimSpace(s[1 : len(s)-1])
		lanesStr, elemStr, ok := strings.Cut(inner, " x ")
		if !ok {
			return Type{}, fmt.Errorf("invalid vector type %q", s)
		}
		lanes, err := strconv.Atoi(strings.TrimSpace(lanesStr))
		if err != nil || lanes < 2 || lanes > 1<<15 {
			return Type{}, fmt.Errorf("invalid lane count in %q", s)
		}
		elem, err := ParseType(elemStr)
		if err != nil {
			return Type{}, err
		}
		if elem.IsVector() {
			return Type{}, fmt.Errorf("nested vector type %q", s)
		}
		return Vector(uint(lanes), elem), nil
	case strings.HasPrefix(s, "s"):
		n, err := strconv.Atoi(s[1:])
		if err != nil || n < 1 || n > 1<<15 {
			return Type{}, fmt.Errorf("invalid scalar type %q", s)
		}
		return Scalar(uint(n)), nil
	case strings.HasPrefix(s, "p"):
		n, err := strconv.Atoi(s[1:])
		if err != nil || n < 0 || n > 255 {
			return Type{}, fmt.Errorf("invalid pointer type %q", s)
		}
		return Pointer(uint(n)), nil
	}
	return Type{}, fmt.Errorf("invalid type %q", s)
}

// MustParseType is ParseType for literals known to be valid.
func MustParseType(s string) Type {
	t, err := ParseType(s)
	if err != nil {
		panic(err)
	}
	return t
}
