package ir

import "fmt"

// Opcode identifies the operation an Instruction performs.
type Opcode uint8

// Opcodes. ARG and RET model function inputs and outputs; everything else
// follows the generic machine IR naming.
const (
	OpInvalid Opcode = iota
	ARG
	RET
	COPY
	G_IMPLICIT_DEF
	G_CONSTANT
	G_FCONSTANT
	G_ADD
	G_SUB
	G_MUL
	G_AND
	G_OR
	G_XOR
	G_SHL
	G_LSHR
	G_ASHR
	G_PTR_ADD
	G_FADD
	G_FSUB
	G_FMUL
	G_ICMP
	G_FCMP
	G_SEXT
	G_SEXT_INREG
	G_ZEXT
	G_ANYEXT
	G_TRUNC
	G_MERGE_VALUES
	G_UNMERGE_VALUES
	G_BUILD_VECTOR
	G_EXTRACT_VECTOR_ELT
	G_SHUFFLE_VECTOR
	G_LOAD
	G_STORE

	numOpcodes
)

type opFlags uint8

const (
	flagSideEffects opFlags = 1 << iota
	flagCommutative
)

type opcodeInfo struct {
	name  string
	flags opFlags
}

var opcodeTable = [numOpcodes]opcodeInfo{
	OpInvalid:            {name: "INVALID"},
	ARG:                  {name: "ARG", flags: flagSideEffects},
	RET:                  {name: "RET", flags: flagSideEffects},
	COPY:                 {name: "COPY"},
	G_IMPLICIT_DEF:       {name: "G_IMPLICIT_DEF"},
	G_CONSTANT:           {name: "G_CONSTANT"},
	G_FCONSTANT:          {name: "G_FCONSTANT"},
	G_ADD:                {name: "G_ADD", flags: flagCommutative},
	G_SUB:                {name: "G_SUB"},
	G_MUL:                {name: "G_MUL", flags: flagCommutative},
	G_AND:                {name: "G_AND", flags: flagCommutative},
	G_OR:                 {name: "G_OR", flags: flagCommutative},
	G_XOR:                {name: "G_XOR", flags: flagCommutative},
	G_SHL:                {name: "G_SHL"},
	G_LSHR:               {name: "G_LSHR"},
	G_ASHR:               {name: "G_ASHR"},
	G_PTR_ADD:            {name: "G_PTR_ADD"},
	G_FADD:               {name: "G_FADD", flags: flagCommutative},
	G_FSUB:               {name: "G_FSUB"},
	G_FMUL:               {name: "G_FMUL", flags: flagCommutative},
	G_ICMP:               {name: "G_ICMP"},
	G_FCMP:               {name: "G_FCMP"},
	G_SEXT:               {name: "G_SEXT"},
	G_SEXT_INREG:         {name: "G_SEXT_INREG"},
	G_ZEXT:               {name: "G_ZEXT"},
	G_ANYEXT:             {name: "G_ANYEXT"},
	G_TRUNC:              {name: "G_TRUNC"},
	G_MERGE_VALUES:       {name: "G_MERGE_VALUES"},
	G_UNMERGE_VALUES:     {name: "G_UNMERGE_VALUES"},
	G_BUILD_VECTOR:       {name: "G_BUILD_VECTOR"},
	G_EXTRACT_VECTOR_ELT: {name: "G_EXTRACT_VECTOR_ELT"},
	G_SHUFFLE_VECTOR:     {name: "G_SHUFFLE_VECTOR"},
	G_LOAD:               {name: "G_LOAD", flags: flagSideEffects},
	G_STORE:              {name: "G_STORE", flags: flagSideEffects},
}

var opcodeByName = func() map[string]Opcode {
	m := make(map[string]Opcode, numOpcodes)
	for op := ARG; op < numOpcodes; op++ {
		m[opcodeTable[op].name] = op
	}
	return m
}()

func (op Opcode) String() string {
	if op < numOpcodes {
		return opcodeTable[op].name
	}
	return fmt.Sprintf("Opcode(%d)", uint8(op))
}

// Valid reports whether op names a real operation.
func (op Opcode) Valid() bool { return op > OpInvalid && op < numOpcodes }

// HasSideEffects reports whether op must be kept even when its results are
// unused.
func (op Opcode) HasSideEffects() bool { return op.flags()&flagSideEffects != 0 }

// IsCommutative reports whether the two source operands may be swapped.
func (op Opcode) IsCommutative() bool { return op.flags()&flagCommutative != 0 }

func (op Opcode) flags() opFlags {
	if op < numOpcodes {
		return opcodeTable[op].flags
	}
	return 0
}

// ParseOpcode looks up an opcode by name.
func ParseOpcode(name string) (Opcode, bool) {
	op, ok := opcodeByName[name]
	return op, ok
}

// Opcodes returns every valid opcode in enum order.
func Opcodes() []Opcode {
	out := make([]Opcode, 0, numOpcodes-1)
	for op := ARG; op < numOpcodes; op++ {
		out = append(out, op)
	}
	return out
}
