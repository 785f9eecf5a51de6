package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/token"

	"github.com/roach88/peephole/internal/ir"
	"github.com/roach88/peephole/internal/legal"
)

// AnyType marks an opcode legal for every type.
const AnyType = "any"

// TargetOp is the legal forms of one opcode. Each signature lists type
// strings for the opcode's type indices.
type TargetOp struct {
	Opcode string     `json:"opcode"`
	Any    bool       `json:"any,omitempty"`
	Sigs   [][]string `json:"sigs,omitempty"`

	Pos token.Pos `json:"-"`
}

// TargetSpec is a legal-operation set declared in CUE:
//
//	target: "custom": {
//	    G_ADD: [["s32"], ["s64"]]
//	    G_IMPLICIT_DEF: "any"
//	}
type TargetSpec struct {
	Name string     `json:"name"`
	Ops  []TargetOp `json:"ops"`

	Pos token.Pos `json:"-"`
}

// BuiltinTargets maps target names to their built-in tables.
var BuiltinTargets = map[string]func() *legal.Table{
	"aarch64": legal.AArch64,
}

// CompileTarget parses a CUE value into a TargetSpec. Opcode and type names
// are kept as written; Validate checks them.
func CompileTarget(v cue.Value) (*TargetSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &TargetSpec{Name: labelOf(v), Pos: v.Pos()}

	iter, err := v.Fields()
	if err != nil {
		return nil, &CompileError{
			Field:   "target",
			Message: "must be a struct of opcode: signatures",
			Pos:     v.Pos(),
		}
	}
	for iter.Next() {
		op := TargetOp{Opcode: iter.Label(), Pos: iter.Value().Pos()}
		val := iter.Value()

		if s, err := val.String(); err == nil {
			if s != AnyType {
				return nil, &CompileError{
					Field:   op.Opcode,
					Message: fmt.Sprintf("expected %q or a list of signatures, got %q", AnyType, s),
					Pos:     val.Pos(),
				}
			}
			op.Any = true
			spec.Ops = append(spec.Ops, op)
			continue
		}

		sigs, err := val.List()
		if err != nil {
			return nil, &CompileError{
				Field:   op.Opcode,
				Message: "signatures must be a list of type lists",
				Pos:     val.Pos(),
			}
		}
		for sigs.Next() {
			types, err := sigs.Value().List()
			if err != nil {
				return nil, &CompileError{
					Field:   op.Opcode,
					Message: "each signature must be a list of type strings",
					Pos:     sigs.Value().Pos(),
				}
			}
			var sig []string
			for types.Next() {
				s, err := types.Value().String()
				if err != nil {
					return nil, formatCUEError(err)
				}
				sig = append(sig, s)
			}
			op.Sigs = append(op.Sigs, sig)
		}
		spec.Ops = append(spec.Ops, op)
	}
	return spec, nil
}

// Table builds the legal table. It fails on the first unknown opcode or
// malformed type; run Validate first to see every problem.
func (s *TargetSpec) Table() (*legal.Table, error) {
	t := legal.NewTable(s.Name)
	for _, op := range s.Ops {
		opcode, ok := ir.ParseOpcode(op.Opcode)
		if !ok {
			return nil, fmt.Errorf("target %s: unknown opcode %q", s.Name, op.Opcode)
		}
		if op.Any {
			t.AlwaysLegal(opcode)
			continue
		}
		for _, sig := range op.Sigs {
			types := make(legal.Sig, 0, len(sig))
			for _, ts := range sig {
				ty, err := ir.ParseType(ts)
				if err != nil {
					return nil, fmt.Errorf("target %s: %s: %w", s.Name, op.Opcode, err)
				}
				types = append(types, ty)
			}
			t.Legal(opcode, types)
		}
	}
	return t, nil
}
