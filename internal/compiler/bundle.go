package compiler

import (
	"fmt"
	"slices"

	"cuelang.org/go/cue"

	"github.com/roach88/peephole/internal/combine"
	"github.com/roach88/peephole/internal/ir"
	"github.com/roach88/peephole/internal/legal"
)

// Bundle is everything declared in one configuration directory.
type Bundle struct {
	Combiners []CombinerSpec `json:"combiners"`
	Targets   []TargetSpec   `json:"targets"`
}

// CompileBundle extracts every `combiner` and `target` entry from v. It
// keeps going past failures and returns all of them.
func CompileBundle(v cue.Value) (*Bundle, []error) {
	b := &Bundle{}
	var errs []error

	if combinersVal := v.LookupPath(cue.ParsePath("combiner")); combinersVal.Exists() {
		iter, err := combinersVal.Fields()
		if err != nil {
			errs = append(errs, formatCUEError(err))
		} else {
			for iter.Next() {
				spec, err := CompileCombiner(iter.Value())
				if err != nil {
					errs = append(errs, fmt.Errorf("combiner.%s: %w", iter.Label(), err))
					continue
				}
				b.Combiners = append(b.Combiners, *spec)
			}
		}
	}

	if targetsVal := v.LookupPath(cue.ParsePath("target")); targetsVal.Exists() {
		iter, err := targetsVal.Fields()
		if err != nil {
			errs = append(errs, formatCUEError(err))
		} else {
			for iter.Next() {
				spec, err := CompileTarget(iter.Value())
				if err != nil {
					errs = append(errs, fmt.Errorf("target.%s: %w", iter.Label(), err))
					continue
				}
				b.Targets = append(b.Targets, *spec)
			}
		}
	}

	return b, errs
}

// Combiner returns the combiner named name.
func (b *Bundle) Combiner(name string) (*CombinerSpec, bool) {
	for i := range b.Combiners {
		if b.Combiners[i].Name == name {
			return &b.Combiners[i], true
		}
	}
	return nil, false
}

// TargetNames lists the declared targets followed by the built-in ones,
// sorted within each group.
func (b *Bundle) TargetNames() []string {
	var declared []string
	for _, t := range b.Targets {
		declared = append(declared, t.Name)
	}
	slices.Sort(declared)

	var builtin []string
	for name := range BuiltinTargets {
		if !slices.Contains(declared, name) {
			builtin = append(builtin, name)
		}
	}
	slices.Sort(builtin)
	return append(declared, builtin...)
}

// TargetTable resolves a target name. Declared targets shadow built-in ones.
func (b *Bundle) TargetTable(name string) (*legal.Table, error) {
	for i := range b.Targets {
		if b.Targets[i].Name == name {
			return b.Targets[i].Table()
		}
	}
	if mk, ok := BuiltinTargets[name]; ok {
		return mk(), nil
	}
	return nil, fmt.Errorf("unknown target %q", name)
}

// Build resolves the named combiner against rules and its target.
func (b *Bundle) Build(name string, rules *combine.Table) (*combine.Combiner, *legal.Table, error) {
	spec, ok := b.Combiner(name)
	if !ok {
		return nil, nil, fmt.Errorf("unknown combiner %q", name)
	}
	target, err := b.TargetTable(spec.Target)
	if err != nil {
		return nil, nil, fmt.Errorf("combiner %s: %w", name, err)
	}
	c, err := combine.BuildCombiner(rules, spec.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("combiner %s: %w", name, err)
	}
	return c, target, nil
}

// Snapshot is the canonical-JSON form of b. Combiners and targets keep
// their declaration order.
func (b *Bundle) Snapshot() map[string]any {
	combiners := make([]any, 0, len(b.Combiners))
	for _, c := range b.Combiners {
		combiners = append(combiners, map[string]any{
			"name":   c.Name,
			"target": c.Target,
			"config": c.Config.Snapshot(),
		})
	}
	targets := make([]any, 0, len(b.Targets))
	for _, t := range b.Targets {
		ops := make([]any, 0, len(t.Ops))
		for _, op := range t.Ops {
			sigs := make([]any, 0, len(op.Sigs))
			for _, sig := range op.Sigs {
				sigs = append(sigs, slices.Clone(sig))
			}
			ops = append(ops, map[string]any{
				"opcode": op.Opcode,
				"any":    op.Any,
				"sigs":   sigs,
			})
		}
		targets = append(targets, map[string]any{
			"name": t.Name,
			"ops":  ops,
		})
	}
	return map[string]any{
		"combiners": combiners,
		"targets":   targets,
	}
}

// Canonical returns b as canonical JSON.
func (b *Bundle) Canonical() ([]byte, error) {
	return ir.MarshalCanonical(b.Snapshot())
}
