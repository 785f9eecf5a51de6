package compiler

import (
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/peephole/internal/combine"
)

// CombinerSpec is a named combiner configuration bound to a target.
type CombinerSpec struct {
	Name   string         `json:"name"`
	Target string         `json:"target"`
	Config combine.Config `json:"config"`

	Pos token.Pos `json:"-"`
}

// CompileCombiner parses a CUE value into a CombinerSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the combiner struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`combiner: "aarch64-postlegalizer": { target: "aarch64" }`)
//	spec, err := CompileCombiner(v.LookupPath(cue.ParsePath(`combiner."aarch64-postlegalizer"`)))
//
// Absent fields take the values of combine.DefaultConfig. Range checks are
// left to Validate so that every problem is reported at once.
func CompileCombiner(v cue.Value) (*CombinerSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &CombinerSpec{
		Name:   labelOf(v),
		Config: combine.DefaultConfig(),
		Pos:    v.Pos(),
	}
	spec.Config.Name = spec.Name

	targetVal := v.LookupPath(cue.ParsePath("target"))
	if !targetVal.Exists() {
		return nil, &CompileError{
			Field:   "target",
			Message: "target is required",
			Pos:     v.Pos(),
		}
	}
	target, err := targetVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	spec.Target = target

	rulesVal := v.LookupPath(cue.ParsePath("rules"))
	if rulesVal.Exists() {
		if spec.Config.Filter.Disable, err = parseEntries(rulesVal, "disable"); err != nil {
			return nil, err
		}
		if spec.Config.Filter.OnlyEnable, err = parseEntries(rulesVal, "only_enable"); err != nil {
			return nil, err
		}
	}

	if n, ok, err := lookupInt(v, "max_iterations"); err != nil {
		return nil, err
	} else if ok {
		spec.Config.MaxIterations = n
	}

	flags := []struct {
		field string
		dst   *bool
	}{
		{"allow_illegal", &spec.Config.AllowIllegal},
		{"dce", &spec.Config.DeadCodeElimination},
		{"detect_cycles", &spec.Config.DetectCycles},
	}
	for _, fl := range flags {
		b, ok, err := lookupBool(v, fl.field)
		if err != nil {
			return nil, err
		}
		if ok {
			*fl.dst = b
		}
	}

	return spec, nil
}

// parseEntries reads a list of filter entries. Integers are accepted as
// rule numbers.
func parseEntries(rulesVal cue.Value, field string) ([]string, error) {
	listVal := rulesVal.LookupPath(cue.ParsePath(field))
	if !listVal.Exists() {
		return nil, nil
	}
	iter, err := listVal.List()
	if err != nil {
		return nil, &CompileError{
			Field:   "rules." + field,
			Message: "must be a list of rule IDs, numbers or ranges",
			Pos:     listVal.Pos(),
		}
	}

	var out []string
	for iter.Next() {
		elem := iter.Value()
		switch elem.IncompleteKind() {
		case cue.StringKind:
			s, err := elem.String()
			if err != nil {
				return nil, formatCUEError(err)
			}
			out = append(out, s)
		case cue.IntKind:
			n, err := elem.Int64()
			if err != nil {
				return nil, formatCUEError(err)
			}
			out = append(out, fmt.Sprintf("%d", n))
		default:
			return nil, &CompileError{
				Field:   "rules." + field,
				Message: fmt.Sprintf("unsupported entry kind: %v", elem.IncompleteKind()),
				Pos:     elem.Pos(),
			}
		}
	}
	return out, nil
}

func lookupInt(v cue.Value, field string) (int, bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return 0, false, nil
	}
	n, err := fv.Int64()
	if err != nil {
		return 0, false, &CompileError{
			Field:   field,
			Message: "must be an integer",
			Pos:     fv.Pos(),
		}
	}
	return int(n), true, nil
}

func lookupBool(v cue.Value, field string) (bool, bool, error) {
	fv := v.LookupPath(cue.ParsePath(field))
	if !fv.Exists() {
		return false, false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, false, &CompileError{
			Field:   field,
			Message: "must be a boolean",
			Pos:     fv.Pos(),
		}
	}
	return b, true, nil
}

// labelOf returns the last path selector of v, unquoted.
func labelOf(v cue.Value) string {
	labels := v.Path().Selectors()
	if len(labels) == 0 {
		return ""
	}
	return strings.Trim(labels[len(labels)-1].String(), `"`)
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
