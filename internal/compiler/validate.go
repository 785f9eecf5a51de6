package compiler

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/roach88/peephole/internal/combine"
	"github.com/roach88/peephole/internal/ir"
	"github.com/roach88/peephole/internal/rules"
)

// Validation error codes (E200-E299)
const (
	// General validation errors (E200)
	ErrUnsupportedType = "E200" // unsupported value for validation

	// CombinerSpec errors (E201-E207)
	ErrUnknownRule       = "E201" // filter names no rule
	ErrBadRuleRange      = "E202" // rule number or range out of bounds
	ErrBadBudget         = "E203" // max_iterations negative
	ErrUnknownTarget     = "E206" // target not declared or built in
	ErrConflictingFilter = "E207" // entry both disabled and only-enabled

	// TargetSpec errors (E204-E208)
	ErrBadType       = "E204" // malformed type string
	ErrUnknownOpcode = "E205" // opcode name not recognised
	ErrEmptyTarget   = "E208" // target declares nothing
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled configuration.
// Returns all errors found (does not fail-fast).
//
// Supports *CombinerSpec, *TargetSpec and *Bundle. Combiners are checked
// against the built-in rule library; a lone combiner may only name a
// built-in target.
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *CombinerSpec:
		return ValidateCombiner(spec, rules.Table(), (&Bundle{}).TargetNames())
	case CombinerSpec:
		return ValidateCombiner(&spec, rules.Table(), (&Bundle{}).TargetNames())
	case *TargetSpec:
		return validateTarget(spec)
	case TargetSpec:
		return validateTarget(&spec)
	case *Bundle:
		return ValidateBundle(spec, rules.Table())
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type: %T", v),
			Code:    ErrUnsupportedType,
		}}
	}
}

// ValidateBundle validates every target and combiner in b.
func ValidateBundle(b *Bundle, table *combine.Table) []ValidationError {
	var errs []ValidationError
	targets := b.TargetNames()
	for i := range b.Targets {
		errs = append(errs, validateTarget(&b.Targets[i])...)
	}
	for i := range b.Combiners {
		errs = append(errs, ValidateCombiner(&b.Combiners[i], table, targets)...)
	}
	return errs
}

// numericEntry matches rule numbers and ranges.
var numericEntry = regexp.MustCompile(`^[0-9]+(-[0-9]+)?$`)

// ValidateCombiner checks spec against the rule table and known targets.
func ValidateCombiner(spec *CombinerSpec, table *combine.Table, targets []string) []ValidationError {
	var errs []ValidationError
	line := spec.Pos.Line()
	prefix := "combiner." + spec.Name

	// E206: target must exist
	if !slices.Contains(targets, spec.Target) {
		errs = append(errs, ValidationError{
			Field:   prefix + ".target",
			Message: fmt.Sprintf("unknown target %q (known: %v)", spec.Target, targets),
			Code:    ErrUnknownTarget,
			Line:    line,
		})
	}

	// E203: budget
	if spec.Config.MaxIterations < 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + ".max_iterations",
			Message: fmt.Sprintf("must not be negative, got %d", spec.Config.MaxIterations),
			Code:    ErrBadBudget,
			Line:    line,
		})
	}

	// E201/E202: every entry resolves
	check := func(field string, entries []string, allowBang bool) {
		for i, e := range entries {
			entry := e
			if allowBang && len(entry) > 0 && entry[0] == '!' {
				entry = entry[1:]
			}
			f := combine.RuleFilter{OnlyEnable: []string{entry}}
			if _, err := f.Resolve(table); err == nil {
				continue
			}
			code := ErrUnknownRule
			if numericEntry.MatchString(entry) {
				code = ErrBadRuleRange
			}
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s.rules.%s[%d]", prefix, field, i),
				Message: fmt.Sprintf("%q does not name a rule in a table of %d", e, table.Len()),
				Code:    code,
				Line:    line,
			})
		}
	}
	check("disable", spec.Config.Filter.Disable, true)
	check("only_enable", spec.Config.Filter.OnlyEnable, false)

	// E207: an entry may not be both disabled and only-enabled
	for _, e := range spec.Config.Filter.Disable {
		if slices.Contains(spec.Config.Filter.OnlyEnable, e) {
			errs = append(errs, ValidationError{
				Field:   prefix + ".rules",
				Message: fmt.Sprintf("%q is both disabled and only-enabled", e),
				Code:    ErrConflictingFilter,
				Line:    line,
			})
		}
	}

	return errs
}

// validateTarget checks opcode names and type strings.
func validateTarget(spec *TargetSpec) []ValidationError {
	var errs []ValidationError
	prefix := "target." + spec.Name

	// E208: a target must declare something
	if len(spec.Ops) == 0 {
		errs = append(errs, ValidationError{
			Field:   prefix,
			Message: "target declares no legal operations",
			Code:    ErrEmptyTarget,
			Line:    spec.Pos.Line(),
		})
	}

	for _, op := range spec.Ops {
		field := prefix + "." + op.Opcode

		// E205: opcode must exist
		if _, ok := ir.ParseOpcode(op.Opcode); !ok {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: fmt.Sprintf("unknown opcode %q", op.Opcode),
				Code:    ErrUnknownOpcode,
				Line:    op.Pos.Line(),
			})
		}

		// E208: an opcode entry needs at least one form
		if !op.Any && len(op.Sigs) == 0 {
			errs = append(errs, ValidationError{
				Field:   field,
				Message: "no signatures; use \"any\" or list at least one",
				Code:    ErrEmptyTarget,
				Line:    op.Pos.Line(),
			})
		}

		// E204: type strings must parse
		for i, sig := range op.Sigs {
			for j, ts := range sig {
				if _, err := ir.ParseType(ts); err != nil {
					errs = append(errs, ValidationError{
						Field:   fmt.Sprintf("%s[%d][%d]", field, i, j),
						Message: fmt.Sprintf("invalid type %q", ts),
						Code:    ErrBadType,
						Line:    op.Pos.Line(),
					})
				}
			}
		}
	}

	return errs
}
