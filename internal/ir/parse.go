package ir

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roach88/peephole/internal/apint"
)

// ParseError reports malformed textual input.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

// IsParseError reports whether err contains a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// Parse reads exactly one function.
func Parse(src string) (*Function, error) {
	fns, err := ParseAll(src)
	if err != nil {
		return nil, err
	}
	if len(fns) != 1 {
		return nil, &ParseError{Line: 1, Msg: fmt.Sprintf("expected one function, found %d", len(fns))}
	}
	return fns[0], nil
}

// MustParse is Parse for inputs known to be valid.
func MustParse(src string) *Function {
	f, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return f
}

// ParseAll reads every function in src. Text after '#' on a line is a
// comment.
func ParseAll(src string) ([]*Function, error) {
	var (
		fns []*Function
		cur *Function
	)
	for i, raw := range strings.Split(src, "\n") {
		lineNo := i + 1
		line := raw
		if j := strings.IndexByte(line, '#'); j >= 0 {
			line = line[:j]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		switch {
		case cur == nil:
			f, err := parseHeader(line)
			if err != nil {
				return nil, &ParseError{Line: lineNo, Msg: err.Error()}
			}
			cur = f
		case line == "}":
			fns = append(fns, cur)
			cur = nil
		default:
			if err := parseInstr(cur, line); err != nil {
				return nil, &ParseError{Line: lineNo, Msg: err.Error()}
			}
		}
	}
	if cur != nil {
		return nil, &ParseError{Line: strings.Count(src, "\n") + 1, Msg: fmt.Sprintf("function @%s is not closed", cur.Name)}
	}
	return fns, nil
}

func parseHeader(line string) (*Function, error) {
	fields := strings.Fields(line)
	if len(fields) < 3 || fields[0] != "func" || !strings.HasPrefix(fields[1], "@") || fields[len(fields)-1] != "{" {
		return nil, fmt.Errorf("expected `func @name [props] {`, got %q", line)
	}
	name := strings.TrimPrefix(fields[1], "@")
	if name == "" {
		return nil, fmt.Errorf("function name is empty")
	}
	f := NewFunction(name)
	for _, p := range fields[2 : len(fields)-1] {
		if !f.Props.set(p) {
			return nil, fmt.Errorf("unknown function property %q", p)
		}
	}
	return f, nil
}

func parseInstr(f *Function, line string) error {
	body, memText, hasMem := strings.Cut(line, "::")
	body = strings.TrimSpace(body)

	var ops []Operand
	var defTy Type
	if lhs, rhs, ok := strings.Cut(body, "="); ok {
		for _, d := range splitTop(lhs) {
			r, ty, err := parseDef(d)
			if err != nil {
				return err
			}
			if err := f.DeclareReg(r, ty); err != nil {
				return err
			}
			if len(ops) == 0 {
				defTy = ty
			}
			ops = append(ops, DefOp(r))
		}
		body = strings.TrimSpace(rhs)
	}

	name, rest, _ := strings.Cut(body, " ")
	op, ok := ParseOpcode(name)
	if !ok {
		return fmt.Errorf("unknown opcode %q", name)
	}

	if rest = strings.TrimSpace(rest); rest != "" {
		for _, s := range splitTop(rest) {
			o, err := parseOperand(op, defTy, s)
			if err != nil {
				return err
			}
			ops = append(ops, o)
		}
	}

	var mem *MemDesc
	if hasMem {
		m, err := parseMem(strings.TrimSpace(memText))
		if err != nil {
			return err
		}
		mem = &m
	}
	f.Append(op, ops, mem)
	return nil
}

// splitTop splits on commas that are not inside parentheses.
func splitTop(s string) []string {
	var (
		out   []string
		depth int
		start int
	)
	for i, c := range s {
		switch c {
		case '(', '<':
			depth++
		case ')', '>':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if tail := strings.TrimSpace(s[start:]); tail != "" || len(out) > 0 {
		out = append(out, tail)
	}
	return out
}

func parseReg(s string) (Reg, error) {
	if !strings.HasPrefix(s, "%") {
		return NoReg, fmt.Errorf("expected register, got %q", s)
	}
	n, err := strconv.ParseInt(s[1:], 10, 32)
	if err != nil || n < 0 {
		return NoReg, fmt.Errorf("invalid register %q", s)
	}
	return Reg(n), nil
}

func parseDef(s string) (Reg, Type, error) {
	regText, tyText, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return NoReg, Type{}, fmt.Errorf("definition %q has no type", s)
	}
	r, err := parseReg(regText)
	if err != nil {
		return NoReg, Type{}, err
	}
	ty, err := ParseType(tyText)
	if err != nil {
		return NoReg, Type{}, err
	}
	return r, ty, nil
}

func parseOperand(op Opcode, defTy Type, s string) (Operand, error) {
	switch {
	case s == "":
		return Operand{}, fmt.Errorf("empty operand")
	case strings.HasPrefix(s, "%"):
		r, err := parseReg(s)
		if err != nil {
			return Operand{}, err
		}
		return UseOp(r), nil
	case strings.HasPrefix(s, "intpred(") || strings.HasPrefix(s, "floatpred("):
		family, rest, _ := strings.Cut(s, "(")
		name := strings.TrimSuffix(rest, ")")
		p, ok := ParsePredicate(name, family == "intpred")
		if !ok {
			return Operand{}, fmt.Errorf("unknown predicate %q", s)
		}
		return PredOp(p), nil
	case strings.HasPrefix(s, "shufflemask("):
		inner := strings.TrimSuffix(strings.TrimPrefix(s, "shufflemask("), ")")
		var mask []int
		for _, e := range splitTop(inner) {
			if e == "undef" {
				mask = append(mask, -1)
				continue
			}
			n, err := strconv.Atoi(e)
			if err != nil || n < 0 {
				return Operand{}, fmt.Errorf("invalid mask element %q", e)
			}
			mask = append(mask, n)
		}
		return MaskOp(mask), nil
	case op == G_FCONSTANT:
		v, err := parseFloat(s)
		if err != nil {
			return Operand{}, err
		}
		return FPImmOp(v), nil
	}

	width := uint(64)
	if op == G_CONSTANT && defTy.IsValid() && !defTy.IsVector() {
		width = defTy.SizeInBits()
	}
	v, err := apint.Parse(width, s)
	if err != nil {
		return Operand{}, fmt.Errorf("invalid immediate %q", s)
	}
	return ImmOp(v), nil
}

func parseFloat(s string) (float64, error) {
	switch s {
	case "nan":
		return math.NaN(), nil
	case "inf":
		return math.Inf(1), nil
	case "-inf":
		return math.Inf(-1), nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float %q", s)
	}
	return v, nil
}

func parseMem(s string) (MemDesc, error) {
	if !strings.HasPrefix(s, "(") || !strings.HasSuffix(s, ")") {
		return MemDesc{}, fmt.Errorf("memory descriptor %q must be parenthesised", s)
	}
	fields := strings.Fields(s[1 : len(s)-1])
	var m MemDesc
	i := 0
	next := func() string {
		if i >= len(fields) {
			return ""
		}
		i++
		return fields[i-1]
	}

	tok := next()
	if tok == "volatile" {
		m.Volatile = true
		tok = next()
	}
	if o, ok := parseOrdering(tok); ok {
		m.Ordering = o
		tok = next()
	}
	switch tok {
	case "load":
		m.Kind = MemLoad
	case "store":
		m.Kind = MemStore
	default:
		return MemDesc{}, fmt.Errorf("memory descriptor %q: expected load or store", s)
	}
	size, err := strconv.ParseUint(next(), 10, 64)
	if err != nil || size == 0 {
		return MemDesc{}, fmt.Errorf("memory descriptor %q: invalid size", s)
	}
	m.Size = size
	m.Align = 1

	for i < len(fields) {
		key, val := next(), next()
		switch key {
		case "align":
			a, err := strconv.ParseUint(val, 10, 64)
			if err != nil || a == 0 || a&(a-1) != 0 {
				return MemDesc{}, fmt.Errorf("memory descriptor %q: invalid alignment", s)
			}
			m.Align = a
		case "offset":
			off, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return MemDesc{}, fmt.Errorf("memory descriptor %q: invalid offset", s)
			}
			m.Offset = off
		default:
			return MemDesc{}, fmt.Errorf("memory descriptor %q: unknown attribute %q", s, key)
		}
	}
	return m, nil
}
