package ir

import (
	"math"
	"strconv"
	"strings"
)

// Print renders f in the textual form accepted by Parse.
func Print(f *Function) string {
	var sb strings.Builder
	sb.WriteString("func @")
	sb.WriteString(f.Name)
	for _, p := range f.Props.names() {
		sb.WriteByte(' ')
		sb.WriteString(p)
	}
	sb.WriteString(" {\n")
	for _, mi := range f.Instrs() {
		sb.WriteString("  ")
		sb.WriteString(PrintInstr(f, mi))
		sb.WriteByte('\n')
	}
	sb.WriteString("}\n")
	return sb.String()
}

// PrintInstr renders a single instruction without indentation.
func PrintInstr(f *Function, mi *Instruction) string {
	var sb strings.Builder
	n := mi.NumDefs()
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		r := mi.ops[i].Reg
		sb.WriteString(r.String())
		sb.WriteByte(':')
		sb.WriteString(f.RegType(r).String())
	}
	if n > 0 {
		sb.WriteString(" = ")
	}
	sb.WriteString(mi.op.String())
	for i, o := range mi.ops[n:] {
		if i == 0 {
			sb.WriteByte(' ')
		} else {
			sb.WriteString(", ")
		}
		sb.WriteString(formatOperand(o))
	}
	if mi.mem != nil {
		sb.WriteString(" :: ")
		sb.WriteString(mi.mem.String())
	}
	return sb.String()
}

func formatOperand(o Operand) string {
	switch o.Kind {
	case KindUse, KindDef:
		return o.Reg.String()
	case KindImm:
		return o.Imm.String()
	case KindFPImm:
		return formatFloat(o.FImm)
	case KindPred:
		return o.Pred.String()
	case KindMask:
		parts := make([]string, len(o.Mask))
		for i, m := range o.Mask {
			if m < 0 {
				parts[i] = "undef"
			} else {
				parts[i] = strconv.Itoa(m)
			}
		}
		return "shufflemask(" + strings.Join(parts, ", ") + ")"
	}
	return "?"
}

// formatFloat always produces a literal that reads back as a float.
func formatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	s := strconv.FormatFloat(v, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

func (p Props) names() []string {
	var out []string
	if p.Legalized {
		out = append(out, "legalized")
	}
	if p.FailedISel {
		out = append(out, "failedisel")
	}
	if p.OptNone {
		out = append(out, "optnone")
	}
	if p.OptSize {
		out = append(out, "optsize")
	}
	if p.MinSize {
		out = append(out, "minsize")
	}
	return out
}

func (p *Props) set(name string) bool {
	switch name {
	case "legalized":
		p.Legalized = true
	case "failedisel":
		p.FailedISel = true
	case "optnone":
		p.OptNone = true
	case "optsize":
		p.OptSize = true
	case "minsize":
		p.MinSize = true
	default:
		return false
	}
	return true
}
