package combine

import (
	"strconv"
	"strings"
)

// RuleFilter selects which rules of a table run.
//
// Entries are rule IDs, rule numbers, inclusive number ranges "N-M", or "*"
// for every rule. When OnlyEnable is non-empty every rule starts disabled
// and the listed ones are enabled; Disable is applied afterwards. A Disable
// entry prefixed with '!' re-enables instead.
type RuleFilter struct {
	Disable    []string `json:"disable,omitempty"`
	OnlyEnable []string `json:"only_enable,omitempty"`
}

// IsZero reports whether the filter leaves every rule enabled.
func (f RuleFilter) IsZero() bool {
	return len(f.Disable) == 0 && len(f.OnlyEnable) == 0
}

// ParseRuleFilter reads the command-line form: a comma-separated list where
// "-entry" disables and "entry" or "+entry" only-enables.
func ParseRuleFilter(s string) (RuleFilter, error) {
	var f RuleFilter
	for _, raw := range strings.Split(s, ",") {
		e := strings.TrimSpace(raw)
		switch {
		case e == "":
			if strings.TrimSpace(s) == "" {
				return f, nil
			}
			return RuleFilter{}, configErrorf(raw, "empty filter entry")
		case strings.HasPrefix(e, "-"):
			if e == "-" {
				return RuleFilter{}, configErrorf(raw, "empty filter entry")
			}
			f.Disable = append(f.Disable, e[1:])
		case strings.HasPrefix(e, "+"):
			if e == "+" {
				return RuleFilter{}, configErrorf(raw, "empty filter entry")
			}
			f.OnlyEnable = append(f.OnlyEnable, e[1:])
		default:
			f.OnlyEnable = append(f.OnlyEnable, e)
		}
	}
	return f, nil
}

// Resolve returns the enabled flag of every rule in t.
func (f RuleFilter) Resolve(t *Table) ([]bool, error) {
	enabled := make([]bool, t.Len())
	for i := range enabled {
		enabled[i] = len(f.OnlyEnable) == 0
	}
	for _, e := range f.OnlyEnable {
		if strings.HasPrefix(e, "!") {
			return nil, configErrorf(e, "'!' is only meaningful in a disable list")
		}
		nums, err := t.resolveEntry(e)
		if err != nil {
			return nil, err
		}
		for _, n := range nums {
			enabled[n] = true
		}
	}
	for _, e := range f.Disable {
		on := false
		if rest, ok := strings.CutPrefix(e, "!"); ok {
			on, e = true, rest
		}
		nums, err := t.resolveEntry(e)
		if err != nil {
			return nil, err
		}
		for _, n := range nums {
			enabled[n] = on
		}
	}
	return enabled, nil
}

func (t *Table) resolveEntry(e string) ([]int, error) {
	if e == "" {
		return nil, configErrorf(e, "empty filter entry")
	}
	if e == "*" {
		all := make([]int, t.Len())
		for i := range all {
			all[i] = i
		}
		return all, nil
	}
	if i, ok := t.byID[e]; ok {
		return []int{i}, nil
	}
	if lo, hi, ok := strings.Cut(e, "-"); ok {
		a, errA := strconv.Atoi(lo)
		b, errB := strconv.Atoi(hi)
		if errA != nil || errB != nil {
			return nil, configErrorf(e, "unknown rule identifier")
		}
		if a > b || a < 0 || b >= t.Len() {
			return nil, configErrorf(e, "rule range out of bounds (table has %d rules)", t.Len())
		}
		out := make([]int, 0, b-a+1)
		for n := a; n <= b; n++ {
			out = append(out, n)
		}
		return out, nil
	}
	if n, err := strconv.Atoi(e); err == nil {
		if n < 0 || n >= t.Len() {
			return nil, configErrorf(e, "rule number out of bounds (table has %d rules)", t.Len())
		}
		return []int{n}, nil
	}
	return nil, configErrorf(e, "unknown rule identifier")
}
