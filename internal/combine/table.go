package combine

import (
	"fmt"

	"github.com/roach88/peephole/internal/ir"
)

// Table is an ordered, opcode-indexed set of rules. Rule numbers follow
// declaration order starting at 0.
type Table struct {
	rules []Rule
	byOp  map[ir.Opcode][]int
	byID  map[string]int
}

// NewTable builds a table from rules in declaration order. IDs must be
// unique and every rule needs an anchor, a Match and an Apply.
func NewTable(rules ...Rule) (*Table, error) {
	t := &Table{
		rules: make([]Rule, len(rules)),
		byOp:  make(map[ir.Opcode][]int),
		byID:  make(map[string]int, len(rules)),
	}
	for i, r := range rules {
		switch {
		case r.ID == "":
			return nil, fmt.Errorf("rule %d has no ID", i)
		case !r.Opcode.Valid():
			return nil, fmt.Errorf("rule %s has no anchor opcode", r.ID)
		case r.Match == nil || r.Apply == nil:
			return nil, fmt.Errorf("rule %s is missing match or apply", r.ID)
		}
		if _, dup := t.byID[r.ID]; dup {
			return nil, fmt.Errorf("duplicate rule ID %q", r.ID)
		}
		r.Number = i
		t.rules[i] = r
		t.byID[r.ID] = i
		t.byOp[r.Opcode] = append(t.byOp[r.Opcode], i)
	}
	return t, nil
}

// MustTable is NewTable for rule sets known to be well formed.
func MustTable(rules ...Rule) *Table {
	t, err := NewTable(rules...)
	if err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of rules.
func (t *Table) Len() int { return len(t.rules) }

// Rules returns every rule in table order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.rules))
	copy(out, t.rules)
	return out
}

// Rule returns the rule with the given number.
func (t *Table) Rule(n int) Rule { return t.rules[n] }

// Lookup finds a rule by ID.
func (t *Table) Lookup(id string) (Rule, bool) {
	i, ok := t.byID[id]
	if !ok {
		return Rule{}, false
	}
	return t.rules[i], true
}

// ForOpcode returns the numbers of the rules anchored on op, in order.
func (t *Table) ForOpcode(op ir.Opcode) []int {
	return t.byOp[op]
}

// Anchors returns the opcodes that have at least one rule, in enum order.
func (t *Table) Anchors() []ir.Opcode {
	var out []ir.Opcode
	for _, op := range ir.Opcodes() {
		if len(t.byOp[op]) > 0 {
			out = append(out, op)
		}
	}
	return out
}
