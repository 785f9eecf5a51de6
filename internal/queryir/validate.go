package queryir

import (
	"errors"
	"fmt"
	"slices"
)

// Column describes one queryable column.
type Column struct {
	Name string
	Int  bool // integer column; text otherwise
}

// Tables is the run-log schema visible to queries, columns in schema
// order. Each table's ordering column is "seq".
var Tables = map[string][]Column{
	"runs": {
		{Name: "id"}, {Name: "seq", Int: true}, {Name: "function"},
		{Name: "combiner"}, {Name: "target"}, {Name: "status"},
		{Name: "input_hash"}, {Name: "output_hash"},
		{Name: "steps", Int: true}, {Name: "rewrites", Int: true},
		{Name: "dead_erased", Int: true},
	},
	"firings": {
		{Name: "run_id"}, {Name: "seq", Int: true}, {Name: "step", Int: true},
		{Name: "rule_id"}, {Name: "rule_number", Int: true},
		{Name: "instr", Int: true}, {Name: "opcode"}, {Name: "text"},
	},
	"events": {
		{Name: "run_id"}, {Name: "seq", Int: true}, {Name: "kind"},
		{Name: "instr", Int: true}, {Name: "text"}, {Name: "rule_id"},
	},
}

// ColumnNames returns the columns of table in schema order.
func ColumnNames(table string) []string {
	cols := Tables[table]
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func lookupColumn(table, name string) (Column, bool) {
	i := slices.IndexFunc(Tables[table], func(c Column) bool { return c.Name == name })
	if i < 0 {
		return Column{}, false
	}
	return Tables[table][i], true
}

// Validate checks that q names a known table and known columns, and that
// every literal has the column's type. All problems are returned joined.
func Validate(q Query) error {
	v := &validator{}
	v.query(q)
	return errors.Join(v.errs...)
}

type validator struct {
	table string
	errs  []error
}

func (v *validator) fail(format string, args ...any) {
	v.errs = append(v.errs, fmt.Errorf(format, args...))
}

func (v *validator) query(q Query) {
	var sel Select
	switch query := q.(type) {
	case Select:
		sel = query
	case *Select:
		if query == nil {
			v.fail("nil query")
			return
		}
		sel = *query
	case nil:
		v.fail("nil query")
		return
	default:
		v.fail("unsupported query type %T", q)
		return
	}

	if _, ok := Tables[sel.From]; !ok {
		v.fail("unknown table %q", sel.From)
		return
	}
	v.table = sel.From
	for _, c := range sel.Columns {
		if _, ok := lookupColumn(sel.From, c); !ok {
			v.fail("unknown column %s.%s", sel.From, c)
		}
	}
	v.predicate(sel.Filter)
}

func (v *validator) predicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.equals(pred)
	case *Equals:
		v.equals(*pred)
	case And:
		for _, sub := range pred.Predicates {
			v.predicate(sub)
		}
	case *And:
		v.predicate(*pred)
	case Or:
		for _, sub := range pred.Predicates {
			v.predicate(sub)
		}
	case *Or:
		v.predicate(*pred)
	default:
		v.fail("unsupported predicate type %T", p)
	}
}

func (v *validator) equals(eq Equals) {
	col, ok := lookupColumn(v.table, eq.Field)
	if !ok {
		v.fail("unknown column %s.%s", v.table, eq.Field)
		return
	}
	switch eq.Value.(type) {
	case String:
		if col.Int {
			v.fail("column %s.%s is an integer, compared to a string", v.table, eq.Field)
		}
	case Int:
		if !col.Int {
			v.fail("column %s.%s is text, compared to an integer", v.table, eq.Field)
		}
	default:
		v.fail("column %s.%s compared to unsupported value %T", v.table, eq.Field, eq.Value)
	}
}
