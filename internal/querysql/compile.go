// Package querysql compiles queryir queries to parameterized SQLite.
package querysql

import (
	"fmt"
	"strings"

	"github.com/roach88/peephole/internal/queryir"
)

// Compile converts q to SQL text and its parameters.
//
// q is validated first, so only schema columns reach the SQL text. Values
// are always bound as parameters. Every query ends with
// ORDER BY seq ASC, rowid ASC so results are deterministic.
func Compile(q queryir.Query) (string, []any, error) {
	if err := queryir.Validate(q); err != nil {
		return "", nil, fmt.Errorf("invalid query: %w", err)
	}
	sel, ok := q.(queryir.Select)
	if !ok {
		sel = *q.(*queryir.Select)
	}

	cols := sel.Columns
	if len(cols) == 0 {
		cols = queryir.ColumnNames(sel.From)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", strings.Join(cols, ", "), sel.From)

	var params []any
	if sel.Filter != nil {
		where, p := compilePredicate(sel.Filter)
		b.WriteString(" WHERE ")
		b.WriteString(where)
		params = p
	}
	b.WriteString(" ORDER BY seq ASC, rowid ASC")
	return b.String(), params, nil
}

// compilePredicate assumes p has been validated.
func compilePredicate(p queryir.Predicate) (string, []any) {
	switch pred := p.(type) {
	case queryir.Equals:
		return compileEquals(pred)
	case *queryir.Equals:
		return compileEquals(*pred)
	case queryir.And:
		return compileJunction(pred.Predicates, " AND ", "1 = 1")
	case *queryir.And:
		return compileJunction(pred.Predicates, " AND ", "1 = 1")
	case queryir.Or:
		return compileJunction(pred.Predicates, " OR ", "1 = 0")
	case *queryir.Or:
		return compileJunction(pred.Predicates, " OR ", "1 = 0")
	}
	return "1 = 1", nil
}

func compileEquals(eq queryir.Equals) (string, []any) {
	var param any
	switch v := eq.Value.(type) {
	case queryir.String:
		param = string(v)
	case queryir.Int:
		param = int64(v)
	}
	return eq.Field + " = ?", []any{param}
}

// compileJunction parenthesises each operand so nested And/Or keep their
// grouping.
func compileJunction(preds []queryir.Predicate, sep, empty string) (string, []any) {
	if len(preds) == 0 {
		return empty, nil
	}
	parts := make([]string, 0, len(preds))
	var params []any
	for _, p := range preds {
		sql, ps := compilePredicate(p)
		if len(preds) > 1 {
			sql = "(" + sql + ")"
		}
		parts = append(parts, sql)
		params = append(params, ps...)
	}
	return strings.Join(parts, sep), params
}
