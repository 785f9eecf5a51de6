package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestValidate_AcceptsKnownColumns tests a well-formed firing filter.
func TestValidate_AcceptsKnownColumns(t *testing.T) {
	q := Select{
		From: "firings",
		Filter: And{Predicates: []Predicate{
			Equals{Field: "run_id", Value: String("run-1")},
			Equals{Field: "rule_number", Value: Int(2)},
		}},
		Columns: []string{"seq", "rule_id"},
	}
	require.NoError(t, Validate(q))
	require.NoError(t, Validate(&q))
}

// TestValidate_Rejects tests each rejected shape.
func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name string
		q    Query
		want string
	}{
		{"nil", nil, "nil query"},
		{"unknown table", Select{From: "invocations"}, `unknown table "invocations"`},
		{"unknown column", Select{From: "events", Columns: []string{"rule"}}, "unknown column events.rule"},
		{"unknown filter column", Select{From: "events", Filter: Equals{Field: "opcode", Value: String("G_MUL")}}, "unknown column events.opcode"},
		{"string for int", Select{From: "firings", Filter: Equals{Field: "step", Value: String("1")}}, "is an integer"},
		{"int for text", Select{From: "firings", Filter: Or{Predicates: []Predicate{Equals{Field: "rule_id", Value: Int(1)}}}}, "is text"},
		{"nil value", Select{From: "runs", Filter: Equals{Field: "status"}}, "unsupported value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.q)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

// TestValidate_JoinsAllErrors tests that every defect is reported.
func TestValidate_JoinsAllErrors(t *testing.T) {
	q := Select{
		From:    "runs",
		Columns: []string{"nope"},
		Filter:  Equals{Field: "also_nope", Value: String("x")},
	}
	err := Validate(q)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runs.nope")
	assert.Contains(t, err.Error(), "runs.also_nope")
}

// TestConj_Collapses tests the trivial cases of Conj.
func TestConj_Collapses(t *testing.T) {
	eq := Equals{Field: "kind", Value: String("created")}
	assert.Nil(t, Conj())
	assert.Nil(t, Conj(nil, nil))
	assert.Equal(t, eq, Conj(nil, eq))
	assert.Equal(t, And{Predicates: []Predicate{eq, eq}}, Conj(eq, nil, eq))
}

// TestAnyOf_Shapes tests AnyOf for zero, one and many values.
func TestAnyOf_Shapes(t *testing.T) {
	assert.Nil(t, AnyOf("rule_id"))
	assert.Equal(t, Equals{Field: "rule_id", Value: String("mul_const")}, AnyOf("rule_id", "mul_const"))

	p := AnyOf("rule_id", "mul_const", "copy_prop")
	or, ok := p.(Or)
	require.True(t, ok)
	assert.Len(t, or.Predicates, 2)
}

// TestColumnNames_SchemaOrder tests that columns keep schema order.
func TestColumnNames_SchemaOrder(t *testing.T) {
	assert.Equal(t, []string{"run_id", "seq", "kind", "instr", "text", "rule_id"}, ColumnNames("events"))
	assert.Empty(t, ColumnNames("missing"))
}
