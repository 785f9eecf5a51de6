package queryir

// Query is a run-log query. Sealed: only Select implements it.
type Query interface {
	queryNode()
}

// Predicate filters rows. Sealed: Equals, And and Or implement it.
type Predicate interface {
	predicateNode()
}

// Value is a literal compared against a column.
type Value interface {
	valueNode()
}

// String is a text literal.
type String string

func (String) valueNode() {}

// Int is an integer literal.
type Int int64

func (Int) valueNode() {}

// Select reads rows of one table.
//
// An empty Columns selects every column of the table in schema order.
// Results are always ordered by the table's logical clock.
type Select struct {
	From    string
	Filter  Predicate // nil matches every row
	Columns []string
}

func (Select) queryNode() {}

// Equals is <field> = <value>.
type Equals struct {
	Field string
	Value Value
}

func (Equals) predicateNode() {}

// And is true when every predicate is. An empty And is true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or is true when any predicate is. An empty Or is false.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Conj builds an And of the non-nil predicates, collapsing the trivial
// cases: no predicates gives nil and a single one is returned as is.
func Conj(preds ...Predicate) Predicate {
	var kept []Predicate
	for _, p := range preds {
		if p != nil {
			kept = append(kept, p)
		}
	}
	switch len(kept) {
	case 0:
		return nil
	case 1:
		return kept[0]
	}
	return And{Predicates: kept}
}

// AnyOf builds an Or of field = value for each value. One value gives a
// plain Equals; none gives nil.
func AnyOf(field string, values ...string) Predicate {
	switch len(values) {
	case 0:
		return nil
	case 1:
		return Equals{Field: field, Value: String(values[0])}
	}
	preds := make([]Predicate, len(values))
	for i, v := range values {
		preds[i] = Equals{Field: field, Value: String(v)}
	}
	return Or{Predicates: preds}
}
