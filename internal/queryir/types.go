package queryir

import "github.com/roach88/rps/internal/ir"

// Query represents an abstract read of one table.
//
// This is a sealed interface - only types in this package implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// Predicate represents a filter condition.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: field = literal_value
//   - And: all predicates must be true
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Select is a filtered read of one table.
//
// Semantics:
//
//	SELECT <fields> FROM <from> WHERE <filter> ORDER BY <table key>
//
// Example:
//
//	Select{
//	  From: "games",
//	  Filter: And{Predicates: []Predicate{
//	    Equals{Field: "creator", Value: ir.IRString("alice")},
//	    Equals{Field: "status", Value: ir.IRString("Open")},
//	  }},
//	  Fields: []string{"game_key", "wager"},
//	}
//
// Empty Fields selects every catalog column of the table, in catalog
// order. Rows always come back in the table's stable key order.
type Select struct {
	From   string    // Table name (must be in Catalog)
	Filter Predicate // WHERE conditions (nil = no filter)
	Fields []string  // Columns to return, in order (empty = all)
}

func (Select) queryNode() {}

// Equals represents a field-equals-literal predicate.
//
//	Equals{Field: "status", Value: ir.IRString("Ended")}
//
// Value must be a scalar: IRString, IRInt or IRBool. Booleans match the
// 0/1 integer columns.
type Equals struct {
	Field string     // Column of the queried table
	Value ir.IRValue // Literal value
}

func (Equals) predicateNode() {}

// And represents a conjunction of predicates (all must be true).
// An empty And is always true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Where builds the conjunction of field = value for every entry of where,
// in sorted field order. Values are converted with ir.ToIRValue. A nil or
// empty map yields a nil Predicate.
func Where(where map[string]any) (Predicate, error) {
	if len(where) == 0 {
		return nil, nil
	}
	obj, err := ir.ToIRObject(where)
	if err != nil {
		return nil, err
	}
	preds := make([]Predicate, 0, len(obj))
	for _, field := range obj.SortedKeys() {
		preds = append(preds, Equals{Field: field, Value: obj[field]})
	}
	return And{Predicates: preds}, nil
}
