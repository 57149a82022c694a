package queryir

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/rps/internal/ir"
)

// ValidationResult lists every problem found in a query.
type ValidationResult struct {
	Problems []string
}

// Valid reports whether no problems were found.
func (r ValidationResult) Valid() bool {
	return len(r.Problems) == 0
}

// Err returns the problems as one error, or nil for a valid query.
func (r ValidationResult) Err() error {
	if r.Valid() {
		return nil
	}
	return errors.New("invalid query: " + strings.Join(r.Problems, "; "))
}

// Validate checks a query against Catalog:
//  1. The table must be known
//  2. Selected and filtered fields must be columns of that table
//  3. Filter values must be IRString, IRInt or IRBool
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{}
	v.validateQuery(query)
	return ValidationResult{Problems: v.problems}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case *Select:
		if query == nil {
			v.addProblem("nil query")
			return
		}
		v.validateSelect(*query)
	case nil:
		v.addProblem("nil query")
	default:
		v.addProblem("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	table, ok := Catalog[sel.From]
	if !ok {
		v.addProblem("unknown table %q", sel.From)
		return
	}

	seen := make(map[string]bool, len(sel.Fields))
	for _, f := range sel.Fields {
		if !table.HasColumn(f) {
			v.addProblem("unknown column %q in %s", f, table.Name)
		}
		if seen[f] {
			v.addProblem("column %q selected twice", f)
		}
		seen[f] = true
	}

	v.validatePredicate(table, sel.Filter)
}

func (v *validator) validatePredicate(table Table, p Predicate) {
	switch pred := p.(type) {
	case nil:
		// no filter
	case Equals:
		v.validateEquals(table, pred)
	case *Equals:
		v.validateEquals(table, *pred)
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(table, sub)
		}
	case *And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(table, sub)
		}
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}

func (v *validator) validateEquals(table Table, eq Equals) {
	if !table.HasColumn(eq.Field) {
		v.addProblem("unknown column %q in %s", eq.Field, table.Name)
	}
	switch eq.Value.(type) {
	case ir.IRString, ir.IRInt, ir.IRBool:
	case ir.IRNull, nil:
		v.addProblem("column %q compared to null", eq.Field)
	default:
		v.addProblem("column %q compared to %T; want string, integer or bool", eq.Field, eq.Value)
	}
}
