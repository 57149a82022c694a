// Package queryir is the typed query representation for reads of the rps
// tables (games, balances, events, transfers).
//
// Reads that take their filter from outside the program (scenario
// assertions, "rps list" flags) are built as a Select instead of a SQL
// string. The query names its table and columns, and every literal is an
// ir.IRValue:
//
//	[flags / scenario YAML] → [Select] → Validate → [querysql] → SQL + params
//
// Validate checks the query against Catalog, so table and column names
// can never carry SQL, and rejects values the backend cannot bind.
//
// SEALED INTERFACES:
//
// Query and Predicate are sealed interfaces using the marker method pattern.
// Only types in this package implement them, so backends can switch
// exhaustively:
//
//	switch p := pred.(type) {
//	case Equals:
//	case And:
//	}
//
// The fragment is deliberately small: one table per query, equality and
// conjunction only. There are no NULLs, no OR and no aggregation.
package queryir
