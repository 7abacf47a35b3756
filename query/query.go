// Package query defines the immutable query descriptors evaluated by the
// docgo execution engine.
//
// A Query describes what to match; it never describes how. Whether a query is
// answered by an index seek or a full collection scan is decided by the index
// traversal layer at execution time.
package query

import (
	"fmt"

	"github.com/hupe1980/docgo/document"
)

// Operator is a comparison operator applied to a document field.
type Operator int

// Supported comparison operators.
const (
	OpEq Operator = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
)

// String returns a string representation of the operator.
func (op Operator) String() string {
	switch op {
	case OpEq:
		return "eq"
	case OpNe:
		return "ne"
	case OpGt:
		return "gt"
	case OpGte:
		return "gte"
	case OpLt:
		return "lt"
	case OpLte:
		return "lte"
	case OpIn:
		return "in"
	default:
		return "unknown"
	}
}

// Query is an immutable descriptor of a single-field condition, or the
// match-everything query.
type Query struct {
	field string
	op    Operator
	value any
	all   bool
}

// All returns the query matching every document.
func All() *Query {
	return &Query{all: true}
}

// Eq matches documents whose field equals v.
func Eq(field string, v any) *Query { return &Query{field: field, op: OpEq, value: v} }

// Ne matches documents whose field does not equal v.
func Ne(field string, v any) *Query { return &Query{field: field, op: OpNe, value: v} }

// Gt matches documents whose field is greater than v.
func Gt(field string, v any) *Query { return &Query{field: field, op: OpGt, value: v} }

// Gte matches documents whose field is greater than or equal to v.
func Gte(field string, v any) *Query { return &Query{field: field, op: OpGte, value: v} }

// Lt matches documents whose field is less than v.
func Lt(field string, v any) *Query { return &Query{field: field, op: OpLt, value: v} }

// Lte matches documents whose field is less than or equal to v.
func Lte(field string, v any) *Query { return &Query{field: field, op: OpLte, value: v} }

// In matches documents whose field equals one of vs.
func In(field string, vs ...any) *Query { return &Query{field: field, op: OpIn, value: vs} }

// ByID matches the document with the given identifier.
func ByID(id string) *Query { return Eq(document.IDField, id) }

// MatchAll reports whether the query matches every document.
func (q *Query) MatchAll() bool { return q.all }

// Field returns the queried field path.
func (q *Query) Field() string { return q.field }

// Operator returns the comparison operator.
func (q *Query) Operator() Operator { return q.op }

// Value returns the comparison operand.
func (q *Query) Value() any { return q.value }

// String returns a compact description, used in logs.
func (q *Query) String() string {
	if q.all {
		return "all"
	}
	return fmt.Sprintf("%s %s %v", q.field, q.op, q.value)
}

// Match evaluates the query predicate against a fully materialized document.
func (q *Query) Match(doc document.Document) bool {
	if q.all {
		return true
	}

	actual, ok := doc.Lookup(q.field)
	if !ok {
		return false
	}

	switch q.op {
	case OpEq:
		c, ok := Compare(actual, q.value)
		return ok && c == 0
	case OpNe:
		c, ok := Compare(actual, q.value)
		return !ok || c != 0
	case OpGt:
		c, ok := Compare(actual, q.value)
		return ok && c > 0
	case OpGte:
		c, ok := Compare(actual, q.value)
		return ok && c >= 0
	case OpLt:
		c, ok := Compare(actual, q.value)
		return ok && c < 0
	case OpLte:
		c, ok := Compare(actual, q.value)
		return ok && c <= 0
	case OpIn:
		vs, ok := q.value.([]any)
		if !ok {
			return false
		}
		for _, v := range vs {
			if c, ok := Compare(actual, v); ok && c == 0 {
				return true
			}
		}
		return false
	default:
		return false
	}
}
