package filter

import (
	"fmt"
	"time"
)

// SQLCondition represents a SQL WHERE clause fragment with parameters.
type SQLCondition struct {
	// Clause is the SQL WHERE clause (e.g., "issuer = ?").
	Clause string
	// Params are the positional parameters for the clause.
	Params []any
}

// Columns maps filter field names to SQL column names.
type Columns map[string]string

// SQL renders the expression against columns. Timestamps are bound through
// encodeTime so they match the column encoding.
func (e *Expr) SQL(columns Columns, encodeTime func(time.Time) any) (SQLCondition, error) {
	if e == nil || e.root == nil {
		return SQLCondition{}, nil
	}
	return e.root.sql(columns, encodeTime)
}

func (n *node) sql(columns Columns, encodeTime func(time.Time) any) (SQLCondition, error) {
	switch n.kind {
	case nodeAnd, nodeOr:
		left, err := n.left.sql(columns, encodeTime)
		if err != nil {
			return SQLCondition{}, err
		}
		right, err := n.right.sql(columns, encodeTime)
		if err != nil {
			return SQLCondition{}, err
		}
		joiner := "AND"
		if n.kind == nodeOr {
			joiner = "OR"
		}
		return SQLCondition{
			Clause: fmt.Sprintf("(%s %s %s)", left.Clause, joiner, right.Clause),
			Params: append(left.Params, right.Params...),
		}, nil
	case nodeCompare:
		column, ok := columns[n.field]
		if !ok {
			return SQLCondition{}, fmt.Errorf("unknown field: %s", n.field)
		}
		value := n.value
		if t, ok := value.(time.Time); ok && encodeTime != nil {
			value = encodeTime(t)
		}
		return SQLCondition{
			Clause: fmt.Sprintf("%s %s ?", column, n.op),
			Params: []any{value},
		}, nil
	default:
		return SQLCondition{}, fmt.Errorf("unsupported node kind %d", n.kind)
	}
}
