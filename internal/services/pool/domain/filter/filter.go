// Package filter parses AIP-160 filter expressions over pools and journal
// events. A parsed Expr is evaluated in memory or rendered as a SQL
// condition, so both ledger backends answer the same filter the same way.
package filter

import (
	"fmt"
	"strings"
	"time"

	"go.einride.tech/aip/filtering"
	expr "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// FieldType describes a supported filter field type.
type FieldType string

const (
	// FieldString compares exactly.
	FieldString FieldType = "string"
	// FieldAddress compares lowercased and trimmed, like ledger addresses.
	FieldAddress FieldType = "address"
	// FieldEnum compares uppercased, like pool statuses.
	FieldEnum FieldType = "enum"
	// FieldInt compares unsigned amounts and ids.
	FieldInt FieldType = "int"
	// FieldTimestamp compares against timestamp("RFC3339") values.
	FieldTimestamp FieldType = "timestamp"
)

// Fields defines filterable fields and their types.
type Fields map[string]FieldType

// PoolFields are the fields ListPools filters accept.
var PoolFields = Fields{
	"issuer":       FieldAddress,
	"treasury":     FieldAddress,
	"distributor":  FieldAddress,
	"status":       FieldEnum,
	"target":       FieldInt,
	"total_raised": FieldInt,
	"deadline":     FieldTimestamp,
	"created_at":   FieldTimestamp,
}

// EventFields are the fields journal listings accept.
var EventFields = Fields{
	"type":       FieldString,
	"actor":      FieldAddress,
	"request_id": FieldString,
	"seq":        FieldInt,
	"ts":         FieldTimestamp,
}

// Expr is a parsed filter. A nil Expr matches everything.
type Expr struct {
	raw  string
	root *node
}

type nodeKind int

const (
	nodeAnd nodeKind = iota + 1
	nodeOr
	nodeCompare
)

type node struct {
	kind        nodeKind
	left, right *node

	field string
	op    string
	value any
}

// Parse parses an AIP-160 filter expression for the provided fields.
// Returns nil for an empty filter string.
func Parse(filterStr string, fields Fields) (*Expr, error) {
	filterStr = strings.TrimSpace(filterStr)
	if filterStr == "" {
		return nil, nil
	}
	decls, err := declarations(fields)
	if err != nil {
		return nil, err
	}
	parsed, err := filtering.ParseFilterString(filterStr, decls)
	if err != nil {
		return nil, fmt.Errorf("parse filter: %w", err)
	}
	root, err := compile(parsed.CheckedExpr.GetExpr(), fields)
	if err != nil {
		return nil, err
	}
	return &Expr{raw: filterStr, root: root}, nil
}

// String returns the expression as written.
func (e *Expr) String() string {
	if e == nil {
		return ""
	}
	return e.raw
}

func declarations(fields Fields) (*filtering.Declarations, error) {
	decls := []filtering.DeclarationOption{filtering.DeclareStandardFunctions()}
	for name, kind := range fields {
		switch kind {
		case FieldString, FieldAddress, FieldEnum:
			decls = append(decls, filtering.DeclareIdent(name, filtering.TypeString))
		case FieldInt:
			decls = append(decls, filtering.DeclareIdent(name, filtering.TypeInt))
		case FieldTimestamp:
			decls = append(decls, filtering.DeclareIdent(name, filtering.TypeTimestamp))
		default:
			return nil, fmt.Errorf("unsupported field type for %s", name)
		}
	}
	return filtering.NewDeclarations(decls...)
}

func compile(e *expr.Expr, fields Fields) (*node, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}
	call, ok := e.ExprKind.(*expr.Expr_CallExpr)
	if !ok {
		return nil, fmt.Errorf("unsupported expression type: %T", e.ExprKind)
	}
	switch call.CallExpr.Function {
	case "_&&_", "AND":
		return compileJunction(nodeAnd, call.CallExpr.Args, fields)
	case "_||_", "OR":
		return compileJunction(nodeOr, call.CallExpr.Args, fields)
	case "_==_", "=":
		return compileComparison(call.CallExpr.Args, fields, "=")
	case "_!=_", "!=":
		return compileComparison(call.CallExpr.Args, fields, "!=")
	case "_<_", "<":
		return compileComparison(call.CallExpr.Args, fields, "<")
	case "_<=_", "<=":
		return compileComparison(call.CallExpr.Args, fields, "<=")
	case "_>_", ">":
		return compileComparison(call.CallExpr.Args, fields, ">")
	case "_>=_", ">=":
		return compileComparison(call.CallExpr.Args, fields, ">=")
	default:
		return nil, fmt.Errorf("unsupported function: %s", call.CallExpr.Function)
	}
}

func compileJunction(kind nodeKind, args []*expr.Expr, fields Fields) (*node, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("AND/OR requires 2 arguments")
	}
	left, err := compile(args[0], fields)
	if err != nil {
		return nil, err
	}
	right, err := compile(args[1], fields)
	if err != nil {
		return nil, err
	}
	return &node{kind: kind, left: left, right: right}, nil
}

func compileComparison(args []*expr.Expr, fields Fields, op string) (*node, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("comparison requires 2 arguments")
	}
	field, err := extractFieldName(args[0])
	if err != nil {
		return nil, err
	}
	kind, ok := fields[field]
	if !ok {
		return nil, fmt.Errorf("unknown field: %s", field)
	}
	value, err := extractValue(args[1], kind)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return &node{kind: nodeCompare, field: field, op: op, value: value}, nil
}

func extractFieldName(e *expr.Expr) (string, error) {
	if e == nil {
		return "", fmt.Errorf("nil expression")
	}
	ident, ok := e.ExprKind.(*expr.Expr_IdentExpr)
	if !ok {
		return "", fmt.Errorf("expected identifier, got %T", e.ExprKind)
	}
	return ident.IdentExpr.Name, nil
}

// extractValue returns a string, int64 or time.Time depending on kind.
func extractValue(e *expr.Expr, kind FieldType) (any, error) {
	if e == nil {
		return nil, fmt.Errorf("nil expression")
	}
	switch v := e.ExprKind.(type) {
	case *expr.Expr_ConstExpr:
		return constValue(v.ConstExpr, kind)
	case *expr.Expr_CallExpr:
		if v.CallExpr.Function == "timestamp" && len(v.CallExpr.Args) == 1 && kind == FieldTimestamp {
			return timestampValue(v.CallExpr.Args[0])
		}
		return nil, fmt.Errorf("unsupported function in value position: %s", v.CallExpr.Function)
	default:
		return nil, fmt.Errorf("expected constant or timestamp, got %T", v)
	}
}

func constValue(c *expr.Constant, kind FieldType) (any, error) {
	if c == nil {
		return nil, fmt.Errorf("nil constant")
	}
	switch v := c.ConstantKind.(type) {
	case *expr.Constant_StringValue:
		switch kind {
		case FieldAddress:
			return strings.ToLower(strings.TrimSpace(v.StringValue)), nil
		case FieldEnum:
			return strings.ToUpper(strings.TrimSpace(v.StringValue)), nil
		case FieldString:
			return v.StringValue, nil
		}
	case *expr.Constant_Int64Value:
		if kind == FieldInt {
			return v.Int64Value, nil
		}
	case *expr.Constant_Uint64Value:
		if kind == FieldInt && v.Uint64Value <= 1<<63-1 {
			return int64(v.Uint64Value), nil
		}
	}
	return nil, fmt.Errorf("unsupported constant type: %T", c.ConstantKind)
}

func timestampValue(e *expr.Expr) (time.Time, error) {
	c, ok := e.GetExprKind().(*expr.Expr_ConstExpr)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp argument must be a constant string")
	}
	s, ok := c.ConstExpr.GetConstantKind().(*expr.Constant_StringValue)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp argument must be a string")
	}
	t, err := time.Parse(time.RFC3339Nano, s.StringValue)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp format: %s", s.StringValue)
	}
	return t.UTC(), nil
}
