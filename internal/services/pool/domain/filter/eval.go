package filter

import (
	"fmt"
	"strings"
	"time"
)

// Resolver returns the value of a field: a string, uint64 or time.Time.
type Resolver func(name string) (any, bool)

// Match evaluates the expression against resolve.
func (e *Expr) Match(resolve Resolver) (bool, error) {
	if e == nil || e.root == nil {
		return true, nil
	}
	return e.root.eval(resolve)
}

func (n *node) eval(resolve Resolver) (bool, error) {
	switch n.kind {
	case nodeAnd:
		left, err := n.left.eval(resolve)
		if err != nil || !left {
			return false, err
		}
		return n.right.eval(resolve)
	case nodeOr:
		left, err := n.left.eval(resolve)
		if err != nil {
			return false, err
		}
		if left {
			return true, nil
		}
		return n.right.eval(resolve)
	case nodeCompare:
		value, ok := resolve(n.field)
		if !ok {
			return false, fmt.Errorf("unknown field: %s", n.field)
		}
		cmp, err := compareValues(value, n.value)
		if err != nil {
			return false, fmt.Errorf("%s: %w", n.field, err)
		}
		return applyOp(n.op, cmp)
	default:
		return false, fmt.Errorf("unsupported node kind %d", n.kind)
	}
}

func applyOp(op string, cmp int) (bool, error) {
	switch op {
	case "=":
		return cmp == 0, nil
	case "!=":
		return cmp != 0, nil
	case "<":
		return cmp < 0, nil
	case "<=":
		return cmp <= 0, nil
	case ">":
		return cmp > 0, nil
	case ">=":
		return cmp >= 0, nil
	default:
		return false, fmt.Errorf("unsupported operator: %s", op)
	}
}

func compareValues(left, right any) (int, error) {
	switch l := left.(type) {
	case string:
		r, ok := right.(string)
		if !ok {
			return 0, fmt.Errorf("type mismatch: string vs %T", right)
		}
		return strings.Compare(l, r), nil
	case uint64:
		r, ok := right.(int64)
		if !ok {
			return 0, fmt.Errorf("type mismatch: uint64 vs %T", right)
		}
		return compareUint(l, r), nil
	case time.Time:
		r, ok := right.(time.Time)
		if !ok {
			return 0, fmt.Errorf("type mismatch: time vs %T", right)
		}
		return l.Compare(r), nil
	default:
		return 0, fmt.Errorf("unsupported value type: %T", left)
	}
}

func compareUint(left uint64, right int64) int {
	switch {
	case right < 0 || left > uint64(right):
		return 1
	case left < uint64(right):
		return -1
	default:
		return 0
	}
}
