package ledger

import (
	"math/bits"

	apperrors "github.com/louisbranch/cellarpool/internal/platform/errors"
)

// Add returns a+b or ErrArithmeticOverflow.
func Add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, apperrors.WithMetadata(apperrors.CodePoolArithmeticOverflow, "amount addition overflows", map[string]string{
			"a": formatValue(a),
			"b": formatValue(b),
		})
	}
	return sum, nil
}

// Sub returns a-b or ErrInsufficientFunds when b exceeds a.
func Sub(a, b uint64) (uint64, error) {
	diff, borrow := bits.Sub64(a, b, 0)
	if borrow != 0 {
		return 0, apperrors.WithMetadata(apperrors.CodePoolInsufficientFunds, "amount subtraction underflows", map[string]string{
			"a": formatValue(a),
			"b": formatValue(b),
		})
	}
	return diff, nil
}

// Mul returns a*b or ErrArithmeticOverflow.
func Mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 {
		return 0, apperrors.WithMetadata(apperrors.CodePoolArithmeticOverflow, "amount multiplication overflows", map[string]string{
			"a": formatValue(a),
			"b": formatValue(b),
		})
	}
	return lo, nil
}

// Sum adds every value, failing on the first overflow.
func Sum(values ...uint64) (uint64, error) {
	var total uint64
	for _, v := range values {
		next, err := Add(total, v)
		if err != nil {
			return 0, err
		}
		total = next
	}
	return total, nil
}
