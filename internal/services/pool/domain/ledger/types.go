package ledger

import (
	"fmt"
	"strconv"
	"strings"
)

// PoolID identifies a pool. Ids are assigned sequentially starting at 1; zero
// is never a valid id.
type PoolID uint64

// String renders the id in base 10.
func (id PoolID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParsePoolID parses a base-10 pool id, rejecting zero.
func ParsePoolID(value string) (PoolID, error) {
	parsed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse pool id %q: %w", value, err)
	}
	if parsed == 0 {
		return 0, fmt.Errorf("pool id must be positive")
	}
	return PoolID(parsed), nil
}

// Address is an opaque ledger account identifier.
type Address string

// Normalize trims surrounding whitespace and lowercases. Addresses compare
// case-insensitively.
func (a Address) Normalize() Address {
	return Address(strings.ToLower(strings.TrimSpace(string(a))))
}

// IsZero reports whether the address is empty after trimming.
func (a Address) IsZero() bool {
	return a.Normalize() == ""
}

func (a Address) String() string {
	return string(a)
}
