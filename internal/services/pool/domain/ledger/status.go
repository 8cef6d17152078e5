package ledger

import (
	"fmt"
	"strings"
)

// PoolStatus is the lifecycle state of a pool.
type PoolStatus uint8

const (
	StatusUnspecified PoolStatus = iota
	StatusOpen
	StatusFunding
	StatusLocked
	StatusDistributing
	StatusClosed
	StatusCancelled
)

var statusNames = map[PoolStatus]string{
	StatusUnspecified:  "UNSPECIFIED",
	StatusOpen:         "OPEN",
	StatusFunding:      "FUNDING",
	StatusLocked:       "LOCKED",
	StatusDistributing: "DISTRIBUTING",
	StatusClosed:       "CLOSED",
	StatusCancelled:    "CANCELLED",
}

func (s PoolStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("STATUS(%d)", uint8(s))
}

// AcceptsContributions reports whether contributions may be admitted.
func (s PoolStatus) AcceptsContributions() bool {
	return s == StatusOpen || s == StatusFunding
}

// Terminal reports whether no further transitions are possible.
func (s PoolStatus) Terminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// ParseStatus parses a status name case-insensitively.
func ParseStatus(value string) (PoolStatus, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	normalized = strings.TrimPrefix(normalized, "STATUS_")
	for status, name := range statusNames {
		if status != StatusUnspecified && name == normalized {
			return status, nil
		}
	}
	return StatusUnspecified, fmt.Errorf("unknown pool status %q", value)
}
