// Package id generates and validates the opaque identifiers that correlate
// requests across the pool service, its HTTP read API and the MCP bridge.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// MaxLength bounds caller-supplied identifiers.
const MaxLength = 64

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a random UUIDv4 as 26 lowercase base32 characters.
func NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(value[:])), nil
}

// Valid reports whether a caller-supplied identifier may be echoed back and
// written to logs as is.
func Valid(value string) bool {
	if value == "" || len(value) > MaxLength {
		return false
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("-_.:#", r):
		default:
			return false
		}
	}
	return true
}
