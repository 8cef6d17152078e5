package id

import (
	"strings"
	"testing"
)

func TestNewID(t *testing.T) {
	seen := map[string]bool{}
	for range 32 {
		value, err := NewID()
		if err != nil {
			t.Fatalf("new id: %v", err)
		}
		if len(value) != 26 || !Valid(value) {
			t.Fatalf("expected 26 valid characters, got %q", value)
		}
		if seen[value] {
			t.Fatalf("duplicate id %s", value)
		}
		seen[value] = true

		raw, err := encoding.DecodeString(strings.ToUpper(value))
		if err != nil {
			t.Fatalf("decode %q: %v", value, err)
		}
		if raw[6]>>4 != 4 || raw[8]&0xC0 != 0x80 {
			t.Fatalf("expected uuid v4 layout, got % x", raw)
		}
	}
}

func TestValid(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{value: "req-1", want: true},
		{value: "funded_distribution#3", want: true},
		{value: "trace:ab.CD", want: true},
		{value: "", want: false},
		{value: "has space", want: false},
		{value: "line\nbreak", want: false},
		{value: strings.Repeat("a", MaxLength), want: true},
		{value: strings.Repeat("a", MaxLength+1), want: false},
	}
	for _, tt := range tests {
		if got := Valid(tt.value); got != tt.want {
			t.Fatalf("Valid(%q): expected %v, got %v", tt.value, tt.want, got)
		}
	}
}
