package config

import (
	"bytes"
	"testing"
)

func captureExit(t *testing.T) (*bytes.Buffer, *int) {
	t.Helper()
	buf := &bytes.Buffer{}
	code := -1
	prevStderr, prevExit := stderr, exit
	stderr = buf
	exit = func(c int) { code = c }
	t.Cleanup(func() { stderr, exit = prevStderr, prevExit })
	return buf, &code
}

func TestExitf(t *testing.T) {
	tests := []struct {
		name   string
		format string
		args   []any
		want   string
	}{
		{name: "appends newline", format: "open ledger: %v", args: []any{"disk full"}, want: "open ledger: disk full\n"},
		{name: "keeps newline", format: "bad flag\n", want: "bad flag\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, code := captureExit(t)
			Exitf(tt.format, tt.args...)
			if *code != 1 {
				t.Fatalf("expected exit code 1, got %d", *code)
			}
			if out.String() != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, out.String())
			}
		})
	}
}
