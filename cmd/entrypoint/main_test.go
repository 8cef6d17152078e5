package main

import (
	"context"
	"errors"
	"os/exec"
	"testing"
	"time"

	"github.com/louisbranch/cellarpool/internal/platform/logging"
)

// Nil writers send child output to the null device, so Wait never blocks on
// a pipe held open by a grandchild.
func newTestSupervisor(grace time.Duration) *supervisor {
	return &supervisor{logger: logging.Nop(), grace: grace}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "clean exit", want: 0},
		{name: "plain error", err: errors.New("boom"), want: 1},
		{name: "child status", err: exec.Command("sh", "-c", "exit 3").Run(), want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestChildSpecs(t *testing.T) {
	env := map[string]string{"CELLARPOOL_MCP_POOL_ADDR": "pool:9000"}
	specs := childSpecs(func(key string) string { return env[key] })
	if len(specs) != 2 || specs[0].name != "pool" || specs[1].name != "mcp" {
		t.Fatalf("expected pool then mcp, got %+v", specs)
	}
	if specs[0].args[0] != "-addr=pool:9000" {
		t.Fatalf("expected pool addr override, got %v", specs[0].args)
	}
	want := []string{"-transport=http", "-http-addr=" + defaultMcpHTTPAddr, "-addr=pool:9000"}
	for i, arg := range want {
		if specs[1].args[i] != arg {
			t.Fatalf("expected mcp args %v, got %v", want, specs[1].args)
		}
	}
}

func TestSupervisorPropagatesFirstExit(t *testing.T) {
	s := newTestSupervisor(5 * time.Second)
	specs := []childSpec{
		{name: "pool", path: "sleep", args: []string{"30"}},
		{name: "mcp", path: "sh", args: []string{"-c", "exit 3"}},
	}
	start := time.Now()
	if code := s.run(context.Background(), specs); code != 3 {
		t.Fatalf("expected exit code 3, got %d", code)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("expected sleeping child to be terminated, took %v", elapsed)
	}
}

func TestSupervisorStopsOnCancel(t *testing.T) {
	s := newTestSupervisor(5 * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	specs := []childSpec{
		{name: "pool", path: "sleep", args: []string{"30"}},
		{name: "mcp", path: "sleep", args: []string{"30"}},
	}
	if code := s.run(ctx, specs); code != 0 {
		t.Fatalf("expected clean shutdown, got %d", code)
	}
}

func TestSupervisorKillsAfterGrace(t *testing.T) {
	s := newTestSupervisor(100 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	specs := []childSpec{{name: "stubborn", path: "sh", args: []string{"-c", "trap '' TERM; sleep 30"}}}
	start := time.Now()
	s.run(ctx, specs)
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("expected kill after grace, took %v", elapsed)
	}
}

func TestSupervisorStartFailure(t *testing.T) {
	s := newTestSupervisor(time.Second)
	specs := []childSpec{
		{name: "pool", path: "sleep", args: []string{"30"}},
		{name: "mcp", path: "/nonexistent/mcp"},
	}
	if code := s.run(context.Background(), specs); code != 1 {
		t.Fatalf("expected start failure code 1, got %d", code)
	}
}
