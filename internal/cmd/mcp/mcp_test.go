package mcp

import (
	"flag"
	"testing"
)

func TestParseConfigDefaults(t *testing.T) {
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, nil)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.PoolAddr != "localhost:8090" {
		t.Fatalf("expected default pool addr, got %q", cfg.PoolAddr)
	}
	if cfg.HTTPAddr != "localhost:8092" {
		t.Fatalf("expected default http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.Transport != "stdio" {
		t.Fatalf("expected default transport stdio, got %q", cfg.Transport)
	}
	if cfg.ActorID != "" {
		t.Fatalf("expected no default actor, got %q", cfg.ActorID)
	}
}

func TestParseConfigOverrides(t *testing.T) {
	t.Setenv("CELLARPOOL_MCP_POOL_ADDR", "env-pool")
	t.Setenv("CELLARPOOL_MCP_HTTP_ADDR", "env-http")
	t.Setenv("CELLARPOOL_MCP_ACTOR_ID", "alice")
	fs := flag.NewFlagSet("mcp", flag.ContinueOnError)
	args := []string{"-addr", "flag-pool", "-transport", "http"}
	cfg, err := ParseConfig(fs, args)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.PoolAddr != "flag-pool" {
		t.Fatalf("expected flag pool addr, got %q", cfg.PoolAddr)
	}
	if cfg.HTTPAddr != "env-http" {
		t.Fatalf("expected env http addr, got %q", cfg.HTTPAddr)
	}
	if cfg.Transport != "http" {
		t.Fatalf("expected transport http, got %q", cfg.Transport)
	}
	if cfg.ActorID != "alice" {
		t.Fatalf("expected env actor, got %q", cfg.ActorID)
	}
}
