package config

import (
	"strings"
	"testing"
)

type envTestConfig struct {
	Port         int      `env:"CELLARPOOL_TEST_PORT" envDefault:"123"`
	Distributors []string `env:"CELLARPOOL_TEST_DISTRIBUTORS" envSeparator:","`
}

type prefixedTestConfig struct {
	Addr string `env:"ADDR" envDefault:"localhost:8090"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
	if len(cfg.Distributors) != 0 {
		t.Fatalf("expected no distributors, got %v", cfg.Distributors)
	}
}

func TestParseEnvList(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("CELLARPOOL_TEST_DISTRIBUTORS", "gov-a,gov-b")

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if len(cfg.Distributors) != 2 || cfg.Distributors[1] != "gov-b" {
		t.Fatalf("expected two distributors, got %v", cfg.Distributors)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("CELLARPOOL_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

func TestParseEnvWithPrefix(t *testing.T) {
	var cfg prefixedTestConfig
	t.Setenv("CELLARPOOL_TESTMCP_ADDR", "pool:9000")

	if err := ParseEnvWithPrefix(&cfg, "CELLARPOOL_TESTMCP_"); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Addr != "pool:9000" {
		t.Fatalf("expected prefixed address, got %q", cfg.Addr)
	}
}
