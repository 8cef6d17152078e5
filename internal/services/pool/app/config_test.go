package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/cellarpool/internal/platform/config"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/memory"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/sqlite"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("CELLARPOOL_POOL_PORT", "9100")
	t.Setenv("CELLARPOOL_POOL_HTTP_ADDR", " OFF ")
	t.Setenv("CELLARPOOL_POOL_DB_PATH", MemoryDBPath)
	t.Setenv("CELLARPOOL_POOL_GOVERNANCE_DISTRIBUTORS", " Gov-A ,,gov-b")
	t.Setenv("CELLARPOOL_POOL_RELAY_INTERVAL", "250ms")

	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	cfg = cfg.normalized()
	if cfg.Port != 9100 {
		t.Fatalf("expected port 9100, got %d", cfg.Port)
	}
	if cfg.HTTPAddr != "" {
		t.Fatalf("expected http disabled, got %q", cfg.HTTPAddr)
	}
	if cfg.RelayInterval != 250*time.Millisecond {
		t.Fatalf("expected relay interval 250ms, got %s", cfg.RelayInterval)
	}
	got := cfg.governance()
	want := []ledger.Address{"gov-a", "gov-b"}
	if len(got) != len(want) {
		t.Fatalf("expected governance %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected governance %v, got %v", want, got)
		}
	}
}

func TestConfigHTTPAddr(t *testing.T) {
	tests := []struct {
		name  string
		value string
		set   bool
		want  string
	}{
		{name: "unset uses default", want: "localhost:8091"},
		{name: "empty falls back to default", value: "", set: true, want: "localhost:8091"},
		{name: "off disables", value: "off", set: true, want: ""},
		{name: "explicit address", value: "127.0.0.1:7000", set: true, want: "127.0.0.1:7000"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.set {
				t.Setenv("CELLARPOOL_POOL_HTTP_ADDR", tc.value)
			}
			var cfg Config
			if err := config.ParseEnv(&cfg); err != nil {
				t.Fatalf("parse env: %v", err)
			}
			if got := cfg.normalized().HTTPAddr; got != tc.want {
				t.Fatalf("expected http addr %q, got %q", tc.want, got)
			}
		})
	}
}

func TestConfigNormalizedDefaults(t *testing.T) {
	cfg := Config{}.normalized()
	if cfg.Port != defaultPort {
		t.Fatalf("expected port %d, got %d", defaultPort, cfg.Port)
	}
	if cfg.DBPath != defaultDBPath {
		t.Fatalf("expected db path %q, got %q", defaultDBPath, cfg.DBPath)
	}
	if cfg.RelayInterval != defaultRelayInterval {
		t.Fatalf("expected relay interval %s, got %s", defaultRelayInterval, cfg.RelayInterval)
	}
}

func TestOpenLedger(t *testing.T) {
	ctx := context.Background()

	mem, err := openLedger(ctx, MemoryDBPath, nil)
	if err != nil {
		t.Fatalf("open memory ledger: %v", err)
	}
	defer mem.Close()
	if _, ok := mem.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", mem)
	}

	path := filepath.Join(t.TempDir(), "nested", "pool.db")
	disk, err := openLedger(ctx, path, nil)
	if err != nil {
		t.Fatalf("open sqlite ledger: %v", err)
	}
	defer disk.Close()
	if _, ok := disk.(*sqlite.Store); !ok {
		t.Fatalf("expected sqlite store, got %T", disk)
	}
}
