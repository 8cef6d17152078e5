package scenario

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/integrity"
)

const createStep = `
  - action: create
    pool: p
    as: issuer
    params:
      target: 1000
      min_contribution: 10
      max_contribution: 800
      deadline: 72h
`

func mustParse(t *testing.T, body string) *Scenario {
	t.Helper()
	scenario, err := ParseScenario([]byte(body))
	if err != nil {
		t.Fatalf("parse scenario: %v", err)
	}
	return scenario
}

func TestRunFixtures(t *testing.T) {
	if err := RunDir(context.Background(), DefaultConfig(), "testdata"); err != nil {
		t.Fatalf("run fixtures: %v", err)
	}
}

func TestRunFixturesOnSQLite(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DBDir = t.TempDir()
	if err := RunDir(context.Background(), cfg, "testdata"); err != nil {
		t.Fatalf("run fixtures on sqlite: %v", err)
	}
	entries, err := os.ReadDir(cfg.DBDir)
	if err != nil {
		t.Fatalf("read db dir: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected one database per scenario, got %d", len(entries))
	}
}

func TestRunFileWithSignedJournal(t *testing.T) {
	keyring, err := integrity.NewKeyring(map[string][]byte{"k1": []byte("scenario-secret")}, "k1")
	if err != nil {
		t.Fatalf("new keyring: %v", err)
	}
	cfg := DefaultConfig()
	cfg.Keyring = keyring
	if err := RunFile(context.Background(), cfg, filepath.Join("testdata", "funded_distribution.yaml")); err != nil {
		t.Fatalf("run file: %v", err)
	}
}

func TestAssertionModes(t *testing.T) {
	body := "name: mismatch\nsteps:" + createStep + `
    expect:
      status: LOCKED
      total_raised: 5
`
	strict := NewRunner(Config{Assertions: AssertionStrict})
	err := strict.RunScenario(context.Background(), mustParse(t, body))
	if err == nil || !strings.Contains(err.Error(), "expected status LOCKED, got OPEN") {
		t.Fatalf("expected status mismatch, got %v", err)
	}

	logOnly := NewRunner(Config{Assertions: AssertionLogOnly})
	if err := logOnly.RunScenario(context.Background(), mustParse(t, body)); err != nil {
		t.Fatalf("expected log-only run to pass, got %v", err)
	}
}

func TestExpectedErrorMismatch(t *testing.T) {
	tests := []struct {
		name string
		step string
		want string
	}{
		{
			name: "unexpected success",
			step: "\n  - {action: contribute, pool: p, as: alice, amount: 100, error: POOL_OUT_OF_BOUNDS}\n",
			want: "expected error POOL_OUT_OF_BOUNDS, got success",
		},
		{
			name: "wrong code",
			step: "\n  - {action: contribute, pool: p, as: alice, amount: 5, error: pool_unauthorized}\n",
			want: "expected error POOL_UNAUTHORIZED, got POOL_OUT_OF_BOUNDS",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewRunner(DefaultConfig()).RunScenario(context.Background(), mustParse(t, "steps:"+createStep+tt.step))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q, got %v", tt.want, err)
			}
		})
	}
}

func TestUnexpectedErrorFailsEvenWhenLogOnly(t *testing.T) {
	body := "steps:" + createStep + "\n  - {action: contribute, pool: p, as: alice, amount: 5}\n"
	err := NewRunner(Config{Assertions: AssertionLogOnly}).RunScenario(context.Background(), mustParse(t, body))
	if !errors.Is(err, ledger.ErrOutOfBounds) {
		t.Fatalf("expected out of bounds failure, got %v", err)
	}
	if !strings.Contains(err.Error(), "step 2 (contribute)") {
		t.Fatalf("expected failing step in error, got %v", err)
	}
}

func TestUnknownPoolAlias(t *testing.T) {
	body := "steps:\n  - {action: lock, pool: ghost, as: issuer}\n"
	err := NewRunner(DefaultConfig()).RunScenario(context.Background(), mustParse(t, body))
	if err == nil || !strings.Contains(err.Error(), `unknown pool alias "ghost"`) {
		t.Fatalf("expected unknown alias error, got %v", err)
	}
}

func TestPoolIDAddressesUnknownPool(t *testing.T) {
	body := "steps:\n  - {action: check_expiry, pool_id: 42, error: POOL_NOT_FOUND}\n"
	if err := NewRunner(DefaultConfig()).RunScenario(context.Background(), mustParse(t, body)); err != nil {
		t.Fatalf("expected not found to match, got %v", err)
	}
}

func TestParseScenarioValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "no steps", body: "name: empty\n", want: "no steps"},
		{name: "unknown action", body: "steps:\n  - {action: pause, pool: p}\n", want: `unknown action "pause"`},
		{name: "advance without duration", body: "steps:\n  - {action: advance}\n", want: "positive duration"},
		{name: "create without params", body: "steps:\n  - {action: create, pool: p}\n", want: "requires params"},
		{name: "create without alias", body: "steps:\n  - {action: create, params: {target: 1}}\n", want: "requires a pool alias"},
		{name: "lock without pool", body: "steps:\n  - {action: lock}\n", want: "requires pool or pool_id"},
		{name: "bad yaml", body: "steps: [\n", want: "decode yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected %q, got %v", tt.want, err)
			}
		})
	}
}

func TestParseScenarioDefaults(t *testing.T) {
	scenario := mustParse(t, "steps:\n  - {action: advance, duration: 90m}\n")
	if !scenario.Start.Equal(DefaultStart) {
		t.Fatalf("expected default start, got %s", scenario.Start)
	}
	if got := scenario.Steps[0].Duration.Minutes(); got != 90 {
		t.Fatalf("expected 90 minutes, got %v", got)
	}
}

func TestLoadScenarioFromFileNamesByFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tiny.yaml")
	if err := os.WriteFile(path, []byte("steps:\n  - {action: advance, duration: 1h}\n"), 0o644); err != nil {
		t.Fatalf("write scenario: %v", err)
	}
	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		t.Fatalf("load scenario: %v", err)
	}
	if scenario.Name != "tiny" {
		t.Fatalf("expected name from file, got %q", scenario.Name)
	}
}

func TestListScenarioFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("steps: []\n"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	paths, err := ListScenarioFiles(dir)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(paths) != 2 || filepath.Base(paths[0]) != "a.yml" || filepath.Base(paths[1]) != "b.yaml" {
		t.Fatalf("expected a.yml and b.yaml, got %v", paths)
	}
}

func TestRunDirReportsEmptyDir(t *testing.T) {
	if err := RunDir(context.Background(), DefaultConfig(), t.TempDir()); err == nil {
		t.Fatal("expected error for empty scenario dir")
	}
}
