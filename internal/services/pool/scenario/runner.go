package scenario

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/louisbranch/cellarpool/internal/platform/logging"
	"github.com/louisbranch/cellarpool/internal/platform/requestctx"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/engine"
	"github.com/louisbranch/cellarpool/internal/services/pool/domain/ledger"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/integrity"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/memory"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/sqlite"
)

// Config controls scenario execution.
type Config struct {
	// DBDir runs each scenario against a fresh SQLite ledger created under
	// it. Empty uses the in-memory ledger.
	DBDir      string
	Keyring    *integrity.Keyring
	Timeout    time.Duration
	Assertions AssertionMode
	Verbose    bool
	Logger     *logging.Logger
}

// DefaultConfig returns default runner configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:    10 * time.Second,
		Assertions: AssertionStrict,
	}
}

// Runner executes scenarios against a fresh engine per scenario.
type Runner struct {
	cfg        Config
	assertions Assertions
	logger     *logging.Logger
	timeout    time.Duration
}

// NewRunner prepares a scenario runner.
func NewRunner(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Runner{
		cfg:        cfg,
		assertions: Assertions{Mode: cfg.Assertions, Logger: logger},
		logger:     logger,
		timeout:    timeout,
	}
}

// RunFile loads and executes a scenario file.
func RunFile(ctx context.Context, cfg Config, path string) error {
	scenario, err := LoadScenarioFromFile(path)
	if err != nil {
		return err
	}
	return NewRunner(cfg).RunScenario(ctx, scenario)
}

// RunDir executes every scenario file of dir and joins their failures.
func RunDir(ctx context.Context, cfg Config, dir string) error {
	paths, err := ListScenarioFiles(dir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no scenario files in %s", dir)
	}
	runner := NewRunner(cfg)
	var errs []error
	for _, path := range paths {
		scenario, err := LoadScenarioFromFile(path)
		if err == nil {
			err = runner.RunScenario(ctx, scenario)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", filepath.Base(path), err))
		}
	}
	return errors.Join(errs...)
}

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time { return c.now }

type scenarioState struct {
	engine *engine.Engine
	clock  *clock
	pools  map[string]ledger.PoolID
}

// RunScenario executes the scenario steps and checks journal consistency of
// every pool it created.
func (r *Runner) RunScenario(ctx context.Context, scenario *Scenario) error {
	if scenario == nil {
		return errors.New("scenario is required")
	}
	store, err := r.openLedger(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	state := &scenarioState{
		clock: &clock{now: scenario.Start},
		pools: map[string]ledger.PoolID{},
	}
	governance := make([]ledger.Address, 0, len(scenario.Governance))
	for _, g := range scenario.Governance {
		governance = append(governance, ledger.Address(g).Normalize())
	}
	state.engine, err = engine.New(engine.Config{
		Ledger:     store,
		Now:        state.clock.Now,
		Logger:     r.logger.With("scenario", scenario.Name),
		Governance: governance,
		Keyring:    r.cfg.Keyring,
	})
	if err != nil {
		return fmt.Errorf("new engine: %w", err)
	}

	r.logf("scenario start: %s (%d steps)", scenario.Name, len(scenario.Steps))
	for index, step := range scenario.Steps {
		stepNumber := index + 1
		stepStart := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, r.timeout)
		stepCtx = requestctx.WithRequestID(stepCtx, fmt.Sprintf("%s#%d", scenario.Name, stepNumber))
		err := r.runStep(stepCtx, state, step)
		cancel()
		if err != nil {
			return fmt.Errorf("step %d (%s): %w", stepNumber, step.Action, err)
		}
		r.logf("step %d/%d done: %s (%s)", stepNumber, len(scenario.Steps), step.Action, time.Since(stepStart))
	}

	aliases := make([]string, 0, len(state.pools))
	for alias := range state.pools {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		if err := r.checkConsistency(ctx, state, state.pools[alias]); err != nil {
			return fmt.Errorf("pool %q: %w", alias, err)
		}
	}
	r.logf("scenario done: %s", scenario.Name)
	return nil
}

func (r *Runner) openLedger(ctx context.Context) (storage.Ledger, error) {
	if r.cfg.DBDir == "" {
		return memory.New(memory.WithKeyring(r.cfg.Keyring)), nil
	}
	if err := os.MkdirAll(r.cfg.DBDir, 0o755); err != nil {
		return nil, fmt.Errorf("create scenario db dir: %w", err)
	}
	dir, err := os.MkdirTemp(r.cfg.DBDir, "scenario-*")
	if err != nil {
		return nil, fmt.Errorf("create scenario db dir: %w", err)
	}
	store, err := sqlite.Open(ctx, filepath.Join(dir, "pool.db"), sqlite.WithKeyring(r.cfg.Keyring))
	if err != nil {
		return nil, fmt.Errorf("open scenario sqlite store: %w", err)
	}
	return store, nil
}

func (r *Runner) failf(format string, args ...any) error {
	return r.assertions.Failf(format, args...)
}

func (r *Runner) assertf(format string, args ...any) error {
	return r.assertions.Assertf(format, args...)
}

func (r *Runner) logf(format string, args ...any) {
	if !r.cfg.Verbose {
		return
	}
	r.logger.Printf(format, args...)
}
