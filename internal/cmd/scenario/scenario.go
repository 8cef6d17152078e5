// Package scenario parses scenario command flags and runs YAML pool scenarios.
package scenario

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"time"

	entrypoint "github.com/louisbranch/cellarpool/internal/platform/cmd"
	"github.com/louisbranch/cellarpool/internal/platform/logging"
	"github.com/louisbranch/cellarpool/internal/services/pool/scenario"
	"github.com/louisbranch/cellarpool/internal/services/pool/storage/integrity"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds scenario command configuration.
type Config struct {
	Scenario   string        `env:"CELLARPOOL_SCENARIO_FILE"`
	Dir        string        `env:"CELLARPOOL_SCENARIO_DIR"`
	DBDir      string        `env:"CELLARPOOL_SCENARIO_DB_DIR"`
	Assertions bool          `env:"CELLARPOOL_SCENARIO_ASSERT"  envDefault:"true"`
	Verbose    bool          `env:"CELLARPOOL_SCENARIO_VERBOSE"`
	Timeout    time.Duration `env:"CELLARPOOL_SCENARIO_TIMEOUT" envDefault:"10s"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "path to a scenario yaml file")
	fs.StringVar(&cfg.Dir, "dir", cfg.Dir, "directory of scenario yaml files")
	fs.StringVar(&cfg.DBDir, "db-dir", cfg.DBDir, "run against SQLite ledgers created here (default in-memory)")
	fs.BoolVar(&cfg.Assertions, "assert", cfg.Assertions, "enable assertions (disable to log expectations)")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable verbose logging")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "timeout per step")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the scenario command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.Scenario == "" && cfg.Dir == "" {
		return errors.New("scenario path or directory is required")
	}
	keyring, err := integrity.OptionalKeyringFromEnv()
	if err != nil {
		return err
	}

	mode := scenario.AssertionStrict
	if !cfg.Assertions {
		mode = scenario.AssertionLogOnly
	}
	runCfg := scenario.Config{
		DBDir:      cfg.DBDir,
		Keyring:    keyring,
		Timeout:    cfg.Timeout,
		Assertions: mode,
		Verbose:    cfg.Verbose,
		Logger:     newLogger(errOut),
	}
	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceScenario, entrypoint.RunOptions{Logger: runCfg.Logger}, func(ctx context.Context) error {
		target := cfg.Scenario
		if target != "" {
			err = scenario.RunFile(ctx, runCfg, target)
		} else {
			target = cfg.Dir
			err = scenario.RunDir(ctx, runCfg, target)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "scenarios passed: %s\n", target)
		return nil
	})
}

// newLogger writes console logs to w so scenario output stays separate from
// the result line.
func newLogger(w io.Writer) *logging.Logger {
	encoderCfg := zap.NewDevelopmentEncoderConfig()
	encoderCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(w), zapcore.DebugLevel)
	return logging.FromZap(zap.New(core))
}
