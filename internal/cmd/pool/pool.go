// Package pool parses pool command flags and starts the pool service.
package pool

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/cellarpool/internal/platform/cmd"
	poolapp "github.com/louisbranch/cellarpool/internal/services/pool/app"
)

// Config holds pool command configuration.
type Config struct {
	poolapp.Config
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The pool gRPC port")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "The pool gRPC listen address (overrides -port)")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "The read API listen address (off or empty disables)")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "The ledger database path (:memory: for an in-memory ledger)")
	fs.StringVar(&cfg.RedisAddr, "redis-addr", cfg.RedisAddr, "Redis URL for the event relay (empty disables)")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the pool service.
func Run(ctx context.Context, cfg Config) error {
	logger := entrypoint.NewLogger()
	defer logger.Sync()
	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServicePool, entrypoint.RunOptions{Logger: logger}, func(ctx context.Context) error {
		return poolapp.Run(ctx, cfg.Config, logger.With("service", entrypoint.ServicePool))
	})
}
