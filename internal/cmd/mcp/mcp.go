// Package mcp parses MCP command flags and selects stdio or HTTP transport.
package mcp

import (
	"context"
	"flag"

	entrypoint "github.com/louisbranch/cellarpool/internal/platform/cmd"
	mcpservice "github.com/louisbranch/cellarpool/internal/services/mcp/service"
)

// Config holds MCP command configuration.
type Config struct {
	PoolAddr  string `env:"CELLARPOOL_MCP_POOL_ADDR" envDefault:"localhost:8090"`
	HTTPAddr  string `env:"CELLARPOOL_MCP_HTTP_ADDR" envDefault:"localhost:8092"`
	Transport string `env:"CELLARPOOL_MCP_TRANSPORT" envDefault:"stdio"`
	ActorID   string `env:"CELLARPOOL_MCP_ACTOR_ID"`
	// ActorTokenSecret signs the actor for a pool that requires tokens.
	ActorTokenSecret string `env:"CELLARPOOL_MCP_ACTOR_TOKEN_SECRET"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.PoolAddr, "addr", cfg.PoolAddr, "pool server address")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP server address (for HTTP transport)")
	fs.StringVar(&cfg.Transport, "transport", cfg.Transport, "Transport type: stdio or http")
	fs.StringVar(&cfg.ActorID, "actor", cfg.ActorID, "initial actor address for tool calls")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the MCP protocol adapter.
func Run(ctx context.Context, cfg Config) error {
	logger := entrypoint.NewLogger()
	defer logger.Sync()
	return entrypoint.RunWithTelemetryAndOptions(ctx, entrypoint.ServiceMCP, entrypoint.RunOptions{Logger: logger}, func(ctx context.Context) error {
		return mcpservice.Run(ctx, mcpservice.Config{
			PoolAddr:  cfg.PoolAddr,
			Transport: mcpservice.TransportKind(cfg.Transport),
			HTTPAddr:  cfg.HTTPAddr,
			ActorID:   cfg.ActorID,
			Logger:    logger.With("service", entrypoint.ServiceMCP),

			ActorTokenSecret: cfg.ActorTokenSecret,
		})
	})
}
