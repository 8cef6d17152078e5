// Package main supervises the pool service and the MCP bridge in one container.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/louisbranch/cellarpool/internal/platform/logging"
)

const (
	defaultPoolAddr    = "127.0.0.1:8090"
	defaultMcpHTTPAddr = "0.0.0.0:8092"
	shutdownGrace      = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := logging.New(os.Getenv("CELLARPOOL_LOG_MODE"))
	if err != nil {
		logger = logging.Nop()
	}
	defer logger.Sync()

	s := &supervisor{
		logger: logger.With("component", "entrypoint"),
		grace:  shutdownGrace,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	code := s.run(ctx, childSpecs(os.Getenv))
	stop()
	logger.Sync()
	os.Exit(code)
}

// childSpecs lists the container processes in start order. The MCP bridge
// dials the pool service, so the pool starts first.
func childSpecs(getenv func(string) string) []childSpec {
	poolAddr := getenvDefault(getenv, "CELLARPOOL_MCP_POOL_ADDR", defaultPoolAddr)
	mcpAddr := getenvDefault(getenv, "CELLARPOOL_MCP_HTTP_ADDR", defaultMcpHTTPAddr)
	return []childSpec{
		{name: "pool", path: "/app/pool", args: []string{"-addr=" + poolAddr}},
		{name: "mcp", path: "/app/mcp", args: []string{"-transport=http", "-http-addr=" + mcpAddr, "-addr=" + poolAddr}},
	}
}

func getenvDefault(getenv func(string) string, key, fallback string) string {
	if value := getenv(key); value != "" {
		return value
	}
	return fallback
}
