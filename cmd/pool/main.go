package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	poolcmd "github.com/louisbranch/cellarpool/internal/cmd/pool"
)

// main starts the pool gRPC service and its read API.
func main() {
	cfg, err := poolcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[POOL] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := poolcmd.Run(ctx, cfg); err != nil {
		log.Fatalf("failed to serve: %v", err)
	}
}
