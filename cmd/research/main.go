package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"deepresearch/internal/adapters/storage/filesystem"
	"deepresearch/internal/cli"
	"deepresearch/internal/config"
	"deepresearch/internal/events"
	"deepresearch/internal/orchestrator"
)

func main() {
	cfg := config.Load()

	if cfg.OpenRouterAPIKey == "" {
		fmt.Fprintln(os.Stderr, "Error: OPENROUTER_API_KEY environment variable not set")
		os.Exit(1)
	}

	if cfg.BraveAPIKey == "" {
		fmt.Fprintln(os.Stderr, "Error: BRAVE_API_KEY environment variable not set")
		os.Exit(1)
	}

	eventStore := filesystem.NewEventStore(cfg.EventStoreDir)

	bus := events.NewBus(100)
	defer bus.Close()

	orch := orchestrator.New(eventStore, bus, cfg)

	shell, err := cli.New(cfg, eventStore, bus, orch)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	defer shell.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if err := shell.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
}
