package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lanemc/hivemind/internal/config"
	"github.com/lanemc/hivemind/internal/hive"
	"github.com/lanemc/hivemind/internal/natsbus"
	"github.com/lanemc/hivemind/internal/store"
	"github.com/lanemc/hivemind/internal/sweeper"
)

var version = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "version":
		fmt.Printf("hivemind %s\n", version)
	case "serve":
		if err := runServe(); err != nil {
			slog.Error("serve failed", "error", err)
			os.Exit(1)
		}
	case "health":
		if err := runHealth(); err != nil {
			slog.Error("health check failed", "error", err)
			os.Exit(1)
		}
	case "backup":
		if err := runBackup(os.Args[2:]); err != nil {
			slog.Error("backup failed", "error", err)
			os.Exit(1)
		}
	case "restore":
		if err := runRestore(os.Args[2:]); err != nil {
			slog.Error("restore failed", "error", err)
			os.Exit(1)
		}
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Usage: hivemind <command>

Commands:
  serve      Start the coordination substrate (store, event bus, sweeper)
  health     Print table row counts for the store
  backup     Snapshot the store to a compressed archive
  restore    Restore the store from a compressed archive
  version    Print version
`)
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	slog.Info("starting hivemind", "version", version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SQLite store
	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()
	slog.Info("store initialized", "path", cfg.Store.Path)

	// Embedded NATS
	bus, err := natsbus.New(cfg.NATS)
	if err != nil {
		return fmt.Errorf("init nats: %w", err)
	}
	defer bus.Close()
	slog.Info("nats started", "url", bus.ClientURL())

	// Coordinator facade
	coord := hive.NewCoordinator(db, bus)
	defer coord.Close()

	// Event log: mirror bus traffic into the process log
	events, err := natsbus.NewClient(bus)
	if err != nil {
		return fmt.Errorf("init event log: %w", err)
	}
	defer events.Close()
	for _, topic := range []string{natsbus.TopicEventsAll, natsbus.TopicSwarmEventsAll, natsbus.TopicAgentMessagesAll} {
		if _, err := events.SubscribeEvents(topic, logEvent); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}

	// Memory maintenance sweeper
	sw := sweeper.New(db, bus, cfg.Sweeper)
	go sw.Start(ctx)

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)
	cancel()

	return nil
}

func logEvent(subject string, ev natsbus.Event) {
	slog.Info("bus event", "topic", subject, "type", ev.Type)
}

func runHealth() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Store)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer db.Close()

	h, err := db.HealthCheck()
	if err != nil {
		return err
	}

	fmt.Printf("healthy: %v\n", h.Healthy)
	for _, table := range []string{"swarms", "agents", "tasks", "memory", "communications", "consensus", "performance_metrics"} {
		fmt.Printf("  %-20s %d\n", table, h.Tables[table])
	}
	return nil
}
