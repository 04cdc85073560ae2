// Package main provides the entry point for the agentgate daemon: it wires
// the approval workflow onto the configured backends, mirrors bus events to
// the audit log, and runs the expiry sweeps until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentgate-ai/agentgate/internal/approval"
	"github.com/agentgate-ai/agentgate/internal/config"
	"github.com/agentgate-ai/agentgate/internal/event"
	"github.com/agentgate-ai/agentgate/internal/logging"
	"github.com/agentgate-ai/agentgate/internal/repository"
	"github.com/agentgate-ai/agentgate/internal/store"
)

var (
	directory = flag.String("directory", "", "Configuration directory")
	sweep     = flag.Duration("sweep", time.Minute, "Expiry sweep interval")
	version   = flag.Bool("version", false, "Print version and exit")
)

const Version = "0.1.0"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("agentgate %s\n", Version)
		os.Exit(0)
	}

	workDir := *directory
	if workDir == "" {
		var err error
		workDir, err = os.Getwd()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to get working directory: %v\n", err)
			os.Exit(1)
		}
	}

	cfg, err := config.Load(workDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logging.Init(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Pretty: cfg.LogFormat == "console",
	})
	log := logging.Logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv, err := store.Open(ctx, cfg.Store.Backend, cfg.Store.EtcdEndpoints, time.Duration(cfg.Store.EtcdTimeout))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}

	repo, err := repository.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open repository")
	}

	bus := event.NewBus()
	defer bus.Close()
	publisher := event.NewPublisher(bus)
	approvals := approval.NewManager(kv, publisher, log.With().Str("component", "approval").Logger())

	// Mirror every bus event to the audit log.
	auditLog := log.With().Str("component", "audit").Logger()
	unsubscribe := bus.SubscribeAll(func(e event.Event) {
		auditLog.Info().Str("event", string(e.Type)).Interface("data", e.Data).Msg("event")
	})
	defer unsubscribe()

	log.Info().
		Str("store", cfg.Store.Backend).
		Str("database", cfg.Database.Driver).
		Dur("sweep", *sweep).
		Msg("agentgate started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*sweep)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			runSweep(ctx, log, repo, approvals)
		case <-quit:
			log.Info().Msg("shutting down")
			return
		}
	}
}

// runSweep runs one pass of the repository and approval expiry janitors.
func runSweep(ctx context.Context, log zerolog.Logger, repo repository.Repository, approvals *approval.Manager) {
	ended, err := repo.CleanupExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("session cleanup failed")
	} else if ended > 0 {
		log.Info().Int64("ended", ended).Msg("expired sessions ended")
	}

	removed, err := approvals.CleanupExpired(ctx, "")
	if err != nil {
		log.Error().Err(err).Msg("approval cleanup failed")
	} else if removed > 0 {
		log.Info().Int("removed", removed).Msg("expired approvals removed")
	}
}
