package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jmartens/docpulse/internal/bridge"
	"github.com/jmartens/docpulse/internal/config"
	"github.com/jmartens/docpulse/internal/domain"
	"github.com/jmartens/docpulse/internal/identity"
	"github.com/jmartens/docpulse/internal/logging"
	"github.com/jmartens/docpulse/internal/realtime"
	"github.com/jmartens/docpulse/internal/store"
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupStore(ctx context.Context, cfg *config.Config) (store.Store, func()) {
	if cfg.DatabaseURL == "" {
		slog.Info("No DATABASE_URL set, using in-memory document store")
		return store.NewMemory(), func() {}
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pg, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	return pg, pg.Close
}

// collectionPolicies is the per-collection broadcast configuration: messages
// go to everyone, notifications go to the recipient's personal room and only
// on create.
func collectionPolicies() map[string]domain.CollectionPolicy {
	return map[string]domain.CollectionPolicy{
		"messages": {},
		"notifications": {
			Room: func(doc domain.Document) (string, error) {
				user, ok := doc["user"].(string)
				if !ok || user == "" {
					return "", fmt.Errorf("notification has no user field")
				}
				return "user:" + user, nil
			},
			Events: []domain.Operation{domain.OperationCreate},
		},
	}
}

func runGracefulShutdown(sup *realtime.Supervisor, closeStore func()) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sup.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		closeStore()
		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "disabled", cfg.Disabled)

	docStore, closeStore := setupStore(context.Background(), cfg)

	if cfg.AppEnv == "development" {
		if err := store.Seed(context.Background(), docStore); err != nil {
			slog.Error("Failed to seed store", "error", err)
			os.Exit(1)
		}
	}

	var provider domain.IdentityProvider
	if cfg.AuthSecret != "" {
		provider = identity.NewProvider(cfg.AuthSecret)
	}

	sup := realtime.NewSupervisor()
	srv := sup.Start(cfg, provider, clock)

	// Hooks are wired even when the transport is disabled, so store
	// behavior does not depend on the transport being up.
	bridge.New(srv.Hub(), collectionPolicies()).Register(docStore)

	done := runGracefulShutdown(sup, closeStore)
	<-done
}
