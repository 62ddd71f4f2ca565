package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"upwatch/internal/api"
	"upwatch/internal/authority"
	"upwatch/internal/config"
	"upwatch/internal/monitor"
	"upwatch/internal/probe"
	"upwatch/internal/session"
	"upwatch/internal/storage"
	"upwatch/internal/storage/memory"
	redisstore "upwatch/internal/storage/redis"
	"upwatch/internal/storage/sqlite"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("application failed: %v", err)
	}
	log.Println("application shut down gracefully")
}

func run() error {
	configPath := flag.String("config", "", "path to YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create a context that is canceled on OS signals like SIGINT or SIGTERM.
	// This is the foundation for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	log.Printf("storage ready (driver: %s)", cfg.DatabaseDriver)

	// Restore any persisted credential, then validate it once against the
	// authority. A definite rejection clears the credential silently (no UI
	// is listening yet); transport failures keep it, since an offline start
	// must not log the operator out.
	sessions := session.New(store)
	if err := sessions.Restore(ctx); err != nil {
		return fmt.Errorf("failed to restore session: %w", err)
	}
	authorityClient := authority.New(cfg.AuthorityBaseURL, sessions)
	validateStartupSession(ctx, sessions, authorityClient)

	prober := probe.New(cfg.ProbeTimeout)
	reconciler := monitor.NewReconciler(store, authorityClient, sessions)
	connectivity := monitor.NewDialChecker(cfg.ConnectivityTarget, 0)
	scheduler := monitor.NewScheduler(store, prober, reconciler, connectivity, cfg.MaxConcurrentProbes)

	// Re-arm the persisted schedule; a no-op if monitoring was off.
	if err := scheduler.Rearm(ctx); err != nil {
		return fmt.Errorf("failed to re-arm monitoring: %w", err)
	}

	handlers := api.NewHandlers(store, scheduler, sessions, authorityClient)
	server := api.NewServer(cfg.HTTPPort, handlers)
	server.Start()

	log.Println("application is running...")
	<-ctx.Done()

	log.Println("shutdown signal received, starting graceful shutdown...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer shutdownCancel()

	// Stop the timer first so no new cycles start; in-flight probes drain.
	scheduler.Shutdown()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown error: %w", err)
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Storer, error) {
	switch cfg.DatabaseDriver {
	case "redis":
		return redisstore.New(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	case "memory":
		return memory.New(), nil
	default:
		return sqlite.New(ctx, cfg.DatabaseURL)
	}
}

// validateStartupSession performs the one-time cold-start credential check.
func validateStartupSession(ctx context.Context, sessions *session.Controller, client *authority.Client) {
	if !sessions.LoggedIn() {
		return
	}
	user, err := client.WhoAmI(ctx)
	switch {
	case err == nil:
		sessions.Confirm(user)
		log.Printf("session validated for %s", user.Email)
	case errors.Is(err, authority.ErrUnauthorized):
		sessions.ClearSilently(ctx)
		log.Println("stored session rejected by authority, cleared")
	default:
		log.Printf("session validation deferred: %v", err)
	}
}
