package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"tally/internal/config"
	tallyhttp "tally/internal/http"
	applog "tally/internal/log"
	"tally/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tally: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := applog.New(applog.ParseLevel(cfg.LogLevel))
	applog.SetDefault(logger)

	repo, err := storage.Open(cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer repo.Close()

	server := tallyhttp.NewServer(cfg, repo, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(server.Start)

	// Expired sessions are swept in the background so the table does not
	// grow without bound.
	g.Go(func() error {
		sweeper := logger.WithComponent(applog.ComponentStorage)
		ticker := time.NewTicker(cfg.SessionSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				n, err := repo.DeleteExpiredSessions(gCtx)
				if err != nil {
					sweeper.Error("session sweep failed", "error", err)
					continue
				}
				if n > 0 {
					sweeper.Info("swept expired sessions", "removed", n)
				}
			}
		}
	})

	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
