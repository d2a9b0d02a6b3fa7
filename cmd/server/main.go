package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blackmichael/timeline/internal/config"
	"github.com/blackmichael/timeline/internal/domain"
	"github.com/blackmichael/timeline/internal/httpserver"
	"github.com/blackmichael/timeline/internal/postgres"
	"github.com/blackmichael/timeline/internal/sqlite"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	records, closeRecords, err := openRecords(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRecords()

	blobDB, err := sqlite.Open(cfg.BlobDatabase)
	if err != nil {
		return fmt.Errorf("open blob database: %w", err)
	}
	defer blobDB.Close()

	blobs, err := sqlite.NewBlobStore(blobDB, cfg.PublicURL)
	if err != nil {
		return fmt.Errorf("create blob store: %w", err)
	}
	logger.Info("blob store ready", "path", cfg.BlobDatabase)

	// Set up graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	server := httpserver.NewServer(cfg, records, blobs, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port, "public_url", cfg.PublicURL)

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}

// openRecords selects the record backend from DATABASE_URL.
func openRecords(cfg *config.Config, logger *slog.Logger) (domain.RecordBackend, func(), error) {
	if cfg.UsesPostgres() {
		repo, err := postgres.NewRepository(cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("create repository: %w", err)
		}
		logger.Info("connected to database", "driver", "postgres")
		return repo, func() { repo.Close() }, nil
	}

	db, err := sqlite.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	store, err := sqlite.NewRecordStore(db, logger)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("create record store: %w", err)
	}
	logger.Info("connected to database", "driver", "sqlite", "path", cfg.DatabaseURL)
	return store, func() { db.Close() }, nil
}
