package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"enrollscan/internal/common"
	repo "enrollscan/internal/repository"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := common.LoadConfig()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	// Empty LEDGER_DSN opens the local SQLite file; a postgres:// DSN
	// exercises the pool instead.
	db, err := repo.Open(ctx, repo.Config{
		DSN:             cfg.Ledger.DSN,
		DataDir:         cfg.Ledger.DataDir,
		MaxConns:        cfg.Ledger.MaxConns,
		MinConns:        cfg.Ledger.MinConns,
		MaxConnLifetime: cfg.Ledger.MaxConnLifetime,
		MaxConnIdleTime: cfg.Ledger.MaxConnIdleTime,
		DialTimeout:     cfg.Ledger.DialTimeout,
	}, logger)
	if err != nil {
		log.Fatalf("opening ledger: %v", err)
	}
	defer db.Close(logger)

	if err := db.HealthCheck(ctx, 1*time.Second, logger); err != nil {
		log.Fatalf("ledger health: FAIL (%v)", err)
	}
	log.Println("ledger health: OK")

	files, err := repo.CountScanFiles(ctx, db)
	if err != nil {
		log.Fatalf("counting scan files: %v", err)
	}
	log.Printf("scan files: %d", files)

	counts, err := repo.CountJobsByStatus(ctx, db)
	if err != nil {
		log.Fatalf("counting extract jobs: %v", err)
	}
	for status, n := range counts {
		log.Printf("- %s: %d", status, n)
	}
}
