// Package repository persists the scan ledger: which image files were
// seen (keyed by content hash) and how far each extract job got.
// SQLite is the default store; a postgres:// DSN switches to a pgx pool.
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	// DSN selects the backend: empty -> SQLite at DataDir/enrollscan.db,
	// ":memory:" -> in-memory SQLite, postgres:// -> pgx pool.
	DSN              string
	DataDir          string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// DB bundles the handle with its dialect so queries can be rebound and
// cleanup can reach the underlying pool.
type DB struct {
	SQL     *sql.DB
	pool    *pgxpool.Pool // nil for sqlite
	dialect string        // "sqlite" | "postgres"
}

// Open connects to the ledger backend chosen by the DSN and applies
// migrations.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	var (
		db  *DB
		err error
	)
	if strings.HasPrefix(cfg.DSN, "postgres://") || strings.HasPrefix(cfg.DSN, "postgresql://") {
		db, err = openPostgres(ctx, cfg, logger)
	} else {
		db, err = openSQLite(cfg, logger)
	}
	if err != nil {
		return nil, err
	}
	if err := migrate(db); err != nil {
		db.Close(logger)
		return nil, err
	}
	return db, nil
}

func openSQLite(cfg Config, logger *slog.Logger) (*DB, error) {
	dsn := cfg.DSN
	inMemory := dsn == ":memory:"
	if dsn == "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		path := filepath.Join(cfg.DataDir, "enrollscan.db")
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	logger.Info("opening ledger", "backend", "sqlite", "dsn", dsn)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if inMemory {
		// every new connection would get its own empty database
		sqlDB.SetMaxOpenConns(1)
	}
	return &DB{SQL: sqlDB, dialect: "sqlite"}, nil
}

func openPostgres(ctx context.Context, cfg Config, logger *slog.Logger) (*DB, error) {
	logger.Info("opening ledger", "backend", "postgres")
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse ledger dsn", "error", err)
		return nil, err
	}

	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "enrollscan"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = cfg.StatementTimeout.String()
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to ledger", "error", err)
		return nil, err
	}

	logger.Info("successfully connected to ledger")
	return &DB{SQL: stdlib.OpenDBFromPool(pool), pool: pool, dialect: "postgres"}, nil
}

// Close closes the database connections gracefully.
func (db *DB) Close(logger *slog.Logger) {
	logger.Info("closing ledger connections")
	if err := db.SQL.Close(); err != nil {
		logger.Error("failed to close ledger", "error", err)
	}
	if db.pool != nil {
		db.pool.Close()
	}
	logger.Info("ledger connections closed")
}

// HealthCheck pings the backend to catch DSN issues early.
func (db *DB) HealthCheck(ctx context.Context, timeout time.Duration, logger *slog.Logger) error {
	logger.Debug("pinging ledger")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := db.SQL.PingContext(ctx); err != nil {
		return err
	}
	logger.Debug("ledger ping successful")
	return nil
}

// rebind converts $N placeholders to SQLite's ?N form when needed.
// Queries are written in the postgres style.
func (db *DB) rebind(query string) string {
	if db.dialect == "sqlite" {
		return strings.ReplaceAll(query, "$", "?")
	}
	return query
}
