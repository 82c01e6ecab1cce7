// Package store persists each profile's favourite stations and active mode
// filters in SQLite.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // CGo-based SQLite driver
	"tubeboard.app/internal/appconf"
	"tubeboard.app/internal/clock"
	"tubeboard.app/internal/logging"
)

//go:embed schema.sql
var ddl string

// Config configures the preferences database.
type Config struct {
	DBPath  string
	Env     appconf.Environment
	Verbose bool
}

// Store is the preferences database.
type Store struct {
	db     *sql.DB
	clock  clock.Clock
	logger *slog.Logger
}

// Open creates or migrates the database at cfg.DBPath.
func Open(ctx context.Context, cfg Config, clk clock.Clock, logger *slog.Logger) (*Store, error) {
	if cfg.Env == appconf.Test && cfg.DBPath != ":memory:" {
		return nil, fmt.Errorf("test database must use in-memory storage, got path: %s", cfg.DBPath)
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "preferences_store"))

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("unable to open preferences DB: %w", err)
	}
	configureConnectionPool(db, cfg)

	if err := configurePragmas(ctx, db, logger); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error configuring SQLite: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error performing database migration: %w", err)
	}
	if cfg.Verbose {
		logging.LogOperation(logger, "preferences_db_ready", slog.String("path", cfg.DBPath))
	}

	return &Store{db: db, clock: clk, logger: logger}, nil
}

// DB exposes the pool for the stats collector.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range strings.Split(ddl, "-- migrate") {
		trimmed := strings.TrimSpace(stmt)
		if trimmed == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, trimmed); err != nil {
			return fmt.Errorf("error executing DDL statement [%s]: %w", trimmed, err)
		}
	}
	return nil
}

func configurePragmas(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			logging.LogError(logger, "Failed to apply pragma", err, slog.String("pragma", p))
			return fmt.Errorf("failed to execute %s: %w", p, err)
		}
	}
	return nil
}

// configureConnectionPool keeps :memory: databases on one connection, since
// every connection would otherwise see its own empty database.
func configureConnectionPool(db *sql.DB, cfg Config) {
	if cfg.DBPath == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		return
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
}
