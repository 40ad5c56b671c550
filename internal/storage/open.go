package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/nomadhouse/nomadhouse/internal/config"
)

var (
	// ErrNotFound is returned when a ledger row does not exist
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a row with the same key already exists
	ErrConflict = errors.New("already exists")
)

// connectTimeout bounds how long New waits for Postgres to accept connections
const connectTimeout = 30 * time.Second

// sqlitePragmas are applied to every SQLite ledger. synchronous=FULL keeps a
// committed purchase durable across a crash.
var sqlitePragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA synchronous=FULL",
	"PRAGMA busy_timeout=5000",
}

// PostgresStore is a ledger backed by PostgreSQL
type PostgresStore struct {
	*sqlStore
}

// SQLiteStore is a ledger backed by a single SQLite file
type SQLiteStore struct {
	*sqlStore
}

// New opens the ledger store selected by cfg.Type
func New(cfg config.StorageConfig, logger *slog.Logger) (Store, error) {
	switch cfg.Type {
	case "sqlite":
		return NewSQLiteStore(cfg.SQLite.Path, logger)
	case "postgres":
		return NewPostgresStore(cfg.Postgres.URL, logger)
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}

// NewPostgresStore connects to Postgres, retrying until the server answers
// or connectTimeout passes.
func NewPostgresStore(url string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	// Updates are serialized in-process, so a small pool covers the
	// concurrent readers.
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxElapsedTime = 0
	attempt := 0
	err = backoff.Retry(func() error {
		attempt++
		if err := db.PingContext(ctx); err != nil {
			logger.Debug("postgres not ready", "attempt", attempt, "error", err)
			return err
		}
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	return &PostgresStore{sqlStore: newSQLStore(db, logger, rebindDollar)}, nil
}

// NewSQLiteStore opens (or creates) the ledger file at path
func NewSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	// Transactions must not interleave on separate connections
	db.SetMaxOpenConns(1)

	for _, pragma := range sqlitePragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	logger.Debug("opened sqlite ledger", "path", path)
	return &SQLiteStore{sqlStore: newSQLStore(db, logger, nil)}, nil
}
