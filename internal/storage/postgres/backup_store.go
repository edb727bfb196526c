// Package postgres provides a Postgres-backed backup store.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/mailproxy/internal/intake"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "subscribers"

// Config controls the Postgres connection pool used for backup rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// BackupStore writes backup rows into Postgres. email_key holds the normalized
// address and is the primary key; email keeps the address as submitted.
type BackupStore struct {
	pool  pool
	table string
}

// NewBackupStore creates a pooled BackupStore using the provided config.
func NewBackupStore(ctx context.Context, cfg Config) (*BackupStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("backup.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pgPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewBackupStoreWithPool(pgPool, cfg.Table)
	if err != nil {
		pgPool.Close()
		return nil, err
	}
	return store, nil
}

// NewBackupStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewBackupStoreWithPool(p pool, table string) (*BackupStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &BackupStore{pool: p, table: table}, nil
}

// EnsureSchema creates the backup table when missing.
func (s *BackupStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	email_key   TEXT PRIMARY KEY,
	email       TEXT NOT NULL,
	name        TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	lists       JSONB,
	inserted_at TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s table: %w", s.table, err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *BackupStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Backup looks the email up and inserts it when absent. The insert also skips
// on primary-key conflict, so a concurrent duplicate that slipped past the
// lookup is reported as already present instead of stored twice.
func (s *BackupStore) Backup(ctx context.Context, record intake.BackupRecord) (intake.BackupReceipt, error) {
	key := record.Key()
	exists, err := s.exists(ctx, key)
	if err != nil {
		return intake.BackupReceipt{}, err
	}
	if exists {
		total, err := s.Count(ctx)
		return intake.NewBackupReceipt(true, total, err), nil
	}

	listsJSON, err := json.Marshal(record.Lists)
	if err != nil {
		return intake.BackupReceipt{}, fmt.Errorf("marshal lists: %w", err)
	}
	query := fmt.Sprintf(`
INSERT INTO %s (email_key, email, name, status, lists, inserted_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (email_key) DO NOTHING`, s.table)
	tag, err := s.pool.Exec(ctx, query, key, record.Email, record.Name, record.Status, listsJSON, record.InsertedAt)
	if err != nil {
		return intake.BackupReceipt{}, fmt.Errorf("insert subscriber: %w", err)
	}

	total, err := s.Count(ctx)
	return intake.NewBackupReceipt(tag.RowsAffected() == 0, total, err), nil
}

// Count returns the number of backed-up subscribers.
func (s *BackupStore) Count(ctx context.Context) (int64, error) {
	var total int64
	query := fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)
	if err := s.pool.QueryRow(ctx, query).Scan(&total); err != nil {
		return 0, fmt.Errorf("count subscribers: %w", err)
	}
	return total, nil
}

func (s *BackupStore) exists(ctx context.Context, key string) (bool, error) {
	var found bool
	query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE email_key = $1)`, s.table)
	if err := s.pool.QueryRow(ctx, query, key).Scan(&found); err != nil {
		return false, fmt.Errorf("lookup subscriber: %w", err)
	}
	return found, nil
}
