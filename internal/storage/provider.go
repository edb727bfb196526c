// Package storage selects and builds the configured backup store backend.
// Backends live in subpackages; this package only wires them from config.
package storage

import (
	"context"
	"fmt"
	"strings"

	gcsclient "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/mailproxy/internal/hash/sha256"
	"github.com/JakeFAU/mailproxy/internal/intake"
	"github.com/JakeFAU/mailproxy/internal/storage/gcs"
	"github.com/JakeFAU/mailproxy/internal/storage/memory"
	"github.com/JakeFAU/mailproxy/internal/storage/postgres"
	"github.com/JakeFAU/mailproxy/internal/storage/redis"
)

// Supported backup drivers.
const (
	DriverNone     = "none"
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverGCS      = "gcs"
)

// Config selects and parameterizes the backup backend.
type Config struct {
	Driver    string
	DSN       string
	Table     string
	RedisURL  string
	GCSBucket string
	Prefix    string
	// HashKey keys GCS object names with HMAC when set.
	HashKey   string
}

// Open builds the backup store named by cfg.Driver. The "none" driver returns
// a nil store, which disables the backup step.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (intake.BackupStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case DriverNone:
		logger.Info("backup store disabled")
		return nil, nil
	case "", DriverMemory:
		logger.Warn("using in-memory backup store; records are lost on restart")
		return memory.NewBackupStore(), nil
	case DriverPostgres:
		store, err := postgres.NewBackupStore(ctx, postgres.Config{DSN: cfg.DSN, Table: cfg.Table})
		if err != nil {
			return nil, fmt.Errorf("open postgres backup store: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("prepare postgres backup store: %w", err)
		}
		return store, nil
	case DriverRedis:
		store, err := redis.NewBackupStore(ctx, cfg.RedisURL, cfg.Prefix)
		if err != nil {
			return nil, fmt.Errorf("open redis backup store: %w", err)
		}
		return store, nil
	case DriverGCS:
		client, err := gcsclient.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS client: %w", err)
		}
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.GCSBucket, Prefix: cfg.Prefix}, sha256.NewKeyed(cfg.HashKey))
		if err != nil {
			if closeErr := client.Close(); closeErr != nil {
				logger.Warn("Failed to close GCS client after setup failure", zap.Error(closeErr))
			}
			return nil, fmt.Errorf("open gcs backup store: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown backup driver %q", cfg.Driver)
	}
}
