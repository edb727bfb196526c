// Package redis provides a Redis-backed backup store.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/JakeFAU/mailproxy/internal/intake"
)

const defaultPrefix = "mailproxy"

// BackupStore keeps one hash field per normalized email under
// "<prefix>:subscribers". HSETNX makes the insert atomic, so a duplicate that
// races past the lookup is reported as already present.
type BackupStore struct {
	client *redis.Client
	key    string
}

// NewBackupStore parses redisURL, pings the server and returns a store.
func NewBackupStore(ctx context.Context, redisURL, prefix string) (*BackupStore, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("backup.redis_url is required")
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return NewBackupStoreWithClient(client, prefix), nil
}

// NewBackupStoreWithClient wraps an existing client.
func NewBackupStoreWithClient(client *redis.Client, prefix string) *BackupStore {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &BackupStore{client: client, key: prefix + ":subscribers"}
}

// Backup stores the record as JSON unless the email is already tracked.
func (s *BackupStore) Backup(ctx context.Context, record intake.BackupRecord) (intake.BackupReceipt, error) {
	field := record.Key()
	exists, err := s.client.HExists(ctx, s.key, field).Result()
	if err != nil {
		return intake.BackupReceipt{}, fmt.Errorf("lookup subscriber: %w", err)
	}
	inserted := false
	if !exists {
		payload, err := json.Marshal(record)
		if err != nil {
			return intake.BackupReceipt{}, fmt.Errorf("marshal record: %w", err)
		}
		inserted, err = s.client.HSetNX(ctx, s.key, field, payload).Result()
		if err != nil {
			return intake.BackupReceipt{}, fmt.Errorf("insert subscriber: %w", err)
		}
	}
	total, err := s.Count(ctx)
	return intake.NewBackupReceipt(!inserted, total, err), nil
}

// Count returns the number of tracked subscribers.
func (s *BackupStore) Count(ctx context.Context) (int64, error) {
	total, err := s.client.HLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("count subscribers: %w", err)
	}
	return total, nil
}

// Get loads the record stored for email.
func (s *BackupStore) Get(ctx context.Context, email string) (intake.BackupRecord, error) {
	raw, err := s.client.HGet(ctx, s.key, intake.NormalizeEmail(email)).Bytes()
	if err != nil {
		return intake.BackupRecord{}, fmt.Errorf("get subscriber: %w", err)
	}
	var rec intake.BackupRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return intake.BackupRecord{}, fmt.Errorf("decode subscriber: %w", err)
	}
	return rec, nil
}

// Close closes the Redis client.
func (s *BackupStore) Close() {
	if s == nil || s.client == nil {
		return
	}
	_ = s.client.Close()
}
