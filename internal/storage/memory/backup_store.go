// Package memory provides an in-process backup store for development and tests.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/mailproxy/internal/intake"
)

// BackupStore keeps backup records in a map keyed by normalized email.
type BackupStore struct {
	mu      sync.RWMutex
	records map[string]intake.BackupRecord
}

// NewBackupStore constructs a BackupStore.
func NewBackupStore() *BackupStore {
	return &BackupStore{records: make(map[string]intake.BackupRecord)}
}

// Backup inserts the record unless the email is already tracked. The lookup
// and insert share one lock, so this backend has no duplicate race.
func (s *BackupStore) Backup(_ context.Context, record intake.BackupRecord) (intake.BackupReceipt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := record.Key()
	if _, exists := s.records[key]; exists {
		return intake.BackupReceipt{AlreadyPresent: true, Total: int64(len(s.records))}, nil
	}
	s.records[key] = cloneRecord(record)
	return intake.BackupReceipt{Total: int64(len(s.records))}, nil
}

// Count returns the number of tracked subscribers.
func (s *BackupStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// Get returns a copy of the record stored for email.
func (s *BackupStore) Get(email string) (intake.BackupRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[intake.NormalizeEmail(email)]
	if !ok {
		return intake.BackupRecord{}, false
	}
	return cloneRecord(rec), true
}

// Close is a no-op.
func (s *BackupStore) Close() {}

func cloneRecord(rec intake.BackupRecord) intake.BackupRecord {
	cp := rec
	if rec.Lists != nil {
		cp.Lists = append([]intake.ListRef{}, rec.Lists...)
	}
	return cp
}
