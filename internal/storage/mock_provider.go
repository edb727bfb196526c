package storage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/JakeFAU/mailproxy/internal/intake"
)

// MockBackupStore is a testify mock of intake.BackupStore.
type MockBackupStore struct {
	mock.Mock
}

// Backup is the mock implementation of the Backup method.
func (m *MockBackupStore) Backup(ctx context.Context, record intake.BackupRecord) (intake.BackupReceipt, error) {
	args := m.Called(ctx, record)
	return args.Get(0).(intake.BackupReceipt), args.Error(1) //nolint:wrapcheck
}

// Count is the mock implementation of the Count method.
func (m *MockBackupStore) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1) //nolint:wrapcheck
}

// Close is the mock implementation of the Close method.
func (m *MockBackupStore) Close() {
	m.Called()
}
