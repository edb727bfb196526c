package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/mailproxy/internal/intake"
)

func newMockStore(t *testing.T) (*BackupStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	store, err := NewBackupStoreWithPool(mock, "subscribers")
	require.NoError(t, err)
	return store, mock
}

func TestBackupInsertsNewSubscriber(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	rec := intake.BackupRecord{
		Email:      "A@b.com",
		Name:       "Ann",
		Status:     "unconfirmed",
		Lists:      []intake.ListRef{"3"},
		InsertedAt: now,
	}

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("a@b.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO subscribers").
		WithArgs("a@b.com", "A@b.com", "Ann", "unconfirmed", []byte(`[3]`), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT count").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(7)))

	receipt, err := store.Backup(context.Background(), rec)
	require.NoError(t, err)
	require.Equal(t, intake.BackupReceipt{Total: 7}, receipt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackupSkipsExistingSubscriber(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("a@b.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery("SELECT count").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))

	receipt, err := store.Backup(context.Background(), intake.BackupRecord{Email: "a@b.com", Status: "x"})
	require.NoError(t, err)
	require.True(t, receipt.AlreadyPresent)
	require.Equal(t, int64(3), receipt.Total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackupReportsConflictOnLostRace(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("a@b.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO subscribers").
		WithArgs("a@b.com", "a@b.com", "", "x", []byte(`null`), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mock.ExpectQuery("SELECT count").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))

	receipt, err := store.Backup(context.Background(), intake.BackupRecord{Email: "a@b.com", Status: "x", InsertedAt: now})
	require.NoError(t, err)
	require.True(t, receipt.AlreadyPresent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackupKeepsStoredRowWhenCountFails(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	now := time.Unix(1700000000, 0).UTC()
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("b@c.com").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO subscribers").
		WithArgs("b@c.com", "B@C.com", "", "x", []byte(`null`), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("SELECT count").
		WillReturnError(errors.New("statement timeout"))

	receipt, err := store.Backup(context.Background(), intake.BackupRecord{Email: "B@C.com", Status: "x", InsertedAt: now})
	require.NoError(t, err)
	require.False(t, receipt.AlreadyPresent)
	require.False(t, receipt.TotalKnown())
	require.Equal(t, intake.UnknownTotal, receipt.Total)
	require.ErrorContains(t, receipt.TotalErr, "statement timeout")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBackupWrapsLookupError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("a@b.com").
		WillReturnError(errors.New("connection reset"))

	_, err := store.Backup(context.Background(), intake.BackupRecord{Email: "a@b.com"})
	require.ErrorContains(t, err, "lookup subscriber")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	defer mock.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS subscribers").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNewBackupStoreWithPoolValidation(t *testing.T) {
	t.Parallel()

	_, err := NewBackupStoreWithPool(nil, "subscribers")
	require.Error(t, err)

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewBackupStoreWithPool(mock, "bad;table")
	require.ErrorContains(t, err, "invalid table name")

	store, err := NewBackupStoreWithPool(mock, "")
	require.NoError(t, err)
	require.Equal(t, defaultTable, store.table)
}

func TestNewBackupStoreRequiresDSN(t *testing.T) {
	t.Parallel()

	_, err := NewBackupStore(context.Background(), Config{})
	require.ErrorContains(t, err, "backup.dsn")
}
