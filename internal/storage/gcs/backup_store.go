// Package gcs provides a backup store that writes one JSON object per
// subscriber to a Google Cloud Storage bucket.
package gcs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"

	"github.com/JakeFAU/mailproxy/internal/intake"
)

const defaultPrefix = "mailproxy"

// Hasher derives object names from normalized emails.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Config captures the parameters required to address the bucket.
type Config struct {
	Bucket string
	Prefix string
}

// bucket is the slice of the GCS API the store needs.
type bucket interface {
	Exists(ctx context.Context, name string) (bool, error)
	// Create writes data only if no object called name exists yet.
	Create(ctx context.Context, name string, data []byte) (bool, error)
	Count(ctx context.Context, prefix string) (int64, error)
}

// BackupStore keeps subscribers at <prefix>/subscribers/<digest(email)>.json.
// Hashing keeps raw addresses out of object names; the DoesNotExist
// precondition makes the insert atomic.
type BackupStore struct {
	bucket  bucket
	hasher  Hasher
	prefix  string
	closeFn func() error
}

// New creates a GCS-backed backup store on top of client.
func New(client *storage.Client, cfg Config, hasher Hasher) (*BackupStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("backup.gcs_bucket is required")
	}
	store, err := newWithBucket(&gcsBucket{handle: client.Bucket(cfg.Bucket)}, cfg.Prefix, hasher)
	if err != nil {
		return nil, err
	}
	store.closeFn = client.Close
	return store, nil
}

func newWithBucket(b bucket, prefix string, hasher Hasher) (*BackupStore, error) {
	if hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &BackupStore{bucket: b, hasher: hasher, prefix: prefix + "/subscribers/"}, nil
}

// Backup writes the record unless an object for the email already exists.
func (s *BackupStore) Backup(ctx context.Context, record intake.BackupRecord) (intake.BackupReceipt, error) {
	name, err := s.objectName(record.Key())
	if err != nil {
		return intake.BackupReceipt{}, err
	}
	exists, err := s.bucket.Exists(ctx, name)
	if err != nil {
		return intake.BackupReceipt{}, fmt.Errorf("lookup subscriber: %w", err)
	}
	created := false
	if !exists {
		payload, err := json.Marshal(record)
		if err != nil {
			return intake.BackupReceipt{}, fmt.Errorf("marshal record: %w", err)
		}
		created, err = s.bucket.Create(ctx, name, payload)
		if err != nil {
			return intake.BackupReceipt{}, fmt.Errorf("insert subscriber: %w", err)
		}
	}
	total, err := s.Count(ctx)
	return intake.NewBackupReceipt(!created, total, err), nil
}

// Count lists the subscriber prefix and counts objects.
func (s *BackupStore) Count(ctx context.Context) (int64, error) {
	total, err := s.bucket.Count(ctx, s.prefix)
	if err != nil {
		return 0, fmt.Errorf("count subscribers: %w", err)
	}
	return total, nil
}

// Close releases the storage client when the store owns it.
func (s *BackupStore) Close() {
	if s == nil || s.closeFn == nil {
		return
	}
	_ = s.closeFn()
}

func (s *BackupStore) objectName(key string) (string, error) {
	digest, err := s.hasher.Hash([]byte(key))
	if err != nil {
		return "", fmt.Errorf("hash email: %w", err)
	}
	return s.prefix + digest + ".json", nil
}

type gcsBucket struct {
	handle *storage.BucketHandle
}

func (b *gcsBucket) Exists(ctx context.Context, name string) (bool, error) {
	_, err := b.handle.Object(name).Attrs(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, storage.ErrObjectNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("object attrs: %w", err)
	}
}

func (b *gcsBucket) Create(ctx context.Context, name string, data []byte) (bool, error) {
	writer := b.handle.Object(name).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)
	writer.ContentType = "application/json"
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return false, fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return false, fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusPreconditionFailed {
			return false, nil
		}
		return false, fmt.Errorf("close writer: %w", err)
	}
	return true, nil
}

func (b *gcsBucket) Count(ctx context.Context, prefix string) (int64, error) {
	it := b.handle.Objects(ctx, &storage.Query{Prefix: prefix})
	var total int64
	for {
		_, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return total, nil
		}
		if err != nil {
			return 0, fmt.Errorf("list objects: %w", err)
		}
		total++
	}
}
