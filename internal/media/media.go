package media

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/menucraft/apiserver/config"
)

// ObjectStore defines the object operations needed for item images,
// implemented per backend.
type ObjectStore interface {
	EnsureBucket(ctx context.Context) error
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	Bucket() string
}

// Store wraps an ObjectStore backend with a stable API.
type Store struct {
	backend ObjectStore
}

// NewStore constructs a Store wrapper for the provided backend.
func NewStore(backend ObjectStore) *Store {
	return &Store{backend: backend}
}

// Connect builds the image store selected by config and ensures its bucket
// exists. An empty backend disables image handling; callers get a nil Store.
func Connect(ctx context.Context, cfg config.MediaConfig) (*Store, error) {
	var backend ObjectStore
	var err error

	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "":
		return nil, nil
	case "minio":
		backend, err = NewMinioStore(cfg.Minio)
	case "gcs":
		backend, err = NewGCSStore(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("unknown media backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	store := NewStore(backend)
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// EnsureBucket ensures the configured bucket exists.
func (s *Store) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Put uploads an image object to the configured bucket.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	return s.backend.Put(ctx, key, r, size, contentType)
}

// Get opens a reader for an image object in the configured bucket.
func (s *Store) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.backend.Get(ctx, key)
}

// Delete removes an image object from the configured bucket.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.backend.Delete(ctx, key)
}

// Bucket returns the configured bucket name.
func (s *Store) Bucket() string {
	return s.backend.Bucket()
}
