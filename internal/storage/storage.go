// Package storage abstracts the object store that receipt images are
// uploaded to. The server never proxies image bytes; it only signs
// upload URLs.
package storage

import (
	"context"
	"time"
)

// ObjectStorage defines the operations the upload coordinator needs
// from a backend.
type ObjectStorage interface {
	EnsureBucket(ctx context.Context) error
	PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error)
	Bucket() string
}

// Storage wraps an ObjectStorage backend with a stable API.
type Storage struct {
	backend ObjectStorage
}

// NewStorage constructs a Storage wrapper for the provided backend.
func NewStorage(backend ObjectStorage) *Storage {
	return &Storage{backend: backend}
}

// EnsureBucket ensures the configured bucket exists.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// PresignPut issues a time-limited signed PUT URL for the given key.
func (s *Storage) PresignPut(ctx context.Context, key, contentType string, expires time.Duration) (string, error) {
	return s.backend.PresignPut(ctx, key, contentType, expires)
}

// Bucket returns the configured bucket name.
func (s *Storage) Bucket() string {
	return s.backend.Bucket()
}
