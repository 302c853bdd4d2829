package interfaces

import (
	"context"
	"io"
	"time"
)

// ObjectInfo describes one stored object
type ObjectInfo struct {
	Key       string
	Size      int64
	UpdatedAt time.Time
}

// FileStore keeps document bytes outside the metadata store
type FileStore interface {
	// Put writes r under key, replacing any existing object
	Put(ctx context.Context, key string, r io.Reader, contentType string) error

	// Open returns a reader for key. It fails with ErrNotFound for an
	// unknown key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes key. Deleting an unknown key is not an error.
	Delete(ctx context.Context, key string) error

	// Walk calls fn for every object whose key starts with prefix
	Walk(ctx context.Context, prefix string, fn func(obj ObjectInfo) error) error
}
