package port

import (
	"context"
	"time"
)

// ObjectInfo describes a stored object
type ObjectInfo struct {
	Path         string
	Size         int64
	LastModified time.Time
}

// ObjectStorage is the binary store used for receipts
type ObjectStorage interface {
	// Upload stores content under path and returns the stored path reference
	Upload(ctx context.Context, bucket, path string, content []byte, contentType string) (string, error)

	// PublicURL resolves a path reference to a URL clients can fetch
	PublicURL(bucket, path string) string

	Delete(ctx context.Context, bucket, path string) error

	// List returns every object whose path starts with prefix
	List(ctx context.Context, bucket, prefix string) ([]ObjectInfo, error)
}
