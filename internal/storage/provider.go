// Package storage provides object storage backends for archived staged files.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound is returned when a key does not exist in the bucket.
var ErrObjectNotFound = errors.New("object not found")

// Provider defines the behavior for any storage backend.
type Provider interface {
	// List returns every object in the bucket, in the backend's listing order.
	List(ctx context.Context, bucket string) ([]ObjectInfo, error)
	// Put uploads body under key.
	Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error
	// Download writes the object's content to w and returns the byte count.
	Download(ctx context.Context, bucket, key string, w io.WriterAt) (int64, error)
}

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}
