package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/justestif/spotify-recently-played-etl/internal/storage"
)

var errUnsafeKey = errors.New("object key escapes the archive directory")

// Retriever downloads the most recently archived file.
type Retriever struct {
	store      storage.Provider
	bucket     string
	archiveDir string
	log        *zap.SugaredLogger
}

// NewRetriever creates a Retriever that downloads into archiveDir.
func NewRetriever(store storage.Provider, bucket, archiveDir string, log *zap.SugaredLogger) *Retriever {
	return &Retriever{store: store, bucket: bucket, archiveDir: archiveDir, log: log}
}

// RetrieveLatest selects the latest object (see storage.Latest) and downloads
// it to archiveDir under its key. Returns the local path.
func (r *Retriever) RetrieveLatest(ctx context.Context) (string, error) {
	obj, err := latestObject(ctx, r.store, r.bucket)
	if err != nil {
		return "", err
	}

	path, err := archivedPath(r.archiveDir, obj.Key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", newError(ErrStorageReadFailed, "create archive directory", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return "", newError(ErrStorageReadFailed, "create "+path, err)
	}

	n, err := r.store.Download(ctx, r.bucket, obj.Key, f)
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", newError(ErrStorageReadFailed, "download "+obj.Key, err)
	}

	r.log.Infow("retrieved latest archive",
		"bucket", r.bucket,
		"key", obj.Key,
		"last_modified", obj.LastModified,
		"bytes", n,
		"path", path,
	)
	return path, nil
}

// latestObject lists the bucket and applies the selection policy.
func latestObject(ctx context.Context, store storage.Provider, bucket string) (storage.ObjectInfo, error) {
	objects, err := store.List(ctx, bucket)
	if err != nil {
		return storage.ObjectInfo{}, newError(ErrStorageReadFailed, "list "+bucket, err)
	}

	obj, ok := storage.Latest(objects)
	if !ok {
		return storage.ObjectInfo{}, newError(ErrNoArchivedObjects, "list "+bucket, nil)
	}
	return obj, nil
}

// archivedPath is the local copy of key under archiveDir. Keys that would
// resolve outside archiveDir are rejected.
func archivedPath(archiveDir, key string) (string, error) {
	rel := filepath.FromSlash(key)
	if !filepath.IsLocal(rel) {
		return "", newError(ErrStorageReadFailed, "resolve "+key, fmt.Errorf("%w: %q", errUnsafeKey, key))
	}
	return filepath.Join(archiveDir, rel), nil
}
