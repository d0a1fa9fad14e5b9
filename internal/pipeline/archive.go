package pipeline

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/justestif/spotify-recently-played-etl/internal/staging"
	"github.com/justestif/spotify-recently-played-etl/internal/storage"
)

const csvContentType = "text/csv"

// Archiver uploads staged files to the bucket.
type Archiver struct {
	store  storage.Provider
	bucket string
	log    *zap.SugaredLogger
}

// NewArchiver creates an Archiver writing to bucket.
func NewArchiver(store storage.Provider, bucket string, log *zap.SugaredLogger) *Archiver {
	return &Archiver{store: store, bucket: bucket, log: log}
}

// Archive uploads the file at stagedPath under the object key for runDate
// and returns the key. The upload is not read back.
func (a *Archiver) Archive(ctx context.Context, stagedPath, runDate string) (string, error) {
	f, err := os.Open(stagedPath)
	if err != nil {
		return "", newError(ErrSourceFileNotFound, "open staged file", err)
	}
	defer f.Close()

	key := staging.ObjectKey(runDate)
	if err := a.store.Put(ctx, a.bucket, key, f, csvContentType); err != nil {
		return "", newError(ErrStorageWriteFailed, "upload "+key, err)
	}

	a.log.Infow("archived staged file", "bucket", a.bucket, "key", key, "source", stagedPath)
	return key, nil
}
