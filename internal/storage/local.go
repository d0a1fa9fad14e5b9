package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalProvider simulates buckets as directories under RootPath.
type LocalProvider struct {
	RootPath string
}

// NewLocalProvider returns a provider rooted at root, creating it if needed.
func NewLocalProvider(root string) (*LocalProvider, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, err
	}
	return &LocalProvider{RootPath: root}, nil
}

// List walks the bucket directory in lexical order, matching S3 key order.
// A bucket directory that does not exist lists as empty.
func (l *LocalProvider) List(ctx context.Context, bucket string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	bucketPath := filepath.Join(l.RootPath, bucket)

	err := filepath.WalkDir(bucketPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		// Convert OS path back to S3-style key (forward slashes)
		rel, err := filepath.Rel(bucketPath, path)
		if err != nil {
			return err
		}
		objects = append(objects, ObjectInfo{
			Key:          filepath.ToSlash(rel),
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return objects, err
}

func (l *LocalProvider) Put(ctx context.Context, bucket, key string, body io.Reader, contentType string) error {
	path := l.path(bucket, key)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func (l *LocalProvider) Download(ctx context.Context, bucket, key string, w io.WriterAt) (int64, error) {
	f, err := os.Open(l.path(bucket, key))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, errors.Join(ErrObjectNotFound, err)
	}
	if err != nil {
		return 0, err
	}
	defer f.Close()

	return io.Copy(io.NewOffsetWriter(w, 0), f)
}

func (l *LocalProvider) path(bucket, key string) string {
	return filepath.Join(l.RootPath, bucket, filepath.FromSlash(key))
}
