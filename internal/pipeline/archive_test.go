package pipeline

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/justestif/spotify-recently-played-etl/internal/staging"
)

func TestArchiveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newLocalStore(t)
	dataDir := filepath.Join(t.TempDir(), "data")
	archiveDir := filepath.Join(t.TempDir(), "s3_data")

	events := []staging.PlayEvent{
		staging.NewPlayEvent("A", "B", "2024-01-19T10:00:00Z"),
		staging.NewPlayEvent("Hello, Goodbye", "The Beatles", "2024-01-19T09:30:00.250Z"),
	}
	stagedPath := staging.LocalPath(dataDir, "19-01-24")
	if err := staging.WriteFile(stagedPath, events); err != nil {
		t.Fatal(err)
	}

	key, err := NewArchiver(store, testBucket, nopLog).Archive(ctx, stagedPath, "19-01-24")
	if err != nil {
		t.Fatalf("Archive() error = %v", err)
	}
	if key != "19-01-24-recently_played.csv" {
		t.Errorf("key = %q, want %q", key, "19-01-24-recently_played.csv")
	}

	path, err := NewRetriever(store, testBucket, archiveDir, nopLog).RetrieveLatest(ctx)
	if err != nil {
		t.Fatalf("RetrieveLatest() error = %v", err)
	}
	if want := filepath.Join(archiveDir, key); path != want {
		t.Errorf("retrieved path = %q, want %q", path, want)
	}

	original, err := os.ReadFile(stagedPath)
	if err != nil {
		t.Fatal(err)
	}
	downloaded, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(original, downloaded) {
		t.Errorf("downloaded content = %q, want %q", downloaded, original)
	}
}

func TestArchiveMissingFile(t *testing.T) {
	store := newLocalStore(t)
	missing := filepath.Join(t.TempDir(), "data", staging.LocalName("19-01-24"))

	_, err := NewArchiver(store, testBucket, nopLog).Archive(context.Background(), missing, "19-01-24")
	assertKind(t, err, ErrSourceFileNotFound)

	objects, err := store.List(context.Background(), testBucket)
	if err != nil {
		t.Fatal(err)
	}
	if len(objects) != 0 {
		t.Errorf("bucket has %d objects after failed archive, want 0", len(objects))
	}
}

func TestArchiveUploadRejected(t *testing.T) {
	stagedPath := filepath.Join(t.TempDir(), staging.LocalName("19-01-24"))
	if err := staging.WriteFile(stagedPath, nil); err != nil {
		t.Fatal(err)
	}

	store := &fakeStore{putErr: errors.New("AccessDenied: Access Denied")}
	_, err := NewArchiver(store, testBucket, nopLog).Archive(context.Background(), stagedPath, "19-01-24")
	assertKind(t, err, ErrStorageWriteFailed)
}

func TestArchiveOverwritesSameDay(t *testing.T) {
	ctx := context.Background()
	store := newLocalStore(t)
	dir := t.TempDir()
	stagedPath := staging.LocalPath(dir, "19-01-24")
	archiver := NewArchiver(store, testBucket, nopLog)

	for _, song := range []string{"first", "second"} {
		if err := staging.WriteFile(stagedPath, []staging.PlayEvent{staging.NewPlayEvent(song, "B", "2024-01-19T10:00:00Z")}); err != nil {
			t.Fatal(err)
		}
		if _, err := archiver.Archive(ctx, stagedPath, "19-01-24"); err != nil {
			t.Fatalf("Archive() error = %v", err)
		}
	}

	objects, err := store.List(ctx, testBucket)
	if err != nil {
		t.Fatal(err)
	}
	if len(objects) != 1 {
		t.Fatalf("bucket has %d objects, want 1", len(objects))
	}

	// The same key is reused, so a re-run replaces the day's archive.
	content, err := os.ReadFile(filepath.Join(store.RootPath, testBucket, objects[0].Key))
	if err != nil {
		t.Fatal(err)
	}
	if want := "second,B,2024-01-19T10:00:00Z,2024-01-19\n"; string(content) != want {
		t.Errorf("archived content = %q, want %q", content, want)
	}
}
