package pipeline

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/justestif/spotify-recently-played-etl/internal/db"
	"github.com/justestif/spotify-recently-played-etl/internal/staging"
)

func TestLoadLatestDatabaseUnreachable(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	conn := "postgres://etl:secret@" + addr + "/spotify?connect_timeout=2&sslmode=disable"
	_, err = NewLoader(newLocalStore(t), testBucket, t.TempDir(), conn, nopLog).LoadLatest(ctx)
	assertKind(t, err, ErrDatabaseUnavailable)
}

// testConnString returns TEST_DATABASE_URL after dropping the plays table.
func testConnString(t *testing.T) string {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer conn.Close(ctx)
	if _, err := conn.Exec(ctx, "DROP TABLE IF EXISTS "+db.TableName); err != nil {
		t.Fatalf("dropping table: %v", err)
	}
	return url
}

func countRows(t *testing.T, url string) int64 {
	t.Helper()
	ctx := context.Background()
	conn, err := pgx.Connect(ctx, url)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer conn.Close(ctx)

	var n int64
	if err := conn.QueryRow(ctx, "SELECT count(*) FROM "+db.TableName).Scan(&n); err != nil {
		t.Fatalf("counting rows: %v", err)
	}
	return n
}

func TestLoadLatestAppends(t *testing.T) {
	url := testConnString(t)
	ctx := context.Background()
	store := newLocalStore(t)
	archiveDir := t.TempDir()

	events := []staging.PlayEvent{
		staging.NewPlayEvent("A", "B", "2024-01-19T10:00:00Z"),
		staging.NewPlayEvent("C", "D", "2024-01-19T11:00:00Z"),
		staging.NewPlayEvent("E", "F", "2024-01-19T11:30:00Z"),
	}
	stagedPath := staging.LocalPath(t.TempDir(), "19-01-24")
	if err := staging.WriteFile(stagedPath, events); err != nil {
		t.Fatal(err)
	}
	if _, err := NewArchiver(store, testBucket, nopLog).Archive(ctx, stagedPath, "19-01-24"); err != nil {
		t.Fatal(err)
	}
	if _, err := NewRetriever(store, testBucket, archiveDir, nopLog).RetrieveLatest(ctx); err != nil {
		t.Fatal(err)
	}

	loader := NewLoader(store, testBucket, archiveDir, url, nopLog)
	for i := 1; i <= 2; i++ {
		n, err := loader.LoadLatest(ctx)
		if err != nil {
			t.Fatalf("LoadLatest() #%d error = %v", i, err)
		}
		if n != 3 {
			t.Errorf("LoadLatest() #%d = %d rows, want 3", i, n)
		}
	}

	// No dedup: loading the same file twice doubles the rows.
	if got := countRows(t, url); got != 6 {
		t.Errorf("table has %d rows, want 6", got)
	}
}

func TestLoadLatestFailures(t *testing.T) {
	url := testConnString(t)
	ctx := context.Background()
	key := staging.ObjectKey("19-01-24")

	t.Run("no archived objects", func(t *testing.T) {
		_, err := NewLoader(newLocalStore(t), testBucket, t.TempDir(), url, nopLog).LoadLatest(ctx)
		assertKind(t, err, ErrNoArchivedObjects)
	})

	t.Run("local copy missing", func(t *testing.T) {
		store := newLocalStore(t)
		putObject(t, store, key, "A,B,2024-01-19T10:00:00Z,2024-01-19\n", time.Now())

		_, err := NewLoader(store, testBucket, t.TempDir(), url, nopLog).LoadLatest(ctx)
		assertKind(t, err, ErrSourceFileNotFound)
	})

	t.Run("malformed row commits nothing", func(t *testing.T) {
		store := newLocalStore(t)
		archiveDir := t.TempDir()
		content := "A,B,2024-01-19T10:00:00Z,2024-01-19\nonly,three,fields\n"
		putObject(t, store, key, content, time.Now())
		if err := os.WriteFile(filepath.Join(archiveDir, key), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}

		_, err := NewLoader(store, testBucket, archiveDir, url, nopLog).LoadLatest(ctx)
		assertKind(t, err, ErrLoadFailed)

		if got := countRows(t, url); got != 0 {
			t.Errorf("table has %d rows after failed load, want 0", got)
		}
	})
}
