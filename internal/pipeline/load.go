package pipeline

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/justestif/spotify-recently-played-etl/internal/db"
	"github.com/justestif/spotify-recently-played-etl/internal/storage"
)

// Loader bulk-loads the latest retrieved file into PostgreSQL.
type Loader struct {
	store      storage.Provider
	bucket     string
	archiveDir string
	connString string
	log        *zap.SugaredLogger
}

// NewLoader creates a Loader reading local copies from archiveDir.
func NewLoader(store storage.Provider, bucket, archiveDir, connString string, log *zap.SugaredLogger) *Loader {
	return &Loader{
		store:      store,
		bucket:     bucket,
		archiveDir: archiveDir,
		connString: connString,
		log:        log,
	}
}

// LoadLatest ensures the table exists, picks the latest archived object again
// and copies its local copy into the table. Returns the rows loaded.
// Nothing is committed when the copy fails.
func (l *Loader) LoadLatest(ctx context.Context) (int64, error) {
	database, err := db.Connect(ctx, l.connString)
	if err != nil {
		return 0, newError(ErrDatabaseUnavailable, "connect", err)
	}
	defer func() {
		if err := database.Close(ctx); err != nil {
			l.log.Warnw("closing database connection", "error", err)
		}
	}()

	if version, err := database.ServerVersion(ctx); err != nil {
		l.log.Warnw("could not read server version", "error", err)
	} else {
		l.log.Infow("connected to database", "version", version)
	}

	plays := database.Plays()
	if err := plays.EnsureTable(ctx); err != nil {
		return 0, newError(ErrLoadFailed, "create table", err)
	}

	obj, err := latestObject(ctx, l.store, l.bucket)
	if err != nil {
		return 0, err
	}

	path, err := archivedPath(l.archiveDir, obj.Key)
	if err != nil {
		return 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, newError(ErrSourceFileNotFound, "open "+path, err)
	}
	defer f.Close()

	n, err := plays.CopyCSV(ctx, f)
	if err != nil {
		return 0, newError(ErrLoadFailed, "copy "+obj.Key, err)
	}

	rowsLoaded.Add(float64(n))

	total, err := plays.Count(ctx)
	if err != nil {
		l.log.Warnw("could not count table rows", "error", err)
	}
	l.log.Infow("loaded rows", "table", db.TableName, "rows", n, "table_rows", total, "key", obj.Key)
	return n, nil
}
