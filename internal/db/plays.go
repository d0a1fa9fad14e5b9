package db

import (
	"context"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
)

// TableName is the destination table for loaded plays.
const TableName = "recently_played_songs"

const createTableSQL = `
	CREATE TABLE IF NOT EXISTS recently_played_songs (
		id SERIAL PRIMARY KEY NOT NULL,
		song_name TEXT,
		artist_name TEXT,
		played_at TIMESTAMP,
		timestamp TIMESTAMP
	)
`

// copyPlaysSQL loads header-less CSV rows; id is assigned by the sequence.
const copyPlaysSQL = `COPY recently_played_songs (song_name, artist_name, played_at, timestamp) FROM STDIN WITH (FORMAT csv)`

// PlayRepository handles recently_played_songs operations.
type PlayRepository struct {
	conn *pgx.Conn
}

// EnsureTable creates the table if it does not exist. The schema is never
// altered afterwards.
func (r *PlayRepository) EnsureTable(ctx context.Context) error {
	if _, err := r.conn.Exec(ctx, createTableSQL); err != nil {
		return fmt.Errorf("creating %s: %w", TableName, err)
	}
	return nil
}

// CopyCSV bulk-loads CSV rows from src in one transaction and returns the
// number of rows copied. Rows are appended; loading the same data twice
// duplicates it. On error nothing is committed.
func (r *PlayRepository) CopyCSV(ctx context.Context, src io.Reader) (int64, error) {
	tx, err := r.conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Conn().PgConn().CopyFrom(ctx, src, copyPlaysSQL)
	if err != nil {
		return 0, fmt.Errorf("copying rows: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing copy: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Count returns the number of rows in the table.
func (r *PlayRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.conn.QueryRow(ctx, `SELECT count(*) FROM recently_played_songs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting plays: %w", err)
	}
	return n, nil
}
