// Package db provides PostgreSQL access for loading recently played songs.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// DB wraps a single PostgreSQL connection. It is opened for one load and
// closed afterwards; it is not safe for concurrent use.
type DB struct {
	conn *pgx.Conn
}

// Connect opens a connection and verifies it with a ping.
func Connect(ctx context.Context, connString string) (*DB, error) {
	config, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	conn, err := pgx.ConnectConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Verify connection
	if err := conn.Ping(ctx); err != nil {
		conn.Close(ctx)
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the connection.
func (db *DB) Close(ctx context.Context) error {
	return db.conn.Close(ctx)
}

// ServerVersion returns the server's version string.
func (db *DB) ServerVersion(ctx context.Context) (string, error) {
	var version string
	if err := db.conn.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", fmt.Errorf("querying server version: %w", err)
	}
	return version, nil
}

// Plays returns a PlayRepository bound to this connection.
func (db *DB) Plays() *PlayRepository {
	return &PlayRepository{conn: db.conn}
}
