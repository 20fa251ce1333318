package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

const kvSchema = `CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`

// SQLiteClient is a single-table key/value store on an embedded SQLite file.
type SQLiteClient struct {
	DB *sql.DB
}

// NewSQLite opens (and creates) the database at path. ":memory:" is accepted.
func NewSQLite(path string) (*SQLiteClient, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	client := &SQLiteClient{DB: db}
	if err := client.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return client, nil
}

// NewSQLiteFromDB wraps an existing handle (sqlmock in tests).
func NewSQLiteFromDB(db *sql.DB) *SQLiteClient {
	return &SQLiteClient{DB: db}
}

func (c *SQLiteClient) Migrate(ctx context.Context) error {
	if _, err := c.DB.ExecContext(ctx, kvSchema); err != nil {
		return fmt.Errorf("failed to create kv_store table: %w", err)
	}
	return nil
}

func (c *SQLiteClient) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := c.DB.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read key %s: %w", key, err)
	}
	return value, true, nil
}

func (c *SQLiteClient) Set(ctx context.Context, key, value string) error {
	_, err := c.DB.ExecContext(ctx,
		`INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		key, value)
	if err != nil {
		return fmt.Errorf("failed to write key %s: %w", key, err)
	}
	return nil
}

func (c *SQLiteClient) Del(ctx context.Context, key string) error {
	if _, err := c.DB.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

func (c *SQLiteClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
