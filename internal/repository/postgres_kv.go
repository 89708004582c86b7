package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/foster-pipeline-api/pkg/storage"
)

const kvSchema = `CREATE TABLE IF NOT EXISTS kv_store (
    key TEXT PRIMARY KEY,
    value BYTEA NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

// PostgresKV stores sync state rows in the kv_store table.
type PostgresKV struct {
	db     *sqlx.DB
	prefix string
}

// NewPostgresKV constructs the repository.
func NewPostgresKV(db *sqlx.DB, prefix string) *PostgresKV {
	return &PostgresKV{db: db, prefix: prefix}
}

// EnsureSchema creates kv_store when missing.
func (r *PostgresKV) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, kvSchema); err != nil {
		return fmt.Errorf("create kv_store: %w", err)
	}
	return nil
}

func (r *PostgresKV) Get(ctx context.Context, key string) ([]byte, error) {
	const query = `SELECT value FROM kv_store WHERE key = $1`
	var value []byte
	if err := r.db.GetContext(ctx, &value, query, r.prefix+key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get kv %s: %w", key, err)
	}
	return value, nil
}

func (r *PostgresKV) Set(ctx context.Context, key string, value []byte) error {
	const query = `INSERT INTO kv_store (key, value, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, r.prefix+key, value); err != nil {
		return fmt.Errorf("upsert kv %s: %w", key, err)
	}
	return nil
}

func (r *PostgresKV) Remove(ctx context.Context, key string) error {
	const query = `DELETE FROM kv_store WHERE key = $1`
	if _, err := r.db.ExecContext(ctx, query, r.prefix+key); err != nil {
		return fmt.Errorf("delete kv %s: %w", key, err)
	}
	return nil
}
