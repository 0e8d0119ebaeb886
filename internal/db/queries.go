package db

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hpungsan/casetrack/internal/errors"
)

// WithTx runs fn inside a transaction, committing on nil and rolling back otherwise.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("begin transaction: %w", err))
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

// GetRaw returns the stored JSON for key. found is false when the key has never been written.
func GetRaw(ctx context.Context, tx *sql.Tx, key string) (raw []byte, found bool, err error) {
	var value string
	err = tx.QueryRowContext(ctx, `SELECT value_json FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewInternal(err)
	}
	return []byte(value), true, nil
}

// PutJSON marshals v and upserts it under key.
func PutJSON(ctx context.Context, tx *sql.Tx, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.NewInternal(err)
	}
	return PutRaw(ctx, tx, key, data)
}

// PutRaw upserts raw JSON under key without validating it.
func PutRaw(ctx context.Context, tx *sql.Tx, key string, raw []byte) error {
	query := `
		INSERT INTO kv (key, value_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value_json = excluded.value_json, updated_at = excluded.updated_at
	`
	if _, err := tx.ExecContext(ctx, query, key, string(raw), time.Now().Unix()); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// IsArray reports whether raw is a JSON array literal.
func IsArray(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
