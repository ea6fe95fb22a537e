package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"chronoloom/pkg/logger"
)

// Store is a kv.Store backed by the kv_store table.
type Store struct {
	db *sqlx.DB
}

type kvRow struct {
	Key       string    `db:"key"`
	Value     string    `db:"value"`
	UpdatedAt time.Time `db:"updated_at"`
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

func (s *Store) GetString(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, s.db.Rebind(`SELECT value FROM kv_store WHERE key = ?`), key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		logger.Error(ctx, "kv get failed", "key", key, "error", err)
		return "", false, err
	}
	return value, true, nil
}

func (s *Store) Set(ctx context.Context, key, value string) error {
	query := `INSERT INTO kv_store (key, value, updated_at)
			  VALUES (:key, :value, :updated_at)
			  ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`

	_, err := s.db.NamedExecContext(ctx, query, kvRow{Key: key, Value: value, UpdatedAt: time.Now().UTC()})
	if err != nil {
		logger.Error(ctx, "kv set failed", "key", key, "error", err)
		return err
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
