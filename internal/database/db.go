package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"chronoloom/pkg/logger"
)

// Dialect selects the SQL flavour of a connection.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func init() {
	// modernc registers as "sqlite", which sqlx does not know by name.
	sqlx.BindDriver(string(SQLite), sqlx.QUESTION)
}

const schema = `
CREATE TABLE IF NOT EXISTS kv_store (
	key        TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`

// Open opens a connection pool for dialect and verifies it with a ping.
func Open(ctx context.Context, dialect Dialect, dsn string, poolSize int) (*sqlx.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s dsn is empty", dialect)
	}
	db, err := sqlx.Open(string(dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == SQLite {
		// one writer; the file is local to the device
		db.SetMaxOpenConns(1)
	} else if poolSize > 0 {
		db.SetMaxOpenConns(poolSize)
		db.SetMaxIdleConns(poolSize / 2)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	logger.Info(ctx, "Database pool initialized", "dialect", dialect)
	return db, nil
}

// MigrateOrCreateSchema creates the key-value table if it does not exist.
func MigrateOrCreateSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create kv_store: %w", err)
	}
	return nil
}
