package sqsworker

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const createProcessedMessagesTable = `
CREATE TABLE IF NOT EXISTS processed_messages (
    message_id   TEXT PRIMARY KEY,
    queue        TEXT NOT NULL,
    processed_at TIMESTAMPTZ NOT NULL
)`

// OpenPostgres opens and pings a Postgres database.
func OpenPostgres(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}

// MigratePostgres creates the tables the Postgres backed stores need.
func MigratePostgres(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createProcessedMessagesTable); err != nil {
		return fmt.Errorf("failed to create processed_messages table: %w", err)
	}
	return nil
}
