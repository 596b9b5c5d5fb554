package sqsworker

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// PostgresDeduplicationStore keeps processed ids in the processed_messages
// table created by MigratePostgres. Timestamps come from the database clock
// so several workers agree on what is old.
type PostgresDeduplicationStore struct {
	db *sql.DB
}

func NewPostgresDeduplicationStore(db *sql.DB) *PostgresDeduplicationStore {
	return &PostgresDeduplicationStore{db: db}
}

func (p *PostgresDeduplicationStore) IsProcessed(ctx context.Context, messageID string) (bool, error) {
	var exists bool
	err := p.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM processed_messages WHERE message_id = $1)",
		messageID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to look up message %s: %w", messageID, err)
	}
	return exists, nil
}

func (p *PostgresDeduplicationStore) MarkProcessed(ctx context.Context, messageID, queue string) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO processed_messages (message_id, queue, processed_at)
         VALUES ($1, $2, now())
         ON CONFLICT (message_id) DO NOTHING`,
		messageID, queue,
	)
	if err != nil {
		return fmt.Errorf("failed to record message %s: %w", messageID, err)
	}
	return nil
}

func (p *PostgresDeduplicationStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	res, err := p.db.ExecContext(ctx,
		"DELETE FROM processed_messages WHERE processed_at < now() - make_interval(secs => $1)",
		olderThan.Seconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to clean up processed messages: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil {
		log.Debug().Int64("removed", n).Msg("Cleaned up old deduplication entries")
	}
	return nil
}

// Close is a noop, the *sql.DB belongs to the caller.
func (p *PostgresDeduplicationStore) Close() error {
	return nil
}
