package sqsworker

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// DeduplicationStore records which message IDs a Handler has completed, so
// a redelivered message can be deleted without being handled twice.
type DeduplicationStore interface {
	IsProcessed(ctx context.Context, messageID string) (bool, error)

	// MarkProcessed is called after the handler returned nil. Marking an ID
	// twice is not an error.
	MarkProcessed(ctx context.Context, messageID, queue string) error

	// Cleanup forgets IDs recorded more than olderThan ago. It should be
	// well above the queue's retention period.
	Cleanup(ctx context.Context, olderThan time.Duration) error

	Close() error
}

// Deduplicate wraps next so that a message already recorded in store is
// acknowledged without running next again. SQS delivers at least once, so
// a message can come back after its first delivery was handled but not
// deleted in time.
//
// A failure to record a handled message is logged and otherwise ignored:
// the work is done, and releasing the batch would only run it again.
func Deduplicate(store DeduplicationStore, queue string, next Handler) Handler {
	return HandlerFunc(func(ctx context.Context, msg Message) error {
		processed, err := store.IsProcessed(ctx, msg.ID())
		if err != nil {
			return fmt.Errorf("failed to check if message was processed: %w", err)
		}
		if processed {
			log.Debug().Str("queue", queue).Str("message_id", msg.ID()).Msg("Skipping already processed message")
			return nil
		}

		if err := next.Handle(ctx, msg); err != nil {
			return err
		}

		if err := store.MarkProcessed(ctx, msg.ID(), queue); err != nil {
			log.Error().
				Err(err).
				Str("queue", queue).
				Str("message_id", msg.ID()).
				Msg("Failed to record processed message, a redelivery will be handled again")
		}
		return nil
	})
}
