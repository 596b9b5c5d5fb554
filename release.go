package sqsworker

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/xid"
)

// maxVisibilityBatch is the largest batch ChangeMessageVisibilityBatch accepts.
const maxVisibilityBatch = 10

// Release makes messages immediately receivable again.
func (m *Manager) Release(ctx context.Context, queueURL string, messages []Message) error {
	return m.ChangeVisibility(ctx, queueURL, messages, 0)
}

// ChangeVisibility sets the visibility timeout of messages, issuing one
// ChangeMessageVisibilityBatch request per chunk of ten. Entries the queue
// reports as failed are not retried; they are returned together as a
// *ReleaseError once every chunk has been sent. A transport error stops
// the release and is returned as is.
func (m *Manager) ChangeVisibility(ctx context.Context, queueURL string, messages []Message, timeoutSeconds int32) error {
	var failed []types.BatchResultErrorEntry

	for start := 0; start < len(messages); start += maxVisibilityBatch {
		end := start + maxVisibilityBatch
		if end > len(messages) {
			end = len(messages)
		}

		entries := make([]types.ChangeMessageVisibilityBatchRequestEntry, 0, end-start)
		for _, msg := range messages[start:end] {
			entries = append(entries, types.ChangeMessageVisibilityBatchRequestEntry{
				Id:                aws.String(xid.New().String()),
				ReceiptHandle:     aws.String(msg.ReceiptHandle()),
				VisibilityTimeout: timeoutSeconds,
			})
		}

		result, err := m.sqsClient.ChangeMessageVisibilityBatch(ctx, &sqs.ChangeMessageVisibilityBatchInput{
			QueueUrl: aws.String(queueURL),
			Entries:  entries,
		})
		if err != nil {
			return fmt.Errorf("failed to change message visibility: %w", err)
		}

		if result != nil && len(result.Failed) > 0 {
			m.logger.Warn().
				Str("queue_url", queueURL).
				Int("failed", len(result.Failed)).
				Int("chunk_size", len(entries)).
				Msg("Some visibility changes failed")
			failed = append(failed, result.Failed...)
		}
	}

	if len(failed) > 0 {
		return &ReleaseError{Failed: failed}
	}
	return nil
}
