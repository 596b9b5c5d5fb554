package sqsworker

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type counters struct {
	batches         atomic.Int64
	received        atomic.Int64
	deleted         atomic.Int64
	released        atomic.Int64
	abortedBatches  atomic.Int64
	releaseFailures atomic.Int64
}

// Stats is a snapshot of what a Manager has done since it was created.
type Stats struct {
	Batches         int64
	Received        int64
	Deleted         int64
	Released        int64
	AbortedBatches  int64
	ReleaseFailures int64
}

func (m *Manager) Stats() Stats {
	return Stats{
		Batches:         m.counters.batches.Load(),
		Received:        m.counters.received.Load(),
		Deleted:         m.counters.deleted.Load(),
		Released:        m.counters.released.Load(),
		AbortedBatches:  m.counters.abortedBatches.Load(),
		ReleaseFailures: m.counters.releaseFailures.Load(),
	}
}

// QueueStats are the approximate message counts reported by SQS.
type QueueStats struct {
	Available int
	InFlight  int
	Delayed   int
}

// QueueStats fetches the approximate counts for a queue name or URL.
func (m *Manager) QueueStats(ctx context.Context, queueName string) (QueueStats, error) {
	queueURL, err := m.resolveQueueURL(ctx, queueName)
	if err != nil {
		return QueueStats{}, err
	}

	result, err := m.sqsClient.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(queueURL),
		AttributeNames: []types.QueueAttributeName{
			types.QueueAttributeNameApproximateNumberOfMessages,
			types.QueueAttributeNameApproximateNumberOfMessagesNotVisible,
			types.QueueAttributeNameApproximateNumberOfMessagesDelayed,
		},
	})
	if err != nil {
		return QueueStats{}, fmt.Errorf("failed to fetch queue stats: %w", err)
	}

	attr := func(name types.QueueAttributeName) int {
		value, ok := result.Attributes[string(name)]
		if !ok {
			return 0
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			m.logger.Warn().
				Err(err).
				Str("queue_url", queueURL).
				Str("attribute", string(name)).
				Msg("Unreadable queue attribute, reporting 0")
			return 0
		}
		return n
	}
	return QueueStats{
		Available: attr(types.QueueAttributeNameApproximateNumberOfMessages),
		InFlight:  attr(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible),
		Delayed:   attr(types.QueueAttributeNameApproximateNumberOfMessagesDelayed),
	}, nil
}
