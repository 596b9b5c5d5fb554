package sqsworker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	defaultMaxNumberOfMessages int32 = 1
	defaultVisibilityTimeout   int32 = 30

	// DefaultComponent identifies Managers in listener lock keys.
	DefaultComponent = "sqsworker.Manager"
)

// Handler processes one message. Returning nil deletes the message;
// returning an error releases it and the rest of its batch.
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg Message) error

func (f HandlerFunc) Handle(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

// Manager polls a queue, dispatches messages to a Handler, deletes the ones
// handled successfully and releases the rest of a batch when one fails or
// its visibility window runs out.
type Manager struct {
	sqsClient      SQSClientInterface
	lock           ExclusiveLock
	component      string
	logger         zerolog.Logger
	now            func() time.Time
	onBatchAborted func(BatchAborted)

	maxNumberOfMessages int32
	visibilityTimeout   int32
	waitTimeSeconds     int32

	counters counters
}

// NewManager creates a Manager. Without WithLock, keep-alive listeners are
// guarded by lock files in the system temp directory.
func NewManager(client SQSClientInterface, opts ...Option) *Manager {
	m := &Manager{
		sqsClient:           client,
		component:           DefaultComponent,
		logger:              log.Logger,
		now:                 time.Now,
		maxNumberOfMessages: defaultMaxNumberOfMessages,
		visibilityTimeout:   defaultVisibilityTimeout,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.lock == nil {
		m.lock = NewFileLock(os.TempDir())
	}
	return m
}

// NewManagerFromConfig creates a Manager backed by a real SQS client.
func NewManagerFromConfig(awsConfig aws.Config, opts ...Option) *Manager {
	return NewManager(sqs.NewFromConfig(awsConfig), opts...)
}

func (m *Manager) SetMaxNumberOfMessages(n int32) *Manager {
	m.maxNumberOfMessages = n
	return m
}

func (m *Manager) SetVisibilityTimeout(seconds int32) *Manager {
	m.visibilityTimeout = seconds
	return m
}

// SetWaitTimeSeconds enables long polling; 0 leaves it to the queue setting.
func (m *Manager) SetWaitTimeSeconds(seconds int32) *Manager {
	m.waitTimeSeconds = seconds
	return m
}

// Run consumes queueName, which may be a queue name or URL. Without
// keepAlive it performs one receive and returns once that batch has been
// processed. With keepAlive it first takes the listener lock for the queue,
// failing with *ListenerAlreadyRunningError if another listener holds it,
// then loops until ctx is done. If the lock reports that it was lost, Run
// stops and returns an error wrapping ErrListenerLockLost.
//
// Handler errors and expired deadlines never escape Run; they release the
// batch and the loop carries on. Errors talking to SQS are returned.
func (m *Manager) Run(ctx context.Context, queueName string, handler Handler, keepAlive bool, opts ...ReceiveOption) error {
	if keepAlive {
		key, err := m.acquireListenerLock(ctx, queueName)
		if err != nil {
			return err
		}
		if notifier, ok := m.lock.(LockLossNotifier); ok {
			var cancel context.CancelCauseFunc
			ctx, cancel = context.WithCancelCause(ctx)
			defer cancel(nil)
			go watchListenerLock(ctx, notifier.Lost(key), queueName, cancel)
		}
	}

	queueURL, err := m.resolveQueueURL(ctx, queueName)
	if err != nil {
		return stopReason(ctx, err)
	}

	input := m.receiveInput(queueURL, opts)
	ql := m.logger.With().Str("queue_url", queueURL).Logger()
	ql.Debug().
		Int32("max_messages", input.MaxNumberOfMessages).
		Int32("visibility_timeout", input.VisibilityTimeout).
		Int32("wait_time", input.WaitTimeSeconds).
		Bool("keep_alive", keepAlive).
		Msg("Listening")

	for {
		if err := m.poll(ctx, input, handler); err != nil {
			return stopReason(ctx, err)
		}
		if !keepAlive {
			return nil
		}
		if err := ctx.Err(); err != nil {
			ql.Debug().Msg("Listener stopped")
			return stopReason(ctx, err)
		}
	}
}

func (m *Manager) acquireListenerLock(ctx context.Context, queueName string) (string, error) {
	key := ListenerLockKey(m.component, queueName)
	acquired, err := m.lock.TryAcquire(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to acquire listener lock for %q: %w", queueName, err)
	}
	if !acquired {
		return "", &ListenerAlreadyRunningError{Queue: queueName}
	}
	m.logger.Debug().Str("queue", queueName).Str("lock_key", key).Msg("Listener lock acquired")
	return key, nil
}

// watchListenerLock cancels the listener once its lock is lost.
func watchListenerLock(ctx context.Context, lost <-chan struct{}, queueName string, cancel context.CancelCauseFunc) {
	select {
	case <-lost:
		cancel(fmt.Errorf("queue %q: %w", queueName, ErrListenerLockLost))
	case <-ctx.Done():
	}
}

// stopReason reports a lost listener lock in place of the error it caused.
func stopReason(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); errors.Is(cause, ErrListenerLockLost) {
		return cause
	}
	return err
}

func (m *Manager) receiveInput(queueURL string, opts []ReceiveOption) *sqs.ReceiveMessageInput {
	input := &sqs.ReceiveMessageInput{
		MaxNumberOfMessages: m.maxNumberOfMessages,
		VisibilityTimeout:   m.visibilityTimeout,
		WaitTimeSeconds:     m.waitTimeSeconds,
	}
	for _, opt := range opts {
		opt(input)
	}
	input.QueueUrl = aws.String(queueURL)
	return input
}

// visibilityWindow is the timeout the queue applies to a received batch.
func (m *Manager) visibilityWindow(input *sqs.ReceiveMessageInput) int32 {
	switch {
	case input.VisibilityTimeout > 0:
		return input.VisibilityTimeout
	case m.visibilityTimeout > 0:
		return m.visibilityTimeout
	default:
		return defaultVisibilityTimeout
	}
}

func (m *Manager) poll(ctx context.Context, input *sqs.ReceiveMessageInput, handler Handler) error {
	result, err := m.sqsClient.ReceiveMessage(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to receive messages: %w", err)
	}
	if result == nil || len(result.Messages) == 0 {
		return nil
	}

	deadline := newBatchDeadline(m.now(), m.visibilityWindow(input))
	messages := messagesFromSQS(result.Messages)

	m.counters.batches.Add(1)
	m.counters.received.Add(int64(len(messages)))
	m.logger.Debug().
		Str("queue_url", aws.ToString(input.QueueUrl)).
		Int("count", len(messages)).
		Time("deadline", deadline.at()).
		Msg("Received messages from SQS")

	return m.processBatch(ctx, aws.ToString(input.QueueUrl), messages, deadline, handler)
}

// processBatch dispatches messages in order. Each message ends up either
// deleted or released.
func (m *Manager) processBatch(ctx context.Context, queueURL string, messages []Message, deadline batchDeadline, handler Handler) error {
	for i, msg := range messages {
		if err := deadline.check(m.now()); err != nil {
			return m.abortBatch(ctx, queueURL, messages[i:], msg, err)
		}

		if err := m.dispatch(ctx, handler, msg); err != nil {
			return m.abortBatch(ctx, queueURL, messages[i:], msg, err)
		}

		if err := m.deleteMessage(ctx, queueURL, msg); err != nil {
			// msg was handled, so only the undispatched rest goes back
			if relErr := m.releaseRemaining(ctx, queueURL, messages[i+1:]); relErr != nil {
				return errors.Join(err, relErr)
			}
			return err
		}
	}
	return nil
}

// dispatch runs the handler, turning a panic into an error so the batch is
// released instead of deleted.
func (m *Manager) dispatch(ctx context.Context, handler Handler, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Str("message_id", msg.ID()).
				Interface("panic", r).
				Msg("Handler recovered from panic")
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler.Handle(ctx, msg)
}

func (m *Manager) deleteMessage(ctx context.Context, queueURL string, msg Message) error {
	_, err := m.sqsClient.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(queueURL),
		ReceiptHandle: aws.String(msg.ReceiptHandle()),
	})
	if err != nil {
		return fmt.Errorf("failed to delete message %s: %w", msg.ID(), err)
	}
	m.counters.deleted.Add(1)
	m.logger.Debug().Str("message_id", msg.ID()).Msg("Message deleted from SQS")
	return nil
}

// abortBatch releases every message that has not been deleted yet. The
// reason is reported to the hook and otherwise dropped.
func (m *Manager) abortBatch(ctx context.Context, queueURL string, remaining []Message, failed Message, reason error) error {
	m.counters.abortedBatches.Add(1)
	m.logger.Debug().
		Str("queue_url", queueURL).
		Str("message_id", failed.ID()).
		Bool("timed_out", errors.Is(reason, ErrVisibilityTimeoutExceeded)).
		Int("releasing", len(remaining)).
		Msg("Batch aborted")

	if err := m.releaseRemaining(ctx, queueURL, remaining); err != nil {
		return err
	}

	if m.onBatchAborted != nil {
		m.onBatchAborted(BatchAborted{
			QueueURL:  queueURL,
			Reason:    reason,
			MessageID: failed.ID(),
			Released:  len(remaining),
		})
	}
	return nil
}

// releaseRemaining logs partial failures and returns transport errors.
func (m *Manager) releaseRemaining(ctx context.Context, queueURL string, remaining []Message) error {
	if len(remaining) == 0 {
		return nil
	}
	err := m.Release(ctx, queueURL, remaining)

	var relErr *ReleaseError
	switch {
	case err == nil:
		m.counters.released.Add(int64(len(remaining)))
		return nil
	case errors.As(err, &relErr):
		m.counters.released.Add(int64(len(remaining) - len(relErr.Failed)))
		m.counters.releaseFailures.Add(int64(len(relErr.Failed)))
		m.logger.Error().
			Err(err).
			Str("queue_url", queueURL).
			Int("failed", len(relErr.Failed)).
			Msg("Failed to release messages, they stay invisible until their timeout")
		return nil
	default:
		return err
	}
}
