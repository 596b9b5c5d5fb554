package sqsworker

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/rs/zerolog"
)

// Option configures a Manager at construction time.
type Option func(*Manager)

// WithLock sets the lock used to keep a single keep-alive listener per queue.
func WithLock(lock ExclusiveLock) Option {
	return func(m *Manager) { m.lock = lock }
}

// WithComponent sets the identity mixed into listener lock keys. Instances
// that should exclude each other must use the same component.
func WithComponent(component string) Option {
	return func(m *Manager) { m.component = component }
}

// WithLogger replaces the global zerolog logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithClock replaces time.Now for deadline checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithBatchAbortedHook is called every time a batch is released after a
// handler failure or an expired deadline.
func WithBatchAbortedHook(fn func(BatchAborted)) Option {
	return func(m *Manager) { m.onBatchAborted = fn }
}

// ReceiveOption adjusts the ReceiveMessage request built by Run. Options
// are applied after the Manager's defaults, so they win.
type ReceiveOption func(*sqs.ReceiveMessageInput)

func WithMaxMessages(n int32) ReceiveOption {
	return func(in *sqs.ReceiveMessageInput) { in.MaxNumberOfMessages = n }
}

func WithVisibilityTimeout(seconds int32) ReceiveOption {
	return func(in *sqs.ReceiveMessageInput) { in.VisibilityTimeout = seconds }
}

func WithWaitTime(seconds int32) ReceiveOption {
	return func(in *sqs.ReceiveMessageInput) { in.WaitTimeSeconds = seconds }
}

// WithMessageAttributeNames requests user attributes; use "All" for every one.
func WithMessageAttributeNames(names ...string) ReceiveOption {
	return func(in *sqs.ReceiveMessageInput) { in.MessageAttributeNames = names }
}

// WithSystemAttributeNames requests system attributes such as ApproximateReceiveCount.
func WithSystemAttributeNames(names ...types.MessageSystemAttributeName) ReceiveOption {
	return func(in *sqs.ReceiveMessageInput) { in.MessageSystemAttributeNames = names }
}

// WithReceiveRequestAttemptID is only meaningful for FIFO queues.
func WithReceiveRequestAttemptID(id string) ReceiveOption {
	return func(in *sqs.ReceiveMessageInput) { in.ReceiveRequestAttemptId = aws.String(id) }
}
