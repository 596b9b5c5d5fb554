package sqsworker

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// ErrVisibilityTimeoutExceeded aborts a batch when its visibility window has
// lapsed before the next message could be dispatched.
var ErrVisibilityTimeoutExceeded = errors.New("visibility timeout exceeded")

// ErrListenerLockLost ends a keep-alive Run whose listener lock was taken
// away while it was running.
var ErrListenerLockLost = errors.New("listener lock lost")

// ListenerAlreadyRunningError is returned by a keep-alive Run when another
// listener already holds the lock for the queue.
type ListenerAlreadyRunningError struct {
	Queue string
}

func (e *ListenerAlreadyRunningError) Error() string {
	return fmt.Sprintf("listener already running for queue %q", e.Queue)
}

// BatchAborted describes a batch that was released back to the queue. It is
// handed to the OnBatchAborted hook and never returned from Run.
type BatchAborted struct {
	QueueURL string
	// Reason is ErrVisibilityTimeoutExceeded or the handler's error.
	Reason error
	// MessageID is the message whose dispatch was refused or failed.
	MessageID string
	Released  int
}

// ReleaseError lists the entries a change-visibility batch reported as failed.
type ReleaseError struct {
	Failed []types.BatchResultErrorEntry
}

func (e *ReleaseError) Error() string {
	codes := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		codes = append(codes, fmt.Sprintf("%s:%s", aws.ToString(f.Id), aws.ToString(f.Code)))
	}
	return fmt.Sprintf("%d visibility changes failed (%s)", len(e.Failed), strings.Join(codes, ", "))
}
