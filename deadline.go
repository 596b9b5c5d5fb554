package sqsworker

import "time"

// batchDeadline is the visibility window of one received batch.
type batchDeadline struct {
	receivedAt time.Time
	timeout    time.Duration
}

func newBatchDeadline(receivedAt time.Time, visibilityTimeoutSeconds int32) batchDeadline {
	return batchDeadline{
		receivedAt: receivedAt,
		timeout:    time.Duration(visibilityTimeoutSeconds) * time.Second,
	}
}

func (d batchDeadline) at() time.Time {
	return d.receivedAt.Add(d.timeout)
}

// check fails once now has reached receivedAt + timeout.
func (d batchDeadline) check(now time.Time) error {
	if !now.Before(d.at()) {
		return ErrVisibilityTimeoutExceeded
	}
	return nil
}
