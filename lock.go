package sqsworker

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
)

// ExclusiveLock is a named, non-blocking mutual exclusion primitive. A
// successful TryAcquire holds the lock for the rest of the process
// lifetime; it returns false, nil when somebody else holds it.
type ExclusiveLock interface {
	TryAcquire(ctx context.Context, key string) (bool, error)
}

// LockLossNotifier is implemented by locks that can expire or be taken
// over after TryAcquire succeeded. The returned channel is closed when that
// happens; a nil channel means the key is not held.
type LockLossNotifier interface {
	Lost(key string) <-chan struct{}
}

// ListenerLockKey derives the lock name for a listener on queue. The same
// component and queue always produce the same key, in any process.
func ListenerLockKey(component, queue string) string {
	sum := sha1.Sum([]byte(component + "_" + queue))
	return hex.EncodeToString(sum[:])
}
