package sqsworker

import (
	"context"
	"sync"
)

// InMemoryLock only excludes listeners inside the current process.
type InMemoryLock struct {
	mu   sync.Mutex
	held map[string]struct{}
}

func NewInMemoryLock() *InMemoryLock {
	return &InMemoryLock{
		held: make(map[string]struct{}),
	}
}

func (l *InMemoryLock) TryAcquire(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.held[key]; exists {
		return false, nil
	}
	l.held[key] = struct{}{}
	return true, nil
}
