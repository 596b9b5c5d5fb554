package sqsworker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gofrs/flock"
)

// FileLock takes an flock on <dir>/<key>.lock. The operating system drops
// the lock when the process exits, so a crashed listener never leaves a
// stale lock behind.
type FileLock struct {
	dir string

	mu    sync.Mutex
	locks map[string]*flock.Flock
}

func NewFileLock(dir string) *FileLock {
	return &FileLock{
		dir:   dir,
		locks: make(map[string]*flock.Flock),
	}
}

func (l *FileLock) Path(key string) string {
	return filepath.Join(l.dir, key+".lock")
}

func (l *FileLock) TryAcquire(ctx context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.locks[key]; exists {
		return false, nil
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fl := flock.New(l.Path(key))
	locked, err := fl.TryLock()
	if err != nil {
		return false, fmt.Errorf("failed to lock %s: %w", fl.Path(), err)
	}
	if !locked {
		return false, nil
	}

	// keep the handle open; closing it would release the lock
	l.locks[key] = fl
	return true, nil
}
