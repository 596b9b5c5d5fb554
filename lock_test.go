package sqsworker

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenerLockKey(t *testing.T) {
	a := ListenerLockKey(DefaultComponent, "orders")

	assert.Equal(t, a, ListenerLockKey(DefaultComponent, "orders"), "key must be deterministic")
	assert.Len(t, a, 40)
	assert.NotEqual(t, a, ListenerLockKey(DefaultComponent, "invoices"))
	assert.NotEqual(t, a, ListenerLockKey("other", "orders"))
}

func TestInMemoryLockExactlyOneWinner(t *testing.T) {
	lock := NewInMemoryLock()
	key := ListenerLockKey(DefaultComponent, "orders")

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := lock.TryAcquire(context.Background(), key)
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())

	ok, err := lock.TryAcquire(context.Background(), ListenerLockKey(DefaultComponent, "invoices"))
	require.NoError(t, err)
	assert.True(t, ok, "other queues are not affected")
}

func TestFileLock(t *testing.T) {
	dir := t.TempDir()
	key := ListenerLockKey(DefaultComponent, "orders")

	first := NewFileLock(dir)
	ok, err := first.TryAcquire(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = os.Stat(first.Path(key))
	assert.NoError(t, err, "lock file should exist")

	ok, err = first.TryAcquire(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok, "same instance cannot take the lock twice")

	second := NewFileLock(dir)
	ok, err = second.TryAcquire(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, ok, "another holder cannot take a held lock")

	ok, err = second.TryAcquire(context.Background(), ListenerLockKey(DefaultComponent, "invoices"))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileLockCreatesDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/locks"

	ok, err := NewFileLock(dir).TryAcquire(context.Background(), "key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.DirExists(t, dir)
}
