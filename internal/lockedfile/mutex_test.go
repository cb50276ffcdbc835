package lockedfile

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMutex_ExcludesConcurrentHolders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ".lock")

	var holders, maxHolders atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := MutexAt(path).Lock(context.Background())
			if !assert.NoError(t, err) {
				return
			}
			n := holders.Add(1)
			for {
				m := maxHolders.Load()
				if n <= m || maxHolders.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			holders.Add(-1)
			unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxHolders.Load())
}

func TestMutex_Relock(t *testing.T) {
	mu := MutexAt(filepath.Join(t.TempDir(), ".lock"))

	unlock, err := mu.Lock(context.Background())
	require.NoError(t, err)
	unlock()

	unlock, err = mu.Lock(context.Background())
	require.NoError(t, err)
	unlock()
}

func TestMutex_LockHonorsContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lock")

	unlock, err := MutexAt(path).Lock(context.Background())
	require.NoError(t, err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = MutexAt(path).Lock(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestMutex_LockWaitsForRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".lock")

	unlock, err := MutexAt(path).Lock(context.Background())
	require.NoError(t, err)
	time.AfterFunc(30*time.Millisecond, unlock)

	again, err := MutexAt(path).Lock(context.Background())
	require.NoError(t, err)
	again()
}

func TestMutexAt_EmptyPathPanics(t *testing.T) {
	assert.Panics(t, func() { MutexAt("") })
}
