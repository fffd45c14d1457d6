package locking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestMemoryLockerMutualExclusion(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		holders int
		max     int
		mu      sync.Mutex
		counter int
	)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, "reporter:abc")
			if err != nil {
				t.Errorf("acquire: %v", err)
				return
			}
			mu.Lock()
			holders++
			if holders > max {
				max = holders
			}
			counter++
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			holders--
			mu.Unlock()
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, max, "two goroutines held the same key")
	assert.Equal(t, 32, counter)
}

func TestMemoryLockerIndependentKeys(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	releaseA, err := locker.Acquire(ctx, "ticket:a")
	require.NoError(t, err)
	defer releaseA()

	// a different key must not block
	done := make(chan struct{})
	go func() {
		defer close(done)
		releaseB, err := locker.Acquire(ctx, "ticket:b")
		assert.NoError(t, err)
		releaseB()
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent key blocked")
	}
}

func TestMemoryLockerContextCancelWhileWaiting(t *testing.T) {
	locker := NewMemoryLocker()

	release, err := locker.Acquire(context.Background(), "ticket:a")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locker.Acquire(ctx, "ticket:a")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMemoryLockerReleaseIsIdempotent(t *testing.T) {
	locker := NewMemoryLocker()
	ctx := context.Background()

	release, err := locker.Acquire(ctx, "ticket:a")
	require.NoError(t, err)
	release()
	release() // second call must be a no-op

	again, err := locker.Acquire(ctx, "ticket:a")
	require.NoError(t, err)
	again()
}
