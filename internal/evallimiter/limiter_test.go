package evallimiter

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiter_BoundsConcurrency(t *testing.T) {
	l := New(3)

	var concurrent, maxSeen int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background())
			require.NoError(t, err)
			defer release()

			n := atomic.AddInt32(&concurrent, 1)
			for {
				old := atomic.LoadInt32(&maxSeen)
				if n <= old || atomic.CompareAndSwapInt32(&maxSeen, old, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&concurrent, -1)
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, int(maxSeen), 3)
	require.Equal(t, 3, l.Available())
}

func TestLimiter_AcquireRespectsContextCancellation(t *testing.T) {
	l := New(1)
	release, err := l.Acquire(context.Background())
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = l.Acquire(ctx)
	require.Error(t, err)
}

func TestLimiter_MinimumCapacityIsOne(t *testing.T) {
	l := New(0)
	require.Equal(t, 1, l.Capacity())
}
