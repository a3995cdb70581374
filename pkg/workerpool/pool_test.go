package workerpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_RunsJobs(t *testing.T) {
	p := New(4, 16)

	var count int32
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		require.NoError(t, p.Submit(uint64(i), func(context.Context) {
			atomic.AddInt32(&count, 1)
			wg.Done()
		}))
	}
	wg.Wait()

	assert.Equal(t, int32(40), atomic.LoadInt32(&count))
	require.NoError(t, p.Stop(context.Background()))
}

func TestPool_SameKeyKeepsOrder(t *testing.T) {
	p := New(4, 64)

	var mu sync.Mutex
	var order []int
	for i := 0; i < 50; i++ {
		i := i
		require.NoError(t, p.Submit(7, func(context.Context) {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	require.NoError(t, p.Stop(context.Background()))

	require.Len(t, order, 50)
	for i, v := range order {
		assert.Equal(t, i, v)
	}
}

func TestPool_QueueFull(t *testing.T) {
	p := New(1, 1)
	block := make(chan struct{})
	started := make(chan struct{})

	require.NoError(t, p.Submit(0, func(context.Context) {
		close(started)
		<-block
	}))
	<-started
	require.NoError(t, p.Submit(0, func(context.Context) {}))

	assert.ErrorIs(t, p.Submit(0, func(context.Context) {}), ErrQueueFull)

	close(block)
	require.NoError(t, p.Stop(context.Background()))
}

func TestPool_SubmitAfterStop(t *testing.T) {
	p := New(2, 2)
	require.NoError(t, p.Stop(context.Background()))
	require.NoError(t, p.Stop(context.Background()))

	assert.ErrorIs(t, p.Submit(1, func(context.Context) {}), ErrStopped)
}

func TestPool_StopTimeoutCancelsJobs(t *testing.T) {
	p := New(1, 1)
	cancelled := make(chan struct{})

	require.NoError(t, p.Submit(0, func(ctx context.Context) {
		<-ctx.Done()
		close(cancelled)
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Stop(ctx), context.DeadlineExceeded)

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("job context was not cancelled")
	}
}
