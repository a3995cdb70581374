package batch

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrStopped is returned by Add after Stop.
var ErrStopped = errors.New("batcher stopped")

// ProcessFunc handles one batch. Items are in the order they were added.
type ProcessFunc[T any] func(ctx context.Context, items []T) error

// Batcher collects items and hands them to a ProcessFunc once batchSize is
// reached or batchInterval elapses, whichever comes first.
type Batcher[T any] struct {
	batchSize     int
	batchInterval time.Duration
	process       ProcessFunc[T]
	onError       func(err error, items []T)

	mu      sync.Mutex
	pending []T
	stopped bool

	flushChan chan struct{}
	stopChan  chan struct{}
	done      chan struct{}
}

// NewBatcher starts a batcher. onError may be nil.
func NewBatcher[T any](batchSize int, batchInterval time.Duration, process ProcessFunc[T], onError func(error, []T)) *Batcher[T] {
	if onError == nil {
		onError = func(error, []T) {}
	}
	b := &Batcher[T]{
		batchSize:     batchSize,
		batchInterval: batchInterval,
		process:       process,
		onError:       onError,
		pending:       make([]T, 0, batchSize),
		flushChan:     make(chan struct{}, 1),
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
	}

	go b.run()

	return b
}

// Add queues an item.
func (b *Batcher[T]) Add(item T) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return ErrStopped
	}
	b.pending = append(b.pending, item)
	shouldFlush := len(b.pending) >= b.batchSize
	b.mu.Unlock()

	if shouldFlush {
		select {
		case b.flushChan <- struct{}{}:
		default:
		}
	}
	return nil
}

// Flush immediately processes all pending items
func (b *Batcher[T]) Flush(ctx context.Context) error {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return nil
	}
	items := b.pending
	b.pending = make([]T, 0, b.batchSize)
	b.mu.Unlock()

	if err := b.process(ctx, items); err != nil {
		b.onError(err, items)
		return err
	}
	return nil
}

func (b *Batcher[T]) run() {
	defer close(b.done)

	ticker := time.NewTicker(b.batchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = b.Flush(context.Background())
		case <-b.flushChan:
			_ = b.Flush(context.Background())
		case <-b.stopChan:
			return
		}
	}
}

// Stop rejects further items, flushes what is pending and waits for the
// background loop to exit or ctx to end.
func (b *Batcher[T]) Stop(ctx context.Context) error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	b.mu.Unlock()

	close(b.stopChan)
	select {
	case <-b.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return b.Flush(ctx)
}

// PendingCount returns the number of pending items
func (b *Batcher[T]) PendingCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
