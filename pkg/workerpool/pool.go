// Package workerpool runs jobs on a fixed number of workers. Jobs sharing a
// key run on the same worker in submission order.
package workerpool

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrQueueFull = errors.New("worker queue full")
	ErrStopped   = errors.New("worker pool stopped")
)

// Job is a unit of work. The context is cancelled when the pool stops.
type Job func(ctx context.Context)

// Pool is a keyed worker pool with a bounded queue per worker.
type Pool struct {
	queues []chan Job

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

// New starts workers goroutines, each with a queue of queueSize jobs.
func New(workers, queueSize int) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		queues: make([]chan Job, workers),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := range p.queues {
		p.queues[i] = make(chan Job, queueSize)
		p.wg.Add(1)
		go p.run(p.queues[i])
	}
	return p
}

// Workers returns the number of workers.
func (p *Pool) Workers() int {
	return len(p.queues)
}

// Submit queues job on the worker owning key. It never blocks: a full
// queue returns ErrQueueFull.
func (p *Pool) Submit(key uint64, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrStopped
	}

	select {
	case p.queues[key%uint64(len(p.queues))] <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Context is the context handed to jobs. Work started outside the pool on
// its behalf can use it to stop when the pool does.
func (p *Pool) Context() context.Context {
	return p.ctx
}

// Pending returns the number of queued jobs across workers.
func (p *Pool) Pending() int {
	n := 0
	for _, q := range p.queues {
		n += len(q)
	}
	return n
}

// Stop rejects new jobs, drains the queues and waits for the workers or
// for ctx to expire. Jobs still running when ctx expires see a cancelled
// context.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		for _, q := range p.queues {
			close(q)
		}
	}
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

func (p *Pool) run(queue <-chan Job) {
	defer p.wg.Done()
	for job := range queue {
		job(p.ctx)
	}
}
