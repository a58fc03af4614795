package camconfig

import (
	"context"
	"sync"
)

type job struct {
	fn   func(ctx context.Context) error
	done chan error
}

// dropQueue runs one job at a time. While a job runs at most one more is
// kept; pushing another replaces it and fails the replaced one with
// ErrJobDropped.
type dropQueue struct {
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	running bool
	pending *job
	closed  bool
	wg      sync.WaitGroup
}

func newDropQueue() *dropQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &dropQueue{ctx: ctx, cancel: cancel}
}

// Push queues fn and waits for its result. A ctx cancellation only stops
// the wait.
func (q *dropQueue) Push(ctx context.Context, fn func(ctx context.Context) error) error {
	j := &job{fn: fn, done: make(chan error, 1)}

	q.mu.Lock()
	switch {
	case q.closed:
		q.mu.Unlock()
		return ErrClosed
	case !q.running:
		q.running = true
		q.wg.Add(1)
		go q.run(j)
	default:
		if q.pending != nil {
			q.pending.done <- ErrJobDropped
		}
		q.pending = j
	}
	q.mu.Unlock()

	select {
	case err := <-j.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *dropQueue) run(j *job) {
	defer q.wg.Done()
	for j != nil {
		j.done <- q.exec(j)

		q.mu.Lock()
		j, q.pending = q.pending, nil
		if j == nil {
			q.running = false
		}
		q.mu.Unlock()
	}
}

func (q *dropQueue) exec(j *job) error {
	if err := q.ctx.Err(); err != nil {
		return ErrClosed
	}
	return j.fn(q.ctx)
}

// Close drops the pending job, cancels the running one and waits for it.
func (q *dropQueue) Close() {
	q.mu.Lock()
	q.closed = true
	if q.pending != nil {
		q.pending.done <- ErrJobDropped
		q.pending = nil
	}
	q.mu.Unlock()

	q.cancel()
	q.wg.Wait()
}
