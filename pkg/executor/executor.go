package executor

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// ErrJobPanicked is the error recorded on a handle whose job panicked.
var ErrJobPanicked = errors.New("executor: job panicked")

// Executor bounds the number of job bodies running concurrently.
type Executor struct {
	sem      *semaphore.Weighted
	limit    int
	wg       sync.WaitGroup
	inFlight atomic.Int64
}

// New returns an executor running at most n job bodies at once.
// Values below 1 are clamped to 1.
func New(n int) *Executor {
	if n < 1 {
		n = 1
	}
	return &Executor{
		sem:   semaphore.NewWeighted(int64(n)),
		limit: n,
	}
}

// Limit returns the concurrency bound.
func (e *Executor) Limit() int {
	return e.limit
}

// InFlight reports how many job bodies are currently running.
func (e *Executor) InFlight() int {
	return int(e.inFlight.Load())
}

// Wait blocks until every submitted job has resolved.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Handle is the pending result of one submitted job.
type Handle[T any] struct {
	// Item is the input the job was created from, if any.
	Item any

	done   chan struct{}
	result T
	err    error
}

func newHandle[T any](item any) *Handle[T] {
	return &Handle[T]{Item: item, done: make(chan struct{})}
}

// Done is closed once the job has resolved.
func (h *Handle[T]) Done() <-chan struct{} {
	return h.done
}

// Result returns the job's outcome. It must only be called after Done is
// closed; before that it returns the zero value and a nil error.
func (h *Handle[T]) Result() (T, error) {
	select {
	case <-h.done:
		return h.result, h.err
	default:
		var zero T
		return zero, nil
	}
}

// Wait blocks until the job resolves or ctx is done.
func (h *Handle[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Submit starts job on its own goroutine and returns immediately. The job
// body runs once a slot is free; if ctx ends first the handle resolves with
// ctx.Err() and the body never runs.
func Submit[T any](ctx context.Context, e *Executor, job func(ctx context.Context) (T, error)) *Handle[T] {
	return submit(ctx, e, nil, job)
}

// Map submits fn once per item and returns the handles in item order.
func Map[I, T any](ctx context.Context, e *Executor, fn func(ctx context.Context, item I) (T, error), items []I) []*Handle[T] {
	handles := make([]*Handle[T], 0, len(items))
	for _, item := range items {
		handles = append(handles, submit(ctx, e, item, func(ctx context.Context) (T, error) {
			return fn(ctx, item)
		}))
	}
	return handles
}

func submit[T any](ctx context.Context, e *Executor, item any, job func(ctx context.Context) (T, error)) *Handle[T] {
	h := newHandle[T](item)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer close(h.done)

		if err := e.sem.Acquire(ctx, 1); err != nil {
			h.err = err
			return
		}
		defer e.sem.Release(1)

		e.inFlight.Add(1)
		defer e.inFlight.Add(-1)

		h.result, h.err = run(ctx, job)
	}()
	return h
}

func run[T any](ctx context.Context, job func(ctx context.Context) (T, error)) (result T, err error) {
	defer func() {
		if r := recover(); r != nil {
			var zero T
			result = zero
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return job(ctx)
}

// Completed yields handles in the order their jobs resolve. Breaking out of
// the loop early is allowed; unfinished jobs keep running.
func Completed[T any](handles []*Handle[T]) iter.Seq[*Handle[T]] {
	return func(yield func(*Handle[T]) bool) {
		// Buffered so forwarders never block after an early break.
		ready := make(chan *Handle[T], len(handles))
		for _, h := range handles {
			go func() {
				<-h.done
				ready <- h
			}()
		}
		for range handles {
			if !yield(<-ready) {
				return
			}
		}
	}
}
