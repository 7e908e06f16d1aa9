package core

import (
	"context"
	"fmt"
	"runtime"
	"sync"
)

// WorkerPool runs independent indexed tasks on a fixed set of goroutines.
// Tasks are fed through a buffered channel; the first failure cancels the
// remaining work and is reported from Wait.
type WorkerPool struct {
	taskQueue  chan int
	numWorkers int
	wg         sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc

	errOnce sync.Once
	err     error
}

// NewWorkerPool creates a worker pool with the specified number of workers.
// A non-positive count uses runtime.NumCPU().
func NewWorkerPool(ctx context.Context, numWorkers, queueSize int) *WorkerPool {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(ctx)
	return &WorkerPool{
		taskQueue:  make(chan int, max(queueSize, 1)),
		numWorkers: numWorkers,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// GetNumWorkers returns the number of workers in the pool
func (wp *WorkerPool) GetNumWorkers() int {
	return wp.numWorkers
}

// Start begins all workers; fn is invoked once per submitted index.
func (wp *WorkerPool) Start(fn func(ctx context.Context, i int) error) {
	for w := 0; w < wp.numWorkers; w++ {
		wp.wg.Add(1)
		go wp.run(fn)
	}
}

// Submit queues an index. It returns false once the pool has been cancelled.
func (wp *WorkerPool) Submit(i int) bool {
	select {
	case <-wp.ctx.Done():
		return false
	case wp.taskQueue <- i:
		return true
	}
}

// Wait closes the queue, waits for the workers and returns the first error.
func (wp *WorkerPool) Wait() error {
	close(wp.taskQueue)
	wp.wg.Wait()
	wp.cancel()
	return wp.err
}

func (wp *WorkerPool) fail(err error) {
	wp.errOnce.Do(func() {
		wp.err = err
		wp.cancel()
	})
}

// run is the main worker loop
func (wp *WorkerPool) run(fn func(ctx context.Context, i int) error) {
	defer wp.wg.Done()

	for i := range wp.taskQueue {
		if wp.ctx.Err() != nil {
			// drain without running so Wait can return
			continue
		}
		if err := wp.runTask(fn, i); err != nil {
			wp.fail(err)
		}
	}
}

func (wp *WorkerPool) runTask(fn func(ctx context.Context, i int) error, i int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %d panicked: %v", i, r)
		}
	}()
	return fn(wp.ctx, i)
}

// ParallelFor calls fn for every index in [0, n) using numWorkers goroutines.
// Iterations must be independent. The first error (or recovered panic) stops
// the remaining iterations and is returned; if the parent context is
// cancelled its error is returned instead.
func ParallelFor(ctx context.Context, n, numWorkers int, fn func(ctx context.Context, i int) error) error {
	if n <= 0 {
		return ctx.Err()
	}
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	numWorkers = min(numWorkers, n)

	pool := NewWorkerPool(ctx, numWorkers, n)
	pool.Start(fn)
	for i := 0; i < n; i++ {
		if !pool.Submit(i) {
			break
		}
	}
	err := pool.Wait()
	if err != nil {
		return err
	}
	return ctx.Err()
}
