// Package lock provides exclusive, FIFO-ordered access to a single shared
// resource across concurrent callers.
//
// Work submitted to a Lock runs one task at a time, strictly in submission
// order. A task's failure (error or panic) is observed only by its own
// caller and never blocks the tasks queued behind it.
package lock

import (
	"context"
	"fmt"
	"sync"

	"github.com/devicelab-dev/wallet-glue-runner/pkg/core"
	"github.com/devicelab-dev/wallet-glue-runner/pkg/logger"
)

// Lock owns a resource of type T and serializes all work against it.
type Lock[T any] struct {
	data T

	mu     sync.Mutex
	locked bool
	queue  []func()
}

// New creates a Lock owning data.
func New[T any](data T) *Lock[T] {
	return &Lock[T]{data: data}
}

// Unsafe returns the resource without acquiring the lock. Only use it for
// tolerant, read-only probes whose result may be stale.
func (l *Lock[T]) Unsafe() T {
	return l.data
}

// held reports whether a task currently holds the resource.
func (l *Lock[T]) held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked
}

// queued returns the number of tasks waiting behind the current holder.
func (l *Lock[T]) queued() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Pending is the completion of a submitted task.
type Pending[R any] struct {
	done  chan struct{}
	value R
	err   error
}

// Done is closed once the task has finished.
func (p *Pending[R]) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the task finishes or ctx is done. Giving up on the wait
// does not cancel the task: once queued it always runs.
func (p *Pending[R]) Wait(ctx context.Context) (R, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// Submit queues fn for exclusive execution against the lock's resource.
// Arrival order is fixed when Submit returns.
func Submit[T, R any](l *Lock[T], fn func(T) (R, error)) *Pending[R] {
	p := &Pending[R]{done: make(chan struct{})}
	task := func() {
		defer close(p.done)
		p.value, p.err = call(l.data, fn)
	}

	l.mu.Lock()
	if l.locked {
		l.queue = append(l.queue, task)
		logger.Debug("Queuing (%d waiting)", len(l.queue))
		l.mu.Unlock()
		return p
	}
	logger.Debug("Locking")
	l.locked = true
	l.mu.Unlock()

	go l.run(task)
	return p
}

// Do submits fn and waits for its result.
func Do[T, R any](ctx context.Context, l *Lock[T], fn func(T) (R, error)) (R, error) {
	return Submit(l, fn).Wait(ctx)
}

// Run submits fn and waits for it to finish.
func (l *Lock[T]) Run(ctx context.Context, fn func(T) error) error {
	_, err := Do(ctx, l, func(data T) (struct{}, error) {
		return struct{}{}, fn(data)
	})
	return err
}

// run executes task and then drains the queue on the same goroutine.
func (l *Lock[T]) run(task func()) {
	for task != nil {
		task()
		task = l.after()
	}
}

// after releases the lock when the queue is empty, or hands back the next
// task. The lock stays held across the handoff.
func (l *Lock[T]) after() func() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		logger.Debug("Unlocking")
		l.locked = false
		return nil
	}

	next := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	logger.Debug("Running task")
	if next == nil {
		panic(core.ErrLockQueueEmpty)
	}
	return next
}

func call[T, R any](data T, fn func(T) (R, error)) (value R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(data)
}
