// Package queue serializes long-running tasks: one task runs at a time in FIFO
// order, except tasks enqueued with bypass which start immediately alongside it.
package queue

import (
	"errors"
	"sync"
)

// ErrCannotQueue is returned when a task rejects being queued.
var ErrCannotQueue = errors.New("task cannot be queued")

// Task is a unit of work the queue schedules.
//
// OnTurn is called when the task reaches the front of the queue (or immediately
// for bypassing tasks). The task must call onComplete exactly once when it is
// finished; extra calls are ignored. OnCancel is called when the task is
// cancelled, whether it is still waiting or already running.
type Task interface {
	comparable
	OnTurn(onComplete func())
	OnCancel()
	CanQueue() bool
}

// Queue is a FIFO scheduler with a single runner.
type Queue[T Task] struct {
	mu         sync.Mutex
	queued     []T
	running    []T
	current    T
	hasCurrent bool
	onEmpty    []func()
}

// New creates an empty queue.
func New[T Task]() *Queue[T] {
	return &Queue[T]{}
}

// Enqueue adds a task. With bypass the task starts right away without waiting
// for the current runner.
func (q *Queue[T]) Enqueue(task T, bypass bool) (T, error) {
	if !task.CanQueue() {
		return task, ErrCannotQueue
	}

	q.mu.Lock()
	if q.containsLocked(task) {
		q.mu.Unlock()
		return task, nil
	}

	if bypass {
		q.running = append(q.running, task)
		q.mu.Unlock()
		q.start(task)
		return task, nil
	}

	q.queued = append(q.queued, task)
	next, ok := q.nextLocked()
	q.mu.Unlock()

	if ok {
		q.start(next)
	}
	return task, nil
}

// Cancel removes a waiting task, or signals a running one. Returns false if the
// task is unknown to the queue.
func (q *Queue[T]) Cancel(task T) bool {
	q.mu.Lock()
	for i, t := range q.queued {
		if t == task {
			q.queued = append(q.queued[:i], q.queued[i+1:]...)
			q.mu.Unlock()
			task.OnCancel()
			q.fireEmptyIfIdle()
			return true
		}
	}
	running := false
	for _, t := range q.running {
		if t == task {
			running = true
			break
		}
	}
	q.mu.Unlock()

	if running {
		task.OnCancel()
	}
	return running
}

// OnEmpty registers fn to run every time the queue drains.
func (q *Queue[T]) OnEmpty(fn func()) {
	q.mu.Lock()
	q.onEmpty = append(q.onEmpty, fn)
	q.mu.Unlock()
}

// IsBusy returns true if any task is queued or running.
func (q *Queue[T]) IsBusy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busyLocked()
}

// Queued returns a copy of the waiting tasks in FIFO order.
func (q *Queue[T]) Queued() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]T{}, q.queued...)
}

// Running returns a copy of the running tasks, including bypassing ones.
func (q *Queue[T]) Running() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]T{}, q.running...)
}

// Current returns the task holding the runner slot.
func (q *Queue[T]) Current() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.current, q.hasCurrent
}

// IsCurrent returns true if task holds the runner slot.
func (q *Queue[T]) IsCurrent(task T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.hasCurrent && q.current == task
}

func (q *Queue[T]) start(task T) {
	var once sync.Once
	task.OnTurn(func() {
		once.Do(func() { q.complete(task) })
	})
}

func (q *Queue[T]) complete(task T) {
	var zero T

	q.mu.Lock()
	for i, t := range q.running {
		if t == task {
			q.running = append(q.running[:i], q.running[i+1:]...)
			break
		}
	}
	if q.hasCurrent && q.current == task {
		q.current = zero
		q.hasCurrent = false
	}
	next, ok := q.nextLocked()
	q.mu.Unlock()

	if ok {
		q.start(next)
		return
	}
	q.fireEmptyIfIdle()
}

func (q *Queue[T]) fireEmptyIfIdle() {
	q.mu.Lock()
	if q.busyLocked() {
		q.mu.Unlock()
		return
	}
	handlers := append([]func(){}, q.onEmpty...)
	q.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}

func (q *Queue[T]) nextLocked() (T, bool) {
	var zero T
	if q.hasCurrent || len(q.queued) == 0 {
		return zero, false
	}
	t := q.queued[0]
	q.queued = q.queued[1:]
	q.current = t
	q.hasCurrent = true
	q.running = append(q.running, t)
	return t, true
}

func (q *Queue[T]) busyLocked() bool {
	return q.hasCurrent || len(q.running) > 0 || len(q.queued) > 0
}

func (q *Queue[T]) containsLocked(task T) bool {
	for _, t := range q.queued {
		if t == task {
			return true
		}
	}
	for _, t := range q.running {
		if t == task {
			return true
		}
	}
	return false
}
