package queue

import (
	"errors"
	"sync"
	"testing"
)

// fakeTask records its turn and lets the test complete it manually.
type fakeTask struct {
	name     string
	canQueue bool

	mu        sync.Mutex
	turned    bool
	cancelled int
	done      func()
}

func newTask(name string) *fakeTask {
	return &fakeTask{name: name, canQueue: true}
}

func (f *fakeTask) OnTurn(onComplete func()) {
	f.mu.Lock()
	f.turned = true
	f.done = onComplete
	f.mu.Unlock()
}

func (f *fakeTask) OnCancel() {
	f.mu.Lock()
	f.cancelled++
	f.mu.Unlock()
}

func (f *fakeTask) CanQueue() bool { return f.canQueue }

func (f *fakeTask) hasTurned() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.turned
}

func (f *fakeTask) finish() {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()
	done()
}

func TestQueueRunsOneAtATimeInOrder(t *testing.T) {
	q := New[*fakeTask]()
	a, b, c := newTask("a"), newTask("b"), newTask("c")

	for _, task := range []*fakeTask{a, b, c} {
		if _, err := q.Enqueue(task, false); err != nil {
			t.Fatalf("enqueue %s: %v", task.name, err)
		}
	}

	if !a.hasTurned() || b.hasTurned() || c.hasTurned() {
		t.Fatal("expected only the first task to be running")
	}
	if cur, ok := q.Current(); !ok || cur != a {
		t.Errorf("expected a to be current")
	}
	if got := len(q.Queued()); got != 2 {
		t.Errorf("expected 2 queued tasks, got %d", got)
	}

	a.finish()
	if !b.hasTurned() || c.hasTurned() {
		t.Fatal("expected b to run after a")
	}
	b.finish()
	if !c.hasTurned() {
		t.Fatal("expected c to run after b")
	}
	c.finish()

	if q.IsBusy() {
		t.Error("expected queue to be idle")
	}
}

func TestQueueBypassRunsImmediately(t *testing.T) {
	q := New[*fakeTask]()
	main := newTask("main")
	side := newTask("side")

	_, _ = q.Enqueue(main, false)
	_, _ = q.Enqueue(side, true)

	if !side.hasTurned() {
		t.Fatal("expected bypassing task to start while main is running")
	}
	if got := len(q.Running()); got != 2 {
		t.Errorf("expected 2 running tasks, got %d", got)
	}
	if q.IsCurrent(side) {
		t.Error("bypassing task must not take the runner slot")
	}

	side.finish()
	if !q.IsCurrent(main) {
		t.Error("expected main to still hold the runner slot")
	}
	main.finish()
}

func TestQueueCanQueueRejects(t *testing.T) {
	q := New[*fakeTask]()
	task := newTask("blocked")
	task.canQueue = false

	_, err := q.Enqueue(task, false)
	if !errors.Is(err, ErrCannotQueue) {
		t.Fatalf("expected ErrCannotQueue, got %v", err)
	}
	if q.IsBusy() {
		t.Error("rejected task must not be queued")
	}
}

func TestQueueCancelWaitingTask(t *testing.T) {
	q := New[*fakeTask]()
	a, b := newTask("a"), newTask("b")
	_, _ = q.Enqueue(a, false)
	_, _ = q.Enqueue(b, false)

	if !q.Cancel(b) {
		t.Fatal("expected cancel to find b")
	}
	if b.cancelled != 1 {
		t.Errorf("expected b to be cancelled once, got %d", b.cancelled)
	}

	a.finish()
	if b.hasTurned() {
		t.Error("cancelled task must never get a turn")
	}
}

func TestQueueCancelRunningTaskSignalsOnly(t *testing.T) {
	q := New[*fakeTask]()
	a := newTask("a")
	_, _ = q.Enqueue(a, false)

	if !q.Cancel(a) {
		t.Fatal("expected cancel to find running task")
	}
	if a.cancelled != 1 {
		t.Errorf("expected running task to be signalled")
	}
	if !q.IsBusy() {
		t.Error("running task stays until it completes")
	}
	a.finish()
	if q.IsBusy() {
		t.Error("expected idle queue after completion")
	}
}

func TestQueueEmptySignal(t *testing.T) {
	q := New[*fakeTask]()
	empties := 0
	q.OnEmpty(func() { empties++ })

	a, b := newTask("a"), newTask("b")
	_, _ = q.Enqueue(a, false)
	_, _ = q.Enqueue(b, false)

	a.finish()
	if empties != 0 {
		t.Fatalf("queue is not empty yet, got %d signals", empties)
	}
	b.finish()
	if empties != 1 {
		t.Errorf("expected one empty signal, got %d", empties)
	}
}

func TestQueueCompleteTwiceIgnored(t *testing.T) {
	q := New[*fakeTask]()
	a, b, c := newTask("a"), newTask("b"), newTask("c")
	_, _ = q.Enqueue(a, false)
	_, _ = q.Enqueue(b, false)
	_, _ = q.Enqueue(c, false)

	a.finish()
	a.finish()

	if c.hasTurned() {
		t.Error("duplicate completion must not advance the queue twice")
	}
}

func TestQueueSynchronousCompletion(t *testing.T) {
	q := New[*syncTask]()
	order := []string{}
	for _, name := range []string{"a", "b", "c"} {
		_, _ = q.Enqueue(&syncTask{name: name, order: &order}, false)
	}
	if len(order) != 3 || order[0] != "a" || order[2] != "c" {
		t.Errorf("unexpected order: %v", order)
	}
}

type syncTask struct {
	name  string
	order *[]string
}

func (s *syncTask) OnTurn(onComplete func()) {
	*s.order = append(*s.order, s.name)
	onComplete()
}
func (s *syncTask) OnCancel()      {}
func (s *syncTask) CanQueue() bool { return true }
