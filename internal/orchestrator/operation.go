package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// Result is the outcome of a finished operation.
type Result struct {
	Opened []string `json:"opened,omitempty"`
	Closed []string `json:"closed,omitempty"`
	Failed []string `json:"failed,omitempty"`

	// Halted is set when the operation was dropped as a duplicate.
	Halted    bool  `json:"halted,omitempty"`
	Cancelled bool  `json:"cancelled,omitempty"`
	Err       error `json:"-"`
}

// Operation is one submitted request moving through the phases.
// It is safe for concurrent inspection.
type Operation struct {
	id     string
	engine *Engine
	req    *Request
	parent *Operation

	isLoadingScreen bool

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	phase    Phase
	actions  []Action
	progress []float32
	children []*Operation
	result   Result
	started  bool
	finished bool

	cancelled    atomic.Bool
	done         chan struct{}
	completeOnce sync.Once
}

func (e *Engine) newOperation(req *Request, parent *Operation, isLoadingScreen bool) *Operation {
	base := e.ctx
	if parent != nil {
		base = parent.ctx
	}
	ctx, cancel := context.WithCancel(base)
	return &Operation{
		id:              uuid.NewString(),
		engine:          e,
		req:             req,
		parent:          parent,
		isLoadingScreen: isLoadingScreen,
		ctx:             ctx,
		cancel:          cancel,
		done:            make(chan struct{}),
	}
}

// ID returns the operation's unique ID.
func (o *Operation) ID() string { return o.id }

// Label returns the name given with Builder.Label.
func (o *Operation) Label() string { return o.req.Label }

// Request returns a copy of the frozen request.
func (o *Operation) Request() Request { return *o.req }

// IsLoadingScreen returns true for loading-screen sub-operations.
func (o *Operation) IsLoadingScreen() bool { return o.isLoadingScreen }

// Parent returns the operation that spawned this one, or nil.
func (o *Operation) Parent() *Operation { return o.parent }

// Phase returns the current phase.
func (o *Operation) Phase() Phase {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.phase
}

// Actions returns the resolved actions, empty until the operation starts.
func (o *Operation) Actions() []Action {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Action(nil), o.actions...)
}

// Children returns the nested sub-operations.
func (o *Operation) Children() []*Operation {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]*Operation(nil), o.children...)
}

// Cancelled returns true once the operation has been cancelled.
func (o *Operation) Cancelled() bool { return o.cancelled.Load() }

// Done is closed when the operation finishes.
func (o *Operation) Done() <-chan struct{} { return o.done }

// IsDone returns true once the operation has finished.
func (o *Operation) IsDone() bool {
	select {
	case <-o.done:
		return true
	default:
		return false
	}
}

// Result returns the result and whether the operation has finished.
func (o *Operation) Result() (Result, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.result, o.finished
}

// Wait blocks until the operation finishes or ctx is done. A cancelled
// operation returns its partial result with ErrCancelled.
func (o *Operation) Wait(ctx context.Context) (Result, error) {
	select {
	case <-o.done:
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
	res, _ := o.Result()
	if res.Cancelled {
		return res, ErrCancelled
	}
	return res, res.Err
}

// Cancel requests cancellation. A waiting operation is removed from the
// queue; a running one stops at its next checkpoint.
func (o *Operation) Cancel() {
	if o.IsDone() {
		return
	}
	if o.parent == nil && o.engine.queue.Cancel(o) {
		return
	}
	o.OnCancel()
}

// Progress is the mean progress of all leaf actions of this operation and its
// sub-operations, in [0, 1].
func (o *Operation) Progress() float32 {
	leaves := o.leafProgress(nil)
	if len(leaves) == 0 {
		if o.IsDone() {
			return 1
		}
		return 0
	}
	var sum float32
	for _, p := range leaves {
		sum += p
	}
	return sum / float32(len(leaves))
}

func (o *Operation) leafProgress(dst []float32) []float32 {
	o.mu.Lock()
	dst = append(dst, o.progress...)
	children := append([]*Operation(nil), o.children...)
	o.mu.Unlock()
	for _, c := range children {
		dst = c.leafProgress(dst)
	}
	return dst
}

// OnTurn starts the operation. It implements queue.Task.
func (o *Operation) OnTurn(onComplete func()) {
	go func() {
		defer onComplete()
		o.execute()
	}()
}

// OnCancel flags the operation as cancelled. It implements queue.Task.
// An operation that never started finishes immediately.
func (o *Operation) OnCancel() {
	if o.IsDone() || !o.cancelled.CompareAndSwap(false, true) {
		return
	}
	o.cancel()

	o.mu.Lock()
	started := o.started
	if !started {
		o.finished = true
		o.result.Cancelled = true
	}
	children := append([]*Operation(nil), o.children...)
	o.mu.Unlock()

	for _, c := range children {
		if !c.isLoadingScreen {
			c.OnCancel()
		}
	}
	if !started {
		o.complete()
	}
}

// CanQueue rejects operations while a preload awaits its outcome. It implements queue.Task.
func (o *Operation) CanQueue() bool {
	if o.req.bypass {
		return true
	}
	return !o.engine.preloadPending()
}

func (o *Operation) setPhase(p Phase) {
	o.mu.Lock()
	o.phase = p
	o.mu.Unlock()
}

func (o *Operation) setActions(actions []Action) {
	o.mu.Lock()
	o.actions = actions
	o.progress = make([]float32, len(actions))
	o.mu.Unlock()
}

func (o *Operation) setProgress(i int, p float32) {
	if p < 0 {
		p = 0
	} else if p > 1 {
		p = 1
	}
	o.mu.Lock()
	if i < len(o.progress) {
		o.progress[i] = p
	}
	o.mu.Unlock()
}

func (o *Operation) addChild(c *Operation) {
	o.mu.Lock()
	o.children = append(o.children, c)
	o.mu.Unlock()
}

func (o *Operation) record(fn func(r *Result)) {
	o.mu.Lock()
	fn(&o.result)
	o.mu.Unlock()
}
