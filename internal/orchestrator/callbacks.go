package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/AaronLay10/SentientScenes/internal/scene"
)

// Trigger is a point in an operation where callbacks run.
type Trigger int

const (
	BeforeOperation Trigger = iota + 1
	AfterOperation
	BeforePhase
	AfterPhase
	BeforeScene
	AfterScene
)

func (t Trigger) String() string {
	switch t {
	case BeforeOperation:
		return "before_operation"
	case AfterOperation:
		return "after_operation"
	case BeforePhase:
		return "before_phase"
	case AfterPhase:
		return "after_phase"
	case BeforeScene:
		return "before_scene"
	case AfterScene:
		return "after_scene"
	}
	return "unknown"
}

// CallbackContext describes where a callback is invoked.
type CallbackContext struct {
	Operation  *Operation
	Trigger    Trigger
	Phase      Phase
	Scene      *scene.Scene
	Collection *scene.Collection
}

// CallbackFunc is user code invoked at a trigger point. Like ActionFunc it
// gets the engine context and always runs to completion.
type CallbackFunc func(ctx context.Context, cc CallbackContext) error

// Callback binds a function to a trigger. Phase restricts phase and scene
// triggers to one phase; PhaseNone matches every phase.
type Callback struct {
	Trigger Trigger
	Phase   Phase
	Fn      CallbackFunc
}

func (c Callback) matches(t Trigger, p Phase) bool {
	return c.Trigger == t && (c.Phase == PhaseNone || c.Phase == p)
}

// CallbackID identifies a global callback registration.
type CallbackID uint64

type globalCallback struct {
	id CallbackID
	cb Callback
}

// callbackRegistry is the ordered list of callbacks applied to every operation of an engine.
type callbackRegistry struct {
	mu      sync.RWMutex
	next    CallbackID
	entries []globalCallback
}

func (r *callbackRegistry) add(cb Callback) CallbackID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.entries = append(r.entries, globalCallback{id: r.next, cb: cb})
	return r.next
}

func (r *callbackRegistry) remove(id CallbackID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (r *callbackRegistry) snapshot() []Callback {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Callback, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.cb)
	}
	return out
}

// AddGlobalCallback registers a callback applied to every operation of the engine,
// after the operation's own callbacks.
func (e *Engine) AddGlobalCallback(cb Callback) (CallbackID, error) {
	if cb.Fn == nil || cb.Trigger == 0 {
		return 0, fmt.Errorf("%w: callback needs a trigger and a function", ErrInvalidRequest)
	}
	return e.globals.add(cb), nil
}

// RemoveGlobalCallback unregisters a global callback. Returns false if id is unknown.
func (e *Engine) RemoveGlobalCallback(id CallbackID) bool {
	return e.globals.remove(id)
}

// dispatch runs the operation-local callbacks for a trigger, then the global ones.
func (o *Operation) dispatch(t Trigger, p Phase, s *scene.Scene) {
	cc := CallbackContext{
		Operation:  o,
		Trigger:    t,
		Phase:      p,
		Scene:      s,
		Collection: o.req.Collection,
	}
	for _, cb := range o.req.Callbacks {
		if cb.matches(t, p) {
			o.invoke(cb, cc)
		}
	}
	for _, cb := range o.engine.globals.snapshot() {
		if cb.matches(t, p) {
			o.invoke(cb, cc)
		}
	}
}

func (o *Operation) invoke(cb Callback, cc CallbackContext) {
	err := safeCall(func() error { return cb.Fn(o.engine.ctx, cc) })
	if err == nil {
		return
	}
	o.engine.log.Warn("callback failed",
		zap.String("operation", o.id),
		zap.Stringer("trigger", cc.Trigger),
		zap.Stringer("phase", cc.Phase),
		zap.Error(err))
	o.engine.emit("warn", "callback.failed", err.Error(), map[string]interface{}{
		"operation_id": o.id,
		"trigger":      cc.Trigger.String(),
		"phase":        cc.Phase.String(),
		"scene_id":     sceneID(cc.Scene),
	})
}

// safeCall runs fn, turning a panic into an error.
func safeCall(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}

func sceneID(s *scene.Scene) string {
	if s == nil {
		return ""
	}
	return s.ID
}
