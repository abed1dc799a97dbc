package orchestrator

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/AaronLay10/SentientScenes/internal/scene"
)

// HookKind selects what a hook listens to.
type HookKind int

const (
	HookSceneOpened HookKind = iota + 1
	HookSceneClosed
	HookCollectionOpened
	HookCollectionClosed
)

func (k HookKind) String() string {
	switch k {
	case HookSceneOpened:
		return "scene_opened"
	case HookSceneClosed:
		return "scene_closed"
	case HookCollectionOpened:
		return "collection_opened"
	case HookCollectionClosed:
		return "collection_closed"
	}
	return "unknown"
}

// HookEvent is passed to hooks.
type HookEvent struct {
	Operation  *Operation
	Scene      *scene.Scene
	Collection *scene.Collection
}

// HookFunc handles a hook event.
type HookFunc func(ctx context.Context, ev HookEvent) error

// HookID identifies a hook registration.
type HookID uint64

type hook struct {
	id         HookID
	kind       HookKind
	key        string
	fn         HookFunc
	persistent bool
}

// hookRegistry holds per-scene and per-collection hooks keyed by ID.
// An empty key matches every scene or collection.
type hookRegistry struct {
	mu    sync.Mutex
	next  HookID
	hooks []*hook
}

func (r *hookRegistry) add(kind HookKind, key string, fn HookFunc, persistent bool) HookID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	r.hooks = append(r.hooks, &hook{id: r.next, kind: kind, key: key, fn: fn, persistent: persistent})
	return r.next
}

func (r *hookRegistry) remove(id HookID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, h := range r.hooks {
		if h.id == id {
			r.hooks = append(r.hooks[:i], r.hooks[i+1:]...)
			return true
		}
	}
	return false
}

// take returns the matching hooks in registration order and drops the one-shot ones.
func (r *hookRegistry) take(kind HookKind, key string) []*hook {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*hook
	kept := r.hooks[:0]
	for _, h := range r.hooks {
		if h.kind == kind && (h.key == "" || h.key == key) {
			matched = append(matched, h)
			if !h.persistent {
				continue
			}
		}
		kept = append(kept, h)
	}
	for i := len(kept); i < len(r.hooks); i++ {
		r.hooks[i] = nil
	}
	r.hooks = kept
	return matched
}

// OnSceneOpened registers fn to run when the scene opens. An empty sceneID
// matches every scene. Unless persistent, the hook runs once.
func (e *Engine) OnSceneOpened(sceneID string, fn HookFunc, persistent bool) HookID {
	return e.hooks.add(HookSceneOpened, sceneID, fn, persistent)
}

// OnSceneClosed registers fn to run right before the scene unloads.
func (e *Engine) OnSceneClosed(sceneID string, fn HookFunc, persistent bool) HookID {
	return e.hooks.add(HookSceneClosed, sceneID, fn, persistent)
}

// OnCollectionOpened registers fn to run when the collection becomes active.
func (e *Engine) OnCollectionOpened(collectionID string, fn HookFunc, persistent bool) HookID {
	return e.hooks.add(HookCollectionOpened, collectionID, fn, persistent)
}

// OnCollectionClosed registers fn to run when the collection is closed.
func (e *Engine) OnCollectionClosed(collectionID string, fn HookFunc, persistent bool) HookID {
	return e.hooks.add(HookCollectionClosed, collectionID, fn, persistent)
}

// RemoveHook unregisters a hook.
func (e *Engine) RemoveHook(id HookID) bool {
	return e.hooks.remove(id)
}

func (o *Operation) fireHooks(kind HookKind, key string, ev HookEvent) {
	for _, h := range o.engine.hooks.take(kind, key) {
		fn := h.fn
		if err := safeCall(func() error { return fn(o.engine.ctx, ev) }); err != nil {
			o.engine.log.Warn("hook failed",
				zap.String("operation", o.id),
				zap.Stringer("hook", kind),
				zap.String("key", key),
				zap.Error(err))
			o.engine.emit("warn", "callback.failed", err.Error(), map[string]interface{}{
				"operation_id": o.id,
				"hook":         kind.String(),
				"key":          key,
			})
		}
	}
}
