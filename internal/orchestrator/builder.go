package orchestrator

import (
	"fmt"

	"github.com/AaronLay10/SentientScenes/internal/scene"
)

// Builder assembles a scene operation. Nothing happens until Submit.
// A Builder is not safe for concurrent use.
type Builder struct {
	engine *Engine
	req    Request
}

// Operation starts building a new scene operation.
func (e *Engine) Operation() *Builder {
	return &Builder{engine: e}
}

// Label names the operation in logs.
func (b *Builder) Label(label string) *Builder {
	b.req.Label = label
	return b
}

// Open requests scenes to be opened.
func (b *Builder) Open(scenes ...*scene.Scene) *Builder {
	b.req.Open = appendScenes(b.req.Open, scenes, false)
	return b
}

// OpenForced opens scenes even if already open or tagged not to open with the collection.
func (b *Builder) OpenForced(scenes ...*scene.Scene) *Builder {
	b.req.Open = appendScenes(b.req.Open, scenes, true)
	return b
}

// Close requests scenes to be closed.
func (b *Builder) Close(scenes ...*scene.Scene) *Builder {
	b.req.Close = appendScenes(b.req.Close, scenes, false)
	return b
}

// CloseForced closes scenes regardless of their persistence.
func (b *Builder) CloseForced(scenes ...*scene.Scene) *Builder {
	b.req.Close = appendScenes(b.req.Close, scenes, true)
	return b
}

// Reopen closes and opens scenes again, in that order.
func (b *Builder) Reopen(scenes ...*scene.Scene) *Builder {
	b.req.Reopen = appendScenes(b.req.Reopen, scenes, false)
	return b
}

// ReopenForced reopens scenes regardless of their persistence.
func (b *Builder) ReopenForced(scenes ...*scene.Scene) *Builder {
	b.req.Reopen = appendScenes(b.req.Reopen, scenes, true)
	return b
}

// With associates the operation with a collection.
func (b *Builder) With(c *scene.Collection) *Builder {
	b.req.Collection = c
	return b
}

// LoadingScreen overrides the loading screen shown during the operation.
func (b *Builder) LoadingScreen(s *scene.Scene) *Builder {
	b.req.LoadingScreen = s
	b.req.NoLoadingScreen = false
	return b
}

// NoLoadingScreen disables the loading screen.
func (b *Builder) NoLoadingScreen() *Builder {
	b.req.LoadingScreen = nil
	b.req.NoLoadingScreen = true
	return b
}

// Action adds a custom action run after the open callbacks.
func (b *Builder) Action(name string, fn ActionFunc) *Builder {
	b.req.Actions = append(b.req.Actions, CustomAction{Name: name, Fn: fn})
	return b
}

// Callback registers an operation-local callback.
func (b *Builder) Callback(cb Callback) *Builder {
	b.req.Callbacks = append(b.req.Callbacks, cb)
	return b
}

// OnCancel registers fn to run once if the operation is cancelled.
func (b *Builder) OnCancel(fn func(*Operation)) *Builder {
	b.req.onCancel = append(b.req.onCancel, fn)
	return b
}

// Then registers a continuation invoked exactly once with the final result.
func (b *Builder) Then(fn func(Result)) *Builder {
	b.req.then = append(b.req.then, fn)
	return b
}

// Priority sets the loading priority applied while the operation runs.
func (b *Builder) Priority(p LoadPriority) *Builder {
	b.req.Priority = p
	return b
}

// UnloadUnused reclaims unused resources after the operation.
func (b *Builder) UnloadUnused(enabled bool) *Builder {
	b.req.UnloadUnused = enabled
	return b
}

// Preload loads the single open scene without activating it.
func (b *Builder) Preload() *Builder {
	b.req.Preload = true
	return b
}

// SetActive makes s the active scene once the operation completes.
func (b *Builder) SetActive(s *scene.Scene) *Builder {
	b.req.ActiveScene = s
	return b
}

// Persistent attaches a close behavior to every scene the operation opens.
func (b *Builder) Persistent(behavior scene.CloseBehavior) *Builder {
	b.req.Persistence = behavior
	return b
}

func (b *Builder) closing(c *scene.Collection) *Builder {
	b.req.Closing = c
	return b
}

func (b *Builder) bypass() *Builder {
	b.req.bypass = true
	return b
}

func (b *Builder) activate(s *scene.Scene) *Builder {
	b.req.activate = s
	return b
}

// Submit validates the request, freezes it and queues the operation.
// Invalid requests are rejected here and never reach the queue. An empty
// request returns the engine's precomputed completed operation.
func (b *Builder) Submit() (*Operation, error) {
	req := b.snapshot()
	if err := b.engine.validate(&req); err != nil {
		return nil, err
	}
	return b.engine.submit(&req)
}

// snapshot copies the request so later builder calls cannot reach it.
func (b *Builder) snapshot() Request {
	req := b.req
	req.Open = append([]SceneRequest(nil), b.req.Open...)
	req.Close = append([]SceneRequest(nil), b.req.Close...)
	req.Reopen = append([]SceneRequest(nil), b.req.Reopen...)
	req.Actions = append([]CustomAction(nil), b.req.Actions...)
	req.Callbacks = append([]Callback(nil), b.req.Callbacks...)
	req.onCancel = append(([]func(*Operation))(nil), b.req.onCancel...)
	req.then = append(([]func(Result))(nil), b.req.then...)
	return req
}

func appendScenes(dst []SceneRequest, scenes []*scene.Scene, force bool) []SceneRequest {
	for _, s := range scenes {
		dst = append(dst, SceneRequest{Scene: s, Force: force})
	}
	return dst
}

// validate rejects requests the engine cannot execute.
func (e *Engine) validate(req *Request) error {
	all := [][]SceneRequest{req.Open, req.Close, req.Reopen}
	for _, list := range all {
		for _, sr := range list {
			if sr.Scene == nil || sr.Scene.ID == "" {
				return fmt.Errorf("%w: nil scene", ErrInvalidRequest)
			}
		}
	}

	for _, s := range req.openScenes() {
		if e.metadata != nil && !e.metadata.IsIncludedInBuild(s) {
			return fmt.Errorf("%w: %s", ErrNotInBuild, s.ID)
		}
	}

	if req.Collection != nil {
		for _, sr := range append(append([]SceneRequest{}, req.Open...), req.Reopen...) {
			if !sr.Force && !req.Collection.Contains(sr.Scene) {
				return fmt.Errorf("%w: %s not in %s", ErrSceneNotInCollection, sr.Scene.ID, req.Collection.ID)
			}
		}
	}

	if req.LoadingScreen != nil && !req.LoadingScreen.IsLoadingScreen {
		return fmt.Errorf("%w: %s", ErrNotLoadingScreen, req.LoadingScreen.ID)
	}

	if req.Preload && (len(req.Open) != 1 || len(req.Reopen) != 0) {
		return fmt.Errorf("%w: preload takes exactly one scene to open", ErrInvalidRequest)
	}

	for _, a := range req.Actions {
		if a.Fn == nil {
			return fmt.Errorf("%w: custom action %q has no function", ErrInvalidRequest, a.Name)
		}
	}
	for _, cb := range req.Callbacks {
		if cb.Fn == nil {
			return fmt.Errorf("%w: callback without function", ErrInvalidRequest)
		}
	}
	return nil
}
