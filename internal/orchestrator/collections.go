package orchestrator

import (
	"fmt"

	"github.com/AaronLay10/SentientScenes/internal/scene"
	"github.com/AaronLay10/SentientScenes/internal/tracking"
)

// OpenScene opens scenes. Scenes that all belong to the active collection
// open as part of it; anything else opens standalone.
func (e *Engine) OpenScene(scenes ...*scene.Scene) (*Operation, error) {
	b := e.Operation().Label("open scene").Open(scenes...)
	if c := e.sharedActiveCollection(scenes); c != nil {
		b.With(c)
	}
	return b.Submit()
}

// CloseScene closes scenes, honoring their persistence.
func (e *Engine) CloseScene(scenes ...*scene.Scene) (*Operation, error) {
	return e.Operation().Label("close scene").Close(scenes...).Submit()
}

// ReopenScene closes and opens scenes again.
func (e *Engine) ReopenScene(scenes ...*scene.Scene) (*Operation, error) {
	b := e.Operation().Label("reopen scene").Reopen(scenes...)
	if c := e.sharedActiveCollection(scenes); c != nil {
		b.With(c)
	}
	return b.Submit()
}

func (e *Engine) sharedActiveCollection(scenes []*scene.Scene) *scene.Collection {
	active := e.registry.ActiveCollection()
	if active == nil || len(scenes) == 0 {
		return nil
	}
	for _, s := range scenes {
		if !active.Contains(s) {
			return nil
		}
	}
	return active
}

// CollectionOf returns the collection s belongs to: the active collection if
// it contains s, else the one the metadata resolves.
func (e *Engine) CollectionOf(s *scene.Scene) *scene.Collection {
	if active := e.registry.ActiveCollection(); active.Contains(s) {
		return active
	}
	if e.metadata == nil {
		return nil
	}
	return e.metadata.ResolveCollection(s)
}

// OpenCollection makes c the active collection: scenes of the previous
// collection that c does not contain close, c's scenes open and its scripts
// run as custom actions. With openAll, scenes tagged not to open are opened too.
func (e *Engine) OpenCollection(c *scene.Collection, openAll bool) (*Operation, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil collection", ErrInvalidRequest)
	}
	b := e.Operation().Label("open collection " + c.ID).With(c)

	for _, info := range e.registry.All(tracking.KindCollection) {
		if !c.Contains(info.Scene) {
			b.Close(info.Scene)
		}
	}
	for _, tag := range c.Tags {
		switch {
		case tag.Open == scene.DoNotOpenInGroup && openAll:
			b.OpenForced(tag.Scene)
		default:
			b.Open(tag.Scene)
		}
	}

	if len(c.Scripts) > 0 {
		if e.scripts == nil {
			return nil, fmt.Errorf("%w: collection %s has scripts but no script runtime is configured", ErrInvalidRequest, c.ID)
		}
		for _, s := range c.Scripts {
			fn, err := e.scripts.Compile(c, s)
			if err != nil {
				return nil, fmt.Errorf("%w: script %s: %w", ErrInvalidRequest, s.Name, err)
			}
			b.Action(s.Name, fn)
		}
	}
	return b.Submit()
}

// CloseCollection closes the scenes c opened. Persistent scenes survive.
func (e *Engine) CloseCollection(c *scene.Collection) (*Operation, error) {
	if c == nil {
		return nil, fmt.Errorf("%w: nil collection", ErrInvalidRequest)
	}
	b := e.Operation().Label("close collection " + c.ID).closing(c)
	for _, info := range e.registry.All(tracking.KindCollection) {
		if info.Collection != nil && info.Collection.ID == c.ID {
			b.Close(info.Scene)
		}
	}
	return b.Submit()
}

// ToggleCollection closes c if it is active, and opens it otherwise.
func (e *Engine) ToggleCollection(c *scene.Collection, openAll bool) (*Operation, error) {
	if active := e.registry.ActiveCollection(); active != nil && c != nil && active.ID == c.ID {
		return e.CloseCollection(c)
	}
	return e.OpenCollection(c, openAll)
}

// CloseAll closes every open scene except the default one and closes the
// active collection. With exceptPersistent, scenes whose persistence keeps them
// open survive; otherwise they are closed too.
func (e *Engine) CloseAll(exceptPersistent bool) (*Operation, error) {
	b := e.Operation().Label("close all")
	if active := e.registry.ActiveCollection(); active != nil {
		b.closing(active)
	}
	for _, info := range e.registry.Everything() {
		if exceptPersistent {
			b.Close(info.Scene)
		} else {
			b.CloseForced(info.Scene)
		}
	}
	return b.Submit()
}

// Preload loads s without activating it. Other operations are rejected until
// FinishPreload or DiscardPreload.
func (e *Engine) Preload(s *scene.Scene) (*Operation, error) {
	b := e.Operation().Label("preload").Open(s).Preload()
	if c := e.sharedActiveCollection([]*scene.Scene{s}); c != nil {
		b.With(c)
	}
	return b.Submit()
}

// FinishPreload activates the preloaded scene. It bypasses the queue.
func (e *Engine) FinishPreload() (*Operation, error) {
	s, ok := e.Preloaded()
	if !ok {
		return nil, ErrNoPreload
	}
	return e.Operation().Label("finish preload").activate(s).NoLoadingScreen().bypass().Submit()
}

// DiscardPreload unloads the preloaded scene. It bypasses the queue.
func (e *Engine) DiscardPreload() (*Operation, error) {
	s, ok := e.Preloaded()
	if !ok {
		return nil, ErrNoPreload
	}
	return e.Operation().Label("discard preload").CloseForced(s).NoLoadingScreen().bypass().Submit()
}
