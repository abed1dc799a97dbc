package orchestrator

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/AaronLay10/SentientScenes/internal/scene"
	"github.com/AaronLay10/SentientScenes/internal/tracking"
)

// execute runs the operation to completion on the calling goroutine.
func (o *Operation) execute() {
	o.mu.Lock()
	if o.finished {
		o.mu.Unlock()
		return
	}
	o.started = true
	o.mu.Unlock()
	defer o.complete()

	e := o.engine
	if o.Cancelled() {
		return
	}
	e.emit("info", "operation.started", o.req.Label, o.fields())
	e.observeInstances()

	plan := e.resolver().Resolve(o.req)
	actions := plan.Actions()
	o.setActions(actions)
	e.log.Debug("operation resolved",
		zap.String("operation", o.id),
		zap.Int("close", len(plan.Unload)),
		zap.Int("load", len(plan.Load)),
		zap.Int("custom", len(plan.Custom)))

	if o.parent == nil && e.queue.IsCurrent(o) {
		e.applyPriority(o.req.Priority)
	}

	var overlay *scene.Scene
	if len(actions) > 0 {
		overlay = o.openLoadingScreen()
	}

	if !o.Cancelled() {
		o.dispatch(BeforeOperation, PhaseNone, nil)
		o.walk(actions)
	}
	if !o.Cancelled() {
		o.finalize()
	}

	if overlay != nil {
		o.closeLoadingScreen(overlay)
	}
}

// walk performs the actions in order. Phase callbacks fire once per phase
// transition, scene callbacks around every scene action.
func (o *Operation) walk(actions []Action) {
	current := PhaseNone
	for i, a := range actions {
		if o.Cancelled() {
			return
		}
		if a.Phase != current {
			if current != PhaseNone {
				o.dispatch(AfterPhase, current, nil)
			}
			current = a.Phase
			o.setPhase(current)
			o.engine.emit("debug", "operation.phase", "", map[string]interface{}{
				"operation_id": o.id,
				"phase":        current.String(),
			})
			o.dispatch(BeforePhase, current, nil)
		}

		if a.Scene != nil {
			o.dispatch(BeforeScene, current, a.Scene)
		}
		o.perform(i, a)
		if o.Cancelled() {
			return
		}
		o.setProgress(i, 1)
		if a.Scene != nil {
			o.dispatch(AfterScene, current, a.Scene)
		}
	}
	if current != PhaseNone && !o.Cancelled() {
		o.dispatch(AfterPhase, current, nil)
	}
}

func (o *Operation) perform(i int, a Action) {
	progress := func(p float32) { o.setProgress(i, p) }

	switch a.Phase {
	case PhaseCloseCallbacks:
		o.fireHooks(HookSceneClosed, a.Scene.ID, HookEvent{Operation: o, Scene: a.Scene, Collection: a.Instance.Collection})
	case PhaseUnloadScenes:
		o.unload(a, progress)
	case PhaseLoadScenes:
		if a.Activate {
			o.activate(a)
		} else {
			o.load(a, progress)
		}
	case PhaseOpenCallbacks:
		o.fireHooks(HookSceneOpened, a.Scene.ID, HookEvent{Operation: o, Scene: a.Scene, Collection: o.req.Collection})
	case PhaseCustomActions:
		o.runCustom(a.Custom)
	}
}

func (o *Operation) unload(a Action, progress ProgressFunc) {
	e := o.engine
	if err := e.backend.UnloadScene(o.ctx, a.Instance.Handle, progress); err != nil {
		o.fail(a.Scene, err)
		return
	}
	e.registry.Untrack(a.Scene.ID)
	e.persistence.Remove(a.Instance.Handle)
	e.clearPreload(a.Scene.ID)
	if e.activeSceneID() == a.Scene.ID {
		e.setActiveScene("")
	}
	o.record(func(r *Result) { r.Closed = append(r.Closed, a.Scene.ID) })
	e.emit("info", "scene.closed", "", map[string]interface{}{
		"operation_id": o.id,
		"scene_id":     a.Scene.ID,
		"collection":   collectionID(a.Instance.Collection),
	})
	e.log.Info("scene closed", zap.String("scene", a.Scene.ID), zap.String("operation", o.id))
}

func (o *Operation) load(a Action, progress ProgressFunc) {
	e := o.engine
	transient := scene.StateOpening
	if a.Preload {
		transient = scene.StatePreloading
	}
	e.setTransient(a.Scene.ID, transient)
	h, err := e.backend.LoadScene(o.ctx, a.Scene, LoadOptions{Activate: !a.Preload, Priority: e.currentPriority()}, progress)
	e.clearTransient(a.Scene.ID)
	if err != nil {
		o.fail(a.Scene, err)
		return
	}

	kind := tracking.KindStandalone
	var col *scene.Collection
	manager := "standalone"
	if o.req.Collection.Contains(a.Scene) {
		kind = tracking.KindCollection
		col = o.req.Collection
		manager = "collection"
	}
	state := scene.StateOpen
	if a.Preload {
		state = scene.StatePreloaded
	}
	info := tracking.OpenSceneInfo{Scene: a.Scene, Handle: h, State: state, Collection: col}
	if err := e.registry.Track(kind, info); err != nil {
		e.log.Warn("failed to track loaded scene", zap.String("scene", a.Scene.ID), zap.Error(err))
	}
	o.record(func(r *Result) { r.Opened = append(r.Opened, a.Scene.ID) })

	name := "scene.opened"
	if a.Preload {
		name = "scene.preloaded"
		e.setPreload(a.Scene)
	}
	e.emit("info", name, "", map[string]interface{}{
		"operation_id": o.id,
		"scene_id":     a.Scene.ID,
		"manager":      manager,
		"collection":   collectionID(col),
	})
	e.log.Info("scene loaded", zap.String("scene", a.Scene.ID), zap.String("state", string(state)), zap.String("operation", o.id))
}

func (o *Operation) activate(a Action) {
	e := o.engine
	if err := e.backend.ActivateScene(o.ctx, a.Instance.Handle); err != nil {
		o.fail(a.Scene, err)
		return
	}
	if err := e.registry.SetState(a.Scene.ID, scene.StateOpen); err != nil {
		e.log.Warn("activated scene is not tracked", zap.String("scene", a.Scene.ID), zap.Error(err))
	}
	e.clearPreload(a.Scene.ID)
	o.record(func(r *Result) { r.Opened = append(r.Opened, a.Scene.ID) })
	e.emit("info", "scene.activated", "", map[string]interface{}{
		"operation_id": o.id,
		"scene_id":     a.Scene.ID,
	})
}

// fail records a failed scene action. Errors caused by cancellation are not failures.
func (o *Operation) fail(s *scene.Scene, err error) {
	if o.Cancelled() && errors.Is(err, context.Canceled) {
		return
	}
	o.record(func(r *Result) { r.Failed = append(r.Failed, s.ID) })
	o.engine.log.Error("scene action failed", zap.String("scene", s.ID), zap.String("operation", o.id), zap.Error(err))
	o.engine.emit("error", "scene.failed", err.Error(), map[string]interface{}{
		"operation_id": o.id,
		"scene_id":     s.ID,
	})
}

func (o *Operation) runCustom(c *CustomAction) {
	err := safeCall(func() error { return c.Fn(o.engine.ctx, o) })
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) && (o.Cancelled() || o.engine.ctx.Err() != nil) {
		o.engine.log.Debug("custom action stopped", zap.String("action", c.Name), zap.String("operation", o.id))
		return
	}
	o.record(func(r *Result) { r.Failed = append(r.Failed, c.Name) })
	o.engine.log.Error("custom action failed", zap.String("action", c.Name), zap.String("operation", o.id), zap.Error(err))
	o.engine.emit("error", "action.failed", err.Error(), map[string]interface{}{
		"operation_id": o.id,
		"action":       c.Name,
	})
}

// finalize runs the bookkeeping after the last action.
func (o *Operation) finalize() {
	e := o.engine
	req := o.req
	res, _ := o.Result()

	for _, id := range res.Opened {
		info, _, ok := e.registry.Get(id)
		if !ok {
			continue
		}
		behavior := req.Persistence
		if behavior == "" && req.Collection.Contains(info.Scene) {
			behavior = req.Collection.Tag(info.Scene).Close
		}
		if behavior != "" {
			e.persistence.Set(info.Handle, behavior)
		}
	}

	if len(res.Opened) > 0 && !req.Preload && !o.isLoadingScreen {
		o.setActiveScene(res.Opened)
	}

	if c := req.Collection; c != nil && !o.isLoadingScreen {
		if prev := e.registry.ActiveCollection(); prev == nil || prev.ID != c.ID {
			e.registry.SetActiveCollection(c)
			e.registry.Rehome(c)
			e.emit("info", "collection.opened", "", map[string]interface{}{
				"operation_id":  o.id,
				"collection_id": c.ID,
			})
			e.log.Info("collection opened", zap.String("collection", c.ID))
			o.fireHooks(HookCollectionOpened, c.ID, HookEvent{Operation: o, Collection: c})
		} else {
			e.registry.Rehome(c)
		}
	}
	if c := req.Closing; c != nil {
		if active := e.registry.ActiveCollection(); active != nil && active.ID == c.ID {
			e.registry.SetActiveCollection(nil)
			e.emit("info", "collection.closed", "", map[string]interface{}{
				"operation_id":  o.id,
				"collection_id": c.ID,
			})
			e.log.Info("collection closed", zap.String("collection", c.ID))
			o.fireHooks(HookCollectionClosed, c.ID, HookEvent{Operation: o, Collection: c})
		}
	}

	if req.UnloadUnused || (req.Collection != nil && req.Collection.UnloadUnused) || e.unloadUnused {
		if r, ok := e.backend.(Reclaimer); ok {
			if err := r.ReclaimUnused(o.ctx); err != nil {
				e.log.Warn("failed to reclaim unused resources", zap.Error(err))
			}
		}
	}

	o.dispatch(AfterOperation, PhaseNone, nil)
}

// setActiveScene picks the scene to activate: the request's choice, then the
// collection's designated scene, then its first scene, then the first opened one.
func (o *Operation) setActiveScene(opened []string) {
	e := o.engine
	var candidates []*scene.Scene
	candidates = append(candidates, o.req.ActiveScene)
	if c := o.req.Collection; c != nil {
		candidates = append(candidates, c.ActiveScene, c.First())
	}
	for _, id := range opened {
		if info, _, ok := e.registry.Get(id); ok {
			candidates = append(candidates, info.Scene)
		}
	}

	for _, s := range candidates {
		if s == nil {
			continue
		}
		info, _, ok := e.registry.Get(s.ID)
		if !ok || info.State != scene.StateOpen {
			continue
		}
		if setter, ok := e.backend.(ActiveSceneSetter); ok {
			if err := setter.SetActiveScene(info.Handle); err != nil {
				e.log.Warn("failed to set active scene", zap.String("scene", s.ID), zap.Error(err))
				return
			}
		}
		e.setActiveScene(s.ID)
		return
	}
}

// complete finishes the operation exactly once.
func (o *Operation) complete() {
	o.completeOnce.Do(func() {
		e := o.engine
		o.mu.Lock()
		o.finished = true
		if o.cancelled.Load() {
			o.result.Cancelled = true
		} else {
			o.phase = PhaseDone
		}
		res := o.result
		o.mu.Unlock()

		fields := o.fields()
		fields["opened"] = len(res.Opened)
		fields["closed"] = len(res.Closed)
		fields["failed"] = len(res.Failed)
		if res.Cancelled {
			e.emit("info", "operation.cancelled", o.req.Label, fields)
			e.log.Info("operation cancelled", zap.String("operation", o.id))
			for _, fn := range o.req.onCancel {
				fn := fn
				if err := safeCall(func() error { fn(o); return nil }); err != nil {
					e.log.Warn("cancel callback failed", zap.String("operation", o.id), zap.Error(err))
				}
			}
		} else {
			e.emit("info", "operation.completed", o.req.Label, fields)
			e.log.Debug("operation completed",
				zap.String("operation", o.id),
				zap.Strings("opened", res.Opened),
				zap.Strings("closed", res.Closed),
				zap.Strings("failed", res.Failed))
		}

		o.cancel()
		close(o.done)
		o.runThen(res)
	})
}

func (o *Operation) runThen(res Result) {
	for _, fn := range o.req.then {
		fn := fn
		if err := safeCall(func() error { fn(res); return nil }); err != nil {
			o.engine.log.Warn("continuation failed", zap.String("operation", o.id), zap.Error(err))
		}
	}
}

func (o *Operation) fields() map[string]interface{} {
	f := map[string]interface{}{
		"operation_id": o.id,
	}
	if o.req.Label != "" {
		f["label"] = o.req.Label
	}
	if o.req.Collection != nil {
		f["collection_id"] = o.req.Collection.ID
	}
	if o.parent != nil {
		f["parent_id"] = o.parent.id
	}
	if o.isLoadingScreen {
		f["loading_screen"] = true
	}
	return f
}

func collectionID(c *scene.Collection) string {
	if c == nil {
		return ""
	}
	return c.ID
}
