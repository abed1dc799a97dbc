package orchestrator

import (
	"github.com/AaronLay10/SentientScenes/internal/persistence"
	"github.com/AaronLay10/SentientScenes/internal/scene"
	"github.com/AaronLay10/SentientScenes/internal/tracking"
)

// Plan is the resolved form of a request: deduplicated action batches in
// execution order.
type Plan struct {
	CloseCallbacks []Action
	Unload         []Action
	Load           []Action
	OpenCallbacks  []Action
	Custom         []Action
}

// Actions flattens the batches in phase order.
func (p Plan) Actions() []Action {
	out := make([]Action, 0, p.Len())
	out = append(out, p.CloseCallbacks...)
	out = append(out, p.Unload...)
	out = append(out, p.Load...)
	out = append(out, p.OpenCallbacks...)
	out = append(out, p.Custom...)
	return out
}

// Len returns the total number of actions.
func (p Plan) Len() int {
	return len(p.CloseCallbacks) + len(p.Unload) + len(p.Load) + len(p.OpenCallbacks) + len(p.Custom)
}

// Resolver turns requests into plans. It only reads engine state.
type Resolver struct {
	Registry     *tracking.Registry
	Persistence  *persistence.Tracker
	IsLoaded     func(sceneID string) bool
	DefaultScene string
}

type entry struct {
	scene *scene.Scene
	force bool
}

// dedupe merges requests for the same scene, keeping first-seen order.
// A scene requested both with and without force is forced.
func dedupe(lists ...[]SceneRequest) []entry {
	var out []entry
	index := make(map[string]int)
	for _, list := range lists {
		for _, sr := range list {
			if i, ok := index[sr.Scene.ID]; ok {
				out[i].force = out[i].force || sr.Force
				continue
			}
			index[sr.Scene.ID] = len(out)
			out = append(out, entry{scene: sr.Scene, force: sr.Force})
		}
	}
	return out
}

func (r *Resolver) loaded(id string) bool {
	if r.Registry.IsTracked(id) {
		return true
	}
	return r.IsLoaded != nil && r.IsLoaded(id)
}

// Resolve computes the plan for req.
func (r *Resolver) Resolve(req *Request) Plan {
	var plan Plan
	next := req.Collection

	if req.activate != nil {
		if info, _, ok := r.Registry.Get(req.activate.ID); ok {
			plan.Load = append(plan.Load, Action{Phase: PhaseLoadScenes, Scene: info.Scene, Instance: info, Activate: true})
			plan.OpenCallbacks = append(plan.OpenCallbacks, Action{Phase: PhaseOpenCallbacks, Scene: info.Scene, Instance: info})
		}
	}

	closing := make(map[string]bool)
	addClose := func(info tracking.OpenSceneInfo, force bool) {
		if closing[info.Scene.ID] {
			return
		}
		closing[info.Scene.ID] = true
		plan.CloseCallbacks = append(plan.CloseCallbacks, Action{Phase: PhaseCloseCallbacks, Scene: info.Scene, Instance: info, Force: force})
		plan.Unload = append(plan.Unload, Action{Phase: PhaseUnloadScenes, Scene: info.Scene, Instance: info, Force: force})
	}

	for _, c := range dedupe(req.Close, req.Reopen) {
		info, _, ok := r.Registry.Get(c.scene.ID)
		if !ok || (r.IsLoaded != nil && !r.IsLoaded(c.scene.ID)) {
			continue
		}
		if c.scene.ID == r.DefaultScene {
			continue
		}
		if !c.force {
			switch r.Persistence.Behavior(info.Handle) {
			case scene.KeepOpenAlways:
				continue
			case scene.KeepOpenIfNextCollectionAlsoContains:
				if next.Contains(c.scene) {
					continue
				}
			}
		}
		addClose(info, c.force)
	}

	for _, o := range dedupe(req.Open, req.Reopen) {
		id := o.scene.ID
		info, _, tracked := r.Registry.Get(id)
		loaded := r.loaded(id)

		if tracked && !closing[id] && info.State == scene.StateOpen &&
			r.Persistence.Behavior(info.Handle) == scene.KeepOpenIfNextCollectionAlsoContains && next.Contains(o.scene) {
			continue
		}
		if next.Contains(o.scene) && next.Tag(o.scene).Open == scene.DoNotOpenInGroup && !o.force {
			continue
		}
		if loaded && !closing[id] {
			if !o.force || id == r.DefaultScene {
				continue
			}
			// Forced open of a loaded scene reloads it.
			if tracked {
				addClose(info, true)
			}
		}

		plan.Load = append(plan.Load, Action{Phase: PhaseLoadScenes, Scene: o.scene, Force: o.force, Preload: req.Preload})
		if !req.Preload {
			plan.OpenCallbacks = append(plan.OpenCallbacks, Action{Phase: PhaseOpenCallbacks, Scene: o.scene, Force: o.force})
		}
	}

	for i := range req.Actions {
		plan.Custom = append(plan.Custom, Action{Phase: PhaseCustomActions, Custom: &req.Actions[i]})
	}
	return plan
}
