package orchestrator

import (
	"context"

	"github.com/AaronLay10/SentientScenes/internal/scene"
	"github.com/AaronLay10/SentientScenes/internal/tracking"
)

// Phase is a step of an operation. Phases run strictly in declaration order.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseCloseCallbacks
	PhaseUnloadScenes
	PhaseLoadScenes
	PhaseOpenCallbacks
	PhaseCustomActions
	PhaseDone
)

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseCloseCallbacks:
		return "close_callbacks"
	case PhaseUnloadScenes:
		return "unload_scenes"
	case PhaseLoadScenes:
		return "load_scenes"
	case PhaseOpenCallbacks:
		return "open_callbacks"
	case PhaseCustomActions:
		return "custom_actions"
	case PhaseDone:
		return "done"
	}
	return "unknown"
}

// ActionFunc is a custom action run in the CustomActions phase. ctx ends with
// the engine, not the operation: a running action is never torn down by
// Operation.Cancel and observes it through op.Cancelled().
type ActionFunc func(ctx context.Context, op *Operation) error

// CustomAction is a named custom action.
type CustomAction struct {
	Name string
	Fn   ActionFunc
}

// Action is one step of a resolved operation. Phase tags the variant:
//
//	PhaseCloseCallbacks  Scene + Instance: run closing hooks
//	PhaseUnloadScenes    Scene + Instance: unload the instance
//	PhaseLoadScenes      Scene: load (Preload keeps it inactive), or activate Instance when Activate is set
//	PhaseOpenCallbacks   Scene: run opened hooks
//	PhaseCustomActions   Custom
type Action struct {
	Phase    Phase
	Scene    *scene.Scene
	Instance tracking.OpenSceneInfo
	Force    bool
	Preload  bool
	Activate bool
	Custom   *CustomAction
}

// Name describes the action for logs.
func (a Action) Name() string {
	if a.Custom != nil {
		return a.Custom.Name
	}
	return a.Phase.String() + ":" + a.Scene.String()
}
