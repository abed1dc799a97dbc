package orchestrator

import (
	"context"

	"github.com/AaronLay10/SentientScenes/internal/scene"
)

// LoadPriority is the device-wide background loading priority.
type LoadPriority string

const (
	PriorityLow         LoadPriority = "low"
	PriorityBelowNormal LoadPriority = "below_normal"
	PriorityNormal      LoadPriority = "normal"
	PriorityHigh        LoadPriority = "high"
)

// ParseLoadPriority maps a configuration value to a LoadPriority.
func ParseLoadPriority(s string) (LoadPriority, bool) {
	switch LoadPriority(s) {
	case "":
		return PriorityNormal, true
	case PriorityLow, PriorityBelowNormal, PriorityNormal, PriorityHigh:
		return LoadPriority(s), true
	}
	return "", false
}

// ProgressFunc receives load or unload progress in [0, 1].
type ProgressFunc func(p float32)

// LoadOptions controls a single scene load.
type LoadOptions struct {
	// Activate false keeps the loaded scene inactive until ActivateScene.
	Activate bool
	Priority LoadPriority
}

// Backend loads and unloads scene content.
type Backend interface {
	LoadScene(ctx context.Context, s *scene.Scene, opts LoadOptions, progress ProgressFunc) (scene.Handle, error)
	ActivateScene(ctx context.Context, h scene.Handle) error
	UnloadScene(ctx context.Context, h scene.Handle, progress ProgressFunc) error
	IsLoaded(sceneID string) bool
}

// PrioritySetter is implemented by backends exposing a loading priority knob.
type PrioritySetter interface {
	SetLoadPriority(p LoadPriority)
}

// Reclaimer is implemented by backends able to release resources no loaded scene uses.
type Reclaimer interface {
	ReclaimUnused(ctx context.Context) error
}

// ActiveSceneSetter is implemented by backends with a notion of the active scene.
type ActiveSceneSetter interface {
	SetActiveScene(h scene.Handle) error
}

// LoadedInstance is a live instance reported by an InstanceLister.
type LoadedInstance struct {
	Scene  *scene.Scene
	Handle scene.Handle
}

// InstanceLister is implemented by backends that can report loaded instances,
// including ones loaded outside the engine.
type InstanceLister interface {
	LoadedInstances() []LoadedInstance
}

// Metadata answers questions about the project's scenes and collections.
// *scene.Catalog implements it.
type Metadata interface {
	Scene(id string) *scene.Scene
	Collection(id string) *scene.Collection
	ResolveCollection(s *scene.Scene) *scene.Collection
	IsIncludedInBuild(s *scene.Scene) bool
}
