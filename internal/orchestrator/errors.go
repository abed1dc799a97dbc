package orchestrator

import "errors"

var (
	// ErrInvalidRequest is returned by Submit for malformed requests. Nothing is queued.
	ErrInvalidRequest = errors.New("invalid scene operation")

	// ErrNotInBuild is returned when opening a scene that is not included in the build.
	ErrNotInBuild = errors.New("scene is not included in build")

	// ErrSceneNotInCollection is returned when an operation targeting a collection
	// opens a scene the collection does not contain, without force.
	ErrSceneNotInCollection = errors.New("scene is not part of collection")

	// ErrNotLoadingScreen is returned when a loading-screen override is not flagged as one.
	ErrNotLoadingScreen = errors.New("scene is not a loading screen")

	// ErrPreloadPending is returned when queueing while a preloaded scene awaits
	// FinishPreload or DiscardPreload.
	ErrPreloadPending = errors.New("a preloaded scene must be finished or discarded first")

	// ErrNoPreload is returned by FinishPreload and DiscardPreload when nothing is preloaded.
	ErrNoPreload = errors.New("no preloaded scene")

	// ErrCancelled is returned by Wait for cancelled operations.
	ErrCancelled = errors.New("scene operation cancelled")
)
