package orchestrator

import (
	"time"

	"github.com/AaronLay10/SentientScenes/internal/tracking"
)

// SceneStatus describes one open scene.
type SceneStatus struct {
	ID         string `json:"id"`
	State      string `json:"state"`
	Manager    string `json:"manager"`
	Collection string `json:"collection,omitempty"`
	OpenedAt   string `json:"opened_at"`
	Persistent bool   `json:"persistent,omitempty"`
}

// OperationStatus describes a queued or running operation.
type OperationStatus struct {
	ID       string  `json:"id"`
	Label    string  `json:"label,omitempty"`
	Phase    string  `json:"phase"`
	Progress float32 `json:"progress"`
	Running  bool    `json:"running"`
}

// Status is a point-in-time snapshot of the engine.
type Status struct {
	Busy             bool              `json:"busy"`
	ActiveCollection string            `json:"active_collection,omitempty"`
	ActiveScene      string            `json:"active_scene,omitempty"`
	Preloaded        string            `json:"preloaded,omitempty"`
	Scenes           []SceneStatus     `json:"scenes"`
	Operations       []OperationStatus `json:"operations"`
}

// Status returns a snapshot of open scenes and pending operations.
func (e *Engine) Status() Status {
	st := Status{
		Busy:        e.IsBusy(),
		ActiveScene: e.ActiveScene(),
		Scenes:      []SceneStatus{},
		Operations:  []OperationStatus{},
	}
	if c := e.ActiveCollection(); c != nil {
		st.ActiveCollection = c.ID
	}
	if s, ok := e.Preloaded(); ok {
		st.Preloaded = s.ID
	}

	for _, kind := range []tracking.Kind{tracking.KindCollection, tracking.KindStandalone} {
		for _, info := range e.OpenScenesOf(kind) {
			ss := SceneStatus{
				ID:         info.Scene.ID,
				State:      string(info.State),
				Manager:    string(kind),
				OpenedAt:   info.OpenedAt.UTC().Format(time.RFC3339),
				Persistent: e.persistence.IsPersistent(info.Handle),
			}
			if info.Collection != nil {
				ss.Collection = info.Collection.ID
			}
			st.Scenes = append(st.Scenes, ss)
		}
	}

	for _, op := range e.RunningOperations() {
		st.Operations = append(st.Operations, operationStatus(op, true))
	}
	for _, op := range e.QueuedOperations() {
		st.Operations = append(st.Operations, operationStatus(op, false))
	}
	return st
}

func operationStatus(op *Operation, running bool) OperationStatus {
	return OperationStatus{
		ID:       op.ID(),
		Label:    op.Label(),
		Phase:    op.Phase().String(),
		Progress: op.Progress(),
		Running:  running,
	}
}
