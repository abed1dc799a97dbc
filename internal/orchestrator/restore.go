package orchestrator

import (
	"github.com/AaronLay10/SentientScenes/internal/storage/postgres"
)

// DefaultRestoreLimit is the default number of events to load for restore.
const DefaultRestoreLimit = 1000

// EventSource returns stored journal events, newest first.
type EventSource interface {
	Query(limit int) ([]postgres.EventRow, error)
}

// RestoredState is the engine state reconstructed from the journal.
type RestoredState struct {
	CollectionID string
	// Standalone lists scenes open outside any collection, in opening order.
	Standalone []string
}

// IsEmpty returns true if there is nothing to reopen.
func (s *RestoredState) IsEmpty() bool {
	return s == nil || (s.CollectionID == "" && len(s.Standalone) == 0)
}

// RestoreFromEvents replays the journal to find the active collection and the
// standalone scenes at the time the previous process stopped. It returns the
// number of events read. A nil source restores nothing.
func RestoreFromEvents(src EventSource, limit int) (*RestoredState, int, error) {
	if src == nil {
		return nil, 0, nil
	}
	if limit <= 0 {
		limit = DefaultRestoreLimit
	}

	rows, err := src.Query(limit)
	if err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		return nil, 0, nil
	}

	// Query returns newest first.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	state := &RestoredState{}
	for _, row := range rows {
		switch row.Event {
		case "collection.opened":
			if id, ok := row.Fields["collection_id"].(string); ok {
				state.CollectionID = id
			}
		case "collection.closed":
			if id, ok := row.Fields["collection_id"].(string); ok && id == state.CollectionID {
				state.CollectionID = ""
			}
		case "scene.opened":
			id, _ := row.Fields["scene_id"].(string)
			if manager, _ := row.Fields["manager"].(string); manager == "standalone" && id != "" {
				state.Standalone = appendUnique(state.Standalone, id)
			}
		case "scene.closed":
			if id, ok := row.Fields["scene_id"].(string); ok {
				state.Standalone = removeString(state.Standalone, id)
			}
		}
	}
	return state, len(rows), nil
}

// ApplyRestoredState reopens the restored collection and standalone scenes.
// Unknown IDs are skipped. It returns the submitted operations.
func (e *Engine) ApplyRestoredState(state *RestoredState) ([]*Operation, error) {
	if state.IsEmpty() || e.metadata == nil {
		return nil, nil
	}

	var ops []*Operation
	if state.CollectionID != "" {
		if c := e.metadata.Collection(state.CollectionID); c != nil {
			op, err := e.OpenCollection(c, false)
			if err != nil {
				return ops, err
			}
			ops = append(ops, op)
		}
	}
	for _, id := range state.Standalone {
		s := e.metadata.Scene(id)
		if s == nil {
			continue
		}
		op, err := e.Operation().Label("restore " + id).Open(s).NoLoadingScreen().Submit()
		if err != nil {
			return ops, err
		}
		ops = append(ops, op)
	}

	e.emit("info", "system.startup_restore", "", map[string]interface{}{
		"collection_id": state.CollectionID,
		"standalone":    len(state.Standalone),
	})
	return ops, nil
}

func appendUnique(list []string, id string) []string {
	for _, v := range list {
		if v == id {
			return list
		}
	}
	return append(list, id)
}

func removeString(list []string, id string) []string {
	for i, v := range list {
		if v == id {
			return append(list[:i], list[i+1:]...)
		}
	}
	return list
}
