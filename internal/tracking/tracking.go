// Package tracking keeps the records of loaded scenes. Every record belongs to
// exactly one manager: the collection manager (scenes opened as part of the
// active collection) or the standalone manager (everything else).
package tracking

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AaronLay10/SentientScenes/internal/scene"
)

// Kind identifies a manager.
type Kind string

const (
	KindCollection Kind = "collection"
	KindStandalone Kind = "standalone"
)

var (
	ErrAlreadyTracked = errors.New("scene already tracked")
	ErrNotTracked     = errors.New("scene not tracked")
)

// OpenSceneInfo associates a scene with its live loaded instance.
type OpenSceneInfo struct {
	Scene  *scene.Scene
	Handle scene.Handle
	State  scene.State

	// Collection is the collection that opened the scene, nil for standalone opens.
	Collection *scene.Collection
	OpenedAt   time.Time
}

// Manager is an ordered set of records. It is not safe for concurrent use on
// its own; Registry serializes access.
type Manager struct {
	kind    Kind
	order   []string
	records map[string]*OpenSceneInfo
}

func newManager(kind Kind) *Manager {
	return &Manager{
		kind:    kind,
		records: make(map[string]*OpenSceneInfo),
	}
}

func (m *Manager) add(info *OpenSceneInfo) {
	m.order = append(m.order, info.Scene.ID)
	m.records[info.Scene.ID] = info
}

func (m *Manager) remove(sceneID string) (*OpenSceneInfo, bool) {
	info, ok := m.records[sceneID]
	if !ok {
		return nil, false
	}
	delete(m.records, sceneID)
	for i, id := range m.order {
		if id == sceneID {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return info, true
}

func (m *Manager) snapshot() []OpenSceneInfo {
	out := make([]OpenSceneInfo, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.records[id])
	}
	return out
}

// Registry holds the collection and standalone managers.
type Registry struct {
	mu         sync.RWMutex
	collection *Manager
	standalone *Manager
	active     *scene.Collection
}

// NewRegistry creates empty managers.
func NewRegistry() *Registry {
	return &Registry{
		collection: newManager(KindCollection),
		standalone: newManager(KindStandalone),
	}
}

func (r *Registry) manager(kind Kind) *Manager {
	if kind == KindCollection {
		return r.collection
	}
	return r.standalone
}

func (r *Registry) findLocked(sceneID string) (*OpenSceneInfo, *Manager) {
	if info, ok := r.collection.records[sceneID]; ok {
		return info, r.collection
	}
	if info, ok := r.standalone.records[sceneID]; ok {
		return info, r.standalone
	}
	return nil, nil
}

// Track adds a record to a manager. A scene may only be tracked once.
func (r *Registry) Track(kind Kind, info OpenSceneInfo) error {
	if info.Scene == nil {
		return fmt.Errorf("track: nil scene")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, m := r.findLocked(info.Scene.ID); existing != nil {
		return fmt.Errorf("%w: %s (%s)", ErrAlreadyTracked, info.Scene.ID, m.kind)
	}
	if info.OpenedAt.IsZero() {
		info.OpenedAt = time.Now()
	}
	cpy := info
	r.manager(kind).add(&cpy)
	return nil
}

// Untrack removes a scene's record from whichever manager holds it.
func (r *Registry) Untrack(sceneID string) (OpenSceneInfo, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, m := r.findLocked(sceneID)
	if m == nil {
		return OpenSceneInfo{}, false
	}
	info, _ := m.remove(sceneID)
	return *info, true
}

// Get returns a copy of a scene's record and the manager holding it.
func (r *Registry) Get(sceneID string) (OpenSceneInfo, Kind, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, m := r.findLocked(sceneID)
	if info == nil {
		return OpenSceneInfo{}, "", false
	}
	return *info, m.kind, true
}

// IsTracked returns true if any manager holds the scene.
func (r *Registry) IsTracked(sceneID string) bool {
	_, _, ok := r.Get(sceneID)
	return ok
}

// HandOff moves a record to the other manager. Moving to the current owner is a no-op.
func (r *Registry) HandOff(sceneID string, to Kind) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, from := r.findLocked(sceneID)
	if info == nil {
		return fmt.Errorf("%w: %s", ErrNotTracked, sceneID)
	}
	if from.kind == to {
		return nil
	}
	from.remove(sceneID)
	if to == KindStandalone {
		info.Collection = nil
	}
	r.manager(to).add(info)
	return nil
}

// SetState updates the state of a tracked scene.
func (r *Registry) SetState(sceneID string, state scene.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	info, _ := r.findLocked(sceneID)
	if info == nil {
		return fmt.Errorf("%w: %s", ErrNotTracked, sceneID)
	}
	info.State = state
	return nil
}

// All returns a copy of the records held by one manager, in tracking order.
func (r *Registry) All(kind Kind) []OpenSceneInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.manager(kind).snapshot()
}

// Everything returns the records of both managers, collection first.
func (r *Registry) Everything() []OpenSceneInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append(r.collection.snapshot(), r.standalone.snapshot()...)
}

// Clear drops every record of one manager and returns them.
func (r *Registry) Clear(kind Kind) []OpenSceneInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.manager(kind)
	out := m.snapshot()
	*m = *newManager(kind)
	if kind == KindCollection {
		r.active = nil
	}
	return out
}

// SetActiveCollection records the collection the collection manager currently represents.
func (r *Registry) SetActiveCollection(c *scene.Collection) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = c
}

// ActiveCollection returns the active collection, or nil.
func (r *Registry) ActiveCollection() *scene.Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active
}

// Orphans returns the collection-managed records that were opened by a
// collection other than the active one.
func (r *Registry) Orphans() []OpenSceneInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []OpenSceneInfo
	for _, info := range r.collection.snapshot() {
		if r.active == nil || info.Collection == nil || info.Collection.ID != r.active.ID {
			out = append(out, info)
		}
	}
	return out
}

// Rehome makes c the owning collection of every collection-managed record c
// contains, and returns the IDs it updated. Standalone records are untouched.
func (r *Registry) Rehome(c *scene.Collection) []string {
	if c == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for _, id := range r.collection.order {
		info := r.collection.records[id]
		if c.Contains(info.Scene) && (info.Collection == nil || info.Collection.ID != c.ID) {
			info.Collection = c
			ids = append(ids, id)
		}
	}
	return ids
}
