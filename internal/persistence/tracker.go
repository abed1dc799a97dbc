// Package persistence records the close behavior attached to each live scene instance.
package persistence

import (
	"sync"

	"github.com/AaronLay10/SentientScenes/internal/scene"
)

// Tracker maps a loaded scene instance to its close behavior.
// Instances without an entry behave as scene.Close.
type Tracker struct {
	mu    sync.RWMutex
	flags map[scene.Handle]scene.CloseBehavior
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		flags: make(map[scene.Handle]scene.CloseBehavior),
	}
}

// Set attaches a close behavior to an instance. Setting scene.Close removes the entry.
func (t *Tracker) Set(h scene.Handle, b scene.CloseBehavior) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if b == scene.Close || b == "" {
		delete(t.flags, h)
		return
	}
	t.flags[h] = b
}

// Get returns the close behavior of an instance and whether one was set.
func (t *Tracker) Get(h scene.Handle) (scene.CloseBehavior, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	b, ok := t.flags[h]
	if !ok {
		return scene.Close, false
	}
	return b, true
}

// Behavior returns the close behavior of an instance, scene.Close if none was set.
func (t *Tracker) Behavior(h scene.Handle) scene.CloseBehavior {
	b, _ := t.Get(h)
	return b
}

// IsPersistent returns true if the instance is flagged to survive collection switches in any form.
func (t *Tracker) IsPersistent(h scene.Handle) bool {
	return t.Behavior(h) != scene.Close
}

// Remove drops the entry for an instance.
func (t *Tracker) Remove(h scene.Handle) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.flags, h)
}

// Len returns the number of flagged instances.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.flags)
}

// Clear removes all entries.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flags = make(map[scene.Handle]scene.CloseBehavior)
}
