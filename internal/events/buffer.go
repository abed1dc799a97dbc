package events

import (
	"strings"
	"sync"
)

// Ring is a fixed-capacity buffer that overwrites its oldest entry.
type Ring[T any] struct {
	mu    sync.RWMutex
	items []T
	next  int
	count int
}

// NewRing creates a ring holding up to capacity items (at least one).
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

// Add stores v, dropping the oldest item when full.
func (r *Ring[T]) Add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items[r.next] = v
	r.next = (r.next + 1) % len(r.items)
	if r.count < len(r.items) {
		r.count++
	}
}

// Last returns up to n items, oldest first. n <= 0 returns everything.
func (r *Ring[T]) Last(n int) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if n <= 0 || n > r.count {
		n = r.count
	}
	out := make([]T, 0, n)
	start := (r.next - n + len(r.items)) % len(r.items)
	for i := 0; i < n; i++ {
		out = append(out, r.items[(start+i)%len(r.items)])
	}
	return out
}

// Len returns the number of stored items.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Reset empties the ring.
func (r *Ring[T]) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.next = 0
	r.count = 0
}

// Filter selects events by name prefix, e.g. "scene." or "operation.".
// An empty filter matches everything.
type Filter []string

// ParseFilter splits a comma separated prefix list.
func ParseFilter(s string) Filter {
	var f Filter
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			f = append(f, p)
		}
	}
	return f
}

// Match reports whether the event passes the filter.
func (f Filter) Match(e Event) bool {
	if len(f) == 0 {
		return true
	}
	for _, p := range f {
		if strings.HasPrefix(e.Name, p) {
			return true
		}
	}
	return false
}

// Apply returns the events that pass the filter.
func (f Filter) Apply(list []Event) []Event {
	if len(f) == 0 {
		return list
	}
	out := make([]Event, 0, len(list))
	for _, e := range list {
		if f.Match(e) {
			out = append(out, e)
		}
	}
	return out
}
