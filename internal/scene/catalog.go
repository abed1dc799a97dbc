package scene

import (
	"fmt"
	"sync"
)

// Catalog is the registry of known scenes and collections.
// It answers the metadata questions the engine asks about a scene.
type Catalog struct {
	mu          sync.RWMutex
	scenes      map[string]*Scene
	collections []*Collection
	excluded    map[string]bool
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		scenes:   make(map[string]*Scene),
		excluded: make(map[string]bool),
	}
}

// AddScene registers a scene. inBuild=false marks it as excluded from the build.
func (c *Catalog) AddScene(s *Scene, inBuild bool) error {
	if s == nil || s.ID == "" {
		return fmt.Errorf("scene id is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.scenes[s.ID]; ok {
		return fmt.Errorf("duplicate scene: %s", s.ID)
	}
	c.scenes[s.ID] = s
	if !inBuild {
		c.excluded[s.ID] = true
	}
	return nil
}

// AddCollection registers a collection. All its scenes must already be registered.
func (c *Catalog) AddCollection(col *Collection) error {
	if col == nil || col.ID == "" {
		return fmt.Errorf("collection id is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.collections {
		if existing.ID == col.ID {
			return fmt.Errorf("duplicate collection: %s", col.ID)
		}
	}
	for _, t := range col.Tags {
		if t.Scene == nil {
			return fmt.Errorf("collection %s: nil scene tag", col.ID)
		}
		if _, ok := c.scenes[t.Scene.ID]; !ok {
			return fmt.Errorf("collection %s: unknown scene %s", col.ID, t.Scene.ID)
		}
	}
	c.collections = append(c.collections, col)
	return nil
}

// Scene returns a scene by id, or nil if not found.
func (c *Catalog) Scene(id string) *Scene {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.scenes[id]
}

// Collection returns a collection by id, or nil if not found.
func (c *Catalog) Collection(id string) *Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, col := range c.collections {
		if col.ID == id {
			return col
		}
	}
	return nil
}

// Collections returns all collections in registration order.
func (c *Catalog) Collections() []*Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]*Collection{}, c.collections...)
}

// Scenes returns all registered scenes.
func (c *Catalog) Scenes() []*Scene {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Scene, 0, len(c.scenes))
	for _, s := range c.scenes {
		out = append(out, s)
	}
	return out
}

// ResolveCollection returns the first collection containing the scene, or nil.
func (c *Catalog) ResolveCollection(s *Scene) *Collection {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, col := range c.collections {
		if col.Contains(s) {
			return col
		}
	}
	return nil
}

// IsIncludedInBuild returns false for unknown scenes and scenes marked out of build.
func (c *Catalog) IsIncludedInBuild(s *Scene) bool {
	if s == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if _, ok := c.scenes[s.ID]; !ok {
		return false
	}
	return !c.excluded[s.ID]
}
