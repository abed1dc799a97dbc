package scene

// Scene is a loadable content unit.
type Scene struct {
	ID              string `json:"id"`
	Path            string `json:"path"`
	IsLoadingScreen bool   `json:"loading_screen,omitempty"`
	IsSplashScreen  bool   `json:"splash_screen,omitempty"`
	IsLocked        bool   `json:"locked,omitempty"`
}

func (s *Scene) String() string {
	if s == nil {
		return "<nil scene>"
	}
	return s.ID
}

// SceneTag holds the per-collection open/close behavior of one scene.
type SceneTag struct {
	Scene *Scene
	Open  OpenBehavior
	Close CloseBehavior
}

// Collection is a named, ordered set of scenes.
type Collection struct {
	ID            string
	Name          string
	Tags          []SceneTag
	ActiveScene   *Scene
	LoadingScreen *Scene
	UnloadUnused  bool

	// Scripts are custom action sources run after the collection's scenes open.
	Scripts []Script
}

// Script is a named custom action source attached to a collection.
type Script struct {
	Name   string
	Source string
}

func (c *Collection) String() string {
	if c == nil {
		return "<no collection>"
	}
	return c.ID
}

// Contains returns true if the scene is part of the collection.
func (c *Collection) Contains(s *Scene) bool {
	if c == nil || s == nil {
		return false
	}
	for _, t := range c.Tags {
		if t.Scene.ID == s.ID {
			return true
		}
	}
	return false
}

// Tag returns the tag for a scene. Scenes not in the collection get the zero-behavior tag.
func (c *Collection) Tag(s *Scene) SceneTag {
	if c != nil && s != nil {
		for _, t := range c.Tags {
			if t.Scene.ID == s.ID {
				return t
			}
		}
	}
	return SceneTag{Scene: s, Open: OpenNormally, Close: Close}
}

// Scenes returns the collection's scenes in order.
func (c *Collection) Scenes() []*Scene {
	if c == nil {
		return nil
	}
	out := make([]*Scene, 0, len(c.Tags))
	for _, t := range c.Tags {
		out = append(out, t.Scene)
	}
	return out
}

// First returns the first scene of the collection, or nil if it is empty.
func (c *Collection) First() *Scene {
	if c == nil || len(c.Tags) == 0 {
		return nil
	}
	return c.Tags[0].Scene
}
