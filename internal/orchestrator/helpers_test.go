package orchestrator_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/AaronLay10/SentientScenes/internal/backend/memory"
	"github.com/AaronLay10/SentientScenes/internal/events"
	"github.com/AaronLay10/SentientScenes/internal/orchestrator"
	"github.com/AaronLay10/SentientScenes/internal/scene"
)

type fixture struct {
	engine  *orchestrator.Engine
	backend *memory.Backend
	catalog *scene.Catalog
	journal *events.Journal
	scenes  map[string]*scene.Scene
}

func (f *fixture) scene(id string) *scene.Scene {
	return f.scenes[id]
}

// collection builds and registers a collection from scene IDs.
func (f *fixture) collection(t *testing.T, id string, ids ...string) *scene.Collection {
	t.Helper()
	c := &scene.Collection{ID: id, Name: id}
	for _, sid := range ids {
		c.Tags = append(c.Tags, scene.SceneTag{Scene: f.scene(sid), Open: scene.OpenNormally, Close: scene.Close})
	}
	if err := f.catalog.AddCollection(c); err != nil {
		t.Fatalf("add collection: %v", err)
	}
	return c
}

func newFixture(t *testing.T, mutate ...func(*orchestrator.Options)) *fixture {
	t.Helper()
	f := &fixture{
		backend: memory.New(memory.Options{Steps: 2}),
		catalog: scene.NewCatalog(),
		journal: events.NewJournal(1024),
		scenes:  make(map[string]*scene.Scene),
	}
	for _, id := range []string{"a", "b", "c", "p", "q", "x", "y", "z", "boot"} {
		f.scenes[id] = &scene.Scene{ID: id, Path: "scenes/" + id}
	}
	f.scenes["loading"] = &scene.Scene{ID: "loading", Path: "scenes/loading", IsLoadingScreen: true}
	f.scenes["hidden"] = &scene.Scene{ID: "hidden", Path: "scenes/hidden"}
	for id, s := range f.scenes {
		if err := f.catalog.AddScene(s, id != "hidden"); err != nil {
			t.Fatalf("add scene: %v", err)
		}
	}

	opts := orchestrator.Options{
		Backend:      f.backend,
		Metadata:     f.catalog,
		Journal:      f.journal,
		DefaultScene: "boot",
	}
	for _, m := range mutate {
		m(&opts)
	}
	e, err := orchestrator.New(opts)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	f.engine = e
	return f
}

func wait(t *testing.T, op *orchestrator.Operation) orchestrator.Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := op.Wait(ctx)
	if err != nil && err != orchestrator.ErrCancelled {
		t.Fatalf("wait %s: %v", op.Label(), err)
	}
	return res
}

// mustSubmit fails the test when a submit call returns an error:
//
//	op := mustSubmit(t)(f.engine.OpenScene(a))
func mustSubmit(t *testing.T) func(*orchestrator.Operation, error) *orchestrator.Operation {
	return func(op *orchestrator.Operation, err error) *orchestrator.Operation {
		t.Helper()
		if err != nil {
			t.Fatalf("submit: %v", err)
		}
		return op
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func (f *fixture) eventNames() []string {
	var out []string
	for _, e := range f.journal.Snapshot() {
		out = append(out, e.Name)
	}
	return out
}

func (f *fixture) hasEvent(name string) bool {
	for _, n := range f.eventNames() {
		if n == name {
			return true
		}
	}
	return false
}

// recorder collects strings from concurrent callbacks.
type recorder struct {
	mu    sync.Mutex
	items []string
}

func (r *recorder) add(s string) {
	r.mu.Lock()
	r.items = append(r.items, s)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.items...)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
