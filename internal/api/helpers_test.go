package api

import (
	"testing"
	"time"

	"github.com/AaronLay10/SentientScenes/internal/backend/memory"
	"github.com/AaronLay10/SentientScenes/internal/config"
	"github.com/AaronLay10/SentientScenes/internal/events"
	"github.com/AaronLay10/SentientScenes/internal/orchestrator"
	"github.com/AaronLay10/SentientScenes/internal/scene"
)

type testEnv struct {
	server  *Server
	engine  *orchestrator.Engine
	catalog *scene.Catalog
	journal *events.Journal
	backend *memory.Backend
}

func newTestEnv(t *testing.T, creds config.Credentials) *testEnv {
	t.Helper()
	cat := scene.NewCatalog()
	for _, id := range []string{"lobby", "hall", "vault"} {
		if err := cat.AddScene(&scene.Scene{ID: id, Path: "scenes/" + id}, id != "vault"); err != nil {
			t.Fatalf("add scene: %v", err)
		}
	}
	ground := &scene.Collection{ID: "ground", Name: "Ground floor", Tags: []scene.SceneTag{
		{Scene: cat.Scene("lobby"), Open: scene.OpenNormally, Close: scene.Close},
		{Scene: cat.Scene("hall"), Open: scene.OpenNormally, Close: scene.Close},
	}}
	if err := cat.AddCollection(ground); err != nil {
		t.Fatalf("add collection: %v", err)
	}

	journal := events.NewJournal(256)
	backend := memory.New(memory.Options{Steps: 1})
	engine, err := orchestrator.New(orchestrator.Options{
		Backend:  backend,
		Metadata: cat,
		Journal:  journal,
	})
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	srv := New(Options{
		Engine:      engine,
		Catalog:     cat,
		Journal:     journal,
		Credentials: creds,
		EngineID:    "test",
	})
	return &testEnv{server: srv, engine: engine, catalog: cat, journal: journal, backend: backend}
}

// waitFor polls a condition until it returns true or timeout expires.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timeout waiting for: %s", msg)
}
