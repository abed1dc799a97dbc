package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/SentientScenes/internal/config"
	"github.com/AaronLay10/SentientScenes/internal/events"
)

func dialEvents(t *testing.T, env *testEnv) (*websocket.Conn, func()) {
	t.Helper()
	server := httptest.NewServer(env.server.Handler())
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		server.Close()
		t.Fatalf("failed to connect: %v", err)
	}
	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var e events.Event
	if err := json.Unmarshal(msg, &e); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}
	return e
}

func TestWebSocketReceivesRecentEvents(t *testing.T) {
	env := newTestEnv(t, config.Credentials{})
	for i := 0; i < 5; i++ {
		if _, err := env.journal.Emit("info", "queue.empty", "", map[string]interface{}{"i": i}); err != nil {
			t.Fatalf("emit: %v", err)
		}
	}

	conn, closeAll := dialEvents(t, env)
	defer closeAll()

	for i := 0; i < 5; i++ {
		if e := readEvent(t, conn); e.Name != "queue.empty" {
			t.Errorf("expected 'queue.empty', got '%s'", e.Name)
		}
	}
}

func TestWebSocketReceivesNewEvents(t *testing.T) {
	env := newTestEnv(t, config.Credentials{})
	conn, closeAll := dialEvents(t, env)
	defer closeAll()

	waitFor(t, 2*time.Second, func() bool { return env.journal.SubscriberCount() == 1 }, "subscriber to register")
	if _, err := env.journal.Emit("info", "scene.opened", "", map[string]interface{}{"scene_id": "lobby"}); err != nil {
		t.Fatalf("emit: %v", err)
	}

	e := readEvent(t, conn)
	if e.Name != "scene.opened" {
		t.Errorf("expected 'scene.opened', got '%s'", e.Name)
	}
	if e.Fields["scene_id"] != "lobby" {
		t.Errorf("expected scene_id 'lobby', got '%v'", e.Fields["scene_id"])
	}
}

func TestWebSocketDisconnectCleansUp(t *testing.T) {
	env := newTestEnv(t, config.Credentials{})
	conn, closeAll := dialEvents(t, env)

	waitFor(t, 2*time.Second, func() bool { return env.journal.SubscriberCount() == 1 }, "subscriber to register")
	conn.Close()

	waitFor(t, 5*time.Second, func() bool {
		return env.journal.SubscriberCount() == 0
	}, "subscriber count to return to 0 after close")
	closeAll()
}

func TestWebSocketRequiresAuth(t *testing.T) {
	env := newTestEnv(t, testCreds)
	server := httptest.NewServer(env.server.Handler())
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("expected dial to fail without credentials")
	}
	if resp == nil || resp.StatusCode != 401 {
		t.Errorf("expected 401, got %v", resp)
	}
}

func TestWebSocketPrefixFilter(t *testing.T) {
	env := newTestEnv(t, config.Credentials{})
	if _, err := env.journal.Emit("info", "queue.empty", "", nil); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if _, err := env.journal.Emit("info", "scene.closed", "", nil); err != nil {
		t.Fatalf("emit: %v", err)
	}

	server := httptest.NewServer(env.server.Handler())
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events?prefix=scene."
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	if e := readEvent(t, conn); e.Name != "scene.closed" {
		t.Fatalf("expected recent 'scene.closed', got '%s'", e.Name)
	}

	waitFor(t, 2*time.Second, func() bool { return env.journal.SubscriberCount() == 1 }, "subscriber to register")
	_, _ = env.journal.Emit("info", "operation.queued", "", nil)
	_, _ = env.journal.Emit("info", "scene.opened", "", nil)
	if e := readEvent(t, conn); e.Name != "scene.opened" {
		t.Errorf("expected filtered 'scene.opened', got '%s'", e.Name)
	}
}
