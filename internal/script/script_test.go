package script

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestRunExposesEnvironment(t *testing.T) {
	a, err := Compile("greet", `
		local ids = opened()
		log(operation_id .. " " .. collection_id .. " " .. phase .. " " .. #ids .. " " .. ids[1])
		if is_cancelled() then error("cancelled") end
	`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	var logged []string
	err = a.Run(context.Background(), Env{
		OperationID:  "op-1",
		CollectionID: "lobby",
		Phase:        "custom_actions",
		IsCancelled:  func() bool { return false },
		Opened:       func() []string { return []string{"hall", "stairs"} },
		Log:          func(msg string) { logged = append(logged, msg) },
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(logged) != 1 || logged[0] != "op-1 lobby custom_actions 2 hall" {
		t.Errorf("unexpected log output %v", logged)
	}
}

func TestRunReturnsLuaErrors(t *testing.T) {
	a, err := Compile("fails", `error("no power")`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	err = a.Run(context.Background(), Env{})
	if err == nil || !strings.Contains(err.Error(), "no power") {
		t.Errorf("expected lua error, got %v", err)
	}
}

func TestCompileRejectsSyntaxErrors(t *testing.T) {
	if _, err := Compile("broken", `if then end`); err == nil {
		t.Error("expected syntax error")
	}
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	a, err := Compile("spin", `while true do end`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := a.Run(ctx, Env{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPollingScriptSeesCancellation(t *testing.T) {
	a, err := Compile("poll", `
		while not is_cancelled() do end
		log("saw cancel")
	`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	var cancelled atomic.Bool
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancelled.Store(true)
	}()

	var logged []string
	err = a.Run(context.Background(), Env{
		IsCancelled: cancelled.Load,
		Log:         func(msg string) { logged = append(logged, msg) },
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(logged) != 1 || logged[0] != "saw cancel" {
		t.Errorf("expected the script to finish after cancellation, got %v", logged)
	}
}
