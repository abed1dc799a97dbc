package orchestrator_test

import (
	"errors"
	"testing"

	"github.com/AaronLay10/SentientScenes/internal/orchestrator"
)

func TestDispatchCommands(t *testing.T) {
	f := newFixture(t)
	g := f.collection(t, "g", "x", "y")

	op, err := f.engine.Dispatch(orchestrator.Command{Op: orchestrator.CmdOpen, Scenes: []string{"a"}, Source: "test"})
	if err != nil {
		t.Fatalf("dispatch open: %v", err)
	}
	wait(t, op)
	if !f.backend.IsLoaded("a") {
		t.Error("expected a loaded")
	}

	op, err = f.engine.Dispatch(orchestrator.Command{Op: orchestrator.CmdOpenCollection, Collection: g.ID})
	if err != nil {
		t.Fatalf("dispatch open_collection: %v", err)
	}
	wait(t, op)
	if f.engine.ActiveCollection() != g {
		t.Error("expected g active")
	}

	op, err = f.engine.Dispatch(orchestrator.Command{Op: orchestrator.CmdClose, Scenes: []string{"a"}, Force: true})
	if err != nil {
		t.Fatalf("dispatch close: %v", err)
	}
	if res := wait(t, op); !equalStrings(res.Closed, []string{"a"}) {
		t.Errorf("expected a closed, got %+v", res)
	}

	if !f.hasEvent("command.received") {
		t.Error("expected command.received")
	}
}

func TestDispatchRejects(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name string
		cmd  orchestrator.Command
		want error
	}{
		{"unknown op", orchestrator.Command{Op: "explode"}, orchestrator.ErrUnknownCommand},
		{"unknown scene", orchestrator.Command{Op: orchestrator.CmdOpen, Scenes: []string{"nope"}}, orchestrator.ErrUnknownScene},
		{"no scenes", orchestrator.Command{Op: orchestrator.CmdOpen}, orchestrator.ErrInvalidRequest},
		{"unknown collection", orchestrator.Command{Op: orchestrator.CmdOpenCollection, Collection: "nope"}, orchestrator.ErrUnknownCollection},
		{"unknown operation", orchestrator.Command{Op: orchestrator.CmdCancel, ID: "nope"}, orchestrator.ErrUnknownOperation},
		{"nothing preloaded", orchestrator.Command{Op: orchestrator.CmdFinishPreload}, orchestrator.ErrNoPreload},
		{"not in build", orchestrator.Command{Op: orchestrator.CmdOpen, Scenes: []string{"hidden"}}, orchestrator.ErrNotInBuild},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.engine.Dispatch(tt.cmd); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if !f.hasEvent("command.rejected") {
		t.Error("expected command.rejected")
	}
}

func TestDispatchCancel(t *testing.T) {
	f := newFixture(t)
	started, release := f.backend.Hold("a")
	defer release()

	op, err := f.engine.Dispatch(orchestrator.Command{Op: orchestrator.CmdOpen, Scenes: []string{"a"}})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	<-started
	if _, err := f.engine.Dispatch(orchestrator.Command{Op: orchestrator.CmdCancel, ID: op.ID()}); err != nil {
		t.Fatalf("dispatch cancel: %v", err)
	}
	if res := wait(t, op); !res.Cancelled {
		t.Errorf("expected cancelled, got %+v", res)
	}
}
