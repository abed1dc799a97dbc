package orchestrator_test

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/AaronLay10/SentientScenes/internal/orchestrator"
	"github.com/AaronLay10/SentientScenes/internal/scene"
	"github.com/AaronLay10/SentientScenes/internal/script"
)

func TestCollectionScriptsRunAsCustomActions(t *testing.T) {
	f := newFixture(t, func(o *orchestrator.Options) { o.Scripts = script.NewCompiler(nil) })
	g := f.collection(t, "g", "x")
	g.Scripts = []scene.Script{
		{Name: "check", Source: `if #opened() ~= 1 then error("expected x opened") end`},
		{Name: "broken", Source: `error("fuse blown")`},
	}

	res := wait(t, mustSubmit(t)(f.engine.OpenCollection(g, false)))
	if !equalStrings(res.Failed, []string{"broken"}) {
		t.Errorf("expected only broken to fail, got %v", res.Failed)
	}
}

func TestCollectionScriptsNeedCompiler(t *testing.T) {
	f := newFixture(t)
	g := f.collection(t, "g", "x")
	g.Scripts = []scene.Script{{Name: "s", Source: `log("hi")`}}
	if _, err := f.engine.OpenCollection(g, false); !errors.Is(err, orchestrator.ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest, got %v", err)
	}
}

func TestRunningScriptOutlivesCancel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	f := newFixture(t, func(o *orchestrator.Options) { o.Scripts = script.NewCompiler(zap.New(core)) })
	g := f.collection(t, "g", "x")
	g.Scripts = []scene.Script{{Name: "poll", Source: `
		log("polling")
		while not is_cancelled() do end
		log("saw cancel")
	`}}

	op := mustSubmit(t)(f.engine.OpenCollection(g, false))
	eventually(t, "script start", func() bool {
		return logs.FilterMessage("polling").Len() == 1
	})
	op.Cancel()

	res := wait(t, op)
	if !res.Cancelled {
		t.Error("expected cancelled result")
	}
	if len(res.Failed) != 0 {
		t.Errorf("a script finishing after cancel is not a failure, got %v", res.Failed)
	}
	if logs.FilterMessage("saw cancel").Len() != 1 {
		t.Error("script should run to completion")
	}
	if f.hasEvent("action.failed") {
		t.Error("unexpected action.failed event")
	}
}
