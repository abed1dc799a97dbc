// Package script runs collection custom actions written in Lua.
package script

import (
	"context"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
	"go.uber.org/zap"

	"github.com/AaronLay10/SentientScenes/internal/orchestrator"
	"github.com/AaronLay10/SentientScenes/internal/scene"
)

// Env is what a script can see of the running operation.
type Env struct {
	OperationID  string
	CollectionID string
	Phase        string
	IsCancelled  func() bool
	Opened       func() []string
	Log          func(msg string)
}

// Action is a compiled script. It is safe to run concurrently; every run gets
// its own VM.
type Action struct {
	name  string
	proto *lua.FunctionProto
}

// Compile parses source once.
func Compile(name, source string) (*Action, error) {
	chunk, err := parse.Parse(strings.NewReader(source), name)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	proto, err := lua.Compile(chunk, name)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	return &Action{name: name, proto: proto}, nil
}

// Name returns the script name.
func (a *Action) Name() string { return a.name }

// Run executes the script in a fresh VM bound to ctx. Lua errors are
// returned; a run stopped by ctx wraps ctx.Err().
func (a *Action) Run(ctx context.Context, env Env) error {
	L := lua.NewState()
	defer L.Close()
	L.SetContext(ctx)

	L.SetGlobal("API_VERSION", lua.LNumber(1))
	L.SetGlobal("operation_id", lua.LString(env.OperationID))
	L.SetGlobal("collection_id", lua.LString(env.CollectionID))
	L.SetGlobal("phase", lua.LString(env.Phase))
	L.SetGlobal("is_cancelled", L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(env.IsCancelled != nil && env.IsCancelled()))
		return 1
	}))
	L.SetGlobal("log", L.NewFunction(func(L *lua.LState) int {
		msg := L.CheckString(1)
		if env.Log != nil {
			env.Log(msg)
		}
		return 0
	}))
	L.SetGlobal("opened", L.NewFunction(func(L *lua.LState) int {
		t := L.NewTable()
		if env.Opened != nil {
			for _, id := range env.Opened() {
				t.Append(lua.LString(id))
			}
		}
		L.Push(t)
		return 1
	}))

	L.Push(L.NewFunctionFromProto(a.proto))
	if err := L.PCall(0, lua.MultRet, nil); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("script %s: %w", a.name, ctxErr)
		}
		return fmt.Errorf("script %s: %w", a.name, err)
	}
	return nil
}

// Compiler turns collection scripts into engine custom actions.
type Compiler struct {
	log *zap.Logger
}

// NewCompiler creates a compiler. A nil logger discards script output.
func NewCompiler(log *zap.Logger) *Compiler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Compiler{log: log}
}

// Compile implements orchestrator.ScriptCompiler.
func (c *Compiler) Compile(col *scene.Collection, s scene.Script) (orchestrator.ActionFunc, error) {
	action, err := Compile(s.Name, s.Source)
	if err != nil {
		return nil, err
	}
	collectionID := ""
	if col != nil {
		collectionID = col.ID
	}
	log := c.log.With(zap.String("script", s.Name), zap.String("collection", collectionID))

	return func(ctx context.Context, op *orchestrator.Operation) error {
		return action.Run(ctx, Env{
			OperationID:  op.ID(),
			CollectionID: collectionID,
			Phase:        op.Phase().String(),
			IsCancelled:  op.Cancelled,
			Opened: func() []string {
				res, _ := op.Result()
				return res.Opened
			},
			Log: func(msg string) {
				log.Info(msg, zap.String("operation", op.ID()))
			},
		})
	}, nil
}
