package orchestrator

import (
	"errors"
	"fmt"

	"github.com/AaronLay10/SentientScenes/internal/scene"
)

var (
	ErrUnknownCommand    = errors.New("unknown command")
	ErrUnknownScene      = errors.New("unknown scene")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrUnknownOperation  = errors.New("unknown operation")
)

// Command ops.
const (
	CmdOpen             = "open"
	CmdClose            = "close"
	CmdReopen           = "reopen"
	CmdOpenCollection   = "open_collection"
	CmdCloseCollection  = "close_collection"
	CmdToggleCollection = "toggle_collection"
	CmdCloseAll         = "close_all"
	CmdPreload          = "preload"
	CmdFinishPreload    = "finish_preload"
	CmdDiscardPreload   = "discard_preload"
	CmdCancel           = "cancel"
)

// Command is a remote request, received over MQTT or HTTP.
type Command struct {
	Op         string   `json:"op"`
	Scenes     []string `json:"scenes,omitempty"`
	Collection string   `json:"collection,omitempty"`
	Force      bool     `json:"force,omitempty"`
	OpenAll    bool     `json:"open_all,omitempty"`
	ID         string   `json:"id,omitempty"`
	Source     string   `json:"-"`
}

// Dispatch executes a command against the engine. Scene and collection IDs are
// resolved through the engine's metadata.
func (e *Engine) Dispatch(cmd Command) (*Operation, error) {
	op, err := e.dispatch(cmd)
	fields := map[string]interface{}{
		"op":     cmd.Op,
		"source": cmd.Source,
	}
	if err != nil {
		e.emit("warn", "command.rejected", err.Error(), fields)
		return nil, err
	}
	if op != nil {
		fields["operation_id"] = op.ID()
	}
	e.emit("info", "command.received", "", fields)
	return op, nil
}

func (e *Engine) dispatch(cmd Command) (*Operation, error) {
	switch cmd.Op {
	case CmdOpen, CmdClose, CmdReopen, CmdPreload:
		scenes, err := e.lookupScenes(cmd.Scenes)
		if err != nil {
			return nil, err
		}
		return e.dispatchScenes(cmd, scenes)
	case CmdOpenCollection, CmdCloseCollection, CmdToggleCollection:
		c, err := e.lookupCollection(cmd.Collection)
		if err != nil {
			return nil, err
		}
		switch cmd.Op {
		case CmdOpenCollection:
			return e.OpenCollection(c, cmd.OpenAll)
		case CmdCloseCollection:
			return e.CloseCollection(c)
		default:
			return e.ToggleCollection(c, cmd.OpenAll)
		}
	case CmdCloseAll:
		return e.CloseAll(!cmd.Force)
	case CmdFinishPreload:
		return e.FinishPreload()
	case CmdDiscardPreload:
		return e.DiscardPreload()
	case CmdCancel:
		op, ok := e.FindOperation(cmd.ID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, cmd.ID)
		}
		op.Cancel()
		return op, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, cmd.Op)
}

func (e *Engine) dispatchScenes(cmd Command, scenes []*scene.Scene) (*Operation, error) {
	switch cmd.Op {
	case CmdPreload:
		if len(scenes) != 1 {
			return nil, fmt.Errorf("%w: preload takes exactly one scene", ErrInvalidRequest)
		}
		return e.Preload(scenes[0])
	case CmdClose:
		if cmd.Force {
			return e.Operation().Label("close scene").CloseForced(scenes...).Submit()
		}
		return e.CloseScene(scenes...)
	case CmdReopen:
		if cmd.Force {
			return e.Operation().Label("reopen scene").ReopenForced(scenes...).Submit()
		}
		return e.ReopenScene(scenes...)
	}
	if cmd.Force {
		return e.Operation().Label("open scene").OpenForced(scenes...).Submit()
	}
	return e.OpenScene(scenes...)
}

func (e *Engine) lookupScenes(ids []string) ([]*scene.Scene, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no scenes given", ErrInvalidRequest)
	}
	if e.metadata == nil {
		return nil, fmt.Errorf("%w: no metadata configured", ErrUnknownScene)
	}
	out := make([]*scene.Scene, 0, len(ids))
	for _, id := range ids {
		s := e.metadata.Scene(id)
		if s == nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownScene, id)
		}
		out = append(out, s)
	}
	return out, nil
}

func (e *Engine) lookupCollection(id string) (*scene.Collection, error) {
	if e.metadata == nil {
		return nil, fmt.Errorf("%w: no metadata configured", ErrUnknownCollection)
	}
	c := e.metadata.Collection(id)
	if c == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCollection, id)
	}
	return c, nil
}
