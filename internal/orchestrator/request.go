package orchestrator

import (
	"sort"
	"strconv"
	"strings"

	"github.com/AaronLay10/SentientScenes/internal/scene"
)

// SceneRequest is a scene to open or close, with its force flag.
type SceneRequest struct {
	Scene *scene.Scene
	Force bool
}

// Request is the immutable snapshot an operation executes. It is produced by
// Builder.Submit and never changes afterwards.
type Request struct {
	Label string

	Open   []SceneRequest
	Close  []SceneRequest
	Reopen []SceneRequest

	// Collection is the collection the operation opens scenes for. It is also the
	// "next collection" persistence rules are evaluated against.
	Collection *scene.Collection

	// Closing is set when the operation closes a collection.
	Closing *scene.Collection

	LoadingScreen   *scene.Scene
	NoLoadingScreen bool

	Actions   []CustomAction
	Callbacks []Callback

	Priority     LoadPriority
	UnloadUnused bool
	Preload      bool
	ActiveScene  *scene.Scene

	// Persistence, when set, is attached to every scene the operation opens,
	// overriding the collection's tags.
	Persistence scene.CloseBehavior

	onCancel []func(*Operation)
	then     []func(Result)

	bypass   bool
	activate *scene.Scene
}

// IsEmpty returns true if the request neither touches scenes nor runs custom
// code nor changes the active collection.
func (r *Request) IsEmpty() bool {
	return len(r.Open) == 0 && len(r.Close) == 0 && len(r.Reopen) == 0 &&
		len(r.Actions) == 0 && r.Collection == nil && r.Closing == nil && r.activate == nil
}

// Key is the structural identity used for duplicate detection: the open,
// close and reopen sets including force flags, order-insensitive.
func (r *Request) Key() string {
	var b strings.Builder
	for _, part := range []struct {
		tag  string
		reqs []SceneRequest
	}{{"o", r.Open}, {"c", r.Close}, {"r", r.Reopen}} {
		ids := make([]string, 0, len(part.reqs))
		for _, sr := range part.reqs {
			ids = append(ids, sr.Scene.ID+"#"+strconv.FormatBool(sr.Force))
		}
		sort.Strings(ids)
		b.WriteString(part.tag)
		b.WriteByte('[')
		b.WriteString(strings.Join(ids, ","))
		b.WriteByte(']')
	}
	return b.String()
}

func (r *Request) openScenes() []*scene.Scene {
	out := make([]*scene.Scene, 0, len(r.Open)+len(r.Reopen))
	for _, sr := range r.Open {
		out = append(out, sr.Scene)
	}
	for _, sr := range r.Reopen {
		out = append(out, sr.Scene)
	}
	return out
}
