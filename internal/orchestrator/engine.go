package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/AaronLay10/SentientScenes/internal/events"
	"github.com/AaronLay10/SentientScenes/internal/persistence"
	"github.com/AaronLay10/SentientScenes/internal/queue"
	"github.com/AaronLay10/SentientScenes/internal/scene"
	"github.com/AaronLay10/SentientScenes/internal/tracking"
)

// ScriptCompiler turns collection scripts into custom actions.
type ScriptCompiler interface {
	Compile(c *scene.Collection, s scene.Script) (ActionFunc, error)
}

// Options configures an Engine.
type Options struct {
	Backend  Backend
	Metadata Metadata
	Scripts  ScriptCompiler
	Logger   *zap.Logger
	Journal  *events.Journal

	// DefaultScene is never closed by the engine.
	DefaultScene string

	// DisableDuplicateCheck lets structurally identical operations queue twice.
	DisableDuplicateCheck bool

	DefaultPriority LoadPriority

	// UnloadUnused reclaims unused resources after every operation.
	UnloadUnused bool

	// Context bounds every operation. Defaults to context.Background().
	Context context.Context
}

// Engine serializes scene operations and owns the tracking state.
type Engine struct {
	backend         Backend
	metadata        Metadata
	scripts         ScriptCompiler
	log             *zap.Logger
	journal         *events.Journal
	defaultScene    string
	checkDuplicates bool
	defaultPriority LoadPriority
	unloadUnused    bool
	ctx             context.Context

	// submitMu makes the duplicate check, the preload check and Enqueue one step.
	submitMu sync.Mutex

	queue       *queue.Queue[*Operation]
	registry    *tracking.Registry
	persistence *persistence.Tracker
	globals     callbackRegistry
	hooks       hookRegistry
	done        *Operation

	mu          sync.Mutex
	transient   map[string]scene.State
	preloaded   *scene.Scene
	activeScene string
	priority    LoadPriority
}

// New creates an engine.
func New(opts Options) (*Engine, error) {
	if opts.Backend == nil {
		return nil, errors.New("orchestrator: backend is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.DefaultPriority == "" {
		opts.DefaultPriority = PriorityNormal
	}

	e := &Engine{
		backend:         opts.Backend,
		metadata:        opts.Metadata,
		scripts:         opts.Scripts,
		log:             opts.Logger,
		journal:         opts.Journal,
		defaultScene:    opts.DefaultScene,
		checkDuplicates: !opts.DisableDuplicateCheck,
		defaultPriority: opts.DefaultPriority,
		unloadUnused:    opts.UnloadUnused,
		ctx:             opts.Context,
		queue:           queue.New[*Operation](),
		registry:        tracking.NewRegistry(),
		persistence:     persistence.NewTracker(),
		transient:       make(map[string]scene.State),
		priority:        opts.DefaultPriority,
	}
	e.done = e.finishedOperation(&Request{Label: "done"}, Result{})
	e.queue.OnEmpty(e.onQueueEmpty)
	return e, nil
}

// AlreadyDone returns the precomputed completed operation returned for empty requests.
func (e *Engine) AlreadyDone() *Operation {
	return e.done
}

func (e *Engine) resolver() *Resolver {
	return &Resolver{
		Registry:     e.registry,
		Persistence:  e.persistence,
		IsLoaded:     e.backend.IsLoaded,
		DefaultScene: e.defaultScene,
	}
}

// Resolve returns the plan req would execute against the current state.
func (e *Engine) Resolve(req *Request) Plan {
	return e.resolver().Resolve(req)
}

func (e *Engine) emit(level, name, msg string, fields map[string]interface{}) {
	if _, err := e.journal.Emit(level, name, msg, fields); err != nil {
		e.log.Warn("failed to record event", zap.String("event", name), zap.Error(err))
	}
}

// submit queues a validated request.
func (e *Engine) submit(req *Request) (*Operation, error) {
	if req.IsEmpty() {
		for _, fn := range req.then {
			fn(Result{})
		}
		return e.done, nil
	}

	op, halted, err := e.enqueue(req)
	if err != nil {
		return nil, err
	}
	if halted {
		op.runThen(Result{Halted: true})
	}
	return op, nil
}

// enqueue runs the duplicate check, the preload check and Enqueue under
// submitMu. A halted duplicate is returned already finished.
func (e *Engine) enqueue(req *Request) (*Operation, bool, error) {
	e.submitMu.Lock()
	defer e.submitMu.Unlock()

	if e.checkDuplicates && !req.bypass {
		if dup := e.findDuplicate(req); dup != nil {
			e.log.Warn("duplicate scene operation halted",
				zap.String("duplicate_of", dup.id),
				zap.String("label", req.Label))
			op := e.finishedOperation(req, Result{Halted: true})
			e.emit("warn", "operation.halted", "duplicate of a queued operation", map[string]interface{}{
				"operation_id": op.id,
				"duplicate_of": dup.id,
			})
			return op, true, nil
		}
	}

	op := e.newOperation(req, nil, false)
	if !op.CanQueue() {
		return nil, false, e.reject(op, queue.ErrCannotQueue)
	}
	e.emit("info", "operation.queued", req.Label, op.fields())
	if _, err := e.queue.Enqueue(op, req.bypass); err != nil {
		return nil, false, e.reject(op, err)
	}
	return op, false, nil
}

func (e *Engine) reject(op *Operation, err error) error {
	op.cancel()
	if errors.Is(err, queue.ErrCannotQueue) {
		err = fmt.Errorf("%w: %w", ErrPreloadPending, err)
	}
	e.emit("warn", "operation.rejected", err.Error(), op.fields())
	e.log.Warn("scene operation rejected", zap.String("label", op.req.Label), zap.Error(err))
	return err
}

// findDuplicate returns a queued or running top-level operation with the same
// scene sets. Requests without scenes are never duplicates.
func (e *Engine) findDuplicate(req *Request) *Operation {
	if len(req.Open) == 0 && len(req.Close) == 0 && len(req.Reopen) == 0 {
		return nil
	}
	key := req.Key()
	for _, list := range [][]*Operation{e.queue.Queued(), e.queue.Running()} {
		for _, op := range list {
			if op.isLoadingScreen || op.IsDone() || op.Cancelled() {
				continue
			}
			if op.req.Key() == key {
				return op
			}
		}
	}
	return nil
}

func (e *Engine) finishedOperation(req *Request, res Result) *Operation {
	op := e.newOperation(req, nil, false)
	op.started = true
	op.finished = true
	op.phase = PhaseDone
	op.result = res
	op.completeOnce.Do(func() {})
	op.cancel()
	close(op.done)
	return op
}

// onQueueEmpty hands persistent scenes left behind by a previous collection
// over to the standalone manager.
func (e *Engine) onQueueEmpty() {
	moved := 0
	for _, info := range e.registry.Orphans() {
		if !e.persistence.IsPersistent(info.Handle) {
			continue
		}
		if err := e.registry.HandOff(info.Scene.ID, tracking.KindStandalone); err != nil {
			e.log.Warn("failed to hand off scene", zap.String("scene", info.Scene.ID), zap.Error(err))
			continue
		}
		moved++
	}
	e.emit("debug", "queue.empty", "", map[string]interface{}{"handed_off": moved})
}

// observeInstances tracks instances the backend reports but the engine does not know about.
func (e *Engine) observeInstances() {
	lister, ok := e.backend.(InstanceLister)
	if !ok {
		return
	}
	for _, inst := range lister.LoadedInstances() {
		if inst.Scene == nil || e.registry.IsTracked(inst.Scene.ID) || e.isTransient(inst.Scene.ID) {
			continue
		}
		err := e.registry.Track(tracking.KindStandalone, tracking.OpenSceneInfo{
			Scene:  inst.Scene,
			Handle: inst.Handle,
			State:  scene.StateOpen,
		})
		if err == nil {
			e.log.Debug("tracking externally loaded scene", zap.String("scene", inst.Scene.ID))
		}
	}
}

// applyPriority sets the backend loading priority. Only the operation at the
// head of the queue calls it.
func (e *Engine) applyPriority(p LoadPriority) {
	if p == "" {
		p = e.defaultPriority
	}
	e.mu.Lock()
	e.priority = p
	e.mu.Unlock()
	if setter, ok := e.backend.(PrioritySetter); ok {
		setter.SetLoadPriority(p)
	}
}

func (e *Engine) currentPriority() LoadPriority {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.priority
}

func (e *Engine) setTransient(id string, s scene.State) {
	e.mu.Lock()
	e.transient[id] = s
	e.mu.Unlock()
}

func (e *Engine) clearTransient(id string) {
	e.mu.Lock()
	delete(e.transient, id)
	e.mu.Unlock()
}

func (e *Engine) isTransient(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.transient[id]
	return ok
}

func (e *Engine) setPreload(s *scene.Scene) {
	e.mu.Lock()
	e.preloaded = s
	e.mu.Unlock()
}

func (e *Engine) clearPreload(id string) {
	e.mu.Lock()
	if e.preloaded != nil && e.preloaded.ID == id {
		e.preloaded = nil
	}
	e.mu.Unlock()
}

// preloadPending returns true while a preloaded scene awaits its outcome, or
// a preload operation is queued or running.
func (e *Engine) preloadPending() bool {
	e.mu.Lock()
	pending := e.preloaded != nil
	e.mu.Unlock()
	if pending {
		return true
	}
	for _, list := range [][]*Operation{e.queue.Queued(), e.queue.Running()} {
		for _, op := range list {
			if op.req.Preload && !op.IsDone() {
				return true
			}
		}
	}
	return false
}

func (e *Engine) setActiveScene(id string) {
	e.mu.Lock()
	e.activeScene = id
	e.mu.Unlock()
}

func (e *Engine) activeSceneID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeScene
}

// IsBusy returns true while operations are queued or running.
func (e *Engine) IsBusy() bool { return e.queue.IsBusy() }

// QueuedOperations returns the operations waiting for their turn.
func (e *Engine) QueuedOperations() []*Operation { return e.queue.Queued() }

// RunningOperations returns the running operations, including bypassing ones.
func (e *Engine) RunningOperations() []*Operation { return e.queue.Running() }

// CurrentOperation returns the operation holding the queue's runner slot.
func (e *Engine) CurrentOperation() (*Operation, bool) { return e.queue.Current() }

// FindOperation returns a queued or running operation by ID.
func (e *Engine) FindOperation(id string) (*Operation, bool) {
	for _, list := range [][]*Operation{e.queue.Queued(), e.queue.Running()} {
		for _, op := range list {
			if op.id == id {
				return op, true
			}
		}
	}
	return nil, false
}

// SceneState returns the derived state of a scene.
func (e *Engine) SceneState(id string) scene.State {
	if info, _, ok := e.registry.Get(id); ok {
		return info.State
	}
	e.mu.Lock()
	st, ok := e.transient[id]
	e.mu.Unlock()
	if ok {
		return st
	}
	for _, op := range e.queue.Queued() {
		for _, s := range op.req.openScenes() {
			if s.ID == id {
				return scene.StateQueued
			}
		}
	}
	return scene.StateNotOpen
}

// OpenScenes returns the tracked scenes, collection-managed first.
func (e *Engine) OpenScenes() []tracking.OpenSceneInfo { return e.registry.Everything() }

// OpenScenesOf returns the scenes tracked by one manager.
func (e *Engine) OpenScenesOf(kind tracking.Kind) []tracking.OpenSceneInfo { return e.registry.All(kind) }

// Manager returns the manager tracking a scene.
func (e *Engine) Manager(id string) (tracking.Kind, bool) {
	_, kind, ok := e.registry.Get(id)
	return kind, ok
}

// ActiveCollection returns the collection currently open, or nil.
func (e *Engine) ActiveCollection() *scene.Collection { return e.registry.ActiveCollection() }

// ActiveScene returns the ID of the active scene, or "".
func (e *Engine) ActiveScene() string { return e.activeSceneID() }

// Preloaded returns the preloaded scene awaiting FinishPreload or DiscardPreload.
func (e *Engine) Preloaded() (*scene.Scene, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.preloaded, e.preloaded != nil
}

// Persistence returns the close behavior attached to an open scene.
func (e *Engine) Persistence(id string) scene.CloseBehavior {
	info, _, ok := e.registry.Get(id)
	if !ok {
		return scene.Close
	}
	return e.persistence.Behavior(info.Handle)
}

// SetPersistence attaches a close behavior to an open scene.
func (e *Engine) SetPersistence(id string, b scene.CloseBehavior) error {
	info, _, ok := e.registry.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", tracking.ErrNotTracked, id)
	}
	e.persistence.Set(info.Handle, b)
	return nil
}

// Metadata returns the engine's metadata source, which may be nil.
func (e *Engine) Metadata() Metadata { return e.metadata }

// Reset cancels every operation and forgets all tracking state. Loaded
// content is left to the backend.
func (e *Engine) Reset() {
	for _, op := range e.queue.Queued() {
		op.Cancel()
	}
	for _, op := range e.queue.Running() {
		op.Cancel()
	}
	e.registry.Clear(tracking.KindCollection)
	e.registry.Clear(tracking.KindStandalone)
	e.persistence.Clear()
	e.mu.Lock()
	e.transient = make(map[string]scene.State)
	e.preloaded = nil
	e.activeScene = ""
	e.mu.Unlock()
	e.log.Info("engine reset")
}
