// Package memory is an in-process scene backend. It simulates loading in
// steps and keeps loaded instances in memory. The daemon uses it in simulate
// mode and tests use it to script failures and slow loads.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AaronLay10/SentientScenes/internal/orchestrator"
	"github.com/AaronLay10/SentientScenes/internal/scene"
)

// Options configures a Backend.
type Options struct {
	// Steps is the number of progress reports per load or unload. Defaults to 4.
	Steps int
	// StepDelay is the time spent per step.
	StepDelay time.Duration
	Logger    *zap.Logger
}

type instance struct {
	scene  *scene.Scene
	handle scene.Handle
	active bool
}

// Backend implements orchestrator.Backend and its optional interfaces.
type Backend struct {
	steps     int
	stepDelay time.Duration
	log       *zap.Logger

	mu         sync.Mutex
	next       scene.Handle
	instances  map[scene.Handle]*instance
	byScene    map[string]scene.Handle
	priority   orchestrator.LoadPriority
	active     scene.Handle
	reclaims   int
	loads      map[string]int
	failLoad   map[string]error
	failUnload map[string]error
	gates      map[string]chan struct{}
	started    map[string]chan struct{}
}

// New creates an empty backend.
func New(opts Options) *Backend {
	if opts.Steps <= 0 {
		opts.Steps = 4
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Backend{
		steps:      opts.Steps,
		stepDelay:  opts.StepDelay,
		log:        opts.Logger,
		instances:  make(map[scene.Handle]*instance),
		byScene:    make(map[string]scene.Handle),
		priority:   orchestrator.PriorityNormal,
		loads:      make(map[string]int),
		failLoad:   make(map[string]error),
		failUnload: make(map[string]error),
		gates:      make(map[string]chan struct{}),
		started:    make(map[string]chan struct{}),
	}
}

// LoadScene simulates loading s.
func (b *Backend) LoadScene(ctx context.Context, s *scene.Scene, opts orchestrator.LoadOptions, progress orchestrator.ProgressFunc) (scene.Handle, error) {
	b.mu.Lock()
	err := b.failLoad[s.ID]
	gate := b.gates[s.ID]
	if started, ok := b.started[s.ID]; ok {
		close(started)
		delete(b.started, s.ID)
	}
	b.mu.Unlock()
	if err != nil {
		return 0, err
	}

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if err := b.simulate(ctx, progress); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	h := b.next
	b.instances[h] = &instance{scene: s, handle: h, active: opts.Activate}
	b.byScene[s.ID] = h
	b.loads[s.ID]++
	b.log.Debug("scene loaded", zap.String("scene", s.ID), zap.Uint64("handle", uint64(h)), zap.Bool("active", opts.Activate))
	return h, nil
}

// ActivateScene activates a scene loaded without activation.
func (b *Backend) ActivateScene(ctx context.Context, h scene.Handle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	inst, ok := b.instances[h]
	if !ok {
		return fmt.Errorf("activate: unknown handle %d", h)
	}
	inst.active = true
	return nil
}

// UnloadScene simulates unloading an instance.
func (b *Backend) UnloadScene(ctx context.Context, h scene.Handle, progress orchestrator.ProgressFunc) error {
	b.mu.Lock()
	inst, ok := b.instances[h]
	var err error
	if ok {
		err = b.failUnload[inst.scene.ID]
	}
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("unload: unknown handle %d", h)
	}
	if err != nil {
		return err
	}
	if err := b.simulate(ctx, progress); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.instances, h)
	if b.byScene[inst.scene.ID] == h {
		delete(b.byScene, inst.scene.ID)
	}
	if b.active == h {
		b.active = 0
	}
	b.log.Debug("scene unloaded", zap.String("scene", inst.scene.ID), zap.Uint64("handle", uint64(h)))
	return nil
}

func (b *Backend) simulate(ctx context.Context, progress orchestrator.ProgressFunc) error {
	for i := 1; i <= b.steps; i++ {
		if b.stepDelay > 0 {
			t := time.NewTimer(b.stepDelay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if progress != nil {
			progress(float32(i) / float32(b.steps))
		}
	}
	return nil
}

// IsLoaded returns true if an instance of the scene is loaded, active or not.
func (b *Backend) IsLoaded(sceneID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.byScene[sceneID]
	return ok
}

// IsActive returns true if the scene is loaded and activated.
func (b *Backend) IsActive(sceneID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.byScene[sceneID]
	return ok && b.instances[h].active
}

// SetLoadPriority sets the simulated loading priority.
func (b *Backend) SetLoadPriority(p orchestrator.LoadPriority) {
	b.mu.Lock()
	b.priority = p
	b.mu.Unlock()
}

// Priority returns the current loading priority.
func (b *Backend) Priority() orchestrator.LoadPriority {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.priority
}

// ReclaimUnused counts reclaim requests.
func (b *Backend) ReclaimUnused(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	b.reclaims++
	b.mu.Unlock()
	return nil
}

// Reclaims returns the number of ReclaimUnused calls.
func (b *Backend) Reclaims() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reclaims
}

// SetActiveScene marks the instance as the active scene.
func (b *Backend) SetActiveScene(h scene.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.instances[h]; !ok {
		return fmt.Errorf("set active: unknown handle %d", h)
	}
	b.active = h
	return nil
}

// ActiveScene returns the ID of the active scene, or "".
func (b *Backend) ActiveScene() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if inst, ok := b.instances[b.active]; ok {
		return inst.scene.ID
	}
	return ""
}

// LoadedInstances lists every loaded instance.
func (b *Backend) LoadedInstances() []orchestrator.LoadedInstance {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]orchestrator.LoadedInstance, 0, len(b.instances))
	for h := scene.Handle(1); h <= b.next; h++ {
		if inst, ok := b.instances[h]; ok {
			out = append(out, orchestrator.LoadedInstance{Scene: inst.scene, Handle: h})
		}
	}
	return out
}

// Inject loads s outside of any engine, as content already present at startup would be.
func (b *Backend) Inject(s *scene.Scene) scene.Handle {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.next++
	b.instances[b.next] = &instance{scene: s, handle: b.next, active: true}
	b.byScene[s.ID] = b.next
	return b.next
}

// Loads returns how many times a scene has been loaded.
func (b *Backend) Loads(sceneID string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.loads[sceneID]
}

// FailLoad makes loads of the scene fail with err. A nil err clears it.
func (b *Backend) FailLoad(sceneID string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failLoad, sceneID)
		return
	}
	b.failLoad[sceneID] = err
}

// FailUnload makes unloads of the scene fail with err. A nil err clears it.
func (b *Backend) FailUnload(sceneID string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil {
		delete(b.failUnload, sceneID)
		return
	}
	b.failUnload[sceneID] = err
}

// Hold blocks the next loads of the scene until release is called. started is
// closed when a load reaches the gate.
func (b *Backend) Hold(sceneID string) (started <-chan struct{}, release func()) {
	gate := make(chan struct{})
	st := make(chan struct{})
	b.mu.Lock()
	b.gates[sceneID] = gate
	b.started[sceneID] = st
	b.mu.Unlock()

	var once sync.Once
	return st, func() {
		once.Do(func() {
			b.mu.Lock()
			if b.gates[sceneID] == gate {
				delete(b.gates, sceneID)
			}
			b.mu.Unlock()
			close(gate)
		})
	}
}
