package tracking

import (
	"errors"
	"testing"

	"github.com/AaronLay10/SentientScenes/internal/scene"
)

func TestTrackOnlyOnce(t *testing.T) {
	r := NewRegistry()
	s := &scene.Scene{ID: "a"}

	if err := r.Track(KindStandalone, OpenSceneInfo{Scene: s, Handle: 1, State: scene.StateOpen}); err != nil {
		t.Fatalf("track: %v", err)
	}
	err := r.Track(KindCollection, OpenSceneInfo{Scene: s, Handle: 2})
	if !errors.Is(err, ErrAlreadyTracked) {
		t.Fatalf("expected ErrAlreadyTracked, got %v", err)
	}

	info, kind, ok := r.Get("a")
	if !ok || kind != KindStandalone || info.Handle != 1 {
		t.Errorf("unexpected record: %+v kind=%s ok=%v", info, kind, ok)
	}
}

func TestHandOffMovesRecord(t *testing.T) {
	r := NewRegistry()
	col := &scene.Collection{ID: "g1"}
	s := &scene.Scene{ID: "a"}
	_ = r.Track(KindCollection, OpenSceneInfo{Scene: s, Handle: 1, Collection: col})

	if err := r.HandOff("a", KindStandalone); err != nil {
		t.Fatalf("hand off: %v", err)
	}
	if len(r.All(KindCollection)) != 0 {
		t.Error("record must leave the collection manager")
	}
	standalone := r.All(KindStandalone)
	if len(standalone) != 1 || standalone[0].Collection != nil {
		t.Errorf("unexpected standalone records: %+v", standalone)
	}

	if err := r.HandOff("missing", KindCollection); !errors.Is(err, ErrNotTracked) {
		t.Errorf("expected ErrNotTracked, got %v", err)
	}
}

func TestOrphans(t *testing.T) {
	r := NewRegistry()
	g1 := &scene.Collection{ID: "g1"}
	g2 := &scene.Collection{ID: "g2"}
	_ = r.Track(KindCollection, OpenSceneInfo{Scene: &scene.Scene{ID: "x"}, Handle: 1, Collection: g1})
	_ = r.Track(KindCollection, OpenSceneInfo{Scene: &scene.Scene{ID: "y"}, Handle: 2, Collection: g2})
	r.SetActiveCollection(g2)

	orphans := r.Orphans()
	if len(orphans) != 1 || orphans[0].Scene.ID != "x" {
		t.Errorf("expected x to be orphaned, got %+v", orphans)
	}
}

func TestUntrackAndClear(t *testing.T) {
	r := NewRegistry()
	_ = r.Track(KindStandalone, OpenSceneInfo{Scene: &scene.Scene{ID: "a"}, Handle: 1})
	_ = r.Track(KindStandalone, OpenSceneInfo{Scene: &scene.Scene{ID: "b"}, Handle: 2})
	_ = r.Track(KindCollection, OpenSceneInfo{Scene: &scene.Scene{ID: "c"}, Handle: 3})
	r.SetActiveCollection(&scene.Collection{ID: "g"})

	if _, ok := r.Untrack("a"); !ok {
		t.Fatal("expected a to be untracked")
	}
	if r.IsTracked("a") {
		t.Error("a should no longer be tracked")
	}

	cleared := r.Clear(KindCollection)
	if len(cleared) != 1 || r.ActiveCollection() != nil {
		t.Errorf("expected collection manager cleared, got %d records, active=%v", len(cleared), r.ActiveCollection())
	}
	if len(r.Everything()) != 1 {
		t.Errorf("expected only b left, got %d", len(r.Everything()))
	}
}

func TestSetStateAndOrder(t *testing.T) {
	r := NewRegistry()
	for i, id := range []string{"c", "a", "b"} {
		_ = r.Track(KindStandalone, OpenSceneInfo{Scene: &scene.Scene{ID: id}, Handle: scene.Handle(i + 1), State: scene.StatePreloaded})
	}
	if err := r.SetState("a", scene.StateOpen); err != nil {
		t.Fatalf("set state: %v", err)
	}
	all := r.All(KindStandalone)
	if all[0].Scene.ID != "c" || all[1].Scene.ID != "a" || all[2].Scene.ID != "b" {
		t.Errorf("expected tracking order to be kept, got %v %v %v", all[0].Scene, all[1].Scene, all[2].Scene)
	}
	if all[1].State != scene.StateOpen {
		t.Errorf("expected a to be open, got %s", all[1].State)
	}
}

func TestRehome(t *testing.T) {
	x := &scene.Scene{ID: "x"}
	y := &scene.Scene{ID: "y"}
	g1 := &scene.Collection{ID: "g1", Tags: []scene.SceneTag{{Scene: x}, {Scene: y}}}
	g2 := &scene.Collection{ID: "g2", Tags: []scene.SceneTag{{Scene: y}}}

	r := NewRegistry()
	_ = r.Track(KindCollection, OpenSceneInfo{Scene: x, Handle: 1, Collection: g1})
	_ = r.Track(KindCollection, OpenSceneInfo{Scene: y, Handle: 2, Collection: g1})
	r.SetActiveCollection(g2)

	ids := r.Rehome(g2)
	if len(ids) != 1 || ids[0] != "y" {
		t.Fatalf("expected only y rehomed, got %v", ids)
	}
	orphans := r.Orphans()
	if len(orphans) != 1 || orphans[0].Scene.ID != "x" {
		t.Errorf("expected x to be the only orphan, got %v", orphans)
	}
}
