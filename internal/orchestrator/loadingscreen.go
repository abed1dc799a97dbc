package orchestrator

import (
	"go.uber.org/zap"

	"github.com/AaronLay10/SentientScenes/internal/scene"
)

// loadingScreen returns the overlay the operation shows: the request's
// override, then the collection's loading screen.
func (o *Operation) loadingScreen() *scene.Scene {
	req := o.req
	if o.isLoadingScreen || req.NoLoadingScreen || req.Preload || req.bypass {
		return nil
	}
	if req.LoadingScreen != nil {
		return req.LoadingScreen
	}
	if req.Collection != nil && req.Collection.LoadingScreen != nil {
		return req.Collection.LoadingScreen
	}
	if req.Closing != nil {
		return req.Closing.LoadingScreen
	}
	return nil
}

// openLoadingScreen opens the overlay as a nested sub-operation and waits for
// it. It returns the overlay only if this operation opened it, so that an
// overlay that was already up stays up.
func (o *Operation) openLoadingScreen() *scene.Scene {
	s := o.loadingScreen()
	if s == nil || o.engine.registry.IsTracked(s.ID) {
		return nil
	}

	child := o.overlayChild(&Request{
		Label:           "open loading screen " + s.ID,
		Open:            []SceneRequest{{Scene: s}},
		NoLoadingScreen: true,
	})
	child.execute()

	res, _ := child.Result()
	for _, id := range res.Opened {
		if id == s.ID {
			o.engine.emit("info", "loadingscreen.opened", "", map[string]interface{}{
				"operation_id": o.id,
				"scene_id":     s.ID,
			})
			return s
		}
	}
	o.engine.log.Warn("loading screen did not open", zap.String("scene", s.ID), zap.String("operation", o.id))
	return nil
}

// closeLoadingScreen closes the overlay in its own sub-operation, also after
// the operation was cancelled.
func (o *Operation) closeLoadingScreen(s *scene.Scene) {
	child := o.overlayChild(&Request{
		Label:           "close loading screen " + s.ID,
		Close:           []SceneRequest{{Scene: s, Force: true}},
		NoLoadingScreen: true,
	})
	child.execute()

	o.engine.emit("info", "loadingscreen.closed", "", map[string]interface{}{
		"operation_id": o.id,
		"scene_id":     s.ID,
	})
}

// overlayChild creates a loading-screen sub-operation. Its context comes from
// the engine, so cancelling o never interrupts the overlay mid-load or mid-unload.
func (o *Operation) overlayChild(req *Request) *Operation {
	child := o.engine.newOperation(req, nil, true)
	child.parent = o
	o.addChild(child)
	return child
}
