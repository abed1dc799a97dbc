package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// operation
	"operation.queued":    {},
	"operation.started":   {},
	"operation.phase":     {},
	"operation.completed": {},
	"operation.cancelled": {},
	"operation.halted":    {},
	"operation.rejected":  {},

	// scene
	"scene.opened":    {},
	"scene.closed":    {},
	"scene.preloaded": {},
	"scene.activated": {},
	"scene.failed":    {},

	// custom code
	"action.failed":   {},
	"callback.failed": {},

	// collection
	"collection.opened": {},
	"collection.closed": {},

	// loading screen
	"loadingscreen.opened": {},
	"loadingscreen.closed": {},

	// queue
	"queue.empty": {},

	// remote commands
	"command.received": {},
	"command.rejected": {},

	// system
	"system.startup":         {},
	"system.shutdown":        {},
	"system.error":           {},
	"system.startup_restore": {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
