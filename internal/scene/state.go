package scene

// State is the derived lifecycle state of a scene.
type State string

const (
	StateNotOpen    State = "not_open"
	StateQueued     State = "queued"
	StateOpening    State = "opening"
	StateOpen       State = "open"
	StatePreloading State = "preloading"
	StatePreloaded  State = "preloaded"
)

// IsLoaded returns true if the scene has a live instance, activated or not.
func (s State) IsLoaded() bool {
	return s == StateOpen || s == StatePreloaded
}

// OpenBehavior decides whether a scene opens together with its collection.
type OpenBehavior string

const (
	OpenNormally     OpenBehavior = "open"
	DoNotOpenInGroup OpenBehavior = "do_not_open"
)

// CloseBehavior decides whether a loaded scene survives a collection switch.
type CloseBehavior string

const (
	Close                                CloseBehavior = "close"
	KeepOpenAlways                       CloseBehavior = "keep_open"
	KeepOpenIfNextCollectionAlsoContains CloseBehavior = "keep_open_if_next_contains"
)

// ParseOpenBehavior maps a project file value to an OpenBehavior.
// Empty means OpenNormally.
func ParseOpenBehavior(s string) (OpenBehavior, bool) {
	switch OpenBehavior(s) {
	case "", OpenNormally:
		return OpenNormally, true
	case DoNotOpenInGroup:
		return DoNotOpenInGroup, true
	}
	return "", false
}

// ParseCloseBehavior maps a project file value to a CloseBehavior.
// Empty means Close.
func ParseCloseBehavior(s string) (CloseBehavior, bool) {
	switch CloseBehavior(s) {
	case "", Close:
		return Close, true
	case KeepOpenAlways, KeepOpenIfNextCollectionAlsoContains:
		return CloseBehavior(s), true
	}
	return "", false
}

// Handle identifies a live loaded instance of a scene. Zero is never a valid handle.
type Handle uint64
