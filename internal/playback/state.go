package playback

// Direction is the way the sequencer walks the catalog.
type Direction int

const (
	// Forward walks towards the end of the page.
	Forward Direction = iota
	// Backward is set while playing the previous unit; it resolves to
	// Forward once that unit has been played.
	Backward
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	if d == Backward {
		return "backward"
	}
	return "forward"
}

// State is a snapshot of the playback state.
type State struct {
	Playing     bool      // Audio is wanted
	Index       int       // Current catalog index
	Direction   Direction // Navigation direction
	Speed       float64   // Playback rate
	Highlighted string    // ID of the highlighted unit, empty when none
	Generation  uint64    // Generation of the live clip, 0 when none
}

// EventType identifies a sequencer notification.
type EventType int

const (
	// EventPlayState is sent when playing starts or stops; it drives the
	// play/pause indicator.
	EventPlayState EventType = iota
	// EventIndexChanged is sent when the current index moves. Other
	// highlighters use it to drop stale state.
	EventIndexChanged
	// EventHighlight is sent when a unit becomes highlighted or the
	// highlight is cleared.
	EventHighlight
	// EventClipEnded is sent after a clip finished, failed or was stopped.
	EventClipEnded
	// EventSkipped is sent when an image unit is passed over because
	// describe-images is off.
	EventSkipped
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventPlayState:
		return "play_state"
	case EventIndexChanged:
		return "index_changed"
	case EventHighlight:
		return "highlight"
	case EventClipEnded:
		return "clip_ended"
	case EventSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Event is delivered to subscribers after the state has changed.
type Event struct {
	Type  EventType
	State State
	Unit  string // Unit ID for EventClipEnded and EventSkipped
	Err   error  // Playback failure for EventClipEnded
}
