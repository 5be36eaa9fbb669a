package recognition

// State is the recognition engine lifecycle state.
type State int32

const (
	// StateIdle means no recognition run is active.
	StateIdle State = iota

	// StateListening means a run is active and results may arrive.
	StateListening

	// StateProcessing means a final result is being handled downstream;
	// entered momentarily between a final result and the return to idle.
	StateProcessing

	// StateError means the last run failed; surfaced errors leave the
	// engine here until Stop resets it.
	StateError

	// StateUnavailable means the platform lacks recognition support.
	// Terminal until the engine is re-created.
	StateUnavailable
)

// String returns the uppercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateListening:
		return "LISTENING"
	case StateProcessing:
		return "PROCESSING"
	case StateError:
		return "ERROR"
	case StateUnavailable:
		return "UNAVAILABLE"
	default:
		return "UNKNOWN"
	}
}
