package lock

// State represents the lifecycle state of a lock device.
type State int

const (
	// StateUninitialized means no trusted credential is stored.
	StateUninitialized State = iota

	// StateEnrolling means Run is waiting for the first card.
	StateEnrolling

	// StateIdle means the device is waiting for a card to evaluate.
	StateIdle

	// StateEvaluating means a card is being compared.
	StateEvaluating

	// StateGranting means the lock is open for a matching card.
	StateGranting

	// StateDenying means a non-matching card is being rejected.
	StateDenying

	// StateStopped means Run has returned.
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateEnrolling:
		return "Enrolling"
	case StateIdle:
		return "Idle"
	case StateEvaluating:
		return "Evaluating"
	case StateGranting:
		return "Granting"
	case StateDenying:
		return "Denying"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// IsEnrolled returns true if the state implies a stored credential.
func (s State) IsEnrolled() bool {
	switch s {
	case StateIdle, StateEvaluating, StateGranting, StateDenying:
		return true
	default:
		return false
	}
}

// CanRun returns true if Run can be called in this state.
func (s State) CanRun() bool {
	return s == StateUninitialized || s == StateIdle
}
