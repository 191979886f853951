package lifecycle

import (
	"errors"
	"fmt"
	"time"
)

// State is the lifecycle state of the sampling controller.
type State int

const (
	// StateStopped means no strategy is attached and no lease is held.
	StateStopped State = iota
	// StateStarting is held only while a session is being built.
	StateStarting
	// StateRunning means a strategy is attached and samples flow.
	StateRunning
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	default:
		return "Unknown"
	}
}

// allowed lists the successors of every state.
var allowed = map[State][]State{
	StateStopped:  {StateStarting},
	StateStarting: {StateRunning, StateStopped},
	StateRunning:  {StateStopped},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

var (
	// ErrInvalidTransition is matched by every *TransitionError.
	ErrInvalidTransition = errors.New("lifecycle: invalid state transition")

	// ErrShutdownTimeout is returned when background workers outlive the
	// close deadline.
	ErrShutdownTimeout = errors.New("lifecycle: shutdown timeout")
)

// TransitionError describes a rejected transition.
type TransitionError struct {
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("lifecycle: cannot move from %s to %s", e.From, e.To)
}

// Is makes errors.Is(err, ErrInvalidTransition) hold.
func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// EventEmitter is called after every accepted transition.
type EventEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// Manager is the state machine the controller drives.
type Manager interface {
	State() State
	TransitionTo(next State, reason string) error

	AddWorker()
	WorkerDone()
	WaitWithTimeout(timeout time.Duration) error
}
