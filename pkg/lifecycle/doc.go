// Package lifecycle holds the sampling controller's state machine.
//
// A controller is Stopped, Starting or Running. Starting only exists while
// a session is being assembled; it ends in Running on success and in
// Stopped when no strategy could be attached.
//
//	Stopped  -> Starting
//	Starting -> Running | Stopped
//	Running  -> Stopped
//
// Rejected moves return a *TransitionError, which matches
// ErrInvalidTransition under errors.Is. Accepted moves are reported to an
// EventEmitter.
package lifecycle
