package lifecycle

import (
	"sync"
	"time"

	"github.com/bft-labs/bgloc/pkg/log"
)

// ShutdownTimeout bounds how long Close waits for session teardown
// goroutines.
const ShutdownTimeout = 5 * time.Second

// DefaultManager implements Manager.
type DefaultManager struct {
	mu      sync.RWMutex
	state   State
	workers sync.WaitGroup
	logger  log.Logger
	emitter EventEmitter
}

var _ Manager = (*DefaultManager)(nil)

// NewManager returns a manager in StateStopped. emitter may be nil.
func NewManager(logger log.Logger, emitter EventEmitter) *DefaultManager {
	return &DefaultManager{
		state:   StateStopped,
		logger:  log.OrNoop(logger),
		emitter: emitter,
	}
}

// State returns the current state.
func (m *DefaultManager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// TransitionTo moves to next, or returns a *TransitionError and leaves the
// state untouched. The emitter runs after the lock is released.
func (m *DefaultManager) TransitionTo(next State, reason string) error {
	m.mu.Lock()
	prev := m.state
	if !CanTransition(prev, next) {
		m.mu.Unlock()
		return &TransitionError{From: prev, To: next}
	}
	m.state = next
	m.mu.Unlock()

	if m.emitter != nil {
		m.emitter.OnStateChange(prev, next, reason)
	}
	m.logger.Info("controller state changed",
		log.String("from", prev.String()),
		log.String("to", next.String()),
		log.String("reason", reason),
	)
	return nil
}

// AddWorker registers a goroutine that Close must wait for.
func (m *DefaultManager) AddWorker() { m.workers.Add(1) }

// WorkerDone marks a registered goroutine as finished.
func (m *DefaultManager) WorkerDone() { m.workers.Done() }

// WaitWithTimeout waits for registered workers, giving up after timeout.
func (m *DefaultManager) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		m.workers.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		m.logger.Warn("background workers still running at close",
			log.Duration("timeout", timeout))
		return ErrShutdownTimeout
	}
}
