package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bft-labs/bgloc/pkg/log"
)

var (
	// ErrHandleNotFound is returned when the dispatcher handle is unset or
	// does not resolve to an entrypoint.
	ErrHandleNotFound = errors.New("dispatch: dispatcher handle not found")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("dispatch: gate closed")
)

// HandleFunc returns the currently persisted dispatcher handle. Zero means
// unset.
type HandleFunc func(ctx context.Context) (int64, error)

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(g *Gate) { g.logger = log.OrNoop(l) }
}

// WithHook registers a function called after every launch attempt with the
// handle and the outcome.
func WithHook(fn func(handle int64, err error)) Option {
	return func(g *Gate) { g.hook = fn }
}

// Gate launches the callback environment exactly once per process.
//
// Launching is not reset by stopping a sampling session; only a process
// restart clears it.
type Gate struct {
	resolver Resolver
	handle   HandleFunc
	logger   log.Logger
	hook     func(int64, error)

	dispatched atomic.Bool

	mu     sync.Mutex
	env    Environment
	closed bool
}

// NewGate creates a Gate. A nil resolver resolves nothing.
func NewGate(resolver Resolver, handle HandleFunc, opts ...Option) *Gate {
	if resolver == nil {
		resolver = NewRegistry()
	}
	g := &Gate{
		resolver: resolver,
		handle:   handle,
		logger:   log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Dispatched reports whether the environment has been launched.
func (g *Gate) Dispatched() bool { return g.dispatched.Load() }

// EnsureDispatched launches the environment if it is not running yet.
// Concurrent callers observe a single launch. On failure the gate stays
// undispatched and a later call retries.
func (g *Gate) EnsureDispatched(ctx context.Context) error {
	if g.dispatched.Load() {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrClosed
	}
	if g.dispatched.Load() {
		return nil
	}

	handle, err := g.handle(ctx)
	if err != nil {
		return fmt.Errorf("read dispatcher handle: %w", err)
	}
	err = g.launchLocked(ctx, handle)
	if g.hook != nil {
		g.hook(handle, err)
	}
	return err
}

func (g *Gate) launchLocked(ctx context.Context, handle int64) error {
	if handle == 0 {
		return ErrHandleNotFound
	}
	ep, ok := g.resolver.Resolve(handle)
	if !ok {
		return fmt.Errorf("%w: %d", ErrHandleNotFound, handle)
	}

	env, err := ep.Launch(ctx)
	if err != nil {
		return fmt.Errorf("launch environment %d: %w", handle, err)
	}

	g.env = env
	g.dispatched.Store(true)
	g.logger.Info("callback environment launched", log.Int64("dispatcher_handle", handle))
	return nil
}

// Deliver hands ev to the environment. It reports false when nothing has
// been launched.
func (g *Gate) Deliver(ev CallbackEvent) bool {
	if !g.dispatched.Load() {
		return false
	}
	g.mu.Lock()
	env := g.env
	g.mu.Unlock()
	if env == nil {
		return false
	}
	env.Deliver(ev)
	return true
}

// Close shuts the environment down. The gate cannot be dispatched again.
func (g *Gate) Close() error {
	g.mu.Lock()
	env := g.env
	g.env = nil
	g.closed = true
	g.dispatched.Store(false)
	g.mu.Unlock()

	if env == nil {
		return nil
	}
	return env.Close()
}
