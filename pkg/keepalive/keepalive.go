// Package keepalive holds the platform lease that keeps the process
// schedulable while sampling in the background.
package keepalive

//go:generate mockgen -source=keepalive.go -destination=mocks/mock_keepalive.go -package=mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/bgloc/pkg/log"
)

// Lease is a held platform background lease.
type Lease interface {
	Release() error
}

// LeaseProvider obtains leases from the platform.
type LeaseProvider interface {
	Acquire(ctx context.Context) (Lease, error)
}

// SessionHandle describes the lease currently held.
type SessionHandle struct {
	ID         uuid.UUID
	AcquiredAt time.Time
}

// Option configures a KeepAlive.
type Option func(*KeepAlive)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(k *KeepAlive) { k.logger = log.OrNoop(l) }
}

// WithHook registers a function called whenever a lease is taken or given
// back.
func WithHook(fn func(held bool)) Option {
	return func(k *KeepAlive) { k.hook = fn }
}

// WithNow overrides the time source used for AcquiredAt.
func WithNow(now func() time.Time) Option {
	return func(k *KeepAlive) { k.now = now }
}

// KeepAlive owns at most one lease at a time.
type KeepAlive struct {
	provider LeaseProvider
	logger   log.Logger
	hook     func(bool)
	now      func() time.Time

	mu      sync.Mutex
	handle  *SessionHandle
	current Lease
}

// New creates a KeepAlive backed by provider. A nil provider makes every
// call a no-op.
func New(provider LeaseProvider, opts ...Option) *KeepAlive {
	k := &KeepAlive{
		provider: provider,
		logger:   log.NewNoopLogger(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Acquire takes a lease unless one is already held, in which case the
// existing handle is returned.
func (k *KeepAlive) Acquire(ctx context.Context) (SessionHandle, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.handle != nil {
		return *k.handle, nil
	}
	if k.provider == nil {
		return SessionHandle{}, nil
	}

	lease, err := k.provider.Acquire(ctx)
	if err != nil {
		return SessionHandle{}, fmt.Errorf("keepalive: acquire lease: %w", err)
	}

	k.current = lease
	k.handle = &SessionHandle{ID: uuid.New(), AcquiredAt: k.now()}
	k.logger.Info("background lease acquired", log.String("session_id", k.handle.ID.String()))
	if k.hook != nil {
		k.hook(true)
	}
	return *k.handle, nil
}

// Release gives the lease back. It is safe to call when nothing is held.
// The handle is forgotten even if the platform reports an error.
func (k *KeepAlive) Release() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.handle == nil {
		return nil
	}
	id := k.handle.ID
	lease := k.current
	k.handle = nil
	k.current = nil

	if k.hook != nil {
		k.hook(false)
	}
	if err := lease.Release(); err != nil {
		k.logger.Warn("background lease release failed", log.String("session_id", id.String()), log.Err(err))
		return fmt.Errorf("keepalive: release lease: %w", err)
	}
	k.logger.Info("background lease released", log.String("session_id", id.String()))
	return nil
}

// Current returns the held handle, if any.
func (k *KeepAlive) Current() (SessionHandle, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.handle == nil {
		return SessionHandle{}, false
	}
	return *k.handle, true
}

// Held reports whether a lease is held.
func (k *KeepAlive) Held() bool {
	_, ok := k.Current()
	return ok
}
