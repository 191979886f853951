package fetcher

import (
	"context"
	"sync/atomic"
)

// Permission reports whether background location access is granted.
type Permission interface {
	Granted(ctx context.Context) bool
}

// PermissionFunc adapts a function to the Permission interface.
type PermissionFunc func(ctx context.Context) bool

// Granted calls f.
func (f PermissionFunc) Granted(ctx context.Context) bool { return f(ctx) }

// AlwaysGranted is a Permission that is always granted.
var AlwaysGranted Permission = PermissionFunc(func(context.Context) bool { return true })

// PermissionSwitch is a Permission toggled by the host. OnPermissionChanged
// updates it automatically.
type PermissionSwitch struct {
	granted atomic.Bool
}

// NewPermissionSwitch creates a switch in the given position.
func NewPermissionSwitch(granted bool) *PermissionSwitch {
	s := &PermissionSwitch{}
	s.granted.Store(granted)
	return s
}

// Granted implements Permission.
func (s *PermissionSwitch) Granted(context.Context) bool { return s.granted.Load() }

// Set flips the switch.
func (s *PermissionSwitch) Set(granted bool) { s.granted.Store(granted) }
