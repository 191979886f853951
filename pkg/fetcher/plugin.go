package fetcher

import (
	"context"

	"github.com/bft-labs/bgloc/pkg/log"
)

// Plugin extends a Controller with process-lifetime behavior. Plugins are
// initialized by Launch in registration order and shut down by Close in
// reverse order.
type Plugin interface {
	Name() string
	Initialize(ctx context.Context, cfg PluginConfig) error
	Shutdown(ctx context.Context) error
}

// PluginConfig is handed to plugins on initialization.
type PluginConfig struct {
	Logger  log.Logger
	Signals Signals
}

// Signals is the platform signal surface of a Controller.
type Signals interface {
	OnBootCompleted(ctx context.Context) error
	OnForeground(ctx context.Context) error
	OnBackground(ctx context.Context) error
	OnPermissionChanged(ctx context.Context, granted bool) error
	OnConfigChanged(ctx context.Context) error
}

var _ Signals = (*Controller)(nil)
