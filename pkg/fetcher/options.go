package fetcher

import (
	"k8s.io/utils/clock"

	"github.com/bft-labs/bgloc/pkg/dispatch"
	"github.com/bft-labs/bgloc/pkg/keepalive"
	"github.com/bft-labs/bgloc/pkg/location"
	"github.com/bft-labs/bgloc/pkg/log"
)

// StrategyFactory builds the strategy for a session.
type StrategyFactory func(mode location.Mode, settings location.Settings) (location.Strategy, error)

// Option configures optional behavior of a Controller.
type Option func(*options)

type options struct {
	logger              log.Logger
	permission          Permission
	leaseProvider       keepalive.LeaseProvider
	clock               clock.WithDelayedExecution
	eventHandler        EventHandler
	strategyFactory     StrategyFactory
	sources             *location.Sources
	resolver            dispatch.Resolver
	releaseInForeground bool
	plugins             []Plugin
}

func defaultOptions() options {
	return options{
		logger:     log.NewNoopLogger(),
		permission: AlwaysGranted,
		clock:      clock.RealClock{},
		resolver:   dispatch.NewRegistry(),
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		o.logger = log.OrNoop(logger)
	}
}

// WithPermission sets the permission check consulted before sampling.
// Defaults to AlwaysGranted.
func WithPermission(p Permission) Option {
	return func(o *options) {
		o.permission = p
	}
}

// WithLeaseProvider sets the platform lease used while sampling in the
// background. Without one, the keep-alive setting has no effect.
func WithLeaseProvider(p keepalive.LeaseProvider) Option {
	return func(o *options) {
		o.leaseProvider = p
	}
}

// WithClock sets the clock used for pacing and start retries. A nil
// clock keeps the real one.
func WithClock(c clock.WithDelayedExecution) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithEventHandler sets a handler for controller events.
func WithEventHandler(h EventHandler) Option {
	return func(o *options) {
		o.eventHandler = h
	}
}

// WithSources sets the providers the built-in strategies read from.
func WithSources(src location.Sources) Option {
	return func(o *options) {
		o.sources = &src
	}
}

// WithStrategyFactory replaces the built-in strategies.
func WithStrategyFactory(f StrategyFactory) Option {
	return func(o *options) {
		o.strategyFactory = f
	}
}

// WithResolver sets the resolver for dispatcher handles. A nil resolver
// keeps the empty default registry.
func WithResolver(r dispatch.Resolver) Option {
	return func(o *options) {
		if r != nil {
			o.resolver = r
		}
	}
}

// WithForegroundRelease makes the controller give the background lease
// back while the host is in the foreground.
func WithForegroundRelease(release bool) Option {
	return func(o *options) {
		o.releaseInForeground = release
	}
}

// WithPlugin registers a plugin to be initialized by Launch.
// Plugins are initialized in registration order and shut down in reverse order.
func WithPlugin(plugin Plugin) Option {
	return func(o *options) {
		if plugin != nil {
			o.plugins = append(o.plugins, plugin)
		}
	}
}
