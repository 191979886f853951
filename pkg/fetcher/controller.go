package fetcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"k8s.io/utils/clock"

	"github.com/bft-labs/bgloc/pkg/dispatch"
	"github.com/bft-labs/bgloc/pkg/keepalive"
	"github.com/bft-labs/bgloc/pkg/lifecycle"
	"github.com/bft-labs/bgloc/pkg/location"
	"github.com/bft-labs/bgloc/pkg/log"
	"github.com/bft-labs/bgloc/pkg/store"
)

// Controller drives background location sampling.
// Use New() to create one; it starts in lifecycle.StateStopped.
type Controller struct {
	settings            *store.Settings
	lifecycle           *lifecycle.DefaultManager
	dispatch            *dispatch.Gate
	keepAlive           *keepalive.KeepAlive
	permission          Permission
	factory             StrategyFactory
	clock               clock.WithDelayedExecution
	logger              log.Logger
	events              EventHandler
	plugins             []Plugin
	releaseInForeground bool

	callbackHandle atomic.Int64

	mu           sync.Mutex
	session      *session
	background   bool
	launched     bool
	closed       bool
	pluginCancel context.CancelFunc

	// retry is armed while an active controller failed to attach a strategy.
	retry        clock.Timer
	retryGen     uint64
	retryBackOff *backoff.ExponentialBackOff
}

const (
	startRetryInitial = 5 * time.Second
	startRetryMax     = 5 * time.Minute
)

// New creates a Controller over settings.
func New(settings *store.Settings, opts ...Option) (*Controller, error) {
	if settings == nil {
		return nil, fmt.Errorf("%w: settings are required", ErrInvalidArgument)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	c := &Controller{
		settings:            settings,
		permission:          o.permission,
		clock:               o.clock,
		logger:              o.logger.With(log.String("component", "controller")),
		events:              o.eventHandler,
		plugins:             o.plugins,
		releaseInForeground: o.releaseInForeground,
		retryBackOff:        newStartBackOff(),
	}
	if c.events == nil {
		c.events = NopEventHandler{}
	}
	if c.permission == nil {
		c.permission = AlwaysGranted
	}

	switch {
	case o.strategyFactory != nil:
		c.factory = o.strategyFactory
	case o.sources != nil:
		src := *o.sources
		logger := o.logger
		c.factory = func(mode location.Mode, s location.Settings) (location.Strategy, error) {
			return location.NewStrategy(mode, src, s, logger)
		}
	default:
		return nil, ErrNoLocationSource
	}

	c.lifecycle = lifecycle.NewManager(o.logger, &eventEmitterWrapper{handler: c.events})
	c.dispatch = dispatch.NewGate(o.resolver, settings.DispatcherHandle,
		dispatch.WithLogger(o.logger),
		dispatch.WithHook(func(handle int64, err error) {
			c.events.OnDispatch(DispatchEvent{Handle: handle, Err: err})
		}),
	)
	c.keepAlive = keepalive.New(o.leaseProvider,
		keepalive.WithLogger(o.logger),
		keepalive.WithHook(func(held bool) {
			c.events.OnLease(LeaseEvent{Held: held})
		}),
	)
	return c, nil
}

// Launch initializes plugins and resumes sampling if it was active before
// the process started. Call it once, at process start.
func (c *Controller) Launch(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.launched {
		c.mu.Unlock()
		return nil
	}
	c.launched = true

	pluginCtx, cancel := context.WithCancel(context.Background())
	c.pluginCancel = cancel
	c.mu.Unlock()

	pluginCfg := PluginConfig{Logger: c.logger, Signals: c}
	for i, p := range c.plugins {
		if err := p.Initialize(pluginCtx, pluginCfg); err != nil {
			c.logger.Error("plugin initialization failed",
				log.String("plugin", p.Name()),
				log.Err(err))
			c.shutdownPlugins(ctx, c.plugins[:i])
			cancel()
			return fmt.Errorf("initialize plugin %s: %w", p.Name(), err)
		}
		c.logger.Info("plugin initialized", log.String("plugin", p.Name()))
	}

	return c.OnBootCompleted(ctx)
}

// SetCallback persists the callback handles and launches the callback
// environment if it is not running yet.
func (c *Controller) SetCallback(ctx context.Context, callbackHandle, dispatcherHandle int64) error {
	if callbackHandle == 0 || dispatcherHandle == 0 {
		return fmt.Errorf("%w: both callback handles are required", ErrInvalidArgument)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	if err := c.settings.SetHandles(ctx, callbackHandle, dispatcherHandle); err != nil {
		c.logger.Error("persisting callback handles failed", log.Err(err))
		return err
	}
	c.callbackHandle.Store(callbackHandle)
	c.logger.Info("callback registered",
		log.Int64("callback_handle", callbackHandle),
		log.Int64("dispatcher_handle", dispatcherHandle))

	if err := c.dispatch.EnsureDispatched(ctx); err != nil {
		c.logger.Warn("callback environment not launched", log.Err(err))
	}
	return nil
}

// Configure merges u into the stored configuration. A running session is
// restarted so that the new configuration takes effect.
func (c *Controller) Configure(ctx context.Context, u ConfigUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	cur, err := c.settings.SamplingConfig(ctx)
	if err != nil {
		c.logger.Error("reading sampling config failed", log.Err(err))
		return err
	}
	next, err := u.Apply(cur)
	if err != nil {
		return err
	}
	if err := c.settings.SaveSamplingConfig(ctx, next); err != nil {
		c.logger.Error("persisting sampling config failed", log.Err(err))
		return err
	}

	c.logger.Info("sampling configured",
		log.String("mode", string(next.Mode)),
		log.Duration("interval", next.MinInterval),
		log.Float64("min_distance_m", next.MinDistanceMeters),
		log.Bool("keep_alive", next.UseBackgroundKeepAlive))

	if c.session == nil {
		return nil
	}
	c.endSessionLocked("reconfigure")
	return c.startLocked(ctx, "reconfigure")
}

// Start begins sampling. Without location permission the request is
// remembered and sampling begins once permission is granted. A strategy
// that fails to start is retried in the background; only store failures
// are returned.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.startLocked(ctx, "start requested")
}

// Stop ends sampling and clears the activation flag.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.cancelRetryLocked()
	c.endSessionLocked("stop requested")
	if err := c.settings.SetActive(ctx, false); err != nil {
		c.logger.Error("persisting activation failed", log.Err(err))
		return err
	}
	return nil
}

// IsActivated returns the persisted activation flag. It may be true while
// nothing is sampling, for example when permission is missing.
func (c *Controller) IsActivated(ctx context.Context) (bool, error) {
	return c.settings.IsActive(ctx)
}

// Configuration returns the stored configuration with defaults applied.
func (c *Controller) Configuration(ctx context.Context) (store.SamplingConfig, error) {
	return c.settings.SamplingConfig(ctx)
}

// State returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (c *Controller) State() lifecycle.State {
	return c.lifecycle.State()
}

// Dispatched reports whether the callback environment is running.
func (c *Controller) Dispatched() bool {
	return c.dispatch.Dispatched()
}

// LeaseHeld reports whether the background lease is held.
func (c *Controller) LeaseHeld() bool {
	return c.keepAlive.Held()
}

// Close stops sampling without touching the activation flag, shuts
// plugins down and releases the callback environment. A closed controller
// rejects further commands.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.cancelRetryLocked()
	c.endSessionLocked("controller closing")
	cancel := c.pluginCancel
	c.mu.Unlock()

	err := c.lifecycle.WaitWithTimeout(lifecycle.ShutdownTimeout)

	if cancel != nil {
		c.shutdownPlugins(ctx, c.plugins)
		cancel()
	}

	if closeErr := c.dispatch.Close(); closeErr != nil {
		c.logger.Warn("closing callback environment failed", log.Err(closeErr))
		err = errors.Join(err, closeErr)
	}
	_ = c.keepAlive.Release()
	return err
}

func (c *Controller) shutdownPlugins(ctx context.Context, plugins []Plugin) {
	for i := len(plugins) - 1; i >= 0; i-- {
		p := plugins[i]
		if err := p.Shutdown(ctx); err != nil {
			c.logger.Error("plugin shutdown failed",
				log.String("plugin", p.Name()),
				log.Err(err))
		} else {
			c.logger.Info("plugin shutdown complete", log.String("plugin", p.Name()))
		}
	}
}

// startLocked records the activation and begins a session if possible.
func (c *Controller) startLocked(ctx context.Context, reason string) error {
	if err := c.settings.SetActive(ctx, true); err != nil {
		c.logger.Error("persisting activation failed", log.Err(err))
		return err
	}
	if c.session != nil {
		return nil
	}
	if !c.permission.Granted(ctx) {
		c.logger.Warn("location permission not granted, sampling deferred until it is")
		return nil
	}
	return c.beginSessionLocked(ctx, reason)
}

func (c *Controller) beginSessionLocked(ctx context.Context, reason string) error {
	if err := c.lifecycle.TransitionTo(lifecycle.StateStarting, reason); err != nil {
		return err
	}

	cfg, err := c.settings.SamplingConfig(ctx)
	if err != nil {
		c.logger.Error("reading sampling config failed, using defaults", log.Err(err))
		cfg = store.DefaultSamplingConfig()
	}
	if h, err := c.settings.CallbackHandle(ctx); err != nil {
		c.logger.Error("reading callback handle failed", log.Err(err))
	} else {
		c.callbackHandle.Store(h)
	}

	if err := c.dispatch.EnsureDispatched(ctx); err != nil {
		c.logger.Warn("callback environment not launched", log.Err(err))
	}

	strategy, err := c.factory(cfg.Mode, location.Settings{
		MinInterval:       cfg.MinInterval,
		MinDistanceMeters: cfg.MinDistanceMeters,
	})
	if err != nil {
		_ = c.lifecycle.TransitionTo(lifecycle.StateStopped, "no strategy available")
		c.logger.Error("building strategy failed", log.String("mode", string(cfg.Mode)), log.Err(err))
		c.scheduleRetryLocked()
		return nil
	}

	sess := newSession(c, cfg, strategy)
	if c.shouldHoldLeaseLocked(cfg) {
		c.acquireLeaseLocked(ctx)
	}

	if err := strategy.Start(sess); err != nil {
		sess.gate.Stop()
		c.releaseLeaseLocked()
		_ = c.lifecycle.TransitionTo(lifecycle.StateStopped, "strategy failed to start")
		if location.IsPermissionDenied(err) {
			c.logger.Warn("location permission denied by provider", log.Err(err))
			return nil
		}
		c.logger.Error("strategy failed to start", log.Err(err))
		c.scheduleRetryLocked()
		return nil
	}

	c.cancelRetryLocked()
	c.retryBackOff.Reset()
	c.session = sess
	_ = c.lifecycle.TransitionTo(lifecycle.StateRunning, reason)
	c.logger.Info("sampling started",
		log.String("mode", string(strategy.Mode())),
		log.Duration("interval", cfg.MinInterval),
		log.Float64("min_distance_m", cfg.MinDistanceMeters))
	return nil
}

func newStartBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = startRetryInitial
	b.MaxInterval = startRetryMax
	b.Reset()
	return b
}

// scheduleRetryLocked arms a timer that starts sampling again while the
// controller stays active. At most one retry is pending.
func (c *Controller) scheduleRetryLocked() {
	if c.retry != nil || c.closed {
		return
	}
	c.retryGen++
	gen := c.retryGen
	delay := c.retryBackOff.NextBackOff()
	c.logger.Warn("sampling not started, retrying later", log.Duration("delay", delay))
	// The callback may run under the clock's lock, so the work moves to a
	// goroutine.
	c.retry = c.clock.AfterFunc(delay, func() {
		c.lifecycle.AddWorker()
		go func() {
			defer c.lifecycle.WorkerDone()
			c.retryStart(gen)
		}()
	})
}

func (c *Controller) cancelRetryLocked() {
	if c.retry == nil {
		return
	}
	c.retry.Stop()
	c.retry = nil
	c.retryGen++
}

func (c *Controller) retryStart(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.retryGen {
		return
	}
	c.retry = nil
	if c.closed || c.session != nil {
		return
	}

	ctx := context.Background()
	active, err := c.settings.IsActive(ctx)
	if err != nil {
		c.logger.Error("reading activation failed", log.Err(err))
		c.scheduleRetryLocked()
		return
	}
	if !active || !c.permission.Granted(ctx) {
		return
	}
	_ = c.beginSessionLocked(ctx, "retrying start")
}

// endSessionLocked tears the current session down. Once it returns no
// sample of that session is delivered.
func (c *Controller) endSessionLocked(reason string) {
	sess := c.session
	if sess == nil {
		return
	}
	c.session = nil

	sess.strategy.Stop()
	sess.gate.Stop()
	c.releaseLeaseLocked()
	_ = c.lifecycle.TransitionTo(lifecycle.StateStopped, reason)
}

// abortAsync ends sess from outside the strategy's goroutine.
func (c *Controller) abortAsync(sess *session, reason string) {
	c.lifecycle.AddWorker()
	go func() {
		defer c.lifecycle.WorkerDone()
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.session != sess {
			return
		}
		c.logger.Warn("sampling session aborted", log.String("reason", reason))
		c.endSessionLocked(reason)
	}()
}

func (c *Controller) shouldHoldLeaseLocked(cfg store.SamplingConfig) bool {
	return cfg.UseBackgroundKeepAlive && (!c.releaseInForeground || c.background)
}

func (c *Controller) acquireLeaseLocked(ctx context.Context) {
	if _, err := c.keepAlive.Acquire(ctx); err != nil {
		c.logger.Warn("background lease unavailable", log.Err(err))
	}
}

func (c *Controller) releaseLeaseLocked() {
	_ = c.keepAlive.Release()
}
