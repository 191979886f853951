// Package permissionwatch turns a polled permission source into
// permission change signals for the controller.
package permissionwatch

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/bft-labs/bgloc/pkg/fetcher"
	"github.com/bft-labs/bgloc/pkg/log"
)

// DefaultInterval is the polling period used when Config.Interval is unset.
const DefaultInterval = 2 * time.Second

// Config holds configuration options for the permission watch plugin.
type Config struct {
	// Source is polled for the current grant. The plugin is disabled when nil.
	Source fetcher.Permission

	// Interval is the polling period.
	// Default: 2 seconds
	Interval time.Duration

	// Clock drives the poll ticker. Defaults to the real clock.
	Clock clock.WithTicker
}

// Plugin polls a Permission and signals transitions.
type Plugin struct {
	mu sync.Mutex

	source   fetcher.Permission
	interval time.Duration
	clock    clock.WithTicker

	signals fetcher.Signals
	logger  log.Logger
	last    bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a permission watch plugin.
func New(cfg Config) *Plugin {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.RealClock{}
	}
	return &Plugin{
		source:   cfg.Source,
		interval: cfg.Interval,
		clock:    cfg.Clock,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "permissionwatch"
}

// Initialize records the current grant and starts polling. The first
// observation is a baseline and is not reported.
func (p *Plugin) Initialize(ctx context.Context, cfg fetcher.PluginConfig) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.logger = log.OrNoop(cfg.Logger).With(log.String("plugin", p.Name()))
	p.signals = cfg.Signals
	if p.source == nil || p.signals == nil {
		p.logger.Warn("permission watch disabled: no permission source")
		return nil
	}

	p.last = p.source.Granted(ctx)
	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	ticker := p.clock.NewTicker(p.interval)
	p.wg.Add(1)
	go p.loop(watchCtx, ticker)

	p.logger.Info("permission watch started",
		log.Duration("interval", p.interval),
		log.Bool("granted", p.last),
	)
	return nil
}

// Shutdown stops polling.
func (p *Plugin) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.wg.Wait()
	return nil
}

func (p *Plugin) loop(ctx context.Context, ticker clock.Ticker) {
	defer p.wg.Done()
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.poll(ctx)
		}
	}
}

func (p *Plugin) poll(ctx context.Context) {
	granted := p.source.Granted(ctx)

	p.mu.Lock()
	changed := granted != p.last
	p.last = granted
	p.mu.Unlock()

	if !changed {
		return
	}
	p.logger.Info("location permission changed", log.Bool("granted", granted))
	if err := p.signals.OnPermissionChanged(ctx, granted); err != nil {
		p.logger.Warn("permission change not applied", log.Err(err))
	}
}

// Ensure Plugin implements fetcher.Plugin.
var _ fetcher.Plugin = (*Plugin)(nil)
