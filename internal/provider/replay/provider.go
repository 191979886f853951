// Package replay implements the location provider surfaces from a
// scripted track. It stands in for platform location services on hosts
// that have none.
package replay

import (
	"context"
	"errors"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/bft-labs/bgloc/pkg/location"
	"github.com/bft-labs/bgloc/pkg/log"
)

// DefaultSignificantMeters is the movement that triggers a
// significant-change wake.
const DefaultSignificantMeters = 500.0

// MinUpdateInterval is the fastest rate of scheduled updates.
const MinUpdateInterval = 100 * time.Millisecond

// ErrPlaybackDone is returned by Run when a non-looping track finishes.
var ErrPlaybackDone = errors.New("replay: track finished")

// Option configures a Provider.
type Option func(*Provider)

// WithClock sets the clock driving playback and scheduled updates.
func WithClock(c clock.WithTicker) Option {
	return func(p *Provider) { p.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(p *Provider) { p.logger = log.OrNoop(l) }
}

// WithSignificantMeters overrides DefaultSignificantMeters.
func WithSignificantMeters(m float64) Option {
	return func(p *Provider) { p.significantMeters = m }
}

// Provider replays a Track. It implements location.Manager,
// location.LiveFeed and location.Battery, and reports a toggleable
// permission through Granted.
type Provider struct {
	track             Track
	clock             clock.WithTicker
	logger            log.Logger
	significantMeters float64

	mu      sync.Mutex
	current *location.Fix
	granted bool
	subs    map[*subscription]struct{}
	feeds   map[*feed]struct{}
}

// New creates a provider positioned before the first point.
func New(track Track, opts ...Option) *Provider {
	p := &Provider{
		track:             track,
		clock:             clock.RealClock{},
		logger:            log.NewNoopLogger(),
		significantMeters: DefaultSignificantMeters,
		granted:           true,
		subs:              make(map[*subscription]struct{}),
		feeds:             make(map[*feed]struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Sources bundles the provider for strategy construction.
func (p *Provider) Sources() location.Sources {
	return location.Sources{Manager: p, Feed: p, Battery: p}
}

// Run plays the track until ctx is cancelled. A looping track restarts
// from the first point; otherwise Run returns ErrPlaybackDone after the
// last point and the final position stays current.
func (p *Provider) Run(ctx context.Context) error {
	p.logger.Info("track playback started",
		log.String("track", p.track.Name),
		log.Int("points", len(p.track.Points)),
		log.Bool("loop", p.track.Loop),
	)
	for {
		for _, pt := range p.track.Points {
			if pt.After > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-p.clock.After(pt.After):
				}
			} else if ctx.Err() != nil {
				return ctx.Err()
			}
			p.publish(pt)
		}
		if !p.track.Loop {
			p.logger.Info("track playback finished", log.String("track", p.track.Name))
			return ErrPlaybackDone
		}
	}
}

// Current returns the latest published position.
func (p *Provider) Current() (location.Fix, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return location.Fix{}, false
	}
	return *p.current, true
}

// Level implements location.Battery.
func (p *Provider) Level() int {
	if p.track.Battery == nil {
		return location.UnknownBattery
	}
	return *p.track.Battery
}

// Granted reports the simulated location permission.
func (p *Provider) Granted(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.granted
}

// SetPermission changes the simulated permission. A revocation fails
// every registration with location.ErrPermissionDenied and ends every
// open feed.
func (p *Provider) SetPermission(granted bool) {
	p.mu.Lock()
	if p.granted == granted {
		p.mu.Unlock()
		return
	}
	p.granted = granted
	var subs []*subscription
	var feeds []*feed
	if !granted {
		subs, feeds = p.snapshotLocked()
	}
	p.mu.Unlock()

	p.logger.Info("location permission changed", log.Bool("granted", granted))
	for _, s := range subs {
		s.fail(location.ErrPermissionDenied)
	}
	for _, f := range feeds {
		f.fail(location.ErrPermissionDenied)
	}
}

// RequestUpdates implements location.Manager. Updates arrive every
// req.Interval, but no faster than MinUpdateInterval, once a position is
// known. They are filtered by req.MinDistanceMeters.
func (p *Provider) RequestUpdates(req location.UpdateRequest, h location.FixHandler) (location.Subscription, error) {
	interval := req.Interval
	if interval < MinUpdateInterval {
		interval = MinUpdateInterval
	}
	s := newSubscription(p, h, req.MinDistanceMeters)
	if err := p.register(s); err != nil {
		return nil, err
	}

	ticker := p.clock.NewTicker(interval)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C():
				if f, ok := p.Current(); ok {
					f.Time = p.clock.Now()
					s.deliver(f)
				}
			}
		}
	}()
	return s, nil
}

// MonitorSignificantChanges implements location.Manager.
func (p *Provider) MonitorSignificantChanges(h location.FixHandler) (location.Subscription, error) {
	s := newSubscription(p, h, p.significantMeters)
	s.significant = true
	if err := p.register(s); err != nil {
		return nil, err
	}
	return s, nil
}

// Open implements location.LiveFeed. Every published point is sent until
// ctx is cancelled or permission is revoked.
func (p *Provider) Open(ctx context.Context) (<-chan location.Update, error) {
	f := &feed{ctx: ctx, ch: make(chan location.Update, 16)}

	p.mu.Lock()
	if !p.granted {
		p.mu.Unlock()
		return nil, location.ErrPermissionDenied
	}
	p.feeds[f] = struct{}{}
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		delete(p.feeds, f)
		p.mu.Unlock()
		f.close()
	}()
	return f.ch, nil
}

func (p *Provider) register(s *subscription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.granted {
		return location.ErrPermissionDenied
	}
	p.subs[s] = struct{}{}
	return nil
}

func (p *Provider) unregister(s *subscription) {
	p.mu.Lock()
	delete(p.subs, s)
	p.mu.Unlock()
}

func (p *Provider) snapshotLocked() ([]*subscription, []*feed) {
	subs := make([]*subscription, 0, len(p.subs))
	for s := range p.subs {
		subs = append(subs, s)
	}
	feeds := make([]*feed, 0, len(p.feeds))
	for f := range p.feeds {
		feeds = append(feeds, f)
	}
	return subs, feeds
}

func (p *Provider) publish(pt Point) {
	fix := location.Fix{
		Latitude:   pt.Latitude,
		Longitude:  pt.Longitude,
		Speed:      pt.Speed,
		Bearing:    pt.Bearing,
		Time:       p.clock.Now(),
		Stationary: pt.Stationary,
	}

	p.mu.Lock()
	p.current = &fix
	granted := p.granted
	subs, feeds := p.snapshotLocked()
	p.mu.Unlock()

	if !granted {
		return
	}
	for _, s := range subs {
		if s.significant {
			s.deliver(fix)
		}
	}
	for _, f := range feeds {
		f.send(location.Update{Fix: &fix})
	}
}

type subscription struct {
	p           *Provider
	h           location.FixHandler
	minDistance float64
	significant bool

	// mu serializes handler calls with Cancel.
	mu        sync.Mutex
	cancelled bool
	last      *location.Fix

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newSubscription(p *Provider, h location.FixHandler, minDistance float64) *subscription {
	return &subscription{p: p, h: h, minDistance: minDistance, stop: make(chan struct{})}
}

func (s *subscription) deliver(f location.Fix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	if s.last != nil && s.minDistance > 0 &&
		location.Distance(s.last.Latitude, s.last.Longitude, f.Latitude, f.Longitude) < s.minDistance {
		return
	}
	s.last = &f
	s.h.HandleFix(f)
}

func (s *subscription) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return
	}
	s.h.HandleError(err)
}

// Cancel implements location.Subscription. It must not be called from
// within the subscription's own handler.
func (s *subscription) Cancel() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()

	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()

	s.p.unregister(s)
}

type feed struct {
	ctx context.Context
	ch  chan location.Update

	mu     sync.Mutex
	closed bool
}

func (f *feed) send(u location.Update) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.ch <- u:
	case <-f.ctx.Done():
	}
}

// fail sends a terminal error and closes the channel.
func (f *feed) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.ch <- location.Update{Err: err}:
	case <-f.ctx.Done():
	}
	f.closed = true
	close(f.ch)
}

func (f *feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	close(f.ch)
}

var (
	_ location.Manager  = (*Provider)(nil)
	_ location.LiveFeed = (*Provider)(nil)
	_ location.Battery  = (*Provider)(nil)
)
