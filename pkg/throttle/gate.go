// Package throttle paces sample delivery to at most one per interval while
// guaranteeing that the most recent sample of a burst is eventually
// delivered.
package throttle

import (
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/bft-labs/bgloc/pkg/location"
	"github.com/bft-labs/bgloc/pkg/log"
)

// Sink receives paced samples. It is called with the gate's lock held and
// must not call back into the gate.
type Sink func(location.Sample)

// Observer is notified of pacing decisions.
type Observer interface {
	// Deferred is called when s is held for delay.
	Deferred(s location.Sample, delay time.Duration)
	// Superseded is called when a held sample is replaced before delivery.
	Superseded(s location.Sample)
	// Dropped is called when Stop discards a held sample.
	Dropped(s location.Sample)
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock sets the clock used for pacing. nil keeps the real clock.
func WithClock(c clock.WithDelayedExecution) Option {
	return func(g *Gate) {
		if c != nil {
			g.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(g *Gate) { g.logger = log.OrNoop(l) }
}

// WithObserver sets an observer for pacing decisions.
func WithObserver(o Observer) Option {
	return func(g *Gate) { g.observer = o }
}

// Gate is a trailing-edge throttle. A sample arriving at least interval
// after the last delivery is delivered at once. Otherwise it replaces any
// held sample and is delivered when the interval since the last delivery
// has elapsed.
//
// A Gate lives for one sampling session. After Stop it delivers nothing.
type Gate struct {
	interval time.Duration
	sink     Sink
	clock    clock.WithDelayedExecution
	observer Observer
	logger   log.Logger

	mu            sync.Mutex
	stopped       bool
	emitted       bool
	lastEmittedAt time.Time
	pending       *flush
}

type flush struct {
	sample location.Sample
	at     time.Time
	timer  clock.Timer
}

// New creates a Gate delivering to sink. An interval of zero disables
// pacing.
func New(interval time.Duration, sink Sink, opts ...Option) *Gate {
	if interval < 0 {
		interval = 0
	}
	g := &Gate{
		interval: interval,
		sink:     sink,
		clock:    clock.RealClock{},
		logger:   log.NewNoopLogger(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Interval returns the pacing interval.
func (g *Gate) Interval() time.Duration { return g.interval }

// Receive offers a sample to the gate.
func (g *Gate) Receive(s location.Sample) {
	now := g.clock.Now()

	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return
	}
	old, oldTimer := g.pending, g.takeTimerLocked()
	g.pending = nil

	elapsed := now.Sub(g.lastEmittedAt)
	if !g.emitted || elapsed >= g.interval {
		g.emitLocked(s, now)
		g.mu.Unlock()
		g.cancel(old, oldTimer)
		return
	}

	delay := g.interval - elapsed
	f := &flush{sample: s, at: g.lastEmittedAt.Add(g.interval)}
	g.pending = f
	g.mu.Unlock()
	g.cancel(old, oldTimer)

	timer := g.clock.AfterFunc(delay, func() { g.fire(f) })

	g.mu.Lock()
	if g.pending == f {
		f.timer = timer
		timer = nil
	}
	g.mu.Unlock()
	if timer != nil {
		// fired or superseded before we could record it
		timer.Stop()
	}

	g.logger.Debug("sample deferred", log.Duration("delay", delay))
	if g.observer != nil {
		g.observer.Deferred(s, delay)
	}
}

// Stop cancels any held sample. Once Stop returns the sink is never called
// again. It reports whether a held sample was discarded.
func (g *Gate) Stop() bool {
	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		return false
	}
	g.stopped = true
	p, timer := g.pending, g.takeTimerLocked()
	g.pending = nil
	g.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if p == nil {
		return false
	}
	g.logger.Debug("held sample dropped on stop")
	if g.observer != nil {
		g.observer.Dropped(p.sample)
	}
	return true
}

// Pending reports whether a sample is held for later delivery.
func (g *Gate) Pending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pending != nil
}

// LastEmittedAt returns the time of the last delivery and whether there has
// been one.
func (g *Gate) LastEmittedAt() (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastEmittedAt, g.emitted
}


// fire runs on the clock's goroutine. It must not read the clock.
func (g *Gate) fire(f *flush) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.stopped || g.pending != f {
		return
	}
	g.pending = nil
	g.emitLocked(f.sample, f.at)
}

func (g *Gate) emitLocked(s location.Sample, at time.Time) {
	g.lastEmittedAt = at
	g.emitted = true
	g.sink(s)
}

func (g *Gate) takeTimerLocked() clock.Timer {
	if g.pending == nil {
		return nil
	}
	t := g.pending.timer
	g.pending.timer = nil
	return t
}

func (g *Gate) cancel(old *flush, timer clock.Timer) {
	if timer != nil {
		timer.Stop()
	}
	if old != nil && g.observer != nil {
		g.observer.Superseded(old.sample)
	}
}
