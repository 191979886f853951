package fetcher

import (
	"context"
	"time"

	"github.com/bft-labs/bgloc/pkg/dispatch"
	"github.com/bft-labs/bgloc/pkg/location"
	"github.com/bft-labs/bgloc/pkg/log"
	"github.com/bft-labs/bgloc/pkg/store"
	"github.com/bft-labs/bgloc/pkg/throttle"
)

// session is one Running period. It is the strategy's listener, the
// gate's sink and the gate's observer.
type session struct {
	c        *Controller
	cfg      store.SamplingConfig
	strategy location.Strategy
	gate     *throttle.Gate
}

func newSession(c *Controller, cfg store.SamplingConfig, strategy location.Strategy) *session {
	s := &session{c: c, cfg: cfg, strategy: strategy}
	s.gate = throttle.New(cfg.MinInterval, s.deliver,
		throttle.WithClock(c.clock),
		throttle.WithLogger(c.logger),
		throttle.WithObserver(s),
	)
	return s
}

// OnSample implements location.Listener.
func (s *session) OnSample(smp location.Sample) {
	s.c.events.OnSample(SampleEvent{Mode: s.strategy.Mode(), Sample: smp})
	s.gate.Receive(smp)
}

// OnError implements location.Listener.
func (s *session) OnError(err error) {
	if location.IsPermissionDenied(err) {
		s.c.abortAsync(s, "location permission revoked")
		return
	}
	s.c.logger.Warn("location source error", log.Err(err))
}

// deliver is the gate's sink.
func (s *session) deliver(smp location.Sample) {
	c := s.c
	if !c.dispatch.Dispatched() {
		if err := c.dispatch.EnsureDispatched(context.Background()); err != nil {
			c.logger.Debug("sample dropped, callback environment not launched", log.Err(err))
			c.events.OnDrop(DropEvent{Reason: DropNotDispatched, Sample: smp})
			return
		}
	}

	ev := dispatch.NewCallbackEvent(c.callbackHandle.Load(), smp)
	if !c.dispatch.Deliver(ev) {
		c.events.OnDrop(DropEvent{Reason: DropNotDispatched, Sample: smp})
		return
	}
	c.events.OnDelivery(DeliveryEvent{Event: ev})
}

// Deferred implements throttle.Observer.
func (s *session) Deferred(location.Sample, time.Duration) {}

// Superseded implements throttle.Observer.
func (s *session) Superseded(smp location.Sample) {
	s.c.events.OnDrop(DropEvent{Reason: DropSuperseded, Sample: smp})
}

// Dropped implements throttle.Observer.
func (s *session) Dropped(smp location.Sample) {
	s.c.events.OnDrop(DropEvent{Reason: DropStopped, Sample: smp})
}
