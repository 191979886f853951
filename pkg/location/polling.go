package location

import (
	"sync"

	"github.com/bft-labs/bgloc/pkg/log"
)

// Polling subscribes to scheduled updates from a Manager.
type Polling struct {
	manager  Manager
	battery  Battery
	settings Settings
	logger   log.Logger

	mu       sync.Mutex
	sub      Subscription
	listener Listener
	gen      uint64
}

// NewPolling creates a polling strategy.
func NewPolling(m Manager, b Battery, settings Settings, logger log.Logger) *Polling {
	if b == nil {
		b = NoBattery
	}
	return &Polling{
		manager:  m,
		battery:  b,
		settings: settings,
		logger:   log.OrNoop(logger).With(log.String("strategy", string(ModePolling))),
	}
}

// Mode implements Strategy.
func (p *Polling) Mode() Mode { return ModePolling }

// Start implements Strategy.
func (p *Polling) Start(l Listener) error {
	p.Stop()

	p.mu.Lock()
	p.gen++
	gen := p.gen
	p.listener = l
	p.mu.Unlock()

	sub, err := p.manager.RequestUpdates(UpdateRequest{
		Interval:          p.settings.MinInterval,
		MinDistanceMeters: p.settings.MinDistanceMeters,
	}, &pollingHandler{p: p, gen: gen})
	if err != nil {
		p.mu.Lock()
		if p.gen == gen {
			p.listener = nil
		}
		p.mu.Unlock()
		return sourceError(ModePolling, "request updates", err)
	}

	p.mu.Lock()
	if p.gen != gen {
		// stopped while subscribing
		p.mu.Unlock()
		sub.Cancel()
		return nil
	}
	p.sub = sub
	p.mu.Unlock()

	p.logger.Debug("polling started",
		log.Duration("interval", p.settings.MinInterval),
		log.Float64("min_distance_m", p.settings.MinDistanceMeters))
	return nil
}

// Stop implements Strategy.
func (p *Polling) Stop() {
	p.mu.Lock()
	p.gen++
	sub := p.sub
	p.sub = nil
	p.listener = nil
	p.mu.Unlock()

	if sub != nil {
		sub.Cancel()
		p.logger.Debug("polling stopped")
	}
}

func (p *Polling) current(gen uint64) Listener {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gen != gen {
		return nil
	}
	return p.listener
}

type pollingHandler struct {
	p   *Polling
	gen uint64
}

func (h *pollingHandler) HandleFix(f Fix) {
	if l := h.p.current(h.gen); l != nil {
		l.OnSample(sampleFromFix(f, h.p.battery))
	}
}

func (h *pollingHandler) HandleError(err error) {
	l := h.p.current(h.gen)
	if l == nil {
		return
	}
	serr := sourceError(ModePolling, "update", err)
	if IsPermissionDenied(serr) {
		l.OnError(serr)
		return
	}
	h.p.logger.Warn("provider reported an error", log.Err(err))
}
