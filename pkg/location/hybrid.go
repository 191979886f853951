package location

import (
	"context"
	"sync"

	"github.com/bft-labs/bgloc/pkg/log"
)

// HybridState is the arming state of a Hybrid strategy.
type HybridState int

const (
	// HybridIdle means the strategy is not started.
	HybridIdle HybridState = iota
	// HybridArmed means only the significant-change monitor is active.
	HybridArmed
	// HybridStreaming means a live stream is open.
	HybridStreaming
)

func (s HybridState) String() string {
	switch s {
	case HybridIdle:
		return "idle"
	case HybridArmed:
		return "armed"
	case HybridStreaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Hybrid waits for a significant-change wake, then streams live updates
// until the device is stationary or the stream fails.
type Hybrid struct {
	manager  Manager
	feed     LiveFeed
	battery  Battery
	settings Settings
	logger   log.Logger

	mu       sync.Mutex
	state    HybridState
	gen      uint64
	listener Listener
	wakeSub  Subscription
	stream   *hybridStream
}

type hybridStream struct {
	cancel  context.CancelFunc
	done    chan struct{}
	wake    Fix
	emitted bool
}

// NewHybrid creates a hybrid strategy.
func NewHybrid(m Manager, feed LiveFeed, b Battery, settings Settings, logger log.Logger) *Hybrid {
	if b == nil {
		b = NoBattery
	}
	return &Hybrid{
		manager:  m,
		feed:     feed,
		battery:  b,
		settings: settings,
		logger:   log.OrNoop(logger).With(log.String("strategy", string(ModeHybrid))),
	}
}

// Mode implements Strategy.
func (h *Hybrid) Mode() Mode { return ModeHybrid }

// State returns the current arming state.
func (h *Hybrid) State() HybridState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Start implements Strategy.
func (h *Hybrid) Start(l Listener) error {
	h.Stop()

	h.mu.Lock()
	h.gen++
	gen := h.gen
	h.listener = l
	h.state = HybridArmed
	h.mu.Unlock()

	sub, err := h.manager.MonitorSignificantChanges(&wakeHandler{h: h, gen: gen})
	if err != nil {
		h.mu.Lock()
		if h.gen == gen {
			h.listener = nil
			h.state = HybridIdle
		}
		h.mu.Unlock()
		return sourceError(ModeHybrid, "monitor significant changes", err)
	}

	h.mu.Lock()
	if h.gen != gen {
		h.mu.Unlock()
		sub.Cancel()
		return nil
	}
	h.wakeSub = sub
	h.mu.Unlock()

	h.logger.Debug("hybrid armed")
	return nil
}

// Stop implements Strategy.
func (h *Hybrid) Stop() {
	h.mu.Lock()
	h.gen++
	sub := h.wakeSub
	st := h.stream
	wasRunning := h.state != HybridIdle
	h.wakeSub = nil
	h.stream = nil
	h.listener = nil
	h.state = HybridIdle
	h.mu.Unlock()

	if sub != nil {
		sub.Cancel()
	}
	if st != nil {
		st.cancel()
		<-st.done
	}
	if wasRunning {
		h.logger.Debug("hybrid stopped")
	}
}

func (h *Hybrid) onWake(gen uint64, f Fix) {
	h.mu.Lock()
	if h.gen != gen || h.state == HybridIdle {
		h.mu.Unlock()
		return
	}
	if h.state == HybridStreaming {
		h.stream.wake = f
		h.mu.Unlock()
		return
	}

	l := h.listener
	ctx, cancel := context.WithCancel(context.Background())
	ch, err := h.feed.Open(ctx)
	if err != nil {
		cancel()
		h.mu.Unlock()
		serr := sourceError(ModeHybrid, "open feed", err)
		if IsPermissionDenied(serr) {
			l.OnError(serr)
			return
		}
		h.logger.Warn("could not arm live stream, reporting wake fix", log.Err(err))
		l.OnSample(sampleFromFix(f, h.battery))
		return
	}

	st := &hybridStream{cancel: cancel, done: make(chan struct{}), wake: f}
	h.stream = st
	h.state = HybridStreaming
	h.mu.Unlock()

	h.logger.Debug("wake received, live stream armed")
	go h.consume(ctx, st, ch, l)
}

func (h *Hybrid) onWakeError(gen uint64, err error) {
	h.mu.Lock()
	l := h.listener
	current := h.gen == gen
	h.mu.Unlock()
	if !current || l == nil {
		return
	}
	serr := sourceError(ModeHybrid, "wake", err)
	if IsPermissionDenied(serr) {
		l.OnError(serr)
		return
	}
	h.logger.Warn("significant-change monitor reported an error", log.Err(err))
}

func (h *Hybrid) consume(ctx context.Context, st *hybridStream, ch <-chan Update, l Listener) {
	defer func() {
		st.cancel()
		h.streamEnded(st)
		close(st.done)
	}()

	filter := newDistanceFilter(h.settings.MinDistanceMeters)
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-ch:
			if !ok {
				h.logger.Debug("live stream ended, back to wake monitoring")
				return
			}
			if u.Err != nil {
				if ctx.Err() != nil {
					return
				}
				h.streamFailed(st, u.Err, l)
				return
			}
			if u.Fix == nil {
				continue
			}
			if u.Fix.Stationary {
				h.markEmitted(st)
				l.OnSample(sampleFromFix(*u.Fix, h.battery))
				h.logger.Debug("device stationary, back to wake monitoring")
				return
			}
			if filter.accept(*u.Fix) {
				h.markEmitted(st)
				l.OnSample(sampleFromFix(*u.Fix, h.battery))
			}
		}
	}
}

func (h *Hybrid) streamFailed(st *hybridStream, err error, l Listener) {
	serr := sourceError(ModeHybrid, "update", err)
	if IsPermissionDenied(serr) {
		l.OnError(serr)
		return
	}
	h.logger.Warn("live stream failed, back to wake monitoring", log.Err(err))

	h.mu.Lock()
	emitted, wake := st.emitted, st.wake
	h.mu.Unlock()
	if !emitted {
		l.OnSample(sampleFromFix(wake, h.battery))
	}
}

func (h *Hybrid) markEmitted(st *hybridStream) {
	h.mu.Lock()
	st.emitted = true
	h.mu.Unlock()
}

func (h *Hybrid) streamEnded(st *hybridStream) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stream != st {
		return
	}
	h.stream = nil
	if h.state == HybridStreaming {
		h.state = HybridArmed
	}
}

type wakeHandler struct {
	h   *Hybrid
	gen uint64
}

func (w *wakeHandler) HandleFix(f Fix)       { w.h.onWake(w.gen, f) }
func (w *wakeHandler) HandleError(err error) { w.h.onWakeError(w.gen, err) }
