package location

import (
	"context"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/bft-labs/bgloc/pkg/log"
)

// Streaming reads a LiveFeed and emulates the distance filter. A failed
// feed is reopened with exponential backoff; permission failures are
// reported to the listener instead.
type Streaming struct {
	feed     LiveFeed
	battery  Battery
	settings Settings
	logger   log.Logger

	// NewBackOff builds the policy used to reopen a failed feed.
	NewBackOff func() backoff.BackOff

	// RestartDelay is the pause before a new reopen round once NewBackOff
	// has given up.
	RestartDelay time.Duration

	mu  sync.Mutex
	run *streamRun
}

type streamRun struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStreaming creates a streaming strategy.
func NewStreaming(feed LiveFeed, b Battery, settings Settings, logger log.Logger) *Streaming {
	if b == nil {
		b = NoBattery
	}
	return &Streaming{
		feed:     feed,
		battery:  b,
		settings: settings,
		logger:   log.OrNoop(logger).With(log.String("strategy", string(ModeStreaming))),
		NewBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 30 * time.Second
			return b
		},
		RestartDelay: 30 * time.Second,
	}
}

// Mode implements Strategy.
func (s *Streaming) Mode() Mode { return ModeStreaming }

// Start implements Strategy.
func (s *Streaming) Start(l Listener) error {
	s.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := s.feed.Open(ctx)
	if err != nil {
		cancel()
		return sourceError(ModeStreaming, "open feed", err)
	}

	run := &streamRun{cancel: cancel, done: make(chan struct{})}
	s.mu.Lock()
	s.run = run
	s.mu.Unlock()

	go s.consume(ctx, run, ch, l)
	s.logger.Debug("streaming started", log.Float64("min_distance_m", s.settings.MinDistanceMeters))
	return nil
}

// Stop implements Strategy.
func (s *Streaming) Stop() {
	s.mu.Lock()
	run := s.run
	s.run = nil
	s.mu.Unlock()

	if run == nil {
		return
	}
	run.cancel()
	<-run.done
	s.logger.Debug("streaming stopped")
}

func (s *Streaming) consume(ctx context.Context, run *streamRun, ch <-chan Update, l Listener) {
	defer close(run.done)

	// The filter lives for one run; a restart reports the first fix again.
	filter := newDistanceFilter(s.settings.MinDistanceMeters)
	for {
		err := s.drain(ctx, ch, filter, l)
		if ctx.Err() != nil {
			return
		}
		if IsPermissionDenied(err) {
			l.OnError(sourceError(ModeStreaming, "update", err))
			return
		}
		if err != nil {
			s.logger.Warn("live feed failed, reopening", log.Err(err))
		} else {
			s.logger.Debug("live feed ended, reopening")
		}

		ch, err = s.reopen(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			l.OnError(sourceError(ModeStreaming, "reopen feed", err))
			return
		}
	}
}

// reopen opens the feed again. Only ctx cancellation or a permission
// failure ends it; transient failures are retried indefinitely.
func (s *Streaming) reopen(ctx context.Context) (<-chan Update, error) {
	for {
		ch, err := backoff.Retry(ctx, func() (<-chan Update, error) {
			c, err := s.feed.Open(ctx)
			if IsPermissionDenied(err) {
				return nil, backoff.Permanent(err)
			}
			return c, err
		},
			backoff.WithBackOff(s.NewBackOff()),
			backoff.WithMaxElapsedTime(0),
		)
		if err == nil || ctx.Err() != nil || IsPermissionDenied(err) {
			return ch, err
		}

		s.logger.Warn("live feed still unavailable, pausing before retrying",
			log.Duration("delay", s.RestartDelay), log.Err(err))
		timer := time.NewTimer(s.RestartDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

// drain forwards updates until the channel closes, ctx ends or the feed
// reports an error.
func (s *Streaming) drain(ctx context.Context, ch <-chan Update, filter *distanceFilter, l Listener) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-ch:
			if !ok {
				return nil
			}
			if u.Err != nil {
				return u.Err
			}
			if u.Fix == nil {
				continue
			}
			if !filter.accept(*u.Fix) {
				continue
			}
			l.OnSample(sampleFromFix(*u.Fix, s.battery))
		}
	}
}
