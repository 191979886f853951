package location

import (
	"fmt"
	"time"

	"github.com/bft-labs/bgloc/pkg/log"
)

// Listener receives a strategy's output.
type Listener interface {
	OnSample(Sample)

	// OnError reports a *SourceError that the strategy could not absorb.
	// Permission failures arrive here and end the session.
	OnError(error)
}

// Strategy is one way of producing samples.
//
// Start registers l and begins sampling; starting a running strategy
// restarts it. Stop is synchronous and idempotent. Stop must not be called
// from inside a Listener callback.
type Strategy interface {
	Mode() Mode
	Start(l Listener) error
	Stop()
}

// Settings are the sampling parameters a strategy is built with.
type Settings struct {
	MinInterval       time.Duration
	MinDistanceMeters float64
}

// NewStrategy builds the strategy for mode. Streaming and hybrid fall back
// to polling when src has no live feed.
func NewStrategy(mode Mode, src Sources, settings Settings, logger log.Logger) (Strategy, error) {
	logger = log.OrNoop(logger)
	if src.Battery == nil {
		src.Battery = NoBattery
	}

	switch mode {
	case ModePolling:
	case ModeStreaming, ModeHybrid:
		if src.Feed == nil {
			if src.Manager == nil {
				return nil, ErrNoSource
			}
			logger.Warn("live feed unavailable, falling back to polling",
				log.String("requested_mode", string(mode)))
			mode = ModePolling
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, string(mode))
	}

	switch mode {
	case ModeStreaming:
		return NewStreaming(src.Feed, src.Battery, settings, logger), nil
	case ModeHybrid:
		if src.Manager == nil {
			return nil, ErrNoSource
		}
		return NewHybrid(src.Manager, src.Feed, src.Battery, settings, logger), nil
	default:
		if src.Manager == nil {
			return nil, ErrNoSource
		}
		return NewPolling(src.Manager, src.Battery, settings, logger), nil
	}
}
