package location

import (
	"context"
	"time"
)

// FixHandler receives provider callbacks. Calls may arrive on a
// provider-owned goroutine but are never concurrent for one subscription.
type FixHandler interface {
	HandleFix(Fix)
	HandleError(error)
}

// Subscription is an active provider registration.
//
// Cancel is synchronous: it blocks until any in-flight handler call has
// returned, and the handler receives nothing afterwards. Cancel is safe to
// call more than once.
type Subscription interface {
	Cancel()
}

// UpdateRequest configures scheduled updates on a Manager.
type UpdateRequest struct {
	Interval          time.Duration
	MinDistanceMeters float64
}

// Manager is the platform's callback-based location service.
type Manager interface {
	// RequestUpdates registers for scheduled updates. The provider applies
	// MinDistanceMeters natively.
	RequestUpdates(req UpdateRequest, h FixHandler) (Subscription, error)

	// MonitorSignificantChanges registers for coarse, low-power wake events.
	MonitorSignificantChanges(h FixHandler) (Subscription, error)
}

// Update is one element of a live feed. Exactly one of Fix and Err is set,
// except for heartbeat updates which carry neither.
type Update struct {
	Fix *Fix
	Err error
}

// LiveFeed is the platform's asynchronous update stream.
type LiveFeed interface {
	// Open starts a stream. The channel is closed when ctx is cancelled or
	// the feed ends. An Update carrying Err is the last one on the channel.
	Open(ctx context.Context) (<-chan Update, error)
}

// Sources bundles what a strategy may read from. Feed may be nil on
// platforms without a live feed.
type Sources struct {
	Manager Manager
	Feed    LiveFeed
	Battery Battery
}
