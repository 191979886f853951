// Package location defines position samples, the provider capabilities a
// host platform exposes, and the interchangeable sampling strategies built
// on top of them.
//
// # Strategies
//
// A Strategy exclusively owns its provider subscriptions and reports to a
// single Listener registered by Start. Stop releases every subscription
// synchronously; once it returns the listener receives no further calls.
//
//   - Polling asks the Manager for scheduled updates and relies on the
//     provider's native distance filter.
//   - Streaming reads a LiveFeed and emulates the distance filter itself.
//   - Hybrid idles on significant-change wake events and arms a live stream
//     on the first wake. A stationary report or a stream failure tears the
//     stream down again.
//
// Distance filtering is a source-local concern. Interval pacing is applied
// downstream by package throttle regardless of the strategy in use.
package location
