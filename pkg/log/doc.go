// Package log provides the structured logging abstraction used by every
// bgloc component.
//
// Components depend only on the Logger interface. Two implementations are
// provided: a zerolog adapter for production and a no-op logger that is the
// default when nothing is configured.
//
//	logger := log.NewZerologAdapter()
//	gate := throttle.New(5*time.Second, sink, throttle.WithLogger(logger.With(log.String("component", "throttle"))))
//
// Fields are passed as key/value pairs built with the helpers in this
// package (String, Int, Float64, Duration, Err, ...).
package log
