package fetcher

import (
	"github.com/bft-labs/bgloc/pkg/dispatch"
	"github.com/bft-labs/bgloc/pkg/lifecycle"
	"github.com/bft-labs/bgloc/pkg/location"
)

// EventHandler receives controller events. Methods may be called from any
// goroutine and must not block or call back into the Controller.
type EventHandler interface {
	OnStateChange(StateChangeEvent)
	OnSample(SampleEvent)
	OnDelivery(DeliveryEvent)
	OnDrop(DropEvent)
	OnDispatch(DispatchEvent)
	OnLease(LeaseEvent)
}

// StateChangeEvent reports a lifecycle transition.
type StateChangeEvent struct {
	Previous lifecycle.State
	Current  lifecycle.State
	Reason   string
}

// SampleEvent reports a sample produced by the active strategy, before
// pacing.
type SampleEvent struct {
	Mode   location.Mode
	Sample location.Sample
}

// DeliveryEvent reports an event handed to the callback environment.
type DeliveryEvent struct {
	Event dispatch.CallbackEvent
}

// DropReason says why a sample was not delivered.
type DropReason string

const (
	DropSuperseded    DropReason = "superseded"
	DropStopped       DropReason = "stopped"
	DropNotDispatched DropReason = "not_dispatched"
	// DropEnvironment is reported by hosts whose environment lost an
	// event after the controller handed it over.
	DropEnvironment DropReason = "environment"
)

// DropEvent reports a sample that will never be delivered.
type DropEvent struct {
	Reason DropReason
	Sample location.Sample
}

// DispatchEvent reports a launch attempt of the callback environment.
type DispatchEvent struct {
	Handle int64
	Err    error
}

// LeaseEvent reports the background lease being taken or given back.
type LeaseEvent struct {
	Held bool
}

// NopEventHandler ignores every event. Embed it to implement only the
// methods you need.
type NopEventHandler struct{}

func (NopEventHandler) OnStateChange(StateChangeEvent) {}
func (NopEventHandler) OnSample(SampleEvent)           {}
func (NopEventHandler) OnDelivery(DeliveryEvent)       {}
func (NopEventHandler) OnDrop(DropEvent)               {}
func (NopEventHandler) OnDispatch(DispatchEvent)       {}
func (NopEventHandler) OnLease(LeaseEvent)             {}

// eventEmitterWrapper adapts EventHandler to lifecycle.EventEmitter.
type eventEmitterWrapper struct {
	handler EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current lifecycle.State, reason string) {
	e.handler.OnStateChange(StateChangeEvent{
		Previous: previous,
		Current:  current,
		Reason:   reason,
	})
}
