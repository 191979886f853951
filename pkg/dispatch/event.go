package dispatch

import "github.com/bft-labs/bgloc/pkg/location"

// CallbackEvent is the payload handed to the callback environment.
type CallbackEvent struct {
	// CallbackHandle identifies the user callback the environment invokes.
	CallbackHandle int64   `json:"rawHandle"`
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	Speed          float64 `json:"speed"`
	// Timestamp is in Unix milliseconds.
	Timestamp float64 `json:"timestamp"`
	Bearing   float64 `json:"bearing"`
	// Battery is 0-100, or -1 when unknown.
	Battery int32 `json:"battery"`
}

// NewCallbackEvent builds the event for s addressed to callbackHandle.
func NewCallbackEvent(callbackHandle int64, s location.Sample) CallbackEvent {
	return CallbackEvent{
		CallbackHandle: callbackHandle,
		Latitude:       s.Latitude,
		Longitude:      s.Longitude,
		Speed:          s.Speed,
		Timestamp:      float64(s.TimestampMillis()),
		Bearing:        s.Bearing,
		Battery:        int32(s.Battery),
	}
}
