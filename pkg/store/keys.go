package store

import "time"

// Persisted keys. The names are shared with earlier platform builds and
// must not change.
const (
	KeyCallbackHandle   = "rawHandle"
	KeyDispatcherHandle = "dispatcherRawHandle"
	KeyActivated        = "isActivated"
	KeyMode             = "mode"
	KeyUseKeepAlive     = "useBackgroundActivitySessionManager"
	KeyDistanceFilter   = "distanceFilter"
	KeyInterval         = "interval"
)

// Defaults applied when a key is unset.
const (
	DefaultMinInterval       = 5 * time.Second
	DefaultMinDistanceMeters = 10.0
	DefaultUseKeepAlive      = true
)
