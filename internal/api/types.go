package api

import (
	"time"

	"github.com/bft-labs/bgloc/pkg/fetcher"
	"github.com/bft-labs/bgloc/pkg/store"
)

// CallbackRequest registers the user callback and the dispatcher entrypoint.
type CallbackRequest struct {
	CallbackHandle   int64 `json:"callbackHandle"`
	DispatcherHandle int64 `json:"dispatcherHandle"`
}

// ConfigurationBody is the wire form of the sampling configuration. Every
// field is optional on configure.
type ConfigurationBody struct {
	Interval                            *int64   `json:"interval,omitempty"`
	DistanceFilter                      *float64 `json:"distanceFilter,omitempty"`
	Mode                                *string  `json:"mode,omitempty"`
	UseBackgroundActivitySessionManager *bool    `json:"useBackgroundActivitySessionManager,omitempty"`
}

// Update converts the body to a partial controller configuration.
func (b ConfigurationBody) Update() fetcher.ConfigUpdate {
	var u fetcher.ConfigUpdate
	if b.Interval != nil {
		d := time.Duration(*b.Interval) * time.Second
		u.MinInterval = &d
	}
	u.MinDistanceMeters = b.DistanceFilter
	u.Mode = b.Mode
	u.UseBackgroundKeepAlive = b.UseBackgroundActivitySessionManager
	return u
}

// ConfigurationResponse is the full stored configuration.
type ConfigurationResponse struct {
	Interval                            int64   `json:"interval"`
	DistanceFilter                      float64 `json:"distanceFilter"`
	Mode                                string  `json:"mode"`
	UseBackgroundActivitySessionManager bool    `json:"useBackgroundActivitySessionManager"`
}

func newConfigurationResponse(cfg store.SamplingConfig) ConfigurationResponse {
	return ConfigurationResponse{
		Interval:                            cfg.IntervalSeconds(),
		DistanceFilter:                      cfg.MinDistanceMeters,
		Mode:                                string(cfg.Mode),
		UseBackgroundActivitySessionManager: cfg.UseBackgroundKeepAlive,
	}
}

// ActivatedResponse answers isActivated.
type ActivatedResponse struct {
	Activated bool `json:"activated"`
}

// PermissionRequest reports a permission change.
type PermissionRequest struct {
	Granted bool `json:"granted"`
}

// StatusResponse is returned by /health.
type StatusResponse struct {
	Status     string `json:"status"`
	State      string `json:"state"`
	Dispatched bool   `json:"dispatched"`
	LeaseHeld  bool   `json:"leaseHeld"`
}

// ErrorResponse is a standardized error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
