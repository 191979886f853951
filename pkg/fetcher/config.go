package fetcher

import (
	"fmt"
	"time"

	"github.com/bft-labs/bgloc/pkg/location"
	"github.com/bft-labs/bgloc/pkg/store"
)

// ConfigUpdate is a partial configuration. Nil fields keep their stored
// value.
type ConfigUpdate struct {
	MinInterval            *time.Duration
	MinDistanceMeters      *float64
	Mode                   *string
	UseBackgroundKeepAlive *bool
}

// Apply merges u into cur and validates the result. Legacy mode names are
// accepted and normalized.
func (u ConfigUpdate) Apply(cur store.SamplingConfig) (store.SamplingConfig, error) {
	next := cur
	if u.MinInterval != nil {
		next.MinInterval = *u.MinInterval
	}
	if u.MinDistanceMeters != nil {
		next.MinDistanceMeters = *u.MinDistanceMeters
	}
	if u.Mode != nil {
		mode, err := location.ParseMode(*u.Mode)
		if err != nil {
			return cur, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		next.Mode = mode
	}
	if u.UseBackgroundKeepAlive != nil {
		next.UseBackgroundKeepAlive = *u.UseBackgroundKeepAlive
	}
	if err := next.Validate(); err != nil {
		return cur, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return next, nil
}

// Empty reports whether u changes nothing.
func (u ConfigUpdate) Empty() bool {
	return u.MinInterval == nil && u.MinDistanceMeters == nil && u.Mode == nil && u.UseBackgroundKeepAlive == nil
}
