package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/bft-labs/bgloc/pkg/location"
)

// ErrInvalidConfig is returned for out-of-range sampling parameters.
var ErrInvalidConfig = errors.New("store: invalid sampling config")

// SamplingConfig is the persisted sampling configuration.
type SamplingConfig struct {
	// MinInterval is stored in whole seconds.
	MinInterval            time.Duration
	MinDistanceMeters      float64
	Mode                   location.Mode
	UseBackgroundKeepAlive bool
}

// DefaultSamplingConfig returns the configuration used before anything has
// been stored.
func DefaultSamplingConfig() SamplingConfig {
	return SamplingConfig{
		MinInterval:            DefaultMinInterval,
		MinDistanceMeters:      DefaultMinDistanceMeters,
		Mode:                   location.DefaultMode,
		UseBackgroundKeepAlive: DefaultUseKeepAlive,
	}
}

// Validate checks ranges.
func (c SamplingConfig) Validate() error {
	if c.MinInterval < 0 {
		return fmt.Errorf("%w: interval must not be negative", ErrInvalidConfig)
	}
	if c.MinInterval%time.Second != 0 {
		return fmt.Errorf("%w: interval %s is not a whole number of seconds", ErrInvalidConfig, c.MinInterval)
	}
	if c.MinDistanceMeters < 0 || math.IsNaN(c.MinDistanceMeters) || math.IsInf(c.MinDistanceMeters, 0) {
		return fmt.Errorf("%w: distance filter must be a non-negative number", ErrInvalidConfig)
	}
	if !c.Mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidConfig, string(c.Mode))
	}
	return nil
}

// IntervalSeconds returns MinInterval in seconds. Validate guarantees
// there is no remainder.
func (c SamplingConfig) IntervalSeconds() int64 {
	return int64(c.MinInterval / time.Second)
}

// ActivationState is the persisted activation and callback binding.
type ActivationState struct {
	Active           bool
	CallbackHandle   int64
	DispatcherHandle int64
}

// Settings reads and writes controller state.
type Settings struct {
	kv *KV
}

// NewSettings wraps kv.
func NewSettings(kv *KV) *Settings {
	return &Settings{kv: kv}
}

// SamplingConfig reads the sampling configuration, applying defaults for
// unset keys. Legacy mode names are normalized; an unrecognized mode falls
// back to the default.
func (s *Settings) SamplingConfig(ctx context.Context) (SamplingConfig, error) {
	cfg := DefaultSamplingConfig()

	secs, err := s.kv.Int64(ctx, KeyInterval, int64(DefaultMinInterval/time.Second))
	if err != nil {
		return cfg, err
	}
	dist, err := s.kv.Float64(ctx, KeyDistanceFilter, DefaultMinDistanceMeters)
	if err != nil {
		return cfg, err
	}
	rawMode, err := s.kv.String(ctx, KeyMode, string(location.DefaultMode))
	if err != nil {
		return cfg, err
	}
	keep, err := s.kv.Bool(ctx, KeyUseKeepAlive, DefaultUseKeepAlive)
	if err != nil {
		return cfg, err
	}

	cfg.MinInterval = time.Duration(secs) * time.Second
	cfg.MinDistanceMeters = dist
	if mode, err := location.ParseMode(rawMode); err == nil {
		cfg.Mode = mode
	}
	cfg.UseBackgroundKeepAlive = keep
	return cfg, nil
}

// SaveSamplingConfig validates and writes cfg in one backend operation.
func (s *Settings) SaveSamplingConfig(ctx context.Context, cfg SamplingConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return s.kv.Set(ctx, map[string]string{
		KeyInterval:       FormatInt64(cfg.IntervalSeconds()),
		KeyDistanceFilter: FormatFloat64(cfg.MinDistanceMeters),
		KeyMode:           string(cfg.Mode),
		KeyUseKeepAlive:   FormatBool(cfg.UseBackgroundKeepAlive),
	})
}

// Activation reads the activation flag and callback handles.
func (s *Settings) Activation(ctx context.Context) (ActivationState, error) {
	var st ActivationState
	var err error
	if st.Active, err = s.kv.Bool(ctx, KeyActivated, false); err != nil {
		return st, err
	}
	if st.CallbackHandle, err = s.kv.Int64(ctx, KeyCallbackHandle, 0); err != nil {
		return st, err
	}
	if st.DispatcherHandle, err = s.kv.Int64(ctx, KeyDispatcherHandle, 0); err != nil {
		return st, err
	}
	return st, nil
}

// IsActive reads the activation flag.
func (s *Settings) IsActive(ctx context.Context) (bool, error) {
	return s.kv.Bool(ctx, KeyActivated, false)
}

// SetActive writes the activation flag.
func (s *Settings) SetActive(ctx context.Context, active bool) error {
	return s.kv.SetBool(ctx, KeyActivated, active)
}

// SetHandles writes both callback handles together.
func (s *Settings) SetHandles(ctx context.Context, callback, dispatcher int64) error {
	return s.kv.Set(ctx, map[string]string{
		KeyCallbackHandle:   FormatInt64(callback),
		KeyDispatcherHandle: FormatInt64(dispatcher),
	})
}

// CallbackHandle reads the user callback handle. Zero means unset.
func (s *Settings) CallbackHandle(ctx context.Context) (int64, error) {
	return s.kv.Int64(ctx, KeyCallbackHandle, 0)
}

// DispatcherHandle reads the dispatcher handle. Zero means unset.
func (s *Settings) DispatcherHandle(ctx context.Context) (int64, error) {
	return s.kv.Int64(ctx, KeyDispatcherHandle, 0)
}
