package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrCorrupt is returned when a stored value cannot be parsed.
var ErrCorrupt = errors.New("store: corrupt value")

// DefaultTimeout bounds a single store operation.
const DefaultTimeout = 5 * time.Second

// Backend is raw string storage.
type Backend interface {
	// Get returns the value for key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set writes a single value.
	Set(ctx context.Context, key, value string) error

	// SetMany writes several values. Backends apply them atomically where
	// they can.
	SetMany(ctx context.Context, values map[string]string) error
}

// KV is a typed view over a Backend.
type KV struct {
	backend Backend
	timeout time.Duration
}

// NewKV wraps backend.
func NewKV(backend Backend) *KV {
	return &KV{backend: backend, timeout: DefaultTimeout}
}

// WithTimeout returns a copy of kv that bounds each operation by d.
func (kv *KV) WithTimeout(d time.Duration) *KV {
	return &KV{backend: kv.backend, timeout: d}
}

func (kv *KV) get(ctx context.Context, key string) (string, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, kv.timeout)
	defer cancel()
	v, ok, err := kv.backend.Get(ctx, key)
	if err != nil {
		return "", false, fmt.Errorf("store: get %s: %w", key, err)
	}
	return v, ok, nil
}

// String returns the value for key, or def when unset.
func (kv *KV) String(ctx context.Context, key, def string) (string, error) {
	v, ok, err := kv.get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	return v, nil
}

// Bool returns the value for key, or def when unset.
func (kv *KV) Bool(ctx context.Context, key string, def bool) (bool, error) {
	v, ok, err := kv.get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q", ErrCorrupt, key, v)
	}
	return b, nil
}

// Int64 returns the value for key, or def when unset.
func (kv *KV) Int64(ctx context.Context, key string, def int64) (int64, error) {
	v, ok, err := kv.get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q", ErrCorrupt, key, v)
	}
	return n, nil
}

// Float64 returns the value for key, or def when unset.
func (kv *KV) Float64(ctx context.Context, key string, def float64) (float64, error) {
	v, ok, err := kv.get(ctx, key)
	if err != nil || !ok {
		return def, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("%w: %s=%q", ErrCorrupt, key, v)
	}
	return f, nil
}

// SetString stores a string.
func (kv *KV) SetString(ctx context.Context, key, value string) error {
	return kv.Set(ctx, map[string]string{key: value})
}

// SetBool stores a bool.
func (kv *KV) SetBool(ctx context.Context, key string, value bool) error {
	return kv.SetString(ctx, key, FormatBool(value))
}

// Set stores several already formatted values at once.
func (kv *KV) Set(ctx context.Context, values map[string]string) error {
	ctx, cancel := context.WithTimeout(ctx, kv.timeout)
	defer cancel()
	var err error
	if len(values) == 1 {
		for k, v := range values {
			err = kv.backend.Set(ctx, k, v)
		}
	} else {
		err = kv.backend.SetMany(ctx, values)
	}
	if err != nil {
		return fmt.Errorf("store: set: %w", err)
	}
	return nil
}

// FormatBool formats a value the way KV.Bool reads it.
func FormatBool(v bool) string { return strconv.FormatBool(v) }

// FormatInt64 formats a value the way KV.Int64 reads it.
func FormatInt64(v int64) string { return strconv.FormatInt(v, 10) }

// FormatFloat64 formats a value the way KV.Float64 reads it.
func FormatFloat64(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
