package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultListenAddr is where the command API listens.
	DefaultListenAddr = "127.0.0.1:8765"

	// DefaultDispatcherHandle is the handle the built-in entrypoint is
	// registered under.
	DefaultDispatcherHandle int64 = 1
)

// Config holds CLI configuration for bgloc.
type Config struct {
	Home     string
	StoreDSN string

	ListenAddr string
	TrackFile  string

	WebhookURL      string
	WebhookToken    string
	WebhookTimeout  time.Duration
	WebhookMaxTries int

	CallbackHandle   int64
	DispatcherHandle int64

	ForegroundRelease bool
	PermissionPoll    time.Duration
	WatchStore        bool
	LogLevel          string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ListenAddr:       DefaultListenAddr,
		WebhookTimeout:   10 * time.Second,
		WebhookMaxTries:  5,
		DispatcherHandle: DefaultDispatcherHandle,
		PermissionPoll:   2 * time.Second,
		WatchStore:       true,
		LogLevel:         "info",
		WebhookToken:     os.Getenv("BGLOC_WEBHOOK_TOKEN"),
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.Home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("home is required: %w", err)
		}
		c.Home = filepath.Join(h, ".bgloc")
	}

	if c.TrackFile == "" {
		return fmt.Errorf("track is required")
	}

	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}

	// Ensure no trailing slash
	c.WebhookURL = strings.TrimRight(c.WebhookURL, "/")

	if c.WebhookTimeout <= 0 {
		return fmt.Errorf("webhook timeout must be positive")
	}
	if c.WebhookMaxTries <= 0 {
		return fmt.Errorf("webhook max tries must be positive")
	}
	if c.DispatcherHandle == 0 {
		return fmt.Errorf("dispatcher handle must be non-zero")
	}
	if c.PermissionPoll < 0 {
		return fmt.Errorf("permission poll interval must not be negative")
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log level: %w", err)
	}

	return nil
}

// UsesPostgres reports whether settings live in PostgreSQL rather than a
// file under Home.
func (c Config) UsesPostgres() bool {
	return strings.HasPrefix(c.StoreDSN, "postgres://") || strings.HasPrefix(c.StoreDSN, "postgresql://")
}

// StoreDir is the directory of the file settings store.
func (c Config) StoreDir() string {
	return c.Home
}

// LeasePath is the marker file used as the background keep-alive lease.
func (c Config) LeasePath() string {
	return filepath.Join(c.Home, "keepalive.lock")
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt64 sets an int64 value if non-zero and flag not changed.
func (s *configSetter) setInt64(flag string, value int64, dst *int64) {
	if value == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setInt64FromString parses a callback handle. Handles are opaque and may
// be negative.
func (s *configSetter) setInt64FromString(flag, value string, dst *int64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
