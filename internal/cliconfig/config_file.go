package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	Home              string `toml:"home"`
	StoreDSN          string `toml:"store_dsn"`
	ListenAddr        string `toml:"listen"`
	TrackFile         string `toml:"track"`
	WebhookURL        string `toml:"webhook_url"`
	WebhookToken      string `toml:"webhook_token"`
	WebhookTimeout    string `toml:"webhook_timeout"`
	WebhookMaxTries   int    `toml:"webhook_max_tries"`
	CallbackHandle    int64  `toml:"callback_handle"`
	DispatcherHandle  int64  `toml:"dispatcher_handle"`
	ForegroundRelease *bool  `toml:"foreground_release"`
	PermissionPoll    string `toml:"permission_poll"`
	WatchStore        *bool  `toml:"watch_store"`
	LogLevel          string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.bgloc/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".bgloc", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("home", fc.Home, &cfg.Home)
	s.setString("store-dsn", fc.StoreDSN, &cfg.StoreDSN)
	s.setString("listen", fc.ListenAddr, &cfg.ListenAddr)
	s.setString("track", fc.TrackFile, &cfg.TrackFile)
	s.setString("webhook-url", fc.WebhookURL, &cfg.WebhookURL)
	s.setString("webhook-token", fc.WebhookToken, &cfg.WebhookToken)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	if err := s.setDuration("webhook-timeout", fc.WebhookTimeout, &cfg.WebhookTimeout); err != nil {
		return err
	}
	if err := s.setDuration("permission-poll", fc.PermissionPoll, &cfg.PermissionPoll); err != nil {
		return err
	}

	s.setInt("webhook-max-tries", fc.WebhookMaxTries, &cfg.WebhookMaxTries)
	s.setInt64("callback-handle", fc.CallbackHandle, &cfg.CallbackHandle)
	s.setInt64("dispatcher-handle", fc.DispatcherHandle, &cfg.DispatcherHandle)

	s.setBool("foreground-release", fc.ForegroundRelease, &cfg.ForegroundRelease)
	s.setBool("watch-store", fc.WatchStore, &cfg.WatchStore)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
