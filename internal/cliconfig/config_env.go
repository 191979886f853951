package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (BGLOC_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("home", os.Getenv("BGLOC_HOME"), &cfg.Home)
	s.setString("store-dsn", os.Getenv("BGLOC_STORE_DSN"), &cfg.StoreDSN)
	s.setString("listen", os.Getenv("BGLOC_LISTEN"), &cfg.ListenAddr)
	s.setString("track", os.Getenv("BGLOC_TRACK"), &cfg.TrackFile)
	s.setString("webhook-url", os.Getenv("BGLOC_WEBHOOK_URL"), &cfg.WebhookURL)
	s.setString("webhook-token", os.Getenv("BGLOC_WEBHOOK_TOKEN"), &cfg.WebhookToken)
	s.setString("log-level", os.Getenv("BGLOC_LOG_LEVEL"), &cfg.LogLevel)

	if err := s.setDuration("webhook-timeout", os.Getenv("BGLOC_WEBHOOK_TIMEOUT"), &cfg.WebhookTimeout); err != nil {
		return err
	}
	if err := s.setDuration("permission-poll", os.Getenv("BGLOC_PERMISSION_POLL"), &cfg.PermissionPoll); err != nil {
		return err
	}

	if err := s.setIntFromString("webhook-max-tries", os.Getenv("BGLOC_WEBHOOK_MAX_TRIES"), &cfg.WebhookMaxTries); err != nil {
		return err
	}
	if err := s.setInt64FromString("callback-handle", os.Getenv("BGLOC_CALLBACK_HANDLE"), &cfg.CallbackHandle); err != nil {
		return err
	}
	if err := s.setInt64FromString("dispatcher-handle", os.Getenv("BGLOC_DISPATCHER_HANDLE"), &cfg.DispatcherHandle); err != nil {
		return err
	}

	s.setBoolFromString("foreground-release", os.Getenv("BGLOC_FOREGROUND_RELEASE"), &cfg.ForegroundRelease)
	s.setBoolFromString("watch-store", os.Getenv("BGLOC_WATCH_STORE"), &cfg.WatchStore)

	return nil
}
