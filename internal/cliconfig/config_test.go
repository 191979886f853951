package cliconfig

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Home = "/tmp/bgloc"
	cfg.TrackFile = "/tmp/track.yaml"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("ListenAddr = %v, want %v", cfg.ListenAddr, DefaultListenAddr)
	}
	if cfg.DispatcherHandle != DefaultDispatcherHandle {
		t.Errorf("DispatcherHandle = %v, want %v", cfg.DispatcherHandle, DefaultDispatcherHandle)
	}
	if cfg.WebhookMaxTries != 5 {
		t.Errorf("WebhookMaxTries = %v, want 5", cfg.WebhookMaxTries)
	}
	if !cfg.WatchStore {
		t.Error("WatchStore = false, want true")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid minimal config", mutate: func(*Config) {}},
		{name: "missing track", mutate: func(c *Config) { c.TrackFile = "" }, wantErr: true},
		{name: "zero webhook timeout", mutate: func(c *Config) { c.WebhookTimeout = 0 }, wantErr: true},
		{name: "zero webhook tries", mutate: func(c *Config) { c.WebhookMaxTries = 0 }, wantErr: true},
		{name: "zero dispatcher handle", mutate: func(c *Config) { c.DispatcherHandle = 0 }, wantErr: true},
		{name: "negative permission poll", mutate: func(c *Config) { c.PermissionPoll = -time.Second }, wantErr: true},
		{name: "disabled permission poll", mutate: func(c *Config) { c.PermissionPoll = 0 }},
		{name: "unknown log level", mutate: func(c *Config) { c.LogLevel = "chatty" }, wantErr: true},
		{name: "negative callback handle", mutate: func(c *Config) { c.CallbackHandle = -42 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Validate_Derivations(t *testing.T) {
	c1 := validConfig()
	c1.Home = ""
	c1.ListenAddr = ""
	c1.WebhookURL = "http://hooks.local/location/"
	if err := c1.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if !strings.HasSuffix(c1.Home, ".bgloc") {
		t.Errorf("Home = %v, want suffix .bgloc", c1.Home)
	}
	if c1.ListenAddr != DefaultListenAddr {
		t.Errorf("ListenAddr = %v, want %v", c1.ListenAddr, DefaultListenAddr)
	}
	if c1.WebhookURL != "http://hooks.local/location" {
		t.Errorf("WebhookURL = %v, want trailing slash trimmed", c1.WebhookURL)
	}

	c2 := validConfig()
	if err := c2.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if c2.LeasePath() != "/tmp/bgloc/keepalive.lock" {
		t.Errorf("LeasePath() = %v", c2.LeasePath())
	}
	if c2.StoreDir() != "/tmp/bgloc" {
		t.Errorf("StoreDir() = %v", c2.StoreDir())
	}
}

func TestConfig_UsesPostgres(t *testing.T) {
	tests := []struct {
		dsn  string
		want bool
	}{
		{"", false},
		{"postgres://bgloc@localhost/bgloc", true},
		{"postgresql://bgloc@localhost/bgloc?sslmode=disable", true},
		{"/var/lib/bgloc", false},
	}
	for _, tt := range tests {
		c := Config{StoreDSN: tt.dsn}
		if got := c.UsesPostgres(); got != tt.want {
			t.Errorf("UsesPostgres(%q) = %v, want %v", tt.dsn, got, tt.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, zerolog.WarnLevel)

	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message written at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn message missing: %q", out)
	}
}
