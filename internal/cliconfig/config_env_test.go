package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"BGLOC_HOME":            "/env/home",
				"BGLOC_TRACK":           "/env/track.yaml",
				"BGLOC_PERMISSION_POLL": "10s",
				"BGLOC_CALLBACK_HANDLE": "77",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Home:           "/env/home",
				TrackFile:      "/env/track.yaml",
				PermissionPoll: 10 * time.Second,
				CallbackHandle: 77,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"BGLOC_HOME":  "/env/home",
				"BGLOC_TRACK": "/env/track.yaml",
			},
			changed: map[string]bool{"home": true},
			initial: Config{TrackFile: "/flag/track.yaml"},
			expected: Config{
				TrackFile: "/env/track.yaml",
			},
		},
		{
			name:    "returns error for invalid duration",
			envVars: map[string]string{"BGLOC_WEBHOOK_TIMEOUT": "not-a-duration"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid int",
			envVars: map[string]string{"BGLOC_WEBHOOK_MAX_TRIES": "not-a-number"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid handle",
			envVars: map[string]string{"BGLOC_DISPATCHER_HANDLE": "0x12"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:     "handles bool '1' as true",
			envVars:  map[string]string{"BGLOC_FOREGROUND_RELEASE": "1"},
			changed:  map[string]bool{},
			expected: Config{ForegroundRelease: true},
		},
		{
			name:     "handles bool 'false' as false",
			envVars:  map[string]string{"BGLOC_WATCH_STORE": "false"},
			changed:  map[string]bool{},
			initial:  Config{WatchStore: true},
			expected: Config{WatchStore: false},
		},
		{
			name: "handles all field types correctly",
			envVars: map[string]string{
				"BGLOC_HOME":               "/home",
				"BGLOC_STORE_DSN":          "postgres://localhost/bgloc",
				"BGLOC_LISTEN":             ":9000",
				"BGLOC_TRACK":              "/track.yaml",
				"BGLOC_WEBHOOK_URL":        "http://example.com",
				"BGLOC_WEBHOOK_TOKEN":      "secret",
				"BGLOC_WEBHOOK_TIMEOUT":    "30s",
				"BGLOC_WEBHOOK_MAX_TRIES":  "3",
				"BGLOC_CALLBACK_HANDLE":    "-5",
				"BGLOC_DISPATCHER_HANDLE":  "6",
				"BGLOC_FOREGROUND_RELEASE": "true",
				"BGLOC_PERMISSION_POLL":    "1m",
				"BGLOC_WATCH_STORE":        "1",
				"BGLOC_LOG_LEVEL":          "debug",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Home:              "/home",
				StoreDSN:          "postgres://localhost/bgloc",
				ListenAddr:        ":9000",
				TrackFile:         "/track.yaml",
				WebhookURL:        "http://example.com",
				WebhookToken:      "secret",
				WebhookTimeout:    30 * time.Second,
				WebhookMaxTries:   3,
				CallbackHandle:    -5,
				DispatcherHandle:  6,
				ForegroundRelease: true,
				PermissionPoll:    time.Minute,
				WatchStore:        true,
				LogLevel:          "debug",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr && err == nil {
				t.Error("ApplyEnvConfig() expected error but got nil")
				return
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ApplyEnvConfig() unexpected error: %v", err)
				return
			}

			if !tt.wantErr && cfg != tt.expected {
				t.Errorf("ApplyEnvConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}
