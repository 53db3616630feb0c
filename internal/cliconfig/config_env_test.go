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
				"PIT_BROKER_HOST":      "env-host",
				"PIT_BROKER_PORT":      "61614",
				"PIT_BROKER_PASSCODE":  "secret",
				"PIT_INDEX_BACKEND":    "bleve",
				"PIT_HEARTBEAT":        "10s",
				"PIT_HEARTBEAT_GRACE":  "1.5",
				"PIT_FETCH_RATE":       "20",
				"PIT_LOG_JSON":         "1",
				"PIT_SHUTDOWN_TIMEOUT": "1m",
			},
			changed: map[string]bool{},
			expected: Config{
				BrokerHost:      "env-host",
				BrokerPort:      61614,
				BrokerPasscode:  "secret",
				IndexBackend:    "bleve",
				Heartbeat:       10 * time.Second,
				HeartbeatGrace:  1.5,
				FetchRate:       20,
				LogJSON:         true,
				ShutdownTimeout: time.Minute,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"PIT_QUEUE":      "/queue/env",
				"PIT_INDEX_NAME": "env-index",
			},
			changed:  map[string]bool{"queue": true},
			initial:  Config{Queue: "/queue/flag"},
			expected: Config{Queue: "/queue/flag", IndexName: "env-index"},
		},
		{
			name:    "invalid duration",
			envVars: map[string]string{"PIT_CONNECT_TIMEOUT": "not-a-duration"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "invalid int",
			envVars: map[string]string{"PIT_BROKER_PORT": "not-a-number"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "invalid float",
			envVars: map[string]string{"PIT_HEARTBEAT_GRACE": "lots"},
			changed: map[string]bool{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyEnvConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg != tt.expected {
				t.Errorf("ApplyEnvConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

// Precedence order: CLI > Env > File.
func TestConfigPrecedence(t *testing.T) {
	fileConf := FileConfig{
		BrokerHost: "file-host",
		Queue:      "/queue/file",
		IndexName:  "file-index",
	}

	t.Setenv("PIT_BROKER_HOST", "env-host")
	t.Setenv("PIT_QUEUE", "/queue/env")

	changed := map[string]bool{"broker-host": true}
	cfg := Config{BrokerHost: "cli-host"}

	if err := ApplyFileConfig(&cfg, fileConf, changed); err != nil {
		t.Fatalf("ApplyFileConfig failed: %v", err)
	}
	if err := ApplyEnvConfig(&cfg, changed); err != nil {
		t.Fatalf("ApplyEnvConfig failed: %v", err)
	}

	if cfg.BrokerHost != "cli-host" {
		t.Errorf("BrokerHost = %v, want cli-host (CLI should win)", cfg.BrokerHost)
	}
	if cfg.Queue != "/queue/env" {
		t.Errorf("Queue = %v, want /queue/env (env should override file)", cfg.Queue)
	}
	if cfg.IndexName != "file-index" {
		t.Errorf("IndexName = %v, want file-index (file should set)", cfg.IndexName)
	}
}
