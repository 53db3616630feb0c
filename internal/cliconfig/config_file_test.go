package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name: "applies all valid config values",
			fileConfig: FileConfig{
				BrokerHost:     "mq.example.edu",
				BrokerPort:     61614,
				Queue:          "/queue/theses",
				ConnectTimeout: "10s",
				HeartbeatGrace: 3,
				Concurrency:    4,
				LogJSON:        &trueVal,
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				BrokerHost:     "mq.example.edu",
				BrokerPort:     61614,
				Queue:          "/queue/theses",
				ConnectTimeout: 10 * time.Second,
				HeartbeatGrace: 3,
				Concurrency:    4,
				LogJSON:        true,
			},
		},
		{
			name: "respects changed flags",
			fileConfig: FileConfig{
				BrokerHost: "file-host",
				Queue:      "/queue/file",
			},
			changed: map[string]bool{"broker-host": true},
			initial: Config{BrokerHost: "flag-host"},
			expected: Config{
				BrokerHost: "flag-host",
				Queue:      "/queue/file",
			},
		},
		{
			name:       "zero values keep defaults",
			fileConfig: FileConfig{},
			changed:    map[string]bool{},
			initial:    Config{BrokerPort: 61613, Concurrency: 10},
			expected:   Config{BrokerPort: 61613, Concurrency: 10},
		},
		{
			name:       "invalid duration",
			fileConfig: FileConfig{Heartbeat: "soon"},
			changed:    map[string]bool{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ApplyFileConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if cfg != tt.expected {
				t.Errorf("ApplyFileConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	tomlContent := `
broker_host = "mq.example.edu"
broker_port = 61613
queue = "/queue/fedora"
index_backend = "bleve"
index_dir = "/var/lib/pit"
heartbeat = "30s"
heartbeat_grace = 2.5
log_level = "debug"
log_json = true
`
	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	if fc.BrokerHost != "mq.example.edu" {
		t.Errorf("BrokerHost = %v, want mq.example.edu", fc.BrokerHost)
	}
	if fc.IndexBackend != BackendBleve || fc.IndexDir != "/var/lib/pit" {
		t.Errorf("index = %v %v, want bleve /var/lib/pit", fc.IndexBackend, fc.IndexDir)
	}
	if fc.Heartbeat != "30s" || fc.HeartbeatGrace != 2.5 {
		t.Errorf("heartbeat = %v x %v, want 30s x 2.5", fc.Heartbeat, fc.HeartbeatGrace)
	}
	if fc.LogLevel != "debug" {
		t.Errorf("LogLevel = %v, want debug", fc.LogLevel)
	}
	if fc.LogJSON == nil || !*fc.LogJSON {
		t.Errorf("LogJSON = %v, want true", fc.LogJSON)
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	_, err := LoadFileConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("LoadFileConfig() expected error for nonexistent file")
	}
}

func TestLoadFileConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.toml")

	invalidContent := `
queue = "/queue/fedora"
this is not valid toml
`
	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	if _, err := LoadFileConfig(configPath); err == nil {
		t.Error("LoadFileConfig() expected error for invalid TOML")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()
	if path != "" && !strings.Contains(path, ".pit") {
		t.Errorf("DefaultConfigPath() = %v, should contain .pit", path)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "exists.txt")

	if err := os.WriteFile(existingFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	if !FileExists(existingFile) {
		t.Error("FileExists() = false, want true for existing file")
	}
	if FileExists(filepath.Join(tmpDir, "nonexistent.txt")) {
		t.Error("FileExists() = true, want false for nonexistent file")
	}
}
