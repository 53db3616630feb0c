package cliconfig

import (
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	BrokerHost     string `toml:"broker_host"`
	BrokerPort     int    `toml:"broker_port"`
	BrokerURL      string `toml:"broker_url"`
	BrokerLogin    string `toml:"broker_login"`
	BrokerPasscode string `toml:"broker_passcode"`
	Queue          string `toml:"queue"`

	IndexBackend string `toml:"index_backend"`
	IndexURL     string `toml:"index_url"`
	IndexDir     string `toml:"index_dir"`
	IndexName    string `toml:"index_name"`

	RepoRewriteHost string  `toml:"repo_rewrite_host"`
	FetchRate       float64 `toml:"fetch_rate"`
	Concurrency     int     `toml:"concurrency"`

	MetricsAddr string `toml:"metrics_addr"`

	ConnectTimeout  string  `toml:"connect_timeout"`
	Heartbeat       string  `toml:"heartbeat"`
	HeartbeatGrace  float64 `toml:"heartbeat_grace"`
	ShutdownTimeout string  `toml:"shutdown_timeout"`

	LogLevel string `toml:"log_level"`
	LogJSON  *bool  `toml:"log_json"`
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

// DefaultConfigPath returns ~/.pit/config.toml, or "" without a home directory.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".pit", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("broker-host", fc.BrokerHost, &cfg.BrokerHost)
	s.setInt("broker-port", fc.BrokerPort, &cfg.BrokerPort)
	s.setString("broker-url", fc.BrokerURL, &cfg.BrokerURL)
	s.setString("broker-login", fc.BrokerLogin, &cfg.BrokerLogin)
	s.setString("broker-passcode", fc.BrokerPasscode, &cfg.BrokerPasscode)
	s.setString("queue", fc.Queue, &cfg.Queue)

	s.setString("index-backend", fc.IndexBackend, &cfg.IndexBackend)
	s.setString("index-url", fc.IndexURL, &cfg.IndexURL)
	s.setString("index-dir", fc.IndexDir, &cfg.IndexDir)
	s.setString("index-name", fc.IndexName, &cfg.IndexName)

	s.setString("repo-rewrite-host", fc.RepoRewriteHost, &cfg.RepoRewriteHost)
	s.setFloat("fetch-rate", fc.FetchRate, &cfg.FetchRate)
	s.setInt("concurrency", fc.Concurrency, &cfg.Concurrency)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)

	if err := s.setDuration("connect-timeout", fc.ConnectTimeout, &cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("heartbeat", fc.Heartbeat, &cfg.Heartbeat); err != nil {
		return err
	}
	s.setFloat("heartbeat-grace", fc.HeartbeatGrace, &cfg.HeartbeatGrace)
	if err := s.setDuration("shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}

	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setBool("log-json", fc.LogJSON, &cfg.LogJSON)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
