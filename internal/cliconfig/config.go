package cliconfig

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/pit/internal/domain"
)

// ErrInvalidConfig is wrapped by every Validate failure.
var ErrInvalidConfig = domain.ErrInvalidConfig

// Index backends.
const (
	BackendElastic = "elastic"
	BackendBleve   = "bleve"
)

// Config holds CLI configuration for pit.
type Config struct {
	BrokerHost     string
	BrokerPort     int
	BrokerURL      string
	BrokerLogin    string
	BrokerPasscode string
	Queue          string

	IndexBackend string
	IndexURL     string
	IndexDir     string
	IndexName    string

	RepoRewriteHost string
	FetchRate       float64
	Concurrency     int

	MetricsAddr string

	ConnectTimeout  time.Duration
	Heartbeat       time.Duration
	HeartbeatGrace  float64
	ShutdownTimeout time.Duration

	LogLevel string
	LogJSON  bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		BrokerHost:      "localhost",
		BrokerPort:      61613,
		Queue:           "/queue/fedora",
		IndexBackend:    BackendElastic,
		IndexURL:        "http://localhost:9200",
		IndexName:       "theses",
		Concurrency:     10,
		ConnectTimeout:  5 * time.Second,
		Heartbeat:       60 * time.Second,
		HeartbeatGrace:  2.5,
		ShutdownTimeout: 5 * time.Second,
		LogLevel:        "info",
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.BrokerURL == "" {
		if c.BrokerHost == "" {
			return fmt.Errorf("%w: broker-host is required (or broker-url)", ErrInvalidConfig)
		}
		if c.BrokerPort <= 0 || c.BrokerPort > 65535 {
			return fmt.Errorf("%w: broker-port %d out of range", ErrInvalidConfig, c.BrokerPort)
		}
	} else {
		u, err := url.Parse(c.BrokerURL)
		if err != nil {
			return fmt.Errorf("%w: broker-url: %v", ErrInvalidConfig, err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("%w: broker-url must be ws:// or wss://", ErrInvalidConfig)
		}
	}
	if c.Queue == "" {
		return fmt.Errorf("%w: queue is required", ErrInvalidConfig)
	}

	switch c.IndexBackend {
	case BackendElastic:
		if c.IndexURL == "" {
			return fmt.Errorf("%w: index-url is required for the elastic backend", ErrInvalidConfig)
		}
		c.IndexURL = strings.TrimRight(c.IndexURL, "/")
	case BackendBleve:
	default:
		return fmt.Errorf("%w: unknown index-backend %q", ErrInvalidConfig, c.IndexBackend)
	}
	if c.IndexName == "" {
		return fmt.Errorf("%w: index-name is required", ErrInvalidConfig)
	}

	if c.Concurrency <= 0 {
		return fmt.Errorf("%w: concurrency must be positive", ErrInvalidConfig)
	}
	if c.FetchRate < 0 {
		return fmt.Errorf("%w: fetch-rate must not be negative", ErrInvalidConfig)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("%w: connect timeout must be positive", ErrInvalidConfig)
	}
	// The broker is always asked for heartbeats; the liveness monitor
	// depends on them.
	if c.Heartbeat <= 0 {
		return fmt.Errorf("%w: heartbeat must be positive", ErrInvalidConfig)
	}
	if c.HeartbeatGrace < 1 {
		return fmt.Errorf("%w: heartbeat grace must be at least 1", ErrInvalidConfig)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown timeout must be positive", ErrInvalidConfig)
	}

	return nil
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.BrokerPasscode != "" {
		c.BrokerPasscode = "*****"
	}
	return c
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

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

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
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

// setFloatFromString parses a string to float64 and sets the destination if valid.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
