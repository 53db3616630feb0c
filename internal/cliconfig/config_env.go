package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (PIT_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("broker-host", os.Getenv("PIT_BROKER_HOST"), &cfg.BrokerHost)
	if err := s.setIntFromString("broker-port", os.Getenv("PIT_BROKER_PORT"), &cfg.BrokerPort); err != nil {
		return err
	}
	s.setString("broker-url", os.Getenv("PIT_BROKER_URL"), &cfg.BrokerURL)
	s.setString("broker-login", os.Getenv("PIT_BROKER_LOGIN"), &cfg.BrokerLogin)
	s.setString("broker-passcode", os.Getenv("PIT_BROKER_PASSCODE"), &cfg.BrokerPasscode)
	s.setString("queue", os.Getenv("PIT_QUEUE"), &cfg.Queue)

	s.setString("index-backend", os.Getenv("PIT_INDEX_BACKEND"), &cfg.IndexBackend)
	s.setString("index-url", os.Getenv("PIT_INDEX_URL"), &cfg.IndexURL)
	s.setString("index-dir", os.Getenv("PIT_INDEX_DIR"), &cfg.IndexDir)
	s.setString("index-name", os.Getenv("PIT_INDEX_NAME"), &cfg.IndexName)

	s.setString("repo-rewrite-host", os.Getenv("PIT_REPO_REWRITE_HOST"), &cfg.RepoRewriteHost)
	if err := s.setFloatFromString("fetch-rate", os.Getenv("PIT_FETCH_RATE"), &cfg.FetchRate); err != nil {
		return err
	}
	if err := s.setIntFromString("concurrency", os.Getenv("PIT_CONCURRENCY"), &cfg.Concurrency); err != nil {
		return err
	}
	s.setString("metrics-addr", os.Getenv("PIT_METRICS_ADDR"), &cfg.MetricsAddr)

	if err := s.setDuration("connect-timeout", os.Getenv("PIT_CONNECT_TIMEOUT"), &cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("heartbeat", os.Getenv("PIT_HEARTBEAT"), &cfg.Heartbeat); err != nil {
		return err
	}
	if err := s.setFloatFromString("heartbeat-grace", os.Getenv("PIT_HEARTBEAT_GRACE"), &cfg.HeartbeatGrace); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", os.Getenv("PIT_SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}

	s.setString("log-level", os.Getenv("PIT_LOG_LEVEL"), &cfg.LogLevel)
	s.setBoolFromString("log-json", os.Getenv("PIT_LOG_JSON"), &cfg.LogJSON)

	return nil
}
