package config

import (
	"os"
	"strconv"
	"time"
)

// ApplyEnv applies SENDMAIL_* environment variable overrides to cfg.
// Environment variables take precedence over the INI file but are
// overridden by command-line flags.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv("SENDMAIL_SPOOL_PATH"); v != "" {
		cfg.SpoolPath = v
	}
	if v := os.Getenv("SENDMAIL_HOSTNAME"); v != "" {
		cfg.Hostname = v
	}
	if v := os.Getenv("SENDMAIL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("SENDMAIL_INTERVAL"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil {
			cfg.Interval = time.Duration(seconds) * time.Second
		}
	}
	if v := os.Getenv("SENDMAIL_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("SENDMAIL_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("SENDMAIL_TLS"); v != "" {
		if policy, err := parseTLSPolicy(v); err == nil {
			cfg.TLS = policy
		}
	}
	if v := os.Getenv("SENDMAIL_WORKERS"); v != "" {
		if workers, err := strconv.Atoi(v); err == nil {
			cfg.Workers = workers
		}
	}
	if v := os.Getenv("SENDMAIL_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("SENDMAIL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SENDMAIL_DAEMON"); v != "" {
		if daemon, err := strconv.ParseBool(v); err == nil {
			cfg.Daemon = daemon
		}
	}
	return cfg
}
