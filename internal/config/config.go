// Package config resolves the daemon's settings from, in increasing
// order of precedence: built-in defaults, an INI file, environment
// variables, and command-line flags.
package config

import (
	"fmt"
	"time"

	"github.com/infodancer/sendmail/internal/smtptransport"
)

// Config holds the fully resolved configuration for the sendmail daemon.
type Config struct {
	SpoolPath   string
	Daemon      bool
	Interval    time.Duration
	Hostname    string
	Port        int
	Username    string
	Password    string
	TLS         smtptransport.TLSPolicy
	Workers     int
	MetricsAddr string
	LogLevel    string
}

// Default returns a Config with the built-in defaults: a three-second
// poll interval, hostname "localhost", port 25, a single worker, and
// no metrics server.
func Default() Config {
	return Config{
		Interval: 3 * time.Second,
		Hostname: "localhost",
		Port:     25,
		TLS:      smtptransport.TLSOpportunistic,
		Workers:  1,
		LogLevel: "info",
	}
}

// Validate checks that the resolved configuration is usable and returns
// ErrConfiguration-wrapped errors describing the first problem found.
func (c *Config) Validate() error {
	if c.SpoolPath == "" {
		return fmt.Errorf("%w: a spool path is required", ErrConfiguration)
	}
	if c.Hostname == "" {
		return fmt.Errorf("%w: hostname is required", ErrConfiguration)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d is out of range", ErrConfiguration, c.Port)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrConfiguration)
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1", ErrConfiguration)
	}
	if c.Username != "" && c.Password == "" {
		return fmt.Errorf("%w: username given without a password", ErrConfiguration)
	}
	return nil
}
