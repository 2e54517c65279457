package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds the configuration for the metrics server.
type Config struct {
	Enabled bool
	Address string
	Path    string
}

// NoopServer is a no-op implementation of the Server interface.
// It does nothing when started or shut down.
type NoopServer struct{}

// Start is a no-op that returns immediately.
func (n *NoopServer) Start(ctx context.Context) error {
	return nil
}

// Shutdown is a no-op that returns immediately.
func (n *NoopServer) Shutdown(ctx context.Context) error {
	return nil
}

// New creates a new Collector and Server based on the provided
// configuration. When cfg.Enabled is false it returns no-op
// implementations so the rest of the system never has to branch on
// whether metrics are turned on; when true it returns a
// PrometheusCollector registered against the default registerer (the one
// promhttp.Handler, used by PrometheusServer, serves) and a
// PrometheusServer listening at cfg.Address/cfg.Path.
func New(cfg Config) (Collector, Server) {
	if !cfg.Enabled {
		return &NoopCollector{}, &NoopServer{}
	}
	return NewPrometheusCollector(prometheus.DefaultRegisterer), NewPrometheusServer(cfg.Address, cfg.Path)
}
