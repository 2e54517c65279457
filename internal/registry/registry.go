// Package registry loads a declarative TOML file naming the mailers and
// delivery facades a deployment wants, and builds the corresponding
// smtptransport.Mailer and delivery.Direct/delivery.Queued values from it.
// It carries no permission or name-vocabulary layer; it exists purely to
// turn a handful of named sections into constructor arguments.
package registry

import (
	"fmt"
	"log/slog"
	"os"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/infodancer/sendmail/internal/delivery"
	"github.com/infodancer/sendmail/internal/smtptransport"
)

// MailerConfig names one outbound SMTP relay.
type MailerConfig struct {
	Name     string `toml:"name"`
	Hostname string `toml:"hostname"`
	Port     int    `toml:"port"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	TLS      string `toml:"tls"`
}

// DeliveryConfig names one delivery facade, either "direct" (relays
// through a named mailer) or "queued" (spools to a directory).
type DeliveryConfig struct {
	Name      string `toml:"name"`
	Type      string `toml:"type"`
	Mailer    string `toml:"mailer"`
	SpoolPath string `toml:"spool_path"`
	Hostname  string `toml:"hostname"`
}

// File is the top-level shape of a registry TOML document.
type File struct {
	Mailer   []MailerConfig   `toml:"mailer"`
	Delivery []DeliveryConfig `toml:"delivery"`
}

// Registry resolves mailer and delivery facade configuration by name.
type Registry struct {
	mailers    map[string]MailerConfig
	deliveries map[string]DeliveryConfig
}

// ErrNotFound is returned when a named mailer or delivery entry does not
// exist in the registry.
var ErrNotFound = fmt.Errorf("registry: entry not found")

// Load reads and parses a registry TOML file from path.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("registry: reading %s: %w", path, err)
	}

	var file File
	if err := toml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("registry: parsing %s: %w", path, err)
	}

	r := &Registry{
		mailers:    make(map[string]MailerConfig, len(file.Mailer)),
		deliveries: make(map[string]DeliveryConfig, len(file.Delivery)),
	}
	for _, m := range file.Mailer {
		r.mailers[m.Name] = m
	}
	for _, d := range file.Delivery {
		r.deliveries[d.Name] = d
	}
	return r, nil
}

// Mailer builds a *smtptransport.Mailer for the named mailer section.
func (r *Registry) Mailer(name string, logger *slog.Logger) (*smtptransport.Mailer, error) {
	mc, ok := r.mailers[name]
	if !ok {
		return nil, fmt.Errorf("%w: mailer %q", ErrNotFound, name)
	}

	policy, err := parseTLSPolicy(mc.TLS)
	if err != nil {
		return nil, fmt.Errorf("registry: mailer %q: %w", name, err)
	}

	cfg := smtptransport.Config{
		Hostname: mc.Hostname,
		Port:     mc.Port,
		Username: mc.Username,
		Password: mc.Password,
		TLS:      policy,
		Logger:   logger,
	}
	return smtptransport.New(cfg), nil
}

// Delivery builds the delivery.Facade named by name. For a "direct" entry
// it builds and wires in the mailer it names; for a "queued" entry it
// builds a delivery.Queued bound to its spool path.
func (r *Registry) Delivery(name string, logger *slog.Logger) (delivery.Facade, error) {
	dc, ok := r.deliveries[name]
	if !ok {
		return nil, fmt.Errorf("%w: delivery %q", ErrNotFound, name)
	}

	switch dc.Type {
	case "direct":
		mc, ok := r.mailers[dc.Mailer]
		if !ok {
			return nil, fmt.Errorf("registry: delivery %q: %w: mailer %q", name, ErrNotFound, dc.Mailer)
		}
		policy, err := parseTLSPolicy(mc.TLS)
		if err != nil {
			return nil, fmt.Errorf("registry: delivery %q: %w", name, err)
		}
		return &delivery.Direct{
			// A fresh *smtptransport.Mailer per Send, never one shared
			// connection reused across concurrent deliveries through this
			// Direct value.
			NewTransport: func() delivery.Transport {
				return smtptransport.New(smtptransport.Config{
					Hostname: mc.Hostname,
					Port:     mc.Port,
					Username: mc.Username,
					Password: mc.Password,
					TLS:      policy,
					Logger:   logger,
				})
			},
			Hostname: dc.Hostname,
			Logger:   logger,
		}, nil
	case "queued":
		if dc.SpoolPath == "" {
			return nil, fmt.Errorf("registry: delivery %q: queued entry requires spool_path", name)
		}
		return &delivery.Queued{
			SpoolPath: dc.SpoolPath,
			Hostname:  dc.Hostname,
			Logger:    logger,
		}, nil
	default:
		return nil, fmt.Errorf("registry: delivery %q: unknown type %q", name, dc.Type)
	}
}

func parseTLSPolicy(v string) (smtptransport.TLSPolicy, error) {
	switch v {
	case "", "opportunistic":
		return smtptransport.TLSOpportunistic, nil
	case "force":
		return smtptransport.TLSForce, nil
	case "none":
		return smtptransport.TLSNone, nil
	case "implicit":
		return smtptransport.TLSImplicit, nil
	default:
		return smtptransport.TLSOpportunistic, fmt.Errorf("unknown tls policy %q", v)
	}
}
