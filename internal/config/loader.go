package config

import (
	"flag"
	"fmt"
	"time"

	ini "gopkg.in/ini.v1"

	"github.com/infodancer/sendmail/internal/smtptransport"
)

const iniSection = "app:zope-sendmail"

// Flags holds the raw values parsed from the command line, before
// merging with lower-precedence sources.
type Flags struct {
	SpoolPath   string
	Daemon      bool
	Interval    int
	Hostname    string
	Port        int
	Username    string
	Password    string
	ForceTLS    bool
	NoTLS       bool
	ConfigPath  string
	Workers     int
	MetricsAddr string
}

// ParseFlags parses args (normally os.Args[1:]) into a Flags value. The
// spool path is the sole positional argument.
func ParseFlags(args []string) (*Flags, error) {
	fs := flag.NewFlagSet("sendmail", flag.ContinueOnError)
	f := &Flags{}

	fs.BoolVar(&f.Daemon, "daemon", false, "run continuously instead of processing the spool once")
	fs.IntVar(&f.Interval, "interval", 0, "poll interval in seconds")
	fs.StringVar(&f.Hostname, "hostname", "", "SMTP relay hostname")
	fs.IntVar(&f.Port, "port", 0, "SMTP relay port")
	fs.StringVar(&f.Username, "username", "", "SMTP AUTH username")
	fs.StringVar(&f.Password, "password", "", "SMTP AUTH password")
	fs.BoolVar(&f.ForceTLS, "force-tls", false, "require STARTTLS, fail if unavailable")
	fs.BoolVar(&f.NoTLS, "no-tls", false, "never negotiate TLS")
	fs.StringVar(&f.ConfigPath, "config", "", "path to an INI configuration file")
	fs.IntVar(&f.Workers, "workers", 0, "number of queue processor workers")
	fs.StringVar(&f.MetricsAddr, "metrics-addr", "", "address to serve Prometheus metrics on")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if fs.NArg() > 0 {
		f.SpoolPath = fs.Arg(0)
	}

	return f, nil
}

// Load resolves a Config by layering, lowest to highest precedence:
// built-in defaults, the INI file named by f.ConfigPath (if any),
// SENDMAIL_* environment variables, and the parsed flags themselves.
func Load(f *Flags) (Config, error) {
	if f.ForceTLS && f.NoTLS {
		return Config{}, fmt.Errorf("%w: --force-tls and --no-tls are mutually exclusive", ErrConfiguration)
	}
	if f.Username != "" && f.Password == "" {
		return Config{}, fmt.Errorf("%w: --username requires --password", ErrConfiguration)
	}

	cfg := Default()

	cfg, err := mergeINIFile(cfg, f.ConfigPath)
	if err != nil {
		return Config{}, err
	}

	cfg = ApplyEnv(cfg)
	cfg = ApplyFlags(cfg, f)

	return cfg, cfg.Validate()
}

// mergeINIFile merges the [app:zope-sendmail] section of path into cfg.
// An empty path is a no-op; a missing file is reported as an error,
// since the caller asked for it explicitly via --config.
func mergeINIFile(cfg Config, path string) (Config, error) {
	if path == "" {
		return cfg, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: reading %s: %v", ErrConfiguration, path, err)
	}

	sec := file.Section(iniSection)

	if v := sec.Key("hostname").String(); v != "" {
		cfg.Hostname = v
	}
	if v := sec.Key("port").String(); v != "" {
		port, err := sec.Key("port").Int()
		if err != nil {
			return cfg, fmt.Errorf("%w: invalid port in %s: %v", ErrConfiguration, path, err)
		}
		cfg.Port = port
	}
	if v := sec.Key("interval").String(); v != "" {
		seconds, err := sec.Key("interval").Int()
		if err != nil {
			return cfg, fmt.Errorf("%w: invalid interval in %s: %v", ErrConfiguration, path, err)
		}
		cfg.Interval = time.Duration(seconds) * time.Second
	}
	if v := sec.Key("username").String(); v != "" {
		cfg.Username = v
	}
	if v := sec.Key("password").String(); v != "" {
		cfg.Password = v
	}
	if v := sec.Key("tls").String(); v != "" {
		policy, err := parseTLSPolicy(v)
		if err != nil {
			return cfg, fmt.Errorf("%w: invalid tls in %s: %v", ErrConfiguration, path, err)
		}
		cfg.TLS = policy
	}
	if v := sec.Key("workers").String(); v != "" {
		workers, err := sec.Key("workers").Int()
		if err != nil {
			return cfg, fmt.Errorf("%w: invalid workers in %s: %v", ErrConfiguration, path, err)
		}
		cfg.Workers = workers
	}
	if v := sec.Key("metrics_addr").String(); v != "" {
		cfg.MetricsAddr = v
	}
	if v := sec.Key("daemon").String(); v != "" {
		daemon, err := sec.Key("daemon").Bool()
		if err != nil {
			return cfg, fmt.Errorf("%w: invalid daemon in %s: %v", ErrConfiguration, path, err)
		}
		cfg.Daemon = daemon
	}
	if v := sec.Key("log_level").String(); v != "" {
		cfg.LogLevel = v
	}
	if v := sec.Key("spool_path").String(); v != "" {
		cfg.SpoolPath = v
	}

	return cfg, nil
}

// ApplyFlags merges the parsed flags into cfg. Flags take precedence
// over every other source.
func ApplyFlags(cfg Config, f *Flags) Config {
	if f.SpoolPath != "" {
		cfg.SpoolPath = f.SpoolPath
	}
	if f.Daemon {
		cfg.Daemon = true
	}
	if f.Interval > 0 {
		cfg.Interval = time.Duration(f.Interval) * time.Second
	}
	if f.Hostname != "" {
		cfg.Hostname = f.Hostname
	}
	if f.Port > 0 {
		cfg.Port = f.Port
	}
	if f.Username != "" {
		cfg.Username = f.Username
	}
	if f.Password != "" {
		cfg.Password = f.Password
	}
	if f.ForceTLS {
		cfg.TLS = smtptransport.TLSForce
	}
	if f.NoTLS {
		cfg.TLS = smtptransport.TLSNone
	}
	if f.Workers > 0 {
		cfg.Workers = f.Workers
	}
	if f.MetricsAddr != "" {
		cfg.MetricsAddr = f.MetricsAddr
	}
	return cfg
}

func parseTLSPolicy(v string) (smtptransport.TLSPolicy, error) {
	switch v {
	case "opportunistic", "":
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
