package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/infodancer/sendmail/internal/smtptransport"
)

func TestParseFlagsPositionalSpoolPath(t *testing.T) {
	f, err := ParseFlags([]string{"/var/spool/sendmail"})
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	if f.SpoolPath != "/var/spool/sendmail" {
		t.Errorf("SpoolPath = %q, want /var/spool/sendmail", f.SpoolPath)
	}
}

func TestParseFlagsAllFlags(t *testing.T) {
	f, err := ParseFlags([]string{
		"--daemon",
		"--interval", "30",
		"--hostname", "relay.example.com",
		"--port", "587",
		"--username", "alice",
		"--password", "hunter2",
		"--force-tls",
		"--workers", "4",
		"--metrics-addr", ":9100",
		"/var/spool/sendmail",
	})
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	if !f.Daemon {
		t.Error("Daemon = false, want true")
	}
	if f.Interval != 30 {
		t.Errorf("Interval = %d, want 30", f.Interval)
	}
	if f.Hostname != "relay.example.com" {
		t.Errorf("Hostname = %q", f.Hostname)
	}
	if f.Port != 587 {
		t.Errorf("Port = %d, want 587", f.Port)
	}
	if f.Username != "alice" || f.Password != "hunter2" {
		t.Errorf("Username/Password = %q/%q", f.Username, f.Password)
	}
	if !f.ForceTLS {
		t.Error("ForceTLS = false, want true")
	}
	if f.Workers != 4 {
		t.Errorf("Workers = %d, want 4", f.Workers)
	}
	if f.MetricsAddr != ":9100" {
		t.Errorf("MetricsAddr = %q, want :9100", f.MetricsAddr)
	}
	if f.SpoolPath != "/var/spool/sendmail" {
		t.Errorf("SpoolPath = %q", f.SpoolPath)
	}
}

func TestLoadDefaultsWithNoConfigFile(t *testing.T) {
	f, err := ParseFlags([]string{"/var/spool/sendmail"})
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	defaults := Default()
	if cfg.Hostname != defaults.Hostname {
		t.Errorf("Hostname = %q, want default %q", cfg.Hostname, defaults.Hostname)
	}
	if cfg.Port != defaults.Port {
		t.Errorf("Port = %d, want default %d", cfg.Port, defaults.Port)
	}
	if cfg.Interval != defaults.Interval {
		t.Errorf("Interval = %v, want default %v", cfg.Interval, defaults.Interval)
	}
	if cfg.SpoolPath != "/var/spool/sendmail" {
		t.Errorf("SpoolPath = %q", cfg.SpoolPath)
	}
}

func TestLoadMergesINIFile(t *testing.T) {
	content := `
[app:zope-sendmail]
hostname = relay.example.com
port = 587
interval = 10
tls = force
workers = 3
`
	path := createTempINI(t, content)

	f, err := ParseFlags([]string{"--config", path, "/var/spool/sendmail"})
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hostname != "relay.example.com" {
		t.Errorf("Hostname = %q, want relay.example.com", cfg.Hostname)
	}
	if cfg.Port != 587 {
		t.Errorf("Port = %d, want 587", cfg.Port)
	}
	if cfg.Interval != 10*time.Second {
		t.Errorf("Interval = %v, want 10s", cfg.Interval)
	}
	if cfg.TLS != smtptransport.TLSForce {
		t.Errorf("TLS = %v, want TLSForce", cfg.TLS)
	}
	if cfg.Workers != 3 {
		t.Errorf("Workers = %d, want 3", cfg.Workers)
	}
}

func TestLoadMissingConfigFileIsAnError(t *testing.T) {
	f, err := ParseFlags([]string{"--config", "/nonexistent/sendmail.ini", "/var/spool/sendmail"})
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	if _, err := Load(f); err == nil {
		t.Fatal("expected error for missing --config file, got nil")
	}
}

func TestFlagsOverrideINIFile(t *testing.T) {
	content := `
[app:zope-sendmail]
hostname = ini.example.com
port = 25
`
	path := createTempINI(t, content)

	f, err := ParseFlags([]string{
		"--config", path,
		"--hostname", "flag.example.com",
		"/var/spool/sendmail",
	})
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hostname != "flag.example.com" {
		t.Errorf("Hostname = %q, want flag.example.com (flag should win over INI)", cfg.Hostname)
	}
	if cfg.Port != 25 {
		t.Errorf("Port = %d, want 25 (from INI)", cfg.Port)
	}
}

func TestLoadRejectsUsernameWithoutPassword(t *testing.T) {
	f, err := ParseFlags([]string{"--username", "alice", "/var/spool/sendmail"})
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	_, err = Load(f)
	if err == nil {
		t.Fatal("expected error for username without password, got nil")
	}
}

func TestLoadRejectsForceTLSAndNoTLSTogether(t *testing.T) {
	f, err := ParseFlags([]string{"--force-tls", "--no-tls", "/var/spool/sendmail"})
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	_, err = Load(f)
	if err == nil {
		t.Fatal("expected error for --force-tls and --no-tls together, got nil")
	}
}

func TestApplyEnvOverridesDefaultsButNotFlags(t *testing.T) {
	t.Setenv("SENDMAIL_HOSTNAME", "env.example.com")
	t.Setenv("SENDMAIL_PORT", "2525")
	t.Setenv("SENDMAIL_INTERVAL", "20")

	f, err := ParseFlags([]string{"--interval", "7", "/var/spool/sendmail"})
	if err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg, err := Load(f)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Hostname != "env.example.com" {
		t.Errorf("Hostname = %q, want env.example.com", cfg.Hostname)
	}
	if cfg.Port != 2525 {
		t.Errorf("Port = %d, want 2525", cfg.Port)
	}
	if cfg.Interval != 7*time.Second {
		t.Errorf("Interval = %v, want 7s (flag should win over env)", cfg.Interval)
	}
}

func createTempINI(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "sendmail.ini")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to create temp INI file: %v", err)
	}
	return path
}
