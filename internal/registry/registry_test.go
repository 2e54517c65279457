package registry

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/infodancer/sendmail/internal/delivery"
	"github.com/infodancer/sendmail/internal/smtptransport"
)

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write registry file: %v", err)
	}
	return path
}

func TestLoadAndBuildDirectDelivery(t *testing.T) {
	content := `
[[mailer]]
name = "relay"
hostname = "smtp.example.com"
port = 587
username = "alice"
password = "hunter2"
tls = "force"

[[delivery]]
name = "outbound"
type = "direct"
mailer = "relay"
hostname = "localhost"
`
	path := writeRegistry(t, content)

	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	facade, err := r.Delivery("outbound", nil)
	if err != nil {
		t.Fatalf("Delivery() error = %v", err)
	}

	direct, ok := facade.(*delivery.Direct)
	if !ok {
		t.Fatalf("expected *delivery.Direct, got %T", facade)
	}
	if direct.Hostname != "localhost" {
		t.Errorf("Hostname = %q, want localhost", direct.Hostname)
	}
	transport := direct.NewTransport()
	if _, ok := transport.(*smtptransport.Mailer); !ok {
		t.Errorf("NewTransport() = %T, want *smtptransport.Mailer", transport)
	}
	if transport2 := direct.NewTransport(); transport2 == transport {
		t.Error("expected NewTransport to build a fresh Mailer on each call, got the same value back")
	}
}

func TestLoadAndBuildQueuedDelivery(t *testing.T) {
	content := `
[[delivery]]
name = "local"
type = "queued"
spool_path = "/var/spool/sendmail"
hostname = "localhost"
`
	path := writeRegistry(t, content)

	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	facade, err := r.Delivery("local", nil)
	if err != nil {
		t.Fatalf("Delivery() error = %v", err)
	}

	queued, ok := facade.(*delivery.Queued)
	if !ok {
		t.Fatalf("expected *delivery.Queued, got %T", facade)
	}
	if queued.SpoolPath != "/var/spool/sendmail" {
		t.Errorf("SpoolPath = %q", queued.SpoolPath)
	}
}

func TestDeliveryUnknownNameReturnsErrNotFound(t *testing.T) {
	path := writeRegistry(t, "")

	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	_, err = r.Delivery("missing", nil)
	if err == nil {
		t.Fatal("expected error for unknown delivery name, got nil")
	}
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDirectDeliveryWithUnknownMailerFails(t *testing.T) {
	content := `
[[delivery]]
name = "outbound"
type = "direct"
mailer = "missing"
`
	path := writeRegistry(t, content)

	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := r.Delivery("outbound", nil); err == nil {
		t.Fatal("expected error for unknown mailer, got nil")
	}
}

func TestQueuedDeliveryWithoutSpoolPathFails(t *testing.T) {
	content := `
[[delivery]]
name = "local"
type = "queued"
`
	path := writeRegistry(t, content)

	r, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if _, err := r.Delivery("local", nil); err == nil {
		t.Fatal("expected error for missing spool_path, got nil")
	}
}

func TestLoadMissingFileIsAnError(t *testing.T) {
	if _, err := Load("/nonexistent/registry.toml"); err == nil {
		t.Fatal("expected error for missing registry file, got nil")
	}
}
