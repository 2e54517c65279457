// Package smtptransport implements a one-shot SMTP/SMTPS delivery session:
// connect, greet, optionally upgrade to TLS, authenticate, transmit,
// quit. It classifies server replies into transient, permanent, and
// per-recipient outcomes so a caller can decide whether to retry.
package smtptransport

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"strings"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
)

// TLSPolicy selects how a Mailer secures its connection. The zero value,
// TLSOpportunistic, upgrades via STARTTLS when the server advertises it
// but tolerates a plaintext session when it does not.
type TLSPolicy int

const (
	TLSOpportunistic TLSPolicy = iota
	TLSForce
	TLSNone
	TLSImplicit
)

// Config carries the per-mailer settings a delivery facade or queue
// processor worker supplies when constructing a Mailer. Each Mailer owns
// its own connection; Config itself is safe to share and copy.
type Config struct {
	Hostname string
	Port     int
	HELO     string // local name sent in EHLO/HELO; defaults to "localhost"

	Username string
	Password string

	TLS       TLSPolicy
	TLSConfig *tls.Config // optional; nil uses a zero tls.Config

	Logger *slog.Logger
}

func (c Config) addr() string {
	return fmt.Sprintf("%s:%d", c.Hostname, c.Port)
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// Mailer is a single-use, non-shared SMTP session. Exactly one Mailer value
// per delivery attempt: its connection lives in the value itself, never in
// package-level or shared state, so concurrent deliveries through separate
// Mailer values never collide even when constructed from the same Config.
type Mailer struct {
	cfg    Config
	client *smtp.Client
}

// New returns a Mailer bound to cfg. No network I/O happens until Vote or
// Send is called.
func New(cfg Config) *Mailer {
	if cfg.HELO == "" {
		cfg.HELO = "localhost"
	}
	return &Mailer{cfg: cfg}
}

// Vote ensures a connection exists, pre-flighting TLS negotiation and
// authentication so a configuration error surfaces before the host
// transaction commits. It is safe to call at most once per Mailer; a
// second call is a no-op if the first succeeded.
func (m *Mailer) Vote(ctx context.Context) error {
	if m.client != nil {
		return nil
	}
	client, err := m.connect(ctx)
	if err != nil {
		return err
	}
	m.client = client
	return nil
}

// connect dials according to the configured TLS policy and authenticates.
// It is built entirely on go-smtp's package-level Dial/DialTLS/DialStartTLS
// constructors rather than an incremental client.StartTLS call: the client
// only exposes STARTTLS upgrade bundled into dialing a fresh connection, so
// the opportunistic policy probes with a plaintext dial first and, if the
// server advertises STARTTLS, discards that connection and redials with
// DialStartTLS. A custom HELO name can only be honored on the plaintext
// path; the TLS dial helpers greet internally before returning control.
func (m *Mailer) connect(ctx context.Context) (*smtp.Client, error) {
	tlsConfig := m.cfg.TLSConfig
	if tlsConfig == nil {
		tlsConfig = &tls.Config{ServerName: m.cfg.Hostname}
	}

	var (
		client *smtp.Client
		err    error
	)

	switch m.cfg.TLS {
	case TLSImplicit:
		client, err = smtp.DialTLS(m.cfg.addr(), tlsConfig)
		if err != nil {
			return nil, fmt.Errorf("%w: dial: %v", ErrTransient, err)
		}

	case TLSForce:
		client, err = smtp.DialStartTLS(m.cfg.addr(), tlsConfig)
		if err != nil {
			if isMissingStartTLS(err) {
				return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
			}
			return nil, fmt.Errorf("%w: dial: %v", ErrTransient, err)
		}

	case TLSNone:
		client, err = smtp.Dial(m.cfg.addr())
		if err != nil {
			return nil, fmt.Errorf("%w: dial: %v", ErrTransient, err)
		}
		if err := client.Hello(m.cfg.HELO); err != nil {
			client.Close()
			return nil, classify(err)
		}

	default: // TLSOpportunistic
		client, err = smtp.Dial(m.cfg.addr())
		if err != nil {
			return nil, fmt.Errorf("%w: dial: %v", ErrTransient, err)
		}
		if err := client.Hello(m.cfg.HELO); err != nil {
			client.Close()
			return nil, classify(err)
		}
		if ok, _ := client.Extension("STARTTLS"); ok {
			client.Close()
			client, err = smtp.DialStartTLS(m.cfg.addr(), tlsConfig)
			if err != nil {
				return nil, fmt.Errorf("%w: dial: %v", ErrTransient, err)
			}
		}
	}

	if err := m.authenticate(client); err != nil {
		client.Close()
		return nil, err
	}

	return client, nil
}

func isMissingStartTLS(err error) bool {
	return err != nil && strings.Contains(err.Error(), "STARTTLS")
}

func (m *Mailer) authenticate(client *smtp.Client) error {
	if m.cfg.Username == "" {
		return nil
	}
	esmtp, authParams := client.Extension("AUTH")
	if !esmtp {
		return fmt.Errorf("%w: username configured but server does not speak ESMTP AUTH", ErrConfiguration)
	}
	if m.cfg.Password == "" {
		return fmt.Errorf("%w: username configured without a password", ErrConfiguration)
	}

	var authClient sasl.Client
	if strings.Contains(authParams, "LOGIN") && !strings.Contains(authParams, "PLAIN") {
		authClient = sasl.NewLoginClient(m.cfg.Username, m.cfg.Password)
	} else {
		authClient = sasl.NewPlainClient("", m.cfg.Username, m.cfg.Password)
	}

	if err := client.Auth(authClient); err != nil {
		return classify(err)
	}
	return nil
}

// Send transmits the envelope over this Mailer's connection, establishing
// one if Vote was never called. It always closes the connection before
// returning, on every exit path including a failed Quit: a Quit that
// returns an error degrades to a hard Close rather than leaking the
// session open.
func (m *Mailer) Send(ctx context.Context, sender string, recipients []string, message []byte) error {
	if m.client == nil {
		client, err := m.connect(ctx)
		if err != nil {
			return err
		}
		m.client = client
	}
	client := m.client
	defer func() {
		m.client = nil
	}()

	defer func() {
		if err := client.Quit(); err != nil {
			client.Close()
		}
	}()

	if err := client.Mail(sender, nil); err != nil {
		return classify(err)
	}

	var failures []recipientFailure
	accepted := 0
	for _, rcpt := range recipients {
		if err := client.Rcpt(rcpt, nil); err != nil {
			code, _ := smtpCode(err)
			failures = append(failures, recipientFailure{Recipient: rcpt, Code: code, Err: classify(err)})
			continue
		}
		accepted++
	}
	if accepted == 0 && len(failures) > 0 {
		// Every recipient was refused: this is a whole-message failure, not
		// a partial success, so it must be quarantined (5xx) or retried
		// (4xx) rather than reported as delivered.
		return classifyAllRefused(failures)
	}

	w, err := client.Data()
	if err != nil {
		return classify(err)
	}
	if _, err := w.Write(message); err != nil {
		w.Close()
		return classify(err)
	}
	if err := w.Close(); err != nil {
		return classify(err)
	}

	if len(failures) > 0 {
		m.cfg.logger().Warn("smtptransport: partial delivery, some recipients refused",
			"accepted", accepted, "refused", len(failures))
		return joinPerRecipient(failures)
	}
	return nil
}

// Abort discards any connection this Mailer opened without sending QUIT;
// used when the surrounding transaction aborts before Send runs.
func (m *Mailer) Abort() {
	if m.client == nil {
		return
	}
	m.client.Close()
	m.client = nil
}
