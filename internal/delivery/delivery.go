// Package delivery implements the public entry point applications call to
// hand a message to the system: it normalizes the message, injects a
// Message-Id when one is absent, and joins a data manager to the caller's
// transaction. Two variants exist, Direct and Queued; both share this
// normalize-then-join sequence and differ only in what their data manager
// does at commit.
package delivery

import (
	"context"
	"log/slog"

	"github.com/infodancer/sendmail/internal/message"
	"github.com/infodancer/sendmail/internal/txn"
)

// Transport is the capability set a Direct delivery needs from an SMTP
// mailer: send and abort are required, vote is optional so test doubles
// and older transports without a pre-flight step still satisfy it.
type Transport interface {
	Send(ctx context.Context, sender string, recipients []string, message []byte) error
	Abort()
}

// Voter is the optional pre-flight capability: a transport that implements
// it gets its Vote invoked during the host transaction's voting phase, so
// a configuration or connection error surfaces before commit.
type Voter interface {
	Vote(ctx context.Context) error
}

// Facade is the shape both Direct and Queued share: submit a message to a
// host transaction and get back its Message-Id. A registry or other
// caller that only needs to submit mail can depend on this interface
// instead of naming either concrete variant.
type Facade interface {
	Send(tx *txn.Transaction, sender string, recipients []string, msg []byte) (string, error)
}

func normalize(msg []byte, hostname string, logger *slog.Logger) ([]byte, string, error) {
	normalized, id, err := message.Normalize(msg, hostname)
	if err != nil {
		if logger != nil {
			logger.Error("delivery: message normalization failed", "error", err)
		}
		return nil, "", err
	}
	return normalized, id, nil
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l != nil {
		return l
	}
	return slog.Default()
}

// join attaches a constructed *txn.Manager to tx and returns any error the
// transaction's Join step raises (a manager that has already begun, in
// this package's usage, never happens in practice but is plumbed through
// per the txn package's contract).
func join(tx *txn.Transaction, m *txn.Manager) error {
	return tx.Join(m)
}
