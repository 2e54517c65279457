package delivery

import (
	"context"
	"log/slog"

	"github.com/infodancer/sendmail/internal/txn"
)

// Direct sends a message synchronously during the host transaction's
// commit: the deferred action is the SMTP send itself, so a delivery
// failure at commit time is only ever logged, never raised back to the
// committing application (see txn.Manager.Finish).
//
// NewTransport is called once per Send, never reused across calls: a
// transport's live connection is per-worker state (spec's thread-local
// connection requirement), so two transactions committing concurrently
// through the same Direct value must never share one underlying
// connection. This mirrors queueprocessor.Config.NewMailer.
type Direct struct {
	NewTransport func() Transport
	Hostname     string
	Logger       *slog.Logger
}

// Send normalizes msg, injects a Message-Id if one is absent, and joins a
// data manager to tx whose finish action sends the message and whose vote
// pre-flights the transport's connection. It returns the bare (unbracketed)
// Message-Id.
func (d *Direct) Send(tx *txn.Transaction, sender string, recipients []string, msg []byte) (string, error) {
	logger := loggerOrDefault(d.Logger)

	normalized, id, err := normalize(msg, d.Hostname, logger)
	if err != nil {
		return "", err
	}

	transport := d.NewTransport()

	var vote func(ctx context.Context) error
	if v, ok := transport.(Voter); ok {
		vote = v.Vote
	} else {
		logger.Warn("delivery: transport does not support vote, substituting a no-op for backward compatibility")
	}

	m := txn.NewManager(
		func(ctx context.Context) error {
			return transport.Send(ctx, sender, recipients, normalized)
		},
		vote,
		transport.Abort,
		logger,
	)

	if err := join(tx, m); err != nil {
		return "", err
	}
	return id, nil
}
