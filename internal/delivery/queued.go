package delivery

import (
	"context"
	"log/slog"

	"github.com/infodancer/sendmail/internal/maildir"
	"github.com/infodancer/sendmail/internal/message"
	"github.com/infodancer/sendmail/internal/txn"
)

// Queued spools a message for asynchronous delivery: the deferred action
// writes the envelope to the Maildir-convention spool and commits the
// writer (an atomic rename into new/). The spool directory is resolved,
// and created if missing, at commit time — a submission whose transaction
// later aborts never touches the filesystem beyond its tmp file, and in
// the common case (abort before commit) never touches it at all.
type Queued struct {
	SpoolPath string
	Hostname  string
	Logger    *slog.Logger
}

// Send normalizes msg, injects a Message-Id if one is absent, and joins a
// data manager to tx whose finish action spools the message. It returns
// the bare (unbracketed) Message-Id.
func (q *Queued) Send(tx *txn.Transaction, sender string, recipients []string, msg []byte) (string, error) {
	logger := loggerOrDefault(q.Logger)

	normalized, id, err := normalize(msg, q.Hostname, logger)
	if err != nil {
		return "", err
	}

	env := message.Envelope{Sender: sender, Recipients: recipients, Message: normalized}

	var writer *maildir.Writer

	finish := func(ctx context.Context) error {
		spool, err := maildir.Open(q.SpoolPath, true)
		if err != nil {
			return err
		}
		w, err := spool.NewMessage()
		if err != nil {
			return err
		}
		writer = w
		if _, err := w.Write(env.EncodeQueued()); err != nil {
			w.Abort()
			return err
		}
		return w.Commit()
	}

	onAbort := func() {
		if writer != nil {
			writer.Abort()
		}
	}

	m := txn.NewManager(finish, nil, onAbort, logger)

	if err := join(tx, m); err != nil {
		return "", err
	}
	return id, nil
}
