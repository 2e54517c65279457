package smtptransport

import "errors"

var (
	// ErrConfiguration reports a mailer that was asked to do something its
	// configuration and the server's capabilities cannot reconcile: a
	// force_tls mailer against a server with no STARTTLS extension, or a
	// username configured against a server that never spoke ESMTP.
	ErrConfiguration = errors.New("smtptransport: configuration error")

	// ErrTransient wraps a delivery outcome that warrants a later retry: a
	// 4xx SMTP reply, a connect failure, or a disconnect mid-session.
	ErrTransient = errors.New("smtptransport: transient delivery failure")

	// ErrPermanent wraps a delivery outcome that must not be retried: a 5xx
	// SMTP reply or a protocol violation.
	ErrPermanent = errors.New("smtptransport: permanent delivery failure")

	// ErrPerRecipient reports that a subset of recipients were refused while
	// the rest were accepted; the caller should log it and treat the send
	// as a partial success rather than a whole-message failure.
	ErrPerRecipient = errors.New("smtptransport: one or more recipients refused")
)
