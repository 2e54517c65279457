// Package metrics provides interfaces and implementations for observing
// the delivery pipeline: SMTP transport outcomes, queue processor
// delivery attempts, and spool depth. It defines the Collector interface
// for recording metrics and the Server interface for exposing them.
package metrics

import "context"

// Collector defines the interface for recording delivery metrics.
type Collector interface {
	// Transport metrics: one SMTP session's outcome.
	TransportConnect(success bool)
	TransportAuth(success bool)
	TransportTLSUpgraded()

	// Delivery metrics: one spool message's disposition as reported by the
	// queue processor. result is one of "success", "transient",
	// "permanent", "skipped", "error".
	DeliveryAttempt(result string)

	// SpoolDepth reports the number of messages currently pending in a
	// spool. The queue processor's Metrics hook carries only
	// DeliveryAttempt, so the drain loop does not call it.
	SpoolDepth(n int)
}

// Server defines the interface for a metrics HTTP server.
type Server interface {
	// Start begins serving metrics. It blocks until the context is canceled
	// or an error occurs.
	Start(ctx context.Context) error

	// Shutdown gracefully stops the metrics server.
	Shutdown(ctx context.Context) error
}
