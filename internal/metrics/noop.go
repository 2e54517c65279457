package metrics

// NoopCollector is a no-op implementation of the Collector interface.
// All methods are empty stubs that do nothing.
type NoopCollector struct{}

// TransportConnect is a no-op.
func (n *NoopCollector) TransportConnect(success bool) {}

// TransportAuth is a no-op.
func (n *NoopCollector) TransportAuth(success bool) {}

// TransportTLSUpgraded is a no-op.
func (n *NoopCollector) TransportTLSUpgraded() {}

// DeliveryAttempt is a no-op.
func (n *NoopCollector) DeliveryAttempt(result string) {}

// SpoolDepth is a no-op.
func (n *NoopCollector) SpoolDepth(depth int) {}
