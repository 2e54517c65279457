package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements the Collector interface using Prometheus metrics.
type PrometheusCollector struct {
	transportConnectTotal *prometheus.CounterVec
	transportAuthTotal    *prometheus.CounterVec
	transportTLSTotal     prometheus.Counter

	deliveryAttemptsTotal *prometheus.CounterVec

	spoolDepth prometheus.Gauge
}

// NewPrometheusCollector creates a new PrometheusCollector with all metrics registered.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		transportConnectTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sendmail_transport_connect_total",
			Help: "Total number of SMTP transport connection attempts.",
		}, []string{"result"}),
		transportAuthTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sendmail_transport_auth_total",
			Help: "Total number of SMTP AUTH attempts.",
		}, []string{"result"}),
		transportTLSTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sendmail_transport_tls_upgrades_total",
			Help: "Total number of STARTTLS/implicit-TLS upgrades completed.",
		}),

		deliveryAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sendmail_delivery_attempts_total",
			Help: "Total number of delivery attempts, by result.",
		}, []string{"result"}),

		spoolDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sendmail_spool_depth",
			Help: "Number of messages pending in the spool, as last reported.",
		}),
	}

	reg.MustRegister(
		c.transportConnectTotal,
		c.transportAuthTotal,
		c.transportTLSTotal,
		c.deliveryAttemptsTotal,
		c.spoolDepth,
	)

	return c
}

func resultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}

// TransportConnect increments the transport connect counter.
func (c *PrometheusCollector) TransportConnect(success bool) {
	c.transportConnectTotal.WithLabelValues(resultLabel(success)).Inc()
}

// TransportAuth increments the transport AUTH counter.
func (c *PrometheusCollector) TransportAuth(success bool) {
	c.transportAuthTotal.WithLabelValues(resultLabel(success)).Inc()
}

// TransportTLSUpgraded increments the TLS upgrade counter.
func (c *PrometheusCollector) TransportTLSUpgraded() {
	c.transportTLSTotal.Inc()
}

// DeliveryAttempt increments the delivery attempts counter for result.
func (c *PrometheusCollector) DeliveryAttempt(result string) {
	c.deliveryAttemptsTotal.WithLabelValues(result).Inc()
}

// SpoolDepth sets the spool depth gauge to n.
func (c *PrometheusCollector) SpoolDepth(n int) {
	c.spoolDepth.Set(float64(n))
}
