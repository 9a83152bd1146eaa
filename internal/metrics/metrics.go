// internal/metrics/metrics.go
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the service's Prometheus collectors. One instance
// per process, registered on its own registry so tests can create
// throwaway instances without collisions.
type Metrics struct {
	registry *prometheus.Registry

	PaymentsConfirmed prometheus.Counter
	PaymentsExpired   prometheus.Counter
	FraudEvents       prometheus.Counter
	CampaignsCreated  prometheus.Counter
	JobsPublished     prometheus.Counter
	JobsFailed        prometheus.Counter
	IntegrityMismatch prometheus.Counter
	PublishDuration   prometheus.Histogram
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		PaymentsConfirmed: factory.NewCounter(prometheus.CounterOpts{
			Name: "adsbot_payments_confirmed_total",
			Help: "Payment requests settled by a matching ledger transaction.",
		}),
		PaymentsExpired: factory.NewCounter(prometheus.CounterOpts{
			Name: "adsbot_payments_expired_total",
			Help: "Payment requests that reached their ttl unmatched.",
		}),
		FraudEvents: factory.NewCounter(prometheus.CounterOpts{
			Name: "adsbot_fraud_events_total",
			Help: "Blocked settlement attempts recorded in the audit trail.",
		}),
		CampaignsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "adsbot_campaigns_created_total",
			Help: "Campaigns created from confirmed payments.",
		}),
		JobsPublished: factory.NewCounter(prometheus.CounterOpts{
			Name: "adsbot_jobs_published_total",
			Help: "Publish jobs delivered to a channel.",
		}),
		JobsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "adsbot_jobs_failed_total",
			Help: "Publish jobs that failed terminally.",
		}),
		IntegrityMismatch: factory.NewCounter(prometheus.CounterOpts{
			Name: "adsbot_integrity_mismatch_total",
			Help: "Deliveries whose sent content did not match the fingerprint.",
		}),
		PublishDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "adsbot_publish_duration_seconds",
			Help:    "Time to deliver one publish job.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Handler exposes the registry for an HTTP metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
