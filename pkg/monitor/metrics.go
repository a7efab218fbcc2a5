// Package monitor owns the Prometheus registry exposed at /metrics.
package monitor

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sitecraft"

// Registry is a dedicated registry so tests and the process collectors do
// not collide with the global default one.
var Registry = prometheus.NewRegistry()

var (
	NotificationsCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_created_total",
		Help:      "Notification rows written, by type.",
	}, []string{"type"})

	DeliveryFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_delivery_failures_total",
		Help:      "Failed SMS/email deliveries, by channel.",
	}, []string{"channel"})

	PaymentsInitialized = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payments_initialized_total",
		Help:      "Gateway transactions created, by payment type.",
	}, []string{"type"})

	PaymentVerifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_verifications_total",
		Help:      "Payment verification attempts, by result.",
	}, []string{"result"})

	WebhookEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Gateway webhook deliveries, by event name.",
	}, []string{"event"})

	ProjectTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "project_transitions_total",
		Help:      "Project status transitions.",
	}, []string{"from", "to"})

	ProjectsByStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "projects",
		Help:      "Projects currently in each status, refreshed by the cron job.",
	}, []string{"status"})

	RelayConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "relay_connections",
		Help:      "Open realtime websocket connections.",
	})

	RelayDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "relay_dropped_events_total",
		Help:      "Realtime events dropped because a subscriber queue was full.",
	}, []string{"type"})
)

//nolint:gochecknoinits // collectors must be registered exactly once.
func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		NotificationsCreated,
		DeliveryFailures,
		PaymentsInitialized,
		PaymentVerifications,
		WebhookEvents,
		ProjectTransitions,
		ProjectsByStatus,
		RelayConnections,
		RelayDropped,
	)
}

// Handler serves the registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
