// Package telemetry содержит Prometheus-метрики движка расписаний.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fieldsched"

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route and method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	BookingMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "booking_mutations_total",
		Help:      "Booking create/patch/delete outcomes by error kind.",
	}, []string{"op", "result"})

	OutboxEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_events_total",
		Help:      "Outbox events handled by the dispatcher: delivered, failed, dead_lettered.",
	}, []string{"result"})

	ChannelDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "channel_deliveries_total",
		Help:      "Notification channel delivery attempts.",
	}, []string{"channel", "result"})

	OutboxPurged = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_purged_total",
		Help:      "Processed outbox events removed after the retention window.",
	})

	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dispatch_run_duration_seconds",
		Help:      "Duration of a single dispatcher run.",
		Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	})
)

// Handler отдаёт метрики в формате Prometheus
func Handler() http.Handler {
	return promhttp.Handler()
}
