package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sparkleclean",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint and status class.",
		},
		[]string{"endpoint", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sparkleclean",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by endpoint.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	bookingsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "sparkleclean",
			Name:      "bookings_created_total",
			Help:      "Bookings accepted through the API.",
		},
	)

	notificationsDelivered = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sparkleclean",
			Name:      "notifications_total",
			Help:      "Notification task outcomes.",
		},
		[]string{"outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, bookingsCreated, notificationsDelivered)
	})
}

// ObserveHTTP records one request for an endpoint label.
func ObserveHTTP(endpoint, status string, seconds float64) {
	httpRequests.WithLabelValues(endpoint, status).Inc()
	httpDuration.WithLabelValues(endpoint).Observe(seconds)
}

// IncBookingCreated counts an accepted booking.
func IncBookingCreated() {
	bookingsCreated.Inc()
}

// IncNotification counts a notification outcome ("delivered", "retried", "failed").
func IncNotification(outcome string) {
	notificationsDelivered.WithLabelValues(outcome).Inc()
}
