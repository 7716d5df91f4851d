// Package metrics registers the service's Prometheus collectors and exposes
// an echo middleware and handler for them.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	workItemTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workitem_transitions_total",
			Help: "Successful task and appointment status transitions",
		},
		[]string{"category", "from", "to"},
	)

	workItemDenied = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workitem_transition_denied_total",
			Help: "Task and appointment transitions refused by the state machine",
		},
		[]string{"category", "op"},
	)

	outboxDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_deliveries_total",
			Help: "Outbox delivery attempts by sink and result",
		},
		[]string{"sink", "result"},
	)

	aiRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ai_requests_total",
			Help: "Assistant model calls by operation and result",
		},
		[]string{"operation", "result"},
	)
)

// Handler serves the default registry.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// Middleware records request counts and latency. The path label is the
// route template (/api/v1/tasks/:id), not the raw URL.
func Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			httpRequestsInFlight.Inc()
			defer httpRequestsInFlight.Dec()

			err := next(c)

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			path := c.Path()
			if path == "" {
				path = "unmatched"
			}
			method := c.Request().Method

			httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
			httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func RecordTransition(category, from, to string) {
	workItemTransitions.WithLabelValues(category, from, to).Inc()
}

func RecordTransitionDenied(category, op string) {
	workItemDenied.WithLabelValues(category, op).Inc()
}

func RecordOutboxDelivery(sink, result string) {
	outboxDeliveries.WithLabelValues(sink, result).Inc()
}

func RecordAIRequest(operation, result string) {
	aiRequests.WithLabelValues(operation, result).Inc()
}
