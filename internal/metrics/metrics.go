// Package metrics holds the Prometheus collectors for the kiosk.
package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// UploadsTotal counts photo uploads by outcome.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_uploads_total",
			Help: "Total number of photo uploads",
		},
		[]string{"result"},
	)

	// TicketAllocationDuration tracks how long the four folder scans take.
	TicketAllocationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kiosk_ticket_allocation_duration_seconds",
			Help:    "Duration of ticket number allocation in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// EventLogWritesTotal counts event log appends by type and outcome.
	EventLogWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_event_log_writes_total",
			Help: "Total number of event log writes",
		},
		[]string{"event_type", "result"},
	)

	// EventQueueDropped counts events dropped because the background queue was full.
	EventQueueDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kiosk_event_queue_dropped_total",
			Help: "Events dropped because the log queue was full",
		},
	)

	// ReportsTotal counts daily report runs by trigger and outcome.
	ReportsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_reports_total",
			Help: "Total number of daily report runs",
		},
		[]string{"trigger", "result"},
	)

	// MailsTotal counts outgoing mail by kind and outcome.
	MailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_mails_total",
			Help: "Total number of mails sent",
		},
		[]string{"kind", "result"},
	)

	// CircuitBreakerState is 0 closed, 1 half-open, 2 open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kiosk_circuit_breaker_state",
			Help: "Gateway circuit breaker state",
		},
		[]string{"name"},
	)

	// CircuitBreakerRequests counts gateway calls seen by a breaker.
	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kiosk_circuit_breaker_requests_total",
			Help: "Gateway calls by breaker and outcome",
		},
		[]string{"name", "result"},
	)
)

// Handler exposes the default registry as a fiber handler.
func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
