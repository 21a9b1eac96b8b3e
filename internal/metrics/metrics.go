// Package metrics defines the Prometheus metrics exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry and relay metrics
var (
	// ConnectedClients tracks the current number of registered connections.
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_connected_clients",
			Help: "Current number of registered client connections",
		},
	)

	// MessagesReceivedTotal tracks inbound frames by kind.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_received_total",
			Help: "Total inbound client frames by kind",
		},
		[]string{"kind"},
	)

	// BroadcastsTotal tracks completed broadcast fan-outs.
	BroadcastsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_broadcasts_total",
			Help: "Total broadcast fan-outs performed",
		},
	)

	// SendFailuresTotal tracks individual failed sends during fan-out.
	SendFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_send_failures_total",
			Help: "Total failed sends to individual clients",
		},
	)

	// EvictionsTotal tracks clients evicted after a failed send.
	EvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_evictions_total",
			Help: "Total clients evicted from the registry after a failed send",
		},
	)

	// ConnectionsRejectedTotal tracks handshakes rejected at capacity.
	ConnectionsRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_connections_rejected_total",
			Help: "Total connection attempts rejected at the connection limit",
		},
	)
)

// WebSocket transport metrics
var (
	// WebSocketPingFailures tracks failed keepalive pings.
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Total WebSocket ping write failures",
		},
	)

	// WebSocketMessageSendDuration tracks message write latency in seconds.
	WebSocketMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_message_send_duration_seconds",
			Help:    "WebSocket message send duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		},
	)
)

// Translation metrics
var (
	// TranslationRequestsTotal tracks translation calls by outcome.
	TranslationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "translation_requests_total",
			Help: "Total translation requests by status (success/error/rejected)",
		},
		[]string{"status"},
	)

	// TranslationDuration tracks translation call latency in seconds.
	TranslationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "translation_request_duration_seconds",
			Help:    "Translation request duration in seconds",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	// TranslationBreakerState tracks the circuit breaker state (0=closed, 1=half-open, 2=open).
	TranslationBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "translation_circuit_breaker_state",
			Help: "Translation circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)
