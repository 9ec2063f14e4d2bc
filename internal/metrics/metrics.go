// Package metrics exposes the Prometheus instrumentation for the realtime
// endpoint. Collectors are registered on the default registry and served from
// /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionsCurrent tracks live WebSocket connections regardless of
	// authentication state.
	ConnectionsCurrent = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "messenger",
		Name:      "connections_current",
		Help:      "Number of live WebSocket connections.",
	})

	// FramesReceived counts inbound frames before parsing.
	FramesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "messenger",
		Name:      "frames_received_total",
		Help:      "Total inbound WebSocket frames.",
	})

	// MessagesRouted counts persisted-and-broadcast chat messages by kind
	// (channel or direct).
	MessagesRouted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "messenger",
		Name:      "messages_routed_total",
		Help:      "Total chat messages persisted and routed.",
	}, []string{"kind"})

	// DeliveriesTotal counts new_message frames pushed to live connections.
	DeliveriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "messenger",
		Name:      "deliveries_total",
		Help:      "Total new_message frames delivered to live connections.",
	})
)
