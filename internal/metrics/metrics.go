package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivertalk_events_published_total",
			Help: "Domain events published per channel, by event name",
		},
		[]string{"event"},
	)

	EventsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivertalk_events_failed_total",
			Help: "Channel publishes that failed, by event name and reason",
		},
		[]string{"event", "reason"},
	)

	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "delivertalk_ws_connections",
			Help: "Open WebSocket connections on this instance",
		},
	)

	CallTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivertalk_call_transitions_total",
			Help: "Call state transitions applied, by target state",
		},
		[]string{"status"},
	)

	LocationUpdates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivertalk_location_updates_total",
			Help: "Agent location updates persisted, by result",
		},
		[]string{"result"},
	)

	PresenceFlips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivertalk_presence_flips_total",
			Help: "User presence status flips",
		},
		[]string{"status"},
	)
)
