package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection Metrics
var (
	// ActiveConnections tracks the number of live WebSocket connections
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_active_connections",
			Help: "Number of live WebSocket connections",
		},
	)

	// ActiveRooms tracks the number of rooms with at least one member
	ActiveRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_active_rooms",
			Help: "Number of rooms with at least one member",
		},
	)

	// OnlineUsers tracks the number of identified users
	OnlineUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_online_users",
			Help: "Number of users with a presence entry",
		},
	)

	// AuthRejectionsTotal tracks refused connections by reason
	AuthRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_auth_rejections_total",
			Help: "Connections refused during the handshake by reason",
		},
		[]string{"reason"},
	)

	// SlowClientsEvicted tracks clients disconnected for full send buffers
	SlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_slow_clients_evicted_total",
			Help: "Clients disconnected because their send buffer was full",
		},
	)
)

// Delivery Metrics
var (
	// BroadcastsTotal tracks document-change broadcasts by collection and scope
	BroadcastsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_broadcasts_total",
			Help: "Document-change broadcasts by collection and scope (room/global)",
		},
		[]string{"collection", "scope"},
	)

	// RelaysTotal tracks client-to-room relayed messages
	RelaysTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_relayed_messages_total",
			Help: "Client messages relayed to a room",
		},
	)

	// MalformedFramesTotal tracks inbound frames that were silently dropped
	MalformedFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_malformed_frames_total",
			Help: "Inbound frames dropped because they could not be decoded",
		},
	)

	// ResolverFailuresTotal tracks room resolvers that errored or panicked
	ResolverFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_resolver_failures_total",
			Help: "Room resolver failures that degraded to a global broadcast",
		},
		[]string{"collection"},
	)
)
