package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the gateway. Construct one
// per gateway with NewMetrics; tests pass their own registry to avoid
// duplicate registration.
type Metrics struct {
	activeRooms      prometheus.Gauge
	connectedClients prometheus.Gauge
	messagesRelayed  prometheus.Counter
	savesScheduled   prometheus.Counter
	loadErrors       prometheus.Counter
	staleSessions    prometheus.Counter
	roomsCreated     *prometheus.CounterVec
}

// NewMetrics registers the gateway metrics with registry. A nil
// registry uses the default registerer.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		activeRooms: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "docrelay",
			Name:      "active_rooms",
			Help:      "Number of live rooms",
		}),

		connectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "docrelay",
			Name:      "connected_clients",
			Help:      "Number of attached WebSocket clients",
		}),

		messagesRelayed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "docrelay",
			Name:      "messages_relayed_total",
			Help:      "Total messages relayed between clients",
		}),

		savesScheduled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "docrelay",
			Name:      "saves_scheduled_total",
			Help:      "Total debounced saves scheduled by document rooms",
		}),

		loadErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "docrelay",
			Name:      "load_errors_total",
			Help:      "Total content load failures during room initialization",
		}),

		staleSessions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "docrelay",
			Name:      "stale_sessions_total",
			Help:      "Total connections rejected with an expired session token",
		}),

		roomsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docrelay",
			Name:      "rooms_created_total",
			Help:      "Total rooms created by kind",
		}, []string{"kind"}),
	}
}
