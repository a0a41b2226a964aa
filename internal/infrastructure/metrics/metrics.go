package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	requestCount      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	commands          *prometheus.CounterVec
	broadcasts        *prometheus.CounterVec
	droppedEvents     *prometheus.CounterVec
	activeConnections prometheus.Gauge
	activeRooms       prometheus.Gauge
	timersFired       prometheus.Counter
	roomsEvicted      prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "votehub",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "votehub",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "votehub",
			Name:      "ws_commands_total",
			Help:      "Websocket commands by type and outcome.",
		}, []string{"type", "outcome"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "votehub",
			Name:      "broadcasts_total",
			Help:      "Events fanned out to room groups, by event type.",
		}, []string{"type"}),
		droppedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "votehub",
			Name:      "dropped_events_total",
			Help:      "Events dropped because a client buffer was full.",
		}, []string{"type"}),
		activeConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "votehub",
			Name:      "ws_connections",
			Help:      "Open websocket connections.",
		}),
		activeRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "votehub",
			Name:      "rooms",
			Help:      "Rooms held in memory.",
		}),
		timersFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "votehub",
			Name:      "voting_timers_fired_total",
			Help:      "Voting timers that stopped a room.",
		}),
		roomsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "votehub",
			Name:      "rooms_evicted_total",
			Help:      "Rooms dropped for idleness or capacity.",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.requestCount,
			m.requestDuration,
			m.commands,
			m.broadcasts,
			m.droppedEvents,
			m.activeConnections,
			m.activeRooms,
			m.timersFired,
			m.roomsEvicted,
		)
	}

	return m
}

func (m *Metrics) ObserveRequest(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestCount.WithLabelValues(method, route, status).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) Command(commandType, outcome string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(commandType, outcome).Inc()
}

func (m *Metrics) Broadcast(eventType string) {
	if m == nil {
		return
	}
	m.broadcasts.WithLabelValues(eventType).Inc()
}

func (m *Metrics) Dropped(eventType string) {
	if m == nil {
		return
	}
	m.droppedEvents.WithLabelValues(eventType).Inc()
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.activeConnections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.activeConnections.Dec()
}

func (m *Metrics) SetRooms(n int) {
	if m == nil {
		return
	}
	m.activeRooms.Set(float64(n))
}

func (m *Metrics) TimerFired() {
	if m == nil {
		return
	}
	m.timersFired.Inc()
}

func (m *Metrics) RoomEvicted() {
	if m == nil {
		return
	}
	m.roomsEvicted.Inc()
}
