// Package metrics exposes Prometheus instrumentation for the session server.
// All methods are safe to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "paddleduel"

// Metrics holds the server's collectors
type Metrics struct {
	registry *prometheus.Registry

	registrations        prometheus.Counter
	registrationRejected *prometheus.CounterVec
	roomsCreated         *prometheus.CounterVec
	matchesPaired        *prometheus.CounterVec
	matchesCompleted     *prometheus.CounterVec
	scoreRejected        *prometheus.CounterVec
	ratingFailures       prometheus.Counter
	disconnects          prometheus.Counter
	roomsExpired         prometheus.Counter
	messages             *prometheus.CounterVec
	dropped              prometheus.Counter
	matchDuration        prometheus.Histogram
}

// New creates a Metrics with its own registry, including Go runtime collectors
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_total",
			Help:      "Successful player registrations.",
		}),
		registrationRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "registrations_rejected_total",
			Help:      "Rejected registration attempts by reason.",
		}, []string{"reason"}),
		roomsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_created_total",
			Help:      "Rooms created, by origin (code or matchmaking).",
		}, []string{"origin"}),
		matchesPaired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matchmaking_pairs_total",
			Help:      "Players paired by the matchmaking queue, by variant.",
		}, []string{"variant"}),
		matchesCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_completed_total",
			Help:      "Matches that reached the finished state, by variant.",
		}, []string{"variant"}),
		scoreRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "score_updates_rejected_total",
			Help:      "Score updates rejected by validation, by reason.",
		}, []string{"reason"}),
		ratingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rating_update_failures_total",
			Help:      "Rating updates that failed to persist.",
		}),
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "disconnects_total",
			Help:      "Connections lost.",
		}),
		roomsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_expired_total",
			Help:      "Rooms deleted after the reconnect grace period.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Inbound client messages by type.",
		}, []string{"type"}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbound_dropped_total",
			Help:      "Outbound messages dropped because a client buffer was full.",
		}),
		matchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "match_duration_seconds",
			Help:      "Duration of completed matches.",
			Buckets:   []float64{30, 60, 120, 300, 600, 1200},
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.registrations,
		m.registrationRejected,
		m.roomsCreated,
		m.matchesPaired,
		m.matchesCompleted,
		m.scoreRejected,
		m.ratingFailures,
		m.disconnects,
		m.roomsExpired,
		m.messages,
		m.dropped,
		m.matchDuration,
	)
	return m
}

// Registry returns the underlying registry, for tests and custom collectors
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RegisterGauge exposes a value computed at scrape time
func (m *Metrics) RegisterGauge(name, help string, fn func() float64) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) PlayerRegistered() {
	if m == nil {
		return
	}
	m.registrations.Inc()
}

func (m *Metrics) RegistrationRejected(reason string) {
	if m == nil {
		return
	}
	m.registrationRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) RoomCreated(origin string) {
	if m == nil {
		return
	}
	m.roomsCreated.WithLabelValues(origin).Inc()
}

func (m *Metrics) PlayersPaired(variant string) {
	if m == nil {
		return
	}
	m.matchesPaired.WithLabelValues(variant).Inc()
}

func (m *Metrics) MatchCompleted(variant string, seconds float64) {
	if m == nil {
		return
	}
	m.matchesCompleted.WithLabelValues(variant).Inc()
	m.matchDuration.Observe(seconds)
}

func (m *Metrics) ScoreRejected(reason string) {
	if m == nil {
		return
	}
	m.scoreRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) RatingFailed() {
	if m == nil {
		return
	}
	m.ratingFailures.Inc()
}

func (m *Metrics) Disconnected() {
	if m == nil {
		return
	}
	m.disconnects.Inc()
}

func (m *Metrics) RoomExpired() {
	if m == nil {
		return
	}
	m.roomsExpired.Inc()
}

func (m *Metrics) MessageReceived(msgType string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(msgType).Inc()
}

func (m *Metrics) OutboundDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}
