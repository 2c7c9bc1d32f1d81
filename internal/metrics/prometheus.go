// Package metrics registers and exposes Prometheus metrics for the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the sync relay.
type Metrics struct {
	// Connection metrics
	ActiveConnections      prometheus.Gauge
	RegisteredParticipants prometheus.Gauge

	// Event routing metrics
	EventsTotal       *prometheus.CounterVec
	SendsDropped      prometheus.Counter
	RosterPublishes   prometheus.Counter
	ModerationActions *prometheus.CounterVec

	// Upload metrics
	UploadsTotal    prometheus.Counter
	UploadsRejected prometheus.Counter
}

// New creates and registers all relay metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates relay metrics registered on reg. Tests use a
// private registry to avoid duplicate-registration panics across cases.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_active_connections",
			Help: "Current number of open WebSocket connections",
		}),
		RegisteredParticipants: factory.NewGauge(prometheus.GaugeOpts{
			Name: "relay_registered_participants",
			Help: "Current number of participants present in the roster",
		}),
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_events_total",
			Help: "Total number of inbound events processed, by event name",
		}, []string{"event"}),
		SendsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_sends_dropped_total",
			Help: "Total number of outbound deliveries dropped (closed or slow connection)",
		}),
		RosterPublishes: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_roster_publishes_total",
			Help: "Total number of roster broadcasts triggered by registry changes",
		}),
		ModerationActions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_moderation_total",
			Help: "Total number of moderation actions processed, by action",
		}, []string{"action"}),
		UploadsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_uploads_total",
			Help: "Total number of audio files stored by the upload endpoint",
		}),
		UploadsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "relay_uploads_rejected_total",
			Help: "Total number of uploads rejected by content validation",
		}),
	}
}

// RecordEvent increments the inbound event counter for the given event name.
func (m *Metrics) RecordEvent(event string) {
	m.EventsTotal.WithLabelValues(event).Inc()
}

// RecordModeration increments the moderation counter for the given action.
func (m *Metrics) RecordModeration(action string) {
	m.ModerationActions.WithLabelValues(action).Inc()
}

// SetActiveConnections sets the open-connection gauge.
func (m *Metrics) SetActiveConnections(n int) {
	m.ActiveConnections.Set(float64(n))
}

// SetRegisteredParticipants sets the roster-size gauge.
func (m *Metrics) SetRegisteredParticipants(n int) {
	m.RegisteredParticipants.Set(float64(n))
}
