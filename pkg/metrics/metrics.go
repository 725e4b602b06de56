package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the alert-lifecycle instruments.
type Metrics struct {
	alertsRaised    *prometheus.CounterVec
	alertsRejected  *prometheus.CounterVec
	acksWon         *prometheus.CounterVec
	acksLost        prometheus.Counter
	eventsDelivered *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
	connections     *prometheus.GaugeVec
	pendingAlerts   prometheus.Gauge
}

// NewMetrics registers the alert-lifecycle instruments on the given
// registerer (the default registerer when nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		alertsRaised: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emergency_alerts_raised_total",
				Help: "Total number of emergency alerts accepted by ingestion",
			},
			[]string{"severity"},
		),
		alertsRejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emergency_alerts_rejected_total",
				Help: "Total number of alert submissions rejected at validation",
			},
			[]string{"reason"},
		),
		acksWon: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emergency_acks_won_total",
				Help: "Total number of authoritative acknowledgments",
			},
			[]string{"role"},
		),
		acksLost: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "emergency_acks_lost_total",
				Help: "Total number of acknowledgment attempts that arrived after the winner",
			},
		),
		eventsDelivered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emergency_events_delivered_total",
				Help: "Total number of events enqueued to connections",
			},
			[]string{"event"},
		),
		eventsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "emergency_events_dropped_total",
				Help: "Total number of events dropped under backpressure",
			},
			[]string{"event"},
		),
		connections: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "websocket_connections",
				Help: "Currently registered connections by role",
			},
			[]string{"role"},
		),
		pendingAlerts: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "emergency_alerts_pending",
				Help: "Alerts raised but not yet acknowledged",
			},
		),
	}
}

func (m *Metrics) AlertRaised(severity string)  { m.alertsRaised.WithLabelValues(severity).Inc() }
func (m *Metrics) AlertRejected(reason string)  { m.alertsRejected.WithLabelValues(reason).Inc() }
func (m *Metrics) AckWon(role string)           { m.acksWon.WithLabelValues(role).Inc() }
func (m *Metrics) AckLost()                     { m.acksLost.Inc() }
func (m *Metrics) EventDelivered(event string)  { m.eventsDelivered.WithLabelValues(event).Inc() }
func (m *Metrics) EventDropped(event string)    { m.eventsDropped.WithLabelValues(event).Inc() }
func (m *Metrics) ConnectionOpened(role string) { m.connections.WithLabelValues(role).Inc() }
func (m *Metrics) ConnectionClosed(role string) { m.connections.WithLabelValues(role).Dec() }
func (m *Metrics) SetPendingAlerts(n int)       { m.pendingAlerts.Set(float64(n)) }
