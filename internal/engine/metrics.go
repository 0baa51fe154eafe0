package engine

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the engine. A nil *Metrics records nothing.
type Metrics struct {
	telemetryReceived *prometheus.CounterVec
	evaluationsTotal  *prometheus.CounterVec
	edgesTotal        *prometheus.CounterVec
	errorsTotal       *prometheus.CounterVec
	actionsTotal      *prometheus.CounterVec
	timersStarted     prometheus.Counter
	timersFired       prometheus.Counter
	timersAbandoned   prometheus.Counter
	rulesLoaded       prometheus.Gauge
}

// NewMetrics creates and registers engine metrics. A nil registerer yields nil metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	m := &Metrics{
		telemetryReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay_engine",
			Name:      "telemetry_received_total",
			Help:      "Telemetry documents handed to the engine",
		}, []string{"topic"}),

		evaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay_engine",
			Name:      "evaluations_total",
			Help:      "Rule evaluations performed",
		}, []string{"rule_id"}),

		edgesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay_engine",
			Name:      "edges_total",
			Help:      "Rule activation transitions",
		}, []string{"rule_id", "edge"}),

		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay_engine",
			Name:      "evaluation_errors_total",
			Help:      "Malformed triggers or unknown tags met during evaluation",
		}, []string{"rule_id"}),

		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "relay_engine",
			Name:      "actions_total",
			Help:      "Actions delivered to collaborators",
		}, []string{"action_type", "status"}),

		timersStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relay_engine",
			Name:      "timers_started_total",
			Help:      "Delayed actions scheduled",
		}),

		timersFired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relay_engine",
			Name:      "timers_fired_total",
			Help:      "Delayed actions completed by the sweep",
		}),

		timersAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "relay_engine",
			Name:      "timers_abandoned_total",
			Help:      "Delayed actions dropped because their rule left the active set",
		}),

		rulesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "relay_engine",
			Name:      "rules_loaded",
			Help:      "Enabled rules in the active set",
		}),
	}

	reg.MustRegister(
		m.telemetryReceived,
		m.evaluationsTotal,
		m.edgesTotal,
		m.errorsTotal,
		m.actionsTotal,
		m.timersStarted,
		m.timersFired,
		m.timersAbandoned,
		m.rulesLoaded,
	)
	return m
}

func (m *Metrics) telemetry(topic string) {
	if m == nil {
		return
	}
	m.telemetryReceived.WithLabelValues(topic).Inc()
}

func (m *Metrics) evaluation(ruleID string) {
	if m == nil {
		return
	}
	m.evaluationsTotal.WithLabelValues(ruleID).Inc()
}

func (m *Metrics) edge(ruleID, edge string) {
	if m == nil {
		return
	}
	m.edgesTotal.WithLabelValues(ruleID, edge).Inc()
}

func (m *Metrics) evaluationError(ruleID string) {
	if m == nil {
		return
	}
	m.errorsTotal.WithLabelValues(ruleID).Inc()
}

func (m *Metrics) action(actionType string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "failed"
	}
	m.actionsTotal.WithLabelValues(actionType, status).Inc()
}

func (m *Metrics) timerStarted() {
	if m != nil {
		m.timersStarted.Inc()
	}
}

func (m *Metrics) timerFired() {
	if m != nil {
		m.timersFired.Inc()
	}
}

func (m *Metrics) timerAbandoned() {
	if m != nil {
		m.timersAbandoned.Inc()
	}
}

func (m *Metrics) setRulesLoaded(n int) {
	if m == nil {
		return
	}
	m.rulesLoaded.Set(float64(n))
}
