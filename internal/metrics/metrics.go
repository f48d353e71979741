package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the scheduler counters. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	assignments   *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	evidence      *prometheus.CounterVec
	notifications *prometheus.CounterVec
	promotions    *prometheus.CounterVec
	clicks        prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "assignments_total",
			Help:      "Assignment requests by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "operator_actions_total",
			Help:      "Operator actions by action and result.",
		}, []string{"action", "result"}),
		evidence: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "evidence_messages_total",
			Help:      "Settlement evidence messages by verification result.",
		}, []string{"result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "notifications_total",
			Help:      "Operator notifications by result.",
		}, []string{"result"}),
		promotions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "queue_promotions_total",
			Help:      "Queued tasks offered or handed to a freed operator, by policy.",
		}, []string{"policy"}),
		clicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "dispatch",
			Name:      "tracked_clicks_total",
			Help:      "First clicks on tracked task links.",
		}),
	}

	reg.MustRegister(m.assignments, m.transitions, m.evidence, m.notifications, m.promotions, m.clicks)
	return m
}

func (m *Metrics) Assignment(outcome string) {
	if m == nil {
		return
	}
	m.assignments.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Action(action, result string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(action, result).Inc()
}

func (m *Metrics) Evidence(result string) {
	if m == nil {
		return
	}
	m.evidence.WithLabelValues(result).Inc()
}

func (m *Metrics) Notification(ok bool) {
	if m == nil {
		return
	}
	result := "delivered"
	if !ok {
		result = "failed"
	}
	m.notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) Promotion(policy string) {
	if m == nil {
		return
	}
	m.promotions.WithLabelValues(policy).Inc()
}

func (m *Metrics) Click() {
	if m == nil {
		return
	}
	m.clicks.Inc()
}
