package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "payouts"

// Metrics holds the service collectors. A nil *Metrics is a valid no-op.
type Metrics struct {
	registry *prometheus.Registry

	withdrawals    *prometheus.CounterVec
	riskDecisions  *prometheus.CounterVec
	workerAttempts *prometheus.CounterVec
	auditFailures  prometheus.Counter
	outboxEvents   *prometheus.CounterVec
	postSendErrors prometheus.Counter
	railLatency    *prometheus.HistogramVec
}

// New registers every collector on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "withdrawals_total",
			Help:      "Withdrawal requests by rail and resulting status.",
		}, []string{"rail", "status"}),
		riskDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "risk_decisions_total",
			Help:      "Risk gate verdicts by outcome and reason.",
		}, []string{"outcome", "reason"}),
		workerAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_attempts_total",
			Help:      "Background send attempts by rail and result.",
		}, []string{"rail", "result"}),
		auditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_audit_failures_total",
			Help:      "Ledger transaction rows that could not be written.",
		}),
		outboxEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_published_total",
			Help:      "Domain events delivered to the broker.",
		}, []string{"type"}),
		postSendErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "post_send_persist_failures_total",
			Help:      "Successful sends whose status could not be persisted.",
		}),
		railLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rail_call_duration_seconds",
			Help:      "Latency of rail calls.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"rail", "operation"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.withdrawals,
		m.riskDecisions,
		m.workerAttempts,
		m.auditFailures,
		m.outboxEvents,
		m.postSendErrors,
		m.railLatency,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Withdrawal(rail, status string) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(rail, status).Inc()
}

func (m *Metrics) RiskDecision(outcome, reason string) {
	if m == nil {
		return
	}
	m.riskDecisions.WithLabelValues(outcome, reason).Inc()
}

func (m *Metrics) WorkerAttempt(rail, result string) {
	if m == nil {
		return
	}
	m.workerAttempts.WithLabelValues(rail, result).Inc()
}

func (m *Metrics) LedgerAuditFailure() {
	if m == nil {
		return
	}
	m.auditFailures.Inc()
}

func (m *Metrics) OutboxPublished(eventType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.outboxEvents.WithLabelValues(eventType).Add(float64(n))
}

func (m *Metrics) PostSendPersistFailure() {
	if m == nil {
		return
	}
	m.postSendErrors.Inc()
}

// ObserveRail records the duration of a rail call started at start.
func (m *Metrics) ObserveRail(rail, operation string, start time.Time) {
	if m == nil {
		return
	}
	m.railLatency.WithLabelValues(rail, operation).Observe(time.Since(start).Seconds())
}
