package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WorkflowMetrics exposes counters/histograms for the scheduling workflows
// and the hospital backend calls they make.
type WorkflowMetrics struct {
	attemptsTotal     *prometheus.CounterVec
	attemptLatency    *prometheus.HistogramVec
	hospitalLatency   *prometheus.HistogramVec
	sideEffectFailure *prometheus.CounterVec
}

func NewWorkflowMetrics(reg prometheus.Registerer) *WorkflowMetrics {
	m := &WorkflowMetrics{
		attemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "scheduling",
			Name:      "attempts_total",
			Help:      "Scheduling workflow attempts by operation and outcome",
		}, []string{"operation", "outcome"}),
		attemptLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "scheduling",
			Name:      "attempt_seconds",
			Help:      "End-to-end latency of a scheduling workflow attempt",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		hospitalLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "portal",
			Subsystem: "hospital",
			Name:      "request_seconds",
			Help:      "Latency of hospital backend requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		sideEffectFailure: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Subsystem: "scheduling",
			Name:      "side_effect_failures_total",
			Help:      "Best-effort follow-ups (audit, events, email) that failed",
		}, []string{"effect"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.attemptsTotal, m.attemptLatency, m.hospitalLatency, m.sideEffectFailure)
	return m
}

// ObserveAttempt records one finished workflow attempt.
func (m *WorkflowMetrics) ObserveAttempt(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.attemptsTotal.WithLabelValues(operation, outcome).Inc()
	m.attemptLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveHospitalRequest satisfies hospital.RequestObserver.
func (m *WorkflowMetrics) ObserveHospitalRequest(operation string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.hospitalLatency.WithLabelValues(operation, label).Observe(elapsed.Seconds())
}

func (m *WorkflowMetrics) ObserveSideEffectFailure(effect string) {
	if m == nil {
		return
	}
	m.sideEffectFailure.WithLabelValues(effect).Inc()
}
