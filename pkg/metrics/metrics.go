package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	researchRuns     *prometheus.CounterVec
	researchDuration prometheus.Histogram
	llmFallbacks     *prometheus.CounterVec
	searchFailures   *prometheus.CounterVec
	calendarSyncs    *prometheus.CounterVec
	webhookNotices   *prometheus.CounterVec
	jobRuns          *prometheus.CounterVec
	jobFailures      *prometheus.CounterVec
	queueRejected    prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		researchRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskflow",
			Name:      "research_runs_total",
			Help:      "Research pipeline runs by outcome.",
		}, []string{"outcome"}),
		researchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "taskflow",
			Name:      "research_duration_seconds",
			Help:      "Wall time of a research pipeline run.",
			Buckets:   []float64{1, 2, 5, 10, 20, 40, 80, 160},
		}),
		llmFallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskflow",
			Name:      "llm_fallbacks_total",
			Help:      "Rule-based fallbacks taken instead of LLM output, by stage.",
		}, []string{"stage"}),
		searchFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskflow",
			Name:      "search_failures_total",
			Help:      "Failed search provider calls.",
		}, []string{"provider"}),
		calendarSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskflow",
			Name:      "calendar_syncs_total",
			Help:      "Calendar syncs by mode and outcome.",
		}, []string{"mode", "outcome"}),
		webhookNotices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskflow",
			Name:      "webhook_notifications_total",
			Help:      "Inbound calendar push notifications by resource state.",
		}, []string{"state"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskflow",
			Name:      "scheduler_job_runs_total",
			Help:      "Scheduler job executions.",
		}, []string{"job"}),
		jobFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "taskflow",
			Name:      "scheduler_job_failures_total",
			Help:      "Per-owner failures inside scheduler jobs.",
		}, []string{"job"}),
		queueRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "taskflow",
			Name:      "research_queue_rejected_total",
			Help:      "Research requests dropped because the queue was full.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.researchRuns, m.researchDuration, m.llmFallbacks, m.searchFailures,
		m.calendarSyncs, m.webhookNotices, m.jobRuns, m.jobFailures, m.queueRejected,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ResearchRun(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.researchRuns.WithLabelValues(outcome).Inc()
	m.researchDuration.Observe(seconds)
}

func (m *Metrics) LLMFallback(stage string) {
	if m == nil {
		return
	}
	m.llmFallbacks.WithLabelValues(stage).Inc()
}

func (m *Metrics) SearchFailure(provider string) {
	if m == nil {
		return
	}
	m.searchFailures.WithLabelValues(provider).Inc()
}

func (m *Metrics) CalendarSync(mode, outcome string) {
	if m == nil {
		return
	}
	m.calendarSyncs.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) WebhookNotification(state string) {
	if m == nil {
		return
	}
	m.webhookNotices.WithLabelValues(webhookStateLabel(state)).Inc()
}

func (m *Metrics) JobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *Metrics) JobFailure(job string) {
	if m == nil {
		return
	}
	m.jobFailures.WithLabelValues(job).Inc()
}

func (m *Metrics) QueueRejected() {
	if m == nil {
		return
	}
	m.queueRejected.Inc()
}

// webhookStateLabel bounds the label set; the state comes from a request header.
func webhookStateLabel(state string) string {
	switch state {
	case "sync", "exists", "not_exists":
		return state
	}
	return "other"
}
