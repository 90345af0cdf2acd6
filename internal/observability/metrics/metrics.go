package metrics

import "github.com/prometheus/client_golang/prometheus"

const (
	namespace = "grants"
	subsystem = "disclosure"
)

// FormMetrics exposes counters/histograms for the disclosure flows.
type FormMetrics struct {
	analysisLatency   *prometheus.HistogramVec
	recommendations   *prometheus.CounterVec
	interactions      *prometheus.CounterVec
	ruleCache         *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	progressEvents    *prometheus.CounterVec
}

func NewFormMetrics(reg prometheus.Registerer) *FormMetrics {
	m := &FormMetrics{
		analysisLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "analysis_latency_seconds",
			Help:      "Latency of full form analysis including recommendations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"status"}),
		recommendations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "recommendation_runs_total",
			Help:      "Recommendation runs by outcome",
		}, []string{"outcome"}),
		interactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "field_interactions_total",
			Help:      "Field interactions recorded",
		}, []string{"interaction_type"}),
		ruleCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rule_cache_total",
			Help:      "Rule cache lookups by result",
		}, []string{"result"}),
		statusTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "session_transitions_total",
			Help:      "Session status transitions",
		}, []string{"status"}),
		progressEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "progress_events_total",
			Help:      "Progress events projected onto sessions",
		}, []string{"status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.analysisLatency, m.recommendations, m.interactions, m.ruleCache, m.statusTransitions, m.progressEvents)
	return m
}

func (m *FormMetrics) ObserveAnalysis(status string, seconds float64) {
	if m == nil {
		return
	}
	m.analysisLatency.WithLabelValues(status).Observe(seconds)
}

// ObserveRecommendations counts a run as generated, empty or failed.
func (m *FormMetrics) ObserveRecommendations(outcome string) {
	if m == nil {
		return
	}
	m.recommendations.WithLabelValues(outcome).Inc()
}

func (m *FormMetrics) ObserveInteraction(interactionType string) {
	if m == nil {
		return
	}
	m.interactions.WithLabelValues(interactionType).Inc()
}

func (m *FormMetrics) ObserveRuleCache(result string) {
	if m == nil {
		return
	}
	m.ruleCache.WithLabelValues(result).Inc()
}

func (m *FormMetrics) ObserveTransition(status string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(status).Inc()
}

func (m *FormMetrics) ObserveProgressEvent(status string) {
	if m == nil {
		return
	}
	m.progressEvents.WithLabelValues(status).Inc()
}
