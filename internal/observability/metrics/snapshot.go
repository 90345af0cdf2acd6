package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Snapshot is a compact read of the disclosure counters for the stats endpoint.
type Snapshot struct {
	Analyses           uint64            `json:"analyses"`
	AnalysisAvgMs      float64           `json:"analysis_avg_ms"`
	RecommendationRuns map[string]uint64 `json:"recommendation_runs"`
	Interactions       map[string]uint64 `json:"interactions"`
	RuleCache          map[string]uint64 `json:"rule_cache"`
	SessionTransitions map[string]uint64 `json:"session_transitions"`
}

// TakeSnapshot gathers the current values. A nil gatherer reads the default registry.
func TakeSnapshot(gatherer prometheus.Gatherer) Snapshot {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	snap := Snapshot{
		RecommendationRuns: map[string]uint64{},
		Interactions:       map[string]uint64{},
		RuleCache:          map[string]uint64{},
		SessionTransitions: map[string]uint64{},
	}
	mfs, err := gatherer.Gather()
	if err != nil {
		return snap
	}

	prefix := namespace + "_" + subsystem + "_"
	var latencySum float64
	for _, mf := range mfs {
		if mf == nil {
			continue
		}
		switch mf.GetName() {
		case prefix + "analysis_latency_seconds":
			for _, metric := range mf.Metric {
				if h := metric.GetHistogram(); h != nil {
					snap.Analyses += h.GetSampleCount()
					latencySum += h.GetSampleSum()
				}
			}
		case prefix + "recommendation_runs_total":
			sumCounterByLabel(mf, "outcome", snap.RecommendationRuns)
		case prefix + "field_interactions_total":
			sumCounterByLabel(mf, "interaction_type", snap.Interactions)
		case prefix + "rule_cache_total":
			sumCounterByLabel(mf, "result", snap.RuleCache)
		case prefix + "session_transitions_total":
			sumCounterByLabel(mf, "status", snap.SessionTransitions)
		}
	}
	if snap.Analyses > 0 {
		snap.AnalysisAvgMs = latencySum / float64(snap.Analyses) * 1000.0
	}
	return snap
}

func sumCounterByLabel(mf *dto.MetricFamily, label string, into map[string]uint64) {
	for _, metric := range mf.Metric {
		if metric == nil || metric.GetCounter() == nil {
			continue
		}
		into[labelValue(metric, label)] += uint64(metric.GetCounter().GetValue())
	}
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.Label {
		if lp != nil && lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
