package optimize

import "github.com/bkyoung/pr-optimizer/internal/domain"

// Metric names attached to every suggestion.
const (
	MetricSpeedup                = "estimated_speedup"
	MetricComplexityReduction    = "complexity_reduction"
	MetricReadabilityImprovement = "readability_improvement"
)

// MetricSuggestionCount is the file-level count of actionable
// suggestions carried on a FileResult.
const MetricSuggestionCount = "suggestion_count"

// severityWeights scale the base metric estimates. Higher severity
// means the backend judged the opportunity more impactful.
var severityWeights = map[string]float64{
	domain.SeverityLow:    0.1,
	domain.SeverityMedium: 0.3,
	domain.SeverityHigh:   0.6,
}

// opportunityBias bumps the speedup estimate for opportunity types that
// are structurally about asymptotic cost rather than style.
var opportunityBias = map[string]float64{
	"nested_loop":            0.25,
	"string_concatenation":   0.15,
	"repeated_computation":   0.15,
	"inefficient_lookup":     0.2,
	"unnecessary_allocation": 0.1,
}

// EstimateMetrics derives deterministic metric estimates from the
// suggestion's severity and opportunity type. The same inputs always
// produce the same numbers, so suggestion IDs and stored rows stay
// stable across reruns.
func EstimateMetrics(severity, opportunityType string) map[string]float64 {
	weight, ok := severityWeights[severity]
	if !ok {
		weight = severityWeights[domain.SeverityLow]
	}

	if opportunityType == "no_opportunity" {
		return map[string]float64{
			MetricSpeedup:                0,
			MetricComplexityReduction:    0,
			MetricReadabilityImprovement: 0,
		}
	}

	return map[string]float64{
		MetricSpeedup:                round2(weight + opportunityBias[opportunityType]),
		MetricComplexityReduction:    round2(weight * 0.8),
		MetricReadabilityImprovement: round2(weight * 0.5),
	}
}

// AggregateMetrics summarizes one file's suggestions: the actionable
// count, the severity mix, and the largest estimated speedup.
// Placeholder suggestions contribute nothing.
func AggregateMetrics(inputs []domain.SuggestionInput) map[string]float64 {
	agg := map[string]float64{
		MetricSuggestionCount: 0,
		MetricSpeedup:         0,
	}
	for _, in := range inputs {
		if in.OpportunityType == "no_opportunity" {
			continue
		}
		agg[MetricSuggestionCount]++
		agg["severity_"+in.Severity]++
		if v := in.Metrics[MetricSpeedup]; v > agg[MetricSpeedup] {
			agg[MetricSpeedup] = v
		}
	}
	return agg
}

func round2(v float64) float64 {
	return float64(int(v*100+0.5)) / 100
}
