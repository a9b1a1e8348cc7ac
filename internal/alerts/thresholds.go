package alerts

import "github.com/startinsight/signal-pipeline/internal/models"

// DefaultThresholds is the built-in catalog. Thresholds for the same metric
// get monotonically stricter values as severity rises.
func DefaultThresholds() []models.Threshold {
	return []models.Threshold{
		{
			MetricName: "validation_pass_rate",
			Operator:   models.OpLessThan,
			Value:      0.80,
			Severity:   models.SeverityWarning,
			Title:      "Validation pass rate degraded",
			Message:    "Validation pass rate %.2f fell below %.2f",
		},
		{
			MetricName: "validation_pass_rate",
			Operator:   models.OpLessThan,
			Value:      0.60,
			Severity:   models.SeverityCritical,
			Title:      "Validation pass rate critical",
			Message:    "Validation pass rate %.2f fell below %.2f",
		},
		{
			MetricName: "duplicate_rate",
			Operator:   models.OpGreaterThan,
			Value:      0.30,
			Severity:   models.SeverityWarning,
			Title:      "Duplicate rate elevated",
			Message:    "Duplicate rate %.2f exceeded %.2f",
		},
		{
			MetricName: "duplicate_rate",
			Operator:   models.OpGreaterThan,
			Value:      0.50,
			Severity:   models.SeverityError,
			Title:      "Duplicate rate high",
			Message:    "Duplicate rate %.2f exceeded %.2f",
		},
		{
			MetricName: "llm_error_rate",
			Operator:   models.OpGreaterThan,
			Value:      0.10,
			Severity:   models.SeverityWarning,
			Title:      "LLM error rate elevated",
			Message:    "LLM error rate %.2f exceeded %.2f",
		},
		{
			MetricName: "llm_error_rate",
			Operator:   models.OpGreaterThan,
			Value:      0.25,
			Severity:   models.SeverityCritical,
			Title:      "LLM error rate critical",
			Message:    "LLM error rate %.2f exceeded %.2f",
		},
	}
}
