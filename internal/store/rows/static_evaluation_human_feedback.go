package rows

import "github.com/google/uuid"

// StaticEvaluationHumanFeedback is a human grader's judgment on one
// evaluator-produced output for a static-evaluation datapoint. Grounded on
// migration_0023's `CREATE TABLE StaticEvaluationHumanFeedback`
// (original_source tensorzero-internal/src/clickhouse/migration_manager/
// migrations/migration_0023.rs); `Value` holds the JSON-encoded feedback
// value (boolean or float, per MetricName's type) the same way that
// migration's comment documents.
type StaticEvaluationHumanFeedback struct {
	MetricName           string    `ch:"metric_name"`
	DatapointID          uuid.UUID `ch:"datapoint_id"`
	Output               string    `ch:"output"`
	Value                string    `ch:"value"`
	FeedbackID           uuid.UUID `ch:"feedback_id"`
	EvaluatorInferenceID uuid.UUID `ch:"evaluator_inference_id"`
}

const StaticEvaluationHumanFeedbackTable = "StaticEvaluationHumanFeedback"
