package rows

import "github.com/google/uuid"

// BooleanMetricFeedback is one boolean-metric feedback row (target_id is
// either an inference id or an episode id depending on the metric's
// level). Grounded on migration_0000's `CREATE TABLE BooleanMetricFeedback`.
type BooleanMetricFeedback struct {
	ID         uuid.UUID `ch:"id"`
	TargetID   uuid.UUID `ch:"target_id"`
	MetricName string    `ch:"metric_name"`
	Value      bool      `ch:"value"`
}

const BooleanMetricFeedbackTable = "BooleanMetricFeedback"

// FloatMetricFeedback is the float-valued counterpart to
// BooleanMetricFeedback. Grounded on migration_0000's
// `CREATE TABLE FloatMetricFeedback`.
type FloatMetricFeedback struct {
	ID         uuid.UUID `ch:"id"`
	TargetID   uuid.UUID `ch:"target_id"`
	MetricName string    `ch:"metric_name"`
	Value      float32   `ch:"value"`
}

const FloatMetricFeedbackTable = "FloatMetricFeedback"
