package rows

import "github.com/google/uuid"

// DynamicEvaluationRun records one dynamic-evaluation session's variant
// pins (which variant each function should use for the run's episodes)
// plus caller-supplied tags, so later episodes tagged with the run can be
// resolved back to a fixed variant assignment instead of normal sampling.
// Grounded on original_source tensorzero-internal/src/endpoints/
// dynamic_evaluation_run.rs (`INSERT INTO DynamicEvaluationRun (short_key,
// episode_id, variant_pins, experiment_tags)`); `short_key` there is a
// derived lookup key, folded here into RunID since this store issues
// lookups by RunID directly rather than through a secondary short-key
// index.
type DynamicEvaluationRun struct {
	RunID       uuid.UUID         `ch:"run_id"`
	VariantPins map[string]string `ch:"variant_pins"`
	Tags        map[string]string `ch:"tags"`
	ProjectName *string           `ch:"project_name"`
}

const DynamicEvaluationRunTable = "DynamicEvaluationRun"
