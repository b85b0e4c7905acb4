package rows

import "github.com/google/uuid"

// BatchRequestStatus is the lifecycle state of a batch poll, matching the
// original system's `Enum('pending' = 1, 'completed' = 2, 'failed' = 3)`.
type BatchRequestStatus string

const (
	BatchRequestPending   BatchRequestStatus = "pending"
	BatchRequestCompleted BatchRequestStatus = "completed"
	BatchRequestFailed    BatchRequestStatus = "failed"
)

// BatchRequest records one poll of a batch inference job. A new row is
// written on every poll, giving a full history of status transitions, not
// just the current one. Grounded on migration_0006's
// `CREATE TABLE BatchRequest` (original_source tensorzero-core/src/db/
// clickhouse/migration_manager/migrations/migration_0006.rs), widened by
// migration_0008's added columns. Errors is left as the original Map shape
// and unused going forward — see internal/migrate/migrations'
// ErrorsColumn, which appends to ErrorsList instead of modifying Errors in
// place.
type BatchRequest struct {
	BatchID           uuid.UUID            `ch:"batch_id"`
	ID                uuid.UUID            `ch:"id"`
	BatchParams       string               `ch:"batch_params"`
	ModelName         string               `ch:"model_name"`
	ModelProviderName string               `ch:"model_provider_name"`
	Status            BatchRequestStatus   `ch:"status"`
	Errors            map[uuid.UUID]string `ch:"errors"`
	RawRequest        string               `ch:"raw_request"`
	RawResponse       string               `ch:"raw_response"`
	FunctionName      string               `ch:"function_name"`
	VariantName       string               `ch:"variant_name"`
	ErrorsList        []string             `ch:"errors_list"`
}

const BatchRequestTable = "BatchRequest"
