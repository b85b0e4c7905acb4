package rows

import "github.com/google/uuid"

// FeedbackTargetType distinguishes whether a CommentFeedback row targets a
// single inference or an entire episode, matching the original system's
// `Enum('inference' = 1, 'episode' = 2)`.
type FeedbackTargetType string

const (
	FeedbackTargetInference FeedbackTargetType = "inference"
	FeedbackTargetEpisode   FeedbackTargetType = "episode"
)

// CommentFeedback is a free-text comment attached to an inference or
// episode. Grounded on migration_0000's `CREATE TABLE CommentFeedback`.
type CommentFeedback struct {
	ID         uuid.UUID          `ch:"id"`
	TargetID   uuid.UUID          `ch:"target_id"`
	TargetType FeedbackTargetType `ch:"target_type"`
	Value      string             `ch:"value"`
}

const CommentFeedbackTable = "CommentFeedback"

// DemonstrationFeedback records a corrected/ideal output for an inference,
// used as fine-tuning data. Grounded on migration_0000's
// `CREATE TABLE DemonstrationFeedback`.
type DemonstrationFeedback struct {
	ID          uuid.UUID `ch:"id"`
	InferenceID uuid.UUID `ch:"inference_id"`
	Value       string    `ch:"value"`
}

const DemonstrationFeedbackTable = "DemonstrationFeedback"
