package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/looplj/tzcore/internal/ids"
	"github.com/looplj/tzcore/internal/store/rows"
)

// FeedbackRequest is the store-facing shape of one feedback write, decoupled
// from internal/httpapi's wire JSON so this package never imports the HTTP
// layer. metric_name "comment"/"demonstration" are reserved names, matching
// the original system's convention (migration_0000's CommentFeedback/
// DemonstrationFeedback tables exist precisely because those two kinds
// don't fit the boolean/float metric row shape).
type FeedbackRequest struct {
	MetricName  string
	Value       json.RawMessage
	InferenceID *uuid.UUID
	EpisodeID   *uuid.UUID
}

// FeedbackWriter adapts feedback requests to the BooleanMetricFeedback/
// FloatMetricFeedback/CommentFeedback/DemonstrationFeedback row set (spec
// §4.10), grounded on InferenceWriter's single-purpose-method-per-row-kind
// shape.
type FeedbackWriter struct {
	client *Client
}

func NewFeedbackWriter(client *Client) *FeedbackWriter {
	return &FeedbackWriter{client: client}
}

// WriteFeedback inserts the row kind req.MetricName selects and returns the
// new feedback row's id.
func (w *FeedbackWriter) WriteFeedback(ctx context.Context, req FeedbackRequest) (uuid.UUID, error) {
	feedbackID := ids.New()

	switch req.MetricName {
	case "comment":
		return feedbackID, w.writeComment(ctx, feedbackID, req)
	case "demonstration":
		return feedbackID, w.writeDemonstration(ctx, feedbackID, req)
	default:
		return feedbackID, w.writeMetric(ctx, feedbackID, req)
	}
}

func (w *FeedbackWriter) writeComment(ctx context.Context, feedbackID uuid.UUID, req FeedbackRequest) error {
	var value string
	if err := json.Unmarshal(req.Value, &value); err != nil {
		return fmt.Errorf("store: comment feedback value must be a string: %w", err)
	}

	targetID, targetType, err := targetIDAndType(req)
	if err != nil {
		return err
	}

	row := rows.CommentFeedback{
		ID:         feedbackID,
		TargetID:   targetID,
		TargetType: targetType,
		Value:      value,
	}

	return w.client.Insert(ctx, rows.CommentFeedbackTable, row)
}

func (w *FeedbackWriter) writeDemonstration(ctx context.Context, feedbackID uuid.UUID, req FeedbackRequest) error {
	if req.InferenceID == nil {
		return fmt.Errorf("store: demonstration feedback requires an inference_id")
	}

	var value string
	if err := json.Unmarshal(req.Value, &value); err != nil {
		return fmt.Errorf("store: demonstration feedback value must be a string: %w", err)
	}

	row := rows.DemonstrationFeedback{
		ID:          feedbackID,
		InferenceID: *req.InferenceID,
		Value:       value,
	}

	return w.client.Insert(ctx, rows.DemonstrationFeedbackTable, row)
}

// writeMetric writes a boolean or float metric feedback row, choosing the
// row kind from the JSON value's own type rather than a config-declared
// metric registry (this module carries no metric-level/type catalog; see
// DESIGN.md).
func (w *FeedbackWriter) writeMetric(ctx context.Context, feedbackID uuid.UUID, req FeedbackRequest) error {
	targetID, _, err := targetIDAndType(req)
	if err != nil {
		return err
	}

	var asBool bool
	if err := json.Unmarshal(req.Value, &asBool); err == nil {
		row := rows.BooleanMetricFeedback{
			ID:         feedbackID,
			TargetID:   targetID,
			MetricName: req.MetricName,
			Value:      asBool,
		}

		return w.client.Insert(ctx, rows.BooleanMetricFeedbackTable, row)
	}

	var asFloat float64
	if err := json.Unmarshal(req.Value, &asFloat); err == nil {
		row := rows.FloatMetricFeedback{
			ID:         feedbackID,
			TargetID:   targetID,
			MetricName: req.MetricName,
			Value:      float32(asFloat),
		}

		return w.client.Insert(ctx, rows.FloatMetricFeedbackTable, row)
	}

	return fmt.Errorf("store: metric %q value must be a boolean or a number", req.MetricName)
}

func targetIDAndType(req FeedbackRequest) (uuid.UUID, rows.FeedbackTargetType, error) {
	switch {
	case req.InferenceID != nil:
		return *req.InferenceID, rows.FeedbackTargetInference, nil
	case req.EpisodeID != nil:
		return *req.EpisodeID, rows.FeedbackTargetEpisode, nil
	default:
		return uuid.Nil, "", fmt.Errorf("store: exactly one of inference_id or episode_id must be set")
	}
}
