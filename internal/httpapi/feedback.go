package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/looplj/tzcore/internal/errkit"
	"github.com/looplj/tzcore/internal/store"
)

// FeedbackRequest is the wire shape of POST /feedback. metric_name "comment"
// and "demonstration" are reserved (spec §6.1 "attach feedback to an
// inference or episode"), matching the original system's convention:
// every other metric_name is a boolean or float metric, with the value's
// JSON type choosing which.
type FeedbackRequest struct {
	MetricName  string          `json:"metric_name"`
	Value       json.RawMessage `json:"value"`
	InferenceID *uuid.UUID      `json:"inference_id"`
	EpisodeID   *uuid.UUID      `json:"episode_id"`
}

// FeedbackResult is POST /feedback's response body.
type FeedbackResult struct {
	FeedbackID uuid.UUID `json:"feedback_id"`
}

const (
	metricNameComment       = "comment"
	metricNameDemonstration = "demonstration"
)

func (h *Handlers) feedback(c *gin.Context) {
	var req FeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, errkit.Wrap(errkit.InvalidRequest, err, "malformed request body"))
		return
	}

	if req.MetricName == "" {
		abortWithError(c, errkit.New(errkit.InvalidRequest, "metric_name is required"))
		return
	}

	if req.InferenceID == nil && req.EpisodeID == nil {
		abortWithError(c, errkit.New(errkit.InvalidRequest, "exactly one of inference_id or episode_id must be set"))
		return
	}

	if req.InferenceID != nil && req.EpisodeID != nil {
		abortWithError(c, errkit.New(errkit.InvalidRequest, "exactly one of inference_id or episode_id must be set"))
		return
	}

	if req.MetricName == metricNameDemonstration && req.InferenceID == nil {
		abortWithError(c, errkit.New(errkit.InvalidRequest, "demonstration feedback requires inference_id"))
		return
	}

	if h.Feedback == nil {
		abortWithError(c, errkit.New(errkit.Internal, "no feedback store configured"))
		return
	}

	feedbackID, err := h.Feedback.WriteFeedback(c.Request.Context(), store.FeedbackRequest{
		MetricName:  req.MetricName,
		Value:       req.Value,
		InferenceID: req.InferenceID,
		EpisodeID:   req.EpisodeID,
	})
	if err != nil {
		abortWithError(c, errkit.Wrap(errkit.StorageError, err, "feedback write failed"))
		return
	}

	c.JSON(http.StatusOK, FeedbackResult{FeedbackID: feedbackID})
}
