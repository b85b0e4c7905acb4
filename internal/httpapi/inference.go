package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/looplj/tzcore/internal/aggregator"
	"github.com/looplj/tzcore/internal/catalog"
	"github.com/looplj/tzcore/internal/errkit"
	"github.com/looplj/tzcore/internal/log"
	"github.com/looplj/tzcore/internal/pipeline"
	"github.com/looplj/tzcore/internal/providers"
)

// inference handles POST /inference: parse the wire request, run the core
// pipeline, and write either a JSON body or an SSE stream depending on
// Params.Stream (spec §6.1/§6.2). Grounded on the teacher's
// ChatCompletionHandlers.ChatCompletion, adapted from its pull-based
// streams.Stream[T] to this gateway's sink-based internal/aggregator.Run.
func (h *Handlers) inference(c *gin.Context) {
	var wire inferenceRequest
	if err := c.ShouldBindJSON(&wire); err != nil {
		abortWithError(c, errkit.Wrap(errkit.InvalidRequest, err, "malformed request body"))
		return
	}

	params, err := h.resolveParams(&wire)
	if err != nil {
		abortWithError(c, err)
		return
	}

	ctx := c.Request.Context()

	out, err := h.Pipeline.Run(ctx, params)
	if err != nil {
		abortWithError(c, err)
		return
	}

	if out.Stream == nil {
		c.JSON(http.StatusOK, inferenceResponse{
			InferenceID:  out.InferenceID,
			EpisodeID:    out.EpisodeID,
			VariantName:  out.VariantName,
			Content:      contentToWire(out.Content),
			Usage:        usageToWire(out.Usage),
			FinishReason: out.FinishReason,
		})

		return
	}

	h.writeSSEStream(c, &wire, out)
}

// resolveParams translates the wire request into pipeline.Params, parsing
// the fields that need error handling beyond a pure field-by-field copy
// (episode id, inline variant config).
func (h *Handlers) resolveParams(wire *inferenceRequest) (pipeline.Params, error) {
	params := wire.toParams()

	if wire.EpisodeID != "" {
		id, err := uuid.Parse(wire.EpisodeID)
		if err != nil {
			return pipeline.Params{}, errkit.New(errkit.InvalidRequest, "episode_id is not a valid UUID")
		}

		params.EpisodeID = id
	}

	if len(wire.InternalDynamicVariantConfig) > 0 {
		if !wire.Dryrun {
			return pipeline.Params{}, errkit.New(errkit.InvalidRequest, "internal_dynamic_variant_config is only accepted when dryrun=true")
		}

		var variant catalog.Variant
		if err := json.Unmarshal(wire.InternalDynamicVariantConfig, &variant); err != nil {
			return pipeline.Params{}, errkit.Wrap(errkit.InvalidRequest, err, "malformed internal_dynamic_variant_config")
		}

		params.InlineVariantConfig = &variant
	}

	return params, nil
}

// writeSSEStream drains out.Stream through internal/aggregator, relaying
// every chunk as a `data:` line and terminating with `data: [DONE]` (spec
// §6.2). Header/disconnect handling follows the teacher's WriteSSEStream;
// the fold itself is sink-driven because internal/aggregator.Run pulls the
// stream internally rather than exposing a pull iterator.
func (h *Handlers) writeSSEStream(c *gin.Context, wire *inferenceRequest, out *pipeline.InferenceOutput) {
	ctx := c.Request.Context()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	kind := h.functionKind(out.FunctionName, wire.ModelName)

	flusher, canFlush := c.Writer.(http.Flusher)

	sink := func(chunk *providers.StreamChunk) error {
		deltas := chunkToWire(chunk)
		if len(deltas) == 0 && chunk.FinishReason == "" && chunk.Usage == nil {
			return nil
		}

		payload := sseChunk{
			InferenceID: out.InferenceID,
			EpisodeID:   out.EpisodeID,
			Content:     deltas,
		}

		if chunk.Usage != nil {
			w := usageToWire(*chunk.Usage)
			payload.Usage = &w
		}

		return writeSSEData(c, payload, canFlush, flusher)
	}

	result, err := aggregator.Run(ctx, out.Stream, kind, false, sink)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn(ctx, "stream aggregation ended with error", log.Cause(err))
	}

	h.Pipeline.FinalizeStream(ctx, out, kind, wire.Dryrun, wire.Tags, result)

	if wire.IncludeAggregatedResponse && result != nil {
		aggregated := sseChunk{
			InferenceID: out.InferenceID,
			EpisodeID:   out.EpisodeID,
			Aggregated:  true,
			Content:     contentDeltasFromBlocks(result.Content),
		}

		w := usageToWire(result.Usage)
		aggregated.Usage = &w

		_ = writeSSEData(c, aggregated, canFlush, flusher)
	}

	fmt.Fprint(c.Writer, "data: [DONE]\n\n")

	if canFlush {
		flusher.Flush()
	}
}

func writeSSEData(c *gin.Context, payload any, canFlush bool, flusher http.Flusher) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", body); err != nil {
		return err
	}

	if canFlush {
		flusher.Flush()
	}

	return nil
}

func contentDeltasFromBlocks(blocks []providers.ContentBlock) []contentDeltaWire {
	wire := contentToWire(blocks)
	deltas := make([]contentDeltaWire, len(wire))

	for i, b := range wire {
		deltas[i] = contentDeltaWire{
			Type:          b.Type,
			Text:          b.Text,
			ID:            b.ID,
			Name:          b.Name,
			ArgumentsJSON: b.ArgumentsJSON,
		}
	}

	return deltas
}

// functionKind resolves the FunctionKind the streaming aggregator needs
// (chat vs json content folding), looking up the catalog by name since
// pipeline.InferenceOutput does not carry it directly.
func (h *Handlers) functionKind(functionName, modelName string) catalog.FunctionKind {
	if modelName != "" {
		return catalog.FunctionKindChat
	}

	fn, err := h.Catalog.GetFunction(functionName)
	if err != nil {
		return catalog.FunctionKindChat
	}

	return fn.Kind
}
