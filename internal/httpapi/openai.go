package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/looplj/tzcore/internal/aggregator"
	"github.com/looplj/tzcore/internal/errkit"
	"github.com/looplj/tzcore/internal/log"
	"github.com/looplj/tzcore/internal/pipeline"
	"github.com/looplj/tzcore/internal/providers"
)

// Prefixes recognized on an OpenAI-compatible request's "model" field (spec
// §6.1): explicit model-name or function-name resolution. An unprefixed
// name defaults to model-name resolution, logged as deprecated on every
// such request —
// matching the original system's own migration path away from implicit
// model dispatch.
const (
	modelNamePrefix    = "tensorzero::model_name::"
	functionNamePrefix = "tensorzero::function_name::"
)

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	Stream      bool                `json:"stream"`
	Temperature *float64            `json:"temperature"`
	Tools       []openAITool        `json:"tools"`
	ToolChoice  json.RawMessage     `json:"tool_choice"`
}

type openAITool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description"`
		Parameters  json.RawMessage `json:"parameters"`
	} `json:"function"`
}

type openAIChoice struct {
	Index        int               `json:"index"`
	Message      *openAIChatMessage `json:"message,omitempty"`
	Delta        *openAIChatMessage `json:"delta,omitempty"`
	FinishReason *string           `json:"finish_reason"`
}

type openAIUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
}

type openAIChatResponse struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Model   string         `json:"model"`
	Choices []openAIChoice `json:"choices"`
	Usage   *openAIUsage   `json:"usage,omitempty"`
}

// openAIError mirrors OpenAI's {"error": {message, type, param, code}}
// envelope (spec §7 "The OpenAI-compatible endpoint translates internal
// kinds to OpenAI-style error envelopes").
type openAIError struct {
	Error openAIErrorBody `json:"error"`
}

type openAIErrorBody struct {
	Message string  `json:"message"`
	Type    string  `json:"type"`
	Param   *string `json:"param"`
	Code    *string `json:"code"`
}

func abortWithOpenAIError(c *gin.Context, err error) {
	_ = c.Error(err)

	kind := string(errkit.KindOf(err))
	c.AbortWithStatusJSON(errkit.HTTPStatus(err), openAIError{
		Error: openAIErrorBody{
			Message: err.Error(),
			Type:    kind,
		},
	})
}

// chatCompletions handles POST /openai/v1/chat/completions by translating
// to the core Params/Run contract and translating the result back to an
// OpenAI-shaped response (spec §6.1). Grounded on the teacher's
// OpenAIHandlers orchestrator-per-transformer pattern, collapsed to one
// direct translation function since this gateway has a single core entry
// point rather than a provider-specific orchestrator per wire format.
func (h *Handlers) chatCompletions(c *gin.Context) {
	var req openAIChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithOpenAIError(c, errkit.Wrap(errkit.InvalidRequest, err, "malformed request body"))
		return
	}

	functionName, modelName := resolveOpenAIModel(c, req.Model)

	params := pipeline.Params{
		FunctionName: functionName,
		ModelName:    modelName,
		Stream:       req.Stream,
		Input: pipeline.Input{
			Messages: make([]pipeline.InputMessage, 0, len(req.Messages)),
		},
	}

	for _, m := range req.Messages {
		params.Input.Messages = append(params.Input.Messages, pipeline.InputMessage{
			Role: providers.Role(m.Role),
			Text: m.Content,
		})
	}

	if len(req.Tools) > 0 {
		params.Input.Tools = make([]providers.ToolDefinition, len(req.Tools))
		for i, t := range req.Tools {
			params.Input.Tools[i] = providers.ToolDefinition{
				Name:        t.Function.Name,
				Description: t.Function.Description,
				Parameters:  t.Function.Parameters,
			}
		}
	}

	ctx := c.Request.Context()

	out, err := h.Pipeline.Run(ctx, params)
	if err != nil {
		abortWithOpenAIError(c, err)
		return
	}

	respID := "chatcmpl-" + out.InferenceID.String()

	if out.Stream == nil {
		c.JSON(http.StatusOK, openAIChatResponse{
			ID:     respID,
			Object: "chat.completion",
			Model:  req.Model,
			Choices: []openAIChoice{{
				Index:        0,
				Message:      &openAIChatMessage{Role: "assistant", Content: contentAsText(out.Content)},
				FinishReason: finishReasonPtr(out.FinishReason),
			}},
			Usage: &openAIUsage{
				PromptTokens:     out.Usage.InputTokens,
				CompletionTokens: out.Usage.OutputTokens,
				TotalTokens:      out.Usage.InputTokens + out.Usage.OutputTokens,
			},
		})

		return
	}

	h.writeOpenAIChatStream(c, req.Model, respID, params, out)
}

func resolveOpenAIModel(c *gin.Context, raw string) (functionName, modelName string) {
	switch {
	case strings.HasPrefix(raw, functionNamePrefix):
		return strings.TrimPrefix(raw, functionNamePrefix), ""
	case strings.HasPrefix(raw, modelNamePrefix):
		return "", strings.TrimPrefix(raw, modelNamePrefix)
	default:
		log.Warn(c.Request.Context(), "model field has no tensorzero:: prefix, defaulting to model-name resolution (deprecated)",
			log.String("model", raw))

		return "", raw
	}
}

func (h *Handlers) writeOpenAIChatStream(c *gin.Context, wireModel, respID string, params pipeline.Params, out *pipeline.InferenceOutput) {
	ctx := c.Request.Context()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("Access-Control-Allow-Origin", "*")

	kind := h.functionKind(params.FunctionName, params.ModelName)

	flusher, canFlush := c.Writer.(http.Flusher)

	sink := func(chunk *providers.StreamChunk) error {
		if chunk.TextDelta == "" && chunk.FinishReason == "" {
			return nil
		}

		resp := openAIChatResponse{
			ID:     respID,
			Object: "chat.completion.chunk",
			Model:  wireModel,
			Choices: []openAIChoice{{
				Index:        0,
				Delta:        &openAIChatMessage{Content: chunk.TextDelta},
				FinishReason: finishReasonPtr(chunk.FinishReason),
			}},
		}

		return writeSSEData(c, resp, canFlush, flusher)
	}

	result, err := aggregator.Run(ctx, out.Stream, kind, false, sink)
	if err != nil {
		log.Warn(ctx, "openai-compatible stream aggregation ended with error", log.Cause(err))
	}

	h.Pipeline.FinalizeStream(ctx, out, kind, params.Dryrun, params.Tags, result)

	fmt.Fprint(c.Writer, "data: [DONE]\n\n")

	if canFlush {
		flusher.Flush()
	}
}

func finishReasonPtr(r providers.FinishReason) *string {
	if r == "" {
		return nil
	}

	s := string(r)

	return &s
}

func contentAsText(blocks []providers.ContentBlock) string {
	var b strings.Builder

	for _, c := range blocks {
		if c.Kind == providers.ContentText {
			b.WriteString(c.Text)
		}
	}

	return b.String()
}
