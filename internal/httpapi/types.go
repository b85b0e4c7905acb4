package httpapi

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/looplj/tzcore/internal/pipeline"
	"github.com/looplj/tzcore/internal/providers"
)

// inferenceRequest is the wire shape of POST /inference (spec §6.1's
// InferenceRequest field table).
type inferenceRequest struct {
	FunctionName string `json:"function_name"`
	ModelName    string `json:"model_name"`
	VariantName  string `json:"variant_name"`
	EpisodeID    string `json:"episode_id"`

	Input inputWire `json:"input"`

	Stream bool `json:"stream"`
	Dryrun bool `json:"dryrun"`

	IncludeAggregatedResponse bool `json:"include_aggregated_response"`
	IncludeRawUsage            bool `json:"include_raw_usage"`

	CacheOptions cacheOptionsWire `json:"cache_options"`

	Tags map[string]string `json:"tags"`

	OutputSchema json.RawMessage `json:"output_schema"`

	ToolParams *toolParamsWire `json:"tool_params"`

	InternalDynamicVariantConfig json.RawMessage `json:"internal_dynamic_variant_config"`
}

type inputWire struct {
	System   map[string]any    `json:"system"`
	Messages []inputMessageWire `json:"messages"`
}

type inputMessageWire struct {
	Role string `json:"role"`
	// Content is either a plain string (passed through as Text) or a
	// structured args object rendered against the variant's template for
	// this role (spec §3 "Input").
	Content json.RawMessage `json:"content"`
}

type toolParamsWire struct {
	Tools      []toolDefinitionWire `json:"tools"`
	ToolChoice string               `json:"tool_choice"`
}

type toolDefinitionWire struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// cacheOptionsWire mirrors spec §6.1's `{enabled: on|off|read_only|write_only, lookback_s?}`.
type cacheOptionsWire struct {
	Enabled    string `json:"enabled"`
	LookbackS  int64  `json:"lookback_s"`
}

func (c cacheOptionsWire) toParams() pipeline.CacheOptions {
	return pipeline.CacheOptions{
		Enabled:         c.Enabled == "on" || c.Enabled == "read_only" || c.Enabled == "write_only",
		LookbackSeconds: c.LookbackS,
	}
}

// toParams translates the wire request into pipeline.Params. The caller is
// responsible for parsing EpisodeID/InternalDynamicVariantConfig, which
// need error handling beyond a pure translation.
func (r *inferenceRequest) toParams() pipeline.Params {
	params := pipeline.Params{
		FunctionName:  r.FunctionName,
		ModelName:     r.ModelName,
		PinnedVariant: r.VariantName,
		Stream:        r.Stream,
		Dryrun:        r.Dryrun,
		Cache:         r.CacheOptions.toParams(),
		Tags:          r.Tags,
		Input: pipeline.Input{
			SystemArgs: r.Input.System,
			Messages:   make([]pipeline.InputMessage, 0, len(r.Input.Messages)),
		},
	}

	if r.ToolParams != nil {
		params.Input.ToolChoice = r.ToolParams.ToolChoice
		params.Input.Tools = make([]providers.ToolDefinition, len(r.ToolParams.Tools))

		for i, t := range r.ToolParams.Tools {
			params.Input.Tools[i] = providers.ToolDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			}
		}
	}

	for _, m := range r.Input.Messages {
		role := providers.Role(m.Role)

		msg := pipeline.InputMessage{Role: role}

		var asString string
		if err := json.Unmarshal(m.Content, &asString); err == nil {
			msg.Text = asString
		} else {
			var asArgs map[string]any
			if err := json.Unmarshal(m.Content, &asArgs); err == nil {
				msg.Args = asArgs
			}
		}

		params.Input.Messages = append(params.Input.Messages, msg)
	}

	return params
}

// inferenceResponse is the non-streaming JSON response for POST
// /inference, shaped after the original system's InferenceResponse: an
// inference/episode id pair plus the normalized content and usage.
type inferenceResponse struct {
	InferenceID  uuid.UUID                `json:"inference_id"`
	EpisodeID    uuid.UUID                `json:"episode_id"`
	VariantName  string                   `json:"variant_name"`
	Content      []contentBlockWire       `json:"content"`
	Usage        usageWire                `json:"usage"`
	FinishReason providers.FinishReason   `json:"finish_reason,omitempty"`
}

type usageWire struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

func usageToWire(u providers.Usage) usageWire {
	return usageWire{InputTokens: u.InputTokens, OutputTokens: u.OutputTokens}
}

type contentBlockWire struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	ID            string `json:"id,omitempty"`
	Name          string `json:"name,omitempty"`
	ArgumentsJSON string `json:"arguments,omitempty"`
}

func contentToWire(blocks []providers.ContentBlock) []contentBlockWire {
	out := make([]contentBlockWire, 0, len(blocks))

	for _, b := range blocks {
		switch b.Kind {
		case providers.ContentText:
			out = append(out, contentBlockWire{Type: "text", Text: b.Text})
		case providers.ContentToolCall:
			out = append(out, contentBlockWire{
				Type:          "tool_call",
				ID:            b.ToolCall.ID,
				Name:          b.ToolCall.Name,
				ArgumentsJSON: b.ToolCall.ArgumentsJSON,
			})
		case providers.ContentToolResult:
			out = append(out, contentBlockWire{
				Type: "tool_result",
				ID:   b.ToolResultID,
				Text: b.ToolResultContent,
			})
		}
	}

	return out
}

// sseChunk is one `data:` line's JSON body for a streaming /inference
// response (spec §6.2): either incremental content, or the terminal
// aggregated object when include_aggregated_response is set.
type sseChunk struct {
	InferenceID uuid.UUID          `json:"inference_id,omitempty"`
	EpisodeID   uuid.UUID          `json:"episode_id,omitempty"`
	Content     []contentDeltaWire `json:"content,omitempty"`
	Usage       *usageWire         `json:"usage,omitempty"`

	// Set only on the final, synthesized aggregated chunk.
	Aggregated bool `json:"aggregated,omitempty"`
}

// contentDeltaWire is one incremental content delta within a streaming
// chunk; tool_call deltas are indexed the way OpenAI-style SSE represents
// parallel in-progress tool calls (spec §4.4).
type contentDeltaWire struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	Index         int    `json:"index,omitempty"`
	ID            string `json:"id,omitempty"`
	Name          string `json:"name,omitempty"`
	ArgumentsJSON string `json:"arguments,omitempty"`
}

// chunkToWire translates one raw provider StreamChunk into the deltas
// carried by an incremental sseChunk.
func chunkToWire(chunk *providers.StreamChunk) []contentDeltaWire {
	var deltas []contentDeltaWire

	if chunk.TextDelta != "" {
		deltas = append(deltas, contentDeltaWire{Type: "text", Text: chunk.TextDelta})
	}

	for _, d := range chunk.ToolCallDeltas {
		deltas = append(deltas, contentDeltaWire{
			Type:          "tool_call",
			Index:         d.Index,
			ID:            d.ID,
			Name:          d.Name,
			ArgumentsJSON: d.ArgumentsJSON,
		})
	}

	return deltas
}
