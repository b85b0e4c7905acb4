// Package anthropic implements the provider adapter for Anthropic's Messages
// API (spec §4.4). Wire shapes mirror the teacher's
// llm/transformer/anthropic/usage.go field naming (input_tokens,
// output_tokens) generalized down to the fields the gateway needs.
package anthropic

import "encoding/json"

type wireContentBlock struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`

	// PartialJSON mirrors the wire field name only: streamed
	// input_json_delta fragments are read from wireDelta.PartialJSON, and
	// the adapter never sets this field.
	PartialJSON string `json:"partial_json,omitempty"`
}

type wireMessage struct {
	Role    string             `json:"role"`
	Content []wireContentBlock `json:"content"`
}

type wireTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	MaxTokens   int64         `json:"max_tokens"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type wireUsage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

type wireResponse struct {
	Content    []wireContentBlock `json:"content"`
	StopReason string             `json:"stop_reason"`
	Usage      wireUsage          `json:"usage"`
	Type       string             `json:"type"`
	Error      *wireError         `json:"error"`
}

type wireError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// wireStreamEvent covers every Anthropic SSE event shape the adapter needs:
// message_start (initial usage), content_block_delta (text_delta /
// input_json_delta), message_delta (stop_reason + output usage), and
// message_stop.
type wireStreamEvent struct {
	Type string `json:"type"`

	Index int `json:"index"`

	ContentBlock *wireContentBlock `json:"content_block,omitempty"`
	Delta        *wireDelta        `json:"delta,omitempty"`

	Message *wireResponse `json:"message,omitempty"`
	Usage   *wireUsage    `json:"usage,omitempty"`

	Error *wireError `json:"error,omitempty"`
}

type wireDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}
