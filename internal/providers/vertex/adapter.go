// Package vertex implements the provider adapter for Google Vertex AI's
// OpenAI-compatible chat completions endpoint (spec §4.4). Grounded on
// other_examples' rakunlabs-at vertex provider: Vertex exposes an
// OpenAI-wire-shaped endpoint at
// https://{location}-aiplatform.googleapis.com/v1/projects/{project}/
// locations/{location}/endpoints/openapi/chat/completions, authenticated
// with a Bearer token from Google Application Default Credentials rather
// than a static API key, refreshed per request via oauth2.TokenSource.
package vertex

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/looplj/tzcore/internal/errkit"
	"github.com/looplj/tzcore/internal/providers"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

type Config struct {
	ProjectID string
	Location  string

	// TokenSource defaults to google.DefaultTokenSource (ADC) when nil;
	// tests substitute a fake source instead of touching real ADC.
	TokenSource oauth2.TokenSource

	// baseURLOverride replaces the computed Vertex endpoint URL; tests set
	// this to point at an httptest.Server instead of a real ADC endpoint.
	baseURLOverride string
}

// NewTokenSource resolves Google Application Default Credentials scoped to
// the cloud-platform API, the same way rakunlabs-at's vertex provider does.
func NewTokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	ts, err := google.DefaultTokenSource(ctx, cloudPlatformScope)
	if err != nil {
		return nil, errkit.Wrap(errkit.ProviderBadAuth, err, "vertex: resolve application default credentials")
	}

	return ts, nil
}

func (c *Config) endpointURL() string {
	if c.baseURLOverride != "" {
		return c.baseURLOverride
	}

	return fmt.Sprintf(
		"https://%s-aiplatform.googleapis.com/v1/projects/%s/locations/%s/endpoints/openapi/chat/completions",
		c.Location, c.ProjectID, c.Location,
	)
}

type Adapter struct {
	Config Config
}

var _ providers.Adapter = (*Adapter)(nil)

func New(cfg Config) *Adapter {
	return &Adapter{Config: cfg}
}

func (a *Adapter) Infer(ctx context.Context, client *http.Client, req *providers.InferenceRequest) (*providers.InferenceResponse, error) {
	httpReq, rawRequest, err := a.buildRequest(ctx, req, false)
	if err != nil {
		return nil, err
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, errkit.Wrap(errkit.ProviderBadResponse, err, "vertex: round trip")
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errkit.Wrap(errkit.ProviderBadResponse, err, "vertex: read body")
	}

	if httpResp.StatusCode >= 400 {
		return nil, classifyHTTPError(httpResp.StatusCode, body)
	}

	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return nil, errkit.Wrap(errkit.ProviderBadResponse, err, "vertex: decode response")
	}

	if len(wr.Choices) == 0 {
		return nil, errkit.New(errkit.ProviderBadResponse, "vertex: response has no choices")
	}

	choice := wr.Choices[0]

	resp := &providers.InferenceResponse{
		Content:      fromWireMessage(choice.Message),
		FinishReason: fromFinishReason(choice.FinishReason),
		RawRequest:   rawRequest,
		RawResponse:  body,
		ProviderName: "vertex",
	}

	if wr.Usage != nil {
		resp.Usage = providers.Usage{InputTokens: wr.Usage.PromptTokens, OutputTokens: wr.Usage.CompletionTokens}
	}

	return resp, nil
}

func (a *Adapter) InferStream(ctx context.Context, client *http.Client, req *providers.InferenceRequest) (*providers.Stream, error) {
	httpReq, _, err := a.buildRequest(ctx, req, true)
	if err != nil {
		return nil, err
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, errkit.Wrap(errkit.ProviderBadResponse, err, "vertex: round trip")
	}

	if httpResp.StatusCode >= 400 {
		body, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()

		return nil, classifyHTTPError(httpResp.StatusCode, body)
	}

	scanner := bufio.NewScanner(httpResp.Body)

	first, ok, err := nextSSEChunk(scanner)
	if err != nil {
		httpResp.Body.Close()
		return nil, err
	}

	if !ok {
		httpResp.Body.Close()
		return nil, errkit.New(errkit.ProviderBadResponse, "vertex: stream closed before first chunk")
	}

	chunks := make(chan *providers.StreamChunk)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		for {
			c, ok, err := nextSSEChunk(scanner)
			if err != nil {
				errs <- err
				return
			}

			if !ok {
				return
			}

			chunks <- c
		}
	}()

	return &providers.Stream{
		First:  first,
		Chunks: chunks,
		Err:    errs,
		Close:  httpResp.Body.Close,
	}, nil
}

func (a *Adapter) buildRequest(ctx context.Context, req *providers.InferenceRequest, stream bool) (*http.Request, []byte, error) {
	wr := wireRequest{
		Model:       req.ModelName,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
	}

	if req.System != "" {
		wr.Messages = append(wr.Messages, wireMessage{Role: "system", Content: req.System})
	}

	for _, m := range req.Messages {
		wr.Messages = append(wr.Messages, toWireMessage(m))
	}

	for _, t := range req.Tools {
		wr.Tools = append(wr.Tools, wireTool{Type: "function", Function: wireFunction{Name: t.Name, Description: t.Description, Parameters: t.Parameters}})
	}

	payload, err := json.Marshal(wr)
	if err != nil {
		return nil, nil, errkit.Wrap(errkit.Internal, err, "vertex: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Config.endpointURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, nil, errkit.Wrap(errkit.Internal, err, "vertex: build http request")
	}

	httpReq.Header.Set("Content-Type", "application/json")

	if a.Config.TokenSource != nil {
		token, err := a.Config.TokenSource.Token()
		if err != nil {
			return nil, nil, errkit.Wrap(errkit.ProviderBadAuth, err, "vertex: refresh access token")
		}

		httpReq.Header.Set("Authorization", "Bearer "+token.AccessToken)
	}

	for k, v := range req.ExtraHeaders {
		httpReq.Header.Set(k, v)
	}

	return httpReq, payload, nil
}

type wireMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content,omitempty"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

type wireToolCall struct {
	ID       string           `json:"id,omitempty"`
	Function wireToolCallFunc `json:"function"`
}

type wireToolCallFunc struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

type wireTool struct {
	Type     string       `json:"type"`
	Function wireFunction `json:"function"`
}

type wireFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

type wireRequest struct {
	Model       string        `json:"model"`
	Messages    []wireMessage `json:"messages"`
	Tools       []wireTool    `json:"tools,omitempty"`
	Temperature *float64      `json:"temperature,omitempty"`
	TopP        *float64      `json:"top_p,omitempty"`
	MaxTokens   *int64        `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type wireChoice struct {
	Message      wireMessage `json:"message"`
	Delta        wireMessage `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

type wireUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
}

type wireResponse struct {
	Choices []wireChoice `json:"choices"`
	Usage   *wireUsage   `json:"usage"`
	Error   *wireError   `json:"error"`
}

type wireError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func toWireMessage(m providers.Message) wireMessage {
	wm := wireMessage{Role: string(m.Role)}

	var text strings.Builder

	for _, c := range m.Content {
		switch c.Kind {
		case providers.ContentText:
			text.WriteString(c.Text)
		case providers.ContentToolCall:
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				ID:       c.ToolCall.ID,
				Function: wireToolCallFunc{Name: c.ToolCall.Name, Arguments: c.ToolCall.ArgumentsJSON},
			})
		case providers.ContentToolResult:
			text.WriteString(c.ToolResultContent)
		}
	}

	wm.Content = text.String()

	return wm
}

func fromWireMessage(m wireMessage) []providers.ContentBlock {
	var blocks []providers.ContentBlock

	if m.Content != "" {
		blocks = append(blocks, providers.ContentBlock{Kind: providers.ContentText, Text: m.Content})
	}

	for _, tc := range m.ToolCalls {
		blocks = append(blocks, providers.ContentBlock{
			Kind:     providers.ContentToolCall,
			ToolCall: &providers.ToolCall{ID: tc.ID, Name: tc.Function.Name, ArgumentsJSON: tc.Function.Arguments},
		})
	}

	return blocks
}

func fromFinishReason(reason *string) providers.FinishReason {
	if reason == nil {
		return providers.FinishUnknown
	}

	switch *reason {
	case "stop":
		return providers.FinishStop
	case "length":
		return providers.FinishLength
	case "tool_calls":
		return providers.FinishToolUse
	case "content_filter":
		return providers.FinishContent
	default:
		return providers.FinishUnknown
	}
}

func classifyHTTPError(status int, body []byte) error {
	var wr wireResponse
	_ = json.Unmarshal(body, &wr)

	msg := string(body)
	if wr.Error != nil && wr.Error.Message != "" {
		msg = wr.Error.Message
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errkit.New(errkit.ProviderBadAuth, fmt.Sprintf("vertex: %s", msg))
	case http.StatusTooManyRequests:
		return errkit.New(errkit.ProviderRateLimited, fmt.Sprintf("vertex: %s", msg))
	default:
		return errkit.New(errkit.ProviderBadResponse, fmt.Sprintf("vertex: status %d: %s", status, msg))
	}
}

func nextSSEChunk(scanner *bufio.Scanner) (*providers.StreamChunk, bool, error) {
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			return nil, false, nil
		}

		var wr wireResponse
		if err := json.Unmarshal([]byte(data), &wr); err != nil {
			return nil, false, errkit.Wrap(errkit.ProviderBadResponse, err, "vertex: decode stream chunk")
		}

		chunk := &providers.StreamChunk{}

		if len(wr.Choices) > 0 {
			chunk.TextDelta = wr.Choices[0].Delta.Content
			chunk.FinishReason = fromFinishReason(wr.Choices[0].FinishReason)
		}

		if wr.Usage != nil {
			usage := providers.Usage{InputTokens: wr.Usage.PromptTokens, OutputTokens: wr.Usage.CompletionTokens}
			chunk.Usage = &usage
		}

		return chunk, true, nil
	}

	if err := scanner.Err(); err != nil {
		return nil, false, err
	}

	return nil, false, nil
}
