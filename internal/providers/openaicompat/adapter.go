package openaicompat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tmaxmax/go-sse"

	"github.com/looplj/tzcore/internal/errkit"
	"github.com/looplj/tzcore/internal/providers"
)

// Adapter is the providers.Adapter implementation shared by every
// OpenAI-wire-format provider.
type Adapter struct {
	Config Config
}

var (
	_ providers.Adapter          = (*Adapter)(nil)
	_ providers.EmbeddingAdapter = (*Adapter)(nil)
)

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
		return nil, errkit.Wrap(errkit.ProviderBadResponse, err, "openaicompat: round trip")
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errkit.Wrap(errkit.ProviderBadResponse, err, "openaicompat: read body")
	}

	if httpResp.StatusCode >= 400 {
		return nil, classifyHTTPError(httpResp.StatusCode, body)
	}

	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return nil, errkit.Wrap(errkit.ProviderBadResponse, err, "openaicompat: decode response")
	}

	if len(wr.Choices) == 0 {
		return nil, errkit.New(errkit.ProviderBadResponse, "openaicompat: response has no choices")
	}

	choice := wr.Choices[0]

	resp := &providers.InferenceResponse{
		Content:      fromWireMessage(choice.Message),
		FinishReason: fromFinishReason(choice.FinishReason),
		RawRequest:   rawRequest,
		RawResponse:  body,
		ProviderName: string(a.Config.Platform),
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
		return nil, errkit.Wrap(errkit.ProviderBadResponse, err, "openaicompat: round trip")
	}

	if httpResp.StatusCode >= 400 {
		body, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()

		return nil, classifyHTTPError(httpResp.StatusCode, body)
	}

	dec := newSSEDecoder(httpResp.Body)

	first, ok, err := dec.next()
	if err != nil {
		httpResp.Body.Close()
		return nil, errkit.Wrap(errkit.ProviderBadResponse, err, "openaicompat: read first chunk")
	}

	if !ok {
		httpResp.Body.Close()
		return nil, errkit.New(errkit.ProviderBadResponse, "openaicompat: stream closed before first chunk")
	}

	chunks := make(chan *providers.StreamChunk)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		for {
			next, ok, err := dec.next()
			if err != nil {
				errs <- errkit.Wrap(errkit.ProviderBadResponse, err, "openaicompat: mid-stream decode")
				return
			}

			if !ok {
				return
			}

			c, err := translateChunk(next)
			if err != nil {
				errs <- err
				return
			}

			chunks <- c
		}
	}()

	firstChunk, err := translateChunk(first)
	if err != nil {
		httpResp.Body.Close()
		return nil, err
	}

	return &providers.Stream{
		First:  firstChunk,
		Chunks: chunks,
		Err:    errs,
		Close:  httpResp.Body.Close,
	}, nil
}

// Embed calls the platform's /embeddings endpoint. Azure and OpenRouter
// expose OpenAI-shaped embeddings responses the same way they do chat
// completions, so this reuses Config's auth/URL building rather than a
// separate per-platform path.
func (a *Adapter) Embed(ctx context.Context, client *http.Client, req *providers.EmbeddingRequest) (*providers.EmbeddingResponse, error) {
	payload, err := json.Marshal(wireEmbeddingRequest{Model: req.ModelName, Input: req.Input})
	if err != nil {
		return nil, errkit.Wrap(errkit.Internal, err, "openaicompat: marshal embeddings request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Config.embeddingsURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, errkit.Wrap(errkit.Internal, err, "openaicompat: build embeddings http request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	a.setAuth(httpReq)

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, errkit.Wrap(errkit.ProviderBadResponse, err, "openaicompat: embeddings round trip")
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errkit.Wrap(errkit.ProviderBadResponse, err, "openaicompat: read embeddings body")
	}

	if httpResp.StatusCode >= 400 {
		return nil, classifyHTTPError(httpResp.StatusCode, body)
	}

	var wr wireEmbeddingResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return nil, errkit.Wrap(errkit.ProviderBadResponse, err, "openaicompat: decode embeddings response")
	}

	if wr.Error != nil {
		return nil, errkit.New(errkit.ProviderBadResponse, "openaicompat: "+wr.Error.Message)
	}

	embeddings := make([][]float32, len(wr.Data))
	for _, d := range wr.Data {
		if d.Index < 0 || d.Index >= len(embeddings) {
			continue
		}

		embeddings[d.Index] = d.Embedding
	}

	resp := &providers.EmbeddingResponse{Embeddings: embeddings}
	if wr.Usage != nil {
		resp.Usage = providers.Usage{InputTokens: wr.Usage.PromptTokens}
	}

	return resp, nil
}

func (a *Adapter) buildRequest(ctx context.Context, req *providers.InferenceRequest, stream bool) (*http.Request, []byte, error) {
	wr := wireRequest{
		Model:       req.ModelName,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		MaxTokens:   req.MaxTokens,
		Stream:      stream,
		Seed:        req.Seed,
	}

	if req.System != "" {
		wr.Messages = append(wr.Messages, wireMessage{Role: "system", Content: req.System})
	}

	for _, m := range req.Messages {
		wr.Messages = append(wr.Messages, toWireMessage(m))
	}

	for _, t := range req.Tools {
		wr.Tools = append(wr.Tools, wireTool{
			Type: "function",
			Function: wireFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}

	if req.ToolChoice != "" {
		wr.ToolChoice = req.ToolChoice
	}

	payload, err := json.Marshal(wr)
	if err != nil {
		return nil, nil, errkit.Wrap(errkit.Internal, err, "openaicompat: marshal request")
	}

	payload, err = mergeExtraBody(payload, req.ExtraBody)
	if err != nil {
		return nil, nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Config.chatCompletionsURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, nil, errkit.Wrap(errkit.Internal, err, "openaicompat: build http request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	a.setAuth(httpReq)

	for k, v := range req.ExtraHeaders {
		httpReq.Header.Set(k, v)
	}

	return httpReq, payload, nil
}

func (a *Adapter) setAuth(req *http.Request) {
	if a.Config.Platform == PlatformAzure {
		req.Header.Set("api-key", a.Config.APIKey)
		return
	}

	req.Header.Set("Authorization", "Bearer "+a.Config.APIKey)
}

// mergeExtraBody shallow-merges extra into the already-marshaled payload,
// implementing spec §4.4(d): caller-supplied extra_body is injected
// verbatim into the provider-native JSON payload.
func mergeExtraBody(payload []byte, extra map[string]any) ([]byte, error) {
	if len(extra) == 0 {
		return payload, nil
	}

	var merged map[string]any
	if err := json.Unmarshal(payload, &merged); err != nil {
		return nil, errkit.Wrap(errkit.Internal, err, "openaicompat: decode payload for extra_body merge")
	}

	for k, v := range extra {
		merged[k] = v
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return nil, errkit.Wrap(errkit.Internal, err, "openaicompat: remarshal payload with extra_body")
	}

	return out, nil
}

func toWireMessage(m providers.Message) wireMessage {
	wm := wireMessage{Role: string(m.Role)}

	var text strings.Builder

	for _, c := range m.Content {
		switch c.Kind {
		case providers.ContentText:
			text.WriteString(c.Text)
		case providers.ContentToolCall:
			idx := len(wm.ToolCalls)
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{
				Index: &idx,
				ID:    c.ToolCall.ID,
				Type:  "function",
				Function: wireToolCallFunc{
					Name:      c.ToolCall.Name,
					Arguments: c.ToolCall.ArgumentsJSON,
				},
			})
		case providers.ContentToolResult:
			wm.ToolCallID = c.ToolResultID
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
			Kind: providers.ContentToolCall,
			ToolCall: &providers.ToolCall{
				ID:            tc.ID,
				Name:          tc.Function.Name,
				ArgumentsJSON: tc.Function.Arguments,
			},
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
		return errkit.New(errkit.ProviderBadAuth, fmt.Sprintf("openaicompat: %s", msg))
	case http.StatusTooManyRequests:
		return errkit.New(errkit.ProviderRateLimited, fmt.Sprintf("openaicompat: %s", msg))
	default:
		return errkit.New(errkit.ProviderBadResponse, fmt.Sprintf("openaicompat: status %d: %s", status, msg))
	}
}

// sseDecoder reads an OpenAI-style "data: {...}\n\n" Server-Sent Events
// body, grounded on the teacher's llm/httpclient/decoder.go defaultSSEDecoder:
// both wrap a *sse.Stream from github.com/tmaxmax/go-sse rather than hand-
// rolling a line scanner over "data:" framing.
type sseDecoder struct {
	stream *sse.Stream
}

func newSSEDecoder(body io.ReadCloser) *sseDecoder {
	return &sseDecoder{stream: sse.NewStream(body)}
}

// next returns the next decoded wireResponse chunk, or ok=false at a
// "[DONE]" sentinel or clean stream end.
func (d *sseDecoder) next() (*wireResponse, bool, error) {
	for {
		event, err := d.stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, false, nil
			}

			return nil, false, err
		}

		data := strings.TrimSpace(event.Data)
		if data == "" {
			continue
		}

		if data == "[DONE]" {
			return nil, false, nil
		}

		var wr wireResponse
		if err := json.Unmarshal([]byte(data), &wr); err != nil {
			return nil, false, err
		}

		return &wr, true, nil
	}
}

func translateChunk(wr *wireResponse) (*providers.StreamChunk, error) {
	if wr.Error != nil {
		return nil, errkit.New(errkit.ProviderBadResponse, "openaicompat: "+wr.Error.Message)
	}

	chunk := &providers.StreamChunk{}

	if len(wr.Choices) > 0 {
		choice := wr.Choices[0]

		chunk.TextDelta = choice.Delta.Content
		chunk.FinishReason = fromFinishReason(choice.FinishReason)

		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}

			chunk.ToolCallDeltas = append(chunk.ToolCallDeltas, providers.ToolCallDelta{
				Index:         idx,
				ID:            tc.ID,
				Name:          tc.Function.Name,
				ArgumentsJSON: tc.Function.Arguments,
			})
		}
	}

	if wr.Usage != nil {
		usage := providers.Usage{InputTokens: wr.Usage.PromptTokens, OutputTokens: wr.Usage.CompletionTokens}
		chunk.Usage = &usage
	}

	return chunk, nil
}
