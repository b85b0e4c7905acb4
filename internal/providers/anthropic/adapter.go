package anthropic

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

const defaultBaseURL = "https://api.anthropic.com/v1"
const defaultAnthropicVersion = "2023-06-01"
const defaultMaxTokens = int64(4096)

type Config struct {
	BaseURL string
	APIKey  string
	Version string
}

func (c *Config) messagesURL() string {
	base := c.BaseURL
	if base == "" {
		base = defaultBaseURL
	}

	return base + "/messages"
}

func (c *Config) version() string {
	if c.Version != "" {
		return c.Version
	}

	return defaultAnthropicVersion
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
		return nil, errkit.Wrap(errkit.ProviderBadResponse, err, "anthropic: round trip")
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, errkit.Wrap(errkit.ProviderBadResponse, err, "anthropic: read body")
	}

	if httpResp.StatusCode >= 400 {
		return nil, classifyHTTPError(httpResp.StatusCode, body)
	}

	var wr wireResponse
	if err := json.Unmarshal(body, &wr); err != nil {
		return nil, errkit.Wrap(errkit.ProviderBadResponse, err, "anthropic: decode response")
	}

	return &providers.InferenceResponse{
		Content:      fromWireContent(wr.Content),
		FinishReason: fromStopReason(wr.StopReason),
		Usage:        providers.Usage{InputTokens: wr.Usage.InputTokens, OutputTokens: wr.Usage.OutputTokens},
		RawRequest:   rawRequest,
		RawResponse:  body,
		ProviderName: "anthropic",
	}, nil
}

func (a *Adapter) InferStream(ctx context.Context, client *http.Client, req *providers.InferenceRequest) (*providers.Stream, error) {
	httpReq, _, err := a.buildRequest(ctx, req, true)
	if err != nil {
		return nil, err
	}

	httpResp, err := client.Do(httpReq)
	if err != nil {
		return nil, errkit.Wrap(errkit.ProviderBadResponse, err, "anthropic: round trip")
	}

	if httpResp.StatusCode >= 400 {
		body, _ := io.ReadAll(httpResp.Body)
		httpResp.Body.Close()

		return nil, classifyHTTPError(httpResp.StatusCode, body)
	}

	dec := newEventDecoder(httpResp.Body)

	agg := &streamAggState{}

	first, err := nextNonEmptyChunk(dec, agg)
	if err != nil {
		httpResp.Body.Close()
		return nil, err
	}

	if first == nil {
		httpResp.Body.Close()
		return nil, errkit.New(errkit.ProviderBadResponse, "anthropic: stream closed before first chunk")
	}

	chunks := make(chan *providers.StreamChunk)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		for {
			c, err := nextNonEmptyChunk(dec, agg)
			if err != nil {
				errs <- err
				return
			}

			if c == nil {
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
	maxTokens := defaultMaxTokens
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}

	wr := wireRequest{
		Model:       req.ModelName,
		System:      req.System,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      stream,
	}

	for _, m := range req.Messages {
		wr.Messages = append(wr.Messages, toWireMessage(m))
	}

	for _, t := range req.Tools {
		wr.Tools = append(wr.Tools, wireTool{Name: t.Name, Description: t.Description, InputSchema: t.Parameters})
	}

	payload, err := json.Marshal(wr)
	if err != nil {
		return nil, nil, errkit.Wrap(errkit.Internal, err, "anthropic: marshal request")
	}

	payload, err = mergeExtraBody(payload, req.ExtraBody)
	if err != nil {
		return nil, nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.Config.messagesURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, nil, errkit.Wrap(errkit.Internal, err, "anthropic: build http request")
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", a.Config.APIKey)
	httpReq.Header.Set("anthropic-version", a.Config.version())

	for k, v := range req.ExtraHeaders {
		httpReq.Header.Set(k, v)
	}

	return httpReq, payload, nil
}

func mergeExtraBody(payload []byte, extra map[string]any) ([]byte, error) {
	if len(extra) == 0 {
		return payload, nil
	}

	var merged map[string]any
	if err := json.Unmarshal(payload, &merged); err != nil {
		return nil, errkit.Wrap(errkit.Internal, err, "anthropic: decode payload for extra_body merge")
	}

	for k, v := range extra {
		merged[k] = v
	}

	out, err := json.Marshal(merged)
	if err != nil {
		return nil, errkit.Wrap(errkit.Internal, err, "anthropic: remarshal payload with extra_body")
	}

	return out, nil
}

func toWireMessage(m providers.Message) wireMessage {
	wm := wireMessage{Role: string(m.Role)}

	for _, c := range m.Content {
		switch c.Kind {
		case providers.ContentText:
			wm.Content = append(wm.Content, wireContentBlock{Type: "text", Text: c.Text})
		case providers.ContentToolCall:
			wm.Content = append(wm.Content, wireContentBlock{
				Type:  "tool_use",
				ID:    c.ToolCall.ID,
				Name:  c.ToolCall.Name,
				Input: json.RawMessage(c.ToolCall.ArgumentsJSON),
			})
		case providers.ContentToolResult:
			wm.Content = append(wm.Content, wireContentBlock{
				Type:      "tool_result",
				ToolUseID: c.ToolResultID,
				Content:   c.ToolResultContent,
				IsError:   c.ToolResultIsError,
			})
		}
	}

	return wm
}

func fromWireContent(blocks []wireContentBlock) []providers.ContentBlock {
	out := make([]providers.ContentBlock, 0, len(blocks))

	for _, b := range blocks {
		switch b.Type {
		case "text":
			out = append(out, providers.ContentBlock{Kind: providers.ContentText, Text: b.Text})
		case "tool_use":
			out = append(out, providers.ContentBlock{
				Kind: providers.ContentToolCall,
				ToolCall: &providers.ToolCall{
					ID:            b.ID,
					Name:          b.Name,
					ArgumentsJSON: string(b.Input),
				},
			})
		}
	}

	return out
}

func fromStopReason(reason string) providers.FinishReason {
	switch reason {
	case "end_turn", "stop_sequence":
		return providers.FinishStop
	case "max_tokens":
		return providers.FinishLength
	case "tool_use":
		return providers.FinishToolUse
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
		return errkit.New(errkit.ProviderBadAuth, fmt.Sprintf("anthropic: %s", msg))
	case http.StatusTooManyRequests:
		return errkit.New(errkit.ProviderRateLimited, fmt.Sprintf("anthropic: %s", msg))
	default:
		return errkit.New(errkit.ProviderBadResponse, fmt.Sprintf("anthropic: status %d: %s", status, msg))
	}
}

// eventDecoder reads Anthropic's "event: <type>\ndata: {...}\n\n" SSE
// framing over a *sse.Stream (github.com/tmaxmax/go-sse), the same
// client-side decoder the teacher's llm/httpclient/decoder.go wraps for
// every provider-response stream it reads.
type eventDecoder struct {
	stream *sse.Stream
}

func newEventDecoder(body io.Reader) *eventDecoder {
	return &eventDecoder{stream: sse.NewStream(body)}
}

func (d *eventDecoder) next() (*wireStreamEvent, bool, error) {
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

		var ev wireStreamEvent
		if err := json.Unmarshal([]byte(data), &ev); err != nil {
			return nil, false, err
		}

		return &ev, true, nil
	}
}

// streamAggState tracks running usage across message_start/message_delta
// events, since Anthropic reports input token usage once at the start and
// output usage incrementally at the end rather than per content-block
// delta the way OpenAI's wire format does.
type streamAggState struct {
	usage providers.Usage
}

// nextNonEmptyChunk pulls events from dec, skipping ones that carry no
// caller-visible delta (message_start, ping, content_block_start/stop),
// until it can emit a StreamChunk or the stream ends.
func nextNonEmptyChunk(dec *eventDecoder, agg *streamAggState) (*providers.StreamChunk, error) {
	for {
		ev, ok, err := dec.next()
		if err != nil {
			return nil, errkit.Wrap(errkit.ProviderBadResponse, err, "anthropic: decode stream event")
		}

		if !ok {
			return nil, nil
		}

		switch ev.Type {
		case "error":
			msg := ""
			if ev.Error != nil {
				msg = ev.Error.Message
			}

			return nil, errkit.New(errkit.ProviderBadResponse, "anthropic: "+msg)

		case "message_start":
			if ev.Message != nil {
				agg.usage.InputTokens = ev.Message.Usage.InputTokens
			}

			continue

		case "content_block_delta":
			if ev.Delta == nil {
				continue
			}

			switch ev.Delta.Type {
			case "text_delta":
				return &providers.StreamChunk{TextDelta: ev.Delta.Text}, nil
			case "input_json_delta":
				return &providers.StreamChunk{
					ToolCallDeltas: []providers.ToolCallDelta{{Index: ev.Index, ArgumentsJSON: ev.Delta.PartialJSON}},
				}, nil
			default:
				continue
			}

		case "message_delta":
			usage := agg.usage
			if ev.Usage != nil {
				usage.OutputTokens = ev.Usage.OutputTokens
			}

			reason := providers.FinishUnknown
			if ev.Delta != nil {
				reason = fromStopReason(ev.Delta.StopReason)
			}

			return &providers.StreamChunk{FinishReason: reason, Usage: &usage}, nil

		default:
			continue
		}
	}
}
