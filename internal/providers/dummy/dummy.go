// Package dummy implements a local, no-network provider adapter used for
// tests and examples (spec §3 "Provider", §6.3 scenario #2). It never
// calls out to *http.Client; the client parameter exists only to satisfy
// providers.Adapter.
package dummy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/looplj/tzcore/internal/providers"
)

// EchoRequestMessagesModel is the special model name that makes Infer
// return the rendered system prompt (followed by the text blocks of every
// message, whatever their role) back as the
// response content, so tests can assert on exactly what the pipeline
// rendered without a real upstream.
const EchoRequestMessagesModel = "echo_request_messages"

// ErrorModel always fails, for exercising model/variant fallback.
const ErrorModel = "error"

// Adapter is the dummy providers.Adapter implementation.
type Adapter struct{}

var _ providers.Adapter = Adapter{}

func (Adapter) Infer(_ context.Context, _ *http.Client, req *providers.InferenceRequest) (*providers.InferenceResponse, error) {
	if req.ModelName == ErrorModel {
		return nil, fmt.Errorf("dummy: model %q always fails", ErrorModel)
	}

	text := responseText(req)

	raw, _ := json.Marshal(map[string]any{
		"model": req.ModelName,
		"text":  text,
	})

	return &providers.InferenceResponse{
		Content: []providers.ContentBlock{
			{Kind: providers.ContentText, Text: text},
		},
		FinishReason: providers.FinishStop,
		Usage:        providers.Usage{InputTokens: int64(len(text)), OutputTokens: int64(len(text))},
		RawRequest:   mustMarshal(req),
		RawResponse:  raw,
		ProviderName: "dummy",
	}, nil
}

func (a Adapter) InferStream(ctx context.Context, client *http.Client, req *providers.InferenceRequest) (*providers.Stream, error) {
	resp, err := a.Infer(ctx, client, req)
	if err != nil {
		return nil, err
	}

	text := ""
	if len(resp.Content) > 0 {
		text = resp.Content[0].Text
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		words = []string{""}
	}

	all := make([]*providers.StreamChunk, 0, len(words))

	for i, w := range words {
		delta := w
		if i > 0 {
			delta = " " + w
		}

		chunk := &providers.StreamChunk{TextDelta: delta}
		if i == len(words)-1 {
			chunk.FinishReason = providers.FinishStop
			usage := resp.Usage
			chunk.Usage = &usage
		}

		all = append(all, chunk)
	}

	// The dummy adapter builds its whole response synchronously, so there
	// is no real handshake to perform — First is just all[0], and the rest
	// is pre-buffered onto Chunks, matching the shape a real network
	// adapter's InferStream returns once its first chunk has arrived.
	first := all[0]

	chunks := make(chan *providers.StreamChunk, len(all)-1)
	for _, c := range all[1:] {
		chunks <- c
	}

	close(chunks)

	errs := make(chan error)
	close(errs)

	return &providers.Stream{
		First:  first,
		Chunks: chunks,
		Err:    errs,
		Close:  func() error { return nil },
	}, nil
}

func responseText(req *providers.InferenceRequest) string {
	if req.ModelName != EchoRequestMessagesModel {
		return "dummy response"
	}

	var b strings.Builder

	if req.System != "" {
		b.WriteString(req.System)
	}

	for _, m := range req.Messages {
		for _, c := range m.Content {
			if c.Kind == providers.ContentText && c.Text != "" {
				if b.Len() > 0 {
					b.WriteString(" ")
				}

				b.WriteString(c.Text)
			}
		}
	}

	return b.String()
}

func mustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return []byte(`{}`)
	}

	return b
}
