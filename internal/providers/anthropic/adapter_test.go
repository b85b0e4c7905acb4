package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/tzcore/internal/errkit"
	"github.com/looplj/tzcore/internal/providers"
)

func TestInferHappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, defaultAnthropicVersion, r.Header.Get("anthropic-version"))

		var wr wireRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&wr))
		assert.Equal(t, "claude-3-5-sonnet", wr.Model)

		_ = json.NewEncoder(w).Encode(wireResponse{
			Content:    []wireContentBlock{{Type: "text", Text: "hi there"}},
			StopReason: "end_turn",
			Usage:      wireUsage{InputTokens: 5, OutputTokens: 2},
		})
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, APIKey: "test-key"})

	resp, err := a.Infer(context.Background(), srv.Client(), &providers.InferenceRequest{
		ModelName: "claude-3-5-sonnet",
		Messages:  []providers.Message{{Role: providers.RoleUser, Content: []providers.ContentBlock{{Kind: providers.ContentText, Text: "hello"}}}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "hi there", resp.Content[0].Text)
	assert.Equal(t, providers.FinishStop, resp.FinishReason)
	assert.Equal(t, int64(5), resp.Usage.InputTokens)
}

func TestInferClassifiesAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(wireResponse{Error: &wireError{Message: "invalid x-api-key"}})
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, APIKey: "bad"})

	_, err := a.Infer(context.Background(), srv.Client(), &providers.InferenceRequest{ModelName: "claude-3-5-sonnet"})
	require.Error(t, err)
	assert.Equal(t, errkit.ProviderBadAuth, errkit.KindOf(err))
}

func TestInferStreamTextThenUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")

		events := []wireStreamEvent{
			{Type: "message_start", Message: &wireResponse{Usage: wireUsage{InputTokens: 10}}},
			{Type: "content_block_delta", Delta: &wireDelta{Type: "text_delta", Text: "hel"}},
			{Type: "content_block_delta", Delta: &wireDelta{Type: "text_delta", Text: "lo"}},
			{Type: "message_delta", Delta: &wireDelta{StopReason: "end_turn"}, Usage: &wireUsage{OutputTokens: 4}},
		}

		for _, e := range events {
			b, _ := json.Marshal(e)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, b)
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	a := New(Config{BaseURL: srv.URL, APIKey: "k"})

	stream, err := a.InferStream(context.Background(), srv.Client(), &providers.InferenceRequest{ModelName: "claude-3-5-sonnet"})
	require.NoError(t, err)
	defer stream.Close()

	require.NotNil(t, stream.First)
	assert.Equal(t, "hel", stream.First.TextDelta)

	var rest []*providers.StreamChunk
	for c := range stream.Chunks {
		rest = append(rest, c)
	}

	require.Len(t, rest, 2)
	assert.Equal(t, "lo", rest[0].TextDelta)
	assert.Equal(t, providers.FinishStop, rest[1].FinishReason)
	require.NotNil(t, rest[1].Usage)
	assert.Equal(t, int64(10), rest[1].Usage.InputTokens)
	assert.Equal(t, int64(4), rest[1].Usage.OutputTokens)
}
