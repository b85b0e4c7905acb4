package openaicompat

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
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var wr wireRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&wr))
		assert.Equal(t, "gpt-4o", wr.Model)

		reason := "stop"
		_ = json.NewEncoder(w).Encode(wireResponse{
			Choices: []wireChoice{{Message: wireMessage{Role: "assistant", Content: "hi there"}, FinishReason: &reason}},
			Usage:   &wireUsage{PromptTokens: 3, CompletionTokens: 2},
		})
	}))
	defer srv.Close()

	a := New(Config{Platform: PlatformOpenAI, BaseURL: srv.URL, APIKey: "sk-test"})

	resp, err := a.Infer(context.Background(), srv.Client(), &providers.InferenceRequest{
		ModelName: "gpt-4o",
		Messages:  []providers.Message{{Role: providers.RoleUser, Content: []providers.ContentBlock{{Kind: providers.ContentText, Text: "hello"}}}},
	})
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "hi there", resp.Content[0].Text)
	assert.Equal(t, providers.FinishStop, resp.FinishReason)
	assert.Equal(t, int64(3), resp.Usage.InputTokens)
}

func TestInferClassifiesAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(wireResponse{Error: &wireError{Message: "invalid api key"}})
	}))
	defer srv.Close()

	a := New(Config{Platform: PlatformOpenAI, BaseURL: srv.URL, APIKey: "bad"})

	_, err := a.Infer(context.Background(), srv.Client(), &providers.InferenceRequest{ModelName: "gpt-4o"})
	require.Error(t, err)
	assert.Equal(t, errkit.ProviderBadAuth, errkit.KindOf(err))
}

func TestInferClassifiesRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(wireResponse{Error: &wireError{Message: "slow down"}})
	}))
	defer srv.Close()

	a := New(Config{Platform: PlatformOpenAI, BaseURL: srv.URL, APIKey: "k"})

	_, err := a.Infer(context.Background(), srv.Client(), &providers.InferenceRequest{ModelName: "gpt-4o"})
	require.Error(t, err)
	assert.Equal(t, errkit.ProviderRateLimited, errkit.KindOf(err))
}

func TestInferStreamEagerFirstChunkThenRest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")

		reason := "stop"
		events := []wireResponse{
			{Choices: []wireChoice{{Delta: wireMessage{Content: "hel"}}}},
			{Choices: []wireChoice{{Delta: wireMessage{Content: "lo"}, FinishReason: &reason}}},
		}

		for _, e := range events {
			b, _ := json.Marshal(e)
			fmt.Fprintf(w, "data: %s\n\n", b)
			w.(http.Flusher).Flush()
		}

		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	a := New(Config{Platform: PlatformOpenAI, BaseURL: srv.URL, APIKey: "k"})

	stream, err := a.InferStream(context.Background(), srv.Client(), &providers.InferenceRequest{ModelName: "gpt-4o", Stream: true})
	require.NoError(t, err)
	defer stream.Close()

	require.NotNil(t, stream.First)
	assert.Equal(t, "hel", stream.First.TextDelta)

	var rest []*providers.StreamChunk
	for c := range stream.Chunks {
		rest = append(rest, c)
	}

	require.Len(t, rest, 1)
	assert.Equal(t, "lo", rest[0].TextDelta)
	assert.Equal(t, providers.FinishStop, rest[0].FinishReason)
}

func TestAzureChatCompletionsURL(t *testing.T) {
	cfg := &Config{Platform: PlatformAzure, BaseURL: "https://my-resource.openai.azure.com", AzureDeploymentID: "gpt4o-prod", AzureAPIVersion: "2024-06-01"}
	assert.Equal(t, "https://my-resource.openai.azure.com/openai/deployments/gpt4o-prod/chat/completions?api-version=2024-06-01", cfg.chatCompletionsURL())
}
