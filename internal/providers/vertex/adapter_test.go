package vertex

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/tzcore/internal/errkit"
	"github.com/looplj/tzcore/internal/providers"
)

type staticTokenSource string

func (s staticTokenSource) Token() (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: string(s), Expiry: time.Now().Add(time.Hour)}, nil
}

func TestEndpointURL(t *testing.T) {
	cfg := &Config{ProjectID: "my-proj", Location: "us-central1"}
	assert.Equal(t, "https://us-central1-aiplatform.googleapis.com/v1/projects/my-proj/locations/us-central1/endpoints/openapi/chat/completions", cfg.endpointURL())
}

func TestInferUsesBearerTokenFromSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer adc-token", r.Header.Get("Authorization"))

		reason := "stop"
		_ = json.NewEncoder(w).Encode(wireResponse{
			Choices: []wireChoice{{Message: wireMessage{Content: "hi"}, FinishReason: &reason}},
			Usage:   &wireUsage{PromptTokens: 1, CompletionTokens: 1},
		})
	}))
	defer srv.Close()

	a := New(Config{ProjectID: "p", Location: "l", TokenSource: staticTokenSource("adc-token"), baseURLOverride: srv.URL})

	resp, err := a.Infer(context.Background(), srv.Client(), &providers.InferenceRequest{ModelName: "gemini-1.5-pro"})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Content[0].Text)
}

func TestInferClassifiesAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(wireResponse{Error: &wireError{Message: "permission denied"}})
	}))
	defer srv.Close()

	a := New(Config{ProjectID: "p", Location: "l", TokenSource: staticTokenSource("adc-token"), baseURLOverride: srv.URL})

	_, err := a.Infer(context.Background(), srv.Client(), &providers.InferenceRequest{ModelName: "gemini-1.5-pro"})
	require.Error(t, err)
	assert.Equal(t, errkit.ProviderBadAuth, errkit.KindOf(err))
}
