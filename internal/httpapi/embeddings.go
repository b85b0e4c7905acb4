package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/looplj/tzcore/internal/errkit"
)

// embeddingsInput accepts OpenAI's two accepted shapes for "input": a single
// string, or an array of strings.
type embeddingsInput []string

func (in *embeddingsInput) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*in = embeddingsInput{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}

	*in = many

	return nil
}

type openAIEmbeddingsRequest struct {
	Model string          `json:"model"`
	Input embeddingsInput `json:"input"`
}

type openAIEmbedding struct {
	Object    string    `json:"object"`
	Index     int       `json:"index"`
	Embedding []float32 `json:"embedding"`
}

type openAIEmbeddingsResponse struct {
	Object string            `json:"object"`
	Data   []openAIEmbedding `json:"data"`
	Model  string            `json:"model"`
	Usage  openAIUsage       `json:"usage"`
}

// embeddings handles POST /openai/v1/embeddings (spec's OpenAI-compatible
// shims, "only their contracts specified"). The request is served by
// h.Embedder; a nil Embedder fails clearly rather than pretending to serve
// embeddings.
func (h *Handlers) embeddings(c *gin.Context) {
	var req openAIEmbeddingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithOpenAIError(c, errkit.Wrap(errkit.InvalidRequest, err, "malformed request body"))
		return
	}

	if len(req.Input) == 0 {
		abortWithOpenAIError(c, errkit.New(errkit.InvalidRequest, "input is required"))
		return
	}

	if h.Embedder == nil {
		abortWithOpenAIError(c, errkit.New(errkit.Internal, "no embedding provider is configured"))
		return
	}

	vectors, usage, err := h.Embedder.Embed(c.Request.Context(), req.Model, req.Input)
	if err != nil {
		abortWithOpenAIError(c, err)
		return
	}

	data := make([]openAIEmbedding, len(vectors))
	for i, v := range vectors {
		data[i] = openAIEmbedding{Object: "embedding", Index: i, Embedding: v}
	}

	c.JSON(http.StatusOK, openAIEmbeddingsResponse{
		Object: "list",
		Data:   data,
		Model:  req.Model,
		Usage: openAIUsage{
			PromptTokens: usage.InputTokens,
			TotalTokens:  usage.InputTokens,
		},
	})
}
