package providers

import (
	"context"
	"net/http"
)

// Adapter is the contract every provider kind implements (spec §4.4).
// Implementations live one package per provider under internal/providers/
// (openaicompat, anthropic, bedrock, vertex, dummy), mirroring the
// teacher's one-package-per-provider layout under llm/transformer/*.
type Adapter interface {
	// Infer performs one non-streamed request.
	Infer(ctx context.Context, client *http.Client, req *InferenceRequest) (*InferenceResponse, error)

	// InferStream opens a streaming request and eagerly consumes the first
	// chunk before returning, so routing/auth errors surface before the
	// caller commits to a streaming response (spec §4.5).
	InferStream(ctx context.Context, client *http.Client, req *InferenceRequest) (*Stream, error)
}

// Stream is a handshake-committed streaming response: First is the chunk
// already consumed during InferStream, Chunks yields every subsequent
// chunk until the channel closes. A send on Err means the stream ended
// abnormally; the router does not retry a different provider once a
// Stream has been returned to a caller (spec §4.5).
type Stream struct {
	First  *StreamChunk
	Chunks <-chan *StreamChunk
	Err    <-chan error

	// Close releases the underlying HTTP response body.
	Close func() error
}

// EmbeddingRequest is the provider-agnostic payload for one embeddings
// call, backing both the OpenAI-compatible /openai/v1/embeddings shim and
// DICL variant retrieval (spec SPEC_FULL §4.4 embeddings extension).
type EmbeddingRequest struct {
	ModelName string
	Input     []string
}

// EmbeddingResponse is the gateway-normalized result of one embeddings
// call.
type EmbeddingResponse struct {
	Embeddings [][]float32
	Usage      Usage
}

// EmbeddingAdapter is implemented by provider adapters whose platform
// exposes an embeddings endpoint. Not every Adapter does — callers type-
// assert rather than requiring it on the base Adapter interface, the same
// way a Stream's mid-flight failures are reported out of band rather than
// forcing every adapter to support streaming.
type EmbeddingAdapter interface {
	Embed(ctx context.Context, client *http.Client, req *EmbeddingRequest) (*EmbeddingResponse, error)
}
