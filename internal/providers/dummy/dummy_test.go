package dummy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/tzcore/internal/providers"
)

func TestInferEchoesSystemAndMessages(t *testing.T) {
	req := &providers.InferenceRequest{
		ModelName: EchoRequestMessagesModel,
		System:    "you are a helpful assistant",
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: []providers.ContentBlock{
				{Kind: providers.ContentText, Text: "hello there"},
			}},
		},
	}

	resp, err := Adapter{}.Infer(context.Background(), nil, req)
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	assert.Contains(t, resp.Content[0].Text, "you are a helpful assistant")
	assert.Contains(t, resp.Content[0].Text, "hello there")
}

func TestInferPlainModelReturnsCannedResponse(t *testing.T) {
	resp, err := Adapter{}.Infer(context.Background(), nil, &providers.InferenceRequest{ModelName: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "dummy response", resp.Content[0].Text)
}

func TestInferErrorModelFails(t *testing.T) {
	_, err := Adapter{}.Infer(context.Background(), nil, &providers.InferenceRequest{ModelName: ErrorModel})
	require.Error(t, err)
}

func TestInferStreamEagerFirstChunk(t *testing.T) {
	req := &providers.InferenceRequest{
		ModelName: EchoRequestMessagesModel,
		System:    "alpha beta gamma",
	}

	stream, err := Adapter{}.InferStream(context.Background(), nil, req)
	require.NoError(t, err)
	require.NotNil(t, stream.First)
	assert.Equal(t, "alpha", stream.First.TextDelta)

	var rest []*providers.StreamChunk
	for c := range stream.Chunks {
		rest = append(rest, c)
	}

	require.Len(t, rest, 2)
	assert.Equal(t, " beta", rest[0].TextDelta)
	assert.Equal(t, " gamma", rest[1].TextDelta)
	assert.Equal(t, providers.FinishStop, rest[1].FinishReason)
	require.NotNil(t, rest[1].Usage)
}
