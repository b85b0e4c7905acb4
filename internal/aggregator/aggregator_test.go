package aggregator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/tzcore/internal/catalog"
	"github.com/looplj/tzcore/internal/providers"
)

func chunkStream(first *providers.StreamChunk, rest ...*providers.StreamChunk) *providers.Stream {
	chunks := make(chan *providers.StreamChunk, len(rest))
	for _, c := range rest {
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
	}
}

func TestRunConcatenatesTextAndSumsUsage(t *testing.T) {
	stream := chunkStream(
		&providers.StreamChunk{TextDelta: "Hello"},
		&providers.StreamChunk{TextDelta: " world", Usage: &providers.Usage{InputTokens: 3, OutputTokens: 2}},
		&providers.StreamChunk{FinishReason: providers.FinishStop, Usage: &providers.Usage{InputTokens: 0, OutputTokens: 1}},
	)

	var forwarded []*providers.StreamChunk

	result, err := Run(context.Background(), stream, catalog.FunctionKindChat, false, func(c *providers.StreamChunk) error {
		forwarded = append(forwarded, c)
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, forwarded, 3)
	assert.Equal(t, "Hello world", result.RawText)
	assert.Equal(t, providers.FinishStop, result.FinishReason)
	assert.Equal(t, int64(3), result.Usage.InputTokens)
	assert.Equal(t, int64(3), result.Usage.OutputTokens)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "Hello world", result.Content[0].Text)
}

func TestRunFoldsToolCallDeltasByIndex(t *testing.T) {
	stream := chunkStream(
		&providers.StreamChunk{ToolCallDeltas: []providers.ToolCallDelta{{Index: 0, ID: "call_1", Name: "get_weather", ArgumentsJSON: `{"loc`}}},
		&providers.StreamChunk{ToolCallDeltas: []providers.ToolCallDelta{{Index: 0, ArgumentsJSON: `ation":"sf"}`}}},
		&providers.StreamChunk{FinishReason: providers.FinishToolUse},
	)

	result, err := Run(context.Background(), stream, catalog.FunctionKindChat, false, func(*providers.StreamChunk) error { return nil })
	require.NoError(t, err)
	require.Len(t, result.Content, 1)
	assert.Equal(t, providers.ContentToolCall, result.Content[0].Kind)
	assert.Equal(t, "call_1", result.Content[0].ToolCall.ID)
	assert.Equal(t, `{"location":"sf"}`, result.Content[0].ToolCall.ArgumentsJSON)
}

func TestRunJsonKindParsesAccumulatedText(t *testing.T) {
	stream := chunkStream(
		&providers.StreamChunk{TextDelta: `{"a":`},
		&providers.StreamChunk{TextDelta: `1}`},
	)

	result, err := Run(context.Background(), stream, catalog.FunctionKindJson, false, func(*providers.StreamChunk) error { return nil })
	require.NoError(t, err)
	assert.Nil(t, result.JSONParseErr)
	assert.Equal(t, map[string]any{"a": float64(1)}, result.ParsedJSON)
}

func TestRunJsonKindTolerateUnparseablePartial(t *testing.T) {
	stream := chunkStream(&providers.StreamChunk{TextDelta: `{"a": tr`})

	result, err := Run(context.Background(), stream, catalog.FunctionKindJson, false, func(*providers.StreamChunk) error { return nil })
	require.NoError(t, err)
	assert.Error(t, result.JSONParseErr)
	assert.Equal(t, `{"a": tr`, result.RawText)
}

func TestRunIncludeAggregatedResponseEmitsTerminalChunk(t *testing.T) {
	stream := chunkStream(&providers.StreamChunk{TextDelta: "hi", FinishReason: providers.FinishStop})

	var forwarded []*providers.StreamChunk

	_, err := Run(context.Background(), stream, catalog.FunctionKindChat, true, func(c *providers.StreamChunk) error {
		forwarded = append(forwarded, c)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, forwarded, 2)
	assert.Equal(t, providers.FinishStop, forwarded[1].FinishReason)
}

func TestRunContextCancellationMarksIncomplete(t *testing.T) {
	chunks := make(chan *providers.StreamChunk)
	errs := make(chan error)

	stream := &providers.Stream{
		First:  &providers.StreamChunk{TextDelta: "partial"},
		Chunks: chunks,
		Err:    errs,
		Close:  func() error { return nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := Run(ctx, stream, catalog.FunctionKindChat, false, func(*providers.StreamChunk) error { return nil })
	require.Error(t, err)
	assert.True(t, result.Incomplete)
	assert.Equal(t, "partial", result.RawText)
}
