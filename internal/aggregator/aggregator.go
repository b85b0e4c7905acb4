// Package aggregator folds a provider's streaming chunk sequence back into
// a single InferenceResponse-shaped Result while forwarding every chunk
// downstream unchanged (spec §4.7). It is grounded on the teacher's
// llm/pipeline/stream usage-accumulation pattern and internal/pkg/streams'
// pull-until-closed shape, adapted from the teacher's generic Stream[T]
// iterator to the gateway's own providers.Stream (First + Chunks + Err).
package aggregator

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/looplj/tzcore/internal/catalog"
	"github.com/looplj/tzcore/internal/providers"
)

// Result is the folded terminal state of a stream (spec §4.7).
type Result struct {
	Content      []providers.ContentBlock
	RawText      string
	ParsedJSON   any
	JSONParseErr error

	FinishReason providers.FinishReason
	Usage        providers.Usage

	// Incomplete is true when the stream was abandoned before a terminal
	// chunk arrived — client disconnect or context cancellation (spec §4.7
	// "On client disconnect, stop pulling from upstream and record the
	// partial response as incomplete").
	Incomplete bool
}

// Sink receives every chunk pulled off the stream, unchanged, so an HTTP
// handler can relay it to the client as it arrives.
type Sink func(*providers.StreamChunk) error

type toolCallBuilder struct {
	id   string
	name string
	args strings.Builder
}

// Run drains stream, invoking sink for every chunk (including the First
// chunk InferStream already consumed), and returns the folded Result once
// the stream closes, ctx is done, or sink/the stream reports an error.
//
// When includeAggregatedResponse is true, one extra terminal chunk
// carrying the final FinishReason and the summed Usage is sent to sink
// before Run returns. That chunk carries no content; the assembled
// content is in the returned Result.
func Run(ctx context.Context, stream *providers.Stream, kind catalog.FunctionKind, includeAggregatedResponse bool, sink Sink) (*Result, error) {
	defer func() {
		if stream.Close != nil {
			_ = stream.Close()
		}
	}()

	var (
		text         strings.Builder
		usage        providers.Usage
		finishReason providers.FinishReason
	)

	toolBuilders := map[int]*toolCallBuilder{}

	fold := func(chunk *providers.StreamChunk) error {
		text.WriteString(chunk.TextDelta)

		for _, d := range chunk.ToolCallDeltas {
			b, ok := toolBuilders[d.Index]
			if !ok {
				b = &toolCallBuilder{}
				toolBuilders[d.Index] = b
			}

			if d.ID != "" {
				b.id = d.ID
			}

			if d.Name != "" {
				b.name = d.Name
			}

			b.args.WriteString(d.ArgumentsJSON)
		}

		if chunk.Usage != nil {
			usage = usage.Add(*chunk.Usage)
		}

		if chunk.FinishReason != "" {
			finishReason = chunk.FinishReason
		}

		return sink(chunk)
	}

	if err := fold(stream.First); err != nil {
		return &Result{Incomplete: true}, err
	}

streamLoop:
	for {
		select {
		case <-ctx.Done():
			return &Result{Incomplete: true, RawText: text.String(), Usage: usage}, ctx.Err()

		case chunk, ok := <-stream.Chunks:
			if !ok {
				break streamLoop
			}

			if err := fold(chunk); err != nil {
				return &Result{Incomplete: true, RawText: text.String(), Usage: usage}, err
			}

		case err, ok := <-stream.Err:
			if ok && err != nil {
				return &Result{Incomplete: true, RawText: text.String(), Usage: usage}, err
			}
		}
	}

	result := &Result{
		RawText:      text.String(),
		FinishReason: finishReason,
		Usage:        usage,
	}

	if kind == catalog.FunctionKindJson {
		var parsed any
		if err := json.Unmarshal([]byte(result.RawText), &parsed); err != nil {
			// A non-parseable partial is tolerated per spec §4.7; the raw
			// text still reaches the caller.
			result.JSONParseErr = err
		} else {
			result.ParsedJSON = parsed
		}
	} else {
		result.Content = buildContent(result.RawText, toolBuilders)
	}

	if includeAggregatedResponse {
		terminal := &providers.StreamChunk{
			FinishReason: finishReason,
			Usage:        &usage,
		}

		if err := sink(terminal); err != nil {
			return result, err
		}
	}

	return result, nil
}

func buildContent(text string, toolBuilders map[int]*toolCallBuilder) []providers.ContentBlock {
	var content []providers.ContentBlock

	if text != "" {
		content = append(content, providers.ContentBlock{Kind: providers.ContentText, Text: text})
	}

	indices := make([]int, 0, len(toolBuilders))
	for i := range toolBuilders {
		indices = append(indices, i)
	}

	sort.Ints(indices)

	for _, i := range indices {
		b := toolBuilders[i]
		content = append(content, providers.ContentBlock{
			Kind: providers.ContentToolCall,
			ToolCall: &providers.ToolCall{
				ID:            b.id,
				Name:          b.name,
				ArgumentsJSON: b.args.String(),
			},
		})
	}

	return content
}
