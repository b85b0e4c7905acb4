package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/looplj/tzcore/internal/catalog"
	"github.com/looplj/tzcore/internal/pipeline"
	"github.com/looplj/tzcore/internal/store/rows"
)

// InferenceWriter adapts pipeline.Store.WriteInference (spec §4.6 step 4)
// to the row layout spec §4.10 describes: one ChatInference or
// JsonInference row, a paired ModelInference row, one InferenceTag row per
// tag, and the InferenceById/InferenceByEpisodeId index rows the original
// system maintains via materialized views — written directly here since
// this client, unlike ClickHouse's own view mechanism, already owns both
// sides of the write.
type InferenceWriter struct {
	client *Client
}

var _ pipeline.Store = (*InferenceWriter)(nil)

func NewInferenceWriter(client *Client) *InferenceWriter {
	return &InferenceWriter{client: client}
}

func (w *InferenceWriter) WriteInference(ctx context.Context, record pipeline.InferenceRecord) error {
	outputJSON, err := marshalContent(record.Content)
	if err != nil {
		return fmt.Errorf("store: marshal inference output: %w", err)
	}

	functionType := rows.FunctionTypeChat
	if record.FunctionKind == catalog.FunctionKindJson {
		functionType = rows.FunctionTypeJSON
	}

	if err := w.writeInferenceRow(ctx, record, outputJSON, functionType); err != nil {
		return err
	}

	if err := w.writeModelInferenceRow(ctx, record); err != nil {
		return err
	}

	if err := w.writeTagRows(ctx, record); err != nil {
		return err
	}

	if err := w.writeIndexRows(ctx, record, functionType); err != nil {
		return err
	}

	return w.writeCumulativeUsage(ctx, record)
}

func (w *InferenceWriter) writeInferenceRow(ctx context.Context, record pipeline.InferenceRecord, outputJSON string, functionType rows.FunctionType) error {
	if functionType == rows.FunctionTypeJSON {
		row := rows.JsonInference{
			ID:              record.InferenceID,
			FunctionName:    record.FunctionName,
			VariantName:     record.VariantName,
			EpisodeID:       record.EpisodeID,
			Input:           string(record.RawRequest),
			Output:          outputJSON,
			InferenceParams: "{}",
			Tags:            record.Tags,
		}

		return w.client.Insert(ctx, rows.JsonInferenceTable, row)
	}

	row := rows.ChatInference{
		ID:              record.InferenceID,
		FunctionName:    record.FunctionName,
		VariantName:     record.VariantName,
		EpisodeID:       record.EpisodeID,
		Input:           string(record.RawRequest),
		Output:          outputJSON,
		ToolParams:      "{}",
		InferenceParams: "{}",
		Tags:            record.Tags,
	}

	return w.client.Insert(ctx, rows.ChatInferenceTable, row)
}

func (w *InferenceWriter) writeModelInferenceRow(ctx context.Context, record pipeline.InferenceRecord) error {
	if record.Cached {
		// Cache-hit path excludes the cached usage from the raw_usage
		// tally to avoid double-counting cost (spec §4.8); no new
		// ModelInference row is written since no provider call happened.
		return nil
	}

	row := rows.ModelInference{
		ID:                record.InferenceID,
		InferenceID:       record.InferenceID,
		RawRequest:        string(record.RawRequest),
		RawResponse:       string(record.RawResponse),
		ModelName:         record.ModelName,
		ModelProviderName: record.ProviderName,
		InputTokens:       uint32(record.Usage.InputTokens),
		OutputTokens:      uint32(record.Usage.OutputTokens),
	}

	return w.client.Insert(ctx, rows.ModelInferenceTable, row)
}

func (w *InferenceWriter) writeTagRows(ctx context.Context, record pipeline.InferenceRecord) error {
	if len(record.Tags) == 0 {
		return nil
	}

	tagRows := make([]any, 0, len(record.Tags))

	for key, value := range record.Tags {
		tagRows = append(tagRows, rows.InferenceTag{
			FunctionName: record.FunctionName,
			Key:          key,
			Value:        value,
			InferenceID:  record.InferenceID,
		})
	}

	return w.client.InsertBatch(ctx, rows.InferenceTagTable, tagRows)
}

func (w *InferenceWriter) writeIndexRows(ctx context.Context, record pipeline.InferenceRecord, functionType rows.FunctionType) error {
	byID := rows.InferenceById{
		ID:           record.InferenceID,
		FunctionName: record.FunctionName,
		VariantName:  record.VariantName,
		EpisodeID:    record.EpisodeID,
		FunctionType: functionType,
	}
	if err := w.client.Insert(ctx, rows.InferenceByIdTable, byID); err != nil {
		return err
	}

	byEpisode := rows.InferenceByEpisodeId{
		EpisodeID:    record.EpisodeID,
		ID:           record.InferenceID,
		FunctionName: record.FunctionName,
		VariantName:  record.VariantName,
		FunctionType: functionType,
	}

	return w.client.Insert(ctx, rows.InferenceByEpisodeIdTable, byEpisode)
}

func (w *InferenceWriter) writeCumulativeUsage(ctx context.Context, record pipeline.InferenceRecord) error {
	if record.Cached {
		return nil
	}

	usageRows := []any{
		rows.CumulativeUsage{Type: rows.CumulativeUsageInputTokens, Count: uint64(record.Usage.InputTokens)},
		rows.CumulativeUsage{Type: rows.CumulativeUsageOutputTokens, Count: uint64(record.Usage.OutputTokens)},
		rows.CumulativeUsage{Type: rows.CumulativeUsageModelInferences, Count: 1},
	}

	return w.client.InsertBatch(ctx, rows.CumulativeUsageTable, usageRows)
}

func marshalContent(content any) (string, error) {
	b, err := json.Marshal(content)
	if err != nil {
		return "", err
	}

	return string(b), nil
}
