package rows

import "github.com/google/uuid"

// FunctionType distinguishes the two kinds of inference functions spec §4.2
// defines (chat vs json), matching the original system's
// `Enum8('chat' = 1, 'json' = 2)`.
type FunctionType string

const (
	FunctionTypeChat FunctionType = "chat"
	FunctionTypeJSON FunctionType = "json"
)

// InferenceByEpisodeId indexes inferences by episode for episode-scoped
// lookups (e.g. feedback attached to an episode rather than a single
// inference). Grounded on migration_0007's
// `CREATE TABLE InferenceByEpisodeId`.
type InferenceByEpisodeId struct {
	EpisodeID    uuid.UUID    `ch:"episode_id"`
	ID           uuid.UUID    `ch:"id"`
	FunctionName string       `ch:"function_name"`
	VariantName  string       `ch:"variant_name"`
	FunctionType FunctionType `ch:"function_type"`
}

const InferenceByEpisodeIdTable = "InferenceByEpisodeId"
