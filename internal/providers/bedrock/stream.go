package bedrock

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/looplj/tzcore/internal/providers"
)

// decodeNextEvent pulls the next meaningful event off eventStream's
// channel, translating contentBlockDelta/messageStop events into a
// StreamChunk and skipping framing-only events (messageStart,
// contentBlockStart/Stop) that carry nothing the caller needs. Returns
// ok=false once the event channel closes.
func decodeNextEvent(eventStream *bedrockruntime.ConverseStreamEventStream) (*providers.StreamChunk, bool, error) {
	for event := range eventStream.Events() {
		switch v := event.(type) {
		case *brtypes.ConverseStreamOutputMemberContentBlockDelta:
			chunk := decodeContentBlockDelta(v.Value)
			if chunk != nil {
				return chunk, true, nil
			}

			continue

		case *brtypes.ConverseStreamOutputMemberMessageStop:
			return &providers.StreamChunk{FinishReason: fromStopReason(v.Value.StopReason)}, true, nil

		case *brtypes.ConverseStreamOutputMemberMetadata:
			if v.Value.Usage == nil {
				continue
			}

			usage := providers.Usage{
				InputTokens:  int64(aws.ToInt32(v.Value.Usage.InputTokens)),
				OutputTokens: int64(aws.ToInt32(v.Value.Usage.OutputTokens)),
			}

			return &providers.StreamChunk{Usage: &usage}, true, nil

		default:
			continue
		}
	}

	if err := eventStream.Err(); err != nil {
		return nil, false, classifyError(err)
	}

	return nil, false, nil
}

func decodeContentBlockDelta(delta brtypes.ContentBlockDeltaEvent) *providers.StreamChunk {
	switch v := delta.Delta.(type) {
	case *brtypes.ContentBlockDeltaMemberText:
		return &providers.StreamChunk{TextDelta: v.Value}

	case *brtypes.ContentBlockDeltaMemberToolUse:
		argsJSON := v.Value.Input
		if argsJSON == "" {
			argsJSON = "{}"
		}

		index := int(aws.ToInt32(delta.ContentBlockIndex))

		return &providers.StreamChunk{
			ToolCallDeltas: []providers.ToolCallDelta{{Index: index, ArgumentsJSON: argsJSON}},
		}

	default:
		return nil
	}
}
