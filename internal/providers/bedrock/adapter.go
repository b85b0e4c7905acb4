// Package bedrock implements the provider adapter over AWS Bedrock's
// Converse/ConverseStream APIs (spec §4.4). Request/response translation
// mirrors the union-type encoding pattern in goadesign-goa-ai's
// features/model/bedrock/client.go (brtypes.ContentBlockMember* variants,
// document.Interface tool schemas), generalized from that repo's
// planner-message shape down to the gateway's providers.Message shape.
//
// Bedrock's native response type is not JSON-serializable (spec §4.4),
// so RawResponse here holds a best-effort debug serialization (json.Marshal
// of the SDK output, or a %#v dump when that fails), with
// InferenceResponse.RawResponseOpaque set to say so.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/looplj/tzcore/internal/errkit"
	"github.com/looplj/tzcore/internal/providers"
)

// RuntimeClient is the subset of *bedrockruntime.Client the adapter needs,
// so tests can substitute a fake.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
	ConverseStream(ctx context.Context, params *bedrockruntime.ConverseStreamInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error)
}

type Adapter struct {
	Runtime RuntimeClient
}

var _ providers.Adapter = (*Adapter)(nil)

func New(runtime RuntimeClient) *Adapter {
	return &Adapter{Runtime: runtime}
}

// Infer ignores the *http.Client parameter — Bedrock calls go through the
// AWS SDK's own signed transport, not a caller-supplied client, matching
// goa-ai's RuntimeClient-backed adapter rather than internal/providers'
// usual net/http path.
func (a *Adapter) Infer(ctx context.Context, _ *http.Client, req *providers.InferenceRequest) (*providers.InferenceResponse, error) {
	messages, system, err := encodeMessages(req)
	if err != nil {
		return nil, err
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:         aws.String(req.ModelName),
		Messages:        messages,
		System:          system,
		InferenceConfig: inferenceConfig(req),
		ToolConfig:      encodeToolConfig(req.Tools),
	}

	rawRequest := debugJSON(input)

	out, err := a.Runtime.Converse(ctx, input)
	if err != nil {
		return nil, classifyError(err)
	}

	content, finish, usage := decodeConverseOutput(out)

	return &providers.InferenceResponse{
		Content:           content,
		FinishReason:      finish,
		Usage:             usage,
		RawRequest:        rawRequest,
		RawResponse:       debugJSON(out),
		RawResponseOpaque: true,
		ProviderName:      "bedrock",
	}, nil
}

func (a *Adapter) InferStream(ctx context.Context, _ *http.Client, req *providers.InferenceRequest) (*providers.Stream, error) {
	messages, system, err := encodeMessages(req)
	if err != nil {
		return nil, err
	}

	input := &bedrockruntime.ConverseStreamInput{
		ModelId:         aws.String(req.ModelName),
		Messages:        messages,
		System:          system,
		InferenceConfig: inferenceConfig(req),
		ToolConfig:      encodeToolConfig(req.Tools),
	}

	out, err := a.Runtime.ConverseStream(ctx, input)
	if err != nil {
		return nil, classifyError(err)
	}

	eventStream := out.GetStream()

	chunks := make(chan *providers.StreamChunk)
	errs := make(chan error, 1)

	first, ok, err := decodeNextEvent(eventStream)
	if err != nil {
		eventStream.Close()
		return nil, err
	}

	if !ok {
		eventStream.Close()
		return nil, errkit.New(errkit.ProviderBadResponse, "bedrock: stream closed before first chunk")
	}

	go func() {
		defer close(chunks)
		defer close(errs)
		defer eventStream.Close()

		for {
			chunk, ok, err := decodeNextEvent(eventStream)
			if err != nil {
				errs <- err
				return
			}

			if !ok {
				return
			}

			chunks <- chunk
		}
	}()

	return &providers.Stream{
		First:  first,
		Chunks: chunks,
		Err:    errs,
		Close:  func() error { return nil },
	}, nil
}

func inferenceConfig(req *providers.InferenceRequest) *brtypes.InferenceConfiguration {
	cfg := &brtypes.InferenceConfiguration{}

	if req.MaxTokens != nil {
		v := int32(*req.MaxTokens)
		cfg.MaxTokens = aws.Int32(v)
	}

	if req.Temperature != nil {
		v := float32(*req.Temperature)
		cfg.Temperature = aws.Float32(v)
	}

	if req.TopP != nil {
		v := float32(*req.TopP)
		cfg.TopP = aws.Float32(v)
	}

	return cfg
}

func encodeMessages(req *providers.InferenceRequest) ([]brtypes.Message, []brtypes.SystemContentBlock, error) {
	var system []brtypes.SystemContentBlock
	if req.System != "" {
		system = append(system, &brtypes.SystemContentBlockMemberText{Value: req.System})
	}

	messages := make([]brtypes.Message, 0, len(req.Messages))

	for _, m := range req.Messages {
		var role brtypes.ConversationRole

		switch m.Role {
		case providers.RoleUser, providers.RoleTool:
			role = brtypes.ConversationRoleUser
		case providers.RoleAssistant:
			role = brtypes.ConversationRoleAssistant
		default:
			continue
		}

		blocks, err := encodeContentBlocks(m.Content)
		if err != nil {
			return nil, nil, err
		}

		messages = append(messages, brtypes.Message{Role: role, Content: blocks})
	}

	return messages, system, nil
}

func encodeContentBlocks(blocks []providers.ContentBlock) ([]brtypes.ContentBlock, error) {
	out := make([]brtypes.ContentBlock, 0, len(blocks))

	for _, b := range blocks {
		switch b.Kind {
		case providers.ContentText:
			out = append(out, &brtypes.ContentBlockMemberText{Value: b.Text})

		case providers.ContentToolCall:
			var input document.Interface
			if b.ToolCall.ArgumentsJSON != "" {
				input = document.NewLazyDocument(json.RawMessage(b.ToolCall.ArgumentsJSON))
			}

			out = append(out, &brtypes.ContentBlockMemberToolUse{
				Value: brtypes.ToolUseBlock{
					ToolUseId: aws.String(b.ToolCall.ID),
					Name:      aws.String(b.ToolCall.Name),
					Input:     input,
				},
			})

		case providers.ContentToolResult:
			result := brtypes.ToolResultBlock{
				ToolUseId: aws.String(b.ToolResultID),
				Content: []brtypes.ToolResultContentBlock{
					&brtypes.ToolResultContentBlockMemberText{Value: b.ToolResultContent},
				},
			}

			if b.ToolResultIsError {
				result.Status = brtypes.ToolResultStatusError
			}

			out = append(out, &brtypes.ContentBlockMemberToolResult{Value: result})
		}
	}

	return out, nil
}

func encodeToolConfig(tools []providers.ToolDefinition) *brtypes.ToolConfiguration {
	if len(tools) == 0 {
		return nil
	}

	list := make([]brtypes.Tool, 0, len(tools))

	for _, t := range tools {
		var schema document.Interface
		if len(t.Parameters) > 0 {
			schema = document.NewLazyDocument(t.Parameters)
		}

		list = append(list, &brtypes.ToolMemberToolSpec{
			Value: brtypes.ToolSpecification{
				Name:        aws.String(t.Name),
				Description: aws.String(t.Description),
				InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: schema},
			},
		})
	}

	return &brtypes.ToolConfiguration{Tools: list}
}

func decodeConverseOutput(out *bedrockruntime.ConverseOutput) ([]providers.ContentBlock, providers.FinishReason, providers.Usage) {
	var content []providers.ContentBlock

	if msgOut, ok := out.Output.(*brtypes.ConverseOutputMemberMessage); ok {
		content = decodeContentBlocks(msgOut.Value.Content)
	}

	finish := fromStopReason(out.StopReason)

	var usage providers.Usage
	if out.Usage != nil {
		usage = providers.Usage{
			InputTokens:  int64(aws.ToInt32(out.Usage.InputTokens)),
			OutputTokens: int64(aws.ToInt32(out.Usage.OutputTokens)),
		}
	}

	return content, finish, usage
}

func decodeContentBlocks(blocks []brtypes.ContentBlock) []providers.ContentBlock {
	out := make([]providers.ContentBlock, 0, len(blocks))

	for _, b := range blocks {
		switch v := b.(type) {
		case *brtypes.ContentBlockMemberText:
			out = append(out, providers.ContentBlock{Kind: providers.ContentText, Text: v.Value})
		case *brtypes.ContentBlockMemberToolUse:
			argsJSON := "{}"
			if v.Value.Input != nil {
				if raw, err := v.Value.Input.MarshalSmithyDocument(); err == nil {
					argsJSON = string(raw)
				}
			}

			out = append(out, providers.ContentBlock{
				Kind: providers.ContentToolCall,
				ToolCall: &providers.ToolCall{
					ID:            aws.ToString(v.Value.ToolUseId),
					Name:          aws.ToString(v.Value.Name),
					ArgumentsJSON: argsJSON,
				},
			})
		}
	}

	return out
}

func fromStopReason(reason brtypes.StopReason) providers.FinishReason {
	switch reason {
	case brtypes.StopReasonEndTurn, brtypes.StopReasonStopSequence:
		return providers.FinishStop
	case brtypes.StopReasonMaxTokens:
		return providers.FinishLength
	case brtypes.StopReasonToolUse:
		return providers.FinishToolUse
	case brtypes.StopReasonContentFiltered:
		return providers.FinishContent
	default:
		return providers.FinishUnknown
	}
}

func classifyError(err error) error {
	var throttle *brtypes.ThrottlingException
	if errors.As(err, &throttle) {
		return errkit.Wrap(errkit.ProviderRateLimited, err, "bedrock: throttled")
	}

	var denied *brtypes.AccessDeniedException
	if errors.As(err, &denied) {
		return errkit.Wrap(errkit.ProviderBadAuth, err, "bedrock: access denied")
	}

	return errkit.Wrap(errkit.ProviderBadResponse, err, "bedrock: converse failed")
}

// debugJSON best-effort serializes v for the audit trail; Bedrock's SDK
// types are not guaranteed round-trippable JSON, so failures degrade to a
// fmt.Sprintf("%#v", ...) capture rather than aborting the request.
func debugJSON(v any) []byte {
	if b, err := json.Marshal(v); err == nil {
		return b
	}

	return []byte(fmt.Sprintf("%#v", v))
}
