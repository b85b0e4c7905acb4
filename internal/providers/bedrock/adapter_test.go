package bedrock

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/tzcore/internal/errkit"
	"github.com/looplj/tzcore/internal/providers"
)

type fakeRuntime struct {
	converseOut *bedrockruntime.ConverseOutput
	converseErr error
}

func (f *fakeRuntime) Converse(_ context.Context, _ *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	return f.converseOut, f.converseErr
}

func (f *fakeRuntime) ConverseStream(_ context.Context, _ *bedrockruntime.ConverseStreamInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseStreamOutput, error) {
	return nil, errNotImplemented
}

var errNotImplemented = assertErr("not implemented in this fake")

type assertErr string

func (e assertErr) Error() string { return string(e) }

func TestInferHappyPath(t *testing.T) {
	fake := &fakeRuntime{
		converseOut: &bedrockruntime.ConverseOutput{
			Output: &brtypes.ConverseOutputMemberMessage{
				Value: brtypes.Message{
					Role: brtypes.ConversationRoleAssistant,
					Content: []brtypes.ContentBlock{
						&brtypes.ContentBlockMemberText{Value: "hi there"},
					},
				},
			},
			StopReason: brtypes.StopReasonEndTurn,
			Usage: &brtypes.TokenUsage{
				InputTokens:  aws.Int32(5),
				OutputTokens: aws.Int32(2),
			},
		},
	}

	a := New(fake)

	resp, err := a.Infer(context.Background(), nil, &providers.InferenceRequest{
		ModelName: "anthropic.claude-3-5-sonnet-20240620-v1:0",
		Messages: []providers.Message{
			{Role: providers.RoleUser, Content: []providers.ContentBlock{{Kind: providers.ContentText, Text: "hello"}}},
		},
	})
	require.NoError(t, err)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, "hi there", resp.Content[0].Text)
	assert.Equal(t, providers.FinishStop, resp.FinishReason)
	assert.Equal(t, int64(5), resp.Usage.InputTokens)
	assert.True(t, resp.RawResponseOpaque)
}

func TestInferClassifiesThrottling(t *testing.T) {
	fake := &fakeRuntime{converseErr: &brtypes.ThrottlingException{Message: aws.String("slow down")}}

	a := New(fake)

	_, err := a.Infer(context.Background(), nil, &providers.InferenceRequest{ModelName: "m"})
	require.Error(t, err)
	assert.Equal(t, errkit.ProviderRateLimited, errkit.KindOf(err))
}

func TestInferClassifiesAccessDenied(t *testing.T) {
	fake := &fakeRuntime{converseErr: &brtypes.AccessDeniedException{Message: aws.String("denied")}}

	a := New(fake)

	_, err := a.Infer(context.Background(), nil, &providers.InferenceRequest{ModelName: "m"})
	require.Error(t, err)
	assert.Equal(t, errkit.ProviderBadAuth, errkit.KindOf(err))
}
