package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/tzcore/internal/providers"
)

func TestMarshalContentRoundTripsTextBlock(t *testing.T) {
	content := []providers.ContentBlock{{Kind: providers.ContentText, Text: "hello"}}

	got, err := marshalContent(content)
	require.NoError(t, err)
	assert.Equal(t, `[{"Kind":"text","Text":"hello","ToolCall":null,"ToolResultID":"","ToolResultContent":"","ToolResultIsError":false}]`, got)
}

func TestMarshalContentEmptyIsEmptyArray(t *testing.T) {
	got, err := marshalContent([]providers.ContentBlock{})
	require.NoError(t, err)
	assert.Equal(t, "[]", got)
}
