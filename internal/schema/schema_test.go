package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const personSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"age": {"type": "integer", "minimum": 0}
	},
	"required": ["name"]
}`

func TestValidateJSONAccepts(t *testing.T) {
	reg, err := Build(map[string]json.RawMessage{"person": json.RawMessage(personSchema)})
	require.NoError(t, err)

	_, err = reg.ValidateJSON("person", []byte(`{"name": "ava", "age": 30}`))
	assert.NoError(t, err)
}

func TestValidateJSONRejectsMissingRequired(t *testing.T) {
	reg, err := Build(map[string]json.RawMessage{"person": json.RawMessage(personSchema)})
	require.NoError(t, err)

	_, err = reg.ValidateJSON("person", []byte(`{"age": 30}`))
	assert.Error(t, err)
}

func TestValidateJSONRejectsValueBelowMinimum(t *testing.T) {
	reg, err := Build(map[string]json.RawMessage{"person": json.RawMessage(personSchema)})
	require.NoError(t, err)

	_, err = reg.ValidateJSON("person", []byte(`{"name": "ava", "age": -1}`))
	assert.Error(t, err)
}

func TestValidateUnknownSchema(t *testing.T) {
	reg, err := Build(map[string]json.RawMessage{})
	require.NoError(t, err)

	_, err = reg.ValidateJSON("missing", []byte(`{}`))
	assert.Error(t, err)
}

func TestBuildRejectsMalformedSchema(t *testing.T) {
	_, err := Build(map[string]json.RawMessage{"bad": json.RawMessage(`{"type": 5}`)})
	assert.Error(t, err)
}
