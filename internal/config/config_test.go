package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/tzcore/internal/catalog"
)

const sampleDoc = `
[models.gpt4o.providers.primary]
type = "openai"
api_key_location = "OPENAI_API_KEY"

[models.gpt4o.providers.backup]
type = "azure"
deployment_id = "gpt4o-prod"
api_version = "2024-06-01"

[models.gpt4o]
routing = ["primary", "backup"]
request_timeout_ms = 30000

[functions.extract_data]
type = "json"
output_schema = "extract_data_output"
experimentation = "static_weights"

[functions.extract_data.variants.main]
type = "chat_completion"
model = "gpt4o"
weight = 1.0
system_template = "extract_system"
`

func TestLoadBuildsModelRoutingOrder(t *testing.T) {
	cfg, err := TOMLLoader{}.Load(strings.NewReader(sampleDoc))
	require.NoError(t, err)

	model, err := cfg.GetModel("gpt4o")
	require.NoError(t, err)
	require.Len(t, model.Providers, 2)
	assert.Equal(t, "gpt4o::primary", model.Providers[0].Name)
	assert.Equal(t, "gpt4o::backup", model.Providers[1].Name)
}

func TestLoadBuildsFunctionVariant(t *testing.T) {
	cfg, err := TOMLLoader{}.Load(strings.NewReader(sampleDoc))
	require.NoError(t, err)

	fn, err := cfg.GetFunction("extract_data")
	require.NoError(t, err)
	assert.Equal(t, catalog.FunctionKindJson, fn.Kind)
	assert.Equal(t, catalog.PolicyStaticWeights, fn.ExperimentationPolicy.Kind)

	v, ok := fn.Variants["main"]
	require.True(t, ok)
	require.NotNil(t, v.ChatCompletion)
	assert.Equal(t, "gpt4o", v.ChatCompletion.Model)
}

func TestLoadRejectsJSONFunctionWithoutOutputSchema(t *testing.T) {
	const doc = `
[functions.bad]
type = "json"
`
	_, err := TOMLLoader{}.Load(strings.NewReader(doc))
	require.Error(t, err)
}

func TestLoadRejectsFallbackPolicyWithoutOrder(t *testing.T) {
	const doc = `
[functions.bad.variants.a]
type = "chat_completion"
model = "gpt4o"

[functions.bad]
experimentation = "fallback"
`
	_, err := TOMLLoader{}.Load(strings.NewReader(doc))
	require.Error(t, err)
}

func TestLoadRejectsUnknownVariantType(t *testing.T) {
	const doc = `
[functions.bad.variants.a]
type = "not_a_real_kind"
`
	_, err := TOMLLoader{}.Load(strings.NewReader(doc))
	require.Error(t, err)
}
