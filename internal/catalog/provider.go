package catalog

// ProviderKind names one of the wire adapters under internal/providers.
type ProviderKind string

const (
	ProviderKindOpenAI     ProviderKind = "openai"
	ProviderKindAzure      ProviderKind = "azure"
	ProviderKindFireworks  ProviderKind = "fireworks"
	ProviderKindTogether   ProviderKind = "together"
	ProviderKindOpenRouter ProviderKind = "openrouter"
	ProviderKindAnthropic  ProviderKind = "anthropic"
	ProviderKindBedrock    ProviderKind = "bedrock"
	ProviderKindVertex     ProviderKind = "vertex"
	ProviderKindDummy      ProviderKind = "dummy"
)

// Provider is one credentialed endpoint a Model's fallback chain can route
// through (spec §3 "ModelProvider", §4.4 "Provider adapter contract").
type Provider struct {
	Name string
	Kind ProviderKind

	// BaseURL overrides the adapter's default endpoint, used by the
	// OpenAI-compatible adapter for Fireworks/Together/OpenRouter and by
	// Azure's per-resource deployment URLs.
	BaseURL string

	// APIKeyEnv names the environment variable holding the credential.
	// Bedrock and Vertex instead resolve ambient cloud credentials
	// (AWS SDK default chain / google/oauth2 ADC) and ignore this field.
	APIKeyEnv string

	// Region is consulted by the Bedrock adapter.
	Region string

	// ProjectID/Location are consulted by the Vertex adapter.
	ProjectID string
	Location  string

	// AzureDeploymentID and AzureAPIVersion are consulted by the Azure
	// variant of the OpenAI-compatible adapter.
	AzureDeploymentID string
	AzureAPIVersion   string
}
