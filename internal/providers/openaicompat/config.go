// Package openaicompat implements the shared OpenAI-wire-format adapter
// used by every provider whose API is a dialect of OpenAI's chat
// completions endpoint: OpenAI itself, Azure OpenAI, Fireworks, Together
// and OpenRouter (spec §4.4, SPEC_FULL §4.4). One Config per catalog
// Provider entry selects the platform-specific URL/auth shape; the wire
// format and streaming decode are otherwise identical, mirroring the
// teacher's single openai.OutboundTransformer generalized across
// PlatformType rather than one package per OpenAI-compatible vendor.
package openaicompat

// PlatformType selects how Config builds the request URL and auth header.
type PlatformType string

const (
	PlatformOpenAI     PlatformType = "openai"
	PlatformAzure      PlatformType = "azure"
	PlatformFireworks  PlatformType = "fireworks"
	PlatformTogether   PlatformType = "together"
	PlatformOpenRouter PlatformType = "openrouter"
)

var defaultBaseURL = map[PlatformType]string{
	PlatformOpenAI:     "https://api.openai.com/v1",
	PlatformFireworks:  "https://api.fireworks.ai/inference/v1",
	PlatformTogether:   "https://api.together.xyz/v1",
	PlatformOpenRouter: "https://openrouter.ai/api/v1",
}

const defaultAzureAPIVersion = "2024-06-01"

// Config configures one provider-kind instance of the adapter.
type Config struct {
	Platform PlatformType

	// BaseURL overrides the platform default; required for Azure (the
	// resource's own endpoint) since there is no single default.
	BaseURL string

	APIKey string

	// AzureDeploymentID/AzureAPIVersion are consulted only when
	// Platform == PlatformAzure.
	AzureDeploymentID string
	AzureAPIVersion   string
}

func (c *Config) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}

	return defaultBaseURL[c.Platform]
}

func (c *Config) chatCompletionsURL() string {
	if c.Platform == PlatformAzure {
		version := c.AzureAPIVersion
		if version == "" {
			version = defaultAzureAPIVersion
		}

		return c.BaseURL + "/openai/deployments/" + c.AzureDeploymentID +
			"/chat/completions?api-version=" + version
	}

	return c.baseURL() + "/chat/completions"
}

func (c *Config) embeddingsURL() string {
	if c.Platform == PlatformAzure {
		version := c.AzureAPIVersion
		if version == "" {
			version = defaultAzureAPIVersion
		}

		return c.BaseURL + "/openai/deployments/" + c.AzureDeploymentID +
			"/embeddings?api-version=" + version
	}

	return c.baseURL() + "/embeddings"
}
