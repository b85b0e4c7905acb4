package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/looplj/tzcore/internal/catalog"
	"github.com/looplj/tzcore/internal/providers"
	"github.com/looplj/tzcore/internal/providers/anthropic"
	"github.com/looplj/tzcore/internal/providers/bedrock"
	"github.com/looplj/tzcore/internal/providers/dummy"
	"github.com/looplj/tzcore/internal/providers/openaicompat"
	"github.com/looplj/tzcore/internal/providers/vertex"
)

// resolved pairs an adapter with the *http.Client it should round-trip
// through, pre-built once at startup so request handling never pays
// construction cost (AWS/Google credential resolution in particular).
type resolved struct {
	adapter providers.Adapter
	client  *http.Client
}

// adapterResolver implements router.AdapterResolver by looking up a
// pre-built adapter per catalog.Provider name, grounded on the teacher's
// own pattern of resolving collaborators once at wiring time rather than
// per request.
type adapterResolver struct {
	byName map[string]resolved
}

func (r *adapterResolver) Resolve(provider *catalog.Provider) (providers.Adapter, *http.Client, error) {
	res, ok := r.byName[provider.Name]
	if !ok {
		return nil, nil, fmt.Errorf("gateway: no adapter built for provider %q", provider.Name)
	}

	return res.adapter, res.client, nil
}

// buildAdapterResolver constructs one adapter per configured provider,
// switching on Kind the way the teacher's internal/llm provider factory
// switches on vendor. Bedrock and Vertex resolve ambient cloud credentials
// at build time (AWS SDK default chain / Google ADC) rather than per call.
func buildAdapterResolver(ctx context.Context, cfg *catalog.Config, env envConfig) (*adapterResolver, error) {
	httpClient := &http.Client{Timeout: 0}

	byName := make(map[string]resolved, len(cfg.Providers))

	for name, provider := range cfg.Providers {
		switch provider.Kind {
		case catalog.ProviderKindOpenAI:
			byName[name] = resolved{
				adapter: openaicompat.New(openaicompat.Config{
					Platform: openaicompat.PlatformOpenAI,
					BaseURL:  provider.BaseURL,
					APIKey:   apiKey(provider),
				}),
				client: httpClient,
			}

		case catalog.ProviderKindAzure:
			byName[name] = resolved{
				adapter: openaicompat.New(openaicompat.Config{
					Platform:          openaicompat.PlatformAzure,
					BaseURL:           provider.BaseURL,
					APIKey:            apiKey(provider),
					AzureDeploymentID: provider.AzureDeploymentID,
					AzureAPIVersion:   provider.AzureAPIVersion,
				}),
				client: httpClient,
			}

		case catalog.ProviderKindFireworks:
			byName[name] = resolved{
				adapter: openaicompat.New(openaicompat.Config{
					Platform: openaicompat.PlatformFireworks,
					BaseURL:  provider.BaseURL,
					APIKey:   apiKey(provider),
				}),
				client: httpClient,
			}

		case catalog.ProviderKindTogether:
			byName[name] = resolved{
				adapter: openaicompat.New(openaicompat.Config{
					Platform: openaicompat.PlatformTogether,
					BaseURL:  provider.BaseURL,
					APIKey:   apiKey(provider),
				}),
				client: httpClient,
			}

		case catalog.ProviderKindOpenRouter:
			byName[name] = resolved{
				adapter: openaicompat.New(openaicompat.Config{
					Platform: openaicompat.PlatformOpenRouter,
					BaseURL:  provider.BaseURL,
					APIKey:   apiKey(provider),
				}),
				client: httpClient,
			}

		case catalog.ProviderKindAnthropic:
			byName[name] = resolved{
				adapter: anthropic.New(anthropic.Config{
					BaseURL: provider.BaseURL,
					APIKey:  apiKey(provider),
				}),
				client: httpClient,
			}

		case catalog.ProviderKindBedrock:
			adapter, err := buildBedrockAdapter(ctx, provider, env)
			if err != nil {
				return nil, fmt.Errorf("gateway: provider %q: %w", name, err)
			}

			byName[name] = resolved{adapter: adapter, client: httpClient}

		case catalog.ProviderKindVertex:
			adapter, err := buildVertexAdapter(ctx, provider)
			if err != nil {
				return nil, fmt.Errorf("gateway: provider %q: %w", name, err)
			}

			byName[name] = resolved{adapter: adapter, client: httpClient}

		case catalog.ProviderKindDummy:
			byName[name] = resolved{adapter: dummy.Adapter{}, client: httpClient}

		default:
			return nil, fmt.Errorf("gateway: provider %q: unknown kind %q", name, provider.Kind)
		}
	}

	return &adapterResolver{byName: byName}, nil
}

func apiKey(provider *catalog.Provider) string {
	if provider.APIKeyEnv == "" {
		return ""
	}

	return os.Getenv(provider.APIKeyEnv)
}

func buildBedrockAdapter(ctx context.Context, provider *catalog.Provider, env envConfig) (providers.Adapter, error) {
	region := provider.Region
	if region == "" {
		region = env.AWSRegion
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws default config: %w", err)
	}

	return bedrock.New(bedrockruntime.NewFromConfig(awsCfg)), nil
}

func buildVertexAdapter(ctx context.Context, provider *catalog.Provider) (providers.Adapter, error) {
	tokenSource, err := vertex.NewTokenSource(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve vertex application default credentials: %w", err)
	}

	return vertex.New(vertex.Config{
		ProjectID:   provider.ProjectID,
		Location:    provider.Location,
		TokenSource: tokenSource,
	}), nil
}
