package pipeline

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/tzcore/internal/catalog"
	"github.com/looplj/tzcore/internal/errkit"
	"github.com/looplj/tzcore/internal/providers"
	"github.com/looplj/tzcore/internal/providers/dummy"
	"github.com/looplj/tzcore/internal/router"
	"github.com/looplj/tzcore/internal/tmplengine"
)

type fakeCatalog struct {
	functions map[string]*catalog.Function
	models    map[string]*catalog.Model
	providers map[string]*catalog.Provider
}

func (c *fakeCatalog) GetFunction(name string) (*catalog.Function, error) {
	f, ok := c.functions[name]
	if !ok {
		return nil, errkit.New(errkit.InvalidRequest, "unknown function")
	}

	return f, nil
}

func (c *fakeCatalog) GetModel(name string) (*catalog.Model, error) {
	m, ok := c.models[name]
	if !ok {
		return nil, errkit.New(errkit.InvalidRequest, "unknown model")
	}

	return m, nil
}

func (c *fakeCatalog) ProviderByName(name string) (*catalog.Provider, bool) {
	p, ok := c.providers[name]
	return p, ok
}

type dummyResolver struct{}

func (dummyResolver) Resolve(_ *catalog.Provider) (providers.Adapter, *http.Client, error) {
	return dummy.Adapter{}, http.DefaultClient, nil
}

func newTestPipeline(t *testing.T, fn *catalog.Function) (*Pipeline, *fakeCatalog) {
	t.Helper()

	env, err := tmplengine.Build(map[string]string{
		"sys": "Hello {{.assistant_name}}",
	})
	require.NoError(t, err)

	cat := &fakeCatalog{
		functions: map[string]*catalog.Function{fn.Name: fn},
		models: map[string]*catalog.Model{
			"echo_model": {
				Name: "echo_model",
				Providers: []catalog.ModelProviderRef{
					{Name: "dummy_provider", ProviderModelName: dummy.EchoRequestMessagesModel},
				},
			},
			"fallback_model": {
				Name: "fallback_model",
				Providers: []catalog.ModelProviderRef{
					{Name: "error_provider", ProviderModelName: dummy.ErrorModel},
					{Name: "dummy_provider", ProviderModelName: dummy.EchoRequestMessagesModel},
				},
			},
		},
		providers: map[string]*catalog.Provider{
			"dummy_provider": {Name: "dummy_provider", Kind: catalog.ProviderKindDummy},
			"error_provider": {Name: "error_provider", Kind: catalog.ProviderKindDummy},
		},
	}

	r := router.New(dummyResolver{})

	p := New(Deps{
		Catalog:   cat,
		Templates: env,
		Router:    r,
	})

	return p, cat
}

func chatVariant(name, model string) *catalog.Variant {
	return &catalog.Variant{
		Name:   name,
		Weight: 1,
		Kind:   catalog.VariantKindChatCompletion,
		ChatCompletion: &catalog.ChatCompletionVariant{
			Model:     model,
			Templates: catalog.TemplateRefs{System: "sys"},
		},
	}
}

func TestRunPinnedVariantEchoesRenderedInput(t *testing.T) {
	fn := &catalog.Function{
		Name: "basic_test",
		Kind: catalog.FunctionKindChat,
		Variants: map[string]*catalog.Variant{
			"test": chatVariant("test", "echo_model"),
		},
		ExperimentationPolicy: catalog.ExperimentationPolicy{Kind: catalog.PolicyUniform},
	}

	p, _ := newTestPipeline(t, fn)

	out, err := p.Run(context.Background(), Params{
		FunctionName:  "basic_test",
		PinnedVariant: "test",
		Input: Input{
			SystemArgs: map[string]any{"assistant_name": "AskJeeves"},
			Messages: []InputMessage{
				{Role: providers.RoleUser, Text: "Hello, world!"},
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "test", out.VariantName)
	assert.Contains(t, contentText(out.Content), "Hello AskJeeves")
	assert.Contains(t, contentText(out.Content), "Hello, world!")
	assert.NotZero(t, out.Usage.InputTokens)
}

func TestRunFallsBackToNextVariantOnFailure(t *testing.T) {
	fn := &catalog.Function{
		Name: "fallback_test",
		Kind: catalog.FunctionKindChat,
		Variants: map[string]*catalog.Variant{
			"broken": chatVariant("broken", "fallback_model_error_only"),
			"good":   chatVariant("good", "echo_model"),
		},
		ExperimentationPolicy: catalog.ExperimentationPolicy{
			Kind:          catalog.PolicyFallback,
			FallbackOrder: []string{"broken", "good"},
		},
	}

	p, cat := newTestPipeline(t, fn)
	cat.models["fallback_model_error_only"] = &catalog.Model{
		Name: "fallback_model_error_only",
		Providers: []catalog.ModelProviderRef{
			{Name: "error_provider", ProviderModelName: dummy.ErrorModel},
		},
	}

	out, err := p.Run(context.Background(), Params{
		FunctionName: "fallback_test",
		Input:        Input{Messages: []InputMessage{{Role: providers.RoleUser, Text: "hi"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "good", out.VariantName)
}

func TestRunAllVariantsFailedSurfacesAggregate(t *testing.T) {
	fn := &catalog.Function{
		Name: "all_broken",
		Kind: catalog.FunctionKindChat,
		Variants: map[string]*catalog.Variant{
			"broken": chatVariant("broken", "broken_model"),
		},
		ExperimentationPolicy: catalog.ExperimentationPolicy{Kind: catalog.PolicyUniform},
	}

	p, cat := newTestPipeline(t, fn)
	cat.models["broken_model"] = &catalog.Model{
		Name: "broken_model",
		Providers: []catalog.ModelProviderRef{
			{Name: "error_provider", ProviderModelName: dummy.ErrorModel},
		},
	}

	_, err := p.Run(context.Background(), Params{
		FunctionName: "all_broken",
		Input:        Input{Messages: []InputMessage{{Role: providers.RoleUser, Text: "hi"}}},
	})
	require.Error(t, err)
	assert.Equal(t, errkit.AllVariantsFailed, errkit.KindOf(err))
}

func TestRunUnknownPinnedVariantFails(t *testing.T) {
	fn := &catalog.Function{
		Name:                  "basic_test",
		Kind:                  catalog.FunctionKindChat,
		Variants:              map[string]*catalog.Variant{"test": chatVariant("test", "echo_model")},
		ExperimentationPolicy: catalog.ExperimentationPolicy{Kind: catalog.PolicyUniform},
	}

	p, _ := newTestPipeline(t, fn)

	_, err := p.Run(context.Background(), Params{
		FunctionName:  "basic_test",
		PinnedVariant: "nope",
		Input:         Input{Messages: []InputMessage{{Role: providers.RoleUser, Text: "hi"}}},
	})
	require.Error(t, err)
	assert.Equal(t, errkit.UnknownVariant, errkit.KindOf(err))
}

func TestRunDryrunWithInlineVariantConfigBypassesStore(t *testing.T) {
	fn := &catalog.Function{
		Name:                  "basic_test",
		Kind:                  catalog.FunctionKindChat,
		Variants:              map[string]*catalog.Variant{},
		ExperimentationPolicy: catalog.ExperimentationPolicy{Kind: catalog.PolicyUniform},
	}

	p, _ := newTestPipeline(t, fn)

	inline := chatVariant("dummy::echo_request_messages", "echo_model")

	out, err := p.Run(context.Background(), Params{
		FunctionName:        "basic_test",
		Dryrun:              true,
		InlineVariantConfig: inline,
		Input: Input{
			SystemArgs: map[string]any{"assistant_name": "AskJeeves"},
			Messages:   []InputMessage{{Role: providers.RoleUser, Text: "Hello, world!"}},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, contentText(out.Content), "Hello AskJeeves")
}

func TestRunRejectsInlineVariantConfigWithoutDryrun(t *testing.T) {
	fn := &catalog.Function{Name: "basic_test", Kind: catalog.FunctionKindChat, Variants: map[string]*catalog.Variant{}}

	p, _ := newTestPipeline(t, fn)

	_, err := p.Run(context.Background(), Params{
		FunctionName:        "basic_test",
		InlineVariantConfig: chatVariant("inline", "echo_model"),
		Input:               Input{Messages: []InputMessage{{Role: providers.RoleUser, Text: "hi"}}},
	})
	require.Error(t, err)
	assert.Equal(t, errkit.InvalidRequest, errkit.KindOf(err))
}

func TestRunModelNameUsesSyntheticFunction(t *testing.T) {
	fn := &catalog.Function{Name: "unused", Kind: catalog.FunctionKindChat, Variants: map[string]*catalog.Variant{}}

	p, _ := newTestPipeline(t, fn)

	out, err := p.Run(context.Background(), Params{
		ModelName: "echo_model",
		Input:     Input{Messages: []InputMessage{{Role: providers.RoleUser, Text: "hi"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "echo_model", out.ModelName)
}

func TestRunStreamingReturnsStreamHandle(t *testing.T) {
	fn := &catalog.Function{
		Name:                  "basic_test",
		Kind:                  catalog.FunctionKindChat,
		Variants:              map[string]*catalog.Variant{"test": chatVariant("test", "echo_model")},
		ExperimentationPolicy: catalog.ExperimentationPolicy{Kind: catalog.PolicyUniform},
	}

	p, _ := newTestPipeline(t, fn)

	out, err := p.Run(context.Background(), Params{
		FunctionName:  "basic_test",
		PinnedVariant: "test",
		Stream:        true,
		Input:         Input{Messages: []InputMessage{{Role: providers.RoleUser, Text: "hi"}}},
	})
	require.NoError(t, err)
	require.NotNil(t, out.Stream)
	assert.NotEmpty(t, out.Stream.First.TextDelta)
}
