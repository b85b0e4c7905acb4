package router

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplj/tzcore/internal/catalog"
	"github.com/looplj/tzcore/internal/errkit"
	"github.com/looplj/tzcore/internal/providers"
)

type fakeAdapter struct {
	name string
	fail bool
}

func (f *fakeAdapter) Infer(_ context.Context, _ *http.Client, req *providers.InferenceRequest) (*providers.InferenceResponse, error) {
	if f.fail {
		return nil, errors.New("boom")
	}

	return &providers.InferenceResponse{
		Content: []providers.ContentBlock{{Kind: providers.ContentText, Text: "ok from " + f.name}},
	}, nil
}

func (f *fakeAdapter) InferStream(_ context.Context, _ *http.Client, req *providers.InferenceRequest) (*providers.Stream, error) {
	if f.fail {
		return nil, errors.New("handshake failed")
	}

	chunks := make(chan *providers.StreamChunk)
	close(chunks)

	errs := make(chan error)
	close(errs)

	return &providers.Stream{
		First:  &providers.StreamChunk{TextDelta: "ok from " + f.name},
		Chunks: chunks,
		Err:    errs,
		Close:  func() error { return nil },
	}, nil
}

type fakeResolver struct {
	adapters map[string]*fakeAdapter
}

func (r *fakeResolver) Resolve(p *catalog.Provider) (providers.Adapter, *http.Client, error) {
	a, ok := r.adapters[p.Name]
	if !ok {
		return nil, nil, errkit.New(errkit.ProviderNotFound, "no adapter configured")
	}

	return a, http.DefaultClient, nil
}

func testModel() *catalog.Model {
	return &catalog.Model{
		Name: "m",
		Providers: []catalog.ModelProviderRef{
			{Name: "error", ProviderModelName: "m"},
			{Name: "good", ProviderModelName: "m"},
		},
	}
}

func providerLookup(names ...string) func(string) (*catalog.Provider, bool) {
	set := map[string]*catalog.Provider{}
	for _, n := range names {
		set[n] = &catalog.Provider{Name: n}
	}

	return func(name string) (*catalog.Provider, bool) {
		p, ok := set[name]
		return p, ok
	}
}

func TestInferFallsBackToNextProvider(t *testing.T) {
	resolver := &fakeResolver{adapters: map[string]*fakeAdapter{
		"error": {name: "error", fail: true},
		"good":  {name: "good"},
	}}

	r := New(resolver)

	resp, providerName, err := r.Infer(context.Background(), testModel(), providerLookup("error", "good"), &providers.InferenceRequest{})
	require.NoError(t, err)
	assert.Equal(t, "good", providerName)
	assert.Equal(t, "ok from good", resp.Content[0].Text)
}

func TestInferAllProvidersFail(t *testing.T) {
	resolver := &fakeResolver{adapters: map[string]*fakeAdapter{
		"error": {name: "error", fail: true},
		"good":  {name: "good", fail: true},
	}}

	r := New(resolver)

	_, _, err := r.Infer(context.Background(), testModel(), providerLookup("error", "good"), &providers.InferenceRequest{})
	require.Error(t, err)
	assert.Equal(t, errkit.ModelProvidersExhausted, errkit.KindOf(err))
}

func TestInferStreamHandshakeFallback(t *testing.T) {
	resolver := &fakeResolver{adapters: map[string]*fakeAdapter{
		"error": {name: "error", fail: true},
		"good":  {name: "good"},
	}}

	r := New(resolver)

	stream, providerName, err := r.InferStream(context.Background(), testModel(), providerLookup("error", "good"), &providers.InferenceRequest{})
	require.NoError(t, err)
	assert.Equal(t, "good", providerName)
	assert.Equal(t, "ok from good", stream.First.TextDelta)
}
