// Package router dispatches one inference request across a catalog.Model's
// ordered provider list, trying each in turn until one succeeds (spec
// §4.5). It has no notion of variants, templates or caching — those live
// in internal/pipeline, which calls the router once per variant attempt.
package router

import (
	"context"
	"net/http"

	"github.com/looplj/tzcore/internal/catalog"
	"github.com/looplj/tzcore/internal/errkit"
	"github.com/looplj/tzcore/internal/providers"
)

// AdapterResolver returns the providers.Adapter and *http.Client for a
// given catalog.Provider, so the router stays agnostic of how adapters and
// clients are constructed/pooled.
type AdapterResolver interface {
	Resolve(provider *catalog.Provider) (providers.Adapter, *http.Client, error)
}

// Router dispatches across a Model's provider list.
type Router struct {
	Resolver AdapterResolver
}

func New(resolver AdapterResolver) *Router {
	return &Router{Resolver: resolver}
}

// Infer tries each of model's providers in order, returning the first
// success. Every failure is recorded by provider name; if all fail, the
// returned error is an *errkit.ModelProvidersExhaustedError.
func (r *Router) Infer(ctx context.Context, model *catalog.Model, providerByName func(name string) (*catalog.Provider, bool), req *providers.InferenceRequest) (*providers.InferenceResponse, string, error) {
	perProviderErr := make(map[string]error, len(model.Providers))

	for _, ref := range model.Providers {
		provider, ok := providerByName(ref.Name)
		if !ok {
			perProviderErr[ref.Name] = errkit.New(errkit.ProviderNotFound, "provider not found in catalog")
			continue
		}

		adapter, client, err := r.Resolver.Resolve(provider)
		if err != nil {
			perProviderErr[ref.Name] = err
			continue
		}

		attemptReq := *req
		attemptReq.ModelName = ref.ProviderModelName

		resp, err := adapter.Infer(ctx, client, &attemptReq)
		if err != nil {
			perProviderErr[ref.Name] = err
			continue
		}

		resp.ProviderName = ref.Name

		return resp, ref.Name, nil
	}

	return nil, "", &errkit.ModelProvidersExhaustedError{ModelName: model.Name, PerProviderError: perProviderErr}
}

// Embed tries each of model's providers in order, skipping any whose
// adapter does not implement providers.EmbeddingAdapter, returning the
// first success. Mirrors Infer's provider-exhaustion error shape.
func (r *Router) Embed(ctx context.Context, model *catalog.Model, providerByName func(name string) (*catalog.Provider, bool), req *providers.EmbeddingRequest) (*providers.EmbeddingResponse, string, error) {
	perProviderErr := make(map[string]error, len(model.Providers))

	for _, ref := range model.Providers {
		provider, ok := providerByName(ref.Name)
		if !ok {
			perProviderErr[ref.Name] = errkit.New(errkit.ProviderNotFound, "provider not found in catalog")
			continue
		}

		adapter, client, err := r.Resolver.Resolve(provider)
		if err != nil {
			perProviderErr[ref.Name] = err
			continue
		}

		embedder, ok := adapter.(providers.EmbeddingAdapter)
		if !ok {
			perProviderErr[ref.Name] = errkit.New(errkit.ProviderBadResponse, "provider does not support embeddings")
			continue
		}

		attemptReq := *req
		attemptReq.ModelName = ref.ProviderModelName

		resp, err := embedder.Embed(ctx, client, &attemptReq)
		if err != nil {
			perProviderErr[ref.Name] = err
			continue
		}

		return resp, ref.Name, nil
	}

	return nil, "", &errkit.ModelProvidersExhaustedError{ModelName: model.Name, PerProviderError: perProviderErr}
}

// InferStream commits to the first provider whose handshake (first chunk)
// succeeds; providers that fail during the handshake are tried next
// transparently. Once a Stream is returned, the router takes no further
// part — mid-stream failures are reported on the Stream's own error
// channel rather than triggering another provider attempt (spec §4.5).
func (r *Router) InferStream(ctx context.Context, model *catalog.Model, providerByName func(name string) (*catalog.Provider, bool), req *providers.InferenceRequest) (*providers.Stream, string, error) {
	perProviderErr := make(map[string]error, len(model.Providers))

	for _, ref := range model.Providers {
		provider, ok := providerByName(ref.Name)
		if !ok {
			perProviderErr[ref.Name] = errkit.New(errkit.ProviderNotFound, "provider not found in catalog")
			continue
		}

		adapter, client, err := r.Resolver.Resolve(provider)
		if err != nil {
			perProviderErr[ref.Name] = err
			continue
		}

		attemptReq := *req
		attemptReq.ModelName = ref.ProviderModelName

		stream, err := adapter.InferStream(ctx, client, &attemptReq)
		if err != nil {
			perProviderErr[ref.Name] = err
			continue
		}

		return stream, ref.Name, nil
	}

	return nil, "", &errkit.ModelProvidersExhaustedError{ModelName: model.Name, PerProviderError: perProviderErr}
}
