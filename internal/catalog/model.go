package catalog

import "time"

// ModelProviderRef orders one provider entry within a model's fallback chain
// (spec §4.7 "Model router"). Name is the provider's own credential/config
// name under Provider; ProviderModelName is the identifier sent on the wire,
// which may differ from Name (e.g. "gpt-4o" vs a deployment id on Azure).
type ModelProviderRef struct {
	Name              string
	ProviderModelName string
}

// Model is a named, ordered list of providers the router falls back across
// in order (spec §3 "Model", §4.7).
type Model struct {
	Name      string
	Providers []ModelProviderRef

	// RequestTimeout bounds a single provider attempt; zero means no
	// per-attempt timeout beyond the caller's context deadline.
	RequestTimeout time.Duration
}
