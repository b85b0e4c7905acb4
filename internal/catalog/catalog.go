// Package catalog is the in-memory, read-only arena of Function, Variant,
// Model, Provider and Template configuration built once at process startup
// (spec §3 "Lifecycles", §9 "Owned-ref cycles", §5 "Global state"). Nothing
// in this package is ever mutated after Build returns; all cross references
// are by name, never by pointer, so handles borrowed by an in-flight request
// never outlive the request itself.
package catalog

import (
	"fmt"

	"github.com/looplj/tzcore/internal/errkit"
)

// Config is the fully resolved, process-wide catalog.
type Config struct {
	Functions map[string]*Function
	Models    map[string]*Model
	Providers map[string]*Provider
	Templates map[string]*Template

	// Requests that name model_name instead of function_name are not served
	// from Functions: the pipeline builds a synthetic chat function for them
	// with SyntheticChatFunction (spec §4.6 algorithm step 1).
}

// GetFunction looks up a function by name.
func (c *Config) GetFunction(name string) (*Function, error) {
	f, ok := c.Functions[name]
	if !ok {
		return nil, errkit.New(errkit.InvalidRequest, fmt.Sprintf("unknown function %q", name))
	}

	return f, nil
}

// GetModel looks up a model by name.
func (c *Config) GetModel(name string) (*Model, error) {
	m, ok := c.Models[name]
	if !ok {
		return nil, errkit.New(errkit.InvalidRequest, fmt.Sprintf("unknown model %q", name))
	}

	return m, nil
}

// GetProvider looks up a provider by name.
func (c *Config) GetProvider(name string) (*Provider, error) {
	p, ok := c.Providers[name]
	if !ok {
		return nil, errkit.New(errkit.ProviderNotFound, fmt.Sprintf("unknown provider %q", name))
	}

	return p, nil
}

// ProviderByName adapts GetProvider to the (value, ok) shape internal/router
// expects for its providerByName callback.
func (c *Config) ProviderByName(name string) (*Provider, bool) {
	p, err := c.GetProvider(name)
	if err != nil {
		return nil, false
	}

	return p, true
}

// FunctionNames returns the configured function names in no particular
// order, used by GET /status to report what the process has loaded.
func (c *Config) FunctionNames() []string {
	names := make([]string, 0, len(c.Functions))
	for name := range c.Functions {
		names = append(names, name)
	}

	return names
}

// ModelNames returns the configured model names in no particular order.
func (c *Config) ModelNames() []string {
	names := make([]string, 0, len(c.Models))
	for name := range c.Models {
		names = append(names, name)
	}

	return names
}

// GetTemplate looks up a registered template by its declared name.
func (c *Config) GetTemplate(name string) (*Template, error) {
	t, ok := c.Templates[name]
	if !ok {
		return nil, errkit.New(errkit.TemplateMissing, fmt.Sprintf("unknown template %q", name))
	}

	return t, nil
}

// DefaultChatFunctionName is the synthetic function name used when a request
// names a model directly (spec §4.6 step 1).
const DefaultChatFunctionName = "tensorzero::default"

// SyntheticChatFunction builds the process-invariant default chat function
// bound to modelName: a single chat-completion variant referencing the
// model with no templates and no schema.
func SyntheticChatFunction(modelName string) *Function {
	variantName := "tensorzero::default::" + modelName

	return &Function{
		Name: DefaultChatFunctionName,
		Kind: FunctionKindChat,
		Variants: map[string]*Variant{
			variantName: {
				Name:   variantName,
				Weight: 1,
				Kind:   VariantKindChatCompletion,
				ChatCompletion: &ChatCompletionVariant{
					Model: modelName,
				},
			},
		},
		ExperimentationPolicy: ExperimentationPolicy{Kind: PolicyUniform},
	}
}
