package catalog

// FunctionKind distinguishes a Chat function (freeform content blocks) from
// a Json function (schema-validated structured output).
type FunctionKind string

const (
	FunctionKindChat FunctionKind = "chat"
	FunctionKindJson FunctionKind = "json"
)

// PolicyKind selects how Function.SampleVariant picks among candidates.
type PolicyKind string

const (
	PolicyStaticWeights PolicyKind = "static_weights"
	PolicyUniform       PolicyKind = "uniform"
	PolicyFallback      PolicyKind = "fallback"
)

// ExperimentationPolicy governs variant sampling for a function (spec §4.1).
type ExperimentationPolicy struct {
	Kind PolicyKind

	// FallbackOrder is used only when Kind == PolicyFallback: variants are
	// tried in this exact order regardless of weight.
	FallbackOrder []string
}

// Function is a named entry point (spec §3 "Function").
type Function struct {
	Name     string
	Kind     FunctionKind
	Variants map[string]*Variant

	// InputSchemaRef/OutputSchemaRef name a schema registered in the
	// process-wide schema registry (internal/schema). OutputSchemaRef is
	// required for Json functions.
	InputSchemaRef  string
	OutputSchemaRef string

	ExperimentationPolicy ExperimentationPolicy
}

// VariantNames returns the function's variant names in no particular order
// (Go map iteration order is randomized, so callers that need
// determinism — e.g. building a cumulative-weight table — must sort).
func (f *Function) VariantNames() []string {
	names := make([]string, 0, len(f.Variants))
	for name := range f.Variants {
		names = append(names, name)
	}

	return names
}
