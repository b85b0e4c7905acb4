// Package config loads the process-wide catalog from a TOML document
// (spec §1, §3). It owns exactly one concern: translating the flat,
// user-authored TOML shape into the catalog package's name-indexed arena.
// Nothing here is mutated after Load returns.
package config

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/looplj/tzcore/internal/catalog"
	"github.com/looplj/tzcore/internal/errkit"
)

// Loader decodes a TOML document into a built catalog.Config.
type Loader interface {
	Load(r io.Reader) (*catalog.Config, error)
}

// TOMLLoader is the concrete Loader used by cmd/gateway.
type TOMLLoader struct{}

var _ Loader = TOMLLoader{}

func (TOMLLoader) Load(r io.Reader) (*catalog.Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, errkit.Wrap(errkit.InvalidRequest, err, "read config")
	}

	var doc rawDocument
	if err := toml.Unmarshal(raw, &doc); err != nil {
		return nil, errkit.Wrap(errkit.InvalidRequest, err, "parse config toml")
	}

	return build(&doc)
}

// rawDocument mirrors the TOML tables a user authors: [models.NAME],
// [models.NAME.providers.NAME], [functions.NAME], [functions.NAME.variants.NAME].
type rawDocument struct {
	Models    map[string]rawModel    `toml:"models"`
	Functions map[string]rawFunction `toml:"functions"`
	Templates map[string]rawTemplate `toml:"templates"`
}

type rawModel struct {
	RequestTimeoutMS int64                    `toml:"request_timeout_ms"`
	Providers        map[string]rawProvider   `toml:"providers"`
	// RoutingOrder fixes provider attempt order; providers omitted here are
	// appended afterward in lexical order for determinism.
	RoutingOrder []string `toml:"routing"`
}

type rawProvider struct {
	Type              string `toml:"type"`
	ModelName         string `toml:"model_name"`
	BaseURL           string `toml:"api_base"`
	APIKeyEnv         string `toml:"api_key_location"`
	Region            string `toml:"region"`
	ProjectID         string `toml:"project_id"`
	Location          string `toml:"location"`
	AzureDeploymentID string `toml:"deployment_id"`
	AzureAPIVersion   string `toml:"api_version"`
}

type rawFunction struct {
	Type                  string                 `toml:"type"`
	InputSchema           string                 `toml:"input_schema"`
	OutputSchema          string                 `toml:"output_schema"`
	ExperimentationPolicy string                 `toml:"experimentation"`
	FallbackOrder         []string               `toml:"fallback_order"`
	Variants              map[string]rawVariant  `toml:"variants"`
}

type rawVariant struct {
	Type   string  `toml:"type"`
	Weight float64 `toml:"weight"`
	Pin    bool    `toml:"pin"`

	Model          string   `toml:"model"`
	SystemTemplate string   `toml:"system_template"`
	UserTemplate   string   `toml:"user_template"`
	AssistantTemplate string `toml:"assistant_template"`

	Candidates []string `toml:"candidates"`
	Evaluator  string   `toml:"evaluator"`
	Fuser      string   `toml:"fuser"`

	EmbeddingModel string `toml:"embedding_model"`
	K              int    `toml:"k"`
}

type rawTemplate struct {
	File   string `toml:"file"`
	Text   string `toml:"template"`
	Schema string `toml:"schema"`
}

func build(doc *rawDocument) (*catalog.Config, error) {
	cfg := &catalog.Config{
		Functions: map[string]*catalog.Function{},
		Models:    map[string]*catalog.Model{},
		Providers: map[string]*catalog.Provider{},
		Templates: map[string]*catalog.Template{},
	}

	for name, rt := range doc.Templates {
		if rt.File != "" && rt.Text != "" {
			return nil, errkit.New(errkit.InvalidRequest,
				fmt.Sprintf("template %q: set exactly one of file or template", name))
		}

		cfg.Templates[name] = &catalog.Template{
			Name:      name,
			Text:      rt.Text,
			SchemaRef: rt.Schema,
		}
	}

	for name, rm := range doc.Models {
		model, providers, err := buildModel(name, rm)
		if err != nil {
			return nil, err
		}

		cfg.Models[name] = model

		for pname, p := range providers {
			cfg.Providers[pname] = p
		}
	}

	for name, rf := range doc.Functions {
		fn, err := buildFunction(name, rf)
		if err != nil {
			return nil, err
		}

		cfg.Functions[name] = fn
	}

	return cfg, nil
}

func buildModel(name string, rm rawModel) (*catalog.Model, map[string]*catalog.Provider, error) {
	providers := make(map[string]*catalog.Provider, len(rm.Providers))

	providerNames := make([]string, 0, len(rm.Providers))
	for pname := range rm.Providers {
		providerNames = append(providerNames, pname)
	}

	sort.Strings(providerNames)

	for _, pname := range providerNames {
		rp := rm.Providers[pname]

		qualified := name + "::" + pname

		providers[qualified] = &catalog.Provider{
			Name:              qualified,
			Kind:              catalog.ProviderKind(rp.Type),
			BaseURL:           rp.BaseURL,
			APIKeyEnv:         rp.APIKeyEnv,
			Region:            rp.Region,
			ProjectID:         rp.ProjectID,
			Location:          rp.Location,
			AzureDeploymentID: rp.AzureDeploymentID,
			AzureAPIVersion:   rp.AzureAPIVersion,
		}
	}

	order := orderedRefs(name, rm.RoutingOrder, providerNames)

	refs := make([]catalog.ModelProviderRef, 0, len(order))

	for _, pname := range order {
		rp, ok := rm.Providers[pname]
		if !ok {
			return nil, nil, errkit.New(errkit.InvalidRequest,
				fmt.Sprintf("model %q: routing names unknown provider %q", name, pname))
		}

		wireName := rp.ModelName
		if wireName == "" {
			wireName = name
		}

		refs = append(refs, catalog.ModelProviderRef{
			Name:              name + "::" + pname,
			ProviderModelName: wireName,
		})
	}

	return &catalog.Model{
		Name:           name,
		Providers:      refs,
		RequestTimeout: time.Duration(rm.RequestTimeoutMS) * time.Millisecond,
	}, providers, nil
}

// orderedRefs appends any provider not explicitly named in explicit (in
// lexical order, already sorted by the caller) after the explicit order,
// so authors may rely on routing for the providers they care about and let
// the rest fall back deterministically rather than by map iteration.
func orderedRefs(modelName string, explicit, allSorted []string) []string {
	if len(explicit) == 0 {
		return allSorted
	}

	seen := make(map[string]bool, len(explicit))
	out := make([]string, 0, len(allSorted))

	for _, name := range explicit {
		out = append(out, name)
		seen[name] = true
	}

	for _, name := range allSorted {
		if !seen[name] {
			out = append(out, name)
		}
	}

	return out
}

func buildFunction(name string, rf rawFunction) (*catalog.Function, error) {
	kind := catalog.FunctionKindChat
	if rf.Type == "json" {
		kind = catalog.FunctionKindJson
	}

	if kind == catalog.FunctionKindJson && rf.OutputSchema == "" {
		return nil, errkit.New(errkit.InvalidFunctionVariants,
			fmt.Sprintf("function %q: json functions require output_schema", name))
	}

	variants := make(map[string]*catalog.Variant, len(rf.Variants))

	for vname, rv := range rf.Variants {
		v, err := buildVariant(name, vname, rv)
		if err != nil {
			return nil, err
		}

		variants[vname] = v
	}

	policy := catalog.ExperimentationPolicy{
		Kind:          catalog.PolicyKind(rf.ExperimentationPolicy),
		FallbackOrder: rf.FallbackOrder,
	}

	if policy.Kind == "" {
		policy.Kind = catalog.PolicyUniform
	}

	if policy.Kind == catalog.PolicyFallback && len(policy.FallbackOrder) == 0 {
		return nil, errkit.New(errkit.InvalidFunctionVariants,
			fmt.Sprintf("function %q: fallback policy requires fallback_order", name))
	}

	return &catalog.Function{
		Name:                  name,
		Kind:                  kind,
		Variants:              variants,
		InputSchemaRef:        rf.InputSchema,
		OutputSchemaRef:       rf.OutputSchema,
		ExperimentationPolicy: policy,
	}, nil
}

func buildVariant(fnName, vname string, rv rawVariant) (*catalog.Variant, error) {
	v := &catalog.Variant{
		Name:   vname,
		Weight: rv.Weight,
		Pin:    rv.Pin,
		Kind:   catalog.VariantKind(rv.Type),
	}

	templates := catalog.TemplateRefs{
		System:    rv.SystemTemplate,
		User:      rv.UserTemplate,
		Assistant: rv.AssistantTemplate,
	}

	switch v.Kind {
	case catalog.VariantKindChatCompletion:
		if rv.Model == "" {
			return nil, errkit.New(errkit.InvalidFunctionVariants,
				fmt.Sprintf("function %q variant %q: chat_completion requires model", fnName, vname))
		}

		v.ChatCompletion = &catalog.ChatCompletionVariant{Model: rv.Model, Templates: templates}

	case catalog.VariantKindBestOfN:
		if len(rv.Candidates) == 0 || rv.Evaluator == "" {
			return nil, errkit.New(errkit.InvalidFunctionVariants,
				fmt.Sprintf("function %q variant %q: best_of_n requires candidates and evaluator", fnName, vname))
		}

		v.BestOfN = &catalog.BestOfNVariant{Candidates: rv.Candidates, Evaluator: rv.Evaluator}

	case catalog.VariantKindMixtureOfN:
		if len(rv.Candidates) == 0 || rv.Fuser == "" {
			return nil, errkit.New(errkit.InvalidFunctionVariants,
				fmt.Sprintf("function %q variant %q: mixture_of_n requires candidates and fuser", fnName, vname))
		}

		v.MixtureOfN = &catalog.MixtureOfNVariant{Candidates: rv.Candidates, Fuser: rv.Fuser}

	case catalog.VariantKindDICL:
		if rv.Model == "" || rv.EmbeddingModel == "" || rv.K <= 0 {
			return nil, errkit.New(errkit.InvalidFunctionVariants,
				fmt.Sprintf("function %q variant %q: dicl requires model, embedding_model and k>0", fnName, vname))
		}

		v.DICL = &catalog.DICLVariant{
			Model:          rv.Model,
			EmbeddingModel: rv.EmbeddingModel,
			K:              rv.K,
			Templates:      templates,
		}

	default:
		return nil, errkit.New(errkit.InvalidFunctionVariants,
			fmt.Sprintf("function %q variant %q: unknown variant type %q", fnName, vname, rv.Type))
	}

	return v, nil
}
