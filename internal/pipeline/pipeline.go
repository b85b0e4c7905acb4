// Package pipeline implements the gateway's hottest path: resolve a
// function, sample a variant, render it, consult the cache and rate
// limiter, dispatch to the model router, and on success schedule the
// persistence write (spec §4.6). It is grounded on the teacher's
// internal/llm/pipeline.Process/processRequest retry loop, generalized
// from "retry the same HTTP channel" to "try the next sampled variant".
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/looplj/tzcore/internal/aggregator"
	"github.com/looplj/tzcore/internal/catalog"
	"github.com/looplj/tzcore/internal/errkit"
	"github.com/looplj/tzcore/internal/ids"
	"github.com/looplj/tzcore/internal/log"
	"github.com/looplj/tzcore/internal/providers"
	"github.com/looplj/tzcore/internal/router"
	"github.com/looplj/tzcore/internal/tmplengine"
)

// Input is the caller-supplied, provider-agnostic payload a variant renders
// against (spec §3 "Input"). SystemArgs/Messages are JSON-shaped template
// contexts; a message whose Role has no corresponding template on the
// variant is passed through as plain text instead of being rendered.
type Input struct {
	SystemArgs map[string]any
	Messages   []InputMessage

	// ModelInputSchemaVersion is folded into the cache fingerprint (spec
	// §4.6 step 3b) so a template/schema change invalidates stale entries.
	ModelInputSchemaVersion string

	Tools      []providers.ToolDefinition
	ToolChoice string
}

// InputMessage is one turn of caller input prior to rendering.
type InputMessage struct {
	Role providers.Role
	Args map[string]any
	Text string
}

// CacheOptions controls whether and how far back the cache is consulted
// (spec §4.6 step 3b).
type CacheOptions struct {
	Enabled         bool
	LookbackSeconds int64
}

// Params carries one inference(...) call's arguments (spec §4.6).
// Exactly one of FunctionName/ModelName must be set.
type Params struct {
	FunctionName string
	ModelName    string

	Input Input

	PinnedVariant string
	EpisodeID     uuid.UUID

	Stream bool
	Dryrun bool

	Cache CacheOptions
	Tags  map[string]string

	// InlineVariantConfig supplies an ephemeral variant definition instead
	// of sampling from the catalog. Only accepted when Dryrun is true
	// (spec §4.6 Params).
	InlineVariantConfig *catalog.Variant
}

// InferenceOutput is the pipeline's result for one inference call. Stream
// is non-nil iff Params.Stream was true, in which case Content/Usage are
// zero and the caller drains Stream through internal/aggregator instead.
type InferenceOutput struct {
	InferenceID  uuid.UUID
	EpisodeID    uuid.UUID
	FunctionName string
	VariantName  string
	ModelName    string
	ProviderName string

	Content      []providers.ContentBlock
	FinishReason providers.FinishReason
	Usage        providers.Usage
	Cached       bool

	RawRequest  []byte
	RawResponse []byte

	Stream *providers.Stream

	// fingerprint is the cache key computed for this attempt when caching
	// was requested, carried through so FinalizeStream can store the
	// aggregated result once the stream completes (spec §4.7 "cache writes
	// for streams occur only after the stream completes successfully").
	// Empty when caching was disabled for this call.
	fingerprint string
}

// Catalog is the read-only configuration surface the pipeline resolves
// functions, models and providers against.
type Catalog interface {
	GetFunction(name string) (*catalog.Function, error)
	GetModel(name string) (*catalog.Model, error)
	ProviderByName(name string) (*catalog.Provider, bool)
}

// Deps bundles the pipeline's collaborators. RateLimiter, Cache and Store
// are optional (nil disables the corresponding step) so unit tests can
// exercise the sampling/dispatch loop without a full substrate.
type Deps struct {
	Catalog   Catalog
	Templates *tmplengine.Env
	Router    *router.Router

	RateLimiter RateLimiter
	Cache       Cache
	Store       Store
	Retriever   Retriever

	// ClockSkewWindow bounds a client-supplied episode id's acceptable
	// drift from now (spec §4.6 step 2); defaults to ids.DefaultClockSkewWindow.
	ClockSkewWindow time.Duration
}

// Pipeline is the hot-path entry point; one instance is shared across all
// requests and holds no per-request state.
type Pipeline struct {
	deps Deps
}

func New(deps Deps) *Pipeline {
	if deps.ClockSkewWindow == 0 {
		deps.ClockSkewWindow = ids.DefaultClockSkewWindow
	}

	return &Pipeline{deps: deps}
}

// Run executes the full algorithm in spec §4.6.
func (p *Pipeline) Run(ctx context.Context, params Params) (*InferenceOutput, error) {
	function, err := p.resolveFunction(params)
	if err != nil {
		return nil, err
	}

	if params.InlineVariantConfig != nil && !params.Dryrun {
		return nil, errkit.New(errkit.InvalidRequest, "internal_dynamic_variant_config is only accepted when dryrun=true")
	}

	episodeID, err := p.resolveEpisodeID(params)
	if err != nil {
		return nil, err
	}

	inferenceID := ids.New()

	perVariantErr := map[string]error{}
	excluded := map[string]bool{}

	for {
		variant, sampleErr := p.pickVariant(function, params, episodeID, excluded)
		if sampleErr != nil {
			if len(perVariantErr) > 0 && errkit.KindOf(sampleErr) == errkit.InvalidFunctionVariants {
				return nil, &errkit.AllVariantsFailedError{FunctionName: function.Name, PerVariantError: perVariantErr}
			}

			return nil, sampleErr
		}

		out, attemptErr := p.dispatchVariant(ctx, params, function, variant, episodeID, inferenceID)
		if attemptErr == nil {
			p.finalize(ctx, params, function, out)
			return out, nil
		}

		log.Warn(ctx, "variant attempt failed, trying next candidate",
			log.Any("function", function.Name),
			log.Any("variant", variant.Name),
			log.Cause(attemptErr))

		perVariantErr[variant.Name] = attemptErr

		if params.PinnedVariant != "" || params.InlineVariantConfig != nil {
			return nil, &errkit.AllVariantsFailedError{FunctionName: function.Name, PerVariantError: perVariantErr}
		}

		excluded[variant.Name] = true
	}
}

func (p *Pipeline) resolveFunction(params Params) (*catalog.Function, error) {
	switch {
	case params.FunctionName != "" && params.ModelName != "":
		return nil, errkit.New(errkit.InvalidRequest, "exactly one of function_name or model_name must be set")
	case params.FunctionName != "":
		return p.deps.Catalog.GetFunction(params.FunctionName)
	case params.ModelName != "":
		return catalog.SyntheticChatFunction(params.ModelName), nil
	default:
		return nil, errkit.New(errkit.InvalidRequest, "exactly one of function_name or model_name must be set")
	}
}

func (p *Pipeline) resolveEpisodeID(params Params) (uuid.UUID, error) {
	if params.EpisodeID == uuid.Nil {
		return ids.New(), nil
	}

	if !ids.ValidateEpisodeID(params.EpisodeID, p.deps.ClockSkewWindow, time.Now()) {
		return uuid.Nil, errkit.New(errkit.InvalidRequest, "episode_id is not a valid time-ordered id within the clock-skew window")
	}

	return params.EpisodeID, nil
}

// pickVariant samples the next candidate, respecting InlineVariantConfig
// and the set of names already excluded by prior failed attempts within
// this call (spec §4.6 step 3, "the function removes failed variants from
// the local working set and reweights"). Sampling hashes the assigned
// episodeID, not params.EpisodeID — a client-omitted episode id leaves
// params.EpisodeID as uuid.Nil, which would otherwise hash identically for
// every such request and collapse the experimentation policy onto one
// variant.
func (p *Pipeline) pickVariant(function *catalog.Function, params Params, episodeID uuid.UUID, excluded map[string]bool) (*catalog.Variant, error) {
	if params.InlineVariantConfig != nil {
		return params.InlineVariantConfig, nil
	}

	if len(excluded) == 0 {
		return function.SampleVariant(episodeID.String(), params.PinnedVariant)
	}

	working := withExcluded(function, excluded)

	return working.SampleVariant(episodeID.String(), params.PinnedVariant)
}

// withExcluded returns a shallow copy of f whose Variants map omits every
// name in excluded, leaving f itself untouched (the catalog is read-only
// for the lifetime of the process).
func withExcluded(f *catalog.Function, excluded map[string]bool) *catalog.Function {
	cp := *f
	cp.Variants = make(map[string]*catalog.Variant, len(f.Variants))

	for name, v := range f.Variants {
		if !excluded[name] {
			cp.Variants[name] = v
		}
	}

	return &cp
}

// finalize schedules the asynchronous persistence write unless this was a
// dryrun or the request is still streaming. A streaming call's write is
// scheduled later, by FinalizeStream, once the caller's aggregator has
// folded the chunk sequence into a terminal result.
func (p *Pipeline) finalize(ctx context.Context, params Params, function *catalog.Function, out *InferenceOutput) {
	if params.Dryrun || params.Stream || p.deps.Store == nil {
		return
	}

	record := InferenceRecord{
		InferenceID:  out.InferenceID,
		EpisodeID:    out.EpisodeID,
		FunctionKind: function.Kind,
		FunctionName: out.FunctionName,
		VariantName:  out.VariantName,
		ModelName:    out.ModelName,
		ProviderName: out.ProviderName,
		Content:      out.Content,
		FinishReason: out.FinishReason,
		Usage:        out.Usage,
		Cached:       out.Cached,
		RawRequest:   out.RawRequest,
		RawResponse:  out.RawResponse,
		Tags:         params.Tags,
	}

	go func() {
		writeCtx := context.WithoutCancel(ctx)
		if err := p.deps.Store.WriteInference(writeCtx, record); err != nil {
			log.Warn(writeCtx, "async inference write failed, dropping",
				log.Any("inference_id", record.InferenceID.String()),
				log.Cause(err))
		}
	}()
}

// FinalizeStream schedules the persistence and cache writes for a streaming
// call, once the caller has drained out.Stream through internal/aggregator
// and obtained its terminal Result (spec §4.7: "cache writes for streams
// occur only after the stream completes successfully"). A nil or
// Incomplete result (client disconnect, upstream error before the terminal
// chunk) skips both writes, matching the non-streaming path's "only on
// success" rule.
//
// RawRequest/RawResponse are left unset on streamed records: unlike Infer,
// the provider adapters' InferStream does not hand back the wire bytes it
// sent or the raw SSE frames it read, so there is nothing to carry here.
func (p *Pipeline) FinalizeStream(ctx context.Context, out *InferenceOutput, functionKind catalog.FunctionKind, dryrun bool, tags map[string]string, result *aggregator.Result) {
	if dryrun || result == nil || result.Incomplete {
		return
	}

	if p.deps.Store != nil {
		record := InferenceRecord{
			InferenceID:  out.InferenceID,
			EpisodeID:    out.EpisodeID,
			FunctionKind: functionKind,
			FunctionName: out.FunctionName,
			VariantName:  out.VariantName,
			ModelName:    out.ModelName,
			ProviderName: out.ProviderName,
			Content:      result.Content,
			FinishReason: result.FinishReason,
			Usage:        result.Usage,
			Tags:         tags,
		}

		go func() {
			writeCtx := context.WithoutCancel(ctx)
			if err := p.deps.Store.WriteInference(writeCtx, record); err != nil {
				log.Warn(writeCtx, "async streamed inference write failed, dropping",
					log.Any("inference_id", record.InferenceID.String()),
					log.Cause(err))
			}
		}()
	}

	if p.deps.Cache != nil && out.fingerprint != "" {
		entry := CacheEntry{
			Content:      result.Content,
			FinishReason: result.FinishReason,
			Usage:        result.Usage,
		}

		go func() {
			writeCtx := context.WithoutCancel(ctx)
			if err := p.deps.Cache.Store(writeCtx, out.fingerprint, entry); err != nil {
				log.Warn(writeCtx, "async streamed cache store failed, dropping", log.Cause(err))
			}
		}()
	}
}
