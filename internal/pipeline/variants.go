package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/looplj/tzcore/internal/catalog"
	"github.com/looplj/tzcore/internal/errkit"
	"github.com/looplj/tzcore/internal/log"
	"github.com/looplj/tzcore/internal/providers"
)

// dispatchVariant executes one sampled variant to completion, switching on
// its Kind (spec §3 "Variant").
func (p *Pipeline) dispatchVariant(ctx context.Context, params Params, function *catalog.Function, variant *catalog.Variant, episodeID, inferenceID uuid.UUID) (*InferenceOutput, error) {
	switch variant.Kind {
	case catalog.VariantKindChatCompletion:
		if variant.ChatCompletion == nil {
			return nil, errkit.New(errkit.InvalidFunctionVariants, fmt.Sprintf("variant %q: chat_completion config missing", variant.Name))
		}

		return p.dispatchModelVariant(ctx, params, function, variant, variant.ChatCompletion.Model, variant.ChatCompletion.Templates, episodeID, inferenceID)

	case catalog.VariantKindDICL:
		return p.dispatchDICL(ctx, params, function, variant, episodeID, inferenceID)

	case catalog.VariantKindBestOfN:
		if params.Stream {
			return nil, errkit.New(errkit.InvalidRequest, "best_of_n variants do not support streaming")
		}

		return p.dispatchBestOfN(ctx, params, function, variant, episodeID, inferenceID)

	case catalog.VariantKindMixtureOfN:
		if params.Stream {
			return nil, errkit.New(errkit.InvalidRequest, "mixture_of_n variants do not support streaming")
		}

		return p.dispatchMixtureOfN(ctx, params, function, variant, episodeID, inferenceID)

	default:
		return nil, errkit.New(errkit.InvalidFunctionVariants, fmt.Sprintf("variant %q has unrecognized kind %q", variant.Name, variant.Kind))
	}
}

// dispatchModelVariant is the common chat-completion dispatch path: render,
// cache lookup, rate-limit admit, route, cache store. DICL reuses it after
// augmenting Input with retrieved examples.
func (p *Pipeline) dispatchModelVariant(ctx context.Context, params Params, function *catalog.Function, variant *catalog.Variant, modelName string, templates catalog.TemplateRefs, episodeID, inferenceID uuid.UUID) (*InferenceOutput, error) {
	modelInput, err := render(p.deps.Templates, templates, params.Input)
	if err != nil {
		return nil, err
	}

	fp := fingerprint(function.Name, variant.Name, modelInput, params.Input.ModelInputSchemaVersion, params.Input.Tools)

	if params.Cache.Enabled && p.deps.Cache != nil && !params.Stream {
		entry, hit, lookupErr := p.deps.Cache.Lookup(ctx, fp, params.Cache.LookbackSeconds)
		if lookupErr != nil {
			log.Warn(ctx, "cache lookup failed, bypassing cache", log.Cause(lookupErr))
		} else if hit {
			return &InferenceOutput{
				InferenceID:  inferenceID,
				EpisodeID:    episodeID,
				FunctionName: function.Name,
				VariantName:  variant.Name,
				ModelName:    modelName,
				Content:      entry.Content,
				FinishReason: entry.FinishReason,
				Usage:        entry.Usage,
				Cached:       true,
				RawRequest:   entry.RawRequest,
				RawResponse:  entry.RawResponse,
			}, nil
		}
	}

	if p.deps.RateLimiter != nil {
		pools := []string{"variant:" + variant.Name, "model:" + modelName, "global"}
		if admitErr := p.deps.RateLimiter.Admit(ctx, pools); admitErr != nil {
			return nil, admitErr
		}
	}

	model, err := p.deps.Catalog.GetModel(modelName)
	if err != nil {
		return nil, err
	}

	req := &providers.InferenceRequest{
		Messages:   modelInput.Messages,
		System:     modelInput.System,
		Tools:      params.Input.Tools,
		ToolChoice: params.Input.ToolChoice,
		Stream:     params.Stream,
	}

	if params.Stream {
		stream, providerName, streamErr := p.deps.Router.InferStream(ctx, model, p.deps.Catalog.ProviderByName, req)
		if streamErr != nil {
			return nil, streamErr
		}

		out := &InferenceOutput{
			InferenceID:  inferenceID,
			EpisodeID:    episodeID,
			FunctionName: function.Name,
			VariantName:  variant.Name,
			ModelName:    modelName,
			ProviderName: providerName,
			Stream:       stream,
		}

		if params.Cache.Enabled && p.deps.Cache != nil {
			out.fingerprint = fp
		}

		return out, nil
	}

	resp, providerName, inferErr := p.deps.Router.Infer(ctx, model, p.deps.Catalog.ProviderByName, req)
	if inferErr != nil {
		return nil, inferErr
	}

	out := &InferenceOutput{
		InferenceID:  inferenceID,
		EpisodeID:    episodeID,
		FunctionName: function.Name,
		VariantName:  variant.Name,
		ModelName:    modelName,
		ProviderName: providerName,
		Content:      resp.Content,
		FinishReason: resp.FinishReason,
		Usage:        resp.Usage,
		RawRequest:   resp.RawRequest,
		RawResponse:  resp.RawResponse,
	}

	if params.Cache.Enabled && p.deps.Cache != nil {
		storeErr := p.deps.Cache.Store(ctx, fp, CacheEntry{
			Content:      out.Content,
			FinishReason: out.FinishReason,
			Usage:        out.Usage,
			RawRequest:   out.RawRequest,
			RawResponse:  out.RawResponse,
		})
		if storeErr != nil {
			log.Warn(ctx, "cache store failed", log.Cause(storeErr))
		}
	}

	return out, nil
}

// Retriever looks up the K nearest DICL examples for a query by embedding
// similarity (spec §3 "DICL"). internal/store's vector-backed
// implementation is wired in at process start; Deps.Retriever is nil in
// configurations that never declare a dicl variant.
type Retriever interface {
	Retrieve(ctx context.Context, functionName, variantName, embeddingModel string, k int, query string) ([]RetrievedExample, error)
}

// RetrievedExample is one nearest-neighbor example folded into a DICL
// variant's rendered input.
type RetrievedExample struct {
	Input  string
	Output string
}

func (p *Pipeline) dispatchDICL(ctx context.Context, params Params, function *catalog.Function, variant *catalog.Variant, episodeID, inferenceID uuid.UUID) (*InferenceOutput, error) {
	d := variant.DICL
	if d == nil {
		return nil, errkit.New(errkit.InvalidFunctionVariants, fmt.Sprintf("variant %q: dicl config missing", variant.Name))
	}

	if p.deps.Retriever == nil {
		return nil, errkit.New(errkit.InvalidFunctionVariants, fmt.Sprintf("variant %q: no dicl retriever configured", variant.Name))
	}

	query := renderQueryForRetrieval(params.Input)

	examples, err := p.deps.Retriever.Retrieve(ctx, function.Name, variant.Name, d.EmbeddingModel, d.K, query)
	if err != nil {
		return nil, errkit.Wrap(errkit.Internal, err, "dicl retrieval failed")
	}

	augmented := params.Input
	augmentedArgs := make(map[string]any, len(params.Input.SystemArgs)+1)

	for k, v := range params.Input.SystemArgs {
		augmentedArgs[k] = v
	}

	augmentedArgs["dicl_examples"] = examples
	augmented.SystemArgs = augmentedArgs

	augmentedParams := params
	augmentedParams.Input = augmented

	return p.dispatchModelVariant(ctx, augmentedParams, function, variant, d.Model, d.Templates, episodeID, inferenceID)
}

func renderQueryForRetrieval(input Input) string {
	var b strings.Builder

	for _, m := range input.Messages {
		b.WriteString(m.Text)
		b.WriteByte(' ')
	}

	return strings.TrimSpace(b.String())
}

// dispatchByName looks up name within function and dispatches it, forcing
// Stream off since best-of-N/mixture-of-N candidates always run to
// completion before the evaluator/fuser runs.
func (p *Pipeline) dispatchByName(ctx context.Context, params Params, function *catalog.Function, name string, episodeID, inferenceID uuid.UUID) (*InferenceOutput, error) {
	v, ok := function.Variants[name]
	if !ok {
		return nil, errkit.New(errkit.InvalidFunctionVariants, fmt.Sprintf("function %q: candidate variant %q not found", function.Name, name))
	}

	sub := params
	sub.Stream = false

	return p.dispatchVariant(ctx, sub, function, v, episodeID, inferenceID)
}

func (p *Pipeline) dispatchBestOfN(ctx context.Context, params Params, function *catalog.Function, variant *catalog.Variant, episodeID, inferenceID uuid.UUID) (*InferenceOutput, error) {
	b := variant.BestOfN
	if b == nil || len(b.Candidates) == 0 {
		return nil, errkit.New(errkit.InvalidFunctionVariants, fmt.Sprintf("variant %q: best_of_n has no candidates", variant.Name))
	}

	results, err := p.runCandidates(ctx, params, function, b.Candidates, episodeID, inferenceID)
	if err != nil {
		return nil, err
	}

	evalArgs := make(map[string]any, len(params.Input.SystemArgs)+1)
	for k, v := range params.Input.SystemArgs {
		evalArgs[k] = v
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = contentText(r.Content)
	}

	evalArgs["candidates"] = texts

	evalInput := params.Input
	evalInput.SystemArgs = evalArgs

	evalParams := params
	evalParams.Input = evalInput

	evalOut, err := p.dispatchByName(ctx, evalParams, function, b.Evaluator, episodeID, inferenceID)
	if err != nil {
		return nil, errkit.Wrap(errkit.Internal, err, "best_of_n evaluator failed")
	}

	idx := parseCandidateIndex(contentText(evalOut.Content), len(results))

	winner := results[idx]
	winner.FunctionName = function.Name
	winner.VariantName = variant.Name
	winner.Usage = sumUsage(results).Add(evalOut.Usage)

	return winner, nil
}

func (p *Pipeline) dispatchMixtureOfN(ctx context.Context, params Params, function *catalog.Function, variant *catalog.Variant, episodeID, inferenceID uuid.UUID) (*InferenceOutput, error) {
	m := variant.MixtureOfN
	if m == nil || len(m.Candidates) == 0 {
		return nil, errkit.New(errkit.InvalidFunctionVariants, fmt.Sprintf("variant %q: mixture_of_n has no candidates", variant.Name))
	}

	results, err := p.runCandidates(ctx, params, function, m.Candidates, episodeID, inferenceID)
	if err != nil {
		return nil, err
	}

	fuseArgs := make(map[string]any, len(params.Input.SystemArgs)+1)
	for k, v := range params.Input.SystemArgs {
		fuseArgs[k] = v
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = contentText(r.Content)
	}

	fuseArgs["candidates"] = texts

	fuseInput := params.Input
	fuseInput.SystemArgs = fuseArgs

	fuseParams := params
	fuseParams.Input = fuseInput

	fusedOut, err := p.dispatchByName(ctx, fuseParams, function, m.Fuser, episodeID, inferenceID)
	if err != nil {
		return nil, errkit.Wrap(errkit.Internal, err, "mixture_of_n fuser failed")
	}

	fusedOut.FunctionName = function.Name
	fusedOut.VariantName = variant.Name
	fusedOut.Usage = sumUsage(results).Add(fusedOut.Usage)

	return fusedOut, nil
}

// runCandidates dispatches every candidate variant concurrently, returning
// an error only if every candidate failed (a partial success set is
// enough to proceed to the evaluator/fuser stage).
func (p *Pipeline) runCandidates(ctx context.Context, params Params, function *catalog.Function, names []string, episodeID, inferenceID uuid.UUID) ([]*InferenceOutput, error) {
	results := make([]*InferenceOutput, len(names))
	errs := make([]error, len(names))

	g, gctx := errgroup.WithContext(ctx)

	for i, name := range names {
		i, name := i, name

		g.Go(func() error {
			out, err := p.dispatchByName(gctx, params, function, name, episodeID, inferenceID)
			results[i] = out
			errs[i] = err

			return nil // collect; do not abort siblings on one candidate's failure
		})
	}

	_ = g.Wait()

	survivors := make([]*InferenceOutput, 0, len(names))

	for i, out := range results {
		if errs[i] == nil && out != nil {
			survivors = append(survivors, out)
		} else if errs[i] != nil {
			log.Warn(ctx, "candidate variant failed", log.Any("candidate", names[i]), log.Cause(errs[i]))
		}
	}

	if len(survivors) == 0 {
		return nil, errkit.New(errkit.AllVariantsFailed, "all candidates failed")
	}

	return survivors, nil
}

func contentText(content []providers.ContentBlock) string {
	var b strings.Builder

	for _, c := range content {
		if c.Kind == providers.ContentText {
			b.WriteString(c.Text)
		}
	}

	return b.String()
}

func sumUsage(results []*InferenceOutput) providers.Usage {
	var total providers.Usage
	for _, r := range results {
		total = total.Add(r.Usage)
	}

	return total
}

// parseCandidateIndex extracts a 0-based candidate index from the
// evaluator's free-text response, clamping to range and defaulting to the
// first candidate if the response does not parse as an integer.
func parseCandidateIndex(text string, n int) int {
	idx, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || idx < 0 || idx >= n {
		return 0
	}

	return idx
}
