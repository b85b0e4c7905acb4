package catalog

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/looplj/tzcore/internal/errkit"
)

// SampleVariant resolves the variant a request with the given episode id and
// optional pinned name should use (spec §4.1 "Variant sampling").
//
// A pinned name always wins and bypasses weighting entirely, including
// variants marked Pin (those only exist to be pinned). Otherwise the
// function's ExperimentationPolicy decides: PolicyFallback walks
// FallbackOrder and returns the first variant present in f.Variants that
// is not marked Pin;
// PolicyUniform and PolicyStaticWeights both hash episodeID into a
// cumulative-weight table, with uniform treating every candidate's weight
// as 1.
//
// Hashing the episode id rather than rolling fresh randomness means every
// retry within the same episode lands on the same variant, so a multi-turn
// conversation never shears its responses across incompatible variants
// mid-episode.
func (f *Function) SampleVariant(episodeID string, pinnedName string) (*Variant, error) {
	if pinnedName != "" {
		v, ok := f.Variants[pinnedName]
		if !ok {
			return nil, errkit.New(errkit.UnknownVariant,
				fmt.Sprintf("function %q has no variant %q", f.Name, pinnedName))
		}

		return v, nil
	}

	candidates := f.samplingCandidates()
	if len(candidates) == 0 {
		return nil, errkit.New(errkit.InvalidFunctionVariants,
			fmt.Sprintf("function %q has no unpinned variants to sample", f.Name))
	}

	switch f.ExperimentationPolicy.Kind {
	case PolicyFallback:
		for _, name := range f.ExperimentationPolicy.FallbackOrder {
			if v, ok := f.Variants[name]; ok && !v.Pin {
				return v, nil
			}
		}

		return nil, errkit.New(errkit.InvalidFunctionVariants,
			fmt.Sprintf("function %q: fallback_order named no available variant", f.Name))

	case PolicyUniform:
		return sampleWeighted(candidates, uniformWeights(candidates), episodeID), nil

	default: // PolicyStaticWeights
		return sampleWeighted(candidates, staticWeights(candidates), episodeID), nil
	}
}

// samplingCandidates returns the function's non-pinned variants sorted by
// name, so the cumulative-weight table is built in a deterministic order
// independent of Go's randomized map iteration.
func (f *Function) samplingCandidates() []*Variant {
	names := make([]string, 0, len(f.Variants))

	for name, v := range f.Variants {
		if !v.Pin {
			names = append(names, name)
		}
	}

	sort.Strings(names)

	out := make([]*Variant, 0, len(names))
	for _, name := range names {
		out = append(out, f.Variants[name])
	}

	return out
}

func uniformWeights(candidates []*Variant) []float64 {
	w := make([]float64, len(candidates))
	for i := range w {
		w[i] = 1
	}

	return w
}

func staticWeights(candidates []*Variant) []float64 {
	w := make([]float64, len(candidates))
	for i, v := range candidates {
		w[i] = v.Weight
	}

	return w
}

// sampleWeighted hashes key into [0, totalWeight) and walks the cumulative
// weight table to find the variant that interval falls in. Ties in total
// weight (e.g. all-zero weights) fall back to the first candidate.
func sampleWeighted(candidates []*Variant, weights []float64, key string) *Variant {
	var total float64
	for _, w := range weights {
		total += w
	}

	if total <= 0 {
		return candidates[0]
	}

	hash := xxhash.Sum64String(key)
	// Scale the 64-bit hash into [0, total) using the fractional part of
	// hash/2^64, so the same episode id always lands on the same point.
	point := (float64(hash) / float64(^uint64(0))) * total

	var cumulative float64
	for i, w := range weights {
		cumulative += w
		if point < cumulative {
			return candidates[i]
		}
	}

	return candidates[len(candidates)-1]
}
