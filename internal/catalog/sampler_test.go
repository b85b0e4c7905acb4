package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatVariant(name string, weight float64, pin bool) *Variant {
	return &Variant{
		Name:   name,
		Weight: weight,
		Pin:    pin,
		Kind:   VariantKindChatCompletion,
		ChatCompletion: &ChatCompletionVariant{
			Model: "gpt-4o",
		},
	}
}

func TestSampleVariantPinnedWins(t *testing.T) {
	f := &Function{
		Name: "extract_data",
		Kind: FunctionKindJson,
		Variants: map[string]*Variant{
			"a": chatVariant("a", 1, false),
			"b": chatVariant("b", 1, false),
			"exp": chatVariant("exp", 0, true),
		},
		ExperimentationPolicy: ExperimentationPolicy{Kind: PolicyUniform},
	}

	v, err := f.SampleVariant("episode-1", "exp")
	require.NoError(t, err)
	assert.Equal(t, "exp", v.Name)
}

func TestSampleVariantUnknownPinned(t *testing.T) {
	f := &Function{
		Name:     "extract_data",
		Variants: map[string]*Variant{"a": chatVariant("a", 1, false)},
	}

	_, err := f.SampleVariant("episode-1", "does_not_exist")
	require.Error(t, err)
}

func TestSampleVariantDeterministicPerEpisode(t *testing.T) {
	f := &Function{
		Name: "extract_data",
		Variants: map[string]*Variant{
			"a": chatVariant("a", 1, false),
			"b": chatVariant("b", 2, false),
			"c": chatVariant("c", 3, false),
		},
		ExperimentationPolicy: ExperimentationPolicy{Kind: PolicyStaticWeights},
	}

	first, err := f.SampleVariant("episode-stable", "")
	require.NoError(t, err)

	for i := 0; i < 20; i++ {
		again, err := f.SampleVariant("episode-stable", "")
		require.NoError(t, err)
		assert.Equal(t, first.Name, again.Name, "same episode id must always resolve to the same variant")
	}
}

func TestSampleVariantDistributesAcrossEpisodes(t *testing.T) {
	f := &Function{
		Name: "extract_data",
		Variants: map[string]*Variant{
			"a": chatVariant("a", 1, false),
			"b": chatVariant("b", 1, false),
		},
		ExperimentationPolicy: ExperimentationPolicy{Kind: PolicyUniform},
	}

	seen := map[string]bool{}

	for i := 0; i < 200; i++ {
		v, err := f.SampleVariant(episodeIDForIndex(i), "")
		require.NoError(t, err)
		seen[v.Name] = true
	}

	assert.Len(t, seen, 2, "uniform sampling over many distinct episodes should hit every candidate")
}

func episodeIDForIndex(i int) string {
	return "episode-" + string(rune('a'+i%26)) + string(rune('0'+i/26))
}

func TestSampleVariantFallbackOrder(t *testing.T) {
	f := &Function{
		Name: "extract_data",
		Variants: map[string]*Variant{
			"primary":  chatVariant("primary", 1, false),
			"fallback": chatVariant("fallback", 1, false),
		},
		ExperimentationPolicy: ExperimentationPolicy{
			Kind:          PolicyFallback,
			FallbackOrder: []string{"missing", "primary", "fallback"},
		},
	}

	v, err := f.SampleVariant("episode-1", "")
	require.NoError(t, err)
	assert.Equal(t, "primary", v.Name)
}

func TestSampleVariantNoCandidates(t *testing.T) {
	f := &Function{
		Name:     "extract_data",
		Variants: map[string]*Variant{"only": chatVariant("only", 1, true)},
		ExperimentationPolicy: ExperimentationPolicy{Kind: PolicyUniform},
	}

	_, err := f.SampleVariant("episode-1", "")
	require.Error(t, err)
}
