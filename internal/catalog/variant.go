package catalog

// VariantKind distinguishes the four variant shapes spec §3 names.
type VariantKind string

const (
	VariantKindChatCompletion VariantKind = "chat_completion"
	VariantKindBestOfN        VariantKind = "best_of_n"
	VariantKindMixtureOfN     VariantKind = "mixture_of_n"
	VariantKindDICL           VariantKind = "dicl"
)

// TemplateRefs names the system/user/assistant templates a variant declares,
// looked up by name in the process-wide template environment (spec §4.2).
type TemplateRefs struct {
	System    string
	User      string
	Assistant string
}

// ChatCompletionVariant references one model plus optional templates.
type ChatCompletionVariant struct {
	Model     string
	Templates TemplateRefs
}

// BestOfNVariant samples N candidate variants and an evaluator variant that
// picks the best candidate response.
type BestOfNVariant struct {
	Candidates []string
	Evaluator  string
}

// MixtureOfNVariant samples N candidate variants and a fuser variant that
// combines all candidate responses into one.
type MixtureOfNVariant struct {
	Candidates []string
	Fuser      string
}

// DICLVariant retrieves K similar examples from a vector store by embedding
// and prepends them to the rendered input before dispatch.
type DICLVariant struct {
	Model           string
	EmbeddingModel  string
	K               int
	Templates       TemplateRefs
}

// Variant is a concrete realization of a function (spec §3 "Variant").
// Exactly one of the kind-specific pointers is non-nil, selected by Kind.
type Variant struct {
	Name   string
	Weight float64
	// Pin, when true, means this variant is only ever selected by an
	// explicit pinned variant_name, never by weighted/uniform sampling.
	Pin bool

	Kind           VariantKind
	ChatCompletion *ChatCompletionVariant
	BestOfN        *BestOfNVariant
	MixtureOfN     *MixtureOfNVariant
	DICL           *DICLVariant
}
