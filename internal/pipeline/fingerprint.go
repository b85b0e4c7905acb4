package pipeline

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/looplj/tzcore/internal/providers"
)

// fingerprint hashes the cache key tuple spec §4.6 step 3b names:
// (function_name, variant_name, rendered_input, model_input_schema_version,
// tool_params). Each tool contributes its name, description and parameter
// schema; the request's tool_choice is not part of the key. Reusing
// xxhash.Sum64String mirrors the teacher's own cache-key hashing convention
// (see internal/cache's DESIGN.md entry).
func fingerprint(functionName, variantName string, modelInput *ModelInput, schemaVersion string, toolParams []providers.ToolDefinition) string {
	var b strings.Builder

	b.WriteString(functionName)
	b.WriteByte('\x00')
	b.WriteString(variantName)
	b.WriteByte('\x00')
	b.WriteString(schemaVersion)
	b.WriteByte('\x00')
	b.WriteString(modelInput.System)
	b.WriteByte('\x00')

	for _, m := range modelInput.Messages {
		b.WriteString(string(m.Role))
		b.WriteByte('\x00')

		for _, c := range m.Content {
			b.WriteString(c.Text)
			b.WriteByte('\x00')
		}
	}

	tools := make([]string, 0, len(toolParams))
	for _, t := range toolParams {
		tools = append(tools, t.Name+"\x00"+t.Description+"\x00"+string(t.Parameters))
	}

	sort.Strings(tools)

	for _, s := range tools {
		b.WriteString(s)
		b.WriteByte('\x00')
	}

	return fmt.Sprintf("%016x", xxhash.Sum64String(b.String()))
}
