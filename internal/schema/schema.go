// Package schema validates function inputs/outputs and tool-call arguments
// against JSON Schema documents (spec §4.3), wrapping
// github.com/google/jsonschema-go exactly as the teacher's llm transformer
// package uses it for provider tool-schema manipulation.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/looplj/tzcore/internal/errkit"
)

// Registry holds compiled, resolved schemas by name (spec §5 "Global
// state": part of the process-wide catalog, built once at startup).
type Registry struct {
	resolved map[string]*jsonschema.Resolved
}

// Build compiles and resolves every (name, raw JSON Schema document) pair.
// A malformed or unresolvable schema aborts the whole build.
func Build(sources map[string]json.RawMessage) (*Registry, error) {
	reg := &Registry{resolved: make(map[string]*jsonschema.Resolved, len(sources))}

	for name, raw := range sources {
		var s jsonschema.Schema
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, errkit.Wrap(errkit.InvalidRequest, err, fmt.Sprintf("parse schema %q", name))
		}

		resolved, err := s.Resolve(nil)
		if err != nil {
			return nil, errkit.Wrap(errkit.InvalidRequest, err, fmt.Sprintf("resolve schema %q", name))
		}

		reg.resolved[name] = resolved
	}

	return reg, nil
}

// Validate checks instance (already decoded into Go values, e.g. via
// json.Unmarshal into map[string]any) against the named schema.
func (r *Registry) Validate(name string, instance any) error {
	resolved, ok := r.resolved[name]
	if !ok {
		return errkit.New(errkit.TemplateMissing, fmt.Sprintf("unknown schema %q", name))
	}

	if err := resolved.Validate(instance); err != nil {
		return errkit.Wrap(errkit.InvalidRequest, err, fmt.Sprintf("validate against schema %q", name))
	}

	return nil
}

// ValidateJSON is a convenience for raw JSON bytes (e.g. a json-function's
// raw model output), decoding before validating.
func (r *Registry) ValidateJSON(name string, raw []byte) (any, error) {
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, errkit.Wrap(errkit.ProviderBadResponse, err, fmt.Sprintf("decode json for schema %q", name))
	}

	if err := r.Validate(name, instance); err != nil {
		return nil, err
	}

	return instance, nil
}
