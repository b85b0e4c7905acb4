package pipeline

import (
	"github.com/looplj/tzcore/internal/catalog"
	"github.com/looplj/tzcore/internal/providers"
	"github.com/looplj/tzcore/internal/tmplengine"
)

// ModelInput is the provider-agnostic, rendered result of a variant's
// templates applied to Input (spec §3 "ModelInput").
type ModelInput struct {
	System   string
	Messages []providers.Message
}

// render applies refs' templates to input, falling back to each message's
// raw Text when the variant declares no template for that role — e.g. a
// tool-result message, which is never templated.
func render(env *tmplengine.Env, refs catalog.TemplateRefs, input Input) (*ModelInput, error) {
	out := &ModelInput{}

	if refs.System != "" {
		system, err := env.Render(refs.System, input.SystemArgs)
		if err != nil {
			return nil, err
		}

		out.System = system
	}

	out.Messages = make([]providers.Message, 0, len(input.Messages))

	for _, m := range input.Messages {
		text := m.Text

		templateName := ""
		switch m.Role {
		case providers.RoleUser:
			templateName = refs.User
		case providers.RoleAssistant:
			templateName = refs.Assistant
		}

		if templateName != "" {
			rendered, err := env.Render(templateName, m.Args)
			if err != nil {
				return nil, err
			}

			text = rendered
		}

		out.Messages = append(out.Messages, providers.Message{
			Role:    m.Role,
			Content: []providers.ContentBlock{{Kind: providers.ContentText, Text: text}},
		})
	}

	return out, nil
}
