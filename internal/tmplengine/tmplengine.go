// Package tmplengine compiles and renders the strict-undefined text
// templates a chat-completion or DICL variant declares for its system, user
// and assistant messages (spec §4.2). Undefined keys are a hard render
// error rather than a silently empty substitution, at every nesting depth,
// not just the top level.
package tmplengine

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/looplj/tzcore/internal/errkit"
)

// Env is the process-wide, compile-once template environment (spec §5
// "Global state"). It owns one compiled *template.Template per registered
// name; nothing in it is mutated after Build returns.
type Env struct {
	compiled map[string]*template.Template
}

// Build compiles every (name, text) source into the environment. A
// compile error anywhere aborts the whole build, since a process that
// cannot render one of its declared templates should not start serving.
func Build(sources map[string]string) (*Env, error) {
	env := &Env{compiled: make(map[string]*template.Template, len(sources))}

	for name, text := range sources {
		tpl, err := template.New(name).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, errkit.Wrap(errkit.TemplateRender, err, fmt.Sprintf("compile template %q", name))
		}

		env.compiled[name] = tpl
	}

	return env, nil
}

// Render executes the named template against args, a JSON-shaped
// map[string]any context. Any key referenced by the template that is
// absent anywhere in args — including nested inside maps-of-maps, which
// "missingkey=error" alone does not catch, since it only applies to the
// top-level map type parameter the template was handed — is a
// TemplateRender error.
func (e *Env) Render(name string, args map[string]any) (string, error) {
	tpl, ok := e.compiled[name]
	if !ok {
		return "", errkit.New(errkit.TemplateMissing, fmt.Sprintf("unknown template %q", name))
	}

	if err := auditKeys(tpl, args); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tpl.Execute(&buf, args); err != nil {
		return "", errkit.Wrap(errkit.TemplateRender, err, fmt.Sprintf("render template %q", name))
	}

	return buf.String(), nil
}

// auditKeys walks every {{.foo.bar}}-style field path text/template parsed
// out of tpl's tree and checks the path resolves inside args, independent
// of execution. text/template's "missingkey=error" option only fires when
// the map being indexed is itself of static type map[string]interface{} at
// the point of the lookup; once a lookup descends into a nested
// map[string]any stored as `any`, a missing key there silently renders
// "<no value>" instead of failing. This walks the parse tree up front so
// every depth gets the same strict treatment.
func auditKeys(tpl *template.Template, args map[string]any) error {
	for _, t := range tpl.Templates() {
		if t.Tree == nil {
			continue
		}

		if err := auditNode(t.Tree.Root, args); err != nil {
			return err
		}
	}

	return nil
}
