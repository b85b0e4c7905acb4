package tmplengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderTopLevelKey(t *testing.T) {
	env, err := Build(map[string]string{"greet": "hello {{.name}}"})
	require.NoError(t, err)

	out, err := env.Render("greet", map[string]any{"name": "ava"})
	require.NoError(t, err)
	assert.Equal(t, "hello ava", out)
}

func TestRenderMissingTopLevelKey(t *testing.T) {
	env, err := Build(map[string]string{"greet": "hello {{.name}}"})
	require.NoError(t, err)

	_, err = env.Render("greet", map[string]any{})
	require.Error(t, err)
}

func TestRenderMissingNestedKey(t *testing.T) {
	env, err := Build(map[string]string{"t": "{{.user.name}} from {{.user.city}}"})
	require.NoError(t, err)

	_, err = env.Render("t", map[string]any{
		"user": map[string]any{"name": "ava"},
	})
	require.Error(t, err, "missing nested key must fail just like a missing top-level key")
}

func TestRenderNestedKeyPresent(t *testing.T) {
	env, err := Build(map[string]string{"t": "{{.user.name}} from {{.user.city}}"})
	require.NoError(t, err)

	out, err := env.Render("t", map[string]any{
		"user": map[string]any{"name": "ava", "city": "nyc"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ava from nyc", out)
}

func TestRenderUnknownTemplate(t *testing.T) {
	env, err := Build(map[string]string{"t": "x"})
	require.NoError(t, err)

	_, err = env.Render("missing", nil)
	require.Error(t, err)
}

func TestBuildCompileError(t *testing.T) {
	_, err := Build(map[string]string{"bad": "{{ .unterminated "})
	require.Error(t, err)
}
