package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGlobalFlagsUnderTestBinaryDoesNotPanic(t *testing.T) {
	// InitFlags has not run in this test process; under `go test` reading
	// GlobalFlags must not panic.
	assert.NotPanics(t, func() {
		assert.False(t, GlobalFlags().Enabled("anything"))
	})
}

func TestFlagsEnabled(t *testing.T) {
	f := &Flags{flags: map[string]bool{"new_router": true}}

	assert.True(t, f.Enabled("new_router"))
	assert.False(t, f.Enabled("unknown"))
}
