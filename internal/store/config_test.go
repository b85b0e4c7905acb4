package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfigDefaultsApplyWhenZero(t *testing.T) {
	cfg := Config{}

	assert.Equal(t, 5*time.Second, cfg.dialTimeout())
	assert.Equal(t, 10, cfg.maxOpenConns())
	assert.Equal(t, 5, cfg.maxIdleConns())
}

func TestConfigExplicitValuesOverrideDefaults(t *testing.T) {
	cfg := Config{DialTimeout: 2 * time.Second, MaxOpenConns: 20, MaxIdleConns: 2}

	assert.Equal(t, 2*time.Second, cfg.dialTimeout())
	assert.Equal(t, 20, cfg.maxOpenConns())
	assert.Equal(t, 2, cfg.maxIdleConns())
}
