package httpapi

import "time"

// Config controls the HTTP surface: listen address, timeouts and CORS.
// Grounded on the teacher's server.Config/server.CORS, trimmed to the
// fields this gateway's surface actually needs (no BasePath/Name/Trace —
// this module has no multi-tenant base-path routing or OTEL export).
type Config struct {
	Host string `conf:"host" yaml:"host" json:"host"`
	Port int    `conf:"port" yaml:"port" json:"port"`

	ReadTimeout time.Duration `conf:"read_timeout" yaml:"read_timeout" json:"read_timeout"`

	// InferenceTimeout bounds a single /inference (or OpenAI-compatible)
	// request, including variant retries (spec §4.6). Streaming responses
	// are written inside the handler, so the deadline covers the whole
	// stream as well.
	InferenceTimeout time.Duration `conf:"inference_timeout" yaml:"inference_timeout" json:"inference_timeout"`

	Debug bool `conf:"debug" yaml:"debug" json:"debug"`
	CORS  CORS `conf:"cors" yaml:"cors" json:"cors"`
}

// CORS mirrors the teacher's server.CORS verbatim in shape.
type CORS struct {
	Enabled          bool          `conf:"enabled" yaml:"enabled" json:"enabled"`
	AllowedOrigins   []string      `conf:"allowed_origins" yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods   []string      `conf:"allowed_methods" yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders   []string      `conf:"allowed_headers" yaml:"allowed_headers" json:"allowed_headers"`
	ExposedHeaders   []string      `conf:"exposed_headers" yaml:"exposed_headers" json:"exposed_headers"`
	AllowCredentials bool          `conf:"allow_credentials" yaml:"allow_credentials" json:"allow_credentials"`
	MaxAge           time.Duration `conf:"max_age" yaml:"max_age" json:"max_age"`
}

func defaultConfig(cfg Config) Config {
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}

	if cfg.InferenceTimeout == 0 {
		cfg.InferenceTimeout = 90 * time.Second
	}

	return cfg
}
