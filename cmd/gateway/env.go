package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// envConfig is the process's environment-variable surface. The teacher
// wires its much larger ent/GraphQL/admin graph through a YAML file plus
// github.com/caarlos0/env; nothing in this pack provides an env-parsing
// library, and a dozen scalar settings don't earn one, so this gateway
// reads os.Getenv directly and documents that as a deliberate stdlib
// exception.
type envConfig struct {
	ConfigPath string

	Host string
	Port int

	ReadTimeout      time.Duration
	InferenceTimeout time.Duration
	Debug            bool
	CORSOrigins      []string

	ClickHouseAddr     []string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	CacheMode      string
	RedisAddr      string
	RedisURL       string
	RateLimitRedis string

	AWSRegion string

	CleanStart bool
}

func loadEnvConfig() envConfig {
	cfg := envConfig{
		ConfigPath: getenv("TZCORE_CONFIG", "config.toml"),

		Host:             getenv("TZCORE_HOST", "0.0.0.0"),
		Port:             getenvInt("TZCORE_PORT", 3000),
		ReadTimeout:      getenvDuration("TZCORE_READ_TIMEOUT", 30*time.Second),
		InferenceTimeout: getenvDuration("TZCORE_INFERENCE_TIMEOUT", 90*time.Second),
		Debug:            getenvBool("TZCORE_DEBUG", false),
		CORSOrigins:      getenvList("TZCORE_CORS_ORIGINS"),

		ClickHouseAddr:     getenvList("TZCORE_CLICKHOUSE_ADDR"),
		ClickHouseDatabase: getenv("TZCORE_CLICKHOUSE_DATABASE", "tensorzero"),
		ClickHouseUsername: getenv("TZCORE_CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: os.Getenv("TZCORE_CLICKHOUSE_PASSWORD"),

		CacheMode:      getenv("TZCORE_CACHE_MODE", "memory"),
		RedisAddr:      os.Getenv("TZCORE_REDIS_ADDR"),
		RedisURL:       os.Getenv("TZCORE_REDIS_URL"),
		RateLimitRedis: os.Getenv("TZCORE_RATELIMIT_REDIS_ADDR"),

		AWSRegion: getenv("AWS_REGION", "us-east-1"),

		CleanStart: getenvBool("TZCORE_CLEAN_START", false),
	}

	if len(cfg.ClickHouseAddr) == 0 {
		cfg.ClickHouseAddr = []string{"localhost:9000"}
	}

	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getenvList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}

	return n
}

func getenvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}

	return b
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}

	return d
}

func (c envConfig) String() string {
	return fmt.Sprintf("listen=%s:%d config=%s clickhouse=%v cache=%s", c.Host, c.Port, c.ConfigPath, c.ClickHouseAddr, c.CacheMode)
}
