// Command gateway is the tensorzero-compatible inference gateway's server
// process: it loads a TOML function/model/provider catalog, wires the
// router, cache, rate limiter and analytical store, runs pending schema
// migrations, and serves the HTTP surface until signaled to stop.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/looplj/tzcore/internal/cache"
	"github.com/looplj/tzcore/internal/catalog"
	"github.com/looplj/tzcore/internal/config"
	"github.com/looplj/tzcore/internal/dicl"
	"github.com/looplj/tzcore/internal/embed"
	"github.com/looplj/tzcore/internal/httpapi"
	"github.com/looplj/tzcore/internal/log"
	"github.com/looplj/tzcore/internal/migrate"
	"github.com/looplj/tzcore/internal/migrate/migrations"
	"github.com/looplj/tzcore/internal/pipeline"
	"github.com/looplj/tzcore/internal/ratelimit"
	"github.com/looplj/tzcore/internal/router"
	"github.com/looplj/tzcore/internal/store"
	"github.com/looplj/tzcore/internal/tmplengine"
)

var version = "dev"

func main() {
	args := os.Args[1:]

	if len(args) > 0 {
		switch args[0] {
		case "version":
			showVersion()
			return
		case "help", "-h", "--help":
			showHelp()
			return
		}
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gateway:", err)
		os.Exit(1)
	}
}

func showVersion() {
	fmt.Printf("gateway %s (%s/%s)\n", version, runtime.GOOS, runtime.GOARCH)
}

func showHelp() {
	fmt.Println(`gateway - tensorzero-compatible inference gateway

Usage:
  gateway            start the HTTP server (reads TZCORE_* environment variables)
  gateway version    print the build version
  gateway help       print this message

Configuration is read from the TOML file named by TZCORE_CONFIG (default
"config.toml"); see internal/config/config.go for the document shape.`)
}

// run builds the full dependency graph and serves until the process
// receives SIGINT/SIGTERM, the way the teacher's startServer does, minus
// the fx container: this gateway's object graph is small enough to wire
// by hand in one function.
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := loadEnvConfig()

	if err := log.SetGlobalConfig(log.Config{Development: env.Debug}); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}

	log.Info(ctx, "starting gateway", log.String("config", env.String()))

	catalogConfig, err := loadCatalog(env.ConfigPath)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}

	templateEnv, err := buildTemplateEnv(catalogConfig)
	if err != nil {
		return fmt.Errorf("compile templates: %w", err)
	}

	resolver, err := buildAdapterResolver(ctx, catalogConfig, env)
	if err != nil {
		return fmt.Errorf("build adapter resolver: %w", err)
	}

	modelRouter := router.New(resolver)

	storeClient, err := store.New(store.Config{
		Addr:     env.ClickHouseAddr,
		Database: env.ClickHouseDatabase,
		Username: env.ClickHouseUsername,
		Password: env.ClickHousePassword,
		Debug:    env.Debug,
	})
	if err != nil {
		return fmt.Errorf("connect analytical store: %w", err)
	}

	if err := runMigrations(ctx, storeClient, env.CleanStart); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	responseCache, err := cache.NewFromConfig(buildCacheConfig(env))
	if err != nil {
		return fmt.Errorf("build cache: %w", err)
	}

	limiter, err := buildRateLimiter(env)
	if err != nil {
		return fmt.Errorf("build rate limiter: %w", err)
	}

	inferenceWriter := store.NewInferenceWriter(storeClient)
	feedbackWriter := store.NewFeedbackWriter(storeClient)

	deps := pipeline.Deps{
		Catalog:     catalogConfig,
		Templates:   templateEnv,
		Router:      modelRouter,
		RateLimiter: limiter,
		Cache:       responseCache,
		Store:       inferenceWriter,
	}

	if hasDICLVariant(catalogConfig) {
		diclStore := store.NewDICLStore(storeClient)
		embedService := embed.New(modelRouter, catalogConfig)
		deps.Retriever = dicl.New(diclStore, embedService)
	}

	pipe := pipeline.New(deps)

	handlers := httpapi.Handlers{
		Pipeline:  pipe,
		Catalog:   catalogConfig,
		Feedback:  feedbackWriter,
		Embedder:  embed.New(modelRouter, catalogConfig),
		StartedAt: time.Now(),
	}

	server := httpapi.New(httpapi.Config{
		Host:             env.Host,
		Port:             env.Port,
		ReadTimeout:      env.ReadTimeout,
		InferenceTimeout: env.InferenceTimeout,
		Debug:            env.Debug,
		CORS: httpapi.CORS{
			Enabled:        len(env.CORSOrigins) > 0,
			AllowedOrigins: env.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
		},
	}, handlers)

	errCh := make(chan error, 1)

	go func() {
		errCh <- server.Run()
	}()

	select {
	case <-ctx.Done():
		log.Info(context.Background(), "shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}

		return nil

	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("server: %w", err)
		}

		return nil
	}
}

func loadCatalog(path string) (*catalog.Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return config.TOMLLoader{}.Load(f)
}

// buildTemplateEnv compiles every template name the catalog declares into
// one process-wide environment (spec §4.2, §5 "Global state").
func buildTemplateEnv(cfg *catalog.Config) (*tmplengine.Env, error) {
	sources := make(map[string]string, len(cfg.Templates))
	for name, tpl := range cfg.Templates {
		sources[name] = tpl.Text
	}

	return tmplengine.Build(sources)
}

func hasDICLVariant(cfg *catalog.Config) bool {
	for _, fn := range cfg.Functions {
		for _, variant := range fn.Variants {
			if variant.Kind == catalog.VariantKindDICL {
				return true
			}
		}
	}

	return false
}

func runMigrations(ctx context.Context, client *store.Client, cleanStart bool) error {
	manager := migrate.NewManager(cleanStart,
		&migrations.InitialTables{Client: client},
		&migrations.TagInference{Client: client},
		&migrations.InferenceIDIndex{Client: client},
		&migrations.CumulativeUsageView{Client: client},
		&migrations.ErrorsColumn{Client: client},
		&migrations.DICLExamples{Client: client},
	)

	return manager.Run(ctx)
}

func buildCacheConfig(env envConfig) cache.Config {
	switch cache.Mode(env.CacheMode) {
	case cache.ModeRedis:
		return cache.Config{
			Mode: cache.ModeRedis,
			Redis: cache.RedisConfig{
				Addr: env.RedisAddr,
				URL:  env.RedisURL,
			},
		}

	case cache.ModeTwoLevel:
		return cache.Config{
			Mode: cache.ModeTwoLevel,
			Redis: cache.RedisConfig{
				Addr: env.RedisAddr,
				URL:  env.RedisURL,
			},
		}

	default:
		return cache.Config{Mode: cache.ModeMemory}
	}
}

func buildRateLimiter(env envConfig) (*ratelimit.Limiter, error) {
	if env.RateLimitRedis == "" {
		return ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Config{}), nil
	}

	redisStore := ratelimit.NewRedisStore(goredis.NewClient(&goredis.Options{Addr: env.RateLimitRedis}))

	return ratelimit.New(redisStore, ratelimit.Config{}), nil
}
