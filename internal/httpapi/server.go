// Package httpapi implements the gateway's external HTTP surface (spec
// §6/§4.12): /inference, /feedback, the OpenAI-compatible shims, and the
// observability routes. It is grounded on the teacher's gin-based
// internal/server package, trimmed to this gateway's much smaller surface
// — no admin UI, GraphQL API, auth/RBAC or dataset CRUD, all of which the
// expanded spec keeps out of scope.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/looplj/tzcore/internal/log"
)

// Server wraps a gin.Engine the way the teacher's server.Server does,
// embedding the engine so callers can register additional routes/groups
// before Run.
type Server struct {
	*gin.Engine

	config Config
	server *http.Server
}

// New builds a Server with recovery, access logging and tracing wired in,
// plus CORS when enabled, and registers every route in Handlers.
func New(config Config, handlers Handlers) *Server {
	config = defaultConfig(config)

	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(recovery(), withTracing(), accessLog())

	if config.CORS.Enabled {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:     config.CORS.AllowedOrigins,
			AllowMethods:     config.CORS.AllowedMethods,
			AllowHeaders:     config.CORS.AllowedHeaders,
			ExposeHeaders:    config.CORS.ExposedHeaders,
			AllowCredentials: config.CORS.AllowCredentials,
			MaxAge:           config.CORS.MaxAge,
		}))
	}

	srv := &Server{Engine: engine, config: config}
	registerRoutes(engine, handlers, config.InferenceTimeout)

	return srv
}

// Run starts the HTTP listener and blocks until Shutdown is called or the
// listener fails. A clean shutdown returns nil, matching the teacher's
// server.Run.
func (s *Server) Run() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	log.Info(context.Background(), "starting http server",
		log.String("addr", addr))

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.Engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: 0, // streaming responses can run long; bounded by InferenceTimeout instead
	}

	err := s.server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}

// Shutdown gracefully drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	return s.server.Shutdown(ctx)
}
