package httpapi

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires every route this gateway exposes onto engine,
// grounded on the teacher's routes.go route-group layout (one group per
// concern, shared middleware on the group rather than per-route).
func registerRoutes(engine *gin.Engine, handlers Handlers, inferenceTimeoutDuration time.Duration) {
	h := &handlers

	inferenceTimeout := withTimeout(inferenceTimeoutDuration)

	core := engine.Group("/")
	core.Use(inferenceTimeout)
	{
		core.POST("/inference", h.inference)
		core.POST("/feedback", h.feedback)
	}

	openai := engine.Group("/openai/v1")
	openai.Use(inferenceTimeout)
	{
		openai.POST("/chat/completions", h.chatCompletions)
		openai.POST("/embeddings", h.embeddings)
	}

	engine.GET("/status", h.status)
	engine.GET("/health", h.health)
	engine.GET("/metrics", h.metrics)
}

// withTimeout bounds the request context for the duration of handler
// execution. Streaming handlers drain the provider stream before they
// return, so a stream still running at the deadline is cut off as well.
func withTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
