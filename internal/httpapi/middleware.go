package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/looplj/tzcore/internal/ids"
	"github.com/looplj/tzcore/internal/log"
	"github.com/looplj/tzcore/internal/tracing"
)

// traceHeader is the header clients may supply to carry their own
// correlation id through the gateway; generated with a fresh time-ordered
// id when absent.
const traceHeader = "X-TZ-Trace-Id"

// withTracing attaches a trace id and this request's operation name to the
// request context, grounded on the teacher's WithLoggingTracing but using
// this module's ids.New (UUIDv7) generator instead of a bespoke trace-id
// format.
func withTracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(traceHeader)
		if traceID == "" {
			traceID = ids.New().String()
		}

		c.Header(traceHeader, traceID)

		ctx := tracing.WithTraceID(c.Request.Context(), traceID)
		ctx = tracing.WithOperationName(ctx, fmt.Sprintf("%s %s", c.Request.Method, c.FullPath()))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// accessLog logs only failed requests (status >= 400 or recorded errors),
// matching the teacher's AccessLog — a gateway serving a high-volume hot
// path should not log every successful inference at the access-log level.
func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		ctx := c.Request.Context()

		status := c.Writer.Status()
		if status < 400 && len(c.Errors) == 0 {
			return
		}

		fields := []log.Field{
			log.Int("status", status),
			log.String("method", c.Request.Method),
			log.String("path", c.Request.URL.Path),
			log.Duration("latency", time.Since(start)),
			log.String("client_ip", c.ClientIP()),
		}

		if opName, ok := tracing.OperationName(ctx); ok {
			fields = append(fields, log.String("operation", opName))
		}

		if len(c.Errors) > 0 {
			msgs := make([]string, len(c.Errors))
			for i, e := range c.Errors {
				msgs[i] = e.Error()
			}

			fields = append(fields, log.Strings("errors", msgs))
		}

		log.Error(ctx, "request failed", fields...)
	}
}

// recovery turns a panic in any downstream handler into a 500 response
// instead of crashing the process. The teacher pack's own recover.go
// implementation was not available to copy from, so this follows gin's
// standard deferred-recover idiom plus the structured logging convention
// every other middleware in this package uses.
func recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error(c.Request.Context(), "panic recovered",
					log.Any("panic", r),
					log.String("path", c.Request.URL.Path))
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{
					Error: errorBody{Kind: "internal", Message: "internal server error"},
				})
			}
		}()

		c.Next()
	}
}
