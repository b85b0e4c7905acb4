package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// statusResponse reports what the process has loaded, grounded on the
// teacher's /status handler shape (process identity + loaded counts), with
// dataset/workspace fields dropped since this gateway has no multi-tenant
// config surface.
type statusResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Functions     int    `json:"functions"`
	Models        int    `json:"models"`
}

func (h *Handlers) status(c *gin.Context) {
	c.JSON(http.StatusOK, statusResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(h.StartedAt).Seconds()),
		Functions:     len(h.Catalog.FunctionNames()),
		Models:        len(h.Catalog.ModelNames()),
	})
}

// health is a bare liveness probe: it never touches the catalog or any
// collaborator, so it stays responsive even while dependent components are
// degraded.
func (h *Handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// metricsResponse is a minimal process summary. No prometheus client is part
// of this gateway's dependency stack, and the expanded spec does not name a
// metrics wire format, so this route exposes the same counters as /status in
// a flatter shape rather than a scrape-format payload.
type metricsResponse struct {
	UptimeSeconds int64 `json:"uptime_seconds"`
	Functions     int   `json:"functions"`
	Models        int   `json:"models"`
}

func (h *Handlers) metrics(c *gin.Context) {
	c.JSON(http.StatusOK, metricsResponse{
		UptimeSeconds: int64(time.Since(h.StartedAt).Seconds()),
		Functions:     len(h.Catalog.FunctionNames()),
		Models:        len(h.Catalog.ModelNames()),
	})
}
