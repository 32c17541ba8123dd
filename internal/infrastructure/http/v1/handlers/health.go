// Package handlers provides HTTP request handlers.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"facturation/internal/infrastructure/cache"
	"facturation/internal/infrastructure/session"
)

// Version is reported by /health/info.
const Version = "0.1.0"

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	pool     *pgxpool.Pool
	sessions *session.Store
	catalog  *cache.CatalogCache
}

// NewHealthHandler creates a new health handler. pool may be nil when the
// server runs without persistence.
func NewHealthHandler(pool *pgxpool.Pool, sessions *session.Store, catalog *cache.CatalogCache) *HealthHandler {
	return &HealthHandler{pool: pool, sessions: sessions, catalog: catalog}
}

// Live handles liveness probe (is the process alive?).
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready handles readiness probe (is the service ready to accept traffic?).
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := map[string]string{}
	ready := true

	if h.pool == nil {
		checks["database"] = "disabled"
	} else if err := h.pool.Ping(c.Request.Context()); err != nil {
		checks["database"] = "unhealthy: " + err.Error()
		ready = false
	} else {
		checks["database"] = "healthy"
	}

	if h.catalog != nil && h.catalog.LoadedAt().IsZero() {
		checks["catalog"] = "not loaded"
		ready = false
	} else {
		checks["catalog"] = "loaded"
	}

	if !ready {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	info := gin.H{
		"app":     "facturation",
		"version": Version,
	}
	if h.sessions != nil {
		info["sessions"] = h.sessions.Count()
	}
	if h.catalog != nil {
		snapshot := h.catalog.Current()
		info["catalog"] = map[string]any{
			"services":  len(snapshot.Services()),
			"units":     len(snapshot.Units()),
			"loaded_at": h.catalog.LoadedAt().Format(time.RFC3339),
		}
	}
	if h.pool != nil {
		stat := h.pool.Stat()
		info["database"] = map[string]any{
			"total_conns":    stat.TotalConns(),
			"acquired_conns": stat.AcquiredConns(),
			"idle_conns":     stat.IdleConns(),
			"max_conns":      stat.MaxConns(),
		}
	}
	c.JSON(http.StatusOK, info)
}
