package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"chat-sync/internal/telemetry"
)

type feedCounter interface {
	Count() int
}

// DebugOptions configures the debug-only endpoints.
type DebugOptions struct {
	Enabled bool
	Audit   *telemetry.AuditEmitter
	Feeds   feedCounter
}

// RegisterDebugRoutes wires debug-only endpoints.
func RegisterDebugRoutes(router gin.IRouter, opts DebugOptions) {
	if !opts.Enabled {
		return
	}

	debug := router.Group("/debug")
	debug.GET("/audit-test", func(c *gin.Context) {
		if opts.Audit == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit emitter not configured"})
			return
		}
		emitAudit(c, opts.Audit, "INFO", "debug.audit_test", "audit test", c.GetHeader("X-User-ID"))
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	debug.GET("/feeds", func(c *gin.Context) {
		if opts.Feeds == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feeds not configured"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"live_feeds": opts.Feeds.Count()})
	})
}
