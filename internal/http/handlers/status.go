package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Status handles GET / — a human-readable status line, carried forward from
// the original service's bare uptime/cache-occupancy text.
func (h *Handlers) Status(c *gin.Context) {
	uptime := time.Since(h.startedAt).Round(time.Second)
	occ := 0
	if h.cache != nil {
		occ = h.cache.Len()
	}
	c.String(http.StatusOK, "beatmapd up %s, cache %d/%d\n", uptime, occ, h.cacheCap)
}

// Favicon handles GET /favicon.ico — the service serves no icon.
func (h *Handlers) Favicon(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
