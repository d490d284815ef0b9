package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/hanaru-mirror/beatmapd/internal/domain"
)

// parseIdentifier reads the ":id" path parameter and validates it as a
// positive beatmap/beatmapset identifier. It writes a 400 response and
// returns ok=false on failure.
func parseIdentifier(c *gin.Context) (domain.Identifier, bool) {
	raw := c.Param("id")
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a positive integer")
		return 0, false
	}
	return domain.Identifier(n), true
}

// GetBeatmap handles GET /b/:id — a single difficulty's metadata.
func (h *Handlers) GetBeatmap(c *gin.Context) {
	id, ok := parseIdentifier(c)
	if !ok {
		return
	}

	bm, err := h.metadata.FetchBeatmap(c.Request.Context(), id)
	if err != nil {
		status, code, msg := metadataStatus(err)
		fail(c, status, code, msg)
		return
	}
	if bm == nil {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "beatmap not found")
		return
	}
	c.JSON(http.StatusOK, bm)
}

// GetBeatmapset handles GET /s/:id — every difficulty in a beatmapset.
func (h *Handlers) GetBeatmapset(c *gin.Context) {
	id, ok := parseIdentifier(c)
	if !ok {
		return
	}

	rows, err := h.metadata.FetchBeatmapset(c.Request.Context(), id)
	if err != nil {
		status, code, msg := metadataStatus(err)
		fail(c, status, code, msg)
		return
	}
	if len(rows) == 0 {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "beatmapset not found")
		return
	}
	c.JSON(http.StatusOK, rows)
}
