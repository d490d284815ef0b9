package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// archiveContentType is served for every successful archive download. Real
// osu! beatmapset archives are ZIP files under a non-standard extension, so
// this intentionally is not "application/zip" — clients that care inspect
// the payload's local-file-header magic themselves.
const archiveContentType = "application/x-osu-beatmap-archive"

// GetDownload handles GET /d/:id — resolves and streams a beatmapset
// archive through the download pipeline.
func (h *Handlers) GetDownload(c *gin.Context) {
	id, ok := parseIdentifier(c)
	if !ok {
		return
	}

	result, err := h.downloads.Download(c.Request.Context(), id)
	if err != nil {
		status, code, msg := pipelineStatus(err)
		fail(c, status, code, msg)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	c.Data(http.StatusOK, archiveContentType, result.Payload)
}
