package handlers

import (
	"encoding/base64"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/hanaru-mirror/beatmapd/internal/domain"
	"github.com/hanaru-mirror/beatmapd/internal/http/middleware"
)

// wsUpgrader mirrors the teacher's permissive local-dev CORS stance at the
// HTTP layer (internal/http/router.go's CORS branch) rather than imposing a
// second, divergent origin policy just for the socket.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsResponse is the JSON object returned for each inbound id, mirroring
// GET /d/{id}'s semantics over the socket instead of as raw bytes.
type wsResponse struct {
	ID       int64  `json:"id"`
	Status   string `json:"status"`
	Data     string `json:"data,omitempty"` // base64 archive, present on ok
	Filename string `json:"filename,omitempty"`
}

// Subscribe handles the WS route on "/": each inbound text/binary message is
// an ASCII decimal identifier. Every message is served on its own goroutine
// against the shared Downloader, with writes serialized back onto the single
// socket connection — multiple in-flight requests per connection are
// expected, not an error case.
func (h *Handlers) Subscribe(c *gin.Context) {
	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	var writeMu sync.Mutex
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		raw := string(msg)
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			writeJSON(&writeMu, conn, wsResponse{Status: "bad_request"})
			continue
		}

		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			h.serveOne(c, &writeMu, conn, domain.Identifier(id))
		}(n)
	}
}

func (h *Handlers) serveOne(c *gin.Context, writeMu *sync.Mutex, conn *websocket.Conn, id domain.Identifier) {
	result, err := h.downloads.Download(c.Request.Context(), id)
	if err != nil {
		_, code, _ := pipelineStatus(err)
		writeJSON(writeMu, conn, wsResponse{ID: int64(id), Status: code})
		return
	}
	writeJSON(writeMu, conn, wsResponse{
		ID:       int64(id),
		Status:   "ok",
		Data:     base64.StdEncoding.EncodeToString(result.Payload),
		Filename: result.Filename,
	})
}

func writeJSON(writeMu *sync.Mutex, conn *websocket.Conn, v wsResponse) {
	writeMu.Lock()
	defer writeMu.Unlock()
	_ = conn.WriteJSON(v)
}
