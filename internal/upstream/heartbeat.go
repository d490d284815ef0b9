package upstream

import (
	"context"
	"time"
)

// Heartbeat periodically calls a benign fetch against the upstream service
// to keep session tokens from silently expiring between real requests.
// Grounded on the weekly keep-alive the original mirror implementation ran
// from its downloader loop.
type Heartbeat struct {
	session  *Session
	interval time.Duration
	pingID   int64
}

// NewHeartbeat builds a Heartbeat that pings pingID (any beatmapset id known
// to exist) once per interval.
func NewHeartbeat(session *Session, interval time.Duration, pingID int64) *Heartbeat {
	return &Heartbeat{session: session, interval: interval, pingID: pingID}
}

// Run blocks, issuing a ping every interval until ctx is cancelled. Each
// ping tolerates 429/404/200 as a healthy outcome; any other status is
// retried after one minute instead of waiting for the next full interval.
func (h *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.pingUntilHealthy(ctx)
		}
	}
}

func (h *Heartbeat) pingUntilHealthy(ctx context.Context) {
	for {
		res, err := h.session.Fetch(ctx, h.pingID)
		if err == nil && isHeartbeatHealthy(res.StatusCode) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Minute):
		}
	}
}

func isHeartbeatHealthy(status int) bool {
	switch status {
	case http200, http404, http429:
		return true
	default:
		return false
	}
}

const (
	http200 = 200
	http404 = 404
	http429 = 429
)
