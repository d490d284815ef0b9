// Package handlers provides HTTP handler implementations for the public API:
// beatmap/beatmapset metadata lookup, archive download, a human-readable
// status line, and a WebSocket download surface mirroring /d/{id}.
//
// Handlers are transport-thin: they parse path/query parameters, delegate to
// the download pipeline or metadata fetcher, and translate pipeline sentinel
// errors into HTTP results via pipelineStatus (errors.go).
package handlers

import (
	"context"
	"time"

	"github.com/hanaru-mirror/beatmapd/internal/domain"
	"github.com/hanaru-mirror/beatmapd/internal/pipeline"
)

// Downloader is the subset of *pipeline.Pipeline the HTTP layer depends on.
type Downloader interface {
	Download(ctx context.Context, id domain.Identifier) (pipeline.Result, error)
}

// MetadataFetcher is the subset of *pipeline.MetadataFetcher the HTTP layer
// depends on.
type MetadataFetcher interface {
	FetchBeatmap(ctx context.Context, id domain.Identifier) (*domain.Beatmap, error)
	FetchBeatmapset(ctx context.Context, id domain.Identifier) ([]domain.Beatmap, error)
}

// CacheStats is the subset of *cachestore.Store the status line reports on.
type CacheStats interface {
	Len() int
}

// Handlers bundles the application services consumed by the route handlers
// in this package.
type Handlers struct {
	downloads Downloader
	metadata  MetadataFetcher
	cache     CacheStats
	cacheCap  int
	startedAt time.Time
}

// New builds a Handlers bundle. cache and cacheCap feed the GET / status
// line; startedAt is the time the process came up, for the reported uptime.
func New(downloads Downloader, metadata MetadataFetcher, cache CacheStats, cacheCap int, startedAt time.Time) *Handlers {
	return &Handlers{
		downloads: downloads,
		metadata:  metadata,
		cache:     cache,
		cacheCap:  cacheCap,
		startedAt: startedAt,
	}
}
