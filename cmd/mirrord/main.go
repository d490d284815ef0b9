// Command mirrord runs the beatmapset mirror/proxy HTTP service: it serves
// cached and disk-backed archive downloads, proxies cache misses through an
// authenticated upstream session, and exposes beatmap/beatmapset metadata
// backed by a local SQLite store.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/hanaru-mirror/beatmapd/internal/cachestore"
	"github.com/hanaru-mirror/beatmapd/internal/config"
	"github.com/hanaru-mirror/beatmapd/internal/diskstore"
	httpapi "github.com/hanaru-mirror/beatmapd/internal/http"
	"github.com/hanaru-mirror/beatmapd/internal/observability"
	"github.com/hanaru-mirror/beatmapd/internal/pipeline"
	"github.com/hanaru-mirror/beatmapd/internal/ratelimit"
	"github.com/hanaru-mirror/beatmapd/internal/repo"
	"github.com/hanaru-mirror/beatmapd/internal/singleflight"
	"github.com/hanaru-mirror/beatmapd/internal/sysutil"
	"github.com/hanaru-mirror/beatmapd/internal/upstream"
)

// heartbeatPingID is an arbitrary, long-lived beatmapset id used solely to
// keep the upstream session's tokens from expiring between real requests.
const heartbeatPingID = 1

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	// Best-effort: a missing .env is normal in containerized deployments
	// where configuration arrives purely via the environment.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	logger := log.With().Str("service", cfg.OTEL.ServiceName).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to set up tracing")
	}
	defer func() {
		if err := shutdownOTel(context.Background()); err != nil {
			logger.Error().Err(err).Msg("otel shutdown")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open sqlite")
	}
	if err := repo.AutoMigrate(db); err != nil {
		logger.Fatal().Err(err).Msg("automigrate")
	}

	disk, degraded, err := diskstore.Open(cfg.Disk.Directory, cfg.Disk.RequiredFreeSpace)
	if err != nil {
		logger.Fatal().Err(err).Msg("open disk store")
	}
	if degraded {
		logger.Warn().Msg("disk store starting in degraded mode: free-space check unavailable, treating disk as always writable")
	}

	cache, err := cachestore.New(cfg.Cache.Capacity, cfg.Cache.RetryCooldown)
	if err != nil {
		logger.Fatal().Err(err).Msg("create cache store")
	}

	var session *upstream.Session
	if cfg.Upstream.SessionEnabled() {
		session, err = upstream.New(upstream.Config{
			BaseURL:        cfg.Upstream.BaseURL,
			Username:       cfg.Upstream.Username,
			Password:       cfg.Upstream.Password,
			RequestTimeout: cfg.Upstream.RequestTimeout,
		}, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("construct upstream session")
		}
		if err := session.Authorize(ctx); err != nil {
			logger.Error().Err(err).Msg("initial upstream authorization failed; will retry on first request")
		}

		hb := upstream.NewHeartbeat(session, cfg.Upstream.HeartbeatInterval, heartbeatPingID)
		go hb.Run(ctx)
	} else {
		logger.Warn().Msg("upstream session disabled: OSU_USERNAME/OSU_PASSWORD not set, downloads will return 423")
	}

	flight := singleflight.New(cfg.Cache.SingleFlightTTL)
	limiter := ratelimit.New(cfg.RateLimit.BucketSize, cfg.RateLimit.RefillPerSec)

	downloads := pipeline.New(limiter, cache, disk, db, session, flight, cfg.RateLimit, logger)

	metadataClient := upstream.NewHTTPClient(cfg.Upstream.RequestTimeout)
	metadata := pipeline.NewMetadataFetcher(limiter, metadataClient, db, cfg.Upstream.BaseURL, cfg.Upstream.APIKey, cfg.RateLimit.MetadataCost, logger)
	if !cfg.Upstream.MetadataEnabled() {
		logger.Warn().Msg("metadata fetcher disabled: OSU_API_KEY not set, /b and /s will return 500")
	}

	go runTombstoneReaper(ctx, cache, logger)

	gin.SetMode(cfg.GinMode)
	router := gin.New()
	httpapi.RegisterRoutes(router, downloads, metadata, cache, cfg.Cache.Capacity, time.Now(), cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("listen and serve")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if session != nil {
		if err := session.Deauthorize(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("deauthorize on shutdown")
		}
	}
}

// runTombstoneReaper periodically purges expired retry-tombstones from the
// LRU so a cooled-down negative cache entry doesn't block a legitimate
// re-fetch attempt until it happens to be evicted by capacity pressure.
func runTombstoneReaper(ctx context.Context, cache *cachestore.Store, logger zerolog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := cache.PurgeExpiredRetryTombstones(); n > 0 {
				logger.Debug().Int("count", n).Msg("purged expired retry tombstones")
			}
		}
	}
}
