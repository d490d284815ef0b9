package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/hanaru-mirror/beatmapd/internal/cachestore"
	"github.com/hanaru-mirror/beatmapd/internal/config"
	"github.com/hanaru-mirror/beatmapd/internal/diskstore"
	"github.com/hanaru-mirror/beatmapd/internal/domain"
	"github.com/hanaru-mirror/beatmapd/internal/ratelimit"
	"github.com/hanaru-mirror/beatmapd/internal/repo"
	"github.com/hanaru-mirror/beatmapd/internal/singleflight"
	"github.com/hanaru-mirror/beatmapd/internal/upstream"
)

// archiveMagic is the ZIP local-file-header prefix every valid beatmapset
// archive must begin with.
var archiveMagic = [4]byte{0x50, 0x4B, 0x03, 0x04}

// Result is a successfully resolved beatmapset archive.
type Result struct {
	Filename string
	Payload  []byte
}

// Pipeline orchestrates a single download(id) request across the rate
// limiter, LRU store, disk store, name registry, upstream session, and
// single-flight coordinator. One Pipeline instance is constructed at
// startup and shared by every request — it holds no per-request state.
type Pipeline struct {
	limiter *ratelimit.Bucket
	cache   *cachestore.Store
	disk    *diskstore.Store
	db      *gorm.DB
	session *upstream.Session // nil when upstream credentials are not configured
	flight  *singleflight.Registry
	costs   config.RateLimitConfig
	log     zerolog.Logger
}

// New builds a Pipeline. session may be nil, in which case the pipeline
// returns ErrLocked once it would otherwise dispatch to upstream.
func New(
	limiter *ratelimit.Bucket,
	cache *cachestore.Store,
	disk *diskstore.Store,
	db *gorm.DB,
	session *upstream.Session,
	flight *singleflight.Registry,
	costs config.RateLimitConfig,
	log zerolog.Logger,
) *Pipeline {
	return &Pipeline{
		limiter: limiter,
		cache:   cache,
		disk:    disk,
		db:      db,
		session: session,
		flight:  flight,
		costs:   costs,
		log:     log.With().Str("component", "pipeline.download").Logger(),
	}
}

// Download resolves a single identifier through the cache/disk/upstream
// ladder described by the component design. It returns one of the sentinel
// errors in errors.go on any non-success outcome.
func (p *Pipeline) Download(ctx context.Context, id domain.Identifier) (Result, error) {
	// 1. Admission.
	if !p.limiter.Consume(p.costs.AdmitCost) {
		return Result{}, ErrRateLimited
	}

	// 2. Memory cache probe.
	if cached, ok := p.cache.Find(id); ok {
		if cached.IsTombstone() {
			return Result{}, ErrNotFound
		}
		return Result{Filename: cached.Filename, Payload: cached.Payload}, nil
	}

	// 3. Charge before disk probe.
	if !p.limiter.Consume(p.costs.DiskCost) {
		return Result{}, ErrRateLimited
	}

	// 4. Disk probe.
	diskBytes, present, err := p.disk.Read(id)
	if err != nil {
		// Disk-read errors are treated as a cache miss and fall through to
		// upstream; logged, not surfaced.
		p.log.Warn().Err(err).Int64("id", int64(id)).Msg("disk read failed, falling through to upstream")
		present = false
	}
	if present {
		if len(diskBytes) == 0 {
			p.cache.InsertTombstone(id, false)
			return Result{}, ErrNotFound
		}
		name, found, err := repo.LookupName(ctx, p.db, id)
		if err != nil || !found {
			name = fmt.Sprintf("%d.osz", int64(id))
		}
		p.cache.Insert(id, domain.NewArchive(name, diskBytes, nowUTC()))
		return Result{Filename: name, Payload: diskBytes}, nil
	}

	// 5. Upstream disabled.
	if p.session == nil {
		return Result{}, ErrLocked
	}

	// 6. Charge before upstream fetch.
	if !p.limiter.Consume(p.costs.UpstreamCost) {
		return Result{}, ErrRateLimited
	}

	// 7. Single-flight join + 8. upstream fetch/dispatch. The winner runs
	// fetchAndDispatch; followers receive the identical published Outcome
	// (golang.org/x/sync/singleflight.Group.Do guarantees every caller in
	// the same flight observes the same (value, error) pair), which is
	// equivalent to re-checking the LRU entry the winner just inserted.
	outcome := p.flight.Do(id, func() (*domain.CachedArchive, error) {
		return p.fetchAndDispatch(ctx, id)
	})
	if outcome.Err != nil {
		return Result{}, outcome.Err
	}
	return Result{Filename: outcome.Archive.Filename, Payload: outcome.Archive.Payload}, nil
}

// fetchAndDispatch performs the actual upstream HTTP call and interprets
// its status code per the component design's dispatch table. On success it
// returns the populated archive and a nil error; on every failure it returns
// the tombstone it inserted into the LRU together with the sentinel error.
func (p *Pipeline) fetchAndDispatch(ctx context.Context, id domain.Identifier) (*domain.CachedArchive, error) {
	res, err := p.session.Fetch(ctx, int64(id))
	if err != nil {
		tomb := domain.NewTombstone(true, nowUTC())
		p.cache.Insert(id, tomb)
		return tomb, ErrUnavailable
	}

	switch res.StatusCode {
	case 200:
		if !hasArchiveMagic(res.Body) {
			tomb := domain.NewTombstone(true, nowUTC())
			p.cache.Insert(id, tomb)
			return tomb, ErrUnprocessable
		}

		name := parseFilenameFromLocation(res.Location)
		if name == "" {
			name = fmt.Sprintf("%d.osz", int64(id))
		}
		archive := domain.NewArchive(name, res.Body, nowUTC())
		p.cache.Insert(id, archive)

		if p.disk.CanWrite() {
			if err := p.disk.Write(id, res.Body); err != nil {
				p.log.Warn().Err(err).Int64("id", int64(id)).Msg("disk write failed, serving from memory only")
			} else if err := repo.RememberName(ctx, p.db, id, name); err != nil {
				p.log.Warn().Err(err).Int64("id", int64(id)).Msg("failed to persist beatmapset name")
			}
		}
		return archive, nil

	case 401, 403:
		tomb := domain.NewTombstone(true, nowUTC())
		p.cache.Insert(id, tomb)
		go p.session.ReauthorizeBestEffort(context.Background())
		return tomb, ErrUnauthorized

	case 404:
		if err := p.disk.Write(id, nil); err != nil {
			p.log.Warn().Err(err).Int64("id", int64(id)).Msg("failed to write disk tombstone")
		}
		tomb := domain.NewTombstone(false, nowUTC())
		p.cache.Insert(id, tomb)
		return tomb, ErrNotFound

	case 429:
		tomb := domain.NewTombstone(true, nowUTC())
		p.cache.Insert(id, tomb)
		return tomb, ErrRateLimited

	default:
		tomb := domain.NewTombstone(true, nowUTC())
		p.cache.Insert(id, tomb)
		return tomb, ErrUnavailable
	}
}

func hasArchiveMagic(b []byte) bool {
	if len(b) < 4 {
		return false
	}
	return b[0] == archiveMagic[0] && b[1] == archiveMagic[1] && b[2] == archiveMagic[2] && b[3] == archiveMagic[3]
}

// parseFilenameFromLocation extracts the `fs=…%20<name>.osz` fragment from an
// upstream redirect Location header and URL-decodes it. Falls back to ""
// (caller substitutes "<id>.osz") on any parse failure.
var locationFilenamePattern = regexp.MustCompile(`fs=[^&]*?%20([^&]+\.osz)`)

func parseFilenameFromLocation(location string) string {
	if location == "" {
		return ""
	}
	m := locationFilenamePattern.FindStringSubmatch(location)
	if len(m) != 2 {
		return ""
	}
	decoded, err := url.QueryUnescape(m[1])
	if err != nil {
		return ""
	}
	return decoded
}

func nowUTC() time.Time { return time.Now().UTC() }
