package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/hanaru-mirror/beatmapd/internal/domain"
	"github.com/hanaru-mirror/beatmapd/internal/ratelimit"
	"github.com/hanaru-mirror/beatmapd/internal/repo"
	"github.com/hanaru-mirror/beatmapd/internal/upstream"
)

// upstreamTimeLayout is the "YYYY-MM-DD HH:MM:SS" UTC format the metadata
// API embeds creation timestamps in.
const upstreamTimeLayout = "2006-01-02 15:04:05"

// MetadataFetcher resolves beatmap/beatmapset descriptors from the upstream
// JSON API, normalizes them into domain.Beatmap rows, and upserts them into
// the relational store before returning the normalized rows to the caller.
// It shares the process-wide rate limiter with the download pipeline but
// talks to upstream over a plain API-key-gated client rather than the
// cookie-authenticated Session.
type MetadataFetcher struct {
	limiter *ratelimit.Bucket
	client  *http.Client
	db      *gorm.DB
	baseURL string
	apiKey  string
	cost    float64
	log     zerolog.Logger
}

// NewMetadataFetcher builds a MetadataFetcher. apiKey may be empty, in which
// case every call returns ErrLocked without making a request.
func NewMetadataFetcher(limiter *ratelimit.Bucket, client *http.Client, db *gorm.DB, baseURL, apiKey string, cost float64, log zerolog.Logger) *MetadataFetcher {
	return &MetadataFetcher{
		limiter: limiter,
		client:  client,
		db:      db,
		baseURL: baseURL,
		apiKey:  apiKey,
		cost:    cost,
		log:     log.With().Str("component", "pipeline.metadata").Logger(),
	}
}

// FetchBeatmap resolves a single difficulty by its beatmap id (GET
// .../api/get_beatmaps?k=...&b=<id>). Only the first row of the upstream
// response is used, matching download_beatmap's single-row contract.
func (f *MetadataFetcher) FetchBeatmap(ctx context.Context, id domain.Identifier) (*domain.Beatmap, error) {
	rows, err := f.fetch(ctx, "b", id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// FetchBeatmapset resolves every difficulty of a beatmapset by its
// beatmapset id (GET .../api/get_beatmaps?k=...&s=<id>).
func (f *MetadataFetcher) FetchBeatmapset(ctx context.Context, id domain.Identifier) ([]domain.Beatmap, error) {
	rows, err := f.fetch(ctx, "s", id)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return rows, nil
}

func (f *MetadataFetcher) fetch(ctx context.Context, kind string, id domain.Identifier) ([]domain.Beatmap, error) {
	if f.apiKey == "" {
		return nil, ErrLocked
	}
	if !f.limiter.Consume(f.cost) {
		return nil, ErrRateLimited
	}

	raw, err := upstream.FetchMetadata(ctx, f.client, f.baseURL, f.apiKey, kind, int64(id))
	if err != nil {
		f.log.Warn().Err(err).Str("kind", kind).Int64("id", int64(id)).Msg("metadata fetch failed")
		return nil, ErrUnavailable
	}

	rows := make([]domain.Beatmap, 0, len(raw))
	for _, r := range raw {
		b, err := normalizeBeatmap(r)
		if err != nil {
			f.log.Warn().Err(err).Int64("id", int64(id)).Msg("skipping malformed metadata row")
			continue
		}
		if err := repo.UpsertBeatmap(ctx, f.db, &b); err != nil {
			f.log.Warn().Err(err).Int64("beatmap_id", b.BeatmapID).Msg("failed to persist beatmap metadata")
		}
		rows = append(rows, b)
	}
	return rows, nil
}

// normalizeBeatmap converts one upstream JSON row (all-string fields) into a
// typed domain.Beatmap, selecting the difficulty-rating column by mode.
func normalizeBeatmap(r upstream.RawBeatmap) (domain.Beatmap, error) {
	beatmapID, err := strconv.ParseInt(r.BeatmapID, 10, 64)
	if err != nil {
		return domain.Beatmap{}, fmt.Errorf("parse beatmap_id %q: %w", r.BeatmapID, err)
	}
	beatmapsetID, _ := strconv.ParseInt(r.BeatmapsetID, 10, 64)
	mode, _ := strconv.Atoi(r.Mode)
	rankedStatus, _ := strconv.Atoi(r.Approved)
	countNormal, _ := strconv.Atoi(r.CountNormal)
	countSlider, _ := strconv.Atoi(r.CountSlider)
	countSpinner, _ := strconv.Atoi(r.CountSpinner)
	maxCombo, _ := strconv.Atoi(r.MaxCombo)
	hitLength, _ := strconv.Atoi(r.HitLength)
	bpm, _ := strconv.ParseFloat(r.BPM, 64)
	cs, _ := strconv.ParseFloat(r.DiffSize, 64)
	ar, _ := strconv.ParseFloat(r.DiffApproach, 64)
	od, _ := strconv.ParseFloat(r.DiffOverall, 64)
	hp, _ := strconv.ParseFloat(r.DiffDrain, 64)
	difficulty, _ := strconv.ParseFloat(r.DifficultyRating, 64)

	creatingDate, _ := time.Parse(upstreamTimeLayout, r.ApprovedDate)

	b := domain.Beatmap{
		BeatmapID:      beatmapID,
		BeatmapsetID:   beatmapsetID,
		BeatmapMD5:     r.FileMD5,
		Mode:           mode,
		Artist:         r.Artist,
		Title:          r.Title,
		DifficultyName: r.Version,
		Creator:        r.Creator,
		CountNormal:    countNormal,
		CountSlider:    countSlider,
		CountSpinner:   countSpinner,
		MaxCombo:       maxCombo,
		RankedStatus:   rankedStatus,
		CreatingDate:   creatingDate.UTC(),
		BPM:            bpm,
		HitLength:      hitLength,
		CS:             cs,
		AR:             ar,
		OD:             od,
		HP:             hp,
	}

	switch mode {
	case 0:
		b.DifficultyStd = difficulty
	case 1:
		b.DifficultyTaiko = difficulty
	case 2:
		b.DifficultyCTB = difficulty
	case 3:
		b.DifficultyMania = difficulty
	}

	return b, nil
}
