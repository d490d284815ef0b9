package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/hanaru-mirror/beatmapd/internal/ratelimit"
	"github.com/hanaru-mirror/beatmapd/internal/repo"
	"github.com/hanaru-mirror/beatmapd/internal/upstream"
)

func rawRow(beatmapID, beatmapsetID int64, mode int, difficulty string) map[string]string {
	return map[string]string{
		"beatmap_id":       strconv.FormatInt(beatmapID, 10),
		"beatmapset_id":    strconv.FormatInt(beatmapsetID, 10),
		"file_md5":         "abc123",
		"mode":             strconv.Itoa(mode),
		"artist":           "Artist",
		"title":            "Title",
		"version":          "Insane",
		"creator":          "Mapper",
		"count_normal":     "10",
		"count_slider":     "5",
		"count_spinner":    "1",
		"max_combo":        "321",
		"approved":         "1",
		"approved_date":    "2024-03-01 12:30:00",
		"bpm":              "180",
		"hit_length":       "120",
		"diff_size":        "4",
		"diff_approach":    "9",
		"diff_overall":     "8",
		"diff_drain":       "5",
		"difficultyrating": difficulty,
	}
}

func newMetadataFetcher(t *testing.T, handler http.HandlerFunc, apiKey string) *MetadataFetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	db, err := repo.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	client := upstream.NewHTTPClient(5 * time.Second)
	limiter := ratelimit.New(1000, 1000)
	return NewMetadataFetcher(limiter, client, db, srv.URL, apiKey, 10, zerolog.Nop())
}

func TestFetchBeatmap_NormalizesAndUpserts(t *testing.T) {
	var gotQuery string
	f := newMetadataFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode([]map[string]string{rawRow(1001, 42, 0, "5.43")})
	}, "testkey")

	b, err := f.FetchBeatmap(context.Background(), 1001)
	if err != nil {
		t.Fatalf("FetchBeatmap: %v", err)
	}
	if b.BeatmapID != 1001 || b.BeatmapsetID != 42 {
		t.Fatalf("unexpected ids: %+v", b)
	}
	if b.DifficultyStd != 5.43 {
		t.Fatalf("expected mode 0 difficulty routed to DifficultyStd, got %+v", b)
	}
	if b.DifficultyTaiko != 0 || b.DifficultyCTB != 0 || b.DifficultyMania != 0 {
		t.Fatalf("expected only DifficultyStd populated, got %+v", b)
	}
	if !b.CreatingDate.Equal(time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected creating_date: %v", b.CreatingDate)
	}
	if gotQuery == "" {
		t.Fatalf("expected upstream request to carry a query string")
	}

	persisted, found, err := repo.GetBeatmap(context.Background(), f.db, 1001)
	if err != nil || !found {
		t.Fatalf("expected row persisted: found=%v err=%v", found, err)
	}
	if persisted.Artist != "Artist" {
		t.Fatalf("unexpected persisted row: %+v", persisted)
	}
}

func TestFetchBeatmapset_ReturnsAllDifficulties(t *testing.T) {
	f := newMetadataFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{
			rawRow(1001, 42, 0, "5.43"),
			rawRow(1002, 42, 1, "4.20"),
			rawRow(1003, 42, 3, "6.10"),
		})
	}, "testkey")

	rows, err := f.FetchBeatmapset(context.Background(), 42)
	if err != nil {
		t.Fatalf("FetchBeatmapset: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 difficulties, got %d", len(rows))
	}

	persisted, err := repo.ListBeatmapset(context.Background(), f.db, 42)
	if err != nil {
		t.Fatalf("ListBeatmapset: %v", err)
	}
	if len(persisted) != 3 {
		t.Fatalf("expected 3 persisted rows, got %d", len(persisted))
	}
}

func TestFetchBeatmap_EmptyUpstreamResult_IsNotFound(t *testing.T) {
	f := newMetadataFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]string{})
	}, "testkey")

	_, err := f.FetchBeatmap(context.Background(), 9999)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFetchBeatmap_NoAPIKeyConfigured_ReturnsLocked(t *testing.T) {
	f := newMetadataFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("upstream should not be contacted without an API key")
	}, "")

	_, err := f.FetchBeatmap(context.Background(), 1)
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestFetchBeatmap_UpstreamError_ReturnsUnavailable(t *testing.T) {
	f := newMetadataFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, "testkey")

	_, err := f.FetchBeatmap(context.Background(), 1)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestFetchBeatmap_RateLimited(t *testing.T) {
	f := newMetadataFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("upstream should not be contacted once the bucket is exhausted")
	}, "testkey")
	f.limiter = ratelimit.New(1, 0.0001)
	f.cost = 2 // exceeds the bucket's entire capacity

	_, err := f.FetchBeatmap(context.Background(), 1)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}
