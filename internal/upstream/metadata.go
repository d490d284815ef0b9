package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// NewHTTPClient builds a plain retrying HTTP client for endpoints that need
// neither cookies nor the reauth state machine (the metadata API is gated
// purely by an API key in the query string).
func NewHTTPClient(timeout time.Duration) *http.Client {
	c := retryablehttp.NewClient()
	c.Logger = nil
	c.RetryMax = 3
	c.HTTPClient.Timeout = timeout
	return c.StandardClient()
}

// RawBeatmap is the upstream JSON shape for a single get_beatmaps row.
// Field names mirror the upstream API's own snake_case keys; internal/
// pipeline normalizes these into domain.Beatmap.
type RawBeatmap struct {
	BeatmapID        string `json:"beatmap_id"`
	BeatmapsetID     string `json:"beatmapset_id"`
	FileMD5          string `json:"file_md5"`
	Mode             string `json:"mode"`
	Artist           string `json:"artist"`
	Title            string `json:"title"`
	Version          string `json:"version"`
	Creator          string `json:"creator"`
	CountNormal      string `json:"count_normal"`
	CountSlider      string `json:"count_slider"`
	CountSpinner     string `json:"count_spinner"`
	MaxCombo         string `json:"max_combo"`
	Approved         string `json:"approved"`
	ApprovedDate     string `json:"approved_date"`
	BPM              string `json:"bpm"`
	HitLength        string `json:"hit_length"`
	DiffSize         string `json:"diff_size"`
	DiffApproach     string `json:"diff_approach"`
	DiffOverall      string `json:"diff_overall"`
	DiffDrain        string `json:"diff_drain"`
	DifficultyRating string `json:"difficultyrating"`
}

// FetchMetadata calls the upstream JSON API. kind is "b" (single beatmap)
// or "s" (beatmapset, returns all difficulties). It does not use the
// authenticated Session's cookies — the metadata endpoint is gated purely
// by apiKey.
func FetchMetadata(ctx context.Context, client *http.Client, baseURL, apiKey, kind string, id int64) ([]RawBeatmap, error) {
	url := fmt.Sprintf("%s/api/get_beatmaps?k=%s&%s=%d", baseURL, apiKey, kind, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: fetch metadata for %d: %w", id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upstream: metadata request returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("upstream: read metadata body for %d: %w", id, err)
	}

	var rows []RawBeatmap
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("upstream: decode metadata for %d: %w", id, err)
	}
	return rows, nil
}
