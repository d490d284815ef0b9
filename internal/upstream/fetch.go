package upstream

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// FetchResult carries everything the download pipeline needs to classify
// an upstream response without upstream having to know about pipeline
// states like tombstones or retry hints.
type FetchResult struct {
	StatusCode int
	Body       []byte
	Location   string // raw Location response header, if any
}

// Fetch issues the beatmapset download request for id. It does not
// interpret the status code — that dispatch lives in the download
// pipeline, which is the only component that knows what each status means
// in terms of cache/disk effects.
func (s *Session) Fetch(ctx context.Context, id int64) (FetchResult, error) {
	downloadURL := fmt.Sprintf("%s/beatmapsets/%d/download?noVideo=1", s.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, downloadURL, nil)
	if err != nil {
		return FetchResult{}, err
	}
	s.decorate(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return FetchResult{}, fmt.Errorf("upstream: fetch %d: %w", id, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FetchResult{}, fmt.Errorf("upstream: read fetch body for %d: %w", id, err)
	}

	// The cookie jar already captured any rotated XSRF-TOKEN/osu_session
	// cookies from the response via the underlying http.Client transport.

	return FetchResult{
		StatusCode: resp.StatusCode,
		Body:       body,
		Location:   resp.Header.Get("Location"),
	}, nil
}
