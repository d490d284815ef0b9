// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package). These codes provide clients with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., unprocessable_archive, upstream_locked) are
//     reserved for pipeline outcomes that cannot be conveyed by status alone.
//   - All error responses must include both an HTTP status and one of these codes.
//
// Usage:
//   - Handlers select the most specific matching code and pass it to `fail()` along
//     with the corresponding HTTP status and message.
//   - Clients are expected to branch on these codes for programmatic error handling.
//
// Example response:
//   {
//     "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//     "code": "not_found",
//     "message": "beatmapset not found"
//   }

package handlers

import "github.com/hanaru-mirror/beatmapd/internal/pipeline"

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeUnprocessable    = "unprocessable_archive"
	ErrCodeUpstreamLocked   = "upstream_locked"
	ErrCodeUnavailable      = "service_unavailable"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// pipelineStatus maps one of the sentinel errors in internal/pipeline/errors.go
// to the (HTTP status, error code, message) triple the HTTP layer responds
// with. Every route that calls into the download pipeline or the metadata
// fetcher funnels its error through this single table so /b, /s, /d, and the
// WebSocket endpoint stay consistent.
func pipelineStatus(err error) (status int, code string, msg string) {
	switch err {
	case pipeline.ErrRateLimited:
		return 429, ErrCodeRateLimited, "rate limit exceeded"
	case pipeline.ErrNotFound:
		return 404, ErrCodeNotFound, "not found"
	case pipeline.ErrUnauthorized:
		return 401, ErrCodeUnauthorized, "upstream session unauthorized"
	case pipeline.ErrUnprocessable:
		return 422, ErrCodeUnprocessable, "upstream returned an unreadable archive"
	case pipeline.ErrLocked:
		return 423, ErrCodeUpstreamLocked, "upstream session not configured"
	case pipeline.ErrUnavailable:
		return 503, ErrCodeUnavailable, "upstream service unavailable"
	default:
		return 500, ErrCodeInternal, "internal error"
	}
}

// metadataStatus is pipelineStatus restricted to the failure codes documented
// for /b and /s (404, 429, 500): the metadata fetcher can also report
// ErrLocked when OSU_API_KEY is unconfigured, but that outcome has no
// metadata-route status of its own, so it's folded into 500 rather than
// leaking the download-route's 423.
func metadataStatus(err error) (status int, code string, msg string) {
	if err == pipeline.ErrLocked {
		return 500, ErrCodeInternal, "metadata lookups are not configured"
	}
	return pipelineStatus(err)
}
