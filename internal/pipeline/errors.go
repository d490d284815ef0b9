// Package pipeline orchestrates a single download or metadata request
// across the rate limiter, LRU store, disk store, name registry, upstream
// session, and single-flight coordinator.
package pipeline

import "errors"

// Sentinel errors surfaced at the public HTTP boundary. Handlers map each
// to its HTTP status by direct comparison, so the pipeline returns these
// values unwrapped.
var (
	// ErrRateLimited means the request was rejected by the token bucket.
	// Always maps to 429; never cached.
	ErrRateLimited = errors.New("rate limited")

	// ErrNotFound means the identifier is treated as unavailable: an upstream
	// 404, a zero-byte tombstone file on disk, or any tombstone (permanent or
	// retry-hinted) found in the LRU store.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized means the upstream session rejected the request with
	// 401/403. Transient; a reauth attempt was scheduled.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnprocessable means the upstream response body failed archive
	// magic validation.
	ErrUnprocessable = errors.New("unprocessable")

	// ErrLocked means the upstream session is disabled because no
	// credentials are configured.
	ErrLocked = errors.New("locked")

	// ErrUnavailable is the catch-all for unclassified upstream failures
	// and recovered internal errors.
	ErrUnavailable = errors.New("service unavailable")
)
