// Package upstream implements the authenticated HTTP session against the
// external archive service: login/logout lifecycle, best-effort reauth on
// 401/403, and the beatmapset download call the pipeline drives through the
// single-flight coordinator.
package upstream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"
)

const (
	csrfCookieName    = "XSRF-TOKEN"
	sessionCookieName = "osu_session"
	csrfHeaderName    = "X-CSRF-Token"

	forgedUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"
)

// Session is an authenticated HTTP client bound to a fixed host. Session
// tokens (xsrf_token, session_token) and the valid flag are process-global,
// owned by one Session instance constructed at startup and shared by every
// download request.
type Session struct {
	baseURL  string
	username string
	password string

	jar    *cookiejar.Jar
	client *http.Client

	valid    atomic.Bool
	reauthMu sync.Mutex // best-effort trylock: contenders skip, never wait
	log      zerolog.Logger
}

// Config carries the knobs Session needs beyond the HTTP transport itself.
type Config struct {
	BaseURL        string
	Username       string
	Password       string
	RequestTimeout time.Duration
}

// New builds a Session. The returned session starts Unauthenticated; call
// Authorize to seed tokens before the first Fetch.
func New(cfg Config, log zerolog.Logger) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("upstream: create cookie jar: %w", err)
	}

	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil // zerolog carries our own structured logging
	retryClient.RetryMax = 3
	retryClient.HTTPClient.Timeout = cfg.RequestTimeout
	retryClient.HTTPClient.Jar = jar
	// Only retry on transient transport-level failures; 401/403 are handled
	// by our own reauth state machine, not the retry policy.
	retryClient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if err == nil {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	return &Session{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		jar:      jar,
		client:   retryClient.StandardClient(),
		log:      log.With().Str("component", "upstream.session").Logger(),
	}, nil
}

// Valid reports whether the session currently believes it holds usable
// tokens. Reads race with in-progress reauth by design: a caller that
// observes a token about to be rotated simply retries its request.
func (s *Session) Valid() bool {
	return s.valid.Load()
}

// Authorize seeds an XSRF cookie, then logs in with the configured
// credentials. On any non-success it leaves the session Unauthenticated.
func (s *Session) Authorize(ctx context.Context) error {
	homeURL := s.baseURL + "/home"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, homeURL, nil)
	if err != nil {
		return err
	}
	s.decorate(req)
	resp, err := s.client.Do(req)
	if err != nil {
		s.valid.Store(false)
		return fmt.Errorf("upstream: seed xsrf: %w", err)
	}
	resp.Body.Close()

	token := s.cookieValue(csrfCookieName)
	form := url.Values{
		"_token":   {token},
		"username": {s.username},
		"password": {s.password},
	}
	sessionURL := s.baseURL + "/session"
	req, err = http.NewRequestWithContext(ctx, http.MethodPost, sessionURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.decorate(req)

	resp, err = s.client.Do(req)
	if err != nil {
		s.valid.Store(false)
		return fmt.Errorf("upstream: login: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.valid.Store(false)
		return fmt.Errorf("upstream: login rejected with status %d", resp.StatusCode)
	}

	if s.cookieValue(csrfCookieName) == "" || s.cookieValue(sessionCookieName) == "" {
		s.valid.Store(false)
		return fmt.Errorf("upstream: login succeeded but session cookies were not set")
	}

	s.valid.Store(true)
	s.log.Info().Msg("session authorized")
	return nil
}

// Deauthorize deletes the session on the upstream side using the current
// tokens, then clears local state regardless of outcome.
func (s *Session) Deauthorize(ctx context.Context) error {
	defer s.valid.Store(false)

	sessionURL := s.baseURL + "/session"
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, sessionURL, nil)
	if err != nil {
		return err
	}
	s.decorate(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("upstream: deauthorize: %w", err)
	}
	resp.Body.Close()
	return nil
}

// ReauthorizeBestEffort attempts a deauth+auth cycle under a try-lock:
// contending goroutines skip immediately rather than waiting, per the
// intentional thundering-herd protection this session requires. It returns
// true iff this call performed the reauth (win or lose); false means
// another goroutine already holds the lock.
func (s *Session) ReauthorizeBestEffort(ctx context.Context) bool {
	if !s.reauthMu.TryLock() {
		return false
	}
	defer s.reauthMu.Unlock()

	_ = s.Deauthorize(ctx)
	if err := s.Authorize(ctx); err != nil {
		s.log.Warn().Err(err).Msg("reauth failed")
	}
	return true
}

func (s *Session) decorate(req *http.Request) {
	req.Header.Set("User-Agent", forgedUserAgent)
	req.Header.Set("Referer", s.baseURL+"/")
	if token := s.cookieValue(csrfCookieName); token != "" {
		req.Header.Set(csrfHeaderName, token)
	}
}

func (s *Session) cookieValue(name string) string {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return ""
	}
	for _, c := range s.jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}
