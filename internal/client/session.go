package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"printerbot/internal/logger"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

const (
	authTimeout = 10 * time.Second
	// refreshGrace refreshes an access token this long before its exp claim.
	refreshGrace = 30 * time.Second

	headerAPIKey = "X-Api-Key"
	loginSource  = "moonraker"
)

var (
	// ErrLoginRejected is returned when the controller refuses the credentials.
	ErrLoginRejected = errors.New("login rejected")
	// ErrRefreshRejected is returned when the refresh token is refused.
	ErrRefreshRejected = errors.New("token refresh rejected")
)

// Recorder receives request and authentication outcomes.
type Recorder interface {
	RequestDone(path string, status int, elapsed time.Duration)
	AuthAttempt(kind string, ok bool)
}

type nopRecorder struct{}

func (nopRecorder) RequestDone(string, int, time.Duration) {}
func (nopRecorder) AuthAttempt(string, bool)               {}

// SessionOptions configures NewSession.
type SessionOptions struct {
	User     string
	Password string
	APIKey   string
	Log      *logger.Logger
	Recorder Recorder
}

// Session owns authentication state for one controller and applies the
// refresh-and-retry-once policy to every request.
type Session struct {
	transport *Transport
	user      string
	password  string
	apiKey    string
	log       *logger.Logger
	rec       Recorder

	mu           sync.RWMutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time

	// authMu serializes login and refresh; flight collapses concurrent
	// callers of the same operation into one controller call.
	authMu sync.Mutex
	flight singleflight.Group

	probeAttempts int
	probeDelay    time.Duration
	probeTimeout  time.Duration
	now           func() time.Time
}

// NewSession wraps t with authentication. Login is not attempted here; call
// Login during startup.
func NewSession(t *Transport, opts SessionOptions) *Session {
	log := opts.Log
	if log == nil {
		log = logger.Nop()
	}
	rec := opts.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Session{
		transport:     t,
		user:          opts.User,
		password:      opts.Password,
		apiKey:        opts.APIKey,
		log:           log.Named("session"),
		rec:           rec,
		probeAttempts: defaultProbeAttempts,
		probeDelay:    defaultProbeDelay,
		probeTimeout:  defaultProbeTimeout,
		now:           time.Now,
	}
}

// Transport returns the underlying executor.
func (s *Session) Transport() *Transport { return s.transport }

func (s *Session) hasCredentials() bool {
	return s.user != "" && s.password != ""
}

// Authenticated reports whether an access token is held.
func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken != ""
}

// AuthHeaders returns the bearer header when a token is held, otherwise the
// API key header when configured, otherwise nothing.
func (s *Session) AuthHeaders() http.Header {
	h := http.Header{}
	s.mu.RLock()
	token := s.accessToken
	s.mu.RUnlock()

	switch {
	case token != "":
		h.Set("Authorization", "Bearer "+token)
	case s.apiKey != "":
		h.Set(headerAPIKey, s.apiKey)
	}
	return h
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Source   string `json:"source"`
}

type tokenResult struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// Login authenticates with the configured credentials. Without credentials it
// is a no-op. A failure leaves the session unauthenticated; requests then fall
// back to the API key or go out anonymously.
func (s *Session) Login(ctx context.Context) error {
	if !s.hasCredentials() {
		return nil
	}
	_, err, _ := s.flight.Do("login", func() (any, error) {
		s.authMu.Lock()
		defer s.authMu.Unlock()
		return nil, s.login(ctx)
	})
	return err
}

func (s *Session) login(ctx context.Context) error {
	body, err := json.Marshal(loginRequest{Username: s.user, Password: s.password, Source: loginSource})
	if err != nil {
		return fmt.Errorf("encode login: %w", err)
	}
	resp, err := s.transport.Do(ctx, Call{
		Method:  http.MethodPost,
		Path:    "/access/login",
		Body:    bodyReader(body),
		Headers: jsonHeaders(),
		Timeout: authTimeout,
	})
	if err != nil {
		s.rec.AuthAttempt("login", false)
		s.log.Errorw("session_login_failed", "err", err)
		return err
	}
	if !resp.OK() {
		s.rec.AuthAttempt("login", false)
		s.log.Errorw("session_login_failed", "status", resp.Status, "body", snippet(resp.Body))
		return fmt.Errorf("%w: status %d", ErrLoginRejected, resp.Status)
	}

	var res tokenResult
	if err := decodeResult(resp.Body, &res); err != nil || res.Token == "" {
		s.rec.AuthAttempt("login", false)
		s.log.Errorw("session_login_malformed", "err", err, "body", snippet(resp.Body))
		return fmt.Errorf("%w: malformed login response", ErrLoginRejected)
	}

	s.setTokens(res.Token, res.RefreshToken)
	s.rec.AuthAttempt("login", true)
	s.log.Infow("session_login_ok", "user", s.user)
	return nil
}

// Refresh exchanges the refresh token for a new access token. It is a no-op
// without a refresh token. On failure the old token stays in place.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.RLock()
	hasRefresh := s.refreshToken != ""
	s.mu.RUnlock()
	if !hasRefresh {
		return nil
	}
	_, err, _ := s.flight.Do("refresh", func() (any, error) {
		s.authMu.Lock()
		defer s.authMu.Unlock()
		return nil, s.refresh(ctx)
	})
	return err
}

func (s *Session) refresh(ctx context.Context) error {
	s.mu.RLock()
	refreshToken := s.refreshToken
	s.mu.RUnlock()

	body, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return fmt.Errorf("encode refresh: %w", err)
	}
	resp, err := s.transport.Do(ctx, Call{
		Method:  http.MethodPost,
		Path:    "/access/refresh_jwt",
		Body:    bodyReader(body),
		Headers: jsonHeaders(),
		Timeout: authTimeout,
	})
	if err != nil {
		s.rec.AuthAttempt("refresh", false)
		s.log.Errorw("session_refresh_failed", "err", err)
		return err
	}
	if !resp.OK() {
		s.rec.AuthAttempt("refresh", false)
		s.log.Errorw("session_refresh_failed", "status", resp.Status, "body", snippet(resp.Body))
		return fmt.Errorf("%w: status %d", ErrRefreshRejected, resp.Status)
	}

	var res tokenResult
	if err := decodeResult(resp.Body, &res); err != nil || res.Token == "" {
		s.rec.AuthAttempt("refresh", false)
		s.log.Errorw("session_refresh_malformed", "err", err, "body", snippet(resp.Body))
		return fmt.Errorf("%w: malformed refresh response", ErrRefreshRejected)
	}

	s.setTokens(res.Token, "")
	s.rec.AuthAttempt("refresh", true)
	s.log.Debugw("session_refresh_ok")
	return nil
}

// setTokens replaces the access token, and the refresh token when non-empty.
func (s *Session) setTokens(access, refresh string) {
	exp, _ := tokenExpiry(access)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = access
	if refresh != "" {
		s.refreshToken = refresh
	}
	s.expiresAt = exp
}

// tokenExpiry reads the exp claim without verifying the signature; the
// controller is the verifier, the client only schedules refreshes.
func tokenExpiry(token string) (time.Time, bool) {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (s *Session) expiringSoon() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.accessToken == "" || s.refreshToken == "" || s.expiresAt.IsZero() {
		return false
	}
	return s.now().Add(refreshGrace).After(s.expiresAt)
}

// Request is one logical controller call. Body is buffered so the call can
// be replayed after a token refresh.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Body    []byte
	Headers http.Header
	Timeout time.Duration
}

// Do executes req with authentication. A call makes at most one Refresh: an
// access token about to expire is refreshed before sending, otherwise a 401
// triggers the refresh. A 401 is retried exactly once either way. Any other
// status, including a second 401, is returned unchanged; non-2xx responses
// are logged but are not errors.
func (s *Session) Do(ctx context.Context, req Request) (*Response, error) {
	refreshed := false
	if s.expiringSoon() {
		_ = s.Refresh(ctx)
		refreshed = true
	}

	resp, err := s.send(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.Status == http.StatusUnauthorized {
		s.log.Infow("session_unauthorized_retry", "path", req.Path, "refreshed", refreshed)
		if !refreshed {
			_ = s.Refresh(ctx)
		}
		resp, err = s.send(ctx, req)
		if err != nil {
			return nil, err
		}
	}
	if !resp.OK() {
		s.log.Warnw("controller_request_failed",
			"method", req.Method, "path", req.Path, "status", resp.Status, "body", snippet(resp.Body))
	}
	return resp, nil
}

func (s *Session) send(ctx context.Context, req Request) (*Response, error) {
	headers := s.AuthHeaders()
	for k, vs := range req.Headers {
		headers[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}

	start := s.now()
	resp, err := s.transport.Do(ctx, Call{
		Method:  req.Method,
		Path:    req.Path,
		Query:   req.Query,
		Body:    bodyReader(req.Body),
		Headers: headers,
		Timeout: req.Timeout,
	})
	if err != nil {
		s.rec.RequestDone(req.Path, 0, s.now().Sub(start))
		s.log.Errorw("controller_request_error", "method", req.Method, "path", req.Path, "err", err)
		return nil, err
	}
	s.rec.RequestDone(req.Path, resp.Status, s.now().Sub(start))
	return resp, nil
}

func jsonHeaders() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return h
}

// snippet trims a response body for log output.
func snippet(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
