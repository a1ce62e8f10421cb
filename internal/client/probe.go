package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const (
	defaultProbeAttempts = 10
	defaultProbeDelay    = time.Second
	defaultProbeTimeout  = 3 * time.Second

	livenessPath = "/printer/info"
)

// ErrUnreachable wraps the last failure of CheckConnection.
var ErrUnreachable = errors.New("controller unreachable")

// CheckConnection is the blocking startup gate: up to ten short GETs to the
// liveness endpoint with a fixed one-second pause between them. It returns nil
// on the first 2xx response, otherwise an error describing the last failure.
// Each attempt goes through Do, so a 401 refreshes the token and retries once.
func (s *Session) CheckConnection(ctx context.Context) error {
	var last string
	for attempt := 1; attempt <= s.probeAttempts; attempt++ {
		resp, err := s.Do(ctx, Request{
			Method:  http.MethodGet,
			Path:    livenessPath,
			Timeout: s.probeTimeout,
		})
		switch {
		case err != nil:
			last = err.Error()
		case resp.OK():
			if attempt > 1 {
				s.log.Infow("controller_reachable", "attempts", attempt)
			}
			return nil
		default:
			last = fmt.Sprintf("status %d: %s", resp.Status, snippet(resp.Body))
		}
		s.log.Warnw("controller_probe_failed", "attempt", attempt, "reason", last)

		if attempt == s.probeAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrUnreachable, ctx.Err())
		case <-time.After(s.probeDelay):
		}
	}
	return fmt.Errorf("%w after %d attempts: %s", ErrUnreachable, s.probeAttempts, last)
}
