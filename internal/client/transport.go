// Package client talks to the printer controller's HTTP/JSON API.
//
// Transport executes single requests. Session adds authentication and the
// refresh-and-retry policy on top of it, and the typed endpoint helpers in
// api.go decode the controller's responses.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultRequestTimeout = 30 * time.Second
	defaultUserAgent      = "printerbot/1.0"
)

// Response is a fully read controller response. Non-2xx statuses are not
// errors; callers inspect Status.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK reports whether the status is 2xx.
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Transport is a thin HTTP executor bound to one controller base URL.
type Transport struct {
	baseURL   *url.URL
	http      *http.Client
	headers   http.Header
	tlsVerify bool
}

// TransportOptions configures NewTransport.
type TransportOptions struct {
	BaseURL   string
	TLSVerify bool
	Timeout   time.Duration
	// Headers are injected into every request unless the request overrides them.
	Headers http.Header
}

// NewTransport builds a Transport for the given controller URL.
func NewTransport(opts TransportOptions) (*Transport, error) {
	base, err := parseBaseURL(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	if !opts.TLSVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // user opted out
	}

	headers := http.Header{}
	headers.Set("User-Agent", defaultUserAgent)
	headers.Set("Accept", "application/json")
	for k, vs := range opts.Headers {
		headers[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}

	return &Transport{
		baseURL:   base,
		http:      &http.Client{Transport: tr, Timeout: timeout},
		headers:   headers,
		tlsVerify: opts.TLSVerify,
	}, nil
}

// BaseURL returns a copy of the controller base URL.
func (t *Transport) BaseURL() *url.URL {
	u := *t.baseURL
	return &u
}

// endpoint joins path (and query) onto the base URL, keeping any base path
// prefix such as a reverse-proxy mount point.
func (t *Transport) endpoint(path string, query url.Values) *url.URL {
	u := *t.baseURL
	u.Path = t.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return &u
}

// Call describes one HTTP request relative to the base URL.
type Call struct {
	Method  string
	Path    string
	Query   url.Values
	Body    io.Reader
	Headers http.Header
	// Timeout bounds this call only; zero uses the client timeout.
	Timeout time.Duration
}

// Do executes the call and reads the whole body. Only transport-level
// failures return an error.
func (t *Transport) Do(ctx context.Context, call Call) (*Response, error) {
	if call.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, call.Timeout)
		defer cancel()
	}

	reqURL := t.endpoint(call.Path, call.Query)

	req, err := http.NewRequestWithContext(ctx, call.Method, reqURL.String(), call.Body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range t.headers {
		req.Header[k] = append([]string(nil), vs...)
	}
	for k, vs := range call.Headers {
		req.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", call.Method, call.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s: %w", call.Method, call.Path, err)
	}
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

// Close drops idle pooled connections, unblocking shutdown.
func (t *Transport) Close() {
	t.http.CloseIdleConnections()
}

// bodyReader returns a fresh reader for a buffered body so a request can be
// replayed after a token refresh.
func bodyReader(b []byte) io.Reader {
	if b == nil {
		return nil
	}
	return bytes.NewReader(b)
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("controller url is empty")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse controller url %q: %w", raw, err)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
