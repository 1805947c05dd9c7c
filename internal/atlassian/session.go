// Package atlassian provides the authenticated HTTP session shared by the
// Jira and Confluence clients, plus the error types both of them return.
package atlassian

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AuthMode selects how requests are authenticated.
type AuthMode string

const (
	AuthBearer AuthMode = "bearer"
	AuthBasic  AuthMode = "basic"
)

// DefaultTimeout applies when Config.Timeout is not positive.
const DefaultTimeout = 30 * time.Second

const defaultUserAgent = "mcp-atlas"

// Config is the immutable connection setup of one session.
type Config struct {
	BaseURL   string
	AuthMode  AuthMode
	Token     string // bearer token, or the secret half of basic auth
	Username  string // basic auth only
	VerifyTLS bool
	Timeout   time.Duration
}

// Option customises a Session at construction.
type Option func(*sessionOptions)

type sessionOptions struct {
	userAgent string
	wrap      []func(http.RoundTripper) http.RoundTripper
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *sessionOptions) {
		if strings.TrimSpace(ua) != "" {
			o.userAgent = ua
		}
	}
}

// WithRoundTripper wraps the session transport, e.g. for instrumentation.
func WithRoundTripper(wrap func(http.RoundTripper) http.RoundTripper) Option {
	return func(o *sessionOptions) {
		if wrap != nil {
			o.wrap = append(o.wrap, wrap)
		}
	}
}

// Session performs authenticated GET requests against one base URL.
// It holds no mutable state after construction.
type Session struct {
	cfg    Config
	client *http.Client
	base   *http.Transport
}

// NewSession validates cfg and builds the HTTP client. Auth problems are
// reported here, before any request is attempted.
func NewSession(cfg Config, opts ...Option) (*Session, error) {
	switch cfg.AuthMode {
	case AuthBearer:
	case AuthBasic:
		if strings.TrimSpace(cfg.Username) == "" {
			return nil, &AuthConfigError{Mode: cfg.AuthMode, Reason: "username required for basic auth"}
		}
	default:
		return nil, &AuthConfigError{Mode: cfg.AuthMode, Reason: "auth mode must be 'bearer' or 'basic'"}
	}

	o := sessionOptions{userAgent: defaultUserAgent}
	for _, opt := range opts {
		opt(&o)
	}

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	base := newBaseTransport(cfg)
	var rt http.RoundTripper = base
	for _, wrap := range o.wrap {
		rt = wrap(rt)
	}
	rt = &authTransport{base: rt, cfg: cfg, userAgent: o.userAgent}

	return &Session{
		cfg:  cfg,
		base: base,
		client: &http.Client{
			Transport: rt,
			// Redirects usually point at an SSO login page; surface them as non-200.
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// newBaseTransport applies the timeout to the connect and handshake phases
// and to every read on the connection, so a server that stalls mid-body
// fails the request instead of holding it open. A body that keeps arriving
// is never cut short.
func newBaseTransport(cfg Config) *http.Transport {
	dialer := &net.Dialer{Timeout: cfg.Timeout, KeepAlive: 30 * time.Second}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			conn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			return &idleTimeoutConn{Conn: conn, timeout: cfg.Timeout}, nil
		},
		TLSHandshakeTimeout:   cfg.Timeout,
		ResponseHeaderTimeout: cfg.Timeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   4,
		TLSClientConfig: &tls.Config{
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: !cfg.VerifyTLS, //nolint:gosec // opt-out for self-signed on-prem servers
		},
	}
}

// idleTimeoutConn pushes the read deadline forward before each Read and
// after each Write. The transport keeps a read pending on pooled
// connections, so a request must restart that clock. It sits below TLS,
// so https connections get the same bound.
type idleTimeoutConn struct {
	net.Conn
	timeout time.Duration
}

func (c *idleTimeoutConn) Read(p []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(p)
}

func (c *idleTimeoutConn) Write(p []byte) (int, error) {
	n, err := c.Conn.Write(p)
	if err == nil {
		err = c.Conn.SetReadDeadline(time.Now().Add(c.timeout))
	}
	return n, err
}

// BaseURL returns the normalized base URL.
func (s *Session) BaseURL() string { return s.cfg.BaseURL }

// Timeout returns the per-phase timeout in effect.
func (s *Session) Timeout() time.Duration { return s.cfg.Timeout }

// CloseIdleConnections releases pooled connections. Wrapped transports
// may hide the pool from http.Client, so the base transport is closed directly.
func (s *Session) CloseIdleConnections() { s.base.CloseIdleConnections() }

// Get issues GET baseURL+path?query and decodes a 200 JSON body into out.
// Any other status yields *RemoteAPIError.
func (s *Session) Get(ctx context.Context, path string, query url.Values, out any) error {
	u := s.cfg.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		return &RemoteAPIError{StatusCode: resp.StatusCode, Body: string(body), Path: path}
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		if looksLikeHTML(body) {
			return fmt.Errorf("decode %s response: %w", path, errHTMLResponse)
		}
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

var errHTMLResponse = errors.New("server returned html instead of json (likely a login page)")

func looksLikeHTML(b []byte) bool {
	s := bytes.ToLower(bytes.TrimSpace(b))
	if len(s) == 0 {
		return false
	}
	return bytes.HasPrefix(s, []byte("<!doctype html")) || bytes.HasPrefix(s, []byte("<html"))
}

// authTransport stamps headers and credentials on a clone of each request.
type authTransport struct {
	base      http.RoundTripper
	cfg       Config
	userAgent string
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Accept", "application/json")
	r.Header.Set("User-Agent", t.userAgent)
	switch t.cfg.AuthMode {
	case AuthBearer:
		r.Header.Set("Authorization", "Bearer "+t.cfg.Token)
	case AuthBasic:
		r.SetBasicAuth(t.cfg.Username, t.cfg.Token)
	}
	return t.base.RoundTrip(r)
}
