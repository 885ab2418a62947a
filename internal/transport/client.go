package transport

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/imroc/req/v3"
	"github.com/openmined/storagebrowser/internal/metrics"
	"github.com/openmined/storagebrowser/internal/version"
)

const DefaultTimeout = 5 * time.Minute

// Client implements Transport on top of imroc/req.
type Client struct {
	client  *req.Client
	baseURL string
	stats   *httpStats

	mu      sync.RWMutex
	creds   Credentials
	tracker UploadTracker
}

type ClientOption func(*Client)

// WithCredentials attaches the session used for X-Auth, renewal and logout.
func WithCredentials(creds Credentials) ClientOption {
	return func(c *Client) { c.creds = creds }
}

// WithUploadTracker defers session teardown while uploads are active.
func WithUploadTracker(tracker UploadTracker) ClientOption {
	return func(c *Client) { c.tracker = tracker }
}

// WithTimeout sets the per-request timeout. Zero disables it.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) { c.client.SetTimeout(d) }
}

// WithDebug dumps every request and response to stdout.
func WithDebug(debug bool) ClientOption {
	return func(c *Client) {
		if debug {
			c.client.EnableDumpAll()
		}
	}
}

// NewClient creates a transport for the backend at serverURL.
func NewClient(serverURL string, opts ...ClientOption) (*Client, error) {
	u, err := url.Parse(serverURL)
	if serverURL == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrNoServerURL, serverURL)
	}

	c := &Client{
		client: req.C().
			SetTimeout(DefaultTimeout).
			SetUserAgent(version.UserAgent()).
			SetCommonHeader(HeaderClientVer, version.Version).
			SetJsonMarshal(jsonMarshal).
			SetJsonUnmarshal(jsonUnmarshal),
		baseURL: strings.TrimRight(u.String(), "/"),
		stats:   newHTTPStats(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// SetCredentials replaces the session after construction. The session itself
// needs a transport, so it is usually attached here once both exist.
func (c *Client) SetCredentials(creds Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds = creds
}

// SetUploadTracker replaces the upload tracker after construction.
func (c *Client) SetUploadTracker(tracker UploadTracker) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tracker = tracker
}

// BaseURL returns the normalised server URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Stats returns the traffic counters of this client.
func (c *Client) Stats() HTTPStatsSnapshot {
	return c.stats.snapshot()
}

// Send performs r and returns the response of a 2xx call, otherwise an *Error.
func (c *Client) Send(ctx context.Context, r *Request) (resp *Response, err error) {
	start := time.Now()
	defer func() {
		metrics.RecordBackendRequest(r.Method, KindOf(err).String(), time.Since(start))
	}()

	c.mu.RLock()
	creds, tracker := c.creds, c.tracker
	c.mu.RUnlock()

	authed := !r.Anonymous && creds != nil

	rq := c.client.R().SetContext(ctx)
	for key := range r.Header {
		rq.SetHeader(key, r.Header.Get(key))
	}
	if len(r.Query) > 0 {
		rq.SetQueryString(r.Query.Encode())
	}
	if authed {
		if token := creds.Token(); token != "" {
			rq.SetHeader(HeaderAuth, token)
		}
	}

	sent := 0
	switch {
	case r.Body != nil:
		rq.SetBodyBytes(r.Body)
		sent = len(r.Body)
	case r.BodyReader != nil:
		rq.SetBody(r.BodyReader)
	}

	c.stats.onSend(sent)
	raw, sendErr := rq.Send(r.Method, c.baseURL+escapePath(r.Path))
	if sendErr != nil || raw == nil || raw.Response == nil {
		terr := NoConnection(sendErr)
		if ctx.Err() != nil {
			terr.Canceled = true
		}
		c.stats.setLastError(terr)
		slog.Debug("transport no connection", "method", r.Method, "path", r.Path, "canceled", terr.Canceled, "error", sendErr)
		return nil, terr
	}

	body := raw.Bytes()
	c.stats.onRecv(len(body))

	if authed && raw.Header.Get(HeaderRenewToken) == "true" {
		if err := creds.Renew(ctx); err != nil {
			// the server answers 401 once the token is really gone
			slog.Warn("transport token renewal failed", "error", err)
		}
	}

	if raw.StatusCode < 200 || raw.StatusCode > 299 {
		terr := StatusError(raw.StatusCode, body)
		c.stats.setLastError(terr)

		if authed && terr.Kind == KindAuth {
			if tracker != nil && tracker.Active() > 0 {
				slog.Warn("transport unauthorized during upload, logout deferred", "path", r.Path, "uploads", tracker.Active())
			} else if err := creds.Logout(ctx); err != nil {
				slog.Warn("transport logout failed", "error", err)
			}
		}

		return nil, terr
	}

	return &Response{
		Status: raw.StatusCode,
		Header: raw.Header,
		Body:   body,
	}, nil
}

func escapePath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return (&url.URL{Path: p}).EscapedPath()
}
