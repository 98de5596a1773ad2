// Package apiclient issues requests against the PipeWatch API with bearer
// credential attachment and a single automatic refresh-and-replay on 401.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"pipewatch.org/internal/credentials"
	"pipewatch.org/internal/ids"
	"pipewatch.org/internal/obs"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 1 << 20
)

var errNoRefreshToken = errors.New("apiclient: no refresh token stored")

// Client is the authenticated HTTP client. All methods are safe for
// concurrent use; concurrent 401s share a single in-flight refresh.
type Client struct {
	baseURL   string
	http      *http.Client
	store     credentials.Store
	userAgent string

	refresh singleflight.Group

	expiredMu sync.Mutex
	onExpired func()
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithTimeout sets the per-request timeout on the underlying client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		ua = strings.TrimSpace(ua)
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// New constructs a client for the API at baseURL, reading and writing
// credentials through store.
func New(baseURL string, store credentials.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      &http.Client{Timeout: defaultTimeout},
		store:     store,
		userAgent: "pipewatch-client/1",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnSessionExpired registers the handler invoked when a refresh attempt
// fails and the session is no longer recoverable. The session coordinator
// uses it to bridge transport-level expiry into application state.
func (c *Client) OnSessionExpired(fn func()) {
	c.expiredMu.Lock()
	c.onExpired = fn
	c.expiredMu.Unlock()
}

func (c *Client) signalExpired() {
	c.expiredMu.Lock()
	fn := c.onExpired
	c.expiredMu.Unlock()
	if fn != nil {
		fn()
	}
}

// call issues an authenticated request. On the first 401 it refreshes the
// credential pair (deduplicated across concurrent callers) and replays the
// request exactly once; a second 401 propagates without another refresh.
func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	status, respBody, err := c.roundTrip(ctx, method, path, body, true)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized {
		if rerr := c.refreshCredentials(ctx); rerr != nil {
			_ = c.store.Clear()
			c.signalExpired()
			return &AuthenticationError{Message: "session expired"}
		}
		status, respBody, err = c.roundTrip(ctx, method, path, body, true)
		if err != nil {
			return err
		}
	}
	return decodeResult(status, respBody, out)
}

// callPublic issues an unauthenticated request. No bearer token is attached
// and a 401 is classified, never retried, so credential endpoints cannot
// trigger recursive refresh attempts.
func (c *Client) callPublic(ctx context.Context, method, path string, body, out any) error {
	status, respBody, err := c.roundTrip(ctx, method, path, body, false)
	if err != nil {
		return err
	}
	return decodeResult(status, respBody, out)
}

// Refresh rotates the credential pair using the stored refresh token. The
// rotated pair is persisted as a unit before Refresh returns.
func (c *Client) Refresh(ctx context.Context) error {
	return c.refreshCredentials(ctx)
}

func (c *Client) refreshCredentials(ctx context.Context) error {
	_, err, _ := c.refresh.Do("refresh", func() (any, error) {
		pair, ok, err := c.store.Load()
		if err != nil {
			return nil, err
		}
		if !ok || pair.RefreshToken == "" {
			obs.RecordRefresh("failed")
			return nil, errNoRefreshToken
		}

		status, body, err := c.roundTrip(ctx, http.MethodPost, "/auth/refresh",
			refreshRequest{RefreshToken: pair.RefreshToken}, false)
		if err != nil {
			obs.RecordRefresh("failed")
			return nil, err
		}
		if status < 200 || status >= 300 {
			obs.RecordRefresh("failed")
			return nil, classify(status, body)
		}

		var resp refreshResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			obs.RecordRefresh("failed")
			return nil, fmt.Errorf("apiclient: decode refresh response: %w", err)
		}
		rotated := credentials.Pair{
			AccessToken:  resp.AccessToken,
			RefreshToken: resp.RefreshToken,
			ExpiresIn:    resp.ExpiresIn,
		}
		if err := c.store.Save(rotated); err != nil {
			obs.RecordRefresh("failed")
			return nil, err
		}
		obs.RecordRefresh("ok")
		return nil, nil
	})
	return err
}

// roundTrip performs one HTTP exchange. The body is re-marshalled per
// attempt so a replayed request is byte-identical to the original.
func (c *Client) roundTrip(ctx context.Context, method, path string, body any, attachBearer bool) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("apiclient: encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("apiclient: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-Id", ids.Request())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if attachBearer {
		if pair, ok, err := c.store.Load(); err == nil && ok && pair.AccessToken != "" {
			req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		obs.ObserveRequest(method, path, 0, time.Since(start))
		return 0, nil, &NetworkError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	obs.ObserveRequest(method, path, resp.StatusCode, time.Since(start))
	if err != nil {
		return 0, nil, &NetworkError{Err: err}
	}
	return resp.StatusCode, respBody, nil
}

func decodeResult(status int, body []byte, out any) error {
	if status < 200 || status >= 300 {
		return classify(status, body)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("apiclient: decode response: %w", err)
	}
	return nil
}
