// Package api is the HTTP client for the komun REST API. It attaches the
// stored access token to every request and transparently refreshes it once
// when the server answers 401.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"komun/internal/client/events"
	"komun/internal/client/logger"
	apperrors "komun/internal/errors"
	"komun/pkg/protocol"
)

const (
	DefaultBaseURL = "https://api.komun.app/api/v1"
	DefaultTimeout = 15 * time.Second

	maxResponseSize = 10 << 20
	refreshPath     = "/auth/refresh"
)

// TokenStore persists the credential pair. SetTokens keeps the stored
// refresh token when refresh is empty.
type TokenStore interface {
	Tokens() (access, refresh string, err error)
	SetTokens(access, refresh string) error
	Clear() error
}

// Client talks to the komun API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenStore
	userAgent  string
	eventBus   *events.Bus

	refreshes singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithEventBus publishes request and session events to bus.
func WithEventBus(bus *events.Bus) Option {
	return func(c *Client) { c.eventBus = bus }
}

// New creates a client for baseURL. An empty baseURL selects DefaultBaseURL.
func New(baseURL string, tokens TokenStore, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tokens:     tokens,
		userAgent:  "komun-go",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type requestConfig struct {
	noAuth bool
	query  url.Values
}

// RequestOption adjusts a single request.
type RequestOption func(*requestConfig)

// NoAuth sends the request without a bearer token. A 401 on such a request
// is an ordinary HTTPError and never triggers a refresh.
func NoAuth() RequestOption {
	return func(rc *requestConfig) { rc.noAuth = true }
}

// WithQuery adds query parameters.
func WithQuery(q url.Values) RequestOption {
	return func(rc *requestConfig) { rc.query = q }
}

// Request performs method on path and returns the response body of a 2xx
// answer. body may be nil, a *Multipart form, or any JSON-encodable value.
//
// Errors are *apperrors.NetworkError for transport failures,
// *apperrors.AuthError when the session cannot be recovered, and
// *apperrors.HTTPError for any other non-2xx status.
func (c *Client) Request(ctx context.Context, method, path string, body any, opts ...RequestOption) ([]byte, error) {
	var rc requestConfig
	for _, opt := range opts {
		opt(&rc)
	}

	payload, contentType, err := encodeBody(body)
	if err != nil {
		return nil, err
	}
	target := c.baseURL + path
	if len(rc.query) > 0 {
		target += "?" + rc.query.Encode()
	}

	var token string
	if !rc.noAuth {
		token = c.accessToken()
	}

	status, data, err := c.send(ctx, method, target, path, payload, contentType, token)
	if err != nil {
		return nil, err
	}

	if status == http.StatusUnauthorized && !rc.noAuth {
		fresh, err := c.refreshAfter(ctx, token)
		if err != nil {
			return nil, err
		}

		status, data, err = c.send(ctx, method, target, path, payload, contentType, fresh)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			c.clearTokens()
			return nil, c.authFailed(&apperrors.AuthError{Message: "session expired"})
		}
	}

	if status < 200 || status >= 300 {
		return nil, httpError(status, data)
	}
	return data, nil
}

// do runs Request and decodes the JSON answer into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any, opts ...RequestOption) error {
	data, err := c.Request(ctx, method, path, body, opts...)
	if err != nil {
		return err
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &apperrors.HTTPError{Status: http.StatusBadGateway, Message: "invalid response from server"}
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, target, path string, payload []byte, contentType, token string) (int, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-Id", uuid.NewString())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, &apperrors.NetworkError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, &apperrors.NetworkError{Op: method + " " + path, Err: err}
	}

	duration := time.Since(start)
	logger.Debug("%s %s -> %d (%s)", method, path, resp.StatusCode, duration.Round(time.Millisecond))
	c.publishEvent(events.Event{
		Type: events.EventRequestComplete,
		Data: events.RequestData{
			Method:   method,
			Path:     path,
			Status:   resp.StatusCode,
			Duration: duration,
			Bytes:    int64(len(data)),
		},
	})

	return resp.StatusCode, data, nil
}

// refreshAfter returns an access token newer than stale. Concurrent callers
// share one refresh call; a caller whose token was already rotated gets the
// stored token without a new call.
func (c *Client) refreshAfter(ctx context.Context, stale string) (string, error) {
	ch := c.refreshes.DoChan("refresh", func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx), stale)
	})

	select {
	case <-ctx.Done():
		return "", &apperrors.NetworkError{Op: "refresh", Err: ctx.Err()}
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (c *Client) refresh(ctx context.Context, stale string) (string, error) {
	access, refreshToken, err := c.tokens.Tokens()
	if err != nil {
		return "", c.refreshFailed(err)
	}
	if access != "" && access != stale {
		return access, nil
	}
	if refreshToken == "" {
		return "", c.refreshFailed(apperrors.ErrNoSession)
	}

	body, _ := json.Marshal(protocol.RefreshRequest{RefreshToken: refreshToken})
	status, data, err := c.send(ctx, http.MethodPost, c.baseURL+refreshPath, refreshPath, body, "application/json", "")
	if err != nil {
		return "", c.refreshFailed(err)
	}
	if status < 200 || status >= 300 {
		return "", c.refreshFailed(httpError(status, data))
	}

	var resp protocol.RefreshResponse
	if err := json.Unmarshal(data, &resp); err != nil || resp.AccessToken == "" {
		return "", c.refreshFailed(apperrors.ErrNoSession)
	}
	if err := c.tokens.SetTokens(resp.AccessToken, resp.RefreshToken); err != nil {
		return "", c.refreshFailed(err)
	}

	logger.Debug("Access token refreshed")
	return resp.AccessToken, nil
}

func (c *Client) refreshFailed(cause error) error {
	c.clearTokens()
	return c.authFailed(&apperrors.AuthError{Message: "session expired", Err: cause})
}

func (c *Client) authFailed(err *apperrors.AuthError) error {
	c.publishEvent(events.Event{Type: events.EventSessionExpired, Data: events.ErrorData{Error: err, Context: "auth"}})
	return err
}

func (c *Client) accessToken() string {
	access, _, err := c.tokens.Tokens()
	if err != nil {
		logger.Warn("Failed to read stored credentials: %v", err)
		return ""
	}
	return access
}

func (c *Client) clearTokens() {
	if err := c.tokens.Clear(); err != nil {
		logger.Warn("Failed to clear stored credentials: %v", err)
	}
}

func (c *Client) publishEvent(e events.Event) {
	if c.eventBus != nil {
		c.eventBus.Publish(e)
	}
}

func encodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case *Multipart:
		return b.encode()
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", err
		}
		return data, "application/json", nil
	}
}

func httpError(status int, data []byte) *apperrors.HTTPError {
	var resp protocol.ErrorResponse
	if json.Unmarshal(data, &resp) == nil {
		if msg := resp.Text(); msg != "" {
			return &apperrors.HTTPError{Status: status, Message: msg}
		}
	}
	return &apperrors.HTTPError{Status: status, Message: http.StatusText(status)}
}
