package authapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// ErrNoToken means the server answered 2xx without a bearer token.
var ErrNoToken = errors.New("no bearer token in response")

// APIError is a non-2xx answer from the auth API.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("auth api error: status=%d body=%s", e.Status, e.Body)
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Client obtains bearer tokens from the game's HTTP auth endpoints.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	logger  *zap.Logger

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient swaps the transport, e.g. for an in-memory listener in tests.
func WithHTTPClient(h *fasthttp.Client) Option {
	return func(c *Client) { c.http = h }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		http:           &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 4},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c
}

// Guest creates an anonymous account and returns its token. It is sent once:
// a retry could create a second account.
func (c *Client) Guest(ctx context.Context) (string, error) {
	return c.token(ctx, "/auth/guest", nil, 1)
}

// Login is the only call retried on 5xx and transport errors.
func (c *Client) Login(ctx context.Context, username, password string) (string, error) {
	return c.token(ctx, "/auth/login", Credentials{Username: username, Password: password}, c.retryMax)
}

// Register creates an account. The caller logs in afterwards. It is sent once.
func (c *Client) Register(ctx context.Context, username, password string) error {
	_, err := c.do(ctx, "/auth/register", Credentials{Username: username, Password: password}, 1)
	return err
}

func (c *Client) token(ctx context.Context, path string, in any, attempts int) (string, error) {
	hdr, err := c.do(ctx, path, in, attempts)
	if err != nil {
		return "", err
	}
	tok := bearer(hdr)
	if tok == "" {
		c.logger.Warn("auth_no_token", zap.String("path", path))
		return "", ErrNoToken
	}
	c.logger.Info("auth_token_received", zap.String("path", path))
	return tok, nil
}

// do posts in as JSON and returns the Authorization response header.
func (c *Client) do(ctx context.Context, path string, in any, attempts int) (string, error) {
	url := c.baseURL + path
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(url)
	req.Header.SetContentType("application/json")
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return "", fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.computeDeadline(ctx))
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			c.logger.Warn("auth_request_error", zap.String("path", path), zap.Int("attempt", attempt), zap.Error(err))
			if attempt == attempts {
				return "", lastErr
			}
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return "", lastErr
			}
			continue
		}

		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			apiErr := &APIError{Status: status, Body: truncate(string(resp.Body()), 512)}
			if attempt == attempts || !shouldRetryStatus(status) {
				return "", apiErr
			}
			lastErr = apiErr
			c.logger.Warn("auth_retry_status", zap.String("path", path), zap.Int("status", status), zap.Int("attempt", attempt))
			if sleepErr := sleepWithContext(ctx, backoffDuration(attempt)); sleepErr != nil {
				return "", lastErr
			}
			continue
		}
		return string(resp.Header.Peek(fasthttp.HeaderAuthorization)), nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return "", lastErr
}

// bearer returns the token part of "Bearer <token>".
func bearer(h string) string {
	parts := strings.Fields(h)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

func (c *Client) computeDeadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.defaultTimeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoffDuration(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func shouldRetryStatus(code int) bool {
	switch code {
	case 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
