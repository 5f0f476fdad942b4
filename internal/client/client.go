// ABOUTME: HTTP client for the assistant backend's REST and streaming API
// ABOUTME: Adds bearer auth and request pacing; a 401 invalidates the token that was used

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/2389/skillchat/internal/auth"
)

// maxErrorBody bounds how much of an error response is read.
const maxErrorBody = 64 << 10

// ErrNotLoggedIn is returned for authenticated calls when no token is present.
var ErrNotLoggedIn = errors.New("not logged in")

// APIError is a non-2xx response. Detail carries the backend's "detail"
// field, or the raw body when it has none.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Detail)
}

// Unwrap lets errors.Is(err, auth.ErrUnauthorized) match a 401.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return auth.ErrUnauthorized
	}
	return nil
}

// Options configures a Client.
type Options struct {
	// Timeout bounds each non-streaming request. Streams are bounded by their context.
	Timeout time.Duration
	// RequestsPerSecond paces outgoing requests; zero disables pacing.
	RequestsPerSecond float64
	Burst             int
	// Transport overrides the HTTP transport, mostly for tests.
	Transport http.RoundTripper
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	rest    *http.Client
	stream  *http.Client
	creds   *auth.Credentials
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New creates a client for baseURL. Pass nil logger for default.
func New(baseURL string, creds *auth.Credentials, opts Options, logger *slog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q must be http or https", baseURL)
	}
	if creds == nil {
		creds = auth.NewCredentials(nil, logger)
	}
	if logger == nil {
		logger = slog.Default()
	}

	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	limit := rate.Inf
	burst := opts.Burst
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
	}

	return &Client{
		baseURL: u,
		rest:    &http.Client{Transport: transport, Timeout: opts.Timeout},
		stream:  &http.Client{Transport: transport},
		creds:   creds,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With("component", "client"),
	}, nil
}

// Credentials returns the credential holder used for bearer auth.
func (c *Client) Credentials() *auth.Credentials {
	return c.creds
}

// call describes one request.
type call struct {
	method string
	path   string
	query  url.Values
	body   any
	// public calls carry no token, so their 401s never clear the credential
	public bool
	accept string
}

// newRequest builds the request and returns the token it carries.
func (c *Client) newRequest(ctx context.Context, cl call) (*http.Request, string, error) {
	u := *c.baseURL
	u.Path = c.baseURL.Path + cl.path
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		b, err := json.Marshal(cl.body)
		if err != nil {
			return nil, "", fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return nil, "", fmt.Errorf("creating request: %w", err)
	}
	if cl.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	accept := cl.accept
	if accept == "" {
		accept = "application/json"
	}
	req.Header.Set("Accept", accept)
	req.Header.Set("X-Request-ID", uuid.New().String())

	var token string
	if !cl.public {
		token = c.creds.Token()
		if token == "" {
			return nil, "", ErrNotLoggedIn
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, token, nil
}

// send paces and performs the request, turning non-2xx responses into errors.
// On success the caller owns resp.Body.
func (c *Client) send(ctx context.Context, hc *http.Client, cl call) (*http.Response, error) {
	req, token, err := c.newRequest(ctx, cl)
	if err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("waiting for rate limiter: %w", err)
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", cl.method, cl.path, err)
	}

	c.logger.Debug("request",
		"method", cl.method,
		"path", cl.path,
		"status", resp.StatusCode,
		"request_id", req.Header.Get("X-Request-ID"),
		"duration", time.Since(start),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}

	defer resp.Body.Close()
	apiErr := readAPIError(resp)
	if resp.StatusCode == http.StatusUnauthorized && token != "" {
		c.creds.Invalidate(token)
	}
	return nil, fmt.Errorf("%s %s: %w", cl.method, cl.path, apiErr)
}

// do performs a JSON request and decodes the response into out (if non-nil).
func (c *Client) do(ctx context.Context, cl call, out any) error {
	resp, err := c.send(ctx, c.rest, cl)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func readAPIError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return apiErr
	}

	var body struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if json.Unmarshal(data, &body) != nil {
		apiErr.Detail = strings.TrimSpace(string(data))
		return apiErr
	}

	switch {
	case len(body.Detail) > 0:
		var s string
		if json.Unmarshal(body.Detail, &s) == nil {
			apiErr.Detail = s
		} else {
			// validation errors arrive as a list of objects
			apiErr.Detail = string(body.Detail)
		}
	case body.Error != "":
		apiErr.Detail = body.Error
	}
	return apiErr
}

// StatusCode returns the HTTP status of an APIError in err's chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
