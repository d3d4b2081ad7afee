// Package api is the HTTP client for the Corbo backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/nomdev/corbo/internal/metrics"
	"github.com/nomdev/corbo/internal/stream"
)

const (
	// DefaultBaseURL is the production backend.
	DefaultBaseURL = "https://d2j8ymo8s5yyn1.cloudfront.net"

	// DefaultTimeout bounds each request.
	DefaultTimeout = 20 * time.Second

	headerAuthToken   = "authToken"
	headerContentType = "Content-Type"
	contentTypeJSON   = "application/json"
)

// TokenSource supplies the access token sent with authenticated requests.
type TokenSource interface {
	GetAccessToken(ctx context.Context) (string, error)
}

// StreamTransport selects how answers are streamed.
type StreamTransport string

const (
	TransportHTTP      StreamTransport = "http"
	TransportWebSocket StreamTransport = "websocket"
)

// Client calls the backend. It is safe for concurrent use.
type Client struct {
	baseURL         string
	httpClient      *http.Client
	tokens          TokenSource
	limiter         *rate.Limiter
	timeout         time.Duration
	metrics         *metrics.Collector
	logger          *slog.Logger
	streamTransport StreamTransport
	decoder         *stream.Decoder
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. Its Timeout should be
// zero so long-lived streams are not cut off.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRequestTimeout sets the default per-request timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit paces requests to perSecond with the given burst. A
// non-positive rate disables pacing.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithMetrics records request timings into m.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithStreamTransport selects the answer stream transport.
func WithStreamTransport(t StreamTransport) Option {
	return func(c *Client) { c.streamTransport = t }
}

// WithDecoder replaces the stream decoder.
func WithDecoder(d *stream.Decoder) Option {
	return func(c *Client) { c.decoder = d }
}

// New creates a client for baseURL. Authenticated calls fail until a
// TokenSource is attached with WithTokens.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:         baseURL,
		timeout:         DefaultTimeout,
		logger:          slog.Default(),
		streamTransport: TransportHTTP,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Transport: NewLoggingTransport(http.DefaultTransport, c.logger)}
	}
	if c.decoder == nil {
		c.decoder = stream.NewDecoder(stream.WithLogger(c.logger))
	}
	return c
}

// WithTokens returns a copy of c that authenticates with ts.
func (c *Client) WithTokens(ts TokenSource) *Client {
	clone := *c
	clone.tokens = ts
	return &clone
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Empty is used as the response type of calls whose body is ignored.
type Empty struct{}

type callConfig struct {
	auth    bool
	headers [][2]string
	timeout time.Duration
}

// CallOption adjusts a single call.
type CallOption func(*callConfig)

// WithoutAuth sends the request without an authToken header.
func WithoutAuth() CallOption {
	return func(cfg *callConfig) { cfg.auth = false }
}

// WithHeader adds a header. It never overrides a header already set.
func WithHeader(key, value string) CallOption {
	return func(cfg *callConfig) { cfg.headers = append(cfg.headers, [2]string{key, value}) }
}

// WithTimeout overrides the client timeout for one call.
func WithTimeout(d time.Duration) CallOption {
	return func(cfg *callConfig) { cfg.timeout = d }
}

func (c *Client) callConfig(opts []CallOption) callConfig {
	cfg := callConfig{auth: true, timeout: c.timeout}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// Call POSTs payload as JSON to path and decodes a 200 response into T.
func Call[T any](ctx context.Context, c *Client, path string, payload any, opts ...CallOption) (T, error) {
	var out T

	body, err := encodePayload(payload)
	if err != nil {
		return out, fmt.Errorf("encode %s request: %w", path, err)
	}

	data, err := c.send(ctx, path, body, contentTypeJSON, c.callConfig(opts))
	if err != nil {
		return out, err
	}

	if _, skip := any(&out).(*Empty); skip {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		c.logger.Error("failed to decode response", "path", path, "payload", string(data), "error", err)
		return out, fmt.Errorf("decode %s response: %w", path, err)
	}
	return out, nil
}

func encodePayload(payload any) ([]byte, error) {
	switch p := payload.(type) {
	case nil:
		return nil, nil
	case []byte:
		return p, nil
	case json.RawMessage:
		return p, nil
	default:
		return json.Marshal(payload)
	}
}

// send executes one request and returns the body of a 200 response.
func (c *Client) send(ctx context.Context, path string, body []byte, contentType string, cfg callConfig) (_ []byte, err error) {
	start := time.Now()
	defer func() {
		c.metrics.RecordResult(metrics.OpAPIRequest, time.Since(start), err)
	}()

	reqCtx, cancel := context.WithTimeoutCause(ctx, cfg.timeout, ErrRequestTimeout)
	defer cancel()

	req, err := c.newRequest(reqCtx, path, body, contentType, cfg)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(reqCtx, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(reqCtx, path, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(req.URL.String(), resp.StatusCode, data)
	}
	return data, nil
}

func (c *Client) newRequest(ctx context.Context, path string, body []byte, contentType string, cfg callConfig) (*http.Request, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for rate limiter: %w", err)
		}
	}

	u, err := c.endpoint(path)
	if err != nil {
		return nil, err
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedURL, err)
	}

	req.Header.Set(headerContentType, contentType)
	if cfg.auth {
		if c.tokens == nil {
			return nil, fmt.Errorf("call %s: no token source configured", path)
		}
		token, err := c.tokens.GetAccessToken(ctx)
		if err != nil {
			return nil, err
		}
		req.Header.Set(headerAuthToken, token)
	}
	for _, h := range cfg.headers {
		if req.Header.Get(h[0]) == "" {
			req.Header.Set(h[0], h[1])
		}
	}
	return req, nil
}

func (c *Client) endpoint(path string) (*url.URL, error) {
	raw := c.baseURL + path
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", ErrMalformedURL, raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrMalformedURL, raw)
	}
	return u, nil
}

// transportError maps a failed round trip. Timeouts caused by this
// client's deadline, or reported by the network, become ErrRequestTimeout;
// cancellation by the caller propagates unchanged.
func (c *Client) transportError(reqCtx context.Context, path string, err error) error {
	if errors.Is(context.Cause(reqCtx), ErrRequestTimeout) {
		return fmt.Errorf("call %s: %w", path, ErrRequestTimeout)
	}
	if cause := context.Cause(reqCtx); cause != nil {
		return cause
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("call %s: %w", path, ErrRequestTimeout)
	}
	return fmt.Errorf("call %s: %w", path, err)
}

func statusError(rawURL string, status int, body []byte) error {
	if len(body) == 0 {
		return fmt.Errorf("%w: %d", ErrUnsuccessfulStatusCode, status)
	}
	msg := &ErrorMessage{StatusCode: status}
	if err := json.Unmarshal(body, msg); err != nil {
		text := fmt.Sprintf("apiCall: Error response received from %s: %s", rawURL, body)
		return &ErrorMessage{Message: &text, StatusCode: status}
	}
	return msg
}
