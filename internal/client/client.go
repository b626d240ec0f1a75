// Package client provides HTTP clients for the Story Spoiler API: an
// AuthClient that exchanges credentials for a bearer token and a StoryClient
// for the story CRUD endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/storyspoiler/spoilercheck/internal/metrics"
)

// DefaultTimeout bounds a single request when no other timeout is configured.
const DefaultTimeout = 30 * time.Second

const defaultUserAgent = "spoilercheck"

// Option configures an AuthClient or StoryClient.
type Option func(*options)

type options struct {
	timeout   time.Duration
	limiter   *rate.Limiter
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	userAgent string
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRateLimit spaces requests to at most rps per second with the given
// burst. rps <= 0 disables limiting. Every client built with the same Option
// value draws from one limiter.
func WithRateLimit(rps float64, burst int) Option {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
	return func(o *options) { o.limiter = limiter }
}

// WithMetrics records requests and operations into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithLogger sets the logger used for per-request debug events.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(o *options) { o.userAgent = ua }
}

func buildOptions(opts []Option) options {
	o := options{
		timeout:   DefaultTimeout,
		logger:    zerolog.Nop(),
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Response is the parsed outcome of one API call. A non-2xx status is a
// valid Response, not an error.
type Response struct {
	StatusCode int
	Body       []byte
	Msg        string
	StoryID    string
	// Stories holds the raw records of a list call. Their schema is opaque.
	Stories  []json.RawMessage
	Duration time.Duration
}

// BodyContains reports whether the raw body contains substr.
func (r *Response) BodyContains(substr string) bool {
	return strings.Contains(string(r.Body), substr)
}

// messageBody is the envelope returned by create, edit and delete.
type messageBody struct {
	Msg     string `json:"msg"`
	StoryID string `json:"storyId"`
}

// base carries what AuthClient and StoryClient share: the resolved base URL,
// the HTTP client and the per-request instrumentation.
type base struct {
	baseURL string
	http    *http.Client
	// pool is the connection-owning transport underneath any wrappers.
	pool *http.Transport
	opts options
}

func newBase(baseURL string, opts options, wrap func(http.RoundTripper) http.RoundTripper) base {
	pool := http.DefaultTransport.(*http.Transport).Clone()

	var transport http.RoundTripper = pool
	if wrap != nil {
		transport = wrap(transport)
	}
	if opts.metrics != nil {
		transport = opts.metrics.InstrumentRoundTripper(transport)
	}

	return base{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: transport, Timeout: opts.timeout},
		pool:    pool,
		opts:    opts,
	}
}

// do sends one request and reads the full response. operation names the call
// for logs and metrics.
func (b *base) do(ctx context.Context, operation, method, path string, body any) (*Response, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encoding request body: %w", operation, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: building request: %w", operation, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", b.opts.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if b.opts.limiter != nil {
		if err := b.opts.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s: waiting for rate limiter: %w", operation, err)
		}
	}

	start := time.Now()
	resp, err := b.http.Do(req)
	if err != nil {
		b.record(operation, 0)
		b.opts.logger.Debug().
			Str("operation", operation).
			Str("method", method).
			Str("path", path).
			Err(err).
			Msg("request failed")
		return nil, fmt.Errorf("%s: request failed: %w", operation, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	b.record(operation, resp.StatusCode)
	if err != nil {
		return nil, fmt.Errorf("%s: reading response body: %w", operation, err)
	}

	b.opts.logger.Debug().
		Str("operation", operation).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("request")

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       respBody,
		Duration:   duration,
	}, nil
}

func (b *base) record(operation string, status int) {
	if b.opts.metrics != nil {
		b.opts.metrics.RecordOperation(operation, status)
	}
}

// close releases idle connections held by the pooled transport. The client's
// own CloseIdleConnections cannot reach it through the wrapping round
// trippers.
func (b *base) close() {
	b.pool.CloseIdleConnections()
}

// decodeMessage fills Msg and StoryID when the body is a JSON object. Bodies
// that are not JSON (plain-text errors) leave both empty.
func decodeMessage(resp *Response) {
	var mb messageBody
	if err := json.Unmarshal(resp.Body, &mb); err != nil {
		return
	}
	resp.Msg = mb.Msg
	resp.StoryID = mb.StoryID
}
