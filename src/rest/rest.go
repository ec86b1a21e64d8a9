// Package rest implements the REST side of the Discord API: request
// execution with per-route bucket rate limiting, the global request-rate
// window, the invalid-request circuit breaker, and 429 retry.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/skua-io/skua/src/errs"
	"github.com/skua-io/skua/src/wire"
)

const (
	DefaultMaxRetries    = 1
	DefaultGlobalLimit   = 50
	DefaultGlobalWindow  = time.Second
	DefaultInvalidLimit  = 10000
	DefaultInvalidWindow = 10 * time.Minute
)

type Config struct {
	Token string
	Auth  wire.AuthType

	// UserAgent overrides the library default. Must match the documented
	// "DiscordBot (url, version)" pattern.
	UserAgent string

	// Timeout bounds each attempt's round-trip. Zero means no limit beyond
	// the caller's context.
	Timeout time.Duration

	// MaxRetries is the number of additional attempts after a retryable 429.
	// Zero selects the default of one retry.
	MaxRetries int

	GlobalLimit   int
	GlobalWindow  time.Duration
	InvalidLimit  int
	InvalidWindow time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client executes REST requests against the pinned API origin. It is safe
// for concurrent use; rate-limit bookkeeping is serialized under one mutex
// while sleeps and network I/O happen outside it.
type Client struct {
	httpc      *http.Client
	token      string
	auth       wire.AuthType
	userAgent  string
	timeout    time.Duration
	maxRetries int
	logger     *slog.Logger

	globalLimit   int
	globalWindow  time.Duration
	invalidLimit  int
	invalidWindow time.Duration

	mu                 sync.Mutex
	globalWindowStart  time.Time
	globalCount        int
	globalBlockUntil   time.Time
	invalidWindowStart time.Time
	invalidCount       int
	invalidBlockUntil  time.Time

	bucketsByRoute map[bucketKey]*bucket
	bucketsByID    map[bucketKey]*bucket
	routeBuckets   map[string]string

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: missing token", errs.ErrInvalidParam)
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = wire.DefaultUserAgent()
	} else if !wire.ValidUserAgent(ua) {
		return nil, fmt.Errorf("%w: malformed user agent: %q", errs.ErrInvalidParam, ua)
	}
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		httpc:         httpc,
		token:         cfg.Token,
		auth:          cfg.Auth,
		userAgent:     ua,
		timeout:       cfg.Timeout,
		maxRetries:    cfg.MaxRetries,
		logger:        logger,
		globalLimit:   cfg.GlobalLimit,
		globalWindow:  cfg.GlobalWindow,
		invalidLimit:  cfg.InvalidLimit,
		invalidWindow: cfg.InvalidWindow,

		bucketsByRoute: make(map[bucketKey]*bucket),
		bucketsByID:    make(map[bucketKey]*bucket),
		routeBuckets:   make(map[string]string),

		now:   time.Now,
		sleep: sleepContext,
	}
	if c.maxRetries == 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.globalLimit == 0 {
		c.globalLimit = DefaultGlobalLimit
	}
	if c.globalWindow == 0 {
		c.globalWindow = DefaultGlobalWindow
	}
	if c.invalidLimit == 0 {
		c.invalidLimit = DefaultInvalidLimit
	}
	if c.invalidWindow == 0 {
		c.invalidWindow = DefaultInvalidWindow
	}
	start := c.now()
	c.globalWindowStart = start
	c.invalidWindowStart = start
	return c, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type header struct {
	name  string
	value string
}

// Request is one REST call under construction. The zero value is not usable;
// start with NewRequest.
type Request struct {
	method      string
	path        string
	headers     []header
	body        []byte
	bodyIsJSON  bool
	timeout     time.Duration
	interaction bool
}

func NewRequest(method, path string) *Request {
	return &Request{method: method, path: path}
}

func headerValueValid(value string) bool {
	return !strings.ContainsAny(value, "\r\n")
}

// AddHeader sets a request header, replacing any earlier value. The
// Authorization and User-Agent headers belong to the client and are rejected;
// a Content-Type must name an accepted media type and may not override a JSON
// body.
func (r *Request) AddHeader(name, value string) error {
	if name == "" || !headerValueValid(name) || !headerValueValid(value) {
		return fmt.Errorf("%w: malformed header %q", errs.ErrInvalidParam, name)
	}
	if strings.EqualFold(name, "Authorization") || strings.EqualFold(name, "User-Agent") {
		return fmt.Errorf("%w: header %s is managed by the client", errs.ErrInvalidParam, name)
	}
	if strings.EqualFold(name, "Content-Type") {
		if !wire.ContentTypeAllowed(value) {
			return fmt.Errorf("%w: content type %q not accepted", errs.ErrInvalidParam, value)
		}
		if r.bodyIsJSON {
			return fmt.Errorf("%w: json body already sets the content type", errs.ErrInvalidParam)
		}
	}
	for i := range r.headers {
		if strings.EqualFold(r.headers[i].name, name) {
			r.headers[i].value = value
			return nil
		}
	}
	r.headers = append(r.headers, header{name, value})
	return nil
}

func (r *Request) hasHeader(name string) bool {
	for i := range r.headers {
		if strings.EqualFold(r.headers[i].name, name) {
			return true
		}
	}
	return false
}

// SetRawBody attaches a non-JSON body. The caller must also set an explicit
// Content-Type or Execute will reject the request.
func (r *Request) SetRawBody(body []byte) {
	r.body = body
	r.bodyIsJSON = false
}

// SetJSONBody marshals v as the request body and pins the content type.
func (r *Request) SetJSONBody(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %s", errs.ErrJSON, err)
	}
	r.body = data
	r.bodyIsJSON = true
	for i := range r.headers {
		if strings.EqualFold(r.headers[i].name, "Content-Type") {
			r.headers[i].value = "application/json"
			return nil
		}
	}
	r.headers = append(r.headers, header{"Content-Type", "application/json"})
	return nil
}

// SetTimeout overrides the client timeout for this request.
func (r *Request) SetTimeout(d time.Duration) {
	r.timeout = d
}

// SetInteraction exempts the request from the global limiter. Interaction
// callback paths are detected automatically; this forces the flag for routes
// the detection cannot see.
func (r *Request) SetInteraction(v bool) {
	r.interaction = v
}

// Response is the outcome of one executed request, with the rate-limit
// headers and any error documents already parsed.
type Response struct {
	StatusCode    int
	Header        http.Header
	Body          []byte
	RateLimit     wire.RateLimit
	RateLimitBody wire.RateLimitBody
	APIError      *wire.APIError
}

// Execute sends the request, observing all rate-limit state, and returns the
// final response. 429s are retried internally up to the configured retry
// count; HTTP errors map onto the package sentinel errors with the response
// still populated.
func (c *Client) Execute(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || req.path == "" {
		return nil, fmt.Errorf("%w: empty request path", errs.ErrInvalidParam)
	}
	if len(req.body) > 0 && !req.bodyIsJSON && !req.hasHeader("Content-Type") {
		return nil, fmt.Errorf("%w: raw body requires an explicit content type", errs.ErrInvalidParam)
	}

	url, err := wire.BuildAPIURL(req.path)
	if err != nil {
		return nil, err
	}
	path, err := extractPath(req.path)
	if err != nil {
		return nil, err
	}
	interaction := req.interaction || isInteractionPath(path)
	routeKey, major := buildRouteKey(req.method, path)

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.waitForSlot(ctx, routeKey, major, interaction); err != nil {
			return nil, err
		}

		resp, err := c.send(ctx, req, url)
		if err != nil {
			return nil, err
		}

		retryAfter := c.recordResponse(resp, routeKey, major, interaction)

		if resp.StatusCode == http.StatusTooManyRequests && retryAfter > 0 && attempt < c.maxRetries {
			c.logger.Debug("rate limited, retrying",
				"route", routeKey,
				"retry_after", retryAfter,
				"attempt", attempt+1)
			if err := c.sleep(ctx, time.Duration(retryAfter*float64(time.Second))); err != nil {
				return nil, err
			}
			continue
		}
		return resp, errs.FromHTTPStatus(resp.StatusCode)
	}
	return nil, errs.ErrTryAgain
}

// waitForSlot blocks until the global window and the route's bucket both
// admit a request, or fails fast when the invalid-request breaker is open.
func (c *Client) waitForSlot(ctx context.Context, routeKey, major string, interaction bool) error {
	for {
		c.mu.Lock()
		now := c.now()

		if c.invalidBlockUntil.After(now) {
			c.mu.Unlock()
			return fmt.Errorf("%w: invalid request limit exceeded", errs.ErrInvalidState)
		}

		var wait time.Duration
		if !interaction {
			if c.globalBlockUntil.After(now) {
				wait = c.globalBlockUntil.Sub(now)
			} else {
				if now.Sub(c.globalWindowStart) >= c.globalWindow {
					c.globalWindowStart = now
					c.globalCount = 0
				}
				if c.globalCount >= c.globalLimit {
					wait = c.globalWindow - now.Sub(c.globalWindowStart)
				}
			}
		}
		if wait == 0 {
			b := c.bucketFor(routeKey, major)
			if b.rl.Remaining == 0 && b.resetAt.After(now) {
				wait = b.resetAt.Sub(now)
			}
		}
		c.mu.Unlock()

		if wait == 0 {
			return nil
		}
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func (c *Client) send(ctx context.Context, req *Request, url string) (*Response, error) {
	timeout := req.timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var body io.Reader
	if len(req.body) > 0 {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, url, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errs.ErrInvalidParam, err)
	}

	auth, err := wire.FormatAuthHeader(c.auth, c.token)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Authorization", auth)
	for _, h := range req.headers {
		httpReq.Header.Set(h.name, h.value)
	}

	httpResp, err := c.httpc.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: %s", errs.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %s", errs.ErrTransport, err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %s", errs.ErrTransport, err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       raw,
		RateLimit:  wire.ParseRateLimit(httpResp.Header.Get),
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		if parsed, err := wire.ParseRateLimitBody(raw); err == nil {
			resp.RateLimitBody = parsed
		}
	}
	if resp.StatusCode >= 400 {
		if parsed, err := wire.ParseAPIError(raw); err == nil {
			resp.APIError = &parsed
		}
	}
	return resp, nil
}

// recordResponse folds the response into the shared rate-limit state and
// returns the retry-after delay to honor when the status was 429.
func (c *Client) recordResponse(resp *Response, routeKey, major string, interaction bool) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !interaction {
		if now.Sub(c.globalWindowStart) >= c.globalWindow {
			c.globalWindowStart = now
			c.globalCount = 0
		}
		c.globalCount++
	}

	b := c.bucketFor(routeKey, major)
	c.updateBucket(b, resp.RateLimit, now)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		c.recordInvalidRequest(now)
	}

	retryAfter := resp.RateLimit.RetryAfter
	if resp.RateLimitBody.RetryAfter > 0 {
		retryAfter = resp.RateLimitBody.RetryAfter
	}
	if resp.StatusCode == http.StatusTooManyRequests &&
		(resp.RateLimit.Global || resp.RateLimitBody.Global) && retryAfter > 0 {
		c.globalBlockUntil = now.Add(time.Duration(retryAfter * float64(time.Second)))
	}
	if resp.StatusCode != http.StatusTooManyRequests {
		return 0
	}
	if resp.RateLimit.RetryAfter > 0 {
		return resp.RateLimit.RetryAfter
	}
	return resp.RateLimitBody.RetryAfter
}

// recordInvalidRequest counts a 401/403/429 toward the breaker window and
// opens the breaker for the window remainder once the limit is reached.
func (c *Client) recordInvalidRequest(now time.Time) {
	if now.Sub(c.invalidWindowStart) >= c.invalidWindow {
		c.invalidWindowStart = now
		c.invalidCount = 0
	}
	c.invalidCount++
	if c.invalidCount >= c.invalidLimit {
		c.invalidBlockUntil = c.invalidWindowStart.Add(c.invalidWindow)
	}
}
