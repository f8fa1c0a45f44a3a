package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Adda-Baaj/edgar-gateway/internal/logger"
)

const (
	DefaultTimeout   = 8 * time.Second
	DefaultUserAgent = "Edgar-Dashboard/1.0"
	DefaultAccept    = "application/json"

	// maxAttempts is the original call plus a single immediate retry.
	maxAttempts = 2
)

// Attempt outcomes reported to an Observer.
const (
	OutcomeSuccess = "success"
	OutcomeRetry   = "retry"
	OutcomeFailure = "failure"
)

// Client is the transport shared by every source adapter.
type Client interface {
	Do(ctx context.Context, req Request) (*Response, error)
	Get(ctx context.Context, url string, headers map[string]string) (*Response, error)
}

// Request describes one outbound call. Timeout overrides the client default when > 0.
// MaxBodyBytes > 0 fails the call with ErrBodyTooLarge once the body grows past it.
type Request struct {
	Method       string
	URL          string
	Query        map[string]string
	Headers      map[string]string
	Timeout      time.Duration
	MaxBodyBytes int
}

// Response is a fully read upstream response with a 2xx status.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Observer receives one observation per attempt.
type Observer interface {
	ObserveAttempt(host, method, outcome string, took time.Duration)
}

// Option customises a RestyClient.
type Option func(*RestyClient)

// WithLogger sets the diagnostic logger.
func WithLogger(log logger.Logger) Option {
	return func(c *RestyClient) { c.log = logger.Ensure(log) }
}

// WithObserver attaches an attempt observer, typically Prometheus metrics.
func WithObserver(obs Observer) Option {
	return func(c *RestyClient) { c.obs = obs }
}

// WithUserAgent overrides the identifying User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *RestyClient) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHTTPClient swaps the underlying net/http client, e.g. for custom transports.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *RestyClient) {
		if hc != nil {
			c.rc = resty.NewWithClient(hc)
		}
	}
}

// RestyClient implements Client on top of resty with a bounded one-shot retry.
type RestyClient struct {
	rc        *resty.Client
	timeout   time.Duration
	userAgent string
	log       logger.Logger
	obs       Observer
}

// NewRestyClient builds the shared transport. A non-positive timeout falls back to DefaultTimeout.
func NewRestyClient(timeout time.Duration, opts ...Option) *RestyClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &RestyClient{
		rc:        resty.New(),
		timeout:   timeout,
		userAgent: DefaultUserAgent,
		log:       logger.NopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}

	// Retries are driven by Do so the policy stays exactly one immediate retry.
	c.rc.SetRetryCount(0)
	c.rc.SetLogger(restyLogger{log: c.log})
	c.rc.SetHeader("User-Agent", c.userAgent)
	c.rc.SetHeader("Accept", DefaultAccept)

	return c
}

// Timeout returns the default per-attempt timeout.
func (c *RestyClient) Timeout() time.Duration { return c.timeout }

// Get issues a GET with the given extra headers.
func (c *RestyClient) Get(ctx context.Context, rawURL string, headers map[string]string) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Headers: headers})
}

// Do executes req, retrying once when the first failure is transient.
func (c *RestyClient) Do(ctx context.Context, req Request) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		method = http.MethodGet
	}
	if strings.TrimSpace(req.URL) == "" {
		return nil, &Error{Method: method, Err: errors.New("request url is empty")}
	}

	host := hostOf(req.URL)

	for attempt := 1; ; attempt++ {
		c.log.DebugObj("upstream request", "upstream_request", map[string]any{
			"method":  method,
			"url":     req.URL,
			"attempt": attempt,
		})

		start := time.Now()
		resp, terr := c.attempt(ctx, method, req)
		took := time.Since(start)

		if terr == nil {
			c.observe(host, method, OutcomeSuccess, took)
			c.log.DebugObj("upstream response", "upstream_response", map[string]any{
				"method":  method,
				"url":     req.URL,
				"status":  resp.StatusCode,
				"attempt": attempt,
				"took_ms": took.Milliseconds(),
			})
			return resp, nil
		}

		terr.Attempts = attempt
		if attempt < maxAttempts && terr.Transient() && ctx.Err() == nil {
			c.observe(host, method, OutcomeRetry, took)
			c.log.WarnObj("retrying failed upstream request", "upstream_retry", map[string]any{
				"method": method,
				"url":    req.URL,
				"status": terr.StatusCode,
				"error":  terr.Err.Error(),
			})
			continue
		}

		c.observe(host, method, OutcomeFailure, took)
		c.log.ErrorObj("upstream request failed", "upstream_failure", map[string]any{
			"method":   method,
			"url":      req.URL,
			"status":   terr.StatusCode,
			"attempts": attempt,
			"error":    terr.Err.Error(),
		})
		return nil, terr
	}
}

// attempt performs a single call bounded by the per-attempt timeout.
func (c *RestyClient) attempt(ctx context.Context, method string, req Request) (*Response, *Error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	r := c.rc.R().SetContext(attemptCtx)
	if len(req.Query) > 0 {
		r.SetQueryParams(req.Query)
	}
	if len(req.Headers) > 0 {
		r.SetHeaders(req.Headers)
	}
	if req.MaxBodyBytes > 0 {
		r.SetResponseBodyLimit(req.MaxBodyBytes)
	}

	resp, err := r.Execute(method, req.URL)
	if errors.Is(err, resty.ErrResponseBodyTooLarge) {
		return nil, &Error{
			Method: method,
			URL:    req.URL,
			Err:    fmt.Errorf("%w of %d bytes", ErrBodyTooLarge, req.MaxBodyBytes),
		}
	}
	if err != nil {
		return nil, &Error{
			Method:  method,
			URL:     req.URL,
			Err:     err,
			timeout: isTimeout(err) && ctx.Err() == nil,
		}
	}

	code := resp.StatusCode()
	if code < 200 || code > 299 {
		return nil, &Error{
			Method:     method,
			URL:        req.URL,
			StatusCode: code,
			Body:       Snippet(resp.Body()),
			Err:        fmt.Errorf("%w %d", ErrUnexpectedStatus, code),
		}
	}

	return &Response{
		StatusCode: code,
		Header:     resp.Header(),
		Body:       resp.Body(),
	}, nil
}

func (c *RestyClient) observe(host, method, outcome string, took time.Duration) {
	if c.obs != nil {
		c.obs.ObserveAttempt(host, method, outcome, took)
	}
}

// isTimeout reports whether err is a client, dial or deadline timeout.
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

// restyLogger routes resty's internal messages into the gateway logger.
type restyLogger struct {
	log logger.Logger
}

func (l restyLogger) Errorf(format string, v ...any) {
	l.log.ErrorObj(fmt.Sprintf(format, v...), "resty_error", nil)
}

func (l restyLogger) Warnf(format string, v ...any) {
	l.log.WarnObj(fmt.Sprintf(format, v...), "resty_warn", nil)
}

func (l restyLogger) Debugf(format string, v ...any) {
	l.log.DebugObj(fmt.Sprintf(format, v...), "resty_debug", nil)
}
