// Package fetch is the resilient transport every upstream call goes through.
// It knows nothing about story semantics: it bounds concurrency, retries
// throttling and transient faults with capped backoff, and enforces per-call
// timeouts.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"wattpad-downloader/model"
)

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/103.0.0.0 Safari/537.36"

type Config struct {
	// Concurrency caps in-flight upstream calls across all builds.
	Concurrency int
	// MaxAttempts is the total attempt budget per call, first try included.
	MaxAttempts int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// Timeout applies per attempt.
	Timeout time.Duration
}

func (c *Config) fill() {
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 4
	}
	if c.RetryWaitMin <= 0 {
		c.RetryWaitMin = 500 * time.Millisecond
	}
	if c.RetryWaitMax <= 0 {
		c.RetryWaitMax = 15 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
}

type Request struct {
	Method   string
	URL      string
	Headers  map[string]string
	Query    map[string]string
	FormData map[string]string
	Cookies  []*http.Cookie
}

type Client struct {
	rc  *resty.Client
	sem chan struct{}
	cfg Config
	log zerolog.Logger
}

func New(cfg Config, log zerolog.Logger) *Client {
	cfg.fill()
	rc := resty.New().
		SetHeader("User-Agent", userAgent).
		SetHeader("Accept-Charset", "utf-8").
		SetLogger(disableLogger{})
	return &Client{
		rc:  rc,
		sem: make(chan struct{}, cfg.Concurrency),
		cfg: cfg,
		log: log.With().Str("component", "fetch").Logger(),
	}
}

// Do performs one upstream call under the shared concurrency ceiling. It
// returns the response on success and on terminal 4xx statuses (callers
// inspect upstream error bodies); it returns a taxonomy error once the retry
// budget is exhausted.
func (c *Client) Do(ctx context.Context, req Request) (*resty.Response, error) {
	select {
	case c.sem <- struct{}{}:
		defer func() { <-c.sem }()
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", model.ErrTimeout, ctx.Err())
	}

	var lastVerdict verdict
	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		resp, err := c.attempt(ctx, req)
		lastVerdict = classify(resp, err)

		switch lastVerdict {
		case verdictOK:
			return resp, nil
		case verdictFatal:
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %v", model.ErrTimeout, ctx.Err())
			}
			return nil, fmt.Errorf("%w: %v", model.ErrUpstreamUnavailable, err)
		}

		if attempt == c.cfg.MaxAttempts {
			break
		}
		wait := c.backoff(attempt, resp)
		c.log.Debug().
			Str("url", req.URL).
			Int("attempt", attempt).
			Dur("wait", wait).
			Str("reason", lastVerdict.String()).
			Msg("retrying upstream call")
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", model.ErrTimeout, ctx.Err())
		}
	}

	switch lastVerdict {
	case verdictThrottled:
		return nil, fmt.Errorf("%w: %s after %d attempts", model.ErrRateLimited, req.URL, c.cfg.MaxAttempts)
	case verdictTimeout:
		return nil, fmt.Errorf("%w: %s after %d attempts", model.ErrTimeout, req.URL, c.cfg.MaxAttempts)
	default:
		return nil, fmt.Errorf("%w: %s after %d attempts", model.ErrUpstreamUnavailable, req.URL, c.cfg.MaxAttempts)
	}
}

func (c *Client) attempt(ctx context.Context, req Request) (*resty.Response, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	r := c.rc.R().SetContext(callCtx)
	if len(req.Headers) > 0 {
		r.SetHeaders(req.Headers)
	}
	if len(req.Query) > 0 {
		r.SetQueryParams(req.Query)
	}
	if len(req.FormData) > 0 {
		r.SetFormData(req.FormData)
	}
	if len(req.Cookies) > 0 {
		r.SetCookies(req.Cookies)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	return r.Execute(method, req.URL)
}

// backoff doubles the minimum wait per attempt, capped, with jitter so
// concurrent callers do not re-thunder. An upstream Retry-After wins when
// present.
func (c *Client) backoff(attempt int, resp *resty.Response) time.Duration {
	if resp != nil && resp.StatusCode() == http.StatusTooManyRequests {
		if retryAfter := resp.Header().Get("Retry-After"); retryAfter != "" {
			if seconds, err := time.ParseDuration(retryAfter + "s"); err == nil {
				return seconds
			}
			if t, err := http.ParseTime(retryAfter); err == nil {
				return time.Until(t)
			}
		}
	}
	wait := c.cfg.RetryWaitMin << (attempt - 1)
	if wait > c.cfg.RetryWaitMax {
		wait = c.cfg.RetryWaitMax
	}
	return wait + time.Duration(rand.Int63n(int64(wait/2+1)))
}

type verdict int

const (
	verdictOK verdict = iota
	verdictThrottled
	verdictTransient
	verdictTimeout
	verdictFatal
)

func (v verdict) String() string {
	switch v {
	case verdictThrottled:
		return "throttled"
	case verdictTransient:
		return "transient"
	case verdictTimeout:
		return "timeout"
	case verdictFatal:
		return "fatal"
	default:
		return "ok"
	}
}

// classify is the explicit retry policy: throttling, timeouts and 5xx are
// retryable within the shared budget, everything else is a final answer.
func classify(resp *resty.Response, err error) verdict {
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return verdictTimeout
		}
		if errors.Is(err, context.Canceled) {
			return verdictFatal
		}
		return verdictTransient
	}
	switch {
	case resp.StatusCode() == http.StatusTooManyRequests:
		return verdictThrottled
	case resp.StatusCode() >= 500:
		return verdictTransient
	default:
		return verdictOK
	}
}

type disableLogger struct{}

func (disableLogger) Errorf(string, ...interface{}) {}
func (disableLogger) Warnf(string, ...interface{})  {}
func (disableLogger) Debugf(string, ...interface{}) {}
