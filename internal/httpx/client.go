// Package httpx implements the shared rate-limited storefront HTTP client.
package httpx

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	json "github.com/goccy/go-json"
	"golang.org/x/time/rate"

	"github.com/gamedex/catalog/errs"
	"github.com/gamedex/catalog/internal/telemetry"
)

// retryableStatus lists HTTP statuses worth retrying with backoff.
var retryableStatus = map[int]struct{}{
	http.StatusRequestTimeout:      {},
	http.StatusTooEarly:            {},
	http.StatusTooManyRequests:     {},
	http.StatusInternalServerError: {},
	http.StatusBadGateway:          {},
	http.StatusServiceUnavailable:  {},
	http.StatusGatewayTimeout:      {},
}

// Config tunes retry, throttling, and breaker behaviour.
type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	BackoffBase     time.Duration
	BackoffCap      time.Duration
	RequestsPerSec  float64
	Burst           int
	BreakerTrip     int
	BreakerCooldown time.Duration
	UserAgent       string
	// DomainRates overrides RequestsPerSec for specific hosts.
	DomainRates map[string]float64
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	if c.BackoffCap < c.BackoffBase {
		c.BackoffCap = 8 * time.Second
	}
	if c.RequestsPerSec <= 0 {
		c.RequestsPerSec = 2.5
	}
	if c.Burst <= 0 {
		c.Burst = 1
	}
	return c
}

// Client issues storefront requests through per-domain token buckets and
// circuit breakers, retrying transient failures with exponential backoff.
// Limiter and breaker state is shared by every caller hitting the same
// domain; instances are never process-global so tests stay isolated.
type Client struct {
	http    *http.Client
	cfg     Config
	metrics *telemetry.Metrics

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	breakers map[string]*Breaker

	sleep func(context.Context, time.Duration) error
}

// NewClient constructs a rate-limited client. A nil metrics handle disables
// instrumentation.
func NewClient(cfg Config, metrics *telemetry.Metrics) *Client {
	cfg = cfg.withDefaults()
	inner := new(http.Client)
	inner.Timeout = cfg.Timeout
	return &Client{
		http:     inner,
		cfg:      cfg,
		metrics:  metrics,
		limiters: make(map[string]*rate.Limiter),
		breakers: make(map[string]*Breaker),
		sleep:    sleepCtx,
	}
}

// Breaker returns the breaker guarding the given domain, creating it on
// first use.
func (c *Client) Breaker(domain string) *Breaker {
	c.mu.Lock()
	defer c.mu.Unlock()
	br, ok := c.breakers[domain]
	if !ok {
		br = NewBreaker(domain, c.cfg.BreakerTrip, c.cfg.BreakerCooldown)
		c.breakers[domain] = br
	}
	return br
}

func (c *Client) limiter(domain string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[domain]
	if !ok {
		rps := c.cfg.RequestsPerSec
		if override, ok := c.cfg.DomainRates[domain]; ok && override > 0 {
			rps = override
		}
		lim = rate.NewLimiter(rate.Limit(rps), c.cfg.Burst)
		c.limiters[domain] = lim
	}
	return lim
}

// Do executes the request with per-domain throttling, retry, and breaker
// accounting. The response body is fully read and returned so connection
// reuse stays healthy under concurrent callers.
func (c *Client) Do(ctx context.Context, req *http.Request) ([]byte, error) {
	domain := req.URL.Host
	store := storeFromContext(ctx)

	breaker := c.Breaker(domain)
	if err := breaker.Allow(); err != nil {
		c.count(ctx, telemetry.CounterBreakerRejects, store, domain)
		return nil, err
	}

	body, err := c.doWithRetry(ctx, req, domain, store)
	if err != nil {
		// a caller-side deadline says nothing about the domain's health
		if !errs.Is(err, errs.CodeDeadline) {
			breaker.RecordFailure()
		}
		return nil, err
	}
	breaker.RecordSuccess()
	return body, nil
}

func (c *Client) doWithRetry(ctx context.Context, req *http.Request, domain, store string) ([]byte, error) {
	expo := c.newBackoff()
	limiter := c.limiter(domain)

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, deadlineErr(store, err)
		}

		body, retryAfter, err := c.attempt(ctx, req, domain, store)
		if err == nil {
			return body, nil
		}
		if !errs.Retryable(err) {
			return nil, err
		}
		lastErr = err

		if attempt == c.cfg.MaxRetries {
			break
		}
		c.count(ctx, telemetry.CounterRetries, store, domain)

		wait := expo.NextBackOff()
		if wait == backoff.Stop || wait > c.cfg.BackoffCap {
			wait = c.cfg.BackoffCap
		}
		if retryAfter > 0 {
			wait = retryAfter
		}
		if err := c.sleep(ctx, wait); err != nil {
			return nil, deadlineErr(store, err)
		}
	}
	return nil, lastErr
}

// attempt performs a single HTTP exchange, classifying the outcome.
func (c *Client) attempt(ctx context.Context, req *http.Request, domain, store string) ([]byte, time.Duration, error) {
	cloned := req.Clone(ctx)
	if req.GetBody != nil {
		// a fresh body per attempt, otherwise retries replay a drained reader
		body, err := req.GetBody()
		if err != nil {
			return nil, 0, errs.New(store, errs.CodeNetwork,
				errs.WithMessage("rewind request body"), errs.WithCause(err))
		}
		cloned.Body = body
	}
	if cloned.Header.Get("User-Agent") == "" && c.cfg.UserAgent != "" {
		cloned.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	c.count(ctx, telemetry.CounterRequests, store, domain)
	resp, err := c.http.Do(cloned)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, deadlineErr(store, ctxErr)
		}
		return nil, 0, errs.New(store, errs.CodeNetwork,
			errs.WithMessage("transport failure"),
			errs.WithField("domain", domain),
			errs.WithCause(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if _, retryable := retryableStatus[resp.StatusCode]; retryable {
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		code := errs.CodeUnavailable
		if resp.StatusCode == http.StatusTooManyRequests {
			code = errs.CodeRateLimited
		}
		return nil, retryAfter, errs.New(store, code,
			errs.WithHTTP(resp.StatusCode),
			errs.WithField("domain", domain))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, 0, errs.New(store, errs.CodeNetwork,
			errs.WithHTTP(resp.StatusCode),
			errs.WithField("domain", domain),
			errs.WithRawMessage(string(raw)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, errs.New(store, errs.CodeNetwork,
			errs.WithMessage("read body"),
			errs.WithField("domain", domain),
			errs.WithCause(err))
	}
	return body, 0, nil
}

// GetJSON fetches url with optional query params and decodes the JSON body
// into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, params url.Values, v any) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return errs.New(storeFromContext(ctx), errs.CodeInvalid,
			errs.WithMessage("parse url"), errs.WithCause(err))
	}
	if len(params) > 0 {
		query := u.Query()
		for key, values := range params {
			for _, value := range values {
				query.Add(key, value)
			}
		}
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return errs.New(storeFromContext(ctx), errs.CodeInvalid,
			errs.WithMessage("create request"), errs.WithCause(err))
	}
	req.Header.Set("Accept", "application/json")
	body, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errs.New(storeFromContext(ctx), errs.CodeSerialization,
			errs.WithMessage("decode json"),
			errs.WithField("url", u.Redacted()),
			errs.WithCause(err))
	}
	return nil
}

// PostJSON sends payload as a JSON body and decodes the JSON response into v.
func (c *Client) PostJSON(ctx context.Context, rawURL string, payload, v any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return errs.New(storeFromContext(ctx), errs.CodeSerialization,
			errs.WithMessage("encode json body"), errs.WithCause(err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(encoded))
	if err != nil {
		return errs.New(storeFromContext(ctx), errs.CodeInvalid,
			errs.WithMessage("create request"), errs.WithCause(err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	body, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return errs.New(storeFromContext(ctx), errs.CodeSerialization,
			errs.WithMessage("decode json"),
			errs.WithField("url", rawURL),
			errs.WithCause(err))
	}
	return nil
}

func (c *Client) newBackoff() *backoff.ExponentialBackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = c.cfg.BackoffBase
	expo.MaxInterval = c.cfg.BackoffCap
	return expo
}

func (c *Client) count(ctx context.Context, counter telemetry.Counter, store, domain string) {
	if c.metrics == nil {
		return
	}
	c.metrics.Count(ctx, counter, store, domain)
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if wait := time.Until(at); wait > 0 {
			return wait
		}
	}
	return 0
}

func deadlineErr(store string, cause error) error {
	return errs.New(store, errs.CodeDeadline,
		errs.WithMessage("request deadline"),
		errs.WithCause(cause))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type storeKey struct{}

// WithStore annotates ctx with the store identifier used for error envelopes
// and metric labels on requests issued under it.
func WithStore(ctx context.Context, store string) context.Context {
	return context.WithValue(ctx, storeKey{}, store)
}

func storeFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(storeKey{}).(string); ok {
		return v
	}
	return ""
}
