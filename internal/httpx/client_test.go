package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gamedex/catalog/errs"
)

func newTestClient(cfg Config) (*Client, *[]time.Duration) {
	client := NewClient(cfg, nil)
	sleeps := new([]time.Duration)
	var mu sync.Mutex
	client.sleep = func(_ context.Context, d time.Duration) error {
		mu.Lock()
		*sleeps = append(*sleeps, d)
		mu.Unlock()
		return nil
	}
	return client, sleeps
}

func getRequest(t *testing.T, rawURL string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, rawURL, nil)
	require.NoError(t, err)
	return req
}

func TestDoRetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client, sleeps := newTestClient(Config{MaxRetries: 5, RequestsPerSec: 1000, Burst: 1000})
	body, err := client.Do(context.Background(), getRequest(t, server.URL))
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true}`, string(body))
	require.EqualValues(t, 3, hits.Load())
	require.Len(t, *sleeps, 2)
}

func TestDoHonorsRetryAfterHeader(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if hits.Add(1) == 1 {
			w.Header().Set("Retry-After", "7")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client, sleeps := newTestClient(Config{MaxRetries: 2, RequestsPerSec: 1000, Burst: 1000})
	_, err := client.Do(context.Background(), getRequest(t, server.URL))
	require.NoError(t, err)
	require.Len(t, *sleeps, 1)
	require.Equal(t, 7*time.Second, (*sleeps)[0])
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client, _ := newTestClient(Config{MaxRetries: 5, RequestsPerSec: 1000, Burst: 1000})
	_, err := client.Do(context.Background(), getRequest(t, server.URL))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.CodeNetwork))
	require.EqualValues(t, 1, hits.Load())
}

func TestDoExhaustsRetriesWithRateLimitedCode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, _ := newTestClient(Config{MaxRetries: 2, RequestsPerSec: 1000, Burst: 1000})
	_, err := client.Do(context.Background(), getRequest(t, server.URL))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.CodeRateLimited))
}

func TestBreakerOpensAfterRepeatedFetchFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, _ := newTestClient(Config{
		MaxRetries:      0,
		RequestsPerSec:  1000,
		Burst:           1000,
		BreakerTrip:     3,
		BreakerCooldown: time.Minute,
	})

	for i := 0; i < 3; i++ {
		_, err := client.Do(context.Background(), getRequest(t, server.URL))
		require.Error(t, err)
		require.True(t, errs.Is(err, errs.CodeUnavailable))
	}

	_, err := client.Do(context.Background(), getRequest(t, server.URL))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.CodeCircuitOpen))
}

func TestLimiterBoundsConcurrentBurst(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	const requests = 6
	const rps = 100.0
	client, _ := newTestClient(Config{MaxRetries: 0, RequestsPerSec: rps, Burst: 1})

	start := time.Now()
	var wg sync.WaitGroup
	errCh := make(chan error, requests)
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Do(context.Background(), getRequest(t, server.URL))
			errCh <- err
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		require.NoError(t, err)
	}

	// 6 requests through a 100 rps bucket with burst 1 take at least 50ms.
	minimum := time.Duration(float64(requests-1) / rps * float64(time.Second))
	require.GreaterOrEqual(t, time.Since(start), minimum-5*time.Millisecond)
}

func TestBackoffScheduleMonotoneUpToCap(t *testing.T) {
	client, _ := newTestClient(Config{
		BackoffBase:    100 * time.Millisecond,
		BackoffCap:     2 * time.Second,
		RequestsPerSec: 1000,
	})
	expo := client.newBackoff()
	expo.RandomizationFactor = 0

	prev := time.Duration(0)
	for i := 0; i < 12; i++ {
		next := expo.NextBackOff()
		require.GreaterOrEqual(t, next, prev)
		require.LessOrEqual(t, next, 2*time.Second)
		prev = next
	}
	require.Equal(t, 2*time.Second, prev)
}

func TestGetJSONDecodesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "US", r.URL.Query().Get("cc"))
		_, _ = w.Write([]byte(`{"name":"Celeste"}`))
	}))
	defer server.Close()

	client, _ := newTestClient(Config{MaxRetries: 0, RequestsPerSec: 1000, Burst: 1000})
	var payload struct {
		Name string `json:"name"`
	}
	params := url.Values{}
	params.Set("cc", "US")
	err := client.GetJSON(context.Background(), server.URL, params, &payload)
	require.NoError(t, err)
	require.Equal(t, "Celeste", payload.Name)
}

func TestDoDeadlineCancelsWait(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(Config{MaxRetries: 0, RequestsPerSec: 0.001, Burst: 1}, nil)
	// drain the single burst token
	_, err := client.Do(context.Background(), getRequest(t, server.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Do(ctx, getRequest(t, server.URL))
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.CodeDeadline))
}

func TestDeadlineLeavesBreakerClosed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient(Config{
		MaxRetries:      0,
		RequestsPerSec:  0.001,
		Burst:           1,
		BreakerTrip:     1,
		BreakerCooldown: time.Minute,
	}, nil)
	req := getRequest(t, server.URL)

	_, err := client.Do(context.Background(), req)
	require.NoError(t, err)

	// caller deadlines while waiting on the drained bucket must not count
	// against the domain's failure run
	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		_, err = client.Do(ctx, req)
		cancel()
		require.Error(t, err)
		require.True(t, errs.Is(err, errs.CodeDeadline))
	}
	require.Equal(t, BreakerClosed, client.Breaker(req.URL.Host).State())
}
