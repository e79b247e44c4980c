// Package requester provides the shared rate-limited HTTP primitive that
// every component uses for external calls. It spaces consecutive requests
// to the same host by a randomized delay, rotates user agents, applies
// per-call timeouts, and retries transient failures.
package requester

import (
	"bytes"
	"context"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/harvestline/leadgen-cli/internal/resilience"
)

// maxBodyBytes caps response bodies read by Get.
const maxBodyBytes = 2 * 1024 * 1024 // 2 MB

// Options configures a Requester. All randomness flows from Seed so tests
// can make delays and user-agent rotation deterministic.
type Options struct {
	UserAgents     []string
	MinDelay       time.Duration
	MaxDelay       time.Duration
	Timeout        time.Duration
	ConnectTimeout time.Duration
	MaxRetries     int
	// RetryBackoff is the base delay between retry attempts; the n-th
	// retry waits n times this long. Defaults to 5s.
	RetryBackoff time.Duration
	Seed         uint64
}

// Requester is a rate-limited HTTP client. It is the only cross-component
// shared mutable resource besides the record store.
type Requester struct {
	client *http.Client
	opts   Options

	mu       sync.Mutex
	rng      *rand.Rand
	limiters map[string]*rate.Limiter
	lastReq  map[string]time.Time
}

// New creates a Requester with the given options.
func New(opts Options) *Requester {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 3
	}
	if opts.MinDelay < 0 {
		opts.MinDelay = 0
	}
	if opts.MaxDelay < opts.MinDelay {
		opts.MaxDelay = opts.MinDelay
	}
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = []string{"leadgen-cli/1.0"}
	}

	seed := opts.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: opts.ConnectTimeout,
		}).DialContext,
		TLSHandshakeTimeout: opts.ConnectTimeout,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Requester{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		opts:     opts,
		rng:      rand.New(rand.NewPCG(seed, seed)),
		limiters: make(map[string]*rate.Limiter),
		lastReq:  make(map[string]time.Time),
	}
}

// UserAgent returns the next user agent from the rotation pool.
func (r *Requester) UserAgent() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.opts.UserAgents[r.rng.IntN(len(r.opts.UserAgents))]
}

// randomDelay draws an inter-request delay from [MinDelay, MaxDelay].
func (r *Requester) randomDelay() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	span := r.opts.MaxDelay - r.opts.MinDelay
	if span <= 0 {
		return r.opts.MinDelay
	}
	return r.opts.MinDelay + time.Duration(r.rng.Int64N(int64(span)))
}

// limiterFor returns the burst limiter for a host, creating one on demand.
// The token-bucket rate is derived from the mean configured delay; the
// randomized spacing on top comes from waitTurn.
func (r *Requester) limiterFor(host string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if lim, ok := r.limiters[host]; ok {
		return lim
	}
	mean := (r.opts.MinDelay + r.opts.MaxDelay) / 2
	var lim *rate.Limiter
	if mean <= 0 {
		lim = rate.NewLimiter(rate.Inf, 1)
	} else {
		lim = rate.NewLimiter(rate.Every(mean), 1)
	}
	r.limiters[host] = lim
	return lim
}

// waitTurn blocks until the host's limiter admits the request and the
// randomized spacing since the last request to that host has elapsed.
func (r *Requester) waitTurn(ctx context.Context, host string) error {
	if err := r.limiterFor(host).Wait(ctx); err != nil {
		return eris.Wrap(err, "requester: rate limit wait")
	}

	delay := r.randomDelay()
	r.mu.Lock()
	last, seen := r.lastReq[host]
	now := time.Now()
	r.lastReq[host] = now
	r.mu.Unlock()

	if !seen {
		return nil
	}
	remaining := delay - now.Sub(last)
	if remaining <= 0 {
		return nil
	}

	t := time.NewTimer(remaining)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "requester: delay wait")
	case <-t.C:
		return nil
	}
}

// Do executes the request through the rate limiter with transient retries.
// 503 and 5xx responses and transport errors retry up to MaxRetries with a
// linear 5s × attempt delay; other statuses are returned as-is.
func (r *Requester) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	return r.do(ctx, req, r.opts.MaxRetries)
}

func (r *Requester) do(ctx context.Context, req *http.Request, maxAttempts int) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", r.UserAgent())
	}
	host := req.URL.Host

	cfg := resilience.IngestRetryConfig()
	cfg.MaxAttempts = maxAttempts
	if r.opts.RetryBackoff > 0 {
		cfg.InitialBackoff = r.opts.RetryBackoff
	}
	cfg.OnRetry = resilience.RetryLogger("requester", req.URL.Host)

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*http.Response, error) {
		if err := r.waitTurn(ctx, host); err != nil {
			return nil, err
		}

		resp, err := r.client.Do(req.Clone(ctx))
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "requester: do"), 0)
		}

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			_ = resp.Body.Close()
			zap.L().Warn("requester: transient status",
				zap.String("url", req.URL.String()),
				zap.Int("status", resp.StatusCode),
			)
			return nil, resilience.NewTransientError(
				eris.Errorf("requester: http %d from %s", resp.StatusCode, req.URL.String()),
				resp.StatusCode,
			)
		}

		return resp, nil
	})
}

// Get fetches a URL and returns its body (capped at 2 MB) and status code.
// Schemeless URLs default to https. Get makes a single attempt with no
// automatic retry; callers that need the retry budget go through Do.
func (r *Requester) Get(ctx context.Context, rawURL string) ([]byte, int, error) {
	u, err := normalizeURL(rawURL)
	if err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "requester: create request")
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := r.do(ctx, req, 1)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "requester: read body")
	}
	return body, resp.StatusCode, nil
}

// PostJSON sends a JSON payload and returns the response body and status.
func (r *Requester) PostJSON(ctx context.Context, rawURL string, payload []byte) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, eris.Wrap(err, "requester: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.Do(ctx, req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, eris.Wrap(err, "requester: read body")
	}
	return body, resp.StatusCode, nil
}

// DownloadToFile streams a URL to the given path. Used by the bulk ingester
// where bodies exceed the in-memory cap.
func (r *Requester) DownloadToFile(ctx context.Context, rawURL, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, eris.Wrap(err, "requester: create request")
	}

	resp, err := r.Do(ctx, req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return 0, eris.Errorf("requester: unexpected status %d from %s", resp.StatusCode, rawURL)
	}

	return writeFile(path, resp.Body)
}

func normalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", eris.Wrapf(err, "requester: parse url %q", rawURL)
	}
	if u.Scheme == "" {
		u, err = url.Parse("https://" + rawURL)
		if err != nil {
			return "", eris.Wrapf(err, "requester: parse url %q", rawURL)
		}
	}
	return u.String(), nil
}
