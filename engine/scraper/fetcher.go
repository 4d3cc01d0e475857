package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/WessleyAI/wessley-parts/pkg/fn"
	"github.com/WessleyAI/wessley-parts/pkg/metrics"
	"github.com/WessleyAI/wessley-parts/pkg/resilience"
)

// maxBody caps how much of a response is read.
const maxBody = 4 << 20

// DefaultUserAgents is the pool a user agent is drawn from on every attempt.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:125.0) Gecko/20100101 Firefox/125.0",
	"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
}

// botMarkers are lower-case fragments of anti-bot interstitials.
var botMarkers = []string{
	"captcha",
	"cf-challenge",
	"are you a robot",
	"access denied",
	"unusual traffic",
}

var errBlocked = errors.New("bot challenge")

// StatusError is returned for a non-2xx response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string { return fmt.Sprintf("unexpected status %d", e.Code) }

// StatusCode lets the breaker tell client errors from upstream failures.
func (e *StatusError) StatusCode() int { return e.Code }

// FetcherOpts configures a Fetcher.
type FetcherOpts struct {
	// Source labels metrics and logs.
	Source  string
	Timeout time.Duration
	// Attempts bounds tries per Get. Values below 1 mean 1.
	Attempts int
	// Backoff is the first retry wait. Later waits double.
	Backoff    time.Duration
	Guard      *resilience.Guard
	Metrics    *metrics.Metrics
	UserAgents []string
	// Rand drives user agent choice and jitter. Nil seeds from the clock.
	Rand   *rand.Rand
	Client *http.Client
	Logger *slog.Logger
}

// Fetcher performs paced, retried GETs against one marketplace. A Get that
// exhausts its attempts yields no body rather than an error.
type Fetcher struct {
	source  string
	client  *http.Client
	guard   *resilience.Guard
	metrics *metrics.Metrics
	agents  []string
	retry   fn.RetryOpts
	logger  *slog.Logger

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewFetcher creates a Fetcher.
func NewFetcher(opts FetcherOpts) *Fetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.Attempts < 1 {
		opts.Attempts = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = time.Second
	}
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = DefaultUserAgents
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	f := &Fetcher{
		source:  opts.Source,
		client:  opts.Client,
		guard:   opts.Guard,
		metrics: opts.Metrics,
		agents:  opts.UserAgents,
		logger:  opts.Logger,
		rnd:     opts.Rand,
	}
	f.retry = fn.RetryOpts{
		MaxAttempts: opts.Attempts,
		InitialWait: opts.Backoff,
		MaxWait:     8 * opts.Backoff,
		Jitter:      true,
		Rand:        f.float,
	}
	return f
}

func (f *Fetcher) float() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rnd.Float64()
}

func (f *Fetcher) userAgent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.agents[f.rnd.Intn(len(f.agents))]
}

// Get fetches target, retrying throttled, challenged and failed attempts.
// ok is false when no usable response arrived.
func (f *Fetcher) Get(ctx context.Context, target string) (body []byte, ok bool) {
	res := fn.Retry(ctx, f.retry, func(ctx context.Context) fn.Result[[]byte] {
		return fn.FromPair(f.attempt(ctx, target))
	})
	body, err := res.Unwrap()
	if err != nil {
		f.logger.Debug("fetch gave up", "source", f.source, "url", target, "err", err)
		return nil, false
	}
	return body, true
}

// attempt runs a single request. Errors that retrying cannot fix are marked
// permanent.
func (f *Fetcher) attempt(ctx context.Context, target string) ([]byte, error) {
	var body []byte
	err := f.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		body, err = f.do(ctx, target)
		return err
	})
	switch {
	case err == nil:
		f.metrics.FetchAttempt(f.source, metrics.OutcomeOK)
		return body, nil
	case errors.Is(err, resilience.ErrCircuitOpen):
		f.metrics.FetchAttempt(f.source, metrics.OutcomeRejected)
		return nil, fn.Permanent(err)
	case fn.IsPermanent(err), ctx.Err() != nil:
		f.metrics.FetchAttempt(f.source, metrics.OutcomeFailed)
		return nil, err
	default:
		f.metrics.FetchAttempt(f.source, metrics.OutcomeRetryable)
		f.logger.Debug("fetch attempt failed", "source", f.source, "url", target, "err", err)
		return nil, err
	}
}

func (f *Fetcher) do(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fn.Permanent(err)
	}
	req.Header.Set("User-Agent", f.userAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9,lt;q=0.8,de;q=0.7")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode == http.StatusServiceUnavailable:
		return nil, &StatusError{Code: resp.StatusCode}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fn.Permanent(&StatusError{Code: resp.StatusCode})
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, err
	}
	if challenged(body) {
		return nil, errBlocked
	}
	return body, nil
}

func challenged(body []byte) bool {
	lower := strings.ToLower(string(body))
	for _, m := range botMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
