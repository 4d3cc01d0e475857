// Package resilience combines request pacing and circuit breaking for
// outbound calls to a single upstream.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// StatusCoder is implemented by errors that carry an upstream HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// healthy reports whether err leaves the upstream's health unquestioned: the
// caller gave up, or the upstream answered a request it could not serve,
// such as a 404 for a stale link. Throttling still counts as a failure.
func healthy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var sc StatusCoder
	if errors.As(err, &sc) {
		code := sc.StatusCode()
		return code >= 400 && code < 500 && code != http.StatusTooManyRequests
	}
	return false
}

// GuardOpts configures a Guard.
type GuardOpts struct {
	// Name labels the breaker in logs.
	Name string
	// Rate is the number of calls allowed per second. Zero disables pacing.
	Rate float64
	// Burst is the limiter bucket size.
	Burst int
	// FailThreshold is how many consecutive failures trip the breaker.
	FailThreshold uint32
	// Timeout is how long the breaker stays open before entering half-open.
	Timeout time.Duration
	// HalfOpenMax is the number of trial calls allowed in half-open state.
	HalfOpenMax uint32
	Logger      *slog.Logger
}

// DefaultGuardOpts provides sensible defaults.
var DefaultGuardOpts = GuardOpts{
	Rate:          2,
	Burst:         4,
	FailThreshold: 5,
	Timeout:       30 * time.Second,
	HalfOpenMax:   1,
}

// Guard paces calls with a token bucket and stops calling an upstream that
// keeps failing.
type Guard struct {
	lim *rate.Limiter
	cb  *gobreaker.CircuitBreaker
}

// NewGuard creates a Guard. Zero fields fall back to DefaultGuardOpts,
// except Rate where zero means unlimited.
func NewGuard(opts GuardOpts) *Guard {
	if opts.Burst <= 0 {
		opts.Burst = DefaultGuardOpts.Burst
	}
	if opts.FailThreshold == 0 {
		opts.FailThreshold = DefaultGuardOpts.FailThreshold
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultGuardOpts.Timeout
	}
	if opts.HalfOpenMax == 0 {
		opts.HalfOpenMax = DefaultGuardOpts.HalfOpenMax
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	lim := rate.NewLimiter(rate.Inf, opts.Burst)
	if opts.Rate > 0 {
		lim = rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst)
	}

	threshold := opts.FailThreshold
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: opts.HalfOpenMax,
		Timeout:     opts.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: healthy,
	})
	return &Guard{lim: lim, cb: cb}
}

// Do waits for a token and runs f through the breaker. A nil Guard runs f
// directly. When the breaker rejects the call the error wraps ErrCircuitOpen.
func (g *Guard) Do(ctx context.Context, f func(context.Context) error) error {
	if g == nil {
		return f(ctx)
	}
	if err := g.lim.Wait(ctx); err != nil {
		return err
	}
	_, err := g.cb.Execute(func() (any, error) {
		return nil, f(ctx)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%s: %w", g.cb.Name(), ErrCircuitOpen)
	}
	return err
}

// State returns the breaker state name.
func (g *Guard) State() string {
	if g == nil {
		return gobreaker.StateClosed.String()
	}
	return g.cb.State().String()
}
