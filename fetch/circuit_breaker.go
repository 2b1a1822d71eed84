package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/cenk/backoff"
	circuit "github.com/rubyist/circuitbreaker"
)

const (
	// DefaultTripThreshold is the number of consecutive failures that opens a
	// host's breaker.
	DefaultTripThreshold = 5

	// DefaultCooldown is how long an open breaker waits before letting one
	// trial request through. It doubles on every failed trial, up to
	// maxCooldown.
	DefaultCooldown = 30 * time.Second

	maxCooldown = 5 * time.Minute
)

// CircuitBreakerFetcher wraps a Fetcher with one circuit breaker per upstream
// host. Only transport failures and server errors count against a host: a
// missing sdist is a healthy answer and resets the failure count.
type CircuitBreakerFetcher struct {
	fetcher   FetcherInterface
	threshold int64
	cooldown  time.Duration
	logger    *slog.Logger

	mu       sync.RWMutex
	breakers map[string]*circuit.Breaker
}

// BreakerOption configures a CircuitBreakerFetcher.
type BreakerOption func(*CircuitBreakerFetcher)

// WithTripThreshold sets how many consecutive failures open a breaker.
// Values below 1 are ignored.
func WithTripThreshold(n int) BreakerOption {
	return func(cbf *CircuitBreakerFetcher) {
		if n >= 1 {
			cbf.threshold = int64(n)
		}
	}
}

// WithCooldown sets the first wait before an open breaker admits a trial
// request. Non-positive values are ignored.
func WithCooldown(d time.Duration) BreakerOption {
	return func(cbf *CircuitBreakerFetcher) {
		if d > 0 {
			cbf.cooldown = d
		}
	}
}

// WithBreakerLogger sets the logger used to report breakers opening and
// closing.
func WithBreakerLogger(l *slog.Logger) BreakerOption {
	return func(cbf *CircuitBreakerFetcher) {
		if l != nil {
			cbf.logger = l
		}
	}
}

// NewCircuitBreakerFetcher creates a new circuit breaker wrapper for a fetcher.
func NewCircuitBreakerFetcher(f FetcherInterface, opts ...BreakerOption) *CircuitBreakerFetcher {
	cbf := &CircuitBreakerFetcher{
		fetcher:   f,
		threshold: DefaultTripThreshold,
		cooldown:  DefaultCooldown,
		logger:    slog.New(slog.DiscardHandler),
		breakers:  make(map[string]*circuit.Breaker),
	}
	for _, opt := range opts {
		opt(cbf)
	}
	return cbf
}

func (cbf *CircuitBreakerFetcher) getBreaker(host string) *circuit.Breaker {
	cbf.mu.RLock()
	breaker, exists := cbf.breakers[host]
	cbf.mu.RUnlock()

	if exists {
		return breaker
	}

	cbf.mu.Lock()
	defer cbf.mu.Unlock()

	if breaker, exists := cbf.breakers[host]; exists {
		return breaker
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = cbf.cooldown
	expBackoff.MaxInterval = max(maxCooldown, cbf.cooldown)
	expBackoff.Multiplier = 2.0
	// A breaker must keep probing a dead host; backoff.Stop would pin it open.
	expBackoff.MaxElapsedTime = 0
	expBackoff.Reset()

	breaker = circuit.NewBreakerWithOptions(&circuit.Options{
		BackOff:    expBackoff,
		ShouldTrip: circuit.ConsecutiveTripFunc(cbf.threshold),
	})

	cbf.breakers[host] = breaker
	return breaker
}

// guard runs call under host's breaker and records the outcome.
func (cbf *CircuitBreakerFetcher) guard(ctx context.Context, rawURL string, call func() error) error {
	host := extractHost(rawURL)
	breaker := cbf.getBreaker(host)

	wasOpen := breaker.Tripped()
	if !breaker.Ready() {
		return fmt.Errorf("circuit breaker open for %s: %w", host, ErrUpstreamDown)
	}

	err := call()
	switch {
	case err == nil, errors.Is(err, ErrNotFound):
		breaker.Success()
		if wasOpen && !breaker.Tripped() {
			cbf.logger.Info("circuit breaker closed", "host", host)
		}
	case ctx.Err() != nil:
		// The caller gave up; that says nothing about the host.
	default:
		breaker.Fail()
		if !wasOpen && breaker.Tripped() {
			cbf.logger.Warn("circuit breaker open", "host", host,
				"failures", breaker.ConsecFailures(), "error", err)
		}
	}
	return err
}

// Fetch wraps the underlying fetcher's Fetch with circuit breaker logic.
func (cbf *CircuitBreakerFetcher) Fetch(ctx context.Context, fetchURL string) (*Artifact, error) {
	var artifact *Artifact
	err := cbf.guard(ctx, fetchURL, func() error {
		var fetchErr error
		artifact, fetchErr = cbf.fetcher.Fetch(ctx, fetchURL)
		return fetchErr
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// Head wraps the underlying fetcher's Head with circuit breaker logic.
func (cbf *CircuitBreakerFetcher) Head(ctx context.Context, headURL string) (size int64, contentType string, err error) {
	err = cbf.guard(ctx, headURL, func() error {
		var headErr error
		size, contentType, headErr = cbf.fetcher.Head(ctx, headURL)
		return headErr
	})
	return size, contentType, err
}

// extractHost groups URLs by host for breaker selection.
func extractHost(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		if len(rawURL) > 50 {
			return rawURL[:50]
		}
		return rawURL
	}
	return parsed.Host
}

// BreakerStates returns "open" or "closed" per host seen so far.
func (cbf *CircuitBreakerFetcher) BreakerStates() map[string]string {
	cbf.mu.RLock()
	defer cbf.mu.RUnlock()

	states := make(map[string]string, len(cbf.breakers))
	for host, breaker := range cbf.breakers {
		if breaker.Tripped() {
			states[host] = "open"
		} else {
			states[host] = "closed"
		}
	}
	return states
}
