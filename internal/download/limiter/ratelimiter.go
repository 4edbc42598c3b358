// Package limiter coordinates HTTP 429 handling across transfers.
// When one task to a host is rate limited, later tasks to the same host
// hold their requests until the block expires. The limited task itself
// is not retried.
package limiter

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vfaronov/httpheader"

	"github.com/canvas-sync/canvas-sync/internal/utils"
)

const (
	baseDelay = time.Second
	maxWait   = 60 * time.Second
)

// RateLimitError is returned for a 429 response.
// WaitDuration is how long the host stays blocked for later tasks.
type RateLimitError struct {
	Host         string
	WaitDuration time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited by %s (429), host blocked for %v", e.Host, e.WaitDuration)
}

// RateLimiter tracks rate limiting state for a single host
type RateLimiter struct {
	Host string

	// blockedUntil is a Unix nanosecond timestamp when the block expires
	blockedUntil atomic.Int64

	// consecutiveHits counts 429s since the last success
	consecutiveHits atomic.Int32

	mu sync.Mutex
}

func NewRateLimiter(host string) *RateLimiter {
	return &RateLimiter{Host: host}
}

// Handle429 records a 429 response and returns the resulting block duration.
// Retry-After (seconds or HTTP-date) wins over exponential backoff.
func (rl *RateLimiter) Handle429(resp *http.Response) time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	hits := rl.consecutiveHits.Add(1)

	var wait time.Duration
	if at := httpheader.RetryAfter(resp.Header); !at.IsZero() {
		wait = time.Until(at)
		if wait < time.Second {
			wait = time.Second
		}
	}

	if wait == 0 {
		// 1s, 2s, 4s ... capped at 32s before jitter
		wait = time.Duration(int64(1)<<min(int(hits-1), 5)) * baseDelay
		wait = addJitter(wait, 0.10)
	}
	if wait > maxWait {
		wait = maxWait
	}

	utils.Debug("RateLimiter [%s]: 429 received, blocking for %v (hit #%d)", rl.Host, wait, hits)
	rl.extendBlock(wait)
	return wait
}

// addJitter varies d by up to ±jitterFactor
func addJitter(d time.Duration, jitterFactor float64) time.Duration {
	if d <= 0 {
		return d
	}
	jitter := (rand.Float64()*2 - 1) * jitterFactor
	return time.Duration(float64(d) * (1 + jitter))
}

// extendBlock only ever moves the expiry later
func (rl *RateLimiter) extendBlock(d time.Duration) {
	until := time.Now().Add(d).UnixNano()
	for {
		current := rl.blockedUntil.Load()
		if until <= current {
			return
		}
		if rl.blockedUntil.CompareAndSwap(current, until) {
			return
		}
	}
}

// Wait blocks until the host is no longer rate limited or ctx is done.
// It reports whether it had to wait.
func (rl *RateLimiter) Wait(ctx context.Context) (bool, error) {
	d := rl.BlockDuration()
	if d <= 0 {
		return false, nil
	}

	utils.Debug("RateLimiter [%s]: waiting %v before request", rl.Host, d)
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return true, ctx.Err()
	case <-timer.C:
		return true, nil
	}
}

// ReportSuccess resets the consecutive hit counter
func (rl *RateLimiter) ReportSuccess() {
	if rl.consecutiveHits.Load() > 0 {
		rl.consecutiveHits.Store(0)
	}
}

func (rl *RateLimiter) IsBlocked() bool {
	return rl.BlockDuration() > 0
}

// BlockDuration returns how long until the block expires, 0 when not blocked
func (rl *RateLimiter) BlockDuration() time.Duration {
	until := rl.blockedUntil.Load()
	if until == 0 {
		return 0
	}
	d := time.Until(time.Unix(0, until))
	if d < 0 {
		return 0
	}
	return d
}
