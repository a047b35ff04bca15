package embed

import (
	"context"
	"sync"
	"time"
)

const (
	rateControllerInitialBackoff = 5 * time.Second
	rateControllerMaxBackoff     = 60 * time.Second

	// rateControllerGrowK is the number of consecutive successes
	// required to grow effective concurrency by one slot.
	rateControllerGrowK = 3

	// rateControllerHalveEveryK consecutive successes halves the
	// backoff back toward its initial value (10 * rateControllerGrowK).
	rateControllerHalveEveryK = 10 * rateControllerGrowK
)

// RateController is the process-wide, owned gate on embedding request
// concurrency. It is not a global singleton: one controller is created
// per embedding configuration and injected into that configuration's
// clients. A mutex plus condition variable models the "paused" state,
// per the concurrency design note: waiters block on the condition
// variable rather than polling.
type RateController struct {
	mu   sync.Mutex
	cond *sync.Cond

	maxConcurrency int
	effectiveLimit int // <= maxConcurrency; reset to 1 on rate-limit pause
	inFlight       int
	paused         bool

	consecutiveSuccesses int
	backoff              time.Duration
}

// NewRateController creates a controller that allows up to
// maxConcurrency concurrent embedding requests.
func NewRateController(maxConcurrency int) *RateController {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	c := &RateController{
		maxConcurrency: maxConcurrency,
		effectiveLimit: maxConcurrency,
		backoff:        rateControllerInitialBackoff,
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Acquire blocks until a concurrency slot is free and the controller
// is not paused, then reserves a slot. The caller must call Release
// when the request completes.
func (c *RateController) Acquire(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			c.mu.Lock()
			c.cond.Broadcast()
			c.mu.Unlock()
		case <-done:
		}
	}()

	c.mu.Lock()
	defer c.mu.Unlock()
	for (c.paused || c.inFlight >= c.effectiveLimit) && ctx.Err() == nil {
		c.cond.Wait()
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.inFlight++
	return nil
}

// Release frees the reserved slot, unblocking any waiters.
func (c *RateController) Release() {
	c.mu.Lock()
	c.inFlight--
	c.cond.Broadcast()
	c.mu.Unlock()
}

// ReportSuccess records a successful request: every rateControllerGrowK
// consecutive successes grows effective concurrency by one slot (up to
// maxConcurrency); every rateControllerHalveEveryK consecutive
// successes halves the backoff back toward its initial value.
func (c *RateController) ReportSuccess() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.consecutiveSuccesses++
	if c.consecutiveSuccesses%rateControllerGrowK == 0 && c.effectiveLimit < c.maxConcurrency {
		c.effectiveLimit++
	}
	if c.consecutiveSuccesses%rateControllerHalveEveryK == 0 {
		c.backoff /= 2
		if c.backoff < rateControllerInitialBackoff {
			c.backoff = rateControllerInitialBackoff
		}
	}
	c.cond.Broadcast()
}

// ReportRateLimited pauses all in-flight and future acquisitions,
// waits out the current backoff, then resumes with effective
// concurrency reset to 1 and doubles the backoff (capped) for next
// time. Returns early on context cancellation.
func (c *RateController) ReportRateLimited(ctx context.Context) error {
	c.mu.Lock()
	c.paused = true
	c.effectiveLimit = 1
	c.consecutiveSuccesses = 0
	wait := c.backoff
	c.mu.Unlock()

	select {
	case <-time.After(wait):
	case <-ctx.Done():
		c.mu.Lock()
		c.paused = false
		c.cond.Broadcast()
		c.mu.Unlock()
		return ctx.Err()
	}

	c.mu.Lock()
	c.backoff *= 2
	if c.backoff > rateControllerMaxBackoff {
		c.backoff = rateControllerMaxBackoff
	}
	c.paused = false
	c.cond.Broadcast()
	c.mu.Unlock()
	return nil
}
